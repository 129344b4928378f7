package worker

import (
	"context"
	"time"

	"github.com/errwatch/issue-lifecycle-service/internal/domain"
	"github.com/errwatch/issue-lifecycle-service/internal/eventstream"
	"github.com/errwatch/issue-lifecycle-service/internal/repository"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/mock"
)

type GroupCommandRepositoryMock struct {
	mock.Mock
}

var _ repository.GroupCommandRepository = (*GroupCommandRepositoryMock)(nil)

func (m *GroupCommandRepositoryMock) GetGroupWithLock(ctx context.Context, tx *sqlx.Tx, groupID int64) (*domain.Group, error) {
	args := m.Called(ctx, tx, groupID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*domain.Group), args.Error(1)
}

func (m *GroupCommandRepositoryMock) UpdateGroupStatus(ctx context.Context, tx *sqlx.Tx, groupID int64, status domain.GroupStatus, resolvedAt *time.Time) error {
	args := m.Called(ctx, tx, groupID, status, resolvedAt)
	return args.Error(0)
}

func (m *GroupCommandRepositoryMock) SetGroupShare(ctx context.Context, tx *sqlx.Tx, groupID int64, isPublic bool, shareID *string) error {
	args := m.Called(ctx, tx, groupID, isPublic, shareID)
	return args.Error(0)
}

func (m *GroupCommandRepositoryMock) AccumulateCounters(ctx context.Context, tx *sqlx.Tx, survivorID int64, timesSeen, usersSeen int, firstSeen, lastSeen time.Time) error {
	args := m.Called(ctx, tx, survivorID, timesSeen, usersSeen, firstSeen, lastSeen)
	return args.Error(0)
}

func (m *GroupCommandRepositoryMock) DeleteGroup(ctx context.Context, tx *sqlx.Tx, groupID int64) error {
	args := m.Called(ctx, tx, groupID)
	return args.Error(0)
}

type RecordRepositoryMock struct {
	mock.Mock
}

var _ repository.RecordRepository = (*RecordRepositoryMock)(nil)

func (m *RecordRepositoryMock) ReplaceResolution(ctx context.Context, tx *sqlx.Tx, res *domain.Resolution) error {
	args := m.Called(ctx, tx, res)
	return args.Error(0)
}

func (m *RecordRepositoryMock) DeleteResolution(ctx context.Context, tx *sqlx.Tx, groupID int64) error {
	args := m.Called(ctx, tx, groupID)
	return args.Error(0)
}

func (m *RecordRepositoryMock) ReplaceSnooze(ctx context.Context, tx *sqlx.Tx, snooze *domain.Snooze) error {
	args := m.Called(ctx, tx, snooze)
	return args.Error(0)
}

func (m *RecordRepositoryMock) DeleteSnooze(ctx context.Context, tx *sqlx.Tx, groupID int64) error {
	args := m.Called(ctx, tx, groupID)
	return args.Error(0)
}

func (m *RecordRepositoryMock) GetSnoozesByGroupIDs(ctx context.Context, groupIDs []int64) ([]domain.Snooze, error) {
	args := m.Called(ctx, groupIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]domain.Snooze), args.Error(1)
}

func (m *RecordRepositoryMock) CreateActivity(ctx context.Context, tx *sqlx.Tx, activity *domain.Activity) error {
	args := m.Called(ctx, tx, activity)
	return args.Error(0)
}

func (m *RecordRepositoryMock) MoveActivities(ctx context.Context, tx *sqlx.Tx, fromGroupID, toGroupID int64) error {
	args := m.Called(ctx, tx, fromGroupID, toGroupID)
	return args.Error(0)
}

func (m *RecordRepositoryMock) Subscribe(ctx context.Context, tx *sqlx.Tx, groupID, userID int64, reason domain.SubscriptionReason) error {
	args := m.Called(ctx, tx, groupID, userID, reason)
	return args.Error(0)
}

func (m *RecordRepositoryMock) SetSubscription(ctx context.Context, tx *sqlx.Tx, groupID, userID int64, active bool, reason domain.SubscriptionReason) error {
	args := m.Called(ctx, tx, groupID, userID, active, reason)
	return args.Error(0)
}

func (m *RecordRepositoryMock) GetAssignee(ctx context.Context, tx *sqlx.Tx, groupID int64) (*domain.Assignee, error) {
	args := m.Called(ctx, tx, groupID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*domain.Assignee), args.Error(1)
}

func (m *RecordRepositoryMock) ReplaceAssignee(ctx context.Context, tx *sqlx.Tx, assignee *domain.Assignee) error {
	args := m.Called(ctx, tx, assignee)
	return args.Error(0)
}

func (m *RecordRepositoryMock) ClearAssignee(ctx context.Context, tx *sqlx.Tx, groupID int64) error {
	args := m.Called(ctx, tx, groupID)
	return args.Error(0)
}

func (m *RecordRepositoryMock) SetBookmark(ctx context.Context, tx *sqlx.Tx, groupID, userID int64) error {
	args := m.Called(ctx, tx, groupID, userID)
	return args.Error(0)
}

func (m *RecordRepositoryMock) DeleteBookmark(ctx context.Context, tx *sqlx.Tx, groupID, userID int64) error {
	args := m.Called(ctx, tx, groupID, userID)
	return args.Error(0)
}

func (m *RecordRepositoryMock) UpsertSeen(ctx context.Context, tx *sqlx.Tx, groupID, userID int64, at time.Time) error {
	args := m.Called(ctx, tx, groupID, userID, at)
	return args.Error(0)
}

func (m *RecordRepositoryMock) DeleteSeen(ctx context.Context, tx *sqlx.Tx, groupID, userID int64) error {
	args := m.Called(ctx, tx, groupID, userID)
	return args.Error(0)
}

func (m *RecordRepositoryMock) DeleteGroupRecords(ctx context.Context, tx *sqlx.Tx, groupID int64) error {
	args := m.Called(ctx, tx, groupID)
	return args.Error(0)
}

type LinkRepositoryMock struct {
	mock.Mock
}

var _ repository.LinkRepository = (*LinkRepositoryMock)(nil)

func (m *LinkRepositoryMock) CreateGroupLink(ctx context.Context, tx *sqlx.Tx, link *domain.GroupLink) error {
	args := m.Called(ctx, tx, link)
	return args.Error(0)
}

func (m *LinkRepositoryMock) GetExternalIssues(ctx context.Context, groupID int64) ([]domain.ExternalIssue, error) {
	args := m.Called(ctx, groupID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]domain.ExternalIssue), args.Error(1)
}

func (m *LinkRepositoryMock) DeleteHashesByGroup(ctx context.Context, tx *sqlx.Tx, groupID int64) error {
	args := m.Called(ctx, tx, groupID)
	return args.Error(0)
}

func (m *LinkRepositoryMock) RepointHashesToGroup(ctx context.Context, tx *sqlx.Tx, fromGroupID, toGroupID int64) error {
	args := m.Called(ctx, tx, fromGroupID, toGroupID)
	return args.Error(0)
}

func (m *LinkRepositoryMock) RepointHashesToTombstone(ctx context.Context, tx *sqlx.Tx, groupID, tombstoneID int64) error {
	args := m.Called(ctx, tx, groupID, tombstoneID)
	return args.Error(0)
}

func (m *LinkRepositoryMock) CreateTombstone(ctx context.Context, tx *sqlx.Tx, tombstone *domain.Tombstone) (int64, error) {
	args := m.Called(ctx, tx, tombstone)
	return args.Get(0).(int64), args.Error(1)
}

func (m *LinkRepositoryMock) GetTombstoneByPreviousGroup(ctx context.Context, tx *sqlx.Tx, groupID int64) (*domain.Tombstone, error) {
	args := m.Called(ctx, tx, groupID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*domain.Tombstone), args.Error(1)
}

type NotifierMock struct {
	mock.Mock
}

var _ eventstream.Notifier = (*NotifierMock)(nil)

func (m *NotifierMock) StartMerge(ctx context.Context, projectID int64, loserIDs []int64, survivorID int64) (string, error) {
	args := m.Called(ctx, projectID, loserIDs, survivorID)
	return args.String(0), args.Error(1)
}

func (m *NotifierMock) EndMerge(ctx context.Context, token string) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

func (m *NotifierMock) StartDelete(ctx context.Context, projectID int64, groupIDs []int64) (string, error) {
	args := m.Called(ctx, projectID, groupIDs)
	return args.String(0), args.Error(1)
}

func (m *NotifierMock) EndDelete(ctx context.Context, token string) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}
