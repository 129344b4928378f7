package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/errwatch/issue-lifecycle-service/internal/domain"
	"github.com/errwatch/issue-lifecycle-service/internal/eventstream"
	"github.com/errwatch/issue-lifecycle-service/internal/repository"
	"github.com/errwatch/issue-lifecycle-service/internal/search"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/mock"
)

type TransactorMock struct {
	mock.Mock
}

func (m *TransactorMock) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	args := m.Called(ctx, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*sqlx.Tx), args.Error(1)
}

type GroupQueryRepositoryMock struct {
	mock.Mock
}

var _ repository.GroupQueryRepository = (*GroupQueryRepositoryMock)(nil)

func (m *GroupQueryRepositoryMock) GetGroupByID(ctx context.Context, groupID int64) (*domain.Group, error) {
	args := m.Called(ctx, groupID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*domain.Group), args.Error(1)
}

func (m *GroupQueryRepositoryMock) GetGroupsByIDs(ctx context.Context, groupIDs []int64) ([]domain.Group, error) {
	args := m.Called(ctx, groupIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]domain.Group), args.Error(1)
}

func (m *GroupQueryRepositoryMock) FindGroupIDs(ctx context.Context, projectIDs []int64, q *search.Query, sort search.Sort, limit int) ([]int64, error) {
	args := m.Called(ctx, projectIDs, q, sort, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]int64), args.Error(1)
}

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

type ProjectRepositoryMock struct {
	mock.Mock
}

var _ repository.ProjectRepository = (*ProjectRepositoryMock)(nil)

func (m *ProjectRepositoryMock) GetLatestRelease(ctx context.Context, projectID int64) (*domain.Release, error) {
	args := m.Called(ctx, projectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*domain.Release), args.Error(1)
}

func (m *ProjectRepositoryMock) GetReleaseByVersion(ctx context.Context, projectID int64, version string) (*domain.Release, error) {
	args := m.Called(ctx, projectID, version)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*domain.Release), args.Error(1)
}

func (m *ProjectRepositoryMock) GetCommitByKey(ctx context.Context, repositoryName, commitKey string) (*domain.Commit, error) {
	args := m.Called(ctx, repositoryName, commitKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*domain.Commit), args.Error(1)
}

func (m *ProjectRepositoryMock) GetReleaseByID(ctx context.Context, releaseID int64) (*domain.Release, error) {
	args := m.Called(ctx, releaseID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*domain.Release), args.Error(1)
}

func (m *ProjectRepositoryMock) GetUserByID(ctx context.Context, userID int64) (*domain.User, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *ProjectRepositoryMock) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *ProjectRepositoryMock) GetTeamBySlug(ctx context.Context, slug string) (*domain.Team, error) {
	args := m.Called(ctx, slug)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*domain.Team), args.Error(1)
}

func (m *ProjectRepositoryMock) IsProjectMember(ctx context.Context, projectID, userID int64) (bool, error) {
	args := m.Called(ctx, projectID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *ProjectRepositoryMock) IsTeamInProject(ctx context.Context, projectID, teamID int64) (bool, error) {
	args := m.Called(ctx, projectID, teamID)
	return args.Bool(0), args.Error(1)
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

type RateProviderMock struct {
	mock.Mock
}

var _ eventstream.RateProvider = (*RateProviderMock)(nil)

func (m *RateProviderMock) GroupRates(ctx context.Context, groupID int64, windowMinutes int) (*eventstream.Rates, error) {
	args := m.Called(ctx, groupID, windowMinutes)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*eventstream.Rates), args.Error(1)
}

type EnqueuerMock struct {
	mock.Mock
}

func (m *EnqueuerMock) Enqueue(ctx context.Context, tx *sqlx.Tx, name string, payload interface{}) error {
	args := m.Called(ctx, tx, name, payload)
	return args.Error(0)
}

type StatusSyncerMock struct {
	mock.Mock
}

func (m *StatusSyncerMock) SyncStatus(ctx context.Context, integrationID int64, externalIssueKey string, resolved bool, projectID int64) error {
	args := m.Called(ctx, integrationID, externalIssueKey, resolved, projectID)
	return args.Error(0)
}

func (m *StatusSyncerMock) SyncAssignee(ctx context.Context, integrationID int64, externalIssueKey string, assign bool, projectID int64) error {
	args := m.Called(ctx, integrationID, externalIssueKey, assign, projectID)
	return args.Error(0)
}
