package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/errwatch/issue-lifecycle-service/internal/config"
	"github.com/errwatch/issue-lifecycle-service/internal/eventstream"
	"github.com/errwatch/issue-lifecycle-service/internal/integrations"
	"github.com/errwatch/issue-lifecycle-service/internal/repository"
	"github.com/errwatch/issue-lifecycle-service/internal/taskqueue"
	"github.com/errwatch/issue-lifecycle-service/pkg/api"
	"github.com/errwatch/issue-lifecycle-service/pkg/logger/sl"
	"github.com/jmoiron/sqlx"
)

// pageLimit caps query-based selection per invocation; callers re-invoke for
// the remainder. This bounds worst-case transaction count per request.
const pageLimit = 100

type Transactor interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

// GroupService is the bulk mutation engine exposed to the transport layer.
type GroupService interface {
	// Mutate resolves the selection and fans the requested mutation out to
	// each selected issue, one transaction per issue. Partial success across
	// the batch is expected; earlier successes stand when a later issue fails.
	Mutate(ctx context.Context, actor Actor, projectID int64, sel Selection, m Mutation) (*api.MutateResponse, error)

	// Delete soft-deletes the selected issues and schedules their hard
	// deletion. Issues already being deleted are skipped. Returns the IDs
	// actually transitioned.
	Delete(ctx context.Context, actor Actor, projectID int64, sel Selection) ([]int64, error)
}

type GroupServiceImpl struct {
	db       Transactor
	log      *slog.Logger
	groups   repository.GroupQueryRepository
	groupCmd repository.GroupCommandRepository
	records  repository.RecordRepository
	links    repository.LinkRepository
	projects repository.ProjectRepository
	stream   eventstream.Notifier
	snoozes  *SnoozeEvaluator
	queue    taskqueue.Enqueuer
	syncer   integrations.StatusSyncer
	features config.Features
}

func NewGroupService(
	db Transactor,
	log *slog.Logger,
	groups repository.GroupQueryRepository,
	groupCmd repository.GroupCommandRepository,
	records repository.RecordRepository,
	links repository.LinkRepository,
	projects repository.ProjectRepository,
	stream eventstream.Notifier,
	snoozes *SnoozeEvaluator,
	queue taskqueue.Enqueuer,
	syncer integrations.StatusSyncer,
	features config.Features,
) *GroupServiceImpl {
	return &GroupServiceImpl{
		db:       db,
		log:      log,
		groups:   groups,
		groupCmd: groupCmd,
		records:  records,
		links:    links,
		projects: projects,
		stream:   stream,
		snoozes:  snoozes,
		queue:    queue,
		syncer:   syncer,
		features: features,
	}
}

var _ GroupService = (*GroupServiceImpl)(nil)

func (s *GroupServiceImpl) transaction(ctx context.Context, op string, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: failed to begin transaction: %w", op, err)
	}

	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			s.log.Error("failed to rollback transaction", sl.Err(err))
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: failed to commit transaction: %w", op, err)
	}

	return nil
}

// syncStatusOutbound notifies external trackers linked to the group about the
// new resolution state. Sync failures are logged rather than failing the
// mutation: the local state change has already committed.
func (s *GroupServiceImpl) syncStatusOutbound(ctx context.Context, groupID, projectID int64, resolved bool) {
	const op = "internal.service.group.syncStatusOutbound"

	if !s.features.SyncEnabled {
		return
	}

	issues, err := s.links.GetExternalIssues(ctx, groupID)
	if err != nil {
		s.log.Error("failed to load external issues for sync", sl.Err(err), slog.Int64("group_id", groupID))
		return
	}

	for _, issue := range issues {
		if err := s.syncer.SyncStatus(ctx, issue.IntegrationID, issue.Key, resolved, projectID); err != nil {
			s.log.Error("outbound status sync failed",
				sl.Err(err),
				slog.Int64("group_id", groupID),
				slog.String("external_issue", issue.Key),
			)
		}
	}
}

func (s *GroupServiceImpl) syncAssigneeOutbound(ctx context.Context, groupID, projectID int64, assign bool) {
	if !s.features.SyncEnabled {
		return
	}

	issues, err := s.links.GetExternalIssues(ctx, groupID)
	if err != nil {
		s.log.Error("failed to load external issues for sync", sl.Err(err), slog.Int64("group_id", groupID))
		return
	}

	for _, issue := range issues {
		if err := s.syncer.SyncAssignee(ctx, issue.IntegrationID, issue.Key, assign, projectID); err != nil {
			s.log.Error("outbound assignee sync failed",
				sl.Err(err),
				slog.Int64("group_id", groupID),
				slog.String("external_issue", issue.Key),
			)
		}
	}
}
