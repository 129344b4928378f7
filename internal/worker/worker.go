// Package worker implements the asynchronous phases of merge and deletion,
// consumed from the task queue.
package worker

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/errwatch/issue-lifecycle-service/internal/apperrors"
	"github.com/errwatch/issue-lifecycle-service/internal/domain"
	"github.com/errwatch/issue-lifecycle-service/internal/eventstream"
	"github.com/errwatch/issue-lifecycle-service/internal/repository"
	"github.com/errwatch/issue-lifecycle-service/internal/service"
	"github.com/errwatch/issue-lifecycle-service/pkg/logger/sl"
	"github.com/jmoiron/sqlx"
)

type Worker struct {
	db       *sqlx.DB
	log      *slog.Logger
	groupCmd repository.GroupCommandRepository
	records  repository.RecordRepository
	links    repository.LinkRepository
	stream   eventstream.Notifier
}

func New(
	db *sqlx.DB,
	log *slog.Logger,
	groupCmd repository.GroupCommandRepository,
	records repository.RecordRepository,
	links repository.LinkRepository,
	stream eventstream.Notifier,
) *Worker {
	return &Worker{
		db:       db,
		log:      log,
		groupCmd: groupCmd,
		records:  records,
		links:    links,
		stream:   stream,
	}
}

// HandleMergeGroups folds each parked loser into the survivor: hashes,
// activities and counters move over, then the loser row disappears. Each
// loser gets its own transaction; losers that are no longer pending-merge
// are skipped, so re-delivery is safe.
func (w *Worker) HandleMergeGroups(ctx context.Context, payload json.RawMessage) error {
	const op = "internal.worker.HandleMergeGroups"

	var task service.MergeTaskPayload
	if err := json.Unmarshal(payload, &task); err != nil {
		return fmt.Errorf("%s: failed to decode payload: %w", op, err)
	}

	merged := make([]int64, 0, len(task.LoserIDs))

	for _, loserID := range task.LoserIDs {
		ok, err := w.mergeLoser(ctx, loserID, task.SurvivorID)
		if err != nil {
			return fmt.Errorf("%s: loser '%d': %w", op, loserID, err)
		}

		if ok {
			merged = append(merged, loserID)
		}
	}

	if len(merged) > 0 {
		if err := w.recordMergeActivity(ctx, task, merged); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}

	if err := w.stream.EndMerge(ctx, task.StateToken); err != nil {
		w.log.Error("failed to end merge on event stream", sl.Err(err))
	}

	w.log.Info("merge completed",
		slog.Int64("survivor_id", task.SurvivorID),
		slog.Int("merged", len(merged)),
	)

	return nil
}

func (w *Worker) mergeLoser(ctx context.Context, loserID, survivorID int64) (bool, error) {
	const op = "internal.worker.mergeLoser"

	var merged bool

	err := w.transaction(ctx, op, func(tx *sqlx.Tx) error {
		loser, err := w.groupCmd.GetGroupWithLock(ctx, tx, loserID)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				return nil
			}

			return err
		}

		if loser.Status != domain.StatusPendingMerge {
			return nil
		}

		if err := w.links.RepointHashesToGroup(ctx, tx, loserID, survivorID); err != nil {
			return err
		}

		if err := w.records.MoveActivities(ctx, tx, loserID, survivorID); err != nil {
			return err
		}

		if err := w.groupCmd.AccumulateCounters(ctx, tx, survivorID,
			loser.TimesSeen, loser.UsersSeen, loser.FirstSeen, loser.LastSeen); err != nil {
			return err
		}

		if err := w.records.DeleteGroupRecords(ctx, tx, loserID); err != nil {
			return err
		}

		if err := w.groupCmd.DeleteGroup(ctx, tx, loserID); err != nil {
			return err
		}

		merged = true

		return nil
	})
	if err != nil {
		return false, err
	}

	return merged, nil
}

func (w *Worker) recordMergeActivity(ctx context.Context, task service.MergeTaskPayload, merged []int64) error {
	const op = "internal.worker.recordMergeActivity"

	return w.transaction(ctx, op, func(tx *sqlx.Tx) error {
		data, err := json.Marshal(map[string]interface{}{
			"destination":    task.SurvivorID,
			"children":       merged,
			"transaction_id": task.TransactionID,
		})
		if err != nil {
			return err
		}

		return w.records.CreateActivity(ctx, tx, &domain.Activity{
			GroupID:   task.SurvivorID,
			ProjectID: task.ProjectID,
			Type:      domain.ActivityMerge,
			UserID:    task.ActorID,
			Data:      data,
		})
	})
}

// HandleDeleteGroups hard-deletes each group still pending deletion. The
// group is tombstoned exactly once; a tombstone written earlier by a discard
// is reused so re-delivery never duplicates it.
func (w *Worker) HandleDeleteGroups(ctx context.Context, payload json.RawMessage) error {
	const op = "internal.worker.HandleDeleteGroups"

	var task service.DeleteTaskPayload
	if err := json.Unmarshal(payload, &task); err != nil {
		return fmt.Errorf("%s: failed to decode payload: %w", op, err)
	}

	deleted := 0

	for _, groupID := range task.GroupIDs {
		ok, err := w.deleteGroup(ctx, groupID)
		if err != nil {
			return fmt.Errorf("%s: group '%d': %w", op, groupID, err)
		}

		if ok {
			deleted++
		}
	}

	if err := w.stream.EndDelete(ctx, task.StateToken); err != nil {
		w.log.Error("failed to end delete on event stream", sl.Err(err))
	}

	w.log.Info("deletion completed",
		slog.Int64("project_id", task.ProjectID),
		slog.Int("deleted", deleted),
	)

	return nil
}

func (w *Worker) deleteGroup(ctx context.Context, groupID int64) (bool, error) {
	const op = "internal.worker.deleteGroup"

	var deleted bool

	err := w.transaction(ctx, op, func(tx *sqlx.Tx) error {
		group, err := w.groupCmd.GetGroupWithLock(ctx, tx, groupID)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				return nil
			}

			return err
		}

		switch group.Status {
		case domain.StatusPendingDeletion, domain.StatusDeletionInProgress:
		default:
			return nil
		}

		if err := w.groupCmd.UpdateGroupStatus(ctx, tx, groupID, domain.StatusDeletionInProgress, nil); err != nil {
			return err
		}

		tombstoneID, err := w.ensureTombstone(ctx, tx, group)
		if err != nil {
			return err
		}

		if err := w.links.RepointHashesToTombstone(ctx, tx, groupID, tombstoneID); err != nil {
			return err
		}

		if err := w.records.DeleteGroupRecords(ctx, tx, groupID); err != nil {
			return err
		}

		if err := w.groupCmd.DeleteGroup(ctx, tx, groupID); err != nil {
			return err
		}

		deleted = true

		return nil
	})
	if err != nil {
		return false, err
	}

	return deleted, nil
}

func (w *Worker) ensureTombstone(ctx context.Context, tx *sqlx.Tx, group *domain.Group) (int64, error) {
	existing, err := w.links.GetTombstoneByPreviousGroup(ctx, tx, group.ID)
	if err == nil {
		return existing.ID, nil
	}

	if !errors.Is(err, apperrors.ErrNotFound) {
		return 0, err
	}

	return w.links.CreateTombstone(ctx, tx, &domain.Tombstone{
		PreviousGroupID: group.ID,
		ProjectID:       group.ProjectID,
		Message:         group.Message,
		Culprit:         group.Culprit,
		Data:            group.Data,
	})
}

func (w *Worker) transaction(ctx context.Context, op string, fn func(tx *sqlx.Tx) error) error {
	tx, err := w.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: failed to begin transaction: %w", op, err)
	}

	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			w.log.Error("failed to rollback transaction", sl.Err(err))
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
