package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/errwatch/issue-lifecycle-service/internal/apperrors"
	"github.com/errwatch/issue-lifecycle-service/internal/domain"
	"github.com/errwatch/issue-lifecycle-service/internal/taskqueue"
	"github.com/errwatch/issue-lifecycle-service/pkg/logger/sl"
	"github.com/jmoiron/sqlx"
)

// DeleteTaskPayload is the outbox payload for the asynchronous deletion phase.
type DeleteTaskPayload struct {
	StateToken string  `json:"state_token"`
	ProjectID  int64   `json:"project_id"`
	GroupIDs   []int64 `json:"group_ids"`
}

// Delete soft-deletes the selected issues: each transitions to
// pending-deletion and loses its dedupe hashes immediately so new events stop
// attaching, then a background task performs the hard delete. Issues already
// in a deletion state are skipped, which makes retried calls harmless.
func (s *GroupServiceImpl) Delete(ctx context.Context, actor Actor, projectID int64, sel Selection) ([]int64, error) {
	const op = "internal.service.group.Delete"

	groups, err := s.resolveSelection(ctx, actor, projectID, sel)
	if err != nil {
		return nil, err
	}

	if len(groups) == 0 {
		return []int64{}, nil
	}

	candidateIDs := make([]int64, 0, len(groups))
	for _, g := range groups {
		candidateIDs = append(candidateIDs, g.ID)
	}

	token, err := s.stream.StartDelete(ctx, projectID, candidateIDs)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to notify event stream: %w", op, err)
	}

	transitioned := make([]int64, 0, len(groups))

	for _, g := range groups {
		ok, err := s.markPendingDeletion(ctx, g.ID)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		if ok {
			transitioned = append(transitioned, g.ID)
		}
	}

	if len(transitioned) == 0 {
		if err := s.stream.EndDelete(ctx, token); err != nil {
			s.log.Error("failed to end delete on event stream", sl.Err(err))
		}

		return []int64{}, nil
	}

	payload := DeleteTaskPayload{
		StateToken: token,
		ProjectID:  projectID,
		GroupIDs:   transitioned,
	}

	if err := s.queue.Enqueue(ctx, nil, taskqueue.TaskDeleteGroups, payload); err != nil {
		return nil, fmt.Errorf("%s: failed to enqueue delete task: %w", op, err)
	}

	return transitioned, nil
}

// markPendingDeletion flips one group into pending-deletion and drops its
// hashes. Returns false when the group is gone or another deletion already
// claimed it.
func (s *GroupServiceImpl) markPendingDeletion(ctx context.Context, groupID int64) (bool, error) {
	const op = "internal.service.group.markPendingDeletion"

	var transitioned bool

	err := s.transaction(ctx, op, func(tx *sqlx.Tx) error {
		group, err := s.groupCmd.GetGroupWithLock(ctx, tx, groupID)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				return nil
			}

			return err
		}

		switch group.Status {
		case domain.StatusPendingDeletion, domain.StatusDeletionInProgress:
			return nil
		}

		if err := s.groupCmd.UpdateGroupStatus(ctx, tx, groupID, domain.StatusPendingDeletion, nil); err != nil {
			return err
		}

		if err := s.links.DeleteHashesByGroup(ctx, tx, groupID); err != nil {
			return err
		}

		transitioned = true

		return nil
	})
	if err != nil {
		return false, err
	}

	return transitioned, nil
}

// discard tombstones the selected issues and pushes them down the deletion
// path. Future events matching a discarded fingerprint resolve to the
// tombstone instead of recreating the issue.
func (s *GroupServiceImpl) discard(ctx context.Context, actor Actor, projectID int64, groups []domain.Group) error {
	const op = "internal.service.group.discard"

	if len(groups) == 0 {
		return nil
	}

	groupIDs := make([]int64, 0, len(groups))
	for _, g := range groups {
		groupIDs = append(groupIDs, g.ID)
	}

	token, err := s.stream.StartDelete(ctx, projectID, groupIDs)
	if err != nil {
		return fmt.Errorf("%s: failed to notify event stream: %w", op, err)
	}

	discarded := make([]int64, 0, len(groups))

	for _, g := range groups {
		ok, err := s.tombstoneGroup(ctx, g)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}

		if ok {
			discarded = append(discarded, g.ID)
		}
	}

	if len(discarded) == 0 {
		if err := s.stream.EndDelete(ctx, token); err != nil {
			s.log.Error("failed to end delete on event stream", sl.Err(err))
		}

		return nil
	}

	payload := DeleteTaskPayload{
		StateToken: token,
		ProjectID:  projectID,
		GroupIDs:   discarded,
	}

	if err := s.queue.Enqueue(ctx, nil, taskqueue.TaskDeleteGroups, payload); err != nil {
		return fmt.Errorf("%s: failed to enqueue delete task: %w", op, err)
	}

	return nil
}

func (s *GroupServiceImpl) tombstoneGroup(ctx context.Context, group domain.Group) (bool, error) {
	const op = "internal.service.group.tombstoneGroup"

	var transitioned bool

	err := s.transaction(ctx, op, func(tx *sqlx.Tx) error {
		locked, err := s.groupCmd.GetGroupWithLock(ctx, tx, group.ID)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				return nil
			}

			return err
		}

		switch locked.Status {
		case domain.StatusPendingDeletion, domain.StatusDeletionInProgress:
			return nil
		}

		tombstoneID, err := s.links.CreateTombstone(ctx, tx, &domain.Tombstone{
			PreviousGroupID: locked.ID,
			ProjectID:       locked.ProjectID,
			Message:         locked.Message,
			Culprit:         locked.Culprit,
			Data:            locked.Data,
		})
		if err != nil {
			return err
		}

		if err := s.links.RepointHashesToTombstone(ctx, tx, locked.ID, tombstoneID); err != nil {
			return err
		}

		if err := s.groupCmd.UpdateGroupStatus(ctx, tx, locked.ID, domain.StatusPendingDeletion, nil); err != nil {
			return err
		}

		transitioned = true

		return nil
	})
	if err != nil {
		return false, err
	}

	return transitioned, nil
}
