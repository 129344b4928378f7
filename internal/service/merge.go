package service

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/errwatch/issue-lifecycle-service/internal/apperrors"
	"github.com/errwatch/issue-lifecycle-service/internal/domain"
	"github.com/errwatch/issue-lifecycle-service/internal/taskqueue"
	"github.com/errwatch/issue-lifecycle-service/pkg/api"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// MergeTaskPayload is the outbox payload for the asynchronous merge phase.
type MergeTaskPayload struct {
	TransactionID string  `json:"transaction_id"`
	StateToken    string  `json:"state_token"`
	ProjectID     int64   `json:"project_id"`
	SurvivorID    int64   `json:"survivor_id"`
	LoserIDs      []int64 `json:"loser_ids"`
	ActorID       *int64  `json:"actor_id,omitempty"`
}

// merge picks a survivor among the selected groups, parks the losers in
// pending-merge and schedules the data migration. The heavy row movement
// happens in the worker; this path only flips statuses.
func (s *GroupServiceImpl) merge(ctx context.Context, actor Actor, projectID int64, groups []domain.Group) (*api.MergeResult, error) {
	const op = "internal.service.group.merge"

	if len(groups) < 2 {
		return nil, fmt.Errorf("%s: %w", op, apperrors.ErrMergeNotEnough)
	}

	projectSet := map[int64]struct{}{}
	for _, g := range groups {
		projectSet[g.ProjectID] = struct{}{}
	}

	if len(projectSet) > 1 {
		ids := make([]int64, 0, len(projectSet))
		for id := range projectSet {
			ids = append(ids, id)
		}

		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

		return nil, fmt.Errorf("%s: %w", op, &apperrors.CrossProjectMergeError{ProjectIDs: ids})
	}

	survivor := pickSurvivor(groups)

	loserIDs := make([]int64, 0, len(groups)-1)
	for _, g := range groups {
		if g.ID != survivor.ID {
			loserIDs = append(loserIDs, g.ID)
		}
	}

	sort.Slice(loserIDs, func(i, j int) bool { return loserIDs[i] < loserIDs[j] })

	token, err := s.stream.StartMerge(ctx, projectID, loserIDs, survivor.ID)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to notify event stream: %w", op, err)
	}

	for _, loserID := range loserIDs {
		if err := s.parkForMerge(ctx, loserID); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	payload := MergeTaskPayload{
		TransactionID: uuid.New().String(),
		StateToken:    token,
		ProjectID:     projectID,
		SurvivorID:    survivor.ID,
		LoserIDs:      loserIDs,
		ActorID:       actorIDPtr(actor),
	}

	if err := s.queue.Enqueue(ctx, nil, taskqueue.TaskMergeGroups, payload); err != nil {
		return nil, fmt.Errorf("%s: failed to enqueue merge task: %w", op, err)
	}

	return &api.MergeResult{Parent: survivor.ID, Children: loserIDs}, nil
}

// pickSurvivor keeps the group with the highest event count; ties break toward
// the larger identifier so the choice is deterministic.
func pickSurvivor(groups []domain.Group) domain.Group {
	survivor := groups[0]

	for _, g := range groups[1:] {
		if g.TimesSeen > survivor.TimesSeen ||
			(g.TimesSeen == survivor.TimesSeen && g.ID > survivor.ID) {
			survivor = g
		}
	}

	return survivor
}

func (s *GroupServiceImpl) parkForMerge(ctx context.Context, groupID int64) error {
	const op = "internal.service.group.parkForMerge"

	return s.transaction(ctx, op, func(tx *sqlx.Tx) error {
		_, err := s.groupCmd.GetGroupWithLock(ctx, tx, groupID)
		if err != nil {
			// the group vanished between selection and now; the worker skips it
			if errors.Is(err, apperrors.ErrNotFound) {
				return nil
			}

			return err
		}

		return s.groupCmd.UpdateGroupStatus(ctx, tx, groupID, domain.StatusPendingMerge, nil)
	})
}
