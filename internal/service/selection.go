package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/errwatch/issue-lifecycle-service/internal/apperrors"
	"github.com/errwatch/issue-lifecycle-service/internal/domain"
	"github.com/errwatch/issue-lifecycle-service/internal/search"
	"github.com/errwatch/issue-lifecycle-service/pkg/logger/sl"
	"github.com/jmoiron/sqlx"
)

// resolveSelection turns a Selection into the concrete set of groups a
// mutation will touch. Explicit IDs touching an unauthorized project fail the
// whole call with ErrPermission, and IDs outside the requested project are
// dropped; query-based selection silently filters to the actor's authorized
// projects. Groups already being deleted or merged are excluded. Before results are returned, expired snoozes are persisted as
// unresolved transitions so callers never observe stale ignored statuses.
func (s *GroupServiceImpl) resolveSelection(ctx context.Context, actor Actor, projectID int64, sel Selection) ([]domain.Group, error) {
	const op = "internal.service.group.resolveSelection"

	var groups []domain.Group

	if len(sel.IDs) > 0 {
		found, err := s.groups.GetGroupsByIDs(ctx, sel.IDs)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to get groups: %w", op, err)
		}

		for _, g := range found {
			if !actor.CanAccess(g.ProjectID) {
				return nil, fmt.Errorf("%s: %w: group '%d' belongs to project '%d'",
					op, apperrors.ErrPermission, g.ID, g.ProjectID)
			}
		}

		// IDs are scoped to the requested project; a group living elsewhere is
		// treated as missing, like the query path never seeing it
		scoped := make([]domain.Group, 0, len(found))
		for _, g := range found {
			if g.ProjectID == projectID {
				scoped = append(scoped, g)
			}
		}

		if len(scoped) == 0 && len(sel.IDs) == 1 {
			return nil, fmt.Errorf("%s: %w: group with id '%d'", op, apperrors.ErrNotFound, sel.IDs[0])
		}

		groups = filterHidden(scoped)
	} else {
		if !actor.CanAccess(projectID) {
			// the sole requested project is out of scope: zero-effect success
			return []domain.Group{}, nil
		}

		rawQuery := sel.Query
		if rawQuery == "" {
			rawQuery = search.DefaultQuery
		}

		query, err := search.Parse(rawQuery)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		sort, err := search.ParseSort(sel.Sort)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		ids, err := s.groups.FindGroupIDs(ctx, []int64{projectID}, query, sort, pageLimit)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to search groups: %w", op, err)
		}

		groups, err = s.groups.GetGroupsByIDs(ctx, ids)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to get groups: %w", op, err)
		}
	}

	groups, err := s.expireSnoozes(ctx, groups)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return groups, nil
}

func filterHidden(groups []domain.Group) []domain.Group {
	visible := make([]domain.Group, 0, len(groups))

	for _, g := range groups {
		switch g.Status {
		case domain.StatusPendingDeletion, domain.StatusDeletionInProgress, domain.StatusPendingMerge:
			continue
		default:
			visible = append(visible, g)
		}
	}

	return visible
}

// expireSnoozes applies the lazy snooze transition: any ignored group whose
// snooze conditions are met reverts to unresolved, and the transition is
// committed before the caller sees the group.
func (s *GroupServiceImpl) expireSnoozes(ctx context.Context, groups []domain.Group) ([]domain.Group, error) {
	const op = "internal.service.group.expireSnoozes"

	var ignoredIDs []int64

	for _, g := range groups {
		if g.Status == domain.StatusIgnored {
			ignoredIDs = append(ignoredIDs, g.ID)
		}
	}

	if len(ignoredIDs) == 0 {
		return groups, nil
	}

	snoozes, err := s.records.GetSnoozesByGroupIDs(ctx, ignoredIDs)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to load snoozes: %w", op, err)
	}

	snoozeByGroup := make(map[int64]domain.Snooze, len(snoozes))
	for _, sn := range snoozes {
		snoozeByGroup[sn.GroupID] = sn
	}

	now := time.Now().UTC()

	for i := range groups {
		g := &groups[i]
		if g.Status != domain.StatusIgnored {
			continue
		}

		snooze, ok := snoozeByGroup[g.ID]
		if !ok {
			continue
		}

		expired, err := s.snoozes.Expired(ctx, g, &snooze, now)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		if !expired {
			continue
		}

		if err := s.unignoreExpired(ctx, g.ID); err != nil {
			// leave the group as-is on failure; the next read retries
			s.log.Error("failed to auto-unignore group", sl.Err(err), slog.Int64("group_id", g.ID))
			continue
		}

		g.Status = domain.StatusUnresolved
	}

	return groups, nil
}

func (s *GroupServiceImpl) unignoreExpired(ctx context.Context, groupID int64) error {
	const op = "internal.service.group.unignoreExpired"

	return s.transaction(ctx, op, func(tx *sqlx.Tx) error {
		group, err := s.groupCmd.GetGroupWithLock(ctx, tx, groupID)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				return nil
			}

			return err
		}

		// re-check under lock; another request may have won the race
		if group.Status != domain.StatusIgnored {
			return nil
		}

		if err := s.groupCmd.UpdateGroupStatus(ctx, tx, groupID, domain.StatusUnresolved, nil); err != nil {
			return err
		}

		if err := s.records.DeleteSnooze(ctx, tx, groupID); err != nil {
			return err
		}

		return s.records.CreateActivity(ctx, tx, &domain.Activity{
			GroupID:   groupID,
			ProjectID: group.ProjectID,
			Type:      domain.ActivitySetUnresolved,
			Data:      mustJSON(map[string]interface{}{"transition_type": "automatic"}),
		})
	})
}
