package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/errwatch/issue-lifecycle-service/internal/apperrors"
	"github.com/errwatch/issue-lifecycle-service/internal/domain"
	"github.com/errwatch/issue-lifecycle-service/pkg/api"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
)

// mutationPlan holds everything resolved once per batch: release, commit,
// assignee and snooze lookups never repeat per issue.
type mutationPlan struct {
	mutation   Mutation
	resolution *resolutionPlan
	snooze     *snoozePlan
	assignee   *assigneePlan
}

type snoozePlan struct {
	until      *time.Time
	count      *int
	window     *int
	userCount  *int
	userWindow *int
	details    api.StatusDetails
}

type assigneePlan struct {
	clear bool
	user  *domain.User
	team  *domain.Team
	ref   *api.AssigneeRef
}

// Mutate applies the requested mutation to every selected issue, one
// transaction per issue. Issues that disappear mid-batch are skipped; a hard
// failure aborts the remainder but never rolls back earlier issues.
func (s *GroupServiceImpl) Mutate(ctx context.Context, actor Actor, projectID int64, sel Selection, m Mutation) (*api.MutateResponse, error) {
	const op = "internal.service.group.Mutate"

	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	groups, err := s.resolveSelection(ctx, actor, projectID, sel)
	if err != nil {
		return nil, err
	}

	if m.Merge {
		result, err := s.merge(ctx, actor, projectID, groups)
		if err != nil {
			return nil, err
		}

		return &api.MutateResponse{Merge: result}, nil
	}

	if m.Discard {
		if err := s.discard(ctx, actor, projectID, groups); err != nil {
			return nil, err
		}

		discarded := true

		return &api.MutateResponse{Discarded: &discarded}, nil
	}

	plan, err := s.planMutation(ctx, actor, projectID, m)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	resp := s.baseResponse(plan)

	for i := range groups {
		group := &groups[i]

		applied, statusChanged, err := s.mutateGroup(ctx, actor, group, plan)
		if err != nil {
			return nil, fmt.Errorf("%s: group '%d': %w", op, group.ID, err)
		}

		if !applied {
			continue
		}

		if group.ShareID != nil {
			resp.ShareId = group.ShareID
		}

		s.notifyOutbound(ctx, group, plan, statusChanged)
	}

	return resp, nil
}

func (s *GroupServiceImpl) planMutation(ctx context.Context, actor Actor, projectID int64, m Mutation) (*mutationPlan, error) {
	plan := &mutationPlan{mutation: m}

	if m.Status != nil {
		switch m.Status.Status {
		case domain.StatusResolved:
			res, err := s.planResolution(ctx, actor, projectID, m.Status)
			if err != nil {
				return nil, err
			}

			plan.resolution = res
		case domain.StatusIgnored:
			plan.snooze = planSnooze(m.Status)
		}
	}

	if m.AssignedTo != nil {
		assignee, err := s.resolveAssignee(ctx, projectID, *m.AssignedTo)
		if err != nil {
			return nil, err
		}

		plan.assignee = assignee
	}

	return plan, nil
}

// planSnooze precomputes the snooze record template. The deadline is anchored
// at plan time so every issue in the batch snoozes until the same instant.
func planSnooze(sc *StatusChange) *snoozePlan {
	plan := &snoozePlan{
		count:      sc.IgnoreCount,
		window:     sc.IgnoreWindow,
		userCount:  sc.IgnoreUserCount,
		userWindow: sc.IgnoreUserWindow,
	}

	if sc.IgnoreDuration != nil {
		until := time.Now().UTC().Add(time.Duration(*sc.IgnoreDuration) * time.Minute)
		plan.until = &until
		plan.details.IgnoreUntil = &until
	}

	plan.details.IgnoreCount = sc.IgnoreCount
	plan.details.IgnoreWindow = sc.IgnoreWindow
	plan.details.IgnoreUserCount = sc.IgnoreUserCount
	plan.details.IgnoreUserWindow = sc.IgnoreUserWindow

	return plan
}

func (p *snoozePlan) hasConditions() bool {
	return p.until != nil || p.count != nil || p.userCount != nil
}

// resolveAssignee parses the wire form of an assignee: "" clears, "team:slug"
// targets a team and anything else is a username. The target must belong to
// the project.
func (s *GroupServiceImpl) resolveAssignee(ctx context.Context, projectID int64, value string) (*assigneePlan, error) {
	if value == "" {
		return &assigneePlan{clear: true}, nil
	}

	if slug, ok := teamSlug(value); ok {
		team, err := s.projects.GetTeamBySlug(ctx, slug)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				return nil, &apperrors.InvalidAssigneeError{Assignee: value}
			}

			return nil, err
		}

		inProject, err := s.projects.IsTeamInProject(ctx, projectID, team.ID)
		if err != nil {
			return nil, err
		}

		if !inProject {
			return nil, &apperrors.InvalidAssigneeError{Assignee: value}
		}

		return &assigneePlan{
			team: team,
			ref:  &api.AssigneeRef{Id: team.ID, Type: api.AssigneeTypeTeam},
		}, nil
	}

	user, err := s.projects.GetUserByUsername(ctx, value)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, &apperrors.InvalidAssigneeError{Assignee: value}
		}

		return nil, err
	}

	member, err := s.projects.IsProjectMember(ctx, projectID, user.ID)
	if err != nil {
		return nil, err
	}

	if !member {
		return nil, &apperrors.InvalidAssigneeError{Assignee: value}
	}

	return &assigneePlan{
		user: user,
		ref:  &api.AssigneeRef{Id: user.ID, Type: api.AssigneeTypeUser},
	}, nil
}

func teamSlug(value string) (string, bool) {
	const prefix = "team:"

	if len(value) > len(prefix) && value[:len(prefix)] == prefix {
		return value[len(prefix):], true
	}

	return "", false
}

// mutateGroup applies the plan to one issue inside a single transaction.
// applied is false when the issue no longer exists; statusChanged reports
// whether the status actually moved, since a no-op status mutation must not
// write records or reach external trackers.
func (s *GroupServiceImpl) mutateGroup(ctx context.Context, actor Actor, group *domain.Group, plan *mutationPlan) (applied, statusChanged bool, err error) {
	const op = "internal.service.group.mutateGroup"

	err = s.transaction(ctx, op, func(tx *sqlx.Tx) error {
		locked, err := s.groupCmd.GetGroupWithLock(ctx, tx, group.ID)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				return nil
			}

			return err
		}

		*group = *locked
		m := plan.mutation

		if m.Status != nil && group.Status != m.Status.Status {
			if err := s.applyStatus(ctx, tx, actor, group, plan); err != nil {
				return err
			}

			statusChanged = true
		}

		if m.IsBookmarked != nil {
			if err := s.applyBookmark(ctx, tx, actor, group, *m.IsBookmarked); err != nil {
				return err
			}
		}

		if m.IsSubscribed != nil && actor.UserID != 0 {
			if err := s.records.SetSubscription(ctx, tx, group.ID, actor.UserID, *m.IsSubscribed, domain.SubscriptionManual); err != nil {
				return err
			}
		}

		if m.HasSeen != nil && actor.UserID != 0 {
			if err := s.applySeen(ctx, tx, actor, group.ID, *m.HasSeen); err != nil {
				return err
			}
		}

		if m.IsPublic != nil {
			if err := s.applyShare(ctx, tx, actor, group, *m.IsPublic); err != nil {
				return err
			}
		}

		if plan.assignee != nil {
			if err := s.applyAssignee(ctx, tx, actor, group, plan.assignee); err != nil {
				return err
			}
		}

		applied = true

		return nil
	})
	if err != nil {
		return false, false, err
	}

	return applied, statusChanged, nil
}

func (s *GroupServiceImpl) applyStatus(ctx context.Context, tx *sqlx.Tx, actor Actor, group *domain.Group, plan *mutationPlan) error {
	switch plan.mutation.Status.Status {
	case domain.StatusResolved:
		if err := s.applyResolve(ctx, tx, actor, group, plan.resolution); err != nil {
			return err
		}

		now := time.Now().UTC()
		group.Status = domain.StatusResolved
		group.ResolvedAt = &now

	case domain.StatusUnresolved:
		if err := s.applyUnresolve(ctx, tx, actor, group); err != nil {
			return err
		}

		group.Status = domain.StatusUnresolved
		group.ResolvedAt = nil

	case domain.StatusIgnored:
		if err := s.applyIgnore(ctx, tx, actor, group, plan.snooze); err != nil {
			return err
		}

		group.Status = domain.StatusIgnored
		group.ResolvedAt = nil
	}

	return nil
}

func (s *GroupServiceImpl) applyUnresolve(ctx context.Context, tx *sqlx.Tx, actor Actor, group *domain.Group) error {
	if err := s.groupCmd.UpdateGroupStatus(ctx, tx, group.ID, domain.StatusUnresolved, nil); err != nil {
		return err
	}

	if err := s.records.DeleteSnooze(ctx, tx, group.ID); err != nil {
		return err
	}

	if err := s.records.DeleteResolution(ctx, tx, group.ID); err != nil {
		return err
	}

	if actor.UserID != 0 {
		if err := s.records.Subscribe(ctx, tx, group.ID, actor.UserID, domain.SubscriptionStatusChange); err != nil {
			return err
		}
	}

	return s.records.CreateActivity(ctx, tx, &domain.Activity{
		GroupID:   group.ID,
		ProjectID: group.ProjectID,
		Type:      domain.ActivitySetUnresolved,
		UserID:    actorIDPtr(actor),
		Data:      mustJSON(map[string]interface{}{}),
	})
}

func (s *GroupServiceImpl) applyIgnore(ctx context.Context, tx *sqlx.Tx, actor Actor, group *domain.Group, plan *snoozePlan) error {
	if err := s.groupCmd.UpdateGroupStatus(ctx, tx, group.ID, domain.StatusIgnored, nil); err != nil {
		return err
	}

	activityData := map[string]interface{}{}

	if plan != nil && plan.hasConditions() {
		// baselines come from the issue's counters at ignore time so delta
		// thresholds measure only new events
		if err := s.records.ReplaceSnooze(ctx, tx, &domain.Snooze{
			GroupID:           group.ID,
			Until:             plan.until,
			Count:             plan.count,
			Window:            plan.window,
			UserCount:         plan.userCount,
			UserWindow:        plan.userWindow,
			BaselineTimesSeen: group.TimesSeen,
			BaselineUsersSeen: group.UsersSeen,
			ActorID:           actorIDPtr(actor),
		}); err != nil {
			return err
		}

		if plan.until != nil {
			activityData["ignoreUntil"] = plan.until.Format(time.RFC3339)
		}

		if plan.count != nil {
			activityData["ignoreCount"] = *plan.count
		}

		if plan.userCount != nil {
			activityData["ignoreUserCount"] = *plan.userCount
		}
	} else if err := s.records.DeleteSnooze(ctx, tx, group.ID); err != nil {
		return err
	}

	if actor.UserID != 0 {
		if err := s.records.Subscribe(ctx, tx, group.ID, actor.UserID, domain.SubscriptionStatusChange); err != nil {
			return err
		}
	}

	return s.records.CreateActivity(ctx, tx, &domain.Activity{
		GroupID:   group.ID,
		ProjectID: group.ProjectID,
		Type:      domain.ActivitySetIgnored,
		UserID:    actorIDPtr(actor),
		Data:      mustJSON(activityData),
	})
}

func (s *GroupServiceImpl) applyBookmark(ctx context.Context, tx *sqlx.Tx, actor Actor, group *domain.Group, bookmarked bool) error {
	if actor.UserID == 0 {
		return nil
	}

	if !bookmarked {
		return s.records.DeleteBookmark(ctx, tx, group.ID, actor.UserID)
	}

	if err := s.records.SetBookmark(ctx, tx, group.ID, actor.UserID); err != nil {
		return err
	}

	// bookmarking implies interest
	return s.records.Subscribe(ctx, tx, group.ID, actor.UserID, domain.SubscriptionBookmark)
}

func (s *GroupServiceImpl) applySeen(ctx context.Context, tx *sqlx.Tx, actor Actor, groupID int64, seen bool) error {
	if seen {
		return s.records.UpsertSeen(ctx, tx, groupID, actor.UserID, time.Now().UTC())
	}

	return s.records.DeleteSeen(ctx, tx, groupID, actor.UserID)
}

func (s *GroupServiceImpl) applyShare(ctx context.Context, tx *sqlx.Tx, actor Actor, group *domain.Group, public bool) error {
	if !public {
		if err := s.groupCmd.SetGroupShare(ctx, tx, group.ID, false, nil); err != nil {
			return err
		}

		group.IsPublic = false
		group.ShareID = nil

		return s.records.CreateActivity(ctx, tx, &domain.Activity{
			GroupID:   group.ID,
			ProjectID: group.ProjectID,
			Type:      domain.ActivitySetPrivate,
			UserID:    actorIDPtr(actor),
			Data:      mustJSON(map[string]interface{}{}),
		})
	}

	shareID := group.ShareID
	if shareID == nil {
		generated := uuid.New().String()
		shareID = &generated
	}

	if err := s.groupCmd.SetGroupShare(ctx, tx, group.ID, true, shareID); err != nil {
		return err
	}

	group.IsPublic = true
	group.ShareID = shareID

	return s.records.CreateActivity(ctx, tx, &domain.Activity{
		GroupID:   group.ID,
		ProjectID: group.ProjectID,
		Type:      domain.ActivitySetPublic,
		UserID:    actorIDPtr(actor),
		Data:      mustJSON(map[string]interface{}{}),
	})
}

func (s *GroupServiceImpl) applyAssignee(ctx context.Context, tx *sqlx.Tx, actor Actor, group *domain.Group, plan *assigneePlan) error {
	if plan.clear {
		if err := s.records.ClearAssignee(ctx, tx, group.ID); err != nil {
			return err
		}

		return s.records.CreateActivity(ctx, tx, &domain.Activity{
			GroupID:   group.ID,
			ProjectID: group.ProjectID,
			Type:      domain.ActivityUnassigned,
			UserID:    actorIDPtr(actor),
			Data:      mustJSON(map[string]interface{}{}),
		})
	}

	assignee := &domain.Assignee{
		GroupID:    group.ID,
		AssignedBy: actorIDPtr(actor),
	}

	activityData := map[string]interface{}{}

	if plan.user != nil {
		assignee.UserID = &plan.user.ID
		activityData["assignee"] = plan.user.ID
		activityData["assigneeType"] = "user"
	} else {
		assignee.TeamID = &plan.team.ID
		activityData["assignee"] = plan.team.ID
		activityData["assigneeType"] = "team"
	}

	if err := s.records.ReplaceAssignee(ctx, tx, assignee); err != nil {
		return err
	}

	if plan.user != nil {
		if err := s.records.Subscribe(ctx, tx, group.ID, plan.user.ID, domain.SubscriptionAssigned); err != nil {
			return err
		}
	}

	return s.records.CreateActivity(ctx, tx, &domain.Activity{
		GroupID:   group.ID,
		ProjectID: group.ProjectID,
		Type:      domain.ActivityAssigned,
		UserID:    actorIDPtr(actor),
		Data:      mustJSON(activityData),
	})
}

// baseResponse echoes the batch-invariant parts of the mutation. ShareId is
// filled per issue as the batch runs.
func (s *GroupServiceImpl) baseResponse(plan *mutationPlan) *api.MutateResponse {
	m := plan.mutation
	resp := &api.MutateResponse{
		IsBookmarked: m.IsBookmarked,
		IsSubscribed: m.IsSubscribed,
		IsPublic:     m.IsPublic,
		HasSeen:      m.HasSeen,
	}

	if m.Status != nil {
		status := api.GroupStatus(m.Status.Status)
		resp.Status = &status

		switch {
		case plan.resolution != nil:
			details := plan.resolution.details
			resp.StatusDetails = &details
		case plan.snooze != nil:
			details := plan.snooze.details
			resp.StatusDetails = &details
		default:
			resp.StatusDetails = &api.StatusDetails{}
		}
	}

	if plan.assignee != nil {
		resp.AssignedTo = plan.assignee.ref
	}

	return resp
}

// notifyOutbound pushes the committed change to linked external trackers.
// Only a status mutation that changed value is synced.
func (s *GroupServiceImpl) notifyOutbound(ctx context.Context, group *domain.Group, plan *mutationPlan, statusChanged bool) {
	if plan.mutation.Status != nil && statusChanged {
		resolved := plan.mutation.Status.Status == domain.StatusResolved
		s.syncStatusOutbound(ctx, group.ID, group.ProjectID, resolved)
	}

	if plan.assignee != nil {
		s.syncAssigneeOutbound(ctx, group.ID, group.ProjectID, !plan.assignee.clear)
	}
}

func mustJSON(v map[string]interface{}) types.JSONText {
	data, err := json.Marshal(v)
	if err != nil {
		// a map of scalars never fails to marshal
		panic(err)
	}

	return types.JSONText(data)
}
