package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/errwatch/issue-lifecycle-service/internal/apperrors"
	"github.com/errwatch/issue-lifecycle-service/internal/domain"
	"github.com/errwatch/issue-lifecycle-service/pkg/api"
	"github.com/jmoiron/sqlx"
)

// resolutionPlan is the batch-invariant part of a resolve mutation: release
// and commit lookups happen once up front, then the plan is applied to each
// selected issue inside its own transaction.
type resolutionPlan struct {
	activityType domain.ActivityType
	activityData map[string]interface{}

	// template for the per-group resolution record; nil for a plain resolve
	resolution *domain.Resolution
	commit     *domain.Commit

	actorUser *domain.User
	details   api.StatusDetails
}

func (s *GroupServiceImpl) planResolution(ctx context.Context, actor Actor, projectID int64, sc *StatusChange) (*resolutionPlan, error) {
	const op = "internal.service.group.planResolution"

	plan := &resolutionPlan{
		activityType: domain.ActivitySetResolved,
		activityData: map[string]interface{}{},
	}

	if actor.UserID != 0 {
		user, err := s.projects.GetUserByID(ctx, actor.UserID)
		if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
			return nil, fmt.Errorf("%s: failed to get actor: %w", op, err)
		}

		plan.actorUser = user
	}

	if plan.actorUser != nil {
		plan.details.Actor = &api.UserRef{Id: plan.actorUser.ID, Name: plan.actorUser.Username}
	}

	actorID := actorIDPtr(actor)

	switch {
	case sc.InNextRelease:
		release, err := s.projects.GetLatestRelease(ctx, projectID)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		plan.resolution = &domain.Resolution{
			ReleaseID: release.ID,
			Type:      domain.ResolutionInNextRelease,
			Status:    domain.ResolutionPending,
			ActorID:   actorID,
		}
		plan.activityType = domain.ActivitySetResolvedInRelease
		// the target release does not exist yet; the version is left blank
		plan.activityData["version"] = ""
		plan.details.InNextRelease = true

	case sc.InRelease == "latest":
		release, err := s.projects.GetLatestRelease(ctx, projectID)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		plan.resolution = &domain.Resolution{
			ReleaseID: release.ID,
			Type:      domain.ResolutionInRelease,
			Status:    domain.ResolutionResolved,
			ActorID:   actorID,
		}
		plan.activityType = domain.ActivitySetResolvedInRelease
		plan.activityData["version"] = release.Version
		plan.details.InRelease = release.Version

	case sc.InRelease != "":
		release, err := s.projects.GetReleaseByVersion(ctx, projectID, sc.InRelease)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		plan.resolution = &domain.Resolution{
			ReleaseID: release.ID,
			Type:      domain.ResolutionInExplicitRelease,
			Status:    domain.ResolutionResolved,
			ActorID:   actorID,
		}
		plan.activityType = domain.ActivitySetResolvedInRelease
		plan.activityData["version"] = release.Version
		plan.details.InRelease = release.Version

	case sc.InCommit != nil:
		commit, err := s.projects.GetCommitByKey(ctx, sc.InCommit.Repository, sc.InCommit.Commit)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		plan.commit = commit
		plan.activityType = domain.ActivitySetResolvedInCommit
		plan.activityData["commit"] = commit.Key

		if commit.ReleaseID != nil {
			release, err := s.projects.GetReleaseByID(ctx, *commit.ReleaseID)
			if err != nil {
				return nil, fmt.Errorf("%s: failed to get commit release: %w", op, err)
			}

			plan.resolution = &domain.Resolution{
				ReleaseID: release.ID,
				Type:      domain.ResolutionInRelease,
				Status:    domain.ResolutionResolved,
				ActorID:   actorID,
				CommitID:  &commit.ID,
			}
		}

		plan.details.InCommit = sc.InCommit
	}

	return plan, nil
}

// applyResolve transitions one locked group to resolved. Runs inside the
// per-issue transaction.
func (s *GroupServiceImpl) applyResolve(ctx context.Context, tx *sqlx.Tx, actor Actor, group *domain.Group, plan *resolutionPlan) error {
	const op = "internal.service.group.applyResolve"

	now := time.Now().UTC()

	if err := s.groupCmd.UpdateGroupStatus(ctx, tx, group.ID, domain.StatusResolved, &now); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := s.records.DeleteSnooze(ctx, tx, group.ID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if plan.resolution != nil {
		res := *plan.resolution
		res.GroupID = group.ID

		if err := s.records.ReplaceResolution(ctx, tx, &res); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	} else if err := s.records.DeleteResolution(ctx, tx, group.ID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if plan.commit != nil {
		link := &domain.GroupLink{
			GroupID:      group.ID,
			ProjectID:    group.ProjectID,
			LinkedType:   domain.LinkedCommit,
			LinkedID:     plan.commit.ID,
			Relationship: domain.RelationshipResolves,
		}

		if err := s.links.CreateGroupLink(ctx, tx, link); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}

	if err := s.selfAssignOnResolve(ctx, tx, actor, group, plan); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if actor.UserID != 0 {
		if err := s.records.Subscribe(ctx, tx, group.ID, actor.UserID, domain.SubscriptionStatusChange); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}

	if err := s.records.CreateActivity(ctx, tx, &domain.Activity{
		GroupID:   group.ID,
		ProjectID: group.ProjectID,
		Type:      plan.activityType,
		UserID:    actorIDPtr(actor),
		Data:      mustJSON(plan.activityData),
	}); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// selfAssignOnResolve assigns the resolving user to the issue when their
// profile opts in and the issue has no owner yet.
func (s *GroupServiceImpl) selfAssignOnResolve(ctx context.Context, tx *sqlx.Tx, actor Actor, group *domain.Group, plan *resolutionPlan) error {
	if plan.actorUser == nil || !plan.actorUser.SelfAssignOnResolve {
		return nil
	}

	_, err := s.records.GetAssignee(ctx, tx, group.ID)
	if err == nil {
		// already owned; self-assign never steals
		return nil
	}

	if !errors.Is(err, apperrors.ErrNotFound) {
		return err
	}

	userID := actor.UserID

	if err := s.records.ReplaceAssignee(ctx, tx, &domain.Assignee{
		GroupID:    group.ID,
		UserID:     &userID,
		AssignedBy: &userID,
	}); err != nil {
		return err
	}

	if err := s.records.Subscribe(ctx, tx, group.ID, userID, domain.SubscriptionAssigned); err != nil {
		return err
	}

	return s.records.CreateActivity(ctx, tx, &domain.Activity{
		GroupID:   group.ID,
		ProjectID: group.ProjectID,
		Type:      domain.ActivityAssigned,
		UserID:    &userID,
		Data:      mustJSON(map[string]interface{}{"assignee": userID, "assigneeType": "user"}),
	})
}

func actorIDPtr(actor Actor) *int64 {
	if actor.UserID == 0 {
		return nil
	}

	id := actor.UserID

	return &id
}
