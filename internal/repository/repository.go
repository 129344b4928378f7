// Package repository defines the interfaces for the data persistence layer.
// These interfaces abstract the underlying database implementation from the
// service layer. Write methods taking a *sqlx.Tx are expected to run inside
// a transaction owned by the caller; per the concurrency model, transactions
// are scoped to a single issue, never to a whole batch.
package repository

import (
	"context"
	"time"

	"github.com/errwatch/issue-lifecycle-service/internal/domain"
	"github.com/errwatch/issue-lifecycle-service/internal/search"
	"github.com/jmoiron/sqlx"
)

// GroupQueryRepository defines read-only group operations.
type GroupQueryRepository interface {
	// GetGroupByID retrieves a single group. Returns apperrors.ErrNotFound
	// if the group does not exist.
	GetGroupByID(ctx context.Context, groupID int64) (*domain.Group, error)

	// GetGroupsByIDs retrieves groups by identifier, silently dropping IDs
	// that do not resolve. Order follows the input order.
	GetGroupsByIDs(ctx context.Context, groupIDs []int64) ([]domain.Group, error)

	// FindGroupIDs executes a parsed search query against the given projects,
	// capped at limit results. Groups in pending-deletion, deletion-in-progress
	// or pending-merge status are excluded regardless of the query.
	FindGroupIDs(ctx context.Context, projectIDs []int64, q *search.Query, sort search.Sort, limit int) ([]int64, error)
}

// GroupCommandRepository defines write and locking operations on groups.
type GroupCommandRepository interface {
	// GetGroupWithLock retrieves a group and acquires a row-level lock
	// ("FOR UPDATE"). Returns apperrors.ErrNotFound if the group is missing.
	GetGroupWithLock(ctx context.Context, tx *sqlx.Tx, groupID int64) (*domain.Group, error)

	// UpdateGroupStatus sets the status and resolved_at columns.
	UpdateGroupStatus(ctx context.Context, tx *sqlx.Tx, groupID int64, status domain.GroupStatus, resolvedAt *time.Time) error

	// SetGroupShare flips the public-share flag and share identifier.
	SetGroupShare(ctx context.Context, tx *sqlx.Tx, groupID int64, isPublic bool, shareID *string) error

	// AccumulateCounters rolls a merged loser's counters into the survivor:
	// times_seen and users_seen are added, first_seen takes the minimum and
	// last_seen the maximum.
	AccumulateCounters(ctx context.Context, tx *sqlx.Tx, survivorID int64, timesSeen, usersSeen int, firstSeen, lastSeen time.Time) error

	// DeleteGroup removes the group row itself. Dependent records must be
	// deleted first via RecordRepository.DeleteGroupRecords.
	DeleteGroup(ctx context.Context, tx *sqlx.Tx, groupID int64) error
}

// RecordRepository manages the side records owned by the lifecycle engine:
// resolutions, snoozes, activities, subscriptions, assignees, bookmarks and
// seen markers.
type RecordRepository interface {
	// ReplaceResolution atomically replaces the group's resolution record.
	// At most one resolution exists per group.
	ReplaceResolution(ctx context.Context, tx *sqlx.Tx, res *domain.Resolution) error

	// DeleteResolution removes the group's resolution record, if any.
	DeleteResolution(ctx context.Context, tx *sqlx.Tx, groupID int64) error

	// ReplaceSnooze atomically replaces the group's snooze record.
	ReplaceSnooze(ctx context.Context, tx *sqlx.Tx, snooze *domain.Snooze) error

	// DeleteSnooze removes the group's snooze record, if any.
	DeleteSnooze(ctx context.Context, tx *sqlx.Tx, groupID int64) error

	// GetSnoozesByGroupIDs loads snooze records for the given groups.
	GetSnoozesByGroupIDs(ctx context.Context, groupIDs []int64) ([]domain.Snooze, error)

	// CreateActivity appends an activity log entry. Activities are never
	// mutated after creation.
	CreateActivity(ctx context.Context, tx *sqlx.Tx, activity *domain.Activity) error

	// MoveActivities re-parents all activities from one group to another.
	MoveActivities(ctx context.Context, tx *sqlx.Tx, fromGroupID, toGroupID int64) error

	// Subscribe marks the (group, user) pair as actively subscribed with the
	// given reason. Re-subscribing an already-active pair is a no-op.
	Subscribe(ctx context.Context, tx *sqlx.Tx, groupID, userID int64, reason domain.SubscriptionReason) error

	// SetSubscription sets the active flag explicitly (isSubscribed mutation).
	SetSubscription(ctx context.Context, tx *sqlx.Tx, groupID, userID int64, active bool, reason domain.SubscriptionReason) error

	// GetAssignee returns the group's assignee or apperrors.ErrNotFound.
	GetAssignee(ctx context.Context, tx *sqlx.Tx, groupID int64) (*domain.Assignee, error)

	// ReplaceAssignee replaces the group's single assignee record.
	ReplaceAssignee(ctx context.Context, tx *sqlx.Tx, assignee *domain.Assignee) error

	// ClearAssignee removes the group's assignee record, if any.
	ClearAssignee(ctx context.Context, tx *sqlx.Tx, groupID int64) error

	// SetBookmark creates a bookmark for the pair; idempotent.
	SetBookmark(ctx context.Context, tx *sqlx.Tx, groupID, userID int64) error

	// DeleteBookmark removes the pair's bookmark, if any.
	DeleteBookmark(ctx context.Context, tx *sqlx.Tx, groupID, userID int64) error

	// UpsertSeen records that the user viewed the group at the given time.
	UpsertSeen(ctx context.Context, tx *sqlx.Tx, groupID, userID int64, at time.Time) error

	// DeleteSeen removes the user's seen marker for the group.
	DeleteSeen(ctx context.Context, tx *sqlx.Tx, groupID, userID int64) error

	// DeleteGroupRecords removes every dependent record of a group prior to
	// hard deletion: activities, subscriptions, links, resolutions, snoozes,
	// bookmarks, seen markers and assignees.
	DeleteGroupRecords(ctx context.Context, tx *sqlx.Tx, groupID int64) error
}

// LinkRepository manages dedupe hashes, commit/external-issue links and
// tombstones.
type LinkRepository interface {
	// CreateGroupLink inserts a link row. Inserting an existing
	// (group, linked entity, relationship) triple is a no-op.
	CreateGroupLink(ctx context.Context, tx *sqlx.Tx, link *domain.GroupLink) error

	// GetExternalIssues returns the external tracker issues linked to a group.
	GetExternalIssues(ctx context.Context, groupID int64) ([]domain.ExternalIssue, error)

	// DeleteHashesByGroup drops the group's dedupe-hash rows so new events no
	// longer match it.
	DeleteHashesByGroup(ctx context.Context, tx *sqlx.Tx, groupID int64) error

	// RepointHashesToGroup moves any remaining hashes of one group to another
	// (merge). Hashes already deleted by the synchronous path are tolerated.
	RepointHashesToGroup(ctx context.Context, tx *sqlx.Tx, fromGroupID, toGroupID int64) error

	// RepointHashesToTombstone re-points lingering hash rows at a tombstone so
	// future matching events resolve to "already deleted".
	RepointHashesToTombstone(ctx context.Context, tx *sqlx.Tx, groupID, tombstoneID int64) error

	// CreateTombstone snapshots a group before hard deletion and returns the
	// new tombstone's identifier.
	CreateTombstone(ctx context.Context, tx *sqlx.Tx, tombstone *domain.Tombstone) (int64, error)

	// GetTombstoneByPreviousGroup returns the tombstone created for a group,
	// or apperrors.ErrNotFound. Used to keep the deletion worker idempotent
	// when a discard already wrote the tombstone.
	GetTombstoneByPreviousGroup(ctx context.Context, tx *sqlx.Tx, groupID int64) (*domain.Tombstone, error)
}

// ProjectRepository resolves releases, commits, users and teams referenced by
// mutations.
type ProjectRepository interface {
	// GetLatestRelease returns the project's most recent release or
	// apperrors.ErrNoRelease wrapped in ErrNotFound semantics.
	GetLatestRelease(ctx context.Context, projectID int64) (*domain.Release, error)

	// GetReleaseByVersion returns the named release or apperrors.ErrNotFound.
	GetReleaseByVersion(ctx context.Context, projectID int64, version string) (*domain.Release, error)

	// GetCommitByKey looks a commit up by key within the named repository.
	GetCommitByKey(ctx context.Context, repositoryName, commitKey string) (*domain.Commit, error)

	// GetReleaseByID returns the release or apperrors.ErrNotFound.
	GetReleaseByID(ctx context.Context, releaseID int64) (*domain.Release, error)

	// GetUserByID returns the user or apperrors.ErrNotFound.
	GetUserByID(ctx context.Context, userID int64) (*domain.User, error)

	// GetUserByUsername returns the user or apperrors.ErrNotFound.
	GetUserByUsername(ctx context.Context, username string) (*domain.User, error)

	// GetTeamBySlug returns the team or apperrors.ErrNotFound.
	GetTeamBySlug(ctx context.Context, slug string) (*domain.Team, error)

	// IsProjectMember reports whether the user belongs to the project.
	IsProjectMember(ctx context.Context, projectID, userID int64) (bool, error)

	// IsTeamInProject reports whether the team is attached to the project.
	IsTeamInProject(ctx context.Context, projectID, teamID int64) (bool, error)
}
