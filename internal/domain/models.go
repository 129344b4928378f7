package domain

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// GroupStatus is the lifecycle status of an issue. A group holds exactly one
// status at any time.
type GroupStatus string

const (
	StatusUnresolved         GroupStatus = "unresolved"
	StatusResolved           GroupStatus = "resolved"
	StatusIgnored            GroupStatus = "ignored"
	StatusPendingDeletion    GroupStatus = "pending_deletion"
	StatusDeletionInProgress GroupStatus = "deletion_in_progress"
	StatusPendingMerge       GroupStatus = "pending_merge"
)

// Group is a deduplicated cluster of error events sharing a fingerprint.
type Group struct {
	ID         int64          `db:"id"`
	ProjectID  int64          `db:"project_id"`
	Status     GroupStatus    `db:"status"`
	TimesSeen  int            `db:"times_seen"`
	UsersSeen  int            `db:"users_seen"`
	FirstSeen  time.Time      `db:"first_seen"`
	LastSeen   time.Time      `db:"last_seen"`
	ResolvedAt *time.Time     `db:"resolved_at"`
	IsPublic   bool           `db:"is_public"`
	ShareID    *string        `db:"share_id"`
	Message    string         `db:"message"`
	Culprit    string         `db:"culprit"`
	Data       types.JSONText `db:"data"`
}

type ResolutionType string

const (
	// ResolutionInRelease marks an issue resolved as of the project's current release.
	ResolutionInRelease ResolutionType = "in_release"
	// ResolutionInNextRelease marks an issue resolved in whichever release is cut next.
	ResolutionInNextRelease ResolutionType = "in_next_release"
	// ResolutionInExplicitRelease marks an issue resolved in a caller-named release.
	ResolutionInExplicitRelease ResolutionType = "in_explicit_release"
)

type ResolutionStatus string

const (
	ResolutionPending  ResolutionStatus = "pending"
	ResolutionResolved ResolutionStatus = "resolved"
)

// Resolution links a group to the release in which it is considered fixed.
// At most one exists per group.
type Resolution struct {
	ID        int64            `db:"id"`
	GroupID   int64            `db:"group_id"`
	ReleaseID int64            `db:"release_id"`
	Type      ResolutionType   `db:"type"`
	Status    ResolutionStatus `db:"status"`
	ActorID   *int64           `db:"actor_id"`
	CommitID  *int64           `db:"commit_id"`
	CreatedAt time.Time        `db:"created_at"`
}

// Snooze suspends an ignored group until a time or count condition is met.
// At most one exists per group; baseline counters are captured at creation so
// delta thresholds can be evaluated later.
type Snooze struct {
	ID                int64      `db:"id"`
	GroupID           int64      `db:"group_id"`
	Until             *time.Time `db:"until_ts"`
	Count             *int       `db:"count"`
	Window            *int       `db:"window_minutes"`
	UserCount         *int       `db:"user_count"`
	UserWindow        *int       `db:"user_window_minutes"`
	BaselineTimesSeen int        `db:"baseline_times_seen"`
	BaselineUsersSeen int        `db:"baseline_users_seen"`
	ActorID           *int64     `db:"actor_id"`
	CreatedAt         time.Time  `db:"created_at"`
}

type LinkedType string

const (
	LinkedCommit        LinkedType = "commit"
	LinkedExternalIssue LinkedType = "external_issue"
)

type LinkRelationship string

const (
	RelationshipResolves   LinkRelationship = "resolves"
	RelationshipReferences LinkRelationship = "references"
)

// GroupLink associates a group with a commit or an external tracker issue.
// One link exists per (group, linked entity, relationship) triple.
type GroupLink struct {
	ID           int64            `db:"id"`
	GroupID      int64            `db:"group_id"`
	ProjectID    int64            `db:"project_id"`
	LinkedType   LinkedType       `db:"linked_type"`
	LinkedID     int64            `db:"linked_id"`
	Relationship LinkRelationship `db:"relationship"`
	CreatedAt    time.Time        `db:"created_at"`
}

type ActivityType string

const (
	ActivitySetResolved          ActivityType = "set_resolved"
	ActivitySetResolvedInRelease ActivityType = "set_resolved_in_release"
	ActivitySetResolvedInCommit  ActivityType = "set_resolved_in_commit"
	ActivitySetUnresolved        ActivityType = "set_unresolved"
	ActivitySetIgnored           ActivityType = "set_ignored"
	ActivitySetPublic            ActivityType = "set_public"
	ActivitySetPrivate           ActivityType = "set_private"
	ActivityAssigned             ActivityType = "assigned"
	ActivityUnassigned           ActivityType = "unassigned"
	ActivityMerge                ActivityType = "merge"
)

// Activity is an append-only log entry recorded per group per mutation.
type Activity struct {
	ID        int64          `db:"id"`
	GroupID   int64          `db:"group_id"`
	ProjectID int64          `db:"project_id"`
	Type      ActivityType   `db:"type"`
	UserID    *int64         `db:"user_id"`
	Data      types.JSONText `db:"data"`
	CreatedAt time.Time      `db:"created_at"`
}

type SubscriptionReason string

const (
	SubscriptionStatusChange SubscriptionReason = "status_change"
	SubscriptionBookmark     SubscriptionReason = "bookmark"
	SubscriptionAssigned     SubscriptionReason = "assigned"
	SubscriptionManual       SubscriptionReason = "manual"
)

// Subscription is an (group, user) pair tracking notification interest.
// Re-subscribing an already-active pair is a no-op.
type Subscription struct {
	ID        int64              `db:"id"`
	GroupID   int64              `db:"group_id"`
	UserID    int64              `db:"user_id"`
	IsActive  bool               `db:"is_active"`
	Reason    SubscriptionReason `db:"reason"`
	CreatedAt time.Time          `db:"created_at"`
}

// Assignee records the single owner of a group: either a user or a team,
// never both.
type Assignee struct {
	ID         int64     `db:"id"`
	GroupID    int64     `db:"group_id"`
	UserID     *int64    `db:"user_id"`
	TeamID     *int64    `db:"team_id"`
	AssignedBy *int64    `db:"assigned_by"`
	CreatedAt  time.Time `db:"created_at"`
}

// Tombstone snapshots a hard-deleted group so future matching events can be
// redirected to "already deleted" without resurrecting the issue.
type Tombstone struct {
	ID              int64          `db:"id"`
	PreviousGroupID int64          `db:"previous_group_id"`
	ProjectID       int64          `db:"project_id"`
	Message         string         `db:"message"`
	Culprit         string         `db:"culprit"`
	Data            types.JSONText `db:"data"`
	CreatedAt       time.Time      `db:"created_at"`
}

// GroupHash maps a dedupe fingerprint to its group. After a hard delete the
// hash is re-pointed at a tombstone instead.
type GroupHash struct {
	ID          int64  `db:"id"`
	ProjectID   int64  `db:"project_id"`
	Hash        string `db:"hash"`
	GroupID     *int64 `db:"group_id"`
	TombstoneID *int64 `db:"tombstone_id"`
}

type Bookmark struct {
	ID        int64     `db:"id"`
	GroupID   int64     `db:"group_id"`
	UserID    int64     `db:"user_id"`
	CreatedAt time.Time `db:"created_at"`
}

// Seen marks that a user has viewed a group.
type Seen struct {
	ID       int64     `db:"id"`
	GroupID  int64     `db:"group_id"`
	UserID   int64     `db:"user_id"`
	LastSeen time.Time `db:"last_seen"`
}

type Release struct {
	ID        int64     `db:"id"`
	ProjectID int64     `db:"project_id"`
	Version   string    `db:"version"`
	CreatedAt time.Time `db:"created_at"`
}

type Repository struct {
	ID   int64  `db:"id"`
	Name string `db:"name"`
}

type Commit struct {
	ID           int64  `db:"id"`
	RepositoryID int64  `db:"repository_id"`
	Key          string `db:"key"`
	ReleaseID    *int64 `db:"release_id"`
}

type User struct {
	ID                  int64  `db:"id"`
	Username            string `db:"username"`
	SelfAssignOnResolve bool   `db:"self_assign_on_resolve"`
}

type Team struct {
	ID   int64  `db:"id"`
	Slug string `db:"slug"`
}

// ExternalIssue is an issue in a third-party tracker linked to a group via a
// GroupLink row. Status changes are synced outbound per linked issue.
type ExternalIssue struct {
	ID            int64  `db:"id"`
	IntegrationID int64  `db:"integration_id"`
	Key           string `db:"key"`
}

// Task is a queued unit of asynchronous work stored in the outbox table.
type Task struct {
	ID          int64          `db:"id"`
	Name        string         `db:"name"`
	Payload     types.JSONText `db:"payload"`
	CreatedAt   time.Time      `db:"created_at"`
	ProcessedAt *time.Time     `db:"processed_at"`
}
