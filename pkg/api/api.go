// Package api defines the wire types exposed by the HTTP transport layer.
// Response field shapes are fixed by the public API contract and must not
// change between releases.
package api

import "time"

type GroupStatus string

const (
	GroupStatusUNRESOLVED GroupStatus = "unresolved"
	GroupStatusRESOLVED   GroupStatus = "resolved"
	GroupStatusIGNORED    GroupStatus = "ignored"
)

// AssigneeType discriminates the owner kind in an AssigneeRef.
type AssigneeType string

const (
	AssigneeTypeUser AssigneeType = "user"
	AssigneeTypeTeam AssigneeType = "team"
)

// AssigneeRef identifies the user or team that owns an issue.
type AssigneeRef struct {
	Id   int64        `json:"id"`
	Type AssigneeType `json:"type"`
}

// UserRef identifies the acting user in status details.
type UserRef struct {
	Id   int64  `json:"id"`
	Name string `json:"name"`
}

// CommitRef names a commit by key within a repository.
type CommitRef struct {
	Commit     string `json:"commit"`
	Repository string `json:"repository"`
}

// StatusDetails echoes the resolved detail of a status mutation. Which keys
// are present depends on the resolution or snooze variant that was applied.
type StatusDetails struct {
	InRelease        string     `json:"inRelease,omitempty"`
	InNextRelease    bool       `json:"inNextRelease,omitempty"`
	InCommit         *CommitRef `json:"inCommit,omitempty"`
	IgnoreUntil      *time.Time `json:"ignoreUntil,omitempty"`
	IgnoreCount      *int       `json:"ignoreCount,omitempty"`
	IgnoreWindow     *int       `json:"ignoreWindow,omitempty"`
	IgnoreUserCount  *int       `json:"ignoreUserCount,omitempty"`
	IgnoreUserWindow *int       `json:"ignoreUserWindow,omitempty"`
	Actor            *UserRef   `json:"actor,omitempty"`
}

// MergeResult reports the surviving issue and the issues merged into it.
type MergeResult struct {
	Parent   int64   `json:"parent"`
	Children []int64 `json:"children"`
}

// MutateResponse aggregates the net effect of a bulk mutation. Scalar fields
// report the last-applied value across the batch, not per-issue values.
type MutateResponse struct {
	Status        *GroupStatus   `json:"status,omitempty"`
	StatusDetails *StatusDetails `json:"statusDetails,omitempty"`
	IsBookmarked  *bool          `json:"isBookmarked,omitempty"`
	IsSubscribed  *bool          `json:"isSubscribed,omitempty"`
	IsPublic      *bool          `json:"isPublic,omitempty"`
	ShareId       *string        `json:"shareId,omitempty"`
	HasSeen       *bool          `json:"hasSeen,omitempty"`
	AssignedTo    *AssigneeRef   `json:"assignedTo"`
	Merge         *MergeResult   `json:"merge,omitempty"`
	Discarded     *bool          `json:"discarded,omitempty"`
}

type ErrorCode string

const (
	VALIDATION ErrorCode = "VALIDATION_FAILED"
	PERMISSION ErrorCode = "PERMISSION_DENIED"
	NOTFOUND   ErrorCode = "NOT_FOUND"
	INTERNAL   ErrorCode = "INTERNAL"
)

type ErrorResponse struct {
	Error struct {
		Code    ErrorCode `json:"code"`
		Message string    `json:"message"`
	} `json:"error"`
}
