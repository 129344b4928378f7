package apperrors

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound      = errors.New("resource not found")
	ErrAlreadyExists = errors.New("resource already exists")

	ErrInvalidRequest = errors.New("invalid request body")
	ErrValidation     = errors.New("validation failed")
	ErrPermission     = errors.New("permission denied")

	ErrMergeNotEnough    = errors.New("merge requires at least two issues")
	ErrExclusiveMutation = errors.New("merge and discard cannot be combined with other mutations")
	ErrNoRelease         = errors.New("no release associated with this project")
)

// InvalidQueryError reports a search query that could not be parsed.
type InvalidQueryError struct {
	Query  string
	Reason string
}

func (e *InvalidQueryError) Error() string {
	return fmt.Sprintf("invalid query '%s': %s", e.Query, e.Reason)
}
func (e *InvalidQueryError) Is(target error) bool { return target == ErrValidation }

// UnknownCommitError reports an inCommit resolution referencing a commit
// that does not exist in the given repository.
type UnknownCommitError struct {
	Commit     string
	Repository string
}

func (e *UnknownCommitError) Error() string {
	return fmt.Sprintf("unknown commit '%s' in repository '%s'", e.Commit, e.Repository)
}
func (e *UnknownCommitError) Is(target error) bool { return target == ErrValidation }

// InvalidAssigneeError reports an assignedTo value whose user or team is not
// a member of the target project.
type InvalidAssigneeError struct{ Assignee string }

func (e *InvalidAssigneeError) Error() string {
	return fmt.Sprintf("assignee '%s' is not a member of this project", e.Assignee)
}
func (e *InvalidAssigneeError) Is(target error) bool { return target == ErrValidation }

// CrossProjectMergeError reports a merge selection spanning more than one project.
type CrossProjectMergeError struct{ ProjectIDs []int64 }

func (e *CrossProjectMergeError) Error() string {
	return fmt.Sprintf("cannot merge issues across projects: %v", e.ProjectIDs)
}
func (e *CrossProjectMergeError) Is(target error) bool { return target == ErrValidation }
