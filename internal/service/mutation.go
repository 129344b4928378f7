package service

import (
	"fmt"

	"github.com/errwatch/issue-lifecycle-service/internal/apperrors"
	"github.com/errwatch/issue-lifecycle-service/internal/domain"
	"github.com/errwatch/issue-lifecycle-service/pkg/api"
)

// Actor identifies the caller of a mutation. AuthorizedProjects is supplied
// by the upstream auth layer; the engine never widens it.
type Actor struct {
	UserID             int64
	AuthorizedProjects []int64
}

// CanAccess reports whether the actor is authorized for the project.
func (a Actor) CanAccess(projectID int64) bool {
	for _, id := range a.AuthorizedProjects {
		if id == projectID {
			return true
		}
	}

	return false
}

// Selection names the issues a mutation targets: either explicit IDs or a
// search query. With neither, the default query "is:unresolved" applies.
type Selection struct {
	IDs   []int64
	Query string
	Sort  string
}

// StatusChange describes a requested status mutation together with its
// resolution or snooze detail.
type StatusChange struct {
	Status domain.GroupStatus

	// resolution details, mutually exclusive
	InNextRelease bool
	InRelease     string // version, or "latest"
	InCommit      *api.CommitRef

	// snooze details
	IgnoreDuration   *int // minutes from now
	IgnoreCount      *int
	IgnoreWindow     *int // minutes
	IgnoreUserCount  *int
	IgnoreUserWindow *int // minutes
}

// Mutation is the tagged request variant dispatched by the orchestrator. Each
// non-nil field is applied per issue; Merge and Discard are exclusive of all
// other fields and of each other.
type Mutation struct {
	Status       *StatusChange
	IsBookmarked *bool
	IsSubscribed *bool
	IsPublic     *bool
	HasSeen      *bool
	AssignedTo   *string // empty string clears the assignee
	Merge        bool
	Discard      bool
}

func (m *Mutation) isEmpty() bool {
	return m.Status == nil && m.IsBookmarked == nil && m.IsSubscribed == nil &&
		m.IsPublic == nil && m.HasSeen == nil && m.AssignedTo == nil &&
		!m.Merge && !m.Discard
}

func (m *Mutation) hasFieldMutations() bool {
	return m.Status != nil || m.IsBookmarked != nil || m.IsSubscribed != nil ||
		m.IsPublic != nil || m.HasSeen != nil || m.AssignedTo != nil
}

// Validate enforces the structural rules of a mutation request before any
// issue is touched.
func (m *Mutation) Validate() error {
	if m.isEmpty() {
		return fmt.Errorf("%w: no mutation fields provided", apperrors.ErrValidation)
	}

	if m.Merge && m.Discard {
		return apperrors.ErrExclusiveMutation
	}

	if (m.Merge || m.Discard) && m.hasFieldMutations() {
		return apperrors.ErrExclusiveMutation
	}

	if m.Status != nil {
		if err := m.Status.validate(); err != nil {
			return err
		}
	}

	return nil
}

func (sc *StatusChange) validate() error {
	switch sc.Status {
	case domain.StatusResolved, domain.StatusUnresolved, domain.StatusIgnored:
	default:
		return fmt.Errorf("%w: status '%s' cannot be requested directly", apperrors.ErrValidation, sc.Status)
	}

	details := 0
	if sc.InNextRelease {
		details++
	}

	if sc.InRelease != "" {
		details++
	}

	if sc.InCommit != nil {
		details++
	}

	if details > 1 {
		return fmt.Errorf("%w: only one resolution detail may be provided", apperrors.ErrValidation)
	}

	if details > 0 && sc.Status != domain.StatusResolved {
		return fmt.Errorf("%w: resolution details require status 'resolved'", apperrors.ErrValidation)
	}

	hasSnoozeDetail := sc.IgnoreDuration != nil || sc.IgnoreCount != nil || sc.IgnoreUserCount != nil
	if (hasSnoozeDetail || sc.IgnoreWindow != nil || sc.IgnoreUserWindow != nil) && sc.Status != domain.StatusIgnored {
		return fmt.Errorf("%w: snooze details require status 'ignored'", apperrors.ErrValidation)
	}

	if sc.IgnoreWindow != nil && sc.IgnoreCount == nil {
		return fmt.Errorf("%w: ignoreWindow requires ignoreCount", apperrors.ErrValidation)
	}

	if sc.IgnoreUserWindow != nil && sc.IgnoreUserCount == nil {
		return fmt.Errorf("%w: ignoreUserWindow requires ignoreUserCount", apperrors.ErrValidation)
	}

	return nil
}
