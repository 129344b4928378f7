package service

import (
	"context"
	"fmt"
	"time"

	"github.com/errwatch/issue-lifecycle-service/internal/domain"
	"github.com/errwatch/issue-lifecycle-service/internal/eventstream"
)

// SnoozeEvaluator decides whether an ignored issue should revert to
// unresolved. Absolute count thresholds are checked against the baselines
// captured when the snooze was created; windowed thresholds consult the
// event-stream's rate counters.
type SnoozeEvaluator struct {
	rates eventstream.RateProvider
}

func NewSnoozeEvaluator(rates eventstream.RateProvider) *SnoozeEvaluator {
	return &SnoozeEvaluator{rates: rates}
}

// Expired reports whether any snooze condition has been met for the group.
func (e *SnoozeEvaluator) Expired(ctx context.Context, group *domain.Group, snooze *domain.Snooze, now time.Time) (bool, error) {
	const op = "internal.service.snooze.Expired"

	if snooze.Until != nil && !now.Before(*snooze.Until) {
		return true, nil
	}

	if snooze.Count != nil {
		if snooze.Window == nil {
			if group.TimesSeen-snooze.BaselineTimesSeen >= *snooze.Count {
				return true, nil
			}
		} else {
			rates, err := e.rates.GroupRates(ctx, group.ID, *snooze.Window)
			if err != nil {
				return false, fmt.Errorf("%s: failed to get event rates: %w", op, err)
			}

			if rates.Events >= *snooze.Count {
				return true, nil
			}
		}
	}

	if snooze.UserCount != nil {
		if snooze.UserWindow == nil {
			if group.UsersSeen-snooze.BaselineUsersSeen >= *snooze.UserCount {
				return true, nil
			}
		} else {
			rates, err := e.rates.GroupRates(ctx, group.ID, *snooze.UserWindow)
			if err != nil {
				return false, fmt.Errorf("%s: failed to get user rates: %w", op, err)
			}

			if rates.Users >= *snooze.UserCount {
				return true, nil
			}
		}
	}

	return false, nil
}
