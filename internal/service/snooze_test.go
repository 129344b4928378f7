package service

import (
	"context"
	"testing"
	"time"

	"github.com/errwatch/issue-lifecycle-service/internal/domain"
	"github.com/errwatch/issue-lifecycle-service/internal/eventstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnoozeEvaluator_Expired(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	intPtr := func(v int) *int { return &v }
	timePtr := func(v time.Time) *time.Time { return &v }

	testCases := []struct {
		name       string
		group      domain.Group
		snooze     domain.Snooze
		setupRates func(*RateProviderMock)
		expected   bool
	}{
		{
			name:     "Until in the past",
			group:    domain.Group{ID: 1},
			snooze:   domain.Snooze{Until: timePtr(now.Add(-time.Minute))},
			expected: true,
		},
		{
			name:     "Until in the future",
			group:    domain.Group{ID: 1},
			snooze:   domain.Snooze{Until: timePtr(now.Add(time.Minute))},
			expected: false,
		},
		{
			name:  "Absolute count reached against baseline",
			group: domain.Group{ID: 1, TimesSeen: 150},
			snooze: domain.Snooze{
				Count:             intPtr(100),
				BaselineTimesSeen: 50,
			},
			expected: true,
		},
		{
			name:  "Absolute count not reached",
			group: domain.Group{ID: 1, TimesSeen: 120},
			snooze: domain.Snooze{
				Count:             intPtr(100),
				BaselineTimesSeen: 50,
			},
			expected: false,
		},
		{
			name:  "Windowed count reached",
			group: domain.Group{ID: 1, TimesSeen: 5},
			snooze: domain.Snooze{
				Count:  intPtr(10),
				Window: intPtr(60),
			},
			setupRates: func(rpm *RateProviderMock) {
				rpm.On("GroupRates", ctx, int64(1), 60).
					Return(&eventstream.Rates{Events: 12}, nil).Once()
			},
			expected: true,
		},
		{
			name:  "Windowed count not reached",
			group: domain.Group{ID: 1, TimesSeen: 500},
			snooze: domain.Snooze{
				Count:  intPtr(10),
				Window: intPtr(60),
			},
			setupRates: func(rpm *RateProviderMock) {
				rpm.On("GroupRates", ctx, int64(1), 60).
					Return(&eventstream.Rates{Events: 3}, nil).Once()
			},
			expected: false,
		},
		{
			name:  "User count reached against baseline",
			group: domain.Group{ID: 1, UsersSeen: 40},
			snooze: domain.Snooze{
				UserCount:         intPtr(20),
				BaselineUsersSeen: 10,
			},
			expected: true,
		},
		{
			name:  "Windowed user count reached",
			group: domain.Group{ID: 1},
			snooze: domain.Snooze{
				UserCount:  intPtr(5),
				UserWindow: intPtr(30),
			},
			setupRates: func(rpm *RateProviderMock) {
				rpm.On("GroupRates", ctx, int64(1), 30).
					Return(&eventstream.Rates{Users: 6}, nil).Once()
			},
			expected: true,
		},
		{
			name:     "No conditions",
			group:    domain.Group{ID: 1, TimesSeen: 1000},
			snooze:   domain.Snooze{},
			expected: false,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rates := new(RateProviderMock)
			if tc.setupRates != nil {
				tc.setupRates(rates)
			}

			eval := NewSnoozeEvaluator(rates)

			expired, err := eval.Expired(ctx, &tc.group, &tc.snooze, now)

			require.NoError(t, err)
			assert.Equal(t, tc.expected, expired)
			rates.AssertExpectations(t)
		})
	}
}
