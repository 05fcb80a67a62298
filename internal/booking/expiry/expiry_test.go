package expiry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWillExpireAt(t *testing.T) {
	created := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		lead     time.Duration
		expected time.Time
	}{
		{
			name:     "due in one hour expires at due",
			lead:     time.Hour,
			expected: created.Add(time.Hour),
		},
		{
			name:     "due in exactly 90 minutes expires at due",
			lead:     90 * time.Minute,
			expected: created.Add(90 * time.Minute),
		},
		{
			name:     "due in 91 minutes gets 90 minutes from creation",
			lead:     91 * time.Minute,
			expected: created.Add(90 * time.Minute),
		},
		{
			name:     "due in 8 hours gets 90 minutes from creation",
			lead:     8 * time.Hour,
			expected: created.Add(90 * time.Minute),
		},
		{
			name:     "due in exactly 24 hours gets 90 minutes from creation",
			lead:     24 * time.Hour,
			expected: created.Add(90 * time.Minute),
		},
		{
			name:     "due in 24 and a half hours counts as 24 whole hours",
			lead:     24*time.Hour + 30*time.Minute,
			expected: created.Add(90 * time.Minute),
		},
		{
			name:     "due in 25 hours gets 16 hours from creation",
			lead:     25 * time.Hour,
			expected: created.Add(16 * time.Hour),
		},
		{
			name:     "due in 30 hours gets 16 hours from creation",
			lead:     30 * time.Hour,
			expected: created.Add(16 * time.Hour),
		},
		{
			name:     "due in exactly 72 hours gets 16 hours from creation",
			lead:     72 * time.Hour,
			expected: created.Add(16 * time.Hour),
		},
		{
			name:     "due in 72 and a half hours counts as 72 whole hours",
			lead:     72*time.Hour + 30*time.Minute,
			expected: created.Add(16 * time.Hour),
		},
		{
			name:     "due in 73 hours expires 48 hours before due",
			lead:     73 * time.Hour,
			expected: created.Add(25 * time.Hour),
		},
		{
			name:     "due in 6 days expires 48 hours before due",
			lead:     6 * 24 * time.Hour,
			expected: created.Add(6*24*time.Hour - 48*time.Hour),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			due := created.Add(tt.lead)
			assert.True(t, tt.expected.Equal(WillExpireAt(due, created)), "got %s", WillExpireAt(due, created))
		})
	}
}

func TestWillExpireAt_Deterministic(t *testing.T) {
	created := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	due := created.Add(50 * time.Hour)

	first := WillExpireAt(due, created)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, WillExpireAt(due, created))
	}
}

func TestWillExpireAt_DueBeforeCreation(t *testing.T) {
	// Reopened bookings may be recomputed after their due time; the lead is absolute.
	created := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	due := created.Add(-30 * time.Minute)

	assert.Equal(t, due, WillExpireAt(due, created))
}
