package sla

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/spec-kit/ticket-tracker/internal/domain"
)

func TestComputeDeadline(t *testing.T) {
	created := time.Date(2024, 3, 9, 22, 15, 0, 0, time.UTC)

	assert.Equal(t, created.Add(24*time.Hour), ComputeDeadline(created, 24))
	assert.Equal(t, created.Add(48*time.Hour), ComputeDeadline(created, 48))
	assert.Equal(t, ComputeDeadline(created, 48), ComputeDeadline(created, 48))

	// Across the US spring-forward boundary the instant is still +4h.
	ny, err := time.LoadLocation("America/New_York")
	if err == nil {
		local := time.Date(2024, 3, 10, 0, 30, 0, 0, ny)
		got := ComputeDeadline(local, 4)
		assert.Equal(t, 4*time.Hour, got.Sub(local))
		assert.Equal(t, time.UTC, got.Location())
	}
}

func TestIsBreached(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	cases := []struct {
		name     string
		deadline time.Time
		status   domain.TicketStatus
		want     bool
	}{
		{"open past deadline", past, domain.TicketStatusOpen, true},
		{"in progress past deadline", past, domain.TicketStatusInProgress, true},
		{"closed past deadline", past, domain.TicketStatusClosed, false},
		{"open before deadline", future, domain.TicketStatusOpen, false},
		{"exactly at deadline", now, domain.TicketStatusOpen, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsBreached(tc.deadline, tc.status, now))
		})
	}
}

func TestNormalizeHours(t *testing.T) {
	neg, zero, six := -3, 0, 6
	assert.Equal(t, 24, NormalizeHours(nil, 24))
	assert.Equal(t, 24, NormalizeHours(&neg, 24))
	assert.Equal(t, 24, NormalizeHours(&zero, 24))
	assert.Equal(t, 6, NormalizeHours(&six, 24))
}
