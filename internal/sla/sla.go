// Package sla derives ticket deadlines and the breach predicate.
package sla

import (
	"time"

	"github.com/spec-kit/ticket-tracker/internal/domain"
)

// ComputeDeadline adds slaHours whole hours to createdAt. Times are held in
// UTC, which has no DST or leap-second discontinuities, so elapsed-time
// addition equals calendar-hour addition and the result round-trips.
func ComputeDeadline(createdAt time.Time, slaHours int) time.Time {
	return createdAt.UTC().Add(time.Duration(slaHours) * time.Hour)
}

// IsBreached reports whether now is past the deadline of a ticket that is
// still not closed. Closed tickets are never breached.
func IsBreached(deadline time.Time, status domain.TicketStatus, now time.Time) bool {
	if status == domain.TicketStatusClosed {
		return false
	}
	return now.After(deadline)
}

// NormalizeHours returns hours when positive, otherwise fallback.
func NormalizeHours(hours *int, fallback int) int {
	if hours == nil || *hours <= 0 {
		return fallback
	}
	return *hours
}
