package repository

import (
	"strings"
	"time"

	"github.com/spec-kit/ticket-tracker/internal/domain"
	"github.com/spec-kit/ticket-tracker/internal/sla"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// TicketFilter captures listing parameters. All set predicates are ANDed.
type TicketFilter struct {
	Status   *domain.TicketStatus
	AssignTo *string
	Breached bool
	Search   *string
	// Now is the reference instant for the breach predicate.
	Now    time.Time
	Limit  int
	Offset int
}

// Normalize applies pagination defaults and bounds.
func (f TicketFilter) Normalize() TicketFilter {
	if f.Limit <= 0 {
		f.Limit = DefaultLimit
	}
	if f.Limit > MaxLimit {
		f.Limit = MaxLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

// SearchTerm returns the trimmed search text and whether it is set.
func (f TicketFilter) SearchTerm() (string, bool) {
	if f.Search == nil {
		return "", false
	}
	term := strings.TrimSpace(*f.Search)
	return term, term != ""
}

// Match evaluates the filter against a ticket whose most recent comment
// body is latestComment (empty when the ticket has no comments). Search
// is a case-insensitive substring match.
func (f TicketFilter) Match(t domain.Ticket, latestComment string) bool {
	if f.Breached && !sla.IsBreached(t.SLADeadline, t.Status, f.Now) {
		return false
	}
	if f.Status != nil && t.Status != *f.Status {
		return false
	}
	if f.AssignTo != nil && (t.AssignTo == nil || *t.AssignTo != *f.AssignTo) {
		return false
	}
	if term, ok := f.SearchTerm(); ok {
		needle := strings.ToLower(term)
		description := ""
		if t.Description != nil {
			description = *t.Description
		}
		if !strings.Contains(strings.ToLower(t.Title), needle) &&
			!strings.Contains(strings.ToLower(description), needle) &&
			!strings.Contains(strings.ToLower(latestComment), needle) {
			return false
		}
	}
	return true
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// likePattern builds a LIKE pattern matching term literally anywhere.
func likePattern(term string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(term)) + "%"
}
