package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "open"
	TicketStatusInProgress TicketStatus = "in_progress"
	TicketStatusClosed     TicketStatus = "closed"
)

var knownStatuses = map[TicketStatus]struct{}{
	TicketStatusOpen:       {},
	TicketStatusInProgress: {},
	TicketStatusClosed:     {},
}

// Valid reports whether the status is one the tracker understands.
func (s TicketStatus) Valid() bool {
	_, ok := knownStatuses[s]
	return ok
}

// DefaultSLAHours applies when a ticket is created without an SLA.
const DefaultSLAHours = 24

// Ticket is the aggregate for support requests.
type Ticket struct {
	ID          string
	Title       string
	Description *string
	CreatorID   string
	AssignTo    *string
	Status      TicketStatus
	SLAHours    int
	SLADeadline time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Version     int
}

// TicketView is a ticket annotated with read-time state.
type TicketView struct {
	Ticket
	Breached bool
}
