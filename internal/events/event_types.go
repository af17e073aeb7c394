package events

import (
	"time"

	"github.com/spec-kit/ticket-tracker/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated      EventType = "ticket_created"
	EventTicketUpdated      EventType = "ticket_updated"
	EventTicketCommentAdded EventType = "ticket_comment_added"
)

// Actor encapsulates actor metadata for an event.
type Actor struct {
	ID   string      `json:"id"`
	Role domain.Role `json:"role"`
}

// Event represents a domain event emitted after a commit.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  string      `json:"ticket_id"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	Title       string    `json:"title"`
	SLAHours    int       `json:"sla_hours"`
	SLADeadline time.Time `json:"sla_deadline"`
}

// TicketUpdatedPayload payload.
type TicketUpdatedPayload struct {
	Version       int      `json:"version"`
	ChangedFields []string `json:"changed_fields"`
}

// TicketCommentAddedPayload payload.
type TicketCommentAddedPayload struct {
	CommentID   string  `json:"comment_id"`
	ParentID    *string `json:"parent_id,omitempty"`
	BodyPreview string  `json:"body_preview"`
}
