package dto

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spec-kit/ticket-tracker/internal/domain"
)

// FieldError reports a request field that could not be decoded.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// CreateTicketRequest payload. SLAHours is nil unless sla_hours is a
// positive JSON integer; any other value falls back to the default.
type CreateTicketRequest struct {
	Title       string  `json:"title"`
	Description *string `json:"description"`
	SLAHours    *int    `json:"sla_hours"`
}

// UnmarshalJSON decodes the body, treating a malformed sla_hours as absent.
func (r *CreateTicketRequest) UnmarshalJSON(b []byte) error {
	var body struct {
		Title       string          `json:"title"`
		Description *string         `json:"description"`
		SLAHours    json.RawMessage `json:"sla_hours"`
	}
	if err := json.Unmarshal(b, &body); err != nil {
		return err
	}
	r.Title = body.Title
	r.Description = body.Description
	r.SLAHours = positiveInt(body.SLAHours)
	return nil
}

// positiveInt returns the value of v when it is a JSON integer greater
// than zero. Strings, fractions, exponents and null yield nil.
func positiveInt(v json.RawMessage) *int {
	v = bytes.TrimSpace(v)
	if len(v) == 0 || v[0] < '1' || v[0] > '9' {
		return nil
	}
	var n int
	if err := json.Unmarshal(v, &n); err != nil || n <= 0 {
		return nil
	}
	return &n
}

// OptionalString is a JSON field that may be absent, null or a string.
type OptionalString struct {
	Set   bool
	Value *string
}

// UpdateTicketRequest payload. Only keys present in the body are set;
// unknown keys are ignored.
type UpdateTicketRequest struct {
	Version     *int
	Title       *string
	Description OptionalString
	AssignTo    OptionalString
	Status      *domain.TicketStatus
	SLAHours    *int
}

// UnmarshalJSON records which keys were present so null can be told
// apart from absent.
func (r *UpdateTicketRequest) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return &FieldError{Field: "body", Reason: "must be a JSON object"}
	}

	if v, ok := raw["version"]; ok && !isNull(v) {
		var version int
		if err := json.Unmarshal(v, &version); err != nil {
			return &FieldError{Field: "version", Reason: "must be an integer"}
		}
		r.Version = &version
	}
	if v, ok := raw["title"]; ok {
		var title string
		if isNull(v) || json.Unmarshal(v, &title) != nil {
			return &FieldError{Field: "title", Reason: "must be a string"}
		}
		r.Title = &title
	}
	if v, ok := raw["description"]; ok {
		value, err := decodeOptionalString("description", v)
		if err != nil {
			return err
		}
		r.Description = value
	}
	if v, ok := raw["assign_to"]; ok {
		value, err := decodeOptionalString("assign_to", v)
		if err != nil {
			return err
		}
		r.AssignTo = value
	}
	if v, ok := raw["status"]; ok {
		var status string
		if isNull(v) || json.Unmarshal(v, &status) != nil {
			return &FieldError{Field: "status", Reason: "must be a string"}
		}
		s := domain.TicketStatus(status)
		r.Status = &s
	}
	if v, ok := raw["sla_hours"]; ok {
		var hours int
		if isNull(v) || json.Unmarshal(v, &hours) != nil {
			return &FieldError{Field: "sla_hours", Reason: "must be an integer"}
		}
		r.SLAHours = &hours
	}
	return nil
}

func decodeOptionalString(field string, v json.RawMessage) (OptionalString, error) {
	if isNull(v) {
		return OptionalString{Set: true}, nil
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return OptionalString{}, &FieldError{Field: field, Reason: "must be a string or null"}
	}
	return OptionalString{Set: true, Value: &s}, nil
}

func isNull(v json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(v), []byte("null"))
}

// CreateCommentRequest payload.
type CreateCommentRequest struct {
	Body     string  `json:"body"`
	ParentID *string `json:"parent_id"`
}

// TicketResponse is the wire form of a ticket.
type TicketResponse struct {
	ID          string              `json:"id"`
	Title       string              `json:"title"`
	Description *string             `json:"description"`
	CreatorID   string              `json:"creator_id"`
	AssignTo    *string             `json:"assign_to"`
	Status      domain.TicketStatus `json:"status"`
	SLAHours    int                 `json:"sla_hours"`
	SLADeadline time.Time           `json:"sla_deadline"`
	Breached    bool                `json:"breached"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
	Version     int                 `json:"version"`
}

// TicketListResponse is one page of tickets.
type TicketListResponse struct {
	Items  []TicketResponse `json:"items"`
	Limit  int              `json:"limit"`
	Offset int              `json:"offset"`
}

// CommentResponse represents a comment.
type CommentResponse struct {
	ID        string    `json:"id"`
	TicketID  string    `json:"ticket_id"`
	ParentID  *string   `json:"parent_id"`
	AuthorID  string    `json:"author_id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// CommentNodeResponse is a comment with its replies.
type CommentNodeResponse struct {
	CommentResponse
	Children []CommentNodeResponse `json:"children"`
}

// TimelineEntryResponse represents an audit entry.
type TimelineEntryResponse struct {
	ID        string                `json:"id"`
	TicketID  string                `json:"ticket_id"`
	ActorID   string                `json:"actor_id"`
	Action    domain.TimelineAction `json:"action"`
	Data      domain.TimelineData   `json:"data"`
	CreatedAt time.Time             `json:"created_at"`
}

// TicketDetailResponse provides full ticket info.
type TicketDetailResponse struct {
	Ticket   TicketResponse          `json:"ticket"`
	Comments []CommentNodeResponse   `json:"comments"`
	Timeline []TimelineEntryResponse `json:"timeline"`
}
