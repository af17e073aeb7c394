package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// TimelineAction captures what kind of activity an audit entry records.
type TimelineAction string

const (
	ActionCreateTicket TimelineAction = "create_ticket"
	ActionUpdateTicket TimelineAction = "update_ticket"
	ActionComment      TimelineAction = "comment"
)

// TimelineEntry is an immutable audit trail entry.
type TimelineEntry struct {
	ID        string
	TicketID  string
	ActorID   string
	Action    TimelineAction
	Data      TimelineData
	CreatedAt time.Time
}

// TimelineData is the action-specific payload of a timeline entry.
type TimelineData interface {
	Action() TimelineAction
}

// CreateData records the initial title of a ticket.
type CreateData struct {
	Title string `json:"title"`
}

func (CreateData) Action() TimelineAction { return ActionCreateTicket }

// UpdateData records exactly the fields applied by an update. Keys are
// the wire names of the fields (title, description, assign_to, status,
// sla_hours, sla_deadline).
type UpdateData struct {
	Changes map[string]any
}

func (UpdateData) Action() TimelineAction { return ActionUpdateTicket }

// MarshalJSON flattens the changed fields into the payload object.
func (d UpdateData) MarshalJSON() ([]byte, error) {
	if d.Changes == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(d.Changes)
}

// UnmarshalJSON reads a flat changed-fields object.
func (d *UpdateData) UnmarshalJSON(b []byte) error {
	changes := map[string]any{}
	if err := json.Unmarshal(b, &changes); err != nil {
		return err
	}
	d.Changes = changes
	return nil
}

// CommentData references the comment a timeline entry was written for.
type CommentData struct {
	CommentID string  `json:"comment_id"`
	ParentID  *string `json:"parent_id"`
}

func (CommentData) Action() TimelineAction { return ActionComment }

// DecodeTimelineData rebuilds the typed payload stored for an action.
func DecodeTimelineData(action TimelineAction, raw []byte) (TimelineData, error) {
	switch action {
	case ActionCreateTicket:
		var d CreateData
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, err
		}
		return d, nil
	case ActionUpdateTicket:
		var d UpdateData
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, err
		}
		return d, nil
	case ActionComment:
		var d CommentData
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, err
		}
		return d, nil
	default:
		return nil, fmt.Errorf("unknown timeline action %q", action)
	}
}
