package domain

import "time"

// Comment is a single entry in a ticket discussion thread.
type Comment struct {
	ID        string
	TicketID  string
	ParentID  *string
	AuthorID  string
	Body      string
	CreatedAt time.Time
}
