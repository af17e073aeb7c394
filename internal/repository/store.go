package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/spec-kit/ticket-tracker/internal/domain"
)

var (
	// ErrNotFound is returned when a looked-up row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrVersionMismatch is returned by a versioned write whose expected
	// version no longer matches the stored row.
	ErrVersionMismatch = errors.New("version mismatch")
)

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	// GetForUpdate reads the ticket and, inside a transaction, holds it
	// against concurrent writers until commit.
	GetForUpdate(ctx context.Context, id string) (*domain.Ticket, error)
	// UpdateVersioned persists ticket only if the stored version still
	// equals expectedVersion.
	UpdateVersioned(ctx context.Context, ticket *domain.Ticket, expectedVersion int) error
	List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
}

// CommentRepository manages ticket thread comments.
type CommentRepository interface {
	Create(ctx context.Context, comment *domain.Comment) error
	ListByTicket(ctx context.Context, ticketID string) ([]domain.Comment, error)
}

// TimelineRepository stores audit entries.
type TimelineRepository interface {
	Append(ctx context.Context, entry *domain.TimelineEntry) error
	ListByTicket(ctx context.Context, ticketID string) ([]domain.TimelineEntry, error)
}

// Repositories groups the repositories bound to one connection or
// transaction.
type Repositories struct {
	Tickets  TicketRepository
	Comments CommentRepository
	Timeline TimelineRepository
}

// Store is the transactional source of truth for tickets, comments and
// the timeline.
type Store interface {
	// Repositories returns repositories outside any transaction.
	Repositories() Repositories
	// WithinTx runs fn in a single transaction. The transaction commits
	// when fn returns nil and rolls back otherwise.
	WithinTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
	Ping(ctx context.Context) error
	Close()
}
