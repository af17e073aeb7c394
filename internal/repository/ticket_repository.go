package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/ticket-tracker/internal/domain"
)

const ticketColumns = `t.id, t.title, t.description, t.creator_id, t.assign_to, t.status,
               t.sla_hours, t.sla_deadline, t.created_at, t.updated_at, t.version`

type ticketRepository struct {
	db DBTX
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(db DBTX) TicketRepository {
	return &ticketRepository{db: db}
}

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (id, title, description, creator_id, assign_to, status, sla_hours, sla_deadline, created_at, updated_at, version)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`
	_, err := r.db.Exec(ctx, query,
		ticket.ID,
		ticket.Title,
		ticket.Description,
		ticket.CreatorID,
		ticket.AssignTo,
		string(ticket.Status),
		ticket.SLAHours,
		ticket.SLADeadline,
		ticket.CreatedAt,
		ticket.UpdatedAt,
		ticket.Version,
	)
	return err
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets t WHERE t.id=$1`
	return r.fetchSingle(ctx, query, id)
}

func (r *ticketRepository) GetForUpdate(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets t WHERE t.id=$1 FOR UPDATE`
	return r.fetchSingle(ctx, query, id)
}

func (r *ticketRepository) UpdateVersioned(ctx context.Context, ticket *domain.Ticket, expectedVersion int) error {
	const query = `
        UPDATE tickets SET title=$1, description=$2, assign_to=$3, status=$4, sla_hours=$5,
            sla_deadline=$6, updated_at=$7, version=$8
        WHERE id=$9 AND version=$10`
	cmd, err := r.db.Exec(ctx, query,
		ticket.Title,
		ticket.Description,
		ticket.AssignTo,
		string(ticket.Status),
		ticket.SLAHours,
		ticket.SLADeadline,
		ticket.UpdatedAt,
		ticket.Version,
		ticket.ID,
		expectedVersion,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrVersionMismatch
	}
	return nil
}

func (r *ticketRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Ticket, error) {
	ticket, err := scanTicket(r.db.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return ticket, nil
}

func (r *ticketRepository) List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	filter = filter.Normalize()
	base := `SELECT ` + ticketColumns + ` FROM tickets t`
	clauses := []string{"1=1"}
	args := []any{}

	if filter.Breached {
		args = append(args, filter.Now, string(domain.TicketStatusClosed))
		clauses = append(clauses, fmt.Sprintf("t.sla_deadline < $%d AND t.status <> $%d", len(args)-1, len(args)))
	}
	if filter.Status != nil {
		args = append(args, string(*filter.Status))
		clauses = append(clauses, fmt.Sprintf("t.status=$%d", len(args)))
	}
	if filter.AssignTo != nil {
		args = append(args, *filter.AssignTo)
		clauses = append(clauses, fmt.Sprintf("t.assign_to=$%d", len(args)))
	}
	if term, ok := filter.SearchTerm(); ok {
		// Only the single most recent comment of each ticket is searched.
		base += `
             LEFT JOIN LATERAL (
                 SELECT c.body FROM comments c
                 WHERE c.ticket_id = t.id
                 ORDER BY c.created_at DESC, c.seq DESC
                 LIMIT 1
             ) lc ON TRUE`
		args = append(args, likePattern(term))
		placeholder := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf(
			"(LOWER(t.title) LIKE %[1]s OR LOWER(COALESCE(t.description, '')) LIKE %[1]s OR LOWER(COALESCE(lc.body, '')) LIKE %[1]s)",
			placeholder))
	}

	query := fmt.Sprintf(`%s WHERE %s ORDER BY t.created_at DESC, t.id DESC LIMIT %d OFFSET %d`,
		base, strings.Join(clauses, " AND "), filter.Limit, filter.Offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.Ticket{}
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var ticket domain.Ticket
	var status string
	if err := row.Scan(
		&ticket.ID,
		&ticket.Title,
		&ticket.Description,
		&ticket.CreatorID,
		&ticket.AssignTo,
		&status,
		&ticket.SLAHours,
		&ticket.SLADeadline,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
		&ticket.Version,
	); err != nil {
		return nil, err
	}
	ticket.Status = domain.TicketStatus(status)
	ticket.SLADeadline = ticket.SLADeadline.UTC()
	ticket.CreatedAt = ticket.CreatedAt.UTC()
	ticket.UpdatedAt = ticket.UpdatedAt.UTC()
	return &ticket, nil
}
