package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spec-kit/ticket-tracker/internal/domain"
)

type timelineRepository struct {
	db DBTX
}

// NewTimelineRepository builds repository.
func NewTimelineRepository(db DBTX) TimelineRepository {
	return &timelineRepository{db: db}
}

func (r *timelineRepository) Append(ctx context.Context, entry *domain.TimelineEntry) error {
	payload, err := json.Marshal(entry.Data)
	if err != nil {
		return fmt.Errorf("encode timeline data: %w", err)
	}
	const query = `
        INSERT INTO timeline (id, ticket_id, actor_id, action, data, created_at)
        VALUES ($1,$2,$3,$4,$5,$6)`
	_, err = r.db.Exec(ctx, query,
		entry.ID,
		entry.TicketID,
		entry.ActorID,
		string(entry.Action),
		payload,
		entry.CreatedAt,
	)
	return err
}

func (r *timelineRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.TimelineEntry, error) {
	const query = `
        SELECT id, ticket_id, actor_id, action, data, created_at
        FROM timeline WHERE ticket_id=$1 ORDER BY created_at ASC, seq ASC`
	rows, err := r.db.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.TimelineEntry{}
	for rows.Next() {
		var (
			entry  domain.TimelineEntry
			action string
			raw    []byte
		)
		if err := rows.Scan(
			&entry.ID,
			&entry.TicketID,
			&entry.ActorID,
			&action,
			&raw,
			&entry.CreatedAt,
		); err != nil {
			return nil, err
		}
		entry.Action = domain.TimelineAction(action)
		entry.CreatedAt = entry.CreatedAt.UTC()
		data, err := domain.DecodeTimelineData(entry.Action, raw)
		if err != nil {
			return nil, fmt.Errorf("decode timeline %s: %w", entry.ID, err)
		}
		entry.Data = data
		result = append(result, entry)
	}
	return result, rows.Err()
}
