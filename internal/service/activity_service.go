package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-tracker/internal/events"
	"github.com/spec-kit/ticket-tracker/internal/observability"
)

// ActivityService records committed ticket activity in logs and metrics.
type ActivityService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	metrics    *observability.Metrics
}

// NewActivityService creates the service.
func NewActivityService(dispatcher events.Dispatcher, logger *zap.Logger, metrics *observability.Metrics) *ActivityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ActivityService{
		dispatcher: dispatcher,
		logger:     logger,
		metrics:    metrics,
	}
}

// RegisterHandlers subscribes to events.
func (a *ActivityService) RegisterHandlers() {
	if a.dispatcher == nil {
		return
	}
	a.dispatcher.Subscribe(events.EventTicketCreated, a.handleTicketCreated)
	a.dispatcher.Subscribe(events.EventTicketUpdated, a.handleTicketUpdated)
	a.dispatcher.Subscribe(events.EventTicketCommentAdded, a.handleCommentAdded)
}

func (a *ActivityService) handleTicketCreated(ctx context.Context, event events.Event) error {
	fields := a.baseFields(event)
	if payload, ok := event.Payload.(events.TicketCreatedPayload); ok {
		fields = append(fields,
			zap.Int("sla_hours", payload.SLAHours),
			zap.Time("sla_deadline", payload.SLADeadline))
	}
	a.logger.Info("TicketCreated", fields...)
	a.metrics.RecordEvent(string(event.Type))
	return nil
}

func (a *ActivityService) handleTicketUpdated(ctx context.Context, event events.Event) error {
	fields := a.baseFields(event)
	if payload, ok := event.Payload.(events.TicketUpdatedPayload); ok {
		fields = append(fields,
			zap.Int("version", payload.Version),
			zap.Strings("changed_fields", payload.ChangedFields))
	}
	a.logger.Info("TicketUpdated", fields...)
	a.metrics.RecordEvent(string(event.Type))
	return nil
}

func (a *ActivityService) handleCommentAdded(ctx context.Context, event events.Event) error {
	fields := a.baseFields(event)
	if payload, ok := event.Payload.(events.TicketCommentAddedPayload); ok {
		fields = append(fields, zap.String("comment_id", payload.CommentID))
		if payload.ParentID != nil {
			fields = append(fields, zap.String("parent_id", *payload.ParentID))
		}
	}
	a.logger.Info("TicketCommentAdded", fields...)
	a.metrics.RecordEvent(string(event.Type))
	return nil
}

func (a *ActivityService) baseFields(event events.Event) []zap.Field {
	return []zap.Field{
		zap.String("event_id", event.ID),
		zap.String("ticket_id", event.TicketID),
		zap.String("actor_id", event.Actor.ID),
		zap.String("actor_role", string(event.Actor.Role)),
	}
}
