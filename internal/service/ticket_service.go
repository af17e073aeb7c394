package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-tracker/internal/clock"
	"github.com/spec-kit/ticket-tracker/internal/domain"
	"github.com/spec-kit/ticket-tracker/internal/events"
	"github.com/spec-kit/ticket-tracker/internal/repository"
	"github.com/spec-kit/ticket-tracker/internal/sla"
	"github.com/spec-kit/ticket-tracker/internal/thread"
	apperrors "github.com/spec-kit/ticket-tracker/pkg/util/errorutil"
)

// Wire names of patchable ticket fields, also used as timeline keys.
const (
	FieldTitle       = "title"
	FieldDescription = "description"
	FieldAssignTo    = "assign_to"
	FieldStatus      = "status"
	FieldSLAHours    = "sla_hours"
	FieldSLADeadline = "sla_deadline"
)

// TicketService coordinates ticket workflows.
type TicketService struct {
	store           repository.Store
	clock           clock.Clock
	ids             clock.IDGenerator
	dispatcher      events.Dispatcher
	logger          *zap.Logger
	defaultSLAHours int
	pageLimit       int
	maxPageLimit    int
}

// TicketDependencies bundles collaborators for ticket service.
type TicketDependencies struct {
	Store           repository.Store
	Clock           clock.Clock
	IDs             clock.IDGenerator
	Dispatcher      events.Dispatcher
	Logger          *zap.Logger
	DefaultSLAHours int
	PageLimit       int
	MaxPageLimit    int
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	Title       string
	Description *string
	SLAHours    *int
}

// NullableString distinguishes an absent field from one explicitly set,
// possibly to null.
type NullableString struct {
	Set   bool
	Value *string
}

// TicketPatch holds the fields present in an update request.
type TicketPatch struct {
	Title       *string
	Description NullableString
	AssignTo    NullableString
	Status      *domain.TicketStatus
	SLAHours    *int
}

// TicketUpdateInput describes a versioned partial update.
type TicketUpdateInput struct {
	TicketID string
	Version  *int
	Patch    TicketPatch
}

// CommentCreateInput describes a new comment.
type CommentCreateInput struct {
	TicketID string
	Body     string
	ParentID *string
}

// TicketListFilter describes listing filters.
type TicketListFilter struct {
	Status   *domain.TicketStatus
	AssignTo *string
	Breached bool
	Search   *string
	Limit    int
	Offset   int
}

// TicketListResult is a page of tickets.
type TicketListResult struct {
	Items  []domain.TicketView
	Limit  int
	Offset int
}

// TicketDetail is the full read model of one ticket.
type TicketDetail struct {
	Ticket   domain.TicketView
	Comments []*thread.Node
	Timeline []domain.TimelineEntry
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	svc := &TicketService{
		store:           deps.Store,
		clock:           deps.Clock,
		ids:             deps.IDs,
		dispatcher:      deps.Dispatcher,
		logger:          deps.Logger,
		defaultSLAHours: deps.DefaultSLAHours,
		pageLimit:       deps.PageLimit,
		maxPageLimit:    deps.MaxPageLimit,
	}
	if svc.clock == nil {
		svc.clock = clock.Real()
	}
	if svc.ids == nil {
		svc.ids = clock.UUIDs()
	}
	if svc.logger == nil {
		svc.logger = zap.NewNop()
	}
	if svc.defaultSLAHours <= 0 {
		svc.defaultSLAHours = domain.DefaultSLAHours
	}
	if svc.maxPageLimit <= 0 || svc.maxPageLimit > repository.MaxLimit {
		svc.maxPageLimit = repository.MaxLimit
	}
	if svc.pageLimit <= 0 || svc.pageLimit > svc.maxPageLimit {
		svc.pageLimit = min(repository.DefaultLimit, svc.maxPageLimit)
	}
	return svc
}

// CreateTicket opens a ticket on behalf of actor.
func (s *TicketService) CreateTicket(ctx context.Context, actor domain.Actor, input TicketCreateInput) (*domain.TicketView, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, apperrors.NewValidationError("title required", map[string]any{"field": FieldTitle})
	}

	now := s.clock.Now()
	hours := sla.NormalizeHours(input.SLAHours, s.defaultSLAHours)
	ticket := &domain.Ticket{
		ID:          s.ids.NewID(),
		Title:       title,
		Description: input.Description,
		CreatorID:   actor.ID,
		Status:      domain.TicketStatusOpen,
		SLAHours:    hours,
		SLADeadline: sla.ComputeDeadline(now, hours),
		CreatedAt:   now,
		UpdatedAt:   now,
		Version:     1,
	}

	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		if err := repos.Tickets.Create(ctx, ticket); err != nil {
			return err
		}
		return repos.Timeline.Append(ctx, s.timelineEntry(ticket.ID, actor, domain.CreateData{Title: ticket.Title}))
	})
	if err != nil {
		return nil, apperrors.WrapStore(err)
	}

	s.logger.Info("ticket created",
		zap.String("ticket_id", ticket.ID),
		zap.String("actor_id", actor.ID),
		zap.Int("sla_hours", ticket.SLAHours))
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		Actor:    eventActor(actor),
		Payload: events.TicketCreatedPayload{
			Title:       ticket.Title,
			SLAHours:    ticket.SLAHours,
			SLADeadline: ticket.SLADeadline,
		},
	})
	return s.view(*ticket), nil
}

// UpdateTicket applies a role-gated partial update guarded by the ticket
// version. The version check, the write and the timeline entry commit
// together or not at all.
func (s *TicketService) UpdateTicket(ctx context.Context, actor domain.Actor, input TicketUpdateInput) (*domain.TicketView, error) {
	var (
		updated *domain.Ticket
		changes map[string]any
	)
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		ticket, err := repos.Tickets.GetForUpdate(ctx, input.TicketID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return apperrors.NewNotFound("ticket", map[string]any{"ticket_id": input.TicketID})
			}
			return err
		}
		if input.Version == nil {
			return apperrors.NewValidationError("version required", map[string]any{"field": "version"})
		}
		if *input.Version != ticket.Version {
			return staleVersion(input.TicketID, *input.Version, ticket.Version)
		}
		if err := authorizePatch(actor, input.Patch); err != nil {
			return err
		}
		changes, err = applyPatch(ticket, input.Patch)
		if err != nil {
			return err
		}

		expected := ticket.Version
		ticket.UpdatedAt = s.clock.Now()
		ticket.Version = expected + 1
		if err := repos.Tickets.UpdateVersioned(ctx, ticket, expected); err != nil {
			if errors.Is(err, repository.ErrVersionMismatch) {
				return apperrors.NewConflict("stale version", map[string]any{
					"ticket_id":        input.TicketID,
					"supplied_version": expected,
				})
			}
			return err
		}
		updated = ticket
		return repos.Timeline.Append(ctx, s.timelineEntry(ticket.ID, actor, domain.UpdateData{Changes: changes}))
	})
	if err != nil {
		return nil, apperrors.WrapStore(err)
	}

	fields := changedFields(changes)
	s.logger.Info("ticket updated",
		zap.String("ticket_id", updated.ID),
		zap.String("actor_id", actor.ID),
		zap.Int("version", updated.Version),
		zap.Strings("fields", fields))
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketUpdated,
		TicketID: updated.ID,
		Actor:    eventActor(actor),
		Payload: events.TicketUpdatedPayload{
			Version:       updated.Version,
			ChangedFields: fields,
		},
	})
	return s.view(*updated), nil
}

// AddComment appends a comment to a ticket thread. The parent reference
// is stored as given; a parent that does not exist renders as a root.
func (s *TicketService) AddComment(ctx context.Context, actor domain.Actor, input CommentCreateInput) (*domain.Comment, error) {
	// Blank check only; the body is kept byte for byte.
	if strings.TrimSpace(input.Body) == "" {
		return nil, apperrors.NewValidationError("body required", map[string]any{"field": "body"})
	}
	parentID := input.ParentID
	if parentID != nil && strings.TrimSpace(*parentID) == "" {
		parentID = nil
	}

	comment := &domain.Comment{
		TicketID: input.TicketID,
		ParentID: parentID,
		AuthorID: actor.ID,
		Body:     input.Body,
	}
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		// Locking the ticket row orders this comment with concurrent updates.
		if _, err := repos.Tickets.GetForUpdate(ctx, input.TicketID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return apperrors.NewNotFound("ticket", map[string]any{"ticket_id": input.TicketID})
			}
			return err
		}
		comment.ID = s.ids.NewID()
		comment.CreatedAt = s.clock.Now()
		if err := repos.Comments.Create(ctx, comment); err != nil {
			return err
		}
		return repos.Timeline.Append(ctx, s.timelineEntry(input.TicketID, actor, domain.CommentData{
			CommentID: comment.ID,
			ParentID:  comment.ParentID,
		}))
	})
	if err != nil {
		return nil, apperrors.WrapStore(err)
	}

	s.logger.Info("comment added",
		zap.String("ticket_id", comment.TicketID),
		zap.String("comment_id", comment.ID),
		zap.String("actor_id", actor.ID))
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketCommentAdded,
		TicketID: comment.TicketID,
		Actor:    eventActor(actor),
		Payload: events.TicketCommentAddedPayload{
			CommentID:   comment.ID,
			ParentID:    comment.ParentID,
			BodyPreview: stringPreview(comment.Body, 120),
		},
	})
	return comment, nil
}

// ListTickets returns a filtered page of tickets, newest first.
func (s *TicketService) ListTickets(ctx context.Context, filter TicketListFilter) (*TicketListResult, error) {
	now := s.clock.Now()
	limit := filter.Limit
	if limit <= 0 {
		limit = s.pageLimit
	}
	if limit > s.maxPageLimit {
		limit = s.maxPageLimit
	}
	repoFilter := repository.TicketFilter{
		Status:   filter.Status,
		AssignTo: filter.AssignTo,
		Breached: filter.Breached,
		Search:   filter.Search,
		Now:      now,
		Limit:    limit,
		Offset:   filter.Offset,
	}.Normalize()

	tickets, err := s.store.Repositories().Tickets.List(ctx, repoFilter)
	if err != nil {
		return nil, apperrors.NewStoreError(err)
	}
	items := make([]domain.TicketView, 0, len(tickets))
	for _, t := range tickets {
		items = append(items, domain.TicketView{Ticket: t, Breached: sla.IsBreached(t.SLADeadline, t.Status, now)})
	}
	return &TicketListResult{Items: items, Limit: repoFilter.Limit, Offset: repoFilter.Offset}, nil
}

// GetTicketDetail assembles a ticket with its comment forest and timeline.
func (s *TicketService) GetTicketDetail(ctx context.Context, ticketID string) (*TicketDetail, error) {
	repos := s.store.Repositories()
	ticket, err := repos.Tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.NewStoreError(err)
	}
	comments, err := repos.Comments.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, apperrors.NewStoreError(err)
	}
	timeline, err := repos.Timeline.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, apperrors.NewStoreError(err)
	}
	return &TicketDetail{
		Ticket:   *s.view(*ticket),
		Comments: thread.BuildForest(comments),
		Timeline: timeline,
	}, nil
}

// authorizePatch rejects the whole patch when any present field needs a
// role the actor lacks.
func authorizePatch(actor domain.Actor, patch TicketPatch) error {
	var denied []string
	if patch.AssignTo.Set && !actor.IsStaff() {
		denied = append(denied, FieldAssignTo)
	}
	if patch.Status != nil && !actor.IsStaff() {
		denied = append(denied, FieldStatus)
	}
	if patch.SLAHours != nil && !actor.IsAdmin() {
		denied = append(denied, FieldSLAHours)
	}
	if len(denied) > 0 {
		return apperrors.NewForbidden("role not permitted to change fields", map[string]any{
			"role":   actor.Role,
			"fields": denied,
		})
	}
	return nil
}

// applyPatch validates and applies the patch to ticket, returning exactly
// the fields it set.
func applyPatch(ticket *domain.Ticket, patch TicketPatch) (map[string]any, error) {
	changes := map[string]any{}

	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title == "" {
			return nil, apperrors.NewValidationError("title cannot be empty", map[string]any{"field": FieldTitle})
		}
		ticket.Title = title
		changes[FieldTitle] = title
	}
	if patch.Description.Set {
		ticket.Description = patch.Description.Value
		changes[FieldDescription] = nullable(patch.Description.Value)
	}
	if patch.AssignTo.Set {
		ticket.AssignTo = patch.AssignTo.Value
		changes[FieldAssignTo] = nullable(patch.AssignTo.Value)
	}
	if patch.Status != nil {
		if !patch.Status.Valid() {
			return nil, apperrors.NewValidationError("unknown status", map[string]any{"field": FieldStatus, "value": *patch.Status})
		}
		ticket.Status = *patch.Status
		changes[FieldStatus] = string(*patch.Status)
	}
	if patch.SLAHours != nil {
		if *patch.SLAHours <= 0 {
			return nil, apperrors.NewValidationError("sla_hours must be a positive integer", map[string]any{"field": FieldSLAHours})
		}
		ticket.SLAHours = *patch.SLAHours
		ticket.SLADeadline = sla.ComputeDeadline(ticket.CreatedAt, ticket.SLAHours)
		changes[FieldSLAHours] = ticket.SLAHours
		changes[FieldSLADeadline] = ticket.SLADeadline
	}

	if len(changes) == 0 {
		return nil, apperrors.NewValidationError("no updatable fields supplied", nil)
	}
	return changes, nil
}

func staleVersion(ticketID string, supplied, current int) error {
	return apperrors.NewConflict("stale version", map[string]any{
		"ticket_id":        ticketID,
		"supplied_version": supplied,
		"current_version":  current,
	})
}

func (s *TicketService) view(t domain.Ticket) *domain.TicketView {
	return &domain.TicketView{Ticket: t, Breached: sla.IsBreached(t.SLADeadline, t.Status, s.clock.Now())}
}

func (s *TicketService) timelineEntry(ticketID string, actor domain.Actor, data domain.TimelineData) *domain.TimelineEntry {
	return &domain.TimelineEntry{
		ID:        s.ids.NewID(),
		TicketID:  ticketID,
		ActorID:   actor.ID,
		Action:    data.Action(),
		Data:      data,
		CreatedAt: s.clock.Now(),
	}
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.clock.Now()
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handler failed", zap.String("event_type", string(event.Type)), zap.Error(err))
	}
}

func eventActor(actor domain.Actor) events.Actor {
	return events.Actor{ID: actor.ID, Role: actor.Role}
}

func nullable(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}

func changedFields(changes map[string]any) []string {
	fields := make([]string, 0, len(changes))
	for k := range changes {
		fields = append(fields, k)
	}
	sort.Strings(fields)
	return fields
}

// stringPreview shortens body to at most limit runes, ending in "..." when
// cut. It never splits a multi-byte rune.
func stringPreview(body string, limit int) string {
	body = strings.TrimSpace(body)
	if utf8.RuneCountInString(body) <= limit {
		return body
	}
	keep := limit - 3
	suffix := "..."
	if limit <= 3 {
		keep, suffix = limit, ""
	}
	end := 0
	for i := 0; i < keep; i++ {
		_, size := utf8.DecodeRuneInString(body[end:])
		end += size
	}
	return body[:end] + suffix
}
