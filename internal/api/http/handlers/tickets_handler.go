package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-tracker/internal/api/dto"
	"github.com/spec-kit/ticket-tracker/internal/auth"
	"github.com/spec-kit/ticket-tracker/internal/domain"
	"github.com/spec-kit/ticket-tracker/internal/service"
	"github.com/spec-kit/ticket-tracker/internal/thread"
	apperrors "github.com/spec-kit/ticket-tracker/pkg/util/errorutil"
)

// TicketsHandler manages ticket endpoints.
type TicketsHandler struct {
	service *service.TicketService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService) *TicketsHandler {
	return &TicketsHandler{service: ticketService}
}

// CreateTicket POST /tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	var req dto.CreateTicketRequest
	if err := decodeBody(c, &req); err != nil {
		return err
	}
	ticket, err := h.service.CreateTicket(c.UserContext(), auth.ActorFromContext(c), service.TicketCreateInput{
		Title:       req.Title,
		Description: req.Description,
		SLAHours:    req.SLAHours,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// ListTickets GET /tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	page, err := h.service.ListTickets(c.UserContext(), parseTicketQuery(c))
	if err != nil {
		return err
	}
	items := make([]dto.TicketResponse, 0, len(page.Items))
	for i := range page.Items {
		items = append(items, ticketResponse(&page.Items[i]))
	}
	return c.JSON(dto.TicketListResponse{Items: items, Limit: page.Limit, Offset: page.Offset})
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	detail, err := h.service.GetTicketDetail(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(ticketDetail(detail))
}

// UpdateTicket PATCH /tickets/:id.
func (h *TicketsHandler) UpdateTicket(c *fiber.Ctx) error {
	var req dto.UpdateTicketRequest
	if err := decodeBody(c, &req); err != nil {
		return err
	}
	ticket, err := h.service.UpdateTicket(c.UserContext(), auth.ActorFromContext(c), service.TicketUpdateInput{
		TicketID: c.Params("id"),
		Version:  req.Version,
		Patch: service.TicketPatch{
			Title:       req.Title,
			Description: service.NullableString{Set: req.Description.Set, Value: req.Description.Value},
			AssignTo:    service.NullableString{Set: req.AssignTo.Set, Value: req.AssignTo.Value},
			Status:      req.Status,
			SLAHours:    req.SLAHours,
		},
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// AddComment POST /tickets/:id/comments.
func (h *TicketsHandler) AddComment(c *fiber.Ctx) error {
	var req dto.CreateCommentRequest
	if err := decodeBody(c, &req); err != nil {
		return err
	}
	comment, err := h.service.AddComment(c.UserContext(), auth.ActorFromContext(c), service.CommentCreateInput{
		TicketID: c.Params("id"),
		Body:     req.Body,
		ParentID: req.ParentID,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": commentResponse(comment)})
}

func decodeBody(c *fiber.Ctx, v any) error {
	body := c.Body()
	if len(strings.TrimSpace(string(body))) == 0 {
		return apperrors.NewValidationError("request body required", nil)
	}
	if err := json.Unmarshal(body, v); err != nil {
		var fieldErr *dto.FieldError
		if errors.As(err, &fieldErr) {
			return apperrors.NewValidationError("invalid payload", map[string]any{"field": fieldErr.Field, "reason": fieldErr.Reason})
		}
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			return apperrors.NewValidationError("invalid payload", map[string]any{"field": typeErr.Field})
		}
		return apperrors.NewValidationError("invalid payload", nil)
	}
	return nil
}

func parseTicketQuery(c *fiber.Ctx) service.TicketListFilter {
	filter := service.TicketListFilter{}
	if status := strings.TrimSpace(c.Query("status")); status != "" {
		s := domain.TicketStatus(status)
		filter.Status = &s
	}
	if assignee := strings.TrimSpace(c.Query("assign_to")); assignee != "" {
		filter.AssignTo = &assignee
	}
	if search := c.Query("search"); strings.TrimSpace(search) != "" {
		filter.Search = &search
	}
	filter.Breached = parseBool(c.Query("breached"))
	filter.Limit = parseInt(c.Query("limit"), 0)
	filter.Offset = parseInt(c.Query("offset"), 0)
	return filter
}

func parseBool(val string) bool {
	parsed, err := strconv.ParseBool(strings.TrimSpace(val))
	return err == nil && parsed
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func ticketResponse(ticket *domain.TicketView) dto.TicketResponse {
	return dto.TicketResponse{
		ID:          ticket.ID,
		Title:       ticket.Title,
		Description: ticket.Description,
		CreatorID:   ticket.CreatorID,
		AssignTo:    ticket.AssignTo,
		Status:      ticket.Status,
		SLAHours:    ticket.SLAHours,
		SLADeadline: ticket.SLADeadline,
		Breached:    ticket.Breached,
		CreatedAt:   ticket.CreatedAt,
		UpdatedAt:   ticket.UpdatedAt,
		Version:     ticket.Version,
	}
}

func commentResponse(comment *domain.Comment) dto.CommentResponse {
	return dto.CommentResponse{
		ID:        comment.ID,
		TicketID:  comment.TicketID,
		ParentID:  comment.ParentID,
		AuthorID:  comment.AuthorID,
		Body:      comment.Body,
		CreatedAt: comment.CreatedAt,
	}
}

func commentNodes(nodes []*thread.Node) []dto.CommentNodeResponse {
	resp := make([]dto.CommentNodeResponse, 0, len(nodes))
	for _, node := range nodes {
		resp = append(resp, dto.CommentNodeResponse{
			CommentResponse: commentResponse(&node.Comment),
			Children:        commentNodes(node.Children),
		})
	}
	return resp
}

func ticketDetail(detail *service.TicketDetail) dto.TicketDetailResponse {
	timeline := make([]dto.TimelineEntryResponse, 0, len(detail.Timeline))
	for _, entry := range detail.Timeline {
		timeline = append(timeline, dto.TimelineEntryResponse{
			ID:        entry.ID,
			TicketID:  entry.TicketID,
			ActorID:   entry.ActorID,
			Action:    entry.Action,
			Data:      entry.Data,
			CreatedAt: entry.CreatedAt,
		})
	}
	return dto.TicketDetailResponse{
		Ticket:   ticketResponse(&detail.Ticket),
		Comments: commentNodes(detail.Comments),
		Timeline: timeline,
	}
}
