package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-tracker/internal/domain"
	"github.com/spec-kit/ticket-tracker/internal/observability"
)

// Actor headers accepted when no valid bearer token is present.
const (
	HeaderActorID   = "X-Actor-Id"
	HeaderActorRole = "X-Actor-Role"
)

const actorKey = "auth_actor"

// ActorMiddleware attaches the calling actor to every request. Identity
// is never required: a request without one runs as the anonymous user.
type ActorMiddleware struct {
	tokens *TokenManager
	logger *zap.Logger
}

// NewActorMiddleware constructs middleware. tokens may be nil.
func NewActorMiddleware(tokens *TokenManager, logger *zap.Logger) *ActorMiddleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ActorMiddleware{tokens: tokens, logger: logger}
}

// Handle resolves the actor and continues the chain.
func (m *ActorMiddleware) Handle(c *fiber.Ctx) error {
	actor := m.resolve(c)
	c.Locals(actorKey, actor)
	c.Locals(observability.ActorLocalsKey, actor.ID)
	return c.Next()
}

func (m *ActorMiddleware) resolve(c *fiber.Ctx) domain.Actor {
	if m.tokens != nil {
		if token, ok := bearerToken(c.Get(fiber.HeaderAuthorization)); ok {
			actor, err := m.tokens.ParseToken(token)
			if err == nil {
				return actor
			}
			m.logger.Debug("ignoring invalid bearer token", zap.Error(err))
		}
	}

	id := strings.TrimSpace(c.Get(HeaderActorID))
	if id == "" {
		return domain.AnonymousActor()
	}
	return domain.Actor{
		ID:   id,
		Role: domain.ParseRole(strings.ToLower(strings.TrimSpace(c.Get(HeaderActorRole)))),
	}
}

func bearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

// ActorFromContext retrieves the request actor, defaulting to anonymous.
func ActorFromContext(c *fiber.Ctx) domain.Actor {
	if actor, ok := c.Locals(actorKey).(domain.Actor); ok {
		return actor
	}
	return domain.AnonymousActor()
}
