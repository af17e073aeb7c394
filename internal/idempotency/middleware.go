package idempotency

import (
	"encoding/hex"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"

	"github.com/spec-kit/ticket-tracker/internal/auth"
	apperrors "github.com/spec-kit/ticket-tracker/pkg/util/errorutil"
)

const (
	HeaderKey      = "Idempotency-Key"
	HeaderReplayed = "Idempotent-Replayed"

	CodeKeyReused    = "IDEMPOTENCY_KEY_REUSED"
	CodeInProgress   = "IDEMPOTENCY_IN_PROGRESS"
	maxKeyLength     = 255
	defaultRecordTTL = 24 * time.Hour
)

// Middleware replays the stored response when a request repeats an
// Idempotency-Key already used by the same actor on the same route.
// Only successful responses are stored. A nil store disables replay.
func Middleware(store Store, ttl time.Duration, logger *zap.Logger) fiber.Handler {
	if ttl <= 0 {
		ttl = defaultRecordTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *fiber.Ctx) error {
		if store == nil {
			return c.Next()
		}
		rawKey := c.Get(HeaderKey)
		if rawKey == "" {
			return c.Next()
		}
		if len(rawKey) > maxKeyLength {
			return apperrors.NewValidationError("idempotency key too long", map[string]any{"max_length": maxKeyLength})
		}

		actor := auth.ActorFromContext(c)
		key := scopedKey(actor.ID, c.Method(), c.Path(), rawKey)
		fingerprint := Fingerprint(c.Method(), c.Path(), c.Body())
		ctx := c.UserContext()

		existing, claimed, err := store.Begin(ctx, key, fingerprint, ttl)
		if err != nil {
			logger.Warn("idempotency store unavailable; processing without replay", zap.Error(err))
			return c.Next()
		}
		if !claimed {
			return replay(c, existing, fingerprint)
		}

		if err := c.Next(); err != nil {
			abort(c, store, key, logger)
			return err
		}
		status := c.Response().StatusCode()
		if status >= http.StatusBadRequest {
			abort(c, store, key, logger)
			return nil
		}

		record := Record{
			Fingerprint: fingerprint,
			Status:      status,
			ContentType: string(c.Response().Header.ContentType()),
			Body:        append([]byte(nil), c.Response().Body()...),
		}
		if err := store.Complete(ctx, key, record, ttl); err != nil {
			logger.Warn("failed to store idempotent response", zap.Error(err))
		}
		return nil
	}
}

func replay(c *fiber.Ctx, existing *Record, fingerprint string) error {
	if existing.Fingerprint != fingerprint {
		return apperrors.NewDomainError(CodeKeyReused, "idempotency key already used with a different request", http.StatusConflict, nil)
	}
	if existing.Pending {
		return apperrors.NewDomainError(CodeInProgress, "a request with this idempotency key is still in progress", http.StatusConflict, nil)
	}
	c.Set(HeaderReplayed, "true")
	if existing.ContentType != "" {
		c.Set(fiber.HeaderContentType, existing.ContentType)
	}
	return c.Status(existing.Status).Send(existing.Body)
}

func abort(c *fiber.Ctx, store Store, key string, logger *zap.Logger) {
	if err := store.Abort(c.UserContext(), key); err != nil {
		logger.Warn("failed to release idempotency key", zap.Error(err))
	}
}

// Fingerprint hashes the parts of a request that must match on replay.
func Fingerprint(method, path string, body []byte) string {
	h, _ := blake2b.New256(nil)
	h.Write([]byte(method))
	h.Write([]byte{0})
	h.Write([]byte(path))
	h.Write([]byte{0})
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

func scopedKey(actorID, method, path, key string) string {
	sum := blake2b.Sum256([]byte(actorID + "\x00" + method + "\x00" + path + "\x00" + key))
	return hex.EncodeToString(sum[:])
}
