package idempotency

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/ticket-tracker/internal/auth"
	apperrors "github.com/spec-kit/ticket-tracker/pkg/util/errorutil"
)

type memStore struct {
	mu      sync.Mutex
	records map[string]Record
	fail    error
}

func newMemStore() *memStore {
	return &memStore{records: map[string]Record{}}
}

func (m *memStore) Begin(_ context.Context, key, fingerprint string, _ time.Duration) (*Record, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return nil, false, m.fail
	}
	if rec, ok := m.records[key]; ok {
		return &rec, false, nil
	}
	m.records[key] = Record{Fingerprint: fingerprint, Pending: true}
	return nil, true, nil
}

func (m *memStore) Complete(_ context.Context, key string, record Record, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	record.Pending = false
	m.records[key] = record
	return nil
}

func (m *memStore) Abort(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, key)
	return nil
}

func newTestApp(store Store, calls *int) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			domainErr := apperrors.ToDomainError(err)
			return c.Status(domainErr.HTTPStatus).SendString(domainErr.Code)
		},
	})
	app.Use(auth.NewActorMiddleware(nil, nil).Handle)
	app.Post("/tickets", Middleware(store, time.Minute, nil), func(c *fiber.Ctx) error {
		*calls++
		if strings.Contains(string(c.Body()), "bad") {
			return apperrors.NewValidationError("bad", nil)
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"n": *calls})
	})
	return app
}

func post(t *testing.T, app *fiber.App, key, actor, body string) (int, string, string) {
	t.Helper()
	req := httptest.NewRequest(fiber.MethodPost, "/tickets", strings.NewReader(body))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if key != "" {
		req.Header.Set(HeaderKey, key)
	}
	if actor != "" {
		req.Header.Set(auth.HeaderActorID, actor)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(raw), resp.Header.Get(HeaderReplayed)
}

func TestMiddlewareReplaysSameRequest(t *testing.T) {
	calls := 0
	app := newTestApp(newMemStore(), &calls)

	status, body, replayed := post(t, app, "abc", "u-1", `{"title":"x"}`)
	assert.Equal(t, fiber.StatusCreated, status)
	assert.JSONEq(t, `{"n":1}`, body)
	assert.Empty(t, replayed)

	status, body, replayed = post(t, app, "abc", "u-1", `{"title":"x"}`)
	assert.Equal(t, fiber.StatusCreated, status)
	assert.JSONEq(t, `{"n":1}`, body)
	assert.Equal(t, "true", replayed)
	assert.Equal(t, 1, calls)
}

func TestMiddlewareRejectsReusedKey(t *testing.T) {
	calls := 0
	app := newTestApp(newMemStore(), &calls)

	post(t, app, "abc", "u-1", `{"title":"x"}`)
	status, body, _ := post(t, app, "abc", "u-1", `{"title":"y"}`)
	assert.Equal(t, fiber.StatusConflict, status)
	assert.Equal(t, CodeKeyReused, body)
	assert.Equal(t, 1, calls)
}

func TestMiddlewareScopesKeysPerActor(t *testing.T) {
	calls := 0
	app := newTestApp(newMemStore(), &calls)

	post(t, app, "abc", "u-1", `{"title":"x"}`)
	status, body, replayed := post(t, app, "abc", "u-2", `{"title":"x"}`)
	assert.Equal(t, fiber.StatusCreated, status)
	assert.JSONEq(t, `{"n":2}`, body)
	assert.Empty(t, replayed)
}

func TestMiddlewareReleasesKeyOnError(t *testing.T) {
	calls := 0
	app := newTestApp(newMemStore(), &calls)

	status, _, _ := post(t, app, "abc", "u-1", `{"title":"bad"}`)
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, _, _ = post(t, app, "abc", "u-1", `{"title":"good"}`)
	assert.Equal(t, fiber.StatusCreated, status)
	assert.Equal(t, 2, calls)
}

func TestMiddlewarePassThrough(t *testing.T) {
	t.Run("no key", func(t *testing.T) {
		calls := 0
		app := newTestApp(newMemStore(), &calls)
		post(t, app, "", "u-1", `{}`)
		post(t, app, "", "u-1", `{}`)
		assert.Equal(t, 2, calls)
	})
	t.Run("no store", func(t *testing.T) {
		calls := 0
		app := newTestApp(nil, &calls)
		post(t, app, "abc", "u-1", `{}`)
		post(t, app, "abc", "u-1", `{}`)
		assert.Equal(t, 2, calls)
	})
	t.Run("store failure", func(t *testing.T) {
		calls := 0
		store := newMemStore()
		store.fail = errors.New("redis down")
		app := newTestApp(store, &calls)
		status, _, _ := post(t, app, "abc", "u-1", `{}`)
		assert.Equal(t, fiber.StatusCreated, status)
		assert.Equal(t, 1, calls)
	})
	t.Run("key too long", func(t *testing.T) {
		calls := 0
		app := newTestApp(newMemStore(), &calls)
		status, _, _ := post(t, app, strings.Repeat("k", maxKeyLength+1), "u-1", `{}`)
		assert.Equal(t, fiber.StatusBadRequest, status)
		assert.Zero(t, calls)
	})
}

func TestFingerprint(t *testing.T) {
	a := Fingerprint("POST", "/tickets", []byte(`{"title":"x"}`))
	assert.Len(t, a, 64)
	assert.Equal(t, a, Fingerprint("POST", "/tickets", []byte(`{"title":"x"}`)))
	assert.NotEqual(t, a, Fingerprint("POST", "/tickets/1/comments", []byte(`{"title":"x"}`)))
	assert.NotEqual(t, a, Fingerprint("POST", "/tickets", []byte(`{"title":"y"}`)))
}
