package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/advisorai/admission-gate/internal/services/store"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errStoreDown = errors.New("connection refused")

// deadStore fails every operation, standing in for an unreachable
// durable store.
type deadStore struct{}

func (deadStore) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errStoreDown
}
func (deadStore) Set(context.Context, string, []byte, time.Duration) error { return errStoreDown }
func (deadStore) Delete(context.Context, string) error                     { return errStoreDown }
func (deadStore) DeleteByPrefix(context.Context, string) (int64, error)    { return 0, errStoreDown }
func (deadStore) CountByPrefix(context.Context, string) (int64, error)     { return 0, errStoreDown }
func (deadStore) PushRecent(context.Context, string, string, int) error    { return errStoreDown }
func (deadStore) Recent(context.Context, string, int) ([]string, error)    { return nil, errStoreDown }
func (deadStore) Reserve(context.Context, string, float64, float64, time.Duration) (float64, bool, error) {
	return 0, false, errStoreDown
}
func (deadStore) IncrByFloat(context.Context, string, float64, time.Duration) (float64, error) {
	return 0, errStoreDown
}
func (deadStore) GetFloat(context.Context, string) (float64, error) { return 0, errStoreDown }
func (deadStore) Ping(context.Context) error                        { return errStoreDown }
func (deadStore) Close() error                                      { return nil }

func healthApp(st store.Store) *fiber.App {
	app := fiber.New()
	app.Get("/health", NewHealthHandler(st, nil).HealthCheck)
	return app
}

func TestHealthCheckHealthyStore(t *testing.T) {
	st, err := store.NewMemory(16)
	require.NoError(t, err)
	app := healthApp(st)

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/health", nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body struct {
		Status string `json:"status"`
		Checks struct {
			Store string `json:"store"`
			Quota string `json:"quota"`
		} `json:"checks"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "healthy", body.Status)
	assert.Equal(t, "healthy", body.Checks.Store)
}

func TestHealthCheckDeadStoreReportsUnavailable(t *testing.T) {
	app := healthApp(deadStore{})

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/health", nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)

	var body struct {
		Status string `json:"status"`
		Error  struct {
			Type      string `json:"type"`
			Retryable bool   `json:"retryable"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "degraded", body.Status)
	assert.Equal(t, "store_unavailable", body.Error.Type)
	assert.True(t, body.Error.Retryable)
}
