package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukex/casegate/pkg/agents/templateagent"
	"github.com/dukex/casegate/pkg/channels/gochannel"
	"github.com/dukex/casegate/pkg/config"
	"github.com/dukex/casegate/pkg/eventbus"
	"github.com/dukex/casegate/pkg/events"
	"github.com/dukex/casegate/pkg/persistence/file"
	"github.com/dukex/casegate/pkg/registry"
)

func setupTestApp(t *testing.T, bus eventbus.EventBus) *fiber.App {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	agents := registry.NewRegistry(logger)
	agents.RegisterFactory(templateagent.NewFactory())
	require.NoError(t, agents.Configure(config.DefaultAgentsConfig()))

	api := NewAPI(logger, file.NewPersistence(t.TempDir()), agents, bus, nil, time.Second)

	return api.App()
}

func readBody(t *testing.T, resp *http.Response) []byte {
	t.Helper()

	defer func() {
		err := resp.Body.Close()
		if err != nil {
			t.Logf("Failed to close response body: %v", err)
		}
	}()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return body
}

func TestAPI_RootEndpoint(t *testing.T) {
	app := setupTestApp(t, nil)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Casegate API", string(readBody(t, resp)))
}

func TestAPI_HealthCheck(t *testing.T) {
	app := setupTestApp(t, nil)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/livez", nil))
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OK", string(readBody(t, resp)))
}

func TestAPI_PublishesLifecycleEvents(t *testing.T) {
	pub, sub, err := gochannel.CreateChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub)
	t.Cleanup(func() { _ = bus.Close() })

	received := make(chan events.EventType, 16)

	record := func(eventType events.EventType) eventbus.EventHandler {
		return func(_ context.Context, _ any) error {
			received <- eventType

			return nil
		}
	}

	require.NoError(t, bus.Handle(events.CaseCreatedEvent, record(events.CaseCreatedEvent)))
	require.NoError(t, bus.Handle(events.CaseStatusChangedEvent, record(events.CaseStatusChangedEvent)))
	require.NoError(t, bus.Subscribe(t.Context()))

	app := setupTestApp(t, bus)

	req := httptest.NewRequest(http.MethodPost, "/cases",
		strings.NewReader(`{"owner":"alice","title":"New billing system"}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created map[string]any
	require.NoError(t, json.Unmarshal(readBody(t, resp), &created))

	resp, err = app.Test(httptest.NewRequest(http.MethodPost, "/cases/"+created["id"].(string)+"/start", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(readBody(t, resp)))

	for _, expected := range []events.EventType{events.CaseCreatedEvent, events.CaseStatusChangedEvent} {
		select {
		case got := <-received:
			assert.Equal(t, expected, got)
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for %s", expected)
		}
	}
}
