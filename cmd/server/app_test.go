package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/dataset-forge/internal/config"
	"github.com/phrazzld/dataset-forge/internal/generation"
	"github.com/phrazzld/dataset-forge/internal/platform/logger"
)

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Port: 8080, LogLevel: "error", ShutdownTimeoutSeconds: 5},
		Database: config.DatabaseConfig{
			Driver: "memory",
		},
		LLM: config.LLMConfig{RequestTimeoutSeconds: 5},
		Task: config.TaskConfig{
			Concurrency:      2,
			Retries:          0,
			StaleTaskMinutes: 60,
			SweepSchedule:    "@every 1h",
			DefaultLanguage:  "en",
		},
	}
}

func newTestApplication(t *testing.T) *application {
	t.Helper()
	app, err := newApplication(context.Background(), testConfig(), logger.Discard())
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		app.shutdownTasks(ctx)
		app.cleanup()
	})
	return app
}

func TestNewApplication_MemoryStore(t *testing.T) {
	app := newTestApplication(t)

	assert.Equal(t, []string{"gemini", "ollama", "openai"}, app.models.IDs())
	assert.Empty(t, app.closers)
}

func TestOpenTaskStore_UnknownDriver(t *testing.T) {
	_, _, err := openTaskStore(context.Background(), config.DatabaseConfig{Driver: "mongo"}, logger.Discard())
	assert.ErrorContains(t, err, "unsupported database driver")
}

func TestOpenTaskStore_SQLite(t *testing.T) {
	cfg := config.DatabaseConfig{Driver: "sqlite", URL: t.TempDir() + "/tasks.db"}
	store, closers, err := openTaskStore(context.Background(), cfg, logger.Discard())
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	require.NotNil(t, store)
	require.Len(t, closers, 1)
	assert.NoError(t, closers[0].Close())
}

func TestWithDefaultKey(t *testing.T) {
	var got generation.ModelInfo
	next := func(_ context.Context, info generation.ModelInfo) (generation.Client, error) {
		got = info
		return nil, nil
	}

	c := withDefaultKey("process-key", next)

	_, err := c(context.Background(), generation.ModelInfo{ProviderID: "gemini", ModelName: "m"})
	require.NoError(t, err)
	assert.Equal(t, "process-key", got.APIKey)

	_, err = c(context.Background(), generation.ModelInfo{ProviderID: "gemini", ModelName: "m", APIKey: "task-key"})
	require.NoError(t, err)
	assert.Equal(t, "task-key", got.APIKey)
}

func TestRouter(t *testing.T) {
	app := newTestApplication(t)
	srv := httptest.NewServer(app.setupRouter())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// An unregistered provider without an endpoint passes validation but
	// fails once the handler tries to build the client.
	body := `{
		"task_type": "question-generation",
		"model_info": {"provider_id": "nowhere", "model_name": "m"},
		"detail": {"chunks": [{"id": "a#1", "text": "some text"}]}
	}`
	resp, err = http.Post(srv.URL+"/api/projects/p1/tasks", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.NotEmpty(t, resp.Header.Get("X-Trace-ID"))

	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var created struct {
		TaskID string `json:"task_id"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))

	require.Eventually(t, func() bool {
		r, err := http.Get(srv.URL + "/api/tasks/" + created.TaskID)
		if err != nil {
			return false
		}
		defer r.Body.Close()
		var got struct {
			StatusName string `json:"status_name"`
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			return false
		}
		return got.StatusName == "failed"
	}, 5*time.Second, 20*time.Millisecond)
}
