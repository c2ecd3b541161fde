package server

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

	"github.com/LoganGrasby/freza/internal/agent"
	"github.com/LoganGrasby/freza/internal/channel"
	"github.com/LoganGrasby/freza/internal/config"
	"github.com/LoganGrasby/freza/internal/history"
	"github.com/LoganGrasby/freza/internal/registry"
)

type testEnv struct {
	deps    Deps
	handler http.Handler
	spawned []string
}

func newTestEnv(t *testing.T, token string) *testEnv {
	t.Helper()
	cfg, err := config.New(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, cfg.Initialize())

	agents := agent.NewManager(cfg)
	require.NoError(t, agents.EnsureDefault(context.Background()))

	hist, err := history.Open(cfg.HistoryDB())
	require.NoError(t, err)
	t.Cleanup(func() { _ = hist.Close() })
	require.NoError(t, hist.EnsureSchema(context.Background()))

	env := &testEnv{}
	env.deps = Deps{
		Cfg:      cfg,
		Registry: registry.New(cfg.RegistryFile(), time.Second, time.Minute),
		Agents:   agents,
		Channels: channel.NewManager(cfg),
		History:  hist,
		Token:    token,
		Spawn: func(message, agentName, threadID string) error {
			env.spawned = append(env.spawned, message+"|"+agentName+"|"+threadID)
			return nil
		},
	}
	env.handler = NewRouter(env.deps).Handler()
	return env
}

func (e *testEnv) get(path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)
	return w
}

func (e *testEnv) post(path, body string, hdr map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)
	return w
}

func TestPing(t *testing.T) {
	env := newTestEnv(t, "")
	w := env.get("/api/ping")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestAuthRequired(t *testing.T) {
	env := newTestEnv(t, "secret")

	assert.Equal(t, http.StatusUnauthorized, env.get("/api/ping").Code)

	req := httptest.NewRequest(http.MethodGet, "/api/ping", nil)
	req.Header.Set("Authorization", "Bearer secret")
	w := httptest.NewRecorder()
	env.handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, http.StatusOK, env.get("/api/ping?token=secret").Code)
	assert.Equal(t, http.StatusUnauthorized, env.get("/api/ping?token=wrong").Code)
}

func TestMetricsUnauthenticated(t *testing.T) {
	env := newTestEnv(t, "secret")
	assert.Equal(t, http.StatusOK, env.get("/metrics").Code)
}

func TestAgentsList(t *testing.T) {
	env := newTestEnv(t, "")
	w := env.get("/api/agents")
	require.Equal(t, http.StatusOK, w.Code)

	var agents []agent.Agent
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &agents))
	require.Len(t, agents, 1)
	assert.Equal(t, agent.DefaultAgent, agents[0].Name)
}

func TestMemoryEndpoint(t *testing.T) {
	env := newTestEnv(t, "")

	w := env.get("/api/memory")
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Content string `json:"content"`
		Agent   string `json:"agent"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, agent.DefaultAgent, resp.Agent)
	assert.NotEmpty(t, resp.Content)

	assert.Equal(t, http.StatusNotFound, env.get("/api/memory?agent=ghost").Code)
	assert.Equal(t, http.StatusBadRequest, env.get("/api/memory?agent=..bad").Code)
}

func TestInstancesReflectRegistry(t *testing.T) {
	env := newTestEnv(t, "")
	_, err := env.deps.Registry.Register(context.Background(), "invoke", "default", "", "hello")
	require.NoError(t, err)

	w := env.get("/api/instances")
	require.Equal(t, http.StatusOK, w.Code)
	var instances []registry.Instance
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &instances))
	require.Len(t, instances, 1)
	assert.Equal(t, "invoke", instances[0].Mode)
}

func TestLogsAndThreads(t *testing.T) {
	env := newTestEnv(t, "")
	ctx := context.Background()
	require.NoError(t, env.deps.History.Record(ctx, history.Record{
		InstanceID: "i1", Mode: "channel", AgentName: "default",
		ChannelName: "slack", TriggerMessage: "hi", Response: "hello",
		ThreadID: "t1", Timestamp: time.Now().UTC(),
	}))

	w := env.get("/api/logs")
	require.Equal(t, http.StatusOK, w.Code)
	var logs []logEntry
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &logs))
	require.Len(t, logs, 1)
	assert.Equal(t, "i1", logs[0].ID)

	assert.Equal(t, http.StatusOK, env.get("/api/logs/i1").Code)
	assert.Equal(t, http.StatusNotFound, env.get("/api/logs/nope").Code)

	w = env.get("/api/threads")
	require.Equal(t, http.StatusOK, w.Code)
	var threads []history.ThreadSummary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &threads))
	require.Len(t, threads, 1)
	assert.Equal(t, "t1", threads[0].ThreadID)

	w = env.get("/api/threads/t1")
	require.Equal(t, http.StatusOK, w.Code)
	var entries []history.Record
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &entries))
	assert.Len(t, entries, 1)
}

func TestStatsEndpoint(t *testing.T) {
	env := newTestEnv(t, "")
	w := env.get("/api/stats")
	require.Equal(t, http.StatusOK, w.Code)
	var st history.Stats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &st))
	assert.Zero(t, st.TotalRuns)
}

func TestChatSpawns(t *testing.T) {
	env := newTestEnv(t, "")

	w := env.post("/api/chat", `{"message":"do the thing","thread_id":"t9"}`, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		ThreadID string `json:"thread_id"`
		Agent    string `json:"agent"`
		Status   string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "t9", resp.ThreadID)
	assert.Equal(t, agent.DefaultAgent, resp.Agent)
	assert.Equal(t, "started", resp.Status)
	require.Len(t, env.spawned, 1)
	assert.Equal(t, "do the thing|default|t9", env.spawned[0])
}

func TestChatGeneratesThreadID(t *testing.T) {
	env := newTestEnv(t, "")
	w := env.post("/api/chat", `{"message":"hi"}`, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		ThreadID string `json:"thread_id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.ThreadID, 32)
}

func TestChatValidation(t *testing.T) {
	env := newTestEnv(t, "")
	assert.Equal(t, http.StatusBadRequest, env.post("/api/chat", `{"message":"  "}`, nil).Code)
	assert.Equal(t, http.StatusBadRequest, env.post("/api/chat", `not json`, nil).Code)
	assert.Equal(t, http.StatusNotFound, env.post("/api/chat", `{"message":"hi","agent":"ghost"}`, nil).Code)
}
