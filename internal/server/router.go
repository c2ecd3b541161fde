// Package server exposes the web UI API over HTTP.
// Endpoints (all JSON):
//
//	GET  /api/ping          liveness
//	GET  /api/stats         aggregate run stats
//	GET  /api/logs          recent invocations (?limit=N)
//	GET  /api/logs/:id      one invocation by instance id
//	GET  /api/threads       conversation threads
//	GET  /api/threads/:id   one thread's invocations
//	GET  /api/instances     active registry entries
//	GET  /api/short-term    short-term state of all instances
//	GET  /api/memory        long-term memory (?agent=name)
//	GET  /api/channels      registered channels
//	GET  /api/agents        registered agents
//	POST /api/chat          spawn a detached invocation
//	GET  /metrics           prometheus metrics
//
// When a token is configured, every /api route requires it as a Bearer
// header or ?token= query parameter.
package server

import (
	"crypto/subtle"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/LoganGrasby/freza/internal/agent"
	"github.com/LoganGrasby/freza/internal/channel"
	"github.com/LoganGrasby/freza/internal/config"
	"github.com/LoganGrasby/freza/internal/history"
	"github.com/LoganGrasby/freza/internal/memory"
	"github.com/LoganGrasby/freza/internal/metrics"
	"github.com/LoganGrasby/freza/internal/registry"
)

// SpawnFunc launches one detached channel invocation for a chat message.
type SpawnFunc func(message, agentName, threadID string) error

// Deps wires the router to the rest of the system.
type Deps struct {
	Cfg      *config.Config
	Registry *registry.Registry
	Agents   *agent.Manager
	Channels *channel.Manager
	History  *history.Store

	// Token enables bearer auth on /api when non-empty.
	Token string

	Spawn SpawnFunc
}

type Router struct {
	deps Deps
}

func NewRouter(deps Deps) *Router {
	return &Router{deps: deps}
}

// Handler returns an http.Handler powered by gin that can be mounted in any
// server/mux.
func (r *Router) Handler() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	g := gin.New()
	g.Use(gin.Recovery())

	api := g.Group("/api", r.authMiddleware())
	api.GET("/ping", r.handlePing)
	api.GET("/stats", r.handleStats)
	api.GET("/logs", r.handleLogs)
	api.GET("/logs/:id", r.handleLogDetail)
	api.GET("/threads", r.handleThreads)
	api.GET("/threads/:id", r.handleThread)
	api.GET("/instances", r.handleInstances)
	api.GET("/short-term", r.handleShortTerm)
	api.GET("/memory", r.handleMemory)
	api.GET("/channels", r.handleChannels)
	api.GET("/agents", r.handleAgents)
	api.POST("/chat", r.handleChat)

	g.GET("/metrics", gin.WrapH(metrics.Handler()))
	return g
}

// NewServer starts a standalone HTTP server on addr using this router.
func NewServer(addr string, deps Deps) *http.Server {
	r := NewRouter(deps)
	server := &http.Server{
		Addr:              addr,
		Handler:           r.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() { _ = server.ListenAndServe() }()
	return server
}

type errorResp struct {
	Error string `json:"error"`
}

func (r *Router) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if r.deps.Token == "" {
			return
		}
		token := ""
		if h := c.GetHeader("Authorization"); strings.HasPrefix(h, "Bearer ") {
			token = strings.TrimPrefix(h, "Bearer ")
		}
		if token == "" {
			token = c.Query("token")
		}
		if subtle.ConstantTimeCompare([]byte(token), []byte(r.deps.Token)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorResp{Error: "unauthorized"})
		}
	}
}

func (r *Router) handlePing(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (r *Router) handleStats(c *gin.Context) {
	st, err := r.deps.History.Stats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResp{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, st)
}

type logEntry struct {
	ID        string    `json:"id"`
	Mode      string    `json:"mode"`
	Agent     string    `json:"agent"`
	Channel   string    `json:"channel"`
	Trigger   string    `json:"trigger"`
	Response  string    `json:"response"`
	Duration  float64   `json:"duration"`
	Cost      float64   `json:"cost"`
	Tools     []string  `json:"tools"`
	Turns     int       `json:"turns"`
	Timestamp time.Time `json:"timestamp"`
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

func (r *Router) handleLogs(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	recs, err := r.deps.History.Recent(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResp{Error: err.Error()})
		return
	}
	out := make([]logEntry, 0, len(recs))
	for _, rec := range recs {
		out = append(out, logEntry{
			ID:        rec.InstanceID,
			Mode:      rec.Mode,
			Agent:     rec.AgentName,
			Channel:   rec.ChannelName,
			Trigger:   truncate(rec.TriggerMessage, 200),
			Response:  truncate(rec.Response, 300),
			Duration:  rec.DurationSec,
			Cost:      rec.CostUSD,
			Tools:     rec.ToolsUsed,
			Turns:     rec.Turns,
			Timestamp: rec.Timestamp,
		})
	}
	c.JSON(http.StatusOK, out)
}

func (r *Router) handleLogDetail(c *gin.Context) {
	rec, err := r.deps.History.ByInstance(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResp{Error: err.Error()})
		return
	}
	if rec == nil {
		c.JSON(http.StatusNotFound, errorResp{Error: "not found"})
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (r *Router) handleThreads(c *gin.Context) {
	threads, err := r.deps.History.Threads(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResp{Error: err.Error()})
		return
	}
	if threads == nil {
		threads = []history.ThreadSummary{}
	}
	c.JSON(http.StatusOK, threads)
}

func (r *Router) handleThread(c *gin.Context) {
	entries, err := r.deps.History.Thread(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResp{Error: err.Error()})
		return
	}
	if entries == nil {
		entries = []history.Record{}
	}
	c.JSON(http.StatusOK, entries)
}

func (r *Router) handleInstances(c *gin.Context) {
	instances, err := r.deps.Registry.GetActive(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResp{Error: err.Error()})
		return
	}
	if instances == nil {
		instances = []registry.Instance{}
	}
	c.JSON(http.StatusOK, instances)
}

func (r *Router) handleShortTerm(c *gin.Context) {
	mem := memory.NewManager(r.deps.Cfg, agent.DefaultAgent)
	all := mem.AllShortTerm()
	out := make([]memory.ShortTerm, 0, len(all))
	for _, st := range all {
		out = append(out, st)
	}
	c.JSON(http.StatusOK, out)
}

func (r *Router) handleMemory(c *gin.Context) {
	name, err := agent.ValidateName(c.DefaultQuery("agent", agent.DefaultAgent))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResp{Error: err.Error()})
		return
	}
	if !r.agentRegistered(c, name) {
		return
	}
	mem := memory.NewManager(r.deps.Cfg, name)
	content, err := mem.Read(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResp{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"content": content, "agent": name})
}

func (r *Router) handleChannels(c *gin.Context) {
	chans, err := r.deps.Channels.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResp{Error: err.Error()})
		return
	}
	if chans == nil {
		chans = []channel.Channel{}
	}
	c.JSON(http.StatusOK, chans)
}

func (r *Router) handleAgents(c *gin.Context) {
	agents, err := r.deps.Agents.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResp{Error: err.Error()})
		return
	}
	if agents == nil {
		agents = []agent.Agent{}
	}
	c.JSON(http.StatusOK, agents)
}

type chatRequest struct {
	Message  string `json:"message"`
	Agent    string `json:"agent"`
	ThreadID string `json:"thread_id"`
}

func (r *Router) handleChat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResp{Error: "invalid JSON: " + err.Error()})
		return
	}
	req.Message = strings.TrimSpace(req.Message)
	if req.Message == "" {
		c.JSON(http.StatusBadRequest, errorResp{Error: "empty message"})
		return
	}
	if req.Agent == "" {
		req.Agent = agent.DefaultAgent
	}
	name, err := agent.ValidateName(req.Agent)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResp{Error: err.Error()})
		return
	}
	if !r.agentRegistered(c, name) {
		return
	}
	threadID := req.ThreadID
	if threadID == "" {
		threadID = strings.ReplaceAll(uuid.NewString(), "-", "")
	}
	if err := r.deps.Spawn(req.Message, name, threadID); err != nil {
		c.JSON(http.StatusInternalServerError, errorResp{Error: "failed to start agent: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"thread_id": threadID,
		"agent":     name,
		"status":    "started",
	})
}

func (r *Router) agentRegistered(c *gin.Context, name string) bool {
	_, ok, err := r.deps.Agents.Get(c.Request.Context(), name)
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResp{Error: err.Error()})
		return false
	}
	if !ok {
		c.JSON(http.StatusNotFound, errorResp{Error: "unknown agent '" + name + "'"})
		return false
	}
	return true
}
