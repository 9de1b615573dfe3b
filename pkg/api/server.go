// Package api provides the HTTP API: a health endpoint, a Prometheus
// metrics endpoint, and minimal append/query endpoints over the event
// log and projected state, built with gin the way cmd/tarsy/main.go
// wires its own minimal router.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/governedloop/core/pkg/config"
	"github.com/governedloop/core/pkg/database"
	"github.com/governedloop/core/pkg/eventlog"
	"github.com/governedloop/core/pkg/ids"
	"github.com/governedloop/core/pkg/obsv"
	"github.com/governedloop/core/pkg/ports"
	"github.com/governedloop/core/pkg/projection"
)

// systemClock is the default ports.Clock when NewServer isn't given
// one explicitly.
type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// Server is the HTTP API server.
type Server struct {
	router     *gin.Engine
	httpServer *http.Server
	cfg        *config.Config
	dbClient   *database.Client
	events     eventlog.Store
	state      func() *projection.State
	clock      ports.Clock
}

// NewServer constructs a Server and registers its routes. state must
// return the current, up-to-date projection snapshot. clock may be
// nil (defaults to the real wall clock).
func NewServer(cfg *config.Config, dbClient *database.Client, events eventlog.Store, state func() *projection.State, clock ports.Clock) *Server {
	if clock == nil {
		clock = systemClock{}
	}
	s := &Server{
		router:   gin.Default(),
		cfg:      cfg,
		dbClient: dbClient,
		events:   events,
		state:    state,
		clock:    clock,
	}
	s.router.Use(requestIDMiddleware())
	s.setupRoutes()
	return s
}

// requestIDMiddleware stamps every request with a correlation id a
// handler can attach to an appended event's CorrelationID, echoed back
// on the response so a caller can trace it through the log.
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := c.GetHeader("X-Request-Id")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		c.Set("request_id", reqID)
		c.Header("X-Request-Id", reqID)
		c.Next()
	}
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.healthHandler)
	s.router.GET("/metrics", gin.WrapH(obsv.Handler()))

	v1 := s.router.Group("/api/v1")
	v1.POST("/loops", s.createLoopHandler)
	v1.GET("/loops", s.listLoopsHandler)
	v1.GET("/loops/:id", s.getLoopHandler)
	v1.GET("/loops/:id/events", s.getLoopEventsHandler)
}

// Start starts the HTTP server on addr (blocking).
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{Addr: addr, Handler: s.router}
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// healthHandler handles GET /health.
func (s *Server) healthHandler(c *gin.Context) {
	reqCtx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	dbHealth, err := database.Health(reqCtx, s.dbClient.DB())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":   "unhealthy",
			"database": dbHealth,
			"error":    err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":                "healthy",
		"database":              dbHealth,
		"verification_profile": s.cfg.VerificationProfile,
	})
}

// createLoopRequest is the body of POST /api/v1/loops.
type createLoopRequest struct {
	Goal         string         `json:"goal" binding:"required"`
	WorkUnit     string         `json:"work_unit" binding:"required"`
	Budgets      map[string]any `json:"budgets"`
	DirectiveRef string         `json:"directive_ref"`
	ActorID      string         `json:"actor_id" binding:"required"`
}

// createLoopHandler handles POST /api/v1/loops: appends LoopCreated as
// HUMAN (a loop always begins with a human-issued goal, per §3).
func (s *Server) createLoopHandler(c *gin.Context) {
	var req createLoopRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	budgets := req.Budgets
	if budgets == nil {
		budgets = map[string]any{
			"max_iterations": s.cfg.Budgets.MaxIterationsPerLoop,
		}
	}

	loopID := ids.New(ids.KindLoop)
	reqID, _ := c.Get("request_id")
	events, err := s.events.Append(c.Request.Context(), loopID, "Loop", 0, []eventlog.EventInput{{
		EventType:     "LoopCreated",
		OccurredAt:    s.clock.Now(),
		ActorKind:     eventlog.ActorHuman,
		ActorID:       req.ActorID,
		CorrelationID: asString(reqID),
		Payload: map[string]any{
			"goal":          req.Goal,
			"work_unit":     req.WorkUnit,
			"budgets":       budgets,
			"directive_ref": req.DirectiveRef,
		},
	}})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"loop_id":  loopID,
		"event_id": events[0].EventID,
	})
}

// listLoopsHandler handles GET /api/v1/loops.
func (s *Server) listLoopsHandler(c *gin.Context) {
	snap := s.state()
	loops := make([]*projection.Loop, 0, len(snap.Loops))
	for _, l := range snap.Loops {
		loops = append(loops, l)
	}
	c.JSON(http.StatusOK, gin.H{"loops": loops})
}

// getLoopHandler handles GET /api/v1/loops/:id.
func (s *Server) getLoopHandler(c *gin.Context) {
	snap := s.state()
	loop, ok := snap.Loops[c.Param("id")]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "loop not found"})
		return
	}
	c.JSON(http.StatusOK, loop)
}

// getLoopEventsHandler handles GET /api/v1/loops/:id/events: the raw
// event stream for a loop, for audit/debugging.
func (s *Server) getLoopEventsHandler(c *gin.Context) {
	events, err := s.events.ReadStream(c.Request.Context(), c.Param("id"), 0, 500)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}
