package httpserver

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vigil-ops/vigil/internal/ingest"
	"github.com/vigil-ops/vigil/internal/model"
	"github.com/vigil-ops/vigil/internal/stats"
	"github.com/vigil-ops/vigil/internal/vigilerr"
)

// Broadcaster is the narrow fan-out contract the ingestion handler needs.
// Publish is fire-and-forget: it runs only after a confirmed durable write
// and can never fail the HTTP response.
type Broadcaster interface {
	Publish(record *model.LogRecord)
}

// Server provides the ingestion, aggregation, and pagination HTTP API.
type Server struct {
	addr      string
	store     model.LogStore
	hub       Broadcaster
	ws        http.Handler
	server    *http.Server
	listener  net.Listener
	ctx       context.Context
	cancel    context.CancelFunc
	startTime time.Time
}

// NewServer creates a new HTTP API server. ws may be nil when the broadcast
// endpoint is not exposed.
func NewServer(addr string, store model.LogStore, hub Broadcaster, ws http.Handler) *Server {
	if addr == "" {
		addr = "0.0.0.0:3001"
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		addr:   addr,
		store:  store,
		hub:    hub,
		ws:     ws,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	s.registerRoutes(r)

	s.server = &http.Server{
		Handler:           r,
		BaseContext:       func(_ net.Listener) context.Context { return s.ctx },
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.listener = listener

	s.startTime = time.Now()

	go s.server.Serve(listener)
	return nil
}

// Addr returns the bound listen address. Only valid after Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.addr
	}
	return s.listener.Addr().String()
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop() error {
	s.cancel()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

func (s *Server) registerRoutes(r *gin.Engine) {
	r.GET("/api/health", s.handleHealth)
	r.POST("/api/logs", s.handleIngest)
	r.GET("/api/logs", s.handleLogs)
	r.GET("/api/stats", s.handleStats)
	if s.ws != nil {
		r.GET("/ws", gin.WrapH(s.ws))
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	logCount, err := s.store.TotalLogCount()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read health metrics"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"uptime":    time.Since(s.startTime).String(),
		"log_count": logCount,
	})
}

// handleIngest accepts one enriched record from the scorer. The write must be
// durably confirmed before the record is broadcast; a storage failure leaves
// no partial state and emits nothing.
func (s *Server) handleIngest(c *gin.Context) {
	var payload ingest.Payload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body", "code": "invalid_body"})
		return
	}

	record, err := ingest.Normalize(payload, time.Now())
	if err != nil {
		var verr vigilerr.Error
		if errors.As(err, &verr) {
			c.JSON(http.StatusBadRequest, gin.H{"error": verr.Message, "code": verr.Code})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	id, err := s.store.InsertLog(record)
	if err != nil {
		log.Printf("httpserver: insert failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store log record"})
		return
	}

	if s.hub != nil {
		s.hub.Publish(record)
	}

	c.JSON(http.StatusCreated, gin.H{"id": id, "ok": true})
}

func (s *Server) handleStats(c *gin.Context) {
	since := time.Now().Add(-model.StatsWindow)

	total, anomalies, err := s.store.WindowCounts(since)
	if err != nil {
		log.Printf("httpserver: window counts failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to compute stats"})
		return
	}

	anomalous, err := s.store.RecentAnomalies(since, model.MaxRecentAnomalies)
	if err != nil {
		log.Printf("httpserver: recent anomalies failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to compute stats"})
		return
	}

	c.JSON(http.StatusOK, stats.Build(total, anomalies, anomalous))
}

func (s *Server) handleLogs(c *gin.Context) {
	limit := parsePositiveInt(c.Query("limit"), model.DefaultPageLimit)
	if limit > model.MaxPageLimit {
		limit = model.MaxPageLimit
	}
	skip := parseNonNegativeInt(c.Query("skip"), 0)

	logs, err := s.store.RecentLogs(limit, skip)
	if err != nil {
		log.Printf("httpserver: recent logs failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list logs"})
		return
	}
	if logs == nil {
		logs = []model.LogRecord{}
	}

	total, err := s.store.TotalLogCount()
	if err != nil {
		log.Printf("httpserver: total count failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list logs"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"logs": logs, "total": total})
}

// parsePositiveInt falls back to def unless raw parses as a strictly positive
// integer.
func parsePositiveInt(raw string, def int) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

// parseNonNegativeInt falls back to def unless raw parses as a non-negative
// integer.
func parseNonNegativeInt(raw string, def int) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return def
	}
	return n
}
