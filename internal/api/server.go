package api

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ppiankov/kinstory/internal/biography"
	"github.com/ppiankov/kinstory/internal/citation"
	"github.com/ppiankov/kinstory/internal/llm"
	"github.com/ppiankov/kinstory/internal/logging"
	"github.com/ppiankov/kinstory/internal/pipeline"
	"github.com/ppiankov/kinstory/internal/store"
)

// Service is what the HTTP layer needs from the pipeline
type Service interface {
	Generate(ctx context.Context, req pipeline.Request) (*pipeline.Bundle, error)
	Validate(ctx context.Context, text, personID, scopeID string) ([]citation.Validation, error)
	RepairStale(ctx context.Context, text, personID, scopeID string) (string, []citation.Repair, error)
}

// CitationRequest carries stored narrative text for revalidation
type CitationRequest struct {
	Text     string `json:"text" binding:"required"`
	PersonID string `json:"person_id" binding:"required"`
	ScopeID  string `json:"scope_id" binding:"required"`
}

// ValidateResponse lists the live status of every citation
type ValidateResponse struct {
	Valid        bool                  `json:"valid"`
	Citations    []citation.Validation `json:"citations"`
	InvalidCount int                   `json:"invalid_count"`
}

// RepairResponse is the text with stale citations removed
type RepairResponse struct {
	Text    string            `json:"text"`
	Repairs []citation.Repair `json:"repairs"`
}

// Server exposes the pipeline over HTTP
type Server struct {
	service  Service
	renderer *pipeline.Renderer
	timeout  time.Duration
	log      *logging.Logger
}

// NewServer creates a server. timeout bounds each generation request.
func NewServer(service Service, timeout time.Duration, log *logging.Logger) *Server {
	if log == nil {
		log = logging.Nop()
	}
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Server{
		service:  service,
		renderer: pipeline.NewRenderer(true),
		timeout:  timeout,
		log:      log.With("component", "api"),
	}
}

// Router builds the gin engine with all routes
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	r.GET("/healthz", s.handleHealth)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/v1")
	v1.POST("/biographies", s.handleGenerate)
	v1.POST("/citations/validate", s.handleValidate)
	v1.POST("/citations/repair", s.handleRepair)

	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		s.log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleGenerate(c *gin.Context) {
	var req pipeline.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), s.timeout)
	defer cancel()

	bundle, err := s.service.Generate(ctx, req)
	if err != nil {
		s.writeError(c, err)
		return
	}

	if c.Query("format") == "markdown" {
		var buf bytes.Buffer
		if err := s.renderer.WriteMarkdown(&buf, bundle); err != nil {
			s.writeError(c, err)
			return
		}
		c.Data(http.StatusOK, "text/markdown; charset=utf-8", buf.Bytes())
		return
	}
	c.JSON(http.StatusOK, bundle)
}

func (s *Server) handleValidate(c *gin.Context) {
	var req CitationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	results, err := s.service.Validate(c.Request.Context(), req.Text, req.PersonID, req.ScopeID)
	if err != nil {
		s.writeError(c, err)
		return
	}

	invalid := 0
	for _, v := range results {
		if !v.Valid {
			invalid++
		}
	}
	c.JSON(http.StatusOK, ValidateResponse{
		Valid:        invalid == 0,
		Citations:    results,
		InvalidCount: invalid,
	})
}

func (s *Server) handleRepair(c *gin.Context) {
	var req CitationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	text, repairs, err := s.service.RepairStale(c.Request.Context(), req.Text, req.PersonID, req.ScopeID)
	if err != nil {
		s.writeError(c, err)
		return
	}
	if repairs == nil {
		repairs = []citation.Repair{}
	}
	c.JSON(http.StatusOK, RepairResponse{Text: text, Repairs: repairs})
}

// writeError maps pipeline errors to status codes
func (s *Server) writeError(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.log.Error("request failed", "path", c.FullPath(), "status", status, "error", err)
	} else {
		s.log.Debug("request rejected", "path", c.FullPath(), "status", status, "error", err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func statusFor(err error) int {
	var phaseErr *pipeline.PhaseError
	switch {
	case errors.Is(err, pipeline.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrPersonNotFound):
		return http.StatusNotFound
	case errors.Is(err, pipeline.ErrInsufficientMaterial):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, biography.ErrEmptyGeneration), llm.IsTransient(err):
		return http.StatusBadGateway
	case errors.As(err, &phaseErr) && phaseErr.Phase == pipeline.PhaseGeneration:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		c.Next()
		s.log.Info("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(started).String(),
		)
	}
}
