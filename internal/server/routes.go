package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/danmuck/lookingglass/internal/agents"
	"github.com/danmuck/lookingglass/internal/auth"
	"github.com/danmuck/lookingglass/internal/diagnostics"
	"github.com/danmuck/lookingglass/internal/observability"
	"github.com/danmuck/lookingglass/internal/observations"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var errBodyTooLarge = errors.New("request body too large")

// RegisterRoutes installs every panel route once.
func (s *Server) RegisterRoutes() {
	s.routesOnce.Do(s.registerRoutes)
}

func (s *Server) registerRoutes() {
	r := s.router
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(s.Appeared).String(),
			"service": s.ID,
			"version": "0.1.0",
		})
	})
	r.GET("/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"ready":   true,
			"uptime":  time.Since(s.Appeared).String(),
			"service": s.ID,
			"version": "0.1.0",
		})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	api.GET("/status", s.handleStatus)
	api.POST("/diagnostics", s.handleDiagnostics)
	api.GET("/observations", s.handleListObservations)
	api.POST("/observations", s.handleCreateObservation)
	api.GET("/agents", s.handleListAgents)
	api.POST("/agents/heartbeat", s.handleHeartbeat)

	admin := api.Group("/admin", s.requireAdmin())
	admin.GET("/agents", s.handleAdminListAgents)
	admin.POST("/agents", s.handleAdminCreateAgent)
	admin.PATCH("/agents/:id", s.handleAdminRenameAgent)

	r.NoRoute(s.handleNoRoute)
}

func (s *Server) handleStatus(c *gin.Context) {
	uptime := time.Since(s.Appeared).Seconds()
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": ServiceName,
		"time":    time.Now().UTC().Format(time.RFC3339Nano),
		"uptime":  math.Round(uptime*10) / 10,
	})
}

func (s *Server) handleDiagnostics(c *gin.Context) {
	var req diagnostics.Request
	if err := decodeBody(c, &req); err != nil {
		respondBodyError(c, err)
		return
	}

	start := time.Now()
	// A client disconnect does not abort a running tool; the invoker's
	// timeout is the only cancellation path.
	res, err := s.invoker.Run(context.WithoutCancel(c.Request.Context()), req)
	observability.RecordDiagnostic(s.ID, kindLabel(req.Type), outcomeOf(err), time.Since(start))

	switch {
	case err == nil:
		c.JSON(http.StatusOK, res)
	case errors.Is(err, diagnostics.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": validationMessage(err)})
	case errors.Is(err, diagnostics.ErrToolUnavailable):
		c.JSON(http.StatusNotImplemented, gin.H{"error": fmt.Sprintf("%s is not available on this server.", req.Type)})
	default:
		s.logger.Error().
			Str("request_id", observability.RequestIDFrom(c)).
			Str("kind", req.Type).
			Err(err).
			Msg("diagnostic request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Diagnostic failed to run."})
	}
}

func (s *Server) handleListObservations(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"items": s.observations.List()})
}

func (s *Server) handleCreateObservation(c *gin.Context) {
	body, err := decodeObject(c)
	if err != nil {
		respondBodyError(c, err)
		return
	}
	obs, err := s.observations.Add(stringField(body, "text"))
	switch {
	case errors.Is(err, observations.ErrTextRequired):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Text is required."})
	case errors.Is(err, observations.ErrTextTooLong):
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Text must be %d characters or fewer.", observations.MaxTextLength)})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Observation could not be stored."})
	default:
		c.JSON(http.StatusCreated, gin.H{"item": obs})
	}
}

func (s *Server) handleListAgents(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"items": s.agents.Summaries()})
}

func (s *Server) handleHeartbeat(c *gin.Context) {
	token, err := auth.BearerToken(c.GetHeader("Authorization"))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Missing token."})
		return
	}
	// The body is optional; a missing or malformed one reports online.
	body, _ := decodeObject(c)
	_, err = s.agents.Heartbeat(token, c.ClientIP(), stringField(body, "status"))
	switch {
	case errors.Is(err, agents.ErrTokenRequired):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Missing token."})
	case errors.Is(err, agents.ErrInvalidToken):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token."})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Heartbeat could not be recorded."})
	default:
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}

func (s *Server) handleNoRoute(c *gin.Context) {
	if s.serveFrontend(c) {
		return
	}
	c.JSON(http.StatusNotFound, gin.H{"error": "Not found."})
}

// decodeBody decodes a JSON body into out. An empty body leaves out as is.
func decodeBody(c *gin.Context, out any) error {
	if c.Request.Body == nil {
		return nil
	}
	err := json.NewDecoder(c.Request.Body).Decode(out)
	if errors.Is(err, io.EOF) {
		return nil
	}
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return errBodyTooLarge
	}
	return err
}

func decodeObject(c *gin.Context) (map[string]any, error) {
	body := map[string]any{}
	if err := decodeBody(c, &body); err != nil {
		return map[string]any{}, err
	}
	return body, nil
}

func stringField(body map[string]any, key string) string {
	v, _ := body[key].(string)
	return v
}

func respondBodyError(c *gin.Context, err error) {
	if errors.Is(err, errBodyTooLarge) {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Request body too large."})
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON body."})
}

func validationMessage(err error) string {
	switch {
	case errors.Is(err, diagnostics.ErrMissingField):
		return "type and target are required."
	case errors.Is(err, diagnostics.ErrInvalidTarget):
		return "Invalid target hostname or IP."
	case errors.Is(err, diagnostics.ErrUnsupportedType):
		return "Unsupported diagnostic type."
	default:
		return "Invalid diagnostic request."
	}
}

// kindLabel bounds metric label cardinality to the supported kinds.
func kindLabel(raw string) string {
	kind, err := diagnostics.ParseKind(raw)
	if err != nil {
		return "unsupported"
	}
	return string(kind)
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return observability.OutcomeSuccess
	case errors.Is(err, diagnostics.ErrValidation):
		return observability.OutcomeInvalid
	case errors.Is(err, diagnostics.ErrToolUnavailable):
		return observability.OutcomeToolUnavailable
	default:
		return observability.OutcomeFailed
	}
}
