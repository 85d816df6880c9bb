package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/danmuck/lookingglass/internal/agents"
	"github.com/danmuck/lookingglass/internal/auth"
	"github.com/gin-gonic/gin"
)

const adminHeader = "X-Admin-Password"

// requireAdmin gates admin routes on the shared admin password. With no
// password configured the admin surface is closed.
func (s *Server) requireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		err := s.admin.Validate(c.GetHeader(adminHeader))
		switch {
		case errors.Is(err, auth.ErrNotConfigured):
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "Admin password not configured."})
		case err != nil:
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized."})
		default:
			c.Next()
		}
	}
}

type adminAgent struct {
	agents.Agent
	Command string `json:"command"`
}

func (s *Server) handleAdminListAgents(c *gin.Context) {
	panelURL, err := s.requestPanelURL(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid Host header."})
		return
	}
	list := s.agents.List()
	items := make([]adminAgent, 0, len(list))
	for _, agent := range list {
		items = append(items, adminAgent{
			Agent:   agent,
			Command: agents.InstallCommand(agent, panelURL, s.agentImage),
		})
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "panelUrl": panelURL})
}

func (s *Server) handleAdminCreateAgent(c *gin.Context) {
	panelURL, err := s.requestPanelURL(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid Host header."})
		return
	}
	body, err := decodeObject(c)
	if err != nil {
		respondBodyError(c, err)
		return
	}
	agent, err := s.agents.Create(stringField(body, "name"))
	switch {
	case errors.Is(err, agents.ErrNameRequired):
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required."})
		return
	case err != nil:
		s.logger.Error().Err(err).Msg("agent create failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Agent could not be created."})
		return
	}
	s.logger.Info().Str("agent", agent.ID).Str("name", agent.Name).Msg("agent created")
	c.JSON(http.StatusCreated, gin.H{
		"item":    agent,
		"command": agents.InstallCommand(agent, panelURL, s.agentImage),
	})
}

func (s *Server) handleAdminRenameAgent(c *gin.Context) {
	id := c.Param("id")
	if _, ok := s.agents.Get(id); !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Agent not found."})
		return
	}
	body, err := decodeObject(c)
	if err != nil {
		respondBodyError(c, err)
		return
	}
	agent, err := s.agents.Rename(id, stringField(body, "name"))
	switch {
	case errors.Is(err, agents.ErrAgentNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Agent not found."})
	case errors.Is(err, agents.ErrNameRequired):
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required."})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Agent could not be updated."})
	default:
		c.JSON(http.StatusOK, gin.H{"item": agent})
	}
}

const forwardedProtoHeader = "X-Forwarded-Proto"

var errInvalidHost = errors.New("invalid host header")

// requestPanelURL is the base URL agents should heartbeat to, as seen by
// the admin making this request. The scheme follows X-Forwarded-Proto only
// when the direct peer is a trusted proxy. The host lands inside a
// double-quoted shell word, so anything but host:port characters is refused.
func (s *Server) requestPanelURL(c *gin.Context) (string, error) {
	host := c.Request.Host
	if !validHost(host) {
		return "", errInvalidHost
	}
	scheme := "http"
	switch {
	case c.Request.TLS != nil:
		scheme = "https"
	case s.fromTrustedProxy(c) && forwardedHTTPS(c.GetHeader(forwardedProtoHeader)):
		scheme = "https"
	}
	return scheme + "://" + host, nil
}

func forwardedHTTPS(header string) bool {
	first, _, _ := strings.Cut(header, ",")
	return strings.EqualFold(strings.TrimSpace(first), "https")
}

func validHost(host string) bool {
	if host == "" || len(host) > 261 {
		return false
	}
	for i := 0; i < len(host); i++ {
		b := host[i]
		switch {
		case b >= 'a' && b <= 'z', b >= 'A' && b <= 'Z', b >= '0' && b <= '9':
		case b == '.', b == '-', b == '_', b == ':', b == '[', b == ']':
		default:
			return false
		}
	}
	return true
}
