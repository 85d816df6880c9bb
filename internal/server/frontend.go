package server

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
)

// serveFrontend serves static panel assets for unmatched GET/HEAD requests.
// It reports whether it wrote a response.
func (s *Server) serveFrontend(c *gin.Context) bool {
	if s.frontendDir == "" {
		return false
	}
	if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
		return false
	}
	clean := path.Clean("/" + c.Request.URL.Path)
	if strings.HasPrefix(clean, "/api/") || clean == "/api" {
		return false
	}
	switch clean {
	case "/":
		clean = "/index.html"
	case "/admin":
		clean = "/admin/index.html"
	}
	file := filepath.Join(s.frontendDir, filepath.FromSlash(clean))
	info, err := os.Stat(file)
	if err != nil || info.IsDir() {
		return false
	}
	c.File(file)
	return true
}
