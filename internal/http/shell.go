package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const responderPrefix = "/r/"

// ShowChrome indica si se muestran la barra de navegación y el botón flotante:
// solo con sesión y fuera del flujo público de respuesta.
func ShowChrome(authenticated bool, path string) bool {
	return authenticated && !strings.HasPrefix(path, responderPrefix)
}

// ShellHandler describe el layout de la aplicación para una ruta.
type ShellHandler struct {
	guard *Guard
}

func NewShellHandler(guard *Guard) *ShellHandler {
	return &ShellHandler{guard: guard}
}

// Layout maneja GET /app/layout?path=. No refresca la sesión.
func (h *ShellHandler) Layout(c *gin.Context) {
	path := c.DefaultQuery("path", "/")
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	_, _, authenticated := h.guard.Identify(c)
	chrome := ShowChrome(authenticated, path)
	c.JSON(http.StatusOK, gin.H{
		"path":          path,
		"authenticated": authenticated,
		"show_navbar":   chrome,
		"show_fab":      chrome,
	})
}
