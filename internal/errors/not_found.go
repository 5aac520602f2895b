package errors

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// NotFound is a gin handler for unknown routes.
func NotFound(c *gin.Context) {
	abort(c, http.StatusNotFound, "not found", map[string]interface{}{
		"path": c.Request.URL.Path,
	})
}
