package server

import (
	"net/http"
	"strings"

	"github.com/mesaops/mesa/internal/branch"
	"github.com/gin-gonic/gin"
)

const HeaderBranch = "X-Branch-ID"

// BranchContext injects the caller's branch onto the request context. The
// header is optional; without it the configured default branch applies.
func BranchContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		branchID := strings.TrimSpace(c.GetHeader(HeaderBranch))
		if branchID != "" {
			ctx := branch.WithBranch(c.Request.Context(), branchID)
			c.Request = c.Request.WithContext(ctx)
		}
		c.Next()
	}
}

func classifyErrorForLog(err error) (string, string) {
	status, payload := mapError(err)
	switch {
	case status >= http.StatusInternalServerError:
		return "server_error", payload.Type
	case status >= http.StatusBadRequest:
		return "client_error", payload.Type
	default:
		return "", payload.Type
	}
}
