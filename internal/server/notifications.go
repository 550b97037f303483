package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) GetNotification(c *gin.Context) {
	if s.notifier == nil {
		c.JSON(http.StatusOK, gin.H{"notification": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"notification": s.notifier.Current()})
}

func (s *Server) DismissNotification(c *gin.Context) {
	if s.notifier != nil {
		s.notifier.Dismiss()
	}
	c.Status(http.StatusNoContent)
}
