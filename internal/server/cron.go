package server

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
)

// RunCronJobs runs every scheduled job once, to completion even if the
// caller disconnects. Job failures are reported in the body.
func (s *Server) RunCronJobs(c *gin.Context) {
	reports := s.scheduler.RunAll(context.WithoutCancel(c.Request.Context()))

	triggered := make([]string, 0, len(reports))
	for _, report := range reports {
		triggered = append(triggered, report.Job)
	}

	c.JSON(http.StatusOK, gin.H{
		"triggered": triggered,
		"jobs":      reports,
	})
}
