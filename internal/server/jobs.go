package server

import (
	"github.com/gin-gonic/gin"
)

// @Summary      Trigger Grace Period Sweep
// @Description  Run the grace-period sweep immediately instead of waiting for the daily schedule
// @Tags         jobs
// @Accept       json
// @Produce      json
// @Success      200  {object}  DataResponse
// @Router       /internal/jobs/grace-period-sweep [post]
func (s *Server) TriggerGracePeriodSweep(c *gin.Context) {
	if err := s.sched.SweepGracePeriods(c.Request.Context()); err != nil {
		AbortWithError(c, err)
		return
	}

	respondData(c, gin.H{"swept": true})
}
