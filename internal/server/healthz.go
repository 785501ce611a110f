package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// @Summary      Health Check
// @Description  Liveness and database connectivity probe
// @Tags         system
// @Produce      json
// @Success      200  {object}  DataResponse
// @Router       /healthz [get]
func (s *Server) Healthz(c *gin.Context) {
	sqlDB, err := s.db.DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": "database unreachable"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
