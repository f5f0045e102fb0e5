package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"campusrag/internal/app"
	"campusrag/internal/transport/http/response"
)

type StatsService interface {
	Dashboard(ctx context.Context) (*app.DashboardStats, error)
}

type StatsHandler struct {
	statsService StatsService
}

func NewStatsHandler(statsService StatsService) *StatsHandler {
	return &StatsHandler{statsService: statsService}
}

func (h *StatsHandler) Dashboard(c *gin.Context) {
	stats, err := h.statsService.Dashboard(c.Request.Context())
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "Erreur lors de la récupération des statistiques")
		return
	}
	response.OK(c, stats)
}
