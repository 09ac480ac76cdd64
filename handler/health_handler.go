package handler

import (
	"net/http"
	"task-manager-api/common"
)

// HealthCheck godoc
// @Summary      Show the status of server
// @Description  get the status of server
// @Tags         health
// @Produce      json
// @Success      200  {object}  common.ApiResponse
// @Router       /api/v1/healthcheck [get]
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	common.NewApiResponse(http.StatusOK, "OK", "Health check passed").Send(w)
}
