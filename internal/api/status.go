package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"invhistory/internal/store"
)

// StatusResponse 系统状态
type StatusResponse struct {
	Ready   bool       `json:"ready"`
	LastRun *store.Run `json:"lastRun,omitempty"`
}

// GetStatus 获取系统状态
// GET /api/status
func (h *Handler) GetStatus(c *gin.Context) {
	runs, err := h.store.ListRuns(1)
	if err != nil {
		c.JSON(http.StatusOK, StatusResponse{Ready: false})
		return
	}

	resp := StatusResponse{Ready: true}
	if len(runs) > 0 {
		resp.LastRun = runs[0]
	}
	c.JSON(http.StatusOK, resp)
}
