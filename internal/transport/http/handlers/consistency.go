package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/GreenityClub/Unitree-sub000/internal/core/domain"
	"github.com/GreenityClub/Unitree-sub000/internal/transport/http/middleware"
	"github.com/GreenityClub/Unitree-sub000/internal/usecase"
)

// ConsistencyService rebuilds counters from the ledger and the session store.
type ConsistencyService interface {
	SyncUser(ctx context.Context, userID string) (domain.ConsistencyReport, error)
	SyncAll(ctx context.Context) usecase.GlobalConsistencyReport
}

// ConsistencyHandler exposes consistency sync for the caller and for administrators.
type ConsistencyHandler struct {
	sync ConsistencyService
}

// NewConsistencyHandler constructs a consistency handler.
func NewConsistencyHandler(sync ConsistencyService) *ConsistencyHandler {
	return &ConsistencyHandler{sync: sync}
}

// SyncSelf godoc
// @Summary Repair the caller's counters
// @Tags Consistency
// @Produce json
// @Success 200 {object} domain.ConsistencyReport
// @Router /api/v1/wifi/consistency/sync [post]
func (h *ConsistencyHandler) SyncSelf(c *gin.Context) {
	userID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	report, err := h.sync.SyncUser(c.Request.Context(), userID)
	if err != nil {
		RespondWithMappedError(c, err, wifiErrorCases, http.StatusInternalServerError, "failed to sync counters")
		return
	}
	c.JSON(http.StatusOK, report)
}

// SyncAll godoc
// @Summary Repair every user's counters
// @Description Restricted to the admin role.
// @Tags Consistency
// @Produce json
// @Success 200 {object} usecase.GlobalConsistencyReport
// @Failure 403 {object} ErrorResponse
// @Router /api/v1/wifi/admin/consistency/sync [post]
func (h *ConsistencyHandler) SyncAll(c *gin.Context) {
	c.JSON(http.StatusOK, h.sync.SyncAll(c.Request.Context()))
}
