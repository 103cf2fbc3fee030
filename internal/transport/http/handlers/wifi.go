package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/GreenityClub/Unitree-sub000/internal/core/domain"
	"github.com/GreenityClub/Unitree-sub000/internal/transport/http/middleware"
	"github.com/GreenityClub/Unitree-sub000/internal/usecase"
)

// WifiSessionService is the lifecycle API consumed by the handler.
type WifiSessionService interface {
	Start(ctx context.Context, userID string, policy usecase.AccessPolicy, evidence usecase.AccessEvidence) (*usecase.StartResult, error)
	Update(ctx context.Context, userID string) (*usecase.SessionProgress, error)
	End(ctx context.Context, userID string) (*usecase.EndResult, error)
	BackgroundSync(ctx context.Context, req usecase.BackgroundSyncRequest) (*usecase.BackgroundSyncResult, error)
}

// StatsService reads per-user WiFi statistics.
type StatsService interface {
	GetStats(ctx context.Context, userID string) (*domain.WifiStats, error)
}

var wifiErrorCases = []ErrorCase{
	{Err: usecase.ErrUserIDRequired, Status: http.StatusUnauthorized, Message: "authentication required"},
	{Err: usecase.ErrInvalidAccess, Status: http.StatusForbidden, Message: "not connected to campus wifi"},
	{Err: usecase.ErrNoActiveSession, Status: http.StatusNotFound, Message: "no active wifi session"},
	{Err: usecase.ErrInvalidBackgroundSync, Status: http.StatusBadRequest, Message: "invalid background sync payload"},
}

// WifiHandler exposes the WiFi session and stats endpoints.
type WifiHandler struct {
	sessions WifiSessionService
	stats    StatsService
}

// NewWifiHandler constructs a WiFi handler.
func NewWifiHandler(sessions WifiSessionService, stats StatsService) *WifiHandler {
	return &WifiHandler{sessions: sessions, stats: stats}
}

// RegisterRoutes binds the WiFi routes to an authenticated group.
func (h *WifiHandler) RegisterRoutes(r *gin.RouterGroup) {
	if r == nil {
		return
	}

	r.POST("/sessions/start", h.StartSession)
	r.POST("/sessions/start/legacy", h.StartLegacySession)
	r.GET("/sessions/active", h.ActiveSession)
	r.POST("/sessions/end", h.EndSession)
	r.POST("/sessions/background-sync", h.BackgroundSync)
	r.GET("/stats", h.Stats)
}

// StartSession godoc
// @Summary Start a WiFi session
// @Description Requires campus network evidence and a location fix inside the campus radius.
// @Tags WiFi
// @Accept json
// @Produce json
// @Param request body StartSessionRequest true "Connection evidence"
// @Success 201 {object} StartSessionResponse
// @Success 200 {object} StartSessionResponse "Existing session on the same network"
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Router /api/v1/wifi/sessions/start [post]
func (h *WifiHandler) StartSession(c *gin.Context) {
	h.start(c, usecase.AccessPolicyStrict)
}

// StartLegacySession accepts network evidence alone for clients without location support.
func (h *WifiHandler) StartLegacySession(c *gin.Context) {
	h.start(c, usecase.AccessPolicyLegacy)
}

func (h *WifiHandler) start(c *gin.Context, policy usecase.AccessPolicy) {
	userID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	var req StartSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid request body"))
		return
	}
	if req.IPAddress == nil && req.BSSID == nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "ip_address or bssid is required"))
		return
	}

	evidence := usecase.AccessEvidence{
		Network:  networkEvidence(req.IPAddress, req.SSID, req.BSSID),
		Location: req.Location.toDomain(),
	}

	result, err := h.sessions.Start(c.Request.Context(), userID, policy, evidence)
	if err != nil {
		RespondWithMappedError(c, err, wifiErrorCases, http.StatusInternalServerError, "failed to start wifi session")
		return
	}

	resp := StartSessionResponse{
		Session:    toSessionResponse(result.Session),
		Existing:   result.Existing,
		Validation: toValidationResponse(result.Validation),
	}
	if result.Replaced != nil {
		replaced := toSessionResponse(*result.Replaced)
		resp.Replaced = &replaced
	}

	status := http.StatusCreated
	if result.Existing {
		status = http.StatusOK
	}
	c.JSON(status, resp)
}

// ActiveSession godoc
// @Summary Current session progress
// @Tags WiFi
// @Produce json
// @Success 200 {object} ActiveSessionResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/wifi/sessions/active [get]
func (h *WifiHandler) ActiveSession(c *gin.Context) {
	userID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	progress, err := h.sessions.Update(c.Request.Context(), userID)
	if err != nil {
		RespondWithMappedError(c, err, wifiErrorCases, http.StatusInternalServerError, "failed to load wifi session")
		return
	}

	c.JSON(http.StatusOK, ActiveSessionResponse{
		Session:         toSessionResponse(progress.Session),
		CurrentDuration: progress.CurrentDuration,
		PotentialPoints: progress.PotentialPoints,
	})
}

// EndSession godoc
// @Summary End the current session
// @Tags WiFi
// @Produce json
// @Success 200 {object} EndSessionResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/wifi/sessions/end [post]
func (h *WifiHandler) EndSession(c *gin.Context) {
	userID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	result, err := h.sessions.End(c.Request.Context(), userID)
	if err != nil {
		RespondWithMappedError(c, err, wifiErrorCases, http.StatusInternalServerError, "failed to end wifi session")
		return
	}

	c.JSON(http.StatusOK, EndSessionResponse{
		Session:        toSessionResponse(result.Session),
		PointsEarned:   result.PointsEarned,
		PointsCredited: result.PointsCredited,
	})
}

// BackgroundSync godoc
// @Summary Report an offline session
// @Description Idempotent on correlation_id. Replays return the stored session.
// @Tags WiFi
// @Accept json
// @Produce json
// @Param request body BackgroundSyncRequest true "Offline session"
// @Success 201 {object} BackgroundSyncResponse
// @Success 200 {object} BackgroundSyncResponse "Replay"
// @Failure 400 {object} ErrorResponse
// @Router /api/v1/wifi/sessions/background-sync [post]
func (h *WifiHandler) BackgroundSync(c *gin.Context) {
	userID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	var req BackgroundSyncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "correlation_id, start_time, end_time and duration_seconds are required"))
		return
	}

	result, err := h.sessions.BackgroundSync(c.Request.Context(), usecase.BackgroundSyncRequest{
		UserID:          userID,
		CorrelationID:   req.CorrelationID,
		StartTime:       req.StartTime,
		EndTime:         req.EndTime,
		DurationSeconds: req.DurationSeconds,
		Network:         networkEvidence(req.IPAddress, req.SSID, req.BSSID),
		Location:        req.Location.toDomain(),
	})
	if err != nil {
		RespondWithMappedError(c, err, wifiErrorCases, http.StatusInternalServerError, "failed to sync wifi session")
		return
	}

	status := http.StatusCreated
	if result.Replayed {
		status = http.StatusOK
	}
	c.JSON(status, BackgroundSyncResponse{
		Session:      toSessionResponse(result.Session),
		PointsEarned: result.PointsEarned,
		Replayed:     result.Replayed,
	})
}

// Stats godoc
// @Summary WiFi statistics for the caller
// @Tags WiFi
// @Produce json
// @Success 200 {object} domain.WifiStats
// @Router /api/v1/wifi/stats [get]
func (h *WifiHandler) Stats(c *gin.Context) {
	userID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	stats, err := h.stats.GetStats(c.Request.Context(), userID)
	if err != nil {
		RespondWithMappedError(c, err, wifiErrorCases, http.StatusInternalServerError, "failed to load wifi stats")
		return
	}

	c.JSON(http.StatusOK, stats)
}
