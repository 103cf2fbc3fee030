package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/GreenityClub/Unitree-sub000/internal/core/domain"
	"github.com/GreenityClub/Unitree-sub000/internal/usecase"
)

// ErrorResponse represents a generic error payload with trace ID for debugging.
type ErrorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

// NewErrorResponse creates an error response with trace ID from context
func NewErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	traceID, _ := c.Get("trace_id")
	traceIDStr, _ := traceID.(string)

	return ErrorResponse{
		Error:   errorMsg,
		TraceID: traceIDStr,
	}
}

// HealthResponse describes the service health payload.
type HealthResponse struct {
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
}

// ReadinessResponse lists the outcome of each dependency check.
type ReadinessResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// LocationPayload is a client-reported geolocation fix.
type LocationPayload struct {
	Latitude  *float64   `json:"latitude" binding:"required"`
	Longitude *float64   `json:"longitude" binding:"required"`
	Accuracy  float64    `json:"accuracy"`
	Timestamp *time.Time `json:"timestamp"`
}

// StartSessionRequest carries the connection evidence reported when a session begins.
type StartSessionRequest struct {
	IPAddress *string          `json:"ip_address"`
	SSID      *string          `json:"ssid"`
	BSSID     *string          `json:"bssid"`
	Location  *LocationPayload `json:"location"`
}

// BackgroundSyncRequest reports a session tracked while the client was offline.
type BackgroundSyncRequest struct {
	CorrelationID   string           `json:"correlation_id" binding:"required"`
	StartTime       time.Time        `json:"start_time" binding:"required"`
	EndTime         time.Time        `json:"end_time" binding:"required"`
	DurationSeconds int64            `json:"duration_seconds" binding:"required"`
	IPAddress       *string          `json:"ip_address"`
	SSID            *string          `json:"ssid"`
	BSSID           *string          `json:"bssid"`
	Location        *LocationPayload `json:"location"`
}

// WifiSessionResponse is the public view of a session.
type WifiSessionResponse struct {
	ID               string     `json:"id"`
	UserID           string     `json:"user_id"`
	IPAddress        *string    `json:"ip_address,omitempty"`
	SSID             *string    `json:"ssid,omitempty"`
	BSSID            *string    `json:"bssid,omitempty"`
	StartTime        time.Time  `json:"start_time"`
	EndTime          *time.Time `json:"end_time,omitempty"`
	DurationSeconds  int64      `json:"duration_seconds"`
	PointsEarned     int64      `json:"points_earned"`
	IsActive         bool       `json:"is_active"`
	SessionDate      string     `json:"session_date"`
	ValidationMethod string     `json:"validation_method,omitempty"`
	Source           string     `json:"source,omitempty"`
	ClosedBy         string     `json:"closed_by,omitempty"`
	CorrelationID    string     `json:"correlation_id,omitempty"`
}

// ValidationResponse reports which evidence passed the access check.
type ValidationResponse struct {
	Valid         bool   `json:"valid"`
	NetworkValid  bool   `json:"network_valid"`
	LocationValid bool   `json:"location_valid"`
	Method        string `json:"method,omitempty"`
}

// StartSessionResponse is returned by both start routes.
type StartSessionResponse struct {
	Session    WifiSessionResponse  `json:"session"`
	Existing   bool                 `json:"existing"`
	Replaced   *WifiSessionResponse `json:"replaced_session,omitempty"`
	Validation ValidationResponse   `json:"validation"`
}

// ActiveSessionResponse is the live view of the open session.
type ActiveSessionResponse struct {
	Session         WifiSessionResponse `json:"session"`
	CurrentDuration int64               `json:"current_duration"`
	PotentialPoints int64               `json:"potential_points"`
}

// EndSessionResponse describes a closed session.
type EndSessionResponse struct {
	Session        WifiSessionResponse `json:"session"`
	PointsEarned   int64               `json:"points_earned"`
	PointsCredited bool                `json:"points_credited"`
}

// BackgroundSyncResponse is identical for first deliveries and replays apart from the flag.
type BackgroundSyncResponse struct {
	Session      WifiSessionResponse `json:"session"`
	PointsEarned int64               `json:"points_earned"`
	Replayed     bool                `json:"replayed"`
}

func toSessionResponse(s domain.WifiSession) WifiSessionResponse {
	return WifiSessionResponse{
		ID:               s.ID,
		UserID:           s.UserID,
		IPAddress:        s.Network.IP,
		SSID:             s.Network.SSID,
		BSSID:            s.Network.BSSID,
		StartTime:        s.StartTime,
		EndTime:          s.EndTime,
		DurationSeconds:  s.DurationSeconds,
		PointsEarned:     s.PointsEarned,
		IsActive:         s.IsActive,
		SessionDate:      domain.SessionDay(s.StartTime).Format(time.DateOnly),
		ValidationMethod: s.Metadata.ValidationMethod,
		Source:           string(s.Metadata.Source),
		ClosedBy:         string(s.Metadata.ClosedBy),
		CorrelationID:    s.Metadata.CorrelationID,
	}
}

func toValidationResponse(r usecase.AccessResult) ValidationResponse {
	return ValidationResponse{
		Valid:         r.Valid,
		NetworkValid:  r.NetworkValid,
		LocationValid: r.LocationValid,
		Method:        r.Method,
	}
}

func networkEvidence(ip, ssid, bssid *string) domain.NetworkEvidence {
	return domain.NetworkEvidence{IP: ip, SSID: ssid, BSSID: bssid}
}

func (p *LocationPayload) toDomain() *domain.LocationEvidence {
	if p == nil || p.Latitude == nil || p.Longitude == nil {
		return nil
	}
	return &domain.LocationEvidence{
		Latitude:  *p.Latitude,
		Longitude: *p.Longitude,
		Accuracy:  p.Accuracy,
		Timestamp: p.Timestamp,
	}
}
