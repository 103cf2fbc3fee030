package logger

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	lg   *zap.Logger
	once sync.Once
)

// New returns a singleton zap.Logger configured for structured logging.
func New(env string) (*zap.Logger, error) {
	var err error
	once.Do(func() {
		cfg := zap.NewProductionConfig()
		if env != "production" {
			cfg = zap.NewDevelopmentConfig()
			cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		}

		lg, err = cfg.Build()
	})

	return lg, err
}

// WithContext attaches request scoped fields to the logger.
func WithContext(ctx context.Context) *zap.Logger {
	if lg == nil {
		lz, _ := zap.NewDevelopment()
		return lz
	}
	if ctx == nil {
		return lg
	}
	return lg.With(zap.String("request_id", RequestIDFromContext(ctx)))
}

// RequestIDFromContext returns the request identifier stored by the HTTP middleware.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if val, ok := ctx.Value(RequestIDKey{}).(string); ok {
		return val
	}
	return ""
}

// RequestIDKey is used to store a request identifier on the context.
type RequestIDKey struct{}

// MaskIP keeps the first two IPv4 octets or the first four IPv6 groups.
// Example: 192.168.1.100 -> 192.168.*.*
func MaskIP(ip string) string {
	if ip == "" {
		return ""
	}

	if strings.Contains(ip, ".") {
		parts := strings.Split(ip, ".")
		if len(parts) == 4 {
			return parts[0] + "." + parts[1] + ".*.*"
		}
	}

	if strings.Contains(ip, ":") {
		parts := strings.Split(ip, ":")
		if len(parts) >= 4 {
			return strings.Join(parts[:4], ":") + ":*:*:*:*"
		}
	}

	return "***"
}

// MaskBSSID keeps the vendor prefix (first three octets) of an access point MAC.
// Example: aa:bb:cc:dd:ee:ff -> aa:bb:cc:**:**:**
func MaskBSSID(bssid string) string {
	if bssid == "" {
		return ""
	}
	sep := ":"
	if !strings.Contains(bssid, sep) {
		sep = "-"
	}
	parts := strings.Split(bssid, sep)
	if len(parts) != 6 {
		return "***"
	}
	return strings.Join(parts[:3], sep) + sep + "**" + sep + "**" + sep + "**"
}

// MaskCoordinate rounds a coordinate to two decimals (about one kilometre).
func MaskCoordinate(value float64) float64 {
	scaled := value * 100
	if scaled < 0 {
		return float64(int64(scaled-0.5)) / 100
	}
	return float64(int64(scaled+0.5)) / 100
}
