package usecase

import (
	"math"
	"strings"

	"github.com/GreenityClub/Unitree-sub000/internal/core/domain"
)

const earthRadiusMeters = 6371000.0

// AccessPolicy selects which evidence Start requires.
type AccessPolicy string

const (
	// AccessPolicyStrict requires both network and location evidence.
	AccessPolicyStrict AccessPolicy = "strict"
	// AccessPolicyLegacy accepts network evidence alone.
	AccessPolicyLegacy AccessPolicy = "legacy"
)

// Validation methods recorded on sessions.
const (
	ValidationNetworkAndLocation = "network+location"
	ValidationNetworkOnly        = "network"
)

// CampusConfig describes the campus network and its geofence.
type CampusConfig struct {
	IPPrefixes    []string
	BSSIDPrefixes []string
	Latitude      float64
	Longitude     float64
	RadiusMeters  float64
}

// AccessEvidence is what the client reports about its connection.
type AccessEvidence struct {
	Network  domain.NetworkEvidence
	Location *domain.LocationEvidence
}

// AccessResult reports the verdict and which evidence passed.
type AccessResult struct {
	Valid         bool
	NetworkValid  bool
	LocationValid bool
	Method        string
}

// AccessValidator decides whether reported evidence qualifies as campus WiFi.
type AccessValidator struct {
	ipPrefixes    []string
	bssidPrefixes []string
	latitude      float64
	longitude     float64
	radius        float64
}

// NewAccessValidator normalizes the configured prefixes.
func NewAccessValidator(cfg CampusConfig) *AccessValidator {
	return &AccessValidator{
		ipPrefixes:    normalizePrefixes(cfg.IPPrefixes),
		bssidPrefixes: normalizePrefixes(cfg.BSSIDPrefixes),
		latitude:      cfg.Latitude,
		longitude:     cfg.Longitude,
		radius:        cfg.RadiusMeters,
	}
}

// Validate applies the policy to the evidence.
func (v *AccessValidator) Validate(policy AccessPolicy, evidence AccessEvidence) AccessResult {
	result := AccessResult{
		NetworkValid:  v.CheckNetwork(evidence.Network),
		LocationValid: v.CheckLocation(evidence.Location),
	}

	switch policy {
	case AccessPolicyLegacy:
		result.Valid = result.NetworkValid
		if result.Valid {
			result.Method = ValidationNetworkOnly
			if result.LocationValid {
				result.Method = ValidationNetworkAndLocation
			}
		}
	default:
		result.Valid = result.NetworkValid && result.LocationValid
		if result.Valid {
			result.Method = ValidationNetworkAndLocation
		}
	}
	return result
}

// CheckNetwork passes when the IP or the BSSID starts with a campus prefix.
func (v *AccessValidator) CheckNetwork(network domain.NetworkEvidence) bool {
	if network.IP != nil && hasAnyPrefix(*network.IP, v.ipPrefixes) {
		return true
	}
	return network.BSSID != nil && hasAnyPrefix(*network.BSSID, v.bssidPrefixes)
}

// CheckLocation passes when the fix lies within the campus radius.
func (v *AccessValidator) CheckLocation(location *domain.LocationEvidence) bool {
	if location == nil || v.radius <= 0 {
		return false
	}
	if !validCoordinate(location.Latitude, 90) || !validCoordinate(location.Longitude, 180) {
		return false
	}
	return HaversineMeters(location.Latitude, location.Longitude, v.latitude, v.longitude) <= v.radius
}

// HaversineMeters returns the great-circle distance between two coordinates.
func HaversineMeters(lat1, lng1, lat2, lng2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lng2 - lng1) * math.Pi / 180

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	return earthRadiusMeters * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

func validCoordinate(value, limit float64) bool {
	return !math.IsNaN(value) && value >= -limit && value <= limit
}

func hasAnyPrefix(value string, prefixes []string) bool {
	candidate := strings.ToLower(strings.TrimSpace(value))
	if candidate == "" {
		return false
	}
	for _, prefix := range prefixes {
		if strings.HasPrefix(candidate, prefix) {
			return true
		}
	}
	return false
}

func normalizePrefixes(prefixes []string) []string {
	out := make([]string, 0, len(prefixes))
	for _, prefix := range prefixes {
		p := strings.ToLower(strings.TrimSpace(prefix))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
