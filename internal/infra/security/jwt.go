package security

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	uuid "github.com/google/uuid"

	"github.com/GreenityClub/Unitree-sub000/internal/core/domain"
	"github.com/GreenityClub/Unitree-sub000/internal/infra/config"
)

var (
	// ErrInvalidToken covers malformed, expired and badly signed tokens.
	ErrInvalidToken = errors.New("jwt: invalid token")
	// ErrUnsupportedAlgorithm is returned for algorithms other than HS256 and RS256.
	ErrUnsupportedAlgorithm = errors.New("jwt: unsupported algorithm")
)

// AccessTokenClaims are the claims issued by the account service.
type AccessTokenClaims struct {
	Roles  []string `json:"roles,omitempty"`
	UserID string   `json:"uid"`
	jwt.RegisteredClaims
}

// TokenVerifier validates bearer tokens and turns them into principals.
type TokenVerifier struct {
	method   jwt.SigningMethod
	key      any
	issuer   string
	audience string
	now      func() time.Time
}

// NewTokenVerifier builds a verifier from configuration. HS256 needs a shared secret and RS256
// a PEM encoded public key.
func NewTokenVerifier(cfg config.JWTSettings) (*TokenVerifier, error) {
	v := &TokenVerifier{
		issuer:   strings.TrimSpace(cfg.Issuer),
		audience: strings.TrimSpace(cfg.Audience),
		now:      time.Now,
	}

	switch strings.ToUpper(strings.TrimSpace(cfg.Algorithm)) {
	case "", "HS256":
		if cfg.Secret == "" {
			return nil, fmt.Errorf("jwt: secret is required for HS256")
		}
		v.method = jwt.SigningMethodHS256
		v.key = []byte(cfg.Secret)
	case "RS256":
		raw, err := os.ReadFile(cfg.PublicKeyPath)
		if err != nil {
			return nil, fmt.Errorf("jwt: read public key: %w", err)
		}
		key, err := jwt.ParseRSAPublicKeyFromPEM(raw)
		if err != nil {
			return nil, fmt.Errorf("jwt: parse public key: %w", err)
		}
		v.method = jwt.SigningMethodRS256
		v.key = key
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedAlgorithm, cfg.Algorithm)
	}

	return v, nil
}

// NewRSATokenVerifier verifies RS256 tokens with an in-memory key.
func NewRSATokenVerifier(key *rsa.PublicKey, issuer string) *TokenVerifier {
	return &TokenVerifier{method: jwt.SigningMethodRS256, key: key, issuer: issuer, now: time.Now}
}

// WithClock overrides the clock used for expiry checks.
func (v *TokenVerifier) WithClock(clock func() time.Time) *TokenVerifier {
	if clock != nil {
		v.now = clock
	}
	return v
}

// Verify parses the token and returns the authenticated principal.
func (v *TokenVerifier) Verify(raw string) (domain.Principal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return domain.Principal{}, ErrInvalidToken
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{v.method.Alg()}),
		jwt.WithTimeFunc(v.now),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	claims := &AccessTokenClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return v.key, nil
	}, opts...)
	if err != nil || !token.Valid {
		return domain.Principal{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	userID := strings.TrimSpace(claims.UserID)
	if userID == "" {
		userID = strings.TrimSpace(claims.Subject)
	}
	if userID == "" {
		return domain.Principal{}, fmt.Errorf("%w: missing user id", ErrInvalidToken)
	}

	return domain.Principal{UserID: userID, Roles: normalizeRoles(claims.Roles)}, nil
}

// AccessTokenOptions configures creation of access token claims.
type AccessTokenOptions struct {
	UserID   string
	Roles    []string
	Issuer   string
	Audience []string
	TTL      time.Duration
	IssuedAt time.Time
}

const defaultAccessTokenTTL = 15 * time.Minute

// NewAccessTokenClaims constructs standardized access token claims.
func NewAccessTokenClaims(opts AccessTokenOptions) (*AccessTokenClaims, error) {
	userID := strings.TrimSpace(opts.UserID)
	if userID == "" {
		return nil, fmt.Errorf("jwt: user id is required")
	}

	now := opts.IssuedAt
	if now.IsZero() {
		now = time.Now().UTC()
	} else {
		now = now.UTC()
	}

	ttl := opts.TTL
	if ttl <= 0 {
		ttl = defaultAccessTokenTTL
	}

	return &AccessTokenClaims{
		Roles:  normalizeRoles(opts.Roles),
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    strings.TrimSpace(opts.Issuer),
			Audience:  opts.Audience,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}, nil
}

// SignHS256 signs claims with a shared secret. Used by local tooling and tests.
func SignHS256(secret string, claims *AccessTokenClaims) (string, error) {
	if claims == nil {
		return "", fmt.Errorf("jwt: access token claims required")
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("jwt: sign token: %w", err)
	}
	return signed, nil
}

// SignRS256 signs claims with a private key.
func SignRS256(key *rsa.PrivateKey, kid string, claims *AccessTokenClaims) (string, error) {
	if claims == nil {
		return "", fmt.Errorf("jwt: access token claims required")
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	if kid = strings.TrimSpace(kid); kid != "" {
		token.Header["kid"] = kid
	}
	signed, err := token.SignedString(key)
	if err != nil {
		return "", fmt.Errorf("jwt: sign token: %w", err)
	}
	return signed, nil
}

func normalizeRoles(input []string) []string {
	if len(input) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(input))
	result := make([]string, 0, len(input))
	for _, role := range input {
		role = strings.TrimSpace(role)
		if role == "" {
			continue
		}
		if _, exists := seen[role]; exists {
			continue
		}
		seen[role] = struct{}{}
		result = append(result, role)
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
