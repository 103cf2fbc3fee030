// Command devtoken mints HS256 access tokens for local testing against the configured secret.
package main

import (
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/GreenityClub/Unitree-sub000/internal/infra/config"
	"github.com/GreenityClub/Unitree-sub000/internal/infra/security"
)

func main() {
	userID := flag.String("user", "", "user id placed in the uid claim")
	roles := flag.String("roles", "", "comma separated roles, e.g. admin")
	ttl := flag.Duration("ttl", time.Hour, "token lifetime")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if !strings.EqualFold(cfg.JWT.Algorithm, "HS256") {
		log.Fatalf("devtoken only signs HS256 tokens, configured algorithm is %s", cfg.JWT.Algorithm)
	}

	var audience []string
	if cfg.JWT.Audience != "" {
		audience = []string{cfg.JWT.Audience}
	}

	claims, err := security.NewAccessTokenClaims(security.AccessTokenOptions{
		UserID:   *userID,
		Roles:    strings.Split(*roles, ","),
		Issuer:   cfg.JWT.Issuer,
		Audience: audience,
		TTL:      *ttl,
	})
	if err != nil {
		log.Fatalf("build claims: %v", err)
	}

	token, err := security.SignHS256(cfg.JWT.Secret, claims)
	if err != nil {
		log.Fatalf("sign token: %v", err)
	}
	fmt.Println(token)
}
