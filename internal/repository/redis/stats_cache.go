package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	red "github.com/redis/go-redis/v9"

	"github.com/GreenityClub/Unitree-sub000/internal/core/domain"
	"github.com/GreenityClub/Unitree-sub000/internal/core/port"
	"github.com/GreenityClub/Unitree-sub000/internal/repository"
)

const (
	defaultStatsPrefix = "unitree:wifi_stats"
	statsVersionTTL    = 24 * time.Hour
)

// setStatsScript writes the payload only while the version key still holds ARGV[1].
var setStatsScript = red.NewScript(`
local current = redis.call("GET", KEYS[2])
if not current then
	current = "0"
end
if current ~= ARGV[1] then
	return 0
end
redis.call("SET", KEYS[1], ARGV[2], "PX", ARGV[3])
return 1
`)

// StatsCacheRepository stores serialized per-user WiFi statistics.
type StatsCacheRepository struct {
	client *red.Client
	prefix string
}

// NewStatsCacheRepository constructs a stats cache helper.
func NewStatsCacheRepository(client *red.Client, keyPrefix string) *StatsCacheRepository {
	prefix := strings.TrimSpace(keyPrefix)
	if prefix == "" {
		prefix = defaultStatsPrefix
	}
	return &StatsCacheRepository{client: client, prefix: prefix}
}

// GetStats returns the cached statistics, or ErrNotFound on a miss.
func (r *StatsCacheRepository) GetStats(ctx context.Context, userID string) (*domain.WifiStats, error) {
	key := r.key(userID)
	if key == "" {
		return nil, fmt.Errorf("user id is required")
	}

	payload, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, red.Nil) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("redis get wifi stats: %w", err)
	}

	var stats domain.WifiStats
	if err := json.Unmarshal(payload, &stats); err != nil {
		return nil, fmt.Errorf("decode cached wifi stats: %w", err)
	}
	return &stats, nil
}

// StatsVersion returns the invalidation counter of the user, zero when it was never bumped.
func (r *StatsCacheRepository) StatsVersion(ctx context.Context, userID string) (int64, error) {
	key := r.versionKey(userID)
	if key == "" {
		return 0, fmt.Errorf("user id is required")
	}

	version, err := r.client.Get(ctx, key).Int64()
	if err != nil {
		if errors.Is(err, red.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("redis get wifi stats version: %w", err)
	}
	return version, nil
}

// SetStats stores the statistics for ttl unless the user was invalidated after version was read.
func (r *StatsCacheRepository) SetStats(ctx context.Context, stats domain.WifiStats, version int64, ttl time.Duration) (bool, error) {
	key := r.key(stats.UserID)
	if key == "" {
		return false, fmt.Errorf("user id is required")
	}
	if ttl <= 0 {
		return false, fmt.Errorf("ttl must be positive")
	}

	payload, err := json.Marshal(stats)
	if err != nil {
		return false, fmt.Errorf("encode wifi stats: %w", err)
	}
	stored, err := setStatsScript.Run(ctx, r.client,
		[]string{key, r.versionKey(stats.UserID)},
		strconv.FormatInt(version, 10), payload, ttl.Milliseconds(),
	).Int64()
	if err != nil {
		return false, fmt.Errorf("redis set wifi stats: %w", err)
	}
	return stored == 1, nil
}

// DeleteStats drops the cached statistics of the user and bumps its version.
func (r *StatsCacheRepository) DeleteStats(ctx context.Context, userID string) error {
	key := r.key(userID)
	if key == "" {
		return fmt.Errorf("user id is required")
	}
	versionKey := r.versionKey(userID)

	_, err := r.client.TxPipelined(ctx, func(pipe red.Pipeliner) error {
		pipe.Incr(ctx, versionKey)
		pipe.Expire(ctx, versionKey, statsVersionTTL)
		pipe.Del(ctx, key)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis delete wifi stats: %w", err)
	}
	return nil
}

func (r *StatsCacheRepository) key(userID string) string {
	trimmed := strings.TrimSpace(userID)
	if trimmed == "" {
		return ""
	}
	return fmt.Sprintf("%s:%s", r.prefix, trimmed)
}

func (r *StatsCacheRepository) versionKey(userID string) string {
	trimmed := strings.TrimSpace(userID)
	if trimmed == "" {
		return ""
	}
	return fmt.Sprintf("%s:version:%s", r.prefix, trimmed)
}

var _ port.StatsCache = (*StatsCacheRepository)(nil)
