package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	red "github.com/redis/go-redis/v9"

	"github.com/GreenityClub/Unitree-sub000/internal/core/port"
)

const defaultLockPrefix = "unitree:lock"

// releaseScript deletes the lock only while it still belongs to the caller.
var releaseScript = red.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// SweepLockRepository implements port.SweepLock with SET NX leases.
type SweepLockRepository struct {
	client *red.Client
	prefix string
}

// NewSweepLockRepository constructs a lease helper.
func NewSweepLockRepository(client *red.Client, keyPrefix string) *SweepLockRepository {
	prefix := strings.TrimSpace(keyPrefix)
	if prefix == "" {
		prefix = defaultLockPrefix
	}
	return &SweepLockRepository{client: client, prefix: prefix}
}

// TryAcquire takes the named lease for ttl unless another owner holds it.
func (r *SweepLockRepository) TryAcquire(ctx context.Context, name, owner string, ttl time.Duration) (bool, error) {
	if strings.TrimSpace(name) == "" || strings.TrimSpace(owner) == "" {
		return false, fmt.Errorf("lock name and owner are required")
	}
	if ttl <= 0 {
		return false, fmt.Errorf("ttl must be positive")
	}

	acquired, err := r.client.SetNX(ctx, r.key(name), owner, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis acquire lock: %w", err)
	}
	return acquired, nil
}

// Release frees the lease when the caller still owns it.
func (r *SweepLockRepository) Release(ctx context.Context, name, owner string) error {
	if err := releaseScript.Run(ctx, r.client, []string{r.key(name)}, owner).Err(); err != nil {
		return fmt.Errorf("redis release lock: %w", err)
	}
	return nil
}

func (r *SweepLockRepository) key(name string) string {
	return fmt.Sprintf("%s:%s", r.prefix, strings.TrimSpace(name))
}

var _ port.SweepLock = (*SweepLockRepository)(nil)
