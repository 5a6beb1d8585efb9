package sessions

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const blacklistPrefix = "blacklist:access:"

// Blacklist records revoked access tokens in Redis until they expire.
// A nil *Blacklist or one without a client accepts every token.
type Blacklist struct {
	client *redis.Client
}

func NewBlacklist(c *redis.Client) *Blacklist { return &Blacklist{client: c} }

func (b *Blacklist) enabled() bool { return b != nil && b.client != nil }

// Revoke blacklists token for ttl.
func (b *Blacklist) Revoke(ctx context.Context, token string, ttl time.Duration) error {
	if !b.enabled() || ttl <= 0 {
		return nil
	}
	return b.client.Set(ctx, blacklistPrefix+token, "1", ttl).Err()
}

// IsRevoked reports whether token was blacklisted and has not yet expired.
func (b *Blacklist) IsRevoked(ctx context.Context, token string) (bool, error) {
	if !b.enabled() {
		return false, nil
	}
	n, err := b.client.Exists(ctx, blacklistPrefix+token).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
