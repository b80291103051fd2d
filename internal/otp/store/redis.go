package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"civreg/internal/otp/models"
	"civreg/pkg/platform/sentinel"
)

const keyPrefix = "otp:"

// consumeScript verifies and deletes in one server-side step so two
// concurrent verifications can never both succeed on the same token.
var consumeScript = redis.NewScript(`
local code = redis.call('HGET', KEYS[1], 'code')
if not code then
	return false
end
if code ~= ARGV[1] then
	return 'mismatch'
end
local purpose = redis.call('HGET', KEYS[1], 'purpose')
redis.call('DEL', KEYS[1])
return purpose
`)

// Redis persists tokens as hashes with a TTL matching the token expiry, so
// expired tokens vanish without any sweeper. Replace runs DEL+HSET+EXPIRE in
// one MULTI/EXEC and ConsumeIfMatch is a Lua script.
type Redis struct {
	client redis.Cmdable
}

func NewRedis(client redis.Cmdable) *Redis {
	return &Redis{client: client}
}

func (s *Redis) Replace(ctx context.Context, token *models.Token) error {
	key := keyPrefix + token.Email
	ttl := time.Until(token.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("token for %s is already expired", token.Email)
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.HSet(ctx, key,
		"code", token.Code,
		"purpose", string(token.Purpose),
		"created_at", token.CreatedAt.Unix(),
	)
	pipe.Expire(ctx, key, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("replace token: %w", wrapUnavailable(err))
	}
	return nil
}

func (s *Redis) ConsumeIfMatch(ctx context.Context, email, code string, _ time.Time) (models.Purpose, error) {
	res, err := consumeScript.Run(ctx, s.client, []string{keyPrefix + email}, code).Result()
	if err != nil {
		// A missing key makes the script return false, which go-redis
		// surfaces as redis.Nil. Redis TTL already reaped expired tokens,
		// so missing covers expired here.
		if errors.Is(err, redis.Nil) {
			return "", sentinel.ErrNotFound
		}
		return "", fmt.Errorf("consume token: %w", wrapUnavailable(err))
	}
	str, ok := res.(string)
	if !ok || str == "mismatch" {
		return "", ErrMismatch
	}
	return models.Purpose(str), nil
}

func wrapUnavailable(err error) error {
	return fmt.Errorf("%w: %w", sentinel.ErrUnavailable, err)
}
