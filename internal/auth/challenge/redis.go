package challenge

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/rueidis"
)

const keyPrefix = "auth_challenge:"

// putScript replaces the challenge hash and sets its retention in one step.
var putScript = rueidis.NewLuaScript(`
redis.call('DEL', KEYS[1])
redis.call('HSET', KEYS[1], 'nonce', ARGV[1], 'payload', ARGV[2])
redis.call('PEXPIRE', KEYS[1], ARGV[3])
return 1
`)

// consumeScript deletes the challenge only while it still carries the nonce.
var consumeScript = rueidis.NewLuaScript(`
if redis.call('HGET', KEYS[1], 'nonce') == ARGV[1] then
	return redis.call('DEL', KEYS[1])
end
return 0
`)

// RedisStore shares challenges between service instances. Each challenge is
// a hash holding the nonce and the sonic-encoded challenge.
type RedisStore struct {
	client    rueidis.Client
	retention time.Duration
}

var _ Store = (*RedisStore)(nil)

func NewRedisStore(client rueidis.Client, retention time.Duration) *RedisStore {
	return &RedisStore{client: client, retention: retention}
}

func key(owner string) string {
	return keyPrefix + owner
}

func (s *RedisStore) Put(ctx context.Context, c Challenge) error {
	payload, err := sonic.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode challenge: %w", err)
	}
	ttl := strconv.FormatInt(s.retention.Milliseconds(), 10)
	if err := putScript.Exec(ctx, s.client, []string{key(c.OwnerKey)}, []string{c.Nonce, string(payload), ttl}).Error(); err != nil {
		return fmt.Errorf("store challenge: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, owner string) (*Challenge, error) {
	payload, err := s.client.Do(ctx, s.client.B().Hget().Key(key(owner)).Field("payload").Build()).AsBytes()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("load challenge: %w", err)
	}
	var c Challenge
	if err := sonic.Unmarshal(payload, &c); err != nil {
		return nil, fmt.Errorf("decode challenge: %w", err)
	}
	return &c, nil
}

func (s *RedisStore) Consume(ctx context.Context, owner, nonce string) (bool, error) {
	n, err := consumeScript.Exec(ctx, s.client, []string{key(owner)}, []string{nonce}).AsInt64()
	if err != nil {
		return false, fmt.Errorf("consume challenge: %w", err)
	}
	return n == 1, nil
}
