package lock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// releaseScript deletes the key only if it still carries our token, so an
// expired lock re-acquired by another turn is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis is a Locker shared by every server instance using the same Redis.
type Redis struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	return &Redis{client: client, prefix: "capstone:turn:", ttl: ttl}
}

func (r *Redis) TryLock(ctx context.Context, key string) (func(), error) {
	token := uuid.NewString()
	name := r.prefix + key

	ok, err := r.client.SetNX(ctx, name, token, r.ttl).Result()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to acquire %s", name)
	}
	if !ok {
		return nil, ErrLocked
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// the request context may already be cancelled here
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := releaseScript.Run(ctx, r.client, []string{name}, token).Err(); err != nil {
				logrus.Warnf("failed to release %s: %s", name, err)
			}
		})
	}, nil
}
