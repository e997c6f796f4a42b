package accountlock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// releaseScript удаляет ключ, только если он всё ещё наш.
var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

// Redis реализует распределённую блокировку через SET NX PX.
// TTL защищает от вечной блокировки, если процесс умер, не отпустив ключ.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
	retry  time.Duration
	prefix string
}

// NewRedis создаёт блокировщик поверх клиента Redis.
func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Redis{
		client: client,
		ttl:    ttl,
		retry:  50 * time.Millisecond,
		prefix: "lock:account:",
	}
}

// Lock повторяет SET NX, пока ключ занят, до отмены ctx.
func (r *Redis) Lock(ctx context.Context, userID int64) (func(), error) {
	key := fmt.Sprintf("%s%d", r.prefix, userID)
	token := uuid.NewString()

	ticker := time.NewTicker(r.retry)
	defer ticker.Stop()

	for {
		ok, err := r.client.SetNX(ctx, key, token, r.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("захват блокировки %s: %w", key, err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}

	return func() {
		// Отпускаем даже если ctx запроса уже отменён
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		n, err := releaseScript.Run(releaseCtx, r.client, []string{key}, token).Int()
		if err != nil {
			log.WithError(err).WithField("key", key).Warn("не удалось снять блокировку аккаунта")
			return
		}
		if n == 0 {
			log.WithField("key", key).Warn("блокировка аккаунта истекла до освобождения")
		}
	}, nil
}
