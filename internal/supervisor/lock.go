package supervisor

import (
	"context"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Locker 部署范围内只允许一个任务管理器
type Locker interface {
	Acquire(ctx context.Context) (bool, error)
	// Keep 定期续期直到 ctx 结束，续期失败时调用 onLost
	Keep(ctx context.Context, onLost func())
	Release(ctx context.Context) error
}

var refreshScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLock SET NX PX 实现的单例锁，token 区分持有者
type RedisLock struct {
	client *redis.Client
	key    string
	ttl    time.Duration

	mu    sync.Mutex
	token string
}

func NewRedisLock(client *redis.Client, key string, ttl time.Duration) *RedisLock {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisLock{client: client, key: key, ttl: ttl}
}

func (l *RedisLock) Acquire(ctx context.Context) (bool, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return false, eris.Wrapf(err, "supervisor: acquire lock %s", l.key)
	}
	if !ok {
		return false, nil
	}

	l.mu.Lock()
	l.token = token
	l.mu.Unlock()
	return true, nil
}

// Refresh 仍持有锁时延长过期时间
func (l *RedisLock) Refresh(ctx context.Context) (bool, error) {
	token := l.currentToken()
	if token == "" {
		return false, nil
	}

	n, err := refreshScript.Run(ctx, l.client, []string{l.key}, token, l.ttl.Milliseconds()).Int64()
	if err != nil {
		return false, eris.Wrapf(err, "supervisor: refresh lock %s", l.key)
	}
	return n == 1, nil
}

func (l *RedisLock) Keep(ctx context.Context, onLost func()) {
	ticker := time.NewTicker(l.ttl / 3)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ok, err := l.Refresh(ctx)
			if ctx.Err() != nil {
				return
			}
			if err != nil {
				zap.L().Warn("refresh supervisor lock failed", zap.String("key", l.key), zap.Error(err))
				continue
			}
			if !ok {
				zap.L().Error("supervisor lock lost", zap.String("key", l.key))
				if onLost != nil {
					onLost()
				}
				return
			}
		}
	}
}

// Release 只删除自己持有的锁
func (l *RedisLock) Release(ctx context.Context) error {
	l.mu.Lock()
	token := l.token
	l.token = ""
	l.mu.Unlock()

	if token == "" {
		return nil
	}
	if err := releaseScript.Run(ctx, l.client, []string{l.key}, token).Err(); err != nil && err != redis.Nil {
		return eris.Wrapf(err, "supervisor: release lock %s", l.key)
	}
	return nil
}

func (l *RedisLock) currentToken() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.token
}
