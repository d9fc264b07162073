package heartbeat

import (
	"context"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

const keyPrefix = "worker:heartbeat:"

// Key worker 心跳的 redis key
func Key(instance string) string {
	return keyPrefix + instance
}

// Beater worker 端，定期刷新带 TTL 的心跳
type Beater struct {
	client   *redis.Client
	instance string
	pid      int
	ttl      time.Duration
}

func NewBeater(client *redis.Client, instance string, pid int, ttl time.Duration) *Beater {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Beater{client: client, instance: instance, pid: pid, ttl: ttl}
}

// Beat 刷新一次心跳
func (b *Beater) Beat(ctx context.Context) error {
	if err := b.client.Set(ctx, Key(b.instance), strconv.Itoa(b.pid), b.ttl).Err(); err != nil {
		return eris.Wrapf(err, "heartbeat: set %s", b.instance)
	}
	return nil
}

// Run 每 ttl/3 刷新一次，ctx 结束时删除心跳
func (b *Beater) Run(ctx context.Context) {
	interval := b.ttl / 3
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	if err := b.Beat(ctx); err != nil {
		zap.L().Warn("heartbeat failed", zap.String("worker", b.instance), zap.Error(err))
	}

	for {
		select {
		case <-ctx.Done():
			cleanupCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			b.client.Del(cleanupCtx, Key(b.instance))
			cancel()
			return
		case <-ticker.C:
			if err := b.Beat(ctx); err != nil {
				zap.L().Warn("heartbeat failed", zap.String("worker", b.instance), zap.Error(err))
			}
		}
	}
}

// Checker 监督端，判断 worker 是否存活
type Checker struct {
	client *redis.Client
}

func NewChecker(client *redis.Client) *Checker {
	return &Checker{client: client}
}

// Alive 心跳 key 存在即视为存活
func (c *Checker) Alive(ctx context.Context, instance string) (bool, error) {
	n, err := c.client.Exists(ctx, Key(instance)).Result()
	if err != nil {
		return false, eris.Wrapf(err, "heartbeat: check %s", instance)
	}
	return n == 1, nil
}
