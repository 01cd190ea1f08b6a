// 包 fetch：聚合端点抓取层（HTTP 客户端、可选 Redis 缓存、竞态安全控制器）
package fetch

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"dvf-dashboard/internal/logger"
	"dvf-dashboard/internal/metrics"
)

// Cache：聚合载荷的读穿缓存
// 背景：同一选择被反复提交时避免重复打到聚合服务；键为端点路径+查询串。
// 约束：缓存只短路网络调用，代际校验仍是唯一的正确性保障；
// rc 为 nil 时所有操作为空操作，便于无 Redis 环境直接运行。
type Cache struct {
	rc  *redis.Client
	ttl time.Duration
}

func NewCache(rc *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Cache{rc: rc, ttl: ttl}
}

func (c *Cache) get(ctx context.Context, key string) ([]byte, bool) {
	if c == nil || c.rc == nil {
		return nil, false
	}
	s, err := c.rc.Get(ctx, "dvf:"+key).Result()
	if err != nil || s == "" {
		metrics.CacheMissesTotal.Inc()
		return nil, false
	}
	metrics.CacheHitsTotal.Inc()
	return []byte(s), true
}

func (c *Cache) set(ctx context.Context, key string, body []byte) {
	if c == nil || c.rc == nil {
		return
	}
	if err := c.rc.Set(ctx, "dvf:"+key, string(body), c.ttl).Err(); err != nil {
		logger.L().Debug("cache_set_error", "key", key, "err", err)
	}
}
