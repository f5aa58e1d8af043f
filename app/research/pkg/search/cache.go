package search

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iWorld-y/research_report/app/research/pkg/logger"
	"github.com/iWorld-y/research_report/app/research/pkg/metrics"
)

type forceRefreshKey struct{}

// WithForceRefresh 跳过缓存读取，结果仍会回写
func WithForceRefresh(ctx context.Context, force bool) context.Context {
	return context.WithValue(ctx, forceRefreshKey{}, force)
}

// IsForceRefresh 是否强制刷新
func IsForceRefresh(ctx context.Context) bool {
	v, _ := ctx.Value(forceRefreshKey{}).(bool)
	return v
}

// CachedSearcher 基于 Redis 的搜索结果缓存
type CachedSearcher struct {
	next   Searcher
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

var _ Searcher = (*CachedSearcher)(nil)

// NewCachedSearcher 创建缓存装饰器
func NewCachedSearcher(next Searcher, rdb *redis.Client, prefix string, ttl time.Duration) *CachedSearcher {
	return &CachedSearcher{next: next, rdb: rdb, prefix: prefix, ttl: ttl}
}

// Key 请求对应的缓存键
func (c *CachedSearcher) Key(req *Request) string {
	data, _ := json.Marshal(req)
	sum := sha1.Sum(data)
	return c.prefix + hex.EncodeToString(sum[:])
}

// Search 缓存异常时降级为直接搜索
func (c *CachedSearcher) Search(ctx context.Context, req *Request) (*Response, error) {
	key := c.Key(req)

	if !IsForceRefresh(ctx) {
		val, err := c.rdb.Get(ctx, key).Result()
		switch {
		case err == nil:
			var resp Response
			if jerr := json.Unmarshal([]byte(val), &resp); jerr == nil {
				metrics.CacheLookups.WithLabelValues("hit").Inc()
				return &resp, nil
			}
			metrics.CacheLookups.WithLabelValues("error").Inc()
		case errors.Is(err, redis.Nil):
			metrics.CacheLookups.WithLabelValues("miss").Inc()
		default:
			metrics.CacheLookups.WithLabelValues("error").Inc()
			logger.Log.Warnf("读取搜索缓存失败 [%s]: %v", req.Query, err)
		}
	}

	resp, err := c.next.Search(ctx, req)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(resp)
	if err != nil {
		return resp, nil
	}
	if err := c.rdb.Set(ctx, key, string(data), c.ttl).Err(); err != nil {
		logger.Log.Warnf("写入搜索缓存失败 [%s]: %v", req.Query, err)
	}
	return resp, nil
}
