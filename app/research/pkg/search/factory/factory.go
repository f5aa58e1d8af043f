package factory

import (
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iWorld-y/research_report/app/research/pkg/config"
	"github.com/iWorld-y/research_report/app/research/pkg/googlenews"
	"github.com/iWorld-y/research_report/app/research/pkg/search"
	"github.com/iWorld-y/research_report/app/research/pkg/searxng"
	"github.com/iWorld-y/research_report/app/research/pkg/tavily"
)

// NewRedisClient 未配置地址时返回 nil
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	if cfg.Addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// NewSearcher 根据配置创建搜索实例，rdb 不为空且开启缓存时包一层 Redis 缓存
func NewSearcher(cfg *config.Config, rdb *redis.Client) (search.Searcher, error) {
	providers, err := newProviders(cfg)
	if err != nil {
		return nil, err
	}

	var s search.Searcher
	if len(providers) == 1 {
		s = providers[0].Searcher
	} else {
		s = search.NewMultiSearcher(providers...)
	}

	if cfg.Search.Cache.Enabled && rdb != nil {
		ttl := time.Duration(cfg.Search.Cache.TTL) * time.Second
		s = search.NewCachedSearcher(s, rdb, cfg.Search.Cache.Prefix, ttl)
	}
	return s, nil
}

func newProviders(cfg *config.Config) ([]search.Provider, error) {
	sc := cfg.Search
	provider := sc.Provider
	if provider == "" {
		// 默认回退逻辑：有 tavily key 用 tavily，其次 searxng，最后 Google News
		switch {
		case sc.Tavily.APIKey != "":
			provider = "tavily"
		case sc.SearXNG.BaseURL != "":
			provider = "searxng"
		default:
			provider = "googlenews"
		}
	}

	var providers []search.Provider
	add := func(name string, s search.Searcher) {
		providers = append(providers, search.Provider{Name: name, Searcher: search.Instrument(name, s)})
	}

	switch provider {
	case "tavily":
		if sc.Tavily.APIKey == "" {
			return nil, fmt.Errorf("tavily api key is missing")
		}
		add("tavily", tavily.NewClient(sc.Tavily.APIKey))

	case "searxng":
		if sc.SearXNG.BaseURL == "" {
			return nil, fmt.Errorf("searxng base url is missing")
		}
		add("searxng", searxng.NewClient(sc.SearXNG.BaseURL, sc.SearXNG.Timeout))

	case "googlenews":
		add("googlenews", googlenews.NewClient(sc.GoogleNews.Timeout))
		return providers, nil

	case "all":
		if sc.Tavily.APIKey != "" {
			add("tavily", tavily.NewClient(sc.Tavily.APIKey))
		}
		if sc.SearXNG.BaseURL != "" {
			add("searxng", searxng.NewClient(sc.SearXNG.BaseURL, sc.SearXNG.Timeout))
		}
		add("googlenews", googlenews.NewClient(sc.GoogleNews.Timeout))
		return providers, nil

	default:
		return nil, fmt.Errorf("unknown search provider: %s", provider)
	}

	// 中文新闻补充
	if sc.GoogleNews.Enabled {
		add("googlenews", googlenews.NewClient(sc.GoogleNews.Timeout))
	}
	return providers, nil
}
