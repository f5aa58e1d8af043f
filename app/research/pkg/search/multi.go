package search

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/iWorld-y/research_report/app/research/pkg/logger"
)

// MultiSearcher 并发查询多个搜索源并按 URL 去重
type MultiSearcher struct {
	providers []Provider
}

var _ Searcher = (*MultiSearcher)(nil)

// NewMultiSearcher 创建多源搜索
func NewMultiSearcher(providers ...Provider) *MultiSearcher {
	return &MultiSearcher{providers: providers}
}

// Names 搜索源名称
func (m *MultiSearcher) Names() []string {
	names := make([]string, len(m.providers))
	for i, p := range m.providers {
		names[i] = p.Name
	}
	return names
}

// Search 所有搜索源都失败时才返回错误
func (m *MultiSearcher) Search(ctx context.Context, req *Request) (*Response, error) {
	if len(m.providers) == 0 {
		return nil, errors.New("no search provider configured")
	}

	results := make([][]Result, len(m.providers))
	errs := make([]error, len(m.providers))

	var g errgroup.Group
	for i, p := range m.providers {
		g.Go(func() error {
			resp, err := p.Searcher.Search(ctx, req)
			if err != nil {
				logger.Log.Warnf("搜索源 [%s] 查询失败 [%s]: %v", p.Name, req.Query, err)
				errs[i] = fmt.Errorf("%s: %w", p.Name, err)
				return nil
			}
			results[i] = resp.Results
			return nil
		})
	}
	_ = g.Wait()

	var merged []Result
	seen := make(map[string]bool)
	failed := 0
	for i := range m.providers {
		if errs[i] != nil {
			failed++
			continue
		}
		for _, r := range results[i] {
			key := NormalizeURL(r.URL)
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			merged = append(merged, r)
		}
	}

	if failed == len(m.providers) {
		return nil, errors.Join(errs...)
	}
	if req.MaxResults > 0 && len(merged) > req.MaxResults {
		merged = merged[:req.MaxResults]
	}
	return &Response{Results: merged}, nil
}

// NormalizeURL 去重用的 URL 归一化：忽略协议、大小写主机、锚点和末尾斜杠
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return strings.ToLower(strings.TrimSuffix(raw, "/"))
	}
	host := strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	path := strings.TrimSuffix(u.EscapedPath(), "/")
	key := host + path
	if u.RawQuery != "" {
		key += "?" + u.RawQuery
	}
	return key
}
