package googlenews

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/iWorld-y/research_report/app/research/pkg/logger"
	"github.com/iWorld-y/research_report/app/research/pkg/search"
)

const (
	defaultBaseURL = "https://news.google.com/rss/search"
	userAgent      = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

var tagPattern = regexp.MustCompile(`<[^>]*>`)

// Client Google News RSS 搜索
type Client struct {
	baseURL    string
	parser     *gofeed.Parser
	maxRetries int
	baseDelay  time.Duration
}

// Option 客户端选项
type Option func(*Client)

// WithBaseURL 替换 RSS 地址
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithRetry 429 重试配置
func WithRetry(maxRetries int, baseDelay time.Duration) Option {
	return func(c *Client) {
		c.maxRetries = maxRetries
		c.baseDelay = baseDelay
	}
}

// NewClient 创建 Google News 客户端，timeout 单位秒
func NewClient(timeout int, opts ...Option) *Client {
	t := time.Duration(timeout) * time.Second
	if t == 0 {
		t = 20 * time.Second
	}
	fp := gofeed.NewParser()
	fp.UserAgent = userAgent
	fp.Client = &http.Client{Timeout: t}

	c := &Client{
		baseURL:    defaultBaseURL,
		parser:     fp,
		maxRetries: 5,
		baseDelay:  time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ search.Searcher = (*Client)(nil)

// FeedURL 构造搜索地址，中文查询使用中文版，日期范围转成 after:/before:
func (c *Client) FeedURL(req *search.Request) string {
	query := req.Query
	if req.StartDate != "" {
		query += " after:" + req.StartDate
	}
	if req.EndDate != "" {
		query += " before:" + req.EndDate
	}

	lang, region, ceid := "en-US", "US", "US:en"
	if hasCJK(req.Query) {
		lang, region, ceid = "zh-CN", "CN", "CN:zh-Hans"
	}

	v := url.Values{}
	v.Set("q", query)
	v.Set("hl", lang)
	v.Set("gl", region)
	v.Set("ceid", ceid)
	return c.baseURL + "?" + v.Encode()
}

// Search 实现 search.Searcher
func (c *Client) Search(ctx context.Context, req *search.Request) (*search.Response, error) {
	feed, err := c.fetch(ctx, c.FeedURL(req))
	if err != nil {
		return nil, err
	}

	max := req.MaxResults
	if max <= 0 {
		max = 10
	}
	var results []search.Result
	for _, item := range feed.Items {
		if len(results) >= max {
			break
		}
		title, source := SplitTitle(item.Title)
		published := item.Published
		if item.PublishedParsed != nil {
			published = item.PublishedParsed.Format(time.DateOnly)
		}
		results = append(results, search.Result{
			Title:         title,
			URL:           item.Link,
			Content:       cleanDescription(item.Description),
			PublishedDate: published,
			Source:        source,
		})
	}
	return &search.Response{Results: results}, nil
}

func (c *Client) fetch(ctx context.Context, feedURL string) (*gofeed.Feed, error) {
	var lastErr error
	for i := 0; i <= c.maxRetries; i++ {
		feed, err := c.parser.ParseURLWithContext(feedURL, ctx)
		if err == nil {
			return feed, nil
		}
		lastErr = err

		var httpErr gofeed.HTTPError
		if !errors.As(err, &httpErr) || httpErr.StatusCode != http.StatusTooManyRequests || i == c.maxRetries {
			break
		}
		delay := c.baseDelay * time.Duration(1<<i)
		logger.Log.Warnf("Google News 限流，%v 后重试 (%d/%d)", delay, i+1, c.maxRetries)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
	return nil, fmt.Errorf("google news fetch failed: %w", lastErr)
}

// SplitTitle 拆分 "标题 - 来源"
func SplitTitle(raw string) (title, source string) {
	raw = strings.TrimSpace(raw)
	idx := strings.LastIndex(raw, " - ")
	if idx <= 0 {
		return raw, ""
	}
	return strings.TrimSpace(raw[:idx]), strings.TrimSpace(raw[idx+3:])
}

func cleanDescription(s string) string {
	s = tagPattern.ReplaceAllString(s, " ")
	s = html.UnescapeString(s)
	return strings.Join(strings.Fields(s), " ")
}

func hasCJK(s string) bool {
	for _, r := range s {
		if r >= 0x4e00 && r <= 0x9fff {
			return true
		}
	}
	return false
}
