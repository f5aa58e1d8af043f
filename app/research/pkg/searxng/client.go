package searxng

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/iWorld-y/research_report/app/research/pkg/search"
)

const userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Client SearXNG API 客户端
type Client struct {
	client *resty.Client
}

// NewClient 创建一个新的 SearXNG 客户端，timeout 单位秒
func NewClient(baseURL string, timeout int) *Client {
	t := time.Duration(timeout) * time.Second
	if t == 0 {
		t = 30 * time.Second
	}
	return &Client{
		client: resty.New().
			SetBaseURL(strings.TrimSuffix(baseURL, "/")).
			SetTimeout(t).
			SetHeader("User-Agent", userAgent),
	}
}

var _ search.Searcher = (*Client)(nil)

// SearchResponse SearXNG 响应结构
type SearchResponse struct {
	Query   string         `json:"query"`
	Results []SearchResult `json:"results"`
}

// SearchResult SearXNG 单条结果
type SearchResult struct {
	Title         string   `json:"title"`
	URL           string   `json:"url"`
	Content       string   `json:"content"`
	PublishedDate string   `json:"publishedDate"`
	Score         float64  `json:"score"`
	Engines       []string `json:"engines"`
}

// Search 执行搜索
func (c *Client) Search(ctx context.Context, req *search.Request) (*search.Response, error) {
	category := "general"
	if req.Topic == "news" {
		category = "news"
	}
	params := map[string]string{
		"q":          req.Query,
		"format":     "json",
		"categories": category,
	}
	if hasCJK(req.Query) {
		params["language"] = "zh-CN"
	}
	if tr := timeRange(req.StartDate); tr != "" {
		params["time_range"] = tr
	}

	var out SearchResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParams(params).
		SetResult(&out).
		Get("/search")
	if err != nil {
		return nil, fmt.Errorf("searxng request failed: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("searxng api error (status %d): %s", resp.StatusCode(), resp.String())
	}

	var results []search.Result
	for _, r := range out.Results {
		if req.MaxResults > 0 && len(results) >= req.MaxResults {
			break
		}
		source := ""
		if len(r.Engines) > 0 {
			source = "searxng/" + r.Engines[0]
		}
		results = append(results, search.Result{
			Title:         r.Title,
			URL:           r.URL,
			Content:       r.Content,
			Score:         r.Score,
			PublishedDate: r.PublishedDate,
			Source:        source,
		})
	}
	return &search.Response{Results: results}, nil
}

// timeRange SearXNG 只支持 day/month/year 粒度
func timeRange(startDate string) string {
	if startDate == "" {
		return ""
	}
	start, err := time.Parse(time.DateOnly, startDate)
	if err != nil {
		return ""
	}
	switch age := time.Since(start); {
	case age <= 24*time.Hour:
		return "day"
	case age <= 31*24*time.Hour:
		return "month"
	case age <= 366*24*time.Hour:
		return "year"
	}
	return ""
}

func hasCJK(s string) bool {
	for _, r := range s {
		if r >= 0x4e00 && r <= 0x9fff {
			return true
		}
	}
	return false
}
