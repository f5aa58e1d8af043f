package fetch

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/go-shiori/go-readability"
	"golang.org/x/sync/errgroup"

	"github.com/iWorld-y/research_report/app/research/pkg/logger"
	"github.com/iWorld-y/research_report/app/research/pkg/model"
	"github.com/iWorld-y/research_report/app/research/pkg/search"
)

const userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Fetcher 抓取网页正文
type Fetcher struct {
	client  *resty.Client
	workers int
}

// NewFetcher 创建抓取器
func NewFetcher(timeout time.Duration, workers int) *Fetcher {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	if workers <= 0 {
		workers = 4
	}
	return &Fetcher{
		client:  resty.New().SetTimeout(timeout).SetHeader("User-Agent", userAgent),
		workers: workers,
	}
}

// Article 抓取网页并用 readability 提取正文
func (f *Fetcher) Article(ctx context.Context, pageURL string) (string, error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return "", fmt.Errorf("invalid url %q: %w", pageURL, err)
	}

	resp, err := f.client.R().SetContext(ctx).SetDoNotParseResponse(true).Get(pageURL)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", pageURL, err)
	}
	body := resp.RawBody()
	defer body.Close()

	if resp.StatusCode() >= 400 {
		return "", fmt.Errorf("fetch %s: status %d", pageURL, resp.StatusCode())
	}

	article, err := readability.FromReader(body, u)
	if err != nil {
		return "", fmt.Errorf("readability %s: %w", pageURL, err)
	}
	return strings.TrimSpace(article.TextContent), nil
}

// EnrichOptions 正文补全参数，长度按字符计
type EnrichOptions struct {
	MinLen  int // 摘要短于该值时抓取正文
	MaxLen  int // 正文截断长度
	MinKeep int // 最终短于该值的结果丢弃
	Limit   int // 最多保留条数，0 不限
}

// Enrich 为搜索结果补全正文并转换为引用资料，保持原有顺序
func (f *Fetcher) Enrich(ctx context.Context, results []search.Result, opts EnrichOptions) []model.Reference {
	contents := make([]string, len(results))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.workers)
	for i, item := range results {
		content := item.Content
		if item.RawContent != "" && runeLen(item.RawContent) > runeLen(content) {
			content = item.RawContent
		}
		contents[i] = content
		if runeLen(content) >= opts.MinLen || item.URL == "" {
			continue
		}
		g.Go(func() error {
			fetched, err := f.Article(gctx, item.URL)
			if err != nil {
				logger.Log.Debugf("抓取正文失败 [%s]: %v", item.URL, err)
				return nil
			}
			if runeLen(fetched) > runeLen(contents[i]) {
				contents[i] = fetched
			}
			return nil
		})
	}
	_ = g.Wait()

	var refs []model.Reference
	for i, item := range results {
		content := truncate(contents[i], opts.MaxLen)
		if runeLen(content) < opts.MinKeep {
			continue
		}
		refs = append(refs, model.Reference{
			Title:   item.Title,
			Link:    item.URL,
			Source:  item.Source,
			PubDate: item.PublishedDate,
			Content: content,
		})
		if opts.Limit > 0 && len(refs) >= opts.Limit {
			break
		}
	}
	return refs
}

func runeLen(s string) int {
	return len([]rune(s))
}

func truncate(s string, max int) string {
	if max <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
