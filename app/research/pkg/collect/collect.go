package collect

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/iWorld-y/research_report/app/research/pkg/fetch"
	"github.com/iWorld-y/research_report/app/research/pkg/logger"
	"github.com/iWorld-y/research_report/app/research/pkg/market"
	"github.com/iWorld-y/research_report/app/research/pkg/model"
	"github.com/iWorld-y/research_report/app/research/pkg/rag"
	"github.com/iWorld-y/research_report/app/research/pkg/search"
)

// ErrNoDocuments 没有收集到任何资料
var ErrNoDocuments = errors.New("no documents collected")

// Target 目标公司
type Target struct {
	Name   string
	Code   string
	Market string
}

// Collection RAG 集合名
func (t Target) Collection() string {
	if t.Code == "" {
		return "company:" + t.Name
	}
	return "company:" + t.Code
}

// Queries 公司资料检索词
func (t Target) Queries() []string {
	qs := []string{
		t.Name + " 公司简介",
		t.Name + " 主营业务 商业模式",
		t.Name + " 财务报表 财务数据 营业收入 净利润",
		t.Name + " 竞争对手",
		t.Name + " 行业地位 市场份额",
		t.Name + " 最新新闻",
	}
	if t.Code != "" {
		qs = append(qs, t.Name+" "+t.Code+" 股价 估值")
	}
	return qs
}

// Result 收集结果
type Result struct {
	Documents  int
	Chunks     int
	References []model.Reference
	Snapshot   *market.Snapshot
}

// Collector 公司数据收集流水线：搜索 -> 抓取正文 -> 行情 -> 入库
type Collector struct {
	searcher search.Searcher
	fetcher  *fetch.Fetcher
	market   market.Provider
	rag      *rag.Helper
	workers  int
	topK     int
}

// NewCollector 创建收集器，market 与 rag 可为空
func NewCollector(s search.Searcher, f *fetch.Fetcher, m market.Provider, r *rag.Helper, workers, topK int) *Collector {
	if workers <= 0 {
		workers = 4
	}
	if topK <= 0 {
		topK = 8
	}
	return &Collector{searcher: s, fetcher: f, market: m, rag: r, workers: workers, topK: topK}
}

// CollectCompany 收集公司资料
func (c *Collector) CollectCompany(ctx context.Context, t Target) (*Result, error) {
	queries := t.Queries()
	batches := make([][]search.Result, len(queries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)
	for i, q := range queries {
		g.Go(func() error {
			resp, err := c.searcher.Search(gctx, &search.Request{Query: q, MaxResults: c.topK})
			if err != nil {
				logger.Log.Warnf("资料检索失败 [%s]: %v", q, err)
				return nil
			}
			batches[i] = resp.Results
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var merged []search.Result
	seen := make(map[string]bool)
	for _, batch := range batches {
		for _, r := range batch {
			key := search.NormalizeURL(r.URL)
			if key == "" {
				key = r.Title
			}
			if seen[key] {
				continue
			}
			seen[key] = true
			merged = append(merged, r)
		}
	}

	refs := toReferences(ctx, c.fetcher, merged)
	res := &Result{References: refs}

	docs := make([]rag.Document, 0, len(refs)+1)
	for _, ref := range refs {
		docs = append(docs, rag.Document{Title: ref.Title, URL: ref.Link, Source: ref.Source, Content: ref.Content})
	}

	if c.market != nil && t.Code != "" {
		symbol := market.ToYahooSymbol(t.Code, t.Market)
		snap, err := market.TakeSnapshot(ctx, c.market, symbol)
		if err != nil {
			logger.Log.Warnf("获取行情失败 [%s]: %v", symbol, err)
		} else {
			res.Snapshot = snap
			docs = append(docs, rag.Document{
				Title:   t.Name + " 行情快照",
				Source:  "Yahoo Finance",
				Content: snap.ToMarkdown(t.Name),
			})
		}
	}

	res.Documents = len(docs)
	if res.Documents == 0 {
		return res, fmt.Errorf("%s: %w", t.Name, ErrNoDocuments)
	}

	if c.rag != nil {
		n, err := c.rag.Ingest(ctx, t.Collection(), docs)
		if err != nil {
			return res, err
		}
		res.Chunks = n
	}
	logger.Log.Infof("公司资料收集完成 [%s]: 文档 %d, 文本块 %d", t.Name, res.Documents, res.Chunks)
	return res, nil
}

// toReferences 没有抓取器时直接使用搜索摘要
func toReferences(ctx context.Context, f *fetch.Fetcher, results []search.Result) []model.Reference {
	if f != nil {
		return f.Enrich(ctx, results, fetch.EnrichOptions{MinLen: 500, MaxLen: 5000, MinKeep: 50})
	}
	refs := make([]model.Reference, 0, len(results))
	for _, r := range results {
		if r.Content == "" {
			continue
		}
		refs = append(refs, model.Reference{Title: r.Title, Link: r.URL, Source: r.Source, PubDate: r.PublishedDate, Content: r.Content})
	}
	return refs
}
