package search

import (
	"context"

	"github.com/iWorld-y/research_report/app/research/pkg/metrics"
)

// Searcher 定义通用的搜索接口
type Searcher interface {
	Search(ctx context.Context, req *Request) (*Response, error)
}

// Request 通用搜索请求
type Request struct {
	Query             string `json:"query"`
	Topic             string `json:"topic,omitempty"` // "news" or "general"
	MaxResults        int    `json:"max_results,omitempty"`
	IncludeRawContent bool   `json:"include_raw_content,omitempty"`
	StartDate         string `json:"start_date,omitempty"` // Format: YYYY-MM-DD
	EndDate           string `json:"end_date,omitempty"`   // Format: YYYY-MM-DD
}

// Response 通用搜索响应
type Response struct {
	Results []Result `json:"results"`
}

// Result 单条搜索结果
type Result struct {
	Title         string  `json:"title" yaml:"title"`
	URL           string  `json:"url" yaml:"url"`
	Content       string  `json:"content" yaml:"content"`
	RawContent    string  `json:"raw_content,omitempty" yaml:"-"`
	Score         float64 `json:"score,omitempty" yaml:"-"`
	PublishedDate string  `json:"published_date,omitempty" yaml:"published_date,omitempty"`
	Source        string  `json:"source,omitempty" yaml:"source,omitempty"` // 来源站点或搜索引擎
}

// Provider 带名称的搜索源
type Provider struct {
	Name     string
	Searcher Searcher
}

type instrumented struct {
	name string
	next Searcher
}

// Instrument 记录调用指标，并为缺少来源的结果填充搜索源名称
func Instrument(name string, s Searcher) Searcher {
	return &instrumented{name: name, next: s}
}

func (s *instrumented) Search(ctx context.Context, req *Request) (*Response, error) {
	resp, err := s.next.Search(ctx, req)
	metrics.SearchCalls.WithLabelValues(s.name, metrics.Result(err)).Inc()
	if err != nil {
		return nil, err
	}
	for i := range resp.Results {
		if resp.Results[i].Source == "" {
			resp.Results[i].Source = s.name
		}
	}
	return resp, nil
}
