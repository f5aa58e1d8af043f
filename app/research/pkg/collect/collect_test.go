package collect

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iWorld-y/research_report/app/research/pkg/market"
	"github.com/iWorld-y/research_report/app/research/pkg/rag"
	"github.com/iWorld-y/research_report/app/research/pkg/search"
)

type fakeSearcher struct {
	mu      sync.Mutex
	queries []string
	fail    bool
}

func (f *fakeSearcher) Search(ctx context.Context, req *search.Request) (*search.Response, error) {
	f.mu.Lock()
	f.queries = append(f.queries, req.Query)
	f.mu.Unlock()
	if f.fail {
		return nil, errors.New("search down")
	}
	var results []search.Result
	if strings.Contains(req.Query, "竞争对手") {
		results = append(results, search.Result{Title: "视觉AI竞争格局", URL: "https://b.cn/comp", Content: "旷视科技与商汤科技竞争激烈，云从科技份额较小。"})
	}
	results = append(results, search.Result{Title: "商汤科技公司概况", URL: "https://a.cn/profile", Content: "商汤科技是一家人工智能软件公司，主营业务包括生成式AI。"})
	return &search.Response{Results: results}, nil
}

type fakeMarket struct {
	err error
}

func (f *fakeMarket) Quote(ctx context.Context, symbol string) (*market.Quote, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &market.Quote{Symbol: symbol, Price: 1.5, Currency: "HKD"}, nil
}

func (f *fakeMarket) History(ctx context.Context, symbol, interval, rangeStr string) ([]market.Candle, error) {
	return []market.Candle{{Close: 1.2}, {Close: 1.4}}, nil
}

func TestCollectCompany(t *testing.T) {
	s := &fakeSearcher{}
	helper := rag.NewHelper(rag.NewMemoryStore(), 500, 50)
	c := NewCollector(s, nil, &fakeMarket{}, helper, 2, 5)

	target := Target{Name: "商汤科技", Code: "00020", Market: "HK"}
	res, err := c.CollectCompany(context.Background(), target)
	require.NoError(t, err)

	assert.Len(t, s.queries, len(target.Queries()))
	assert.Len(t, res.References, 2, "duplicated urls should be merged")
	assert.Equal(t, 3, res.Documents)
	assert.Equal(t, 3, res.Chunks)
	require.NotNil(t, res.Snapshot)
	assert.Equal(t, "0020.HK", res.Snapshot.Quote.Symbol)

	hits, err := helper.Search(context.Background(), target.Collection(), "行情快照", 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "Yahoo Finance", hits[0].Source)
}

func TestCollectCompany_MarketFailureTolerated(t *testing.T) {
	c := NewCollector(&fakeSearcher{}, nil, &fakeMarket{err: market.ErrNoData}, nil, 2, 5)
	res, err := c.CollectCompany(context.Background(), Target{Name: "商汤科技", Code: "00020", Market: "HK"})
	require.NoError(t, err)
	assert.Nil(t, res.Snapshot)
	assert.Equal(t, 2, res.Documents)
	assert.Equal(t, 0, res.Chunks)
}

func TestCollectCompany_NoDocuments(t *testing.T) {
	c := NewCollector(&fakeSearcher{fail: true}, nil, nil, nil, 2, 5)
	_, err := c.CollectCompany(context.Background(), Target{Name: "不存在公司"})
	assert.ErrorIs(t, err, ErrNoDocuments)
}

func TestTarget(t *testing.T) {
	assert.Equal(t, "company:00020", Target{Name: "商汤科技", Code: "00020"}.Collection())
	assert.Equal(t, "company:四维图新", Target{Name: "四维图新"}.Collection())
	assert.Len(t, Target{Name: "x"}.Queries(), 6)
	assert.Len(t, Target{Name: "x", Code: "1"}.Queries(), 7)
}
