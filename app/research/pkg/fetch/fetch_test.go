package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iWorld-y/research_report/app/research/pkg/search"
)

var articleBody = strings.Repeat("商汤科技二零二四年营业收入同比增长，生成式人工智能业务占比持续提升。", 20)

func newArticleServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(`<html><head><title>年报解读</title></head><body>
<nav>首页 | 财经</nav>
<article><h1>年报解读</h1><p>` + articleBody + `</p><p>` + articleBody + `</p></article>
<footer>版权所有</footer></body></html>`))
	}))
}

func TestFetcher_Article(t *testing.T) {
	srv := newArticleServer(t)
	defer srv.Close()

	text, err := NewFetcher(5*time.Second, 2).Article(context.Background(), srv.URL+"/news/1")
	require.NoError(t, err)
	assert.Contains(t, text, "生成式人工智能业务")
}

func TestFetcher_ArticleNotFound(t *testing.T) {
	srv := newArticleServer(t)
	defer srv.Close()

	_, err := NewFetcher(5*time.Second, 2).Article(context.Background(), srv.URL+"/missing")
	assert.Error(t, err)
}

func TestFetcher_Enrich(t *testing.T) {
	srv := newArticleServer(t)
	defer srv.Close()

	results := []search.Result{
		{Title: "短摘要", URL: srv.URL + "/news/1", Content: "很短", Source: "tavily"},
		{Title: "长摘要", URL: "https://example.invalid/2", Content: strings.Repeat("长", 300)},
		{Title: "抓取失败", URL: srv.URL + "/missing", Content: "短"},
	}
	refs := NewFetcher(5*time.Second, 2).Enrich(context.Background(), results, EnrichOptions{
		MinLen:  200,
		MaxLen:  250,
		MinKeep: 10,
	})

	require.Len(t, refs, 2)
	assert.Equal(t, "短摘要", refs[0].Title)
	assert.Equal(t, 250, len([]rune(refs[0].Content)))
	assert.Equal(t, "tavily", refs[0].Source)
	assert.Equal(t, "长摘要", refs[1].Title)
	assert.Equal(t, 250, len([]rune(refs[1].Content)))
}

func TestFetcher_EnrichLimit(t *testing.T) {
	results := []search.Result{
		{Title: "a", Content: strings.Repeat("x", 50)},
		{Title: "b", Content: strings.Repeat("y", 50)},
	}
	refs := NewFetcher(time.Second, 1).Enrich(context.Background(), results, EnrichOptions{MinLen: 10, Limit: 1})
	require.Len(t, refs, 1)
	assert.Equal(t, "a", refs[0].Title)
}
