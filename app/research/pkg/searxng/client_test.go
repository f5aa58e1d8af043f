package searxng

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iWorld-y/research_report/app/research/pkg/search"
)

func TestClient_Search(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "json", q.Get("format"))
		assert.Equal(t, "news", q.Get("categories"))
		assert.Equal(t, "zh-CN", q.Get("language"))
		assert.NotEmpty(t, r.Header.Get("User-Agent"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"query":"x","results":[
			{"title":"一","url":"https://a.cn/1","content":"c1","engines":["bing"]},
			{"title":"二","url":"https://a.cn/2","content":"c2"},
			{"title":"三","url":"https://a.cn/3","content":"c3"}]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", 5)
	resp, err := c.Search(context.Background(), &search.Request{Query: "人工智能 政策", Topic: "news", MaxResults: 2})
	require.NoError(t, err)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "searxng/bing", resp.Results[0].Source)
	assert.Equal(t, "", resp.Results[1].Source)
}

func TestClient_SearchError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, 5).Search(context.Background(), &search.Request{Query: "q"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestTimeRange(t *testing.T) {
	now := time.Now()
	assert.Equal(t, "", timeRange(""))
	assert.Equal(t, "", timeRange("bad"))
	assert.Equal(t, "month", timeRange(now.AddDate(0, 0, -7).Format(time.DateOnly)))
	assert.Equal(t, "year", timeRange(now.AddDate(0, -6, 0).Format(time.DateOnly)))
	assert.Equal(t, "", timeRange(now.AddDate(-3, 0, 0).Format(time.DateOnly)))
}
