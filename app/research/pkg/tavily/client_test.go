package tavily

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iWorld-y/research_report/app/research/pkg/search"
)

func TestClient_Search(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "Bearer tvly-key", r.Header.Get("Authorization"))

		var body SearchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "智能服务机器人 市场规模", body.Query)
		assert.Equal(t, 10, body.MaxResults)
		assert.Equal(t, "general", body.Topic)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"query":"q","results":[{"title":"报告","url":"https://a.cn/1","content":"规模达到","score":0.9,"published_date":"2024-06-01"}]}`))
	}))
	defer srv.Close()

	c := NewClient("tvly-key", WithBaseURL(srv.URL))
	resp, err := c.Search(context.Background(), &search.Request{Query: "智能服务机器人 市场规模", MaxResults: 10})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "报告", resp.Results[0].Title)
	assert.Equal(t, 0.9, resp.Results[0].Score)
	assert.Equal(t, "2024-06-01", resp.Results[0].PublishedDate)
}

func TestClient_SearchAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail":"invalid key"}`))
	}))
	defer srv.Close()

	_, err := NewClient("bad", WithBaseURL(srv.URL)).Search(context.Background(), &search.Request{Query: "q"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}
