package googlenews

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iWorld-y/research_report/app/research/pkg/search"
)

const feedXML = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>"商汤" - Google 新闻</title>
<item><title>商汤发布日日新大模型 - 新浪财经</title><link>https://news.google.com/a1</link>
<pubDate>Mon, 03 Jun 2024 08:00:00 GMT</pubDate>
<description>&lt;a href="https://finance.sina.com.cn"&gt;商汤发布日日新大模型&lt;/a&gt;&amp;nbsp;&amp;nbsp;&lt;font color="#6f6f6f"&gt;新浪财经&lt;/font&gt;</description></item>
<item><title>港股AI板块走强</title><link>https://news.google.com/a2</link></item>
<item><title>第三条 - 财新</title><link>https://news.google.com/a3</link></item>
</channel></rss>`

func TestClient_Search(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "zh-CN", r.URL.Query().Get("hl"))
		assert.Equal(t, "商汤 after:2024-01-01", r.URL.Query().Get("q"))
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(feedXML))
	}))
	defer srv.Close()

	c := NewClient(5, WithBaseURL(srv.URL))
	resp, err := c.Search(context.Background(), &search.Request{Query: "商汤", StartDate: "2024-01-01", MaxResults: 2})
	require.NoError(t, err)
	require.Len(t, resp.Results, 2)

	first := resp.Results[0]
	assert.Equal(t, "商汤发布日日新大模型", first.Title)
	assert.Equal(t, "新浪财经", first.Source)
	assert.Equal(t, "2024-06-03", first.PublishedDate)
	assert.Equal(t, "商汤发布日日新大模型 新浪财经", first.Content)
	assert.Equal(t, "港股AI板块走强", resp.Results[1].Title)
}

func TestClient_RetryOn429(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(feedXML))
	}))
	defer srv.Close()

	c := NewClient(5, WithBaseURL(srv.URL), WithRetry(3, time.Millisecond))
	resp, err := c.Search(context.Background(), &search.Request{Query: "AI"})
	require.NoError(t, err)
	assert.Len(t, resp.Results, 3)
	assert.EqualValues(t, 3, atomic.LoadInt32(&hits))
}

func TestClient_NoRetryOnNotFound(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewClient(5, WithBaseURL(srv.URL), WithRetry(3, time.Millisecond)).
		Search(context.Background(), &search.Request{Query: "AI"})
	require.Error(t, err)
	assert.EqualValues(t, 1, atomic.LoadInt32(&hits))
}

func TestFeedURL_English(t *testing.T) {
	c := NewClient(5)
	u, err := url.Parse(c.FeedURL(&search.Request{Query: "SenseTime", EndDate: "2024-12-31"}))
	require.NoError(t, err)
	assert.Equal(t, "en-US", u.Query().Get("hl"))
	assert.Equal(t, "US:en", u.Query().Get("ceid"))
	assert.True(t, strings.HasSuffix(u.Query().Get("q"), "before:2024-12-31"))
}

func TestSplitTitle(t *testing.T) {
	title, source := SplitTitle("A - B - 路透")
	assert.Equal(t, "A - B", title)
	assert.Equal(t, "路透", source)

	title, source = SplitTitle("无来源标题")
	assert.Equal(t, "无来源标题", title)
	assert.Equal(t, "", source)
}
