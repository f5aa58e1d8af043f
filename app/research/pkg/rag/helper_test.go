package rag

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHelper(t *testing.T) *Helper {
	t.Helper()
	h := NewHelper(NewMemoryStore(), 200, 20)
	n, err := h.Ingest(context.Background(), "00020", []Document{
		{Title: "商汤年报", URL: "https://a.cn/1", Source: "港交所", Content: "商汤科技2023年营业收入34亿元。\n生成式AI收入占比提升。"},
		{Title: "竞争格局", URL: "https://a.cn/2", Content: "旷视科技、云从科技与商汤科技在计算机视觉领域竞争。"},
		{Title: "无关", Content: "今天天气晴朗。"},
	})
	require.NoError(t, err)
	require.Equal(t, 3, n)
	return h
}

func TestHelper_Search(t *testing.T) {
	h := newTestHelper(t)

	hits, err := h.Search(context.Background(), "00020", "商汤 营业收入", 10)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "商汤年报", hits[0].Title)
	for _, hit := range hits {
		assert.NotEqual(t, "无关", hit.Title)
	}

	hits, err = h.Search(context.Background(), "00020", "竞争对手 旷视", 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "竞争格局", hits[0].Title)
}

func TestHelper_SearchEmptyCollection(t *testing.T) {
	h := newTestHelper(t)
	hits, err := h.Search(context.Background(), "other", "商汤", 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestHelper_GetContextForLLM(t *testing.T) {
	h := newTestHelper(t)

	text, err := h.GetContextForLLM(context.Background(), "00020", "商汤科技 竞争", 4000, 10)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(text, "[1] "))
	assert.Contains(t, text, "[2] ")
	assert.Contains(t, text, "(港交所 https://a.cn/1)")

	short, err := h.GetContextForLLM(context.Background(), "00020", "商汤科技 竞争", 12, 10)
	require.NoError(t, err)
	assert.NotEmpty(t, short)
	assert.LessOrEqual(t, EstimateTokens(short), 12)
	assert.NotContains(t, short, "[2] ")
}

func TestHelper_Clear(t *testing.T) {
	h := newTestHelper(t)
	require.NoError(t, h.Clear(context.Background(), "00020"))
	hits, err := h.Search(context.Background(), "00020", "商汤", 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}
