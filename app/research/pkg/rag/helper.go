package rag

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// Document 待入库的原始资料
type Document struct {
	Title   string
	URL     string
	Source  string
	Content string
}

// Hit 检索结果
type Hit struct {
	Chunk
	Score float64
}

// Helper 检索增强助手
type Helper struct {
	store     Store
	chunkSize int
	overlap   int
}

// NewHelper 创建助手
func NewHelper(store Store, chunkSize, overlap int) *Helper {
	return &Helper{store: store, chunkSize: chunkSize, overlap: overlap}
}

// Ingest 切分并写入集合，返回写入的块数
func (h *Helper) Ingest(ctx context.Context, collection string, docs []Document) (int, error) {
	var chunks []Chunk
	for _, d := range docs {
		for i, text := range Split(d.Content, h.chunkSize, h.overlap) {
			chunks = append(chunks, Chunk{
				Title:   d.Title,
				URL:     d.URL,
				Source:  d.Source,
				Seq:     i,
				Content: text,
			})
		}
	}
	if len(chunks) == 0 {
		return 0, nil
	}
	if err := h.store.Add(ctx, collection, chunks); err != nil {
		return 0, fmt.Errorf("rag ingest %s: %w", collection, err)
	}
	return len(chunks), nil
}

// Clear 清空集合
func (h *Helper) Clear(ctx context.Context, collection string) error {
	return h.store.Clear(ctx, collection)
}

// Search 返回得分最高的 topK 个块，零分不返回
func (h *Helper) Search(ctx context.Context, collection, query string, topK int) ([]Hit, error) {
	chunks, err := h.store.Chunks(ctx, collection)
	if err != nil {
		return nil, fmt.Errorf("rag load %s: %w", collection, err)
	}
	if len(chunks) == 0 {
		return nil, nil
	}

	docs := make([][]string, len(chunks))
	for i, c := range chunks {
		docs[i] = Tokenize(c.Title + "\n" + c.Content)
	}
	scores := bm25(Tokenize(query), docs)

	hits := make([]Hit, 0, len(chunks))
	for i, c := range chunks {
		if scores[i] > 0 {
			hits = append(hits, Hit{Chunk: c, Score: scores[i]})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if topK > 0 && len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

// GetContextForLLM 拼接检索结果作为提示词上下文，总长度不超过 maxTokens
func (h *Helper) GetContextForLLM(ctx context.Context, collection, query string, maxTokens, topK int) (string, error) {
	hits, err := h.Search(ctx, collection, query, topK)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	used := 0
	for i, hit := range hits {
		var block strings.Builder
		fmt.Fprintf(&block, "[%d] %s", i+1, hit.Title)
		if hit.Source != "" || hit.URL != "" {
			fmt.Fprintf(&block, " (%s)", strings.TrimSpace(hit.Source+" "+hit.URL))
		}
		fmt.Fprintf(&block, "\n%s\n\n", hit.Content)

		cost := EstimateTokens(block.String())
		if maxTokens > 0 && used+cost > maxTokens {
			if used == 0 {
				// 单块超限时截断
				sb.WriteString(truncateTokens(block.String(), maxTokens))
			}
			break
		}
		sb.WriteString(block.String())
		used += cost
	}
	return strings.TrimSpace(sb.String()), nil
}

func truncateTokens(s string, maxTokens int) string {
	runes := []rune(s)
	lo, hi := 0, len(runes)
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if EstimateTokens(string(runes[:mid])) <= maxTokens {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return string(runes[:lo])
}
