package rag

import (
	"math"
	"strings"
	"unicode"
)

// Split 按段落切分文本，超长段落按字符窗口切分
func Split(text string, size, overlap int) []string {
	if size <= 0 {
		size = 800
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}

	var (
		chunks []string
		cur    []rune
	)
	flush := func() {
		if s := strings.TrimSpace(string(cur)); s != "" {
			chunks = append(chunks, s)
		}
		cur = cur[:0]
	}

	for _, para := range strings.Split(text, "\n") {
		p := []rune(strings.TrimSpace(para))
		if len(p) == 0 {
			continue
		}
		if len(p) > size {
			flush()
			step := size - overlap
			for start := 0; start < len(p); start += step {
				end := min(start+size, len(p))
				chunks = append(chunks, string(p[start:end]))
				if end == len(p) {
					break
				}
			}
			continue
		}
		if len(cur)+len(p)+1 > size {
			flush()
		}
		if len(cur) > 0 {
			cur = append(cur, '\n')
		}
		cur = append(cur, p...)
	}
	flush()
	return chunks
}

func isCJK(r rune) bool {
	return unicode.Is(unicode.Han, r)
}

// Tokenize 英文数字按词，中文按双字切分
func Tokenize(text string) []string {
	var (
		tokens []string
		word   []rune
		han    []rune
	)
	flushWord := func() {
		if len(word) > 0 {
			tokens = append(tokens, string(word))
			word = word[:0]
		}
	}
	flushHan := func() {
		switch {
		case len(han) == 1:
			tokens = append(tokens, string(han))
		case len(han) > 1:
			for i := 0; i+1 < len(han); i++ {
				tokens = append(tokens, string(han[i:i+2]))
			}
		}
		han = han[:0]
	}

	for _, r := range strings.ToLower(text) {
		switch {
		case isCJK(r):
			flushWord()
			han = append(han, r)
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			flushHan()
			word = append(word, r)
		default:
			flushWord()
			flushHan()
		}
	}
	flushWord()
	flushHan()
	return tokens
}

// EstimateTokens 粗略估算 token 数：汉字按 1 个，其余每 4 个字符 1 个
func EstimateTokens(text string) int {
	han, other := 0, 0
	for _, r := range text {
		if isCJK(r) {
			han++
		} else {
			other++
		}
	}
	return han + int(math.Ceil(float64(other)/4))
}

// bm25 对候选文本打分
func bm25(query []string, docs [][]string) []float64 {
	const k1, b = 1.5, 0.75

	n := float64(len(docs))
	scores := make([]float64, len(docs))
	if n == 0 || len(query) == 0 {
		return scores
	}

	df := make(map[string]int)
	tfs := make([]map[string]int, len(docs))
	total := 0
	for i, d := range docs {
		tf := make(map[string]int)
		for _, t := range d {
			tf[t]++
		}
		for t := range tf {
			df[t]++
		}
		tfs[i] = tf
		total += len(d)
	}
	avgLen := float64(total) / n
	if avgLen == 0 {
		return scores
	}

	uniq := make(map[string]bool)
	for _, q := range query {
		uniq[q] = true
	}
	for i, tf := range tfs {
		dl := float64(len(docs[i]))
		for q := range uniq {
			f := float64(tf[q])
			if f == 0 {
				continue
			}
			idf := math.Log(1 + (n-float64(df[q])+0.5)/(float64(df[q])+0.5))
			scores[i] += idf * f * (k1 + 1) / (f + k1*(1-b+b*dl/avgLen))
		}
	}
	return scores
}
