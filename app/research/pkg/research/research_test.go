package research

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iWorld-y/research_report/app/research/pkg/llm/llmtest"
	"github.com/iWorld-y/research_report/app/research/pkg/model"
	"github.com/iWorld-y/research_report/app/research/pkg/search"
)

type stubSearcher struct {
	mu      sync.Mutex
	queries []string
	force   []bool
}

func (s *stubSearcher) Search(ctx context.Context, req *search.Request) (*search.Response, error) {
	s.mu.Lock()
	s.queries = append(s.queries, req.Query)
	s.force = append(s.force, search.IsForceRefresh(ctx))
	s.mu.Unlock()
	return &search.Response{Results: []search.Result{
		{Title: req.Query + " 报告", URL: "https://news.cn/" + req.Query, Content: "2024年市场规模达到 500 亿元", Source: "tavily"},
		{Title: "行业白皮书", URL: "https://gov.cn/whitepaper", Content: "政策持续加码"},
	}}, nil
}

func yamlBlock(body string) string {
	return "分析如下：\n```yaml\n" + body + "\n```"
}

func TestFlow_Run(t *testing.T) {
	m := llmtest.Scripted(
		yamlBlock("action: search\nreason: 信息不足\nsearch_terms:\n  - 服务机器人 市场规模\n  - 服务机器人 政策"),
		yamlBlock("action: generate\nreason: 信息充足\nsection:\n  name: 市场规模分析\n  focus: 规模与增速"),
		"市场规模内容",
		yamlBlock("action: generate\nreason: 继续\nsection:\n  name: 市场规模分析\n  focus: 重复"),
		"概述内容",
		yamlBlock("action: complete\nreason: 完成"),
	)
	s := &stubSearcher{}
	var statuses []string
	f := NewFlow(llmtest.NewClient(m), s, Options{
		ForceRefresh: true,
		Progress:     func(status string, _ int) { statuses = append(statuses, status) },
	})

	report, err := f.Run(context.Background(), IndustryProfile("中国智能服务机器人产业"))
	require.NoError(t, err)

	assert.Len(t, m.Calls(), 6)
	assert.Equal(t, []string{"服务机器人 市场规模", "服务机器人 政策"}, s.queries)
	assert.Equal(t, []bool{true, true}, s.force)

	assert.Equal(t, model.KindIndustry, report.Kind)
	assert.Equal(t, "中国智能服务机器人产业行业研究报告", report.Title)
	require.Len(t, report.Sections, 2)
	assert.Equal(t, "市场规模分析", report.Sections[0].Name)
	assert.Equal(t, "行业概述/行业概览", report.Sections[1].Name)
	assert.Equal(t, "# 中国智能服务机器人产业行业研究报告\n\n"+
		"\n## 市场规模分析\n\n市场规模内容\n"+
		"\n## 行业概述/行业概览\n\n概述内容\n", report.Markdown)

	// 白皮书链接出现两次，只保留一次
	assert.Len(t, report.References, 3)
	assert.Equal(t, "completing", statuses[len(statuses)-1])

	calls := m.Calls()
	decide := calls[3][0].Content
	assert.Contains(t, decide, "已生成的章节：[市场规模分析]")
	assert.Contains(t, decide, "term: 服务机器人 市场规模")
	assert.Contains(t, calls[4][0].Content, "章节：行业概述/行业概览")
	assert.Contains(t, calls[4][0].Content, "重点：重点分析")
}

func TestFlow_MaxIterations(t *testing.T) {
	m := llmtest.Scripted(yamlBlock("action: search\nreason: 再搜\nsearch_terms:\n  - 人工智能+ 政策"))
	s := &stubSearcher{}
	f := NewFlow(llmtest.NewClient(m), s, Options{MaxIterations: 3})

	report, err := f.Run(context.Background(), MacroProfile("国家级'人工智能+'政策效果评估", "2023-2025"))
	require.NoError(t, err)
	assert.Len(t, m.Calls(), 3)
	assert.Len(t, s.queries, 3)
	assert.Empty(t, report.Sections)
	assert.Equal(t, "# 国家级'人工智能+'政策效果评估（2023-2025）宏观研究报告\n\n", report.Markdown)

	prompt := m.LastPrompt()
	assert.Contains(t, prompt, "时间范围：2023-2025")
	assert.Contains(t, prompt, "- 政策实施现状")
}

func TestFlow_ParseFailureCompletes(t *testing.T) {
	m := llmtest.Scripted("我认为应该继续搜索。")
	f := NewFlow(llmtest.NewClient(m), &stubSearcher{}, Options{})

	report, err := f.Run(context.Background(), IndustryProfile("低空经济"))
	require.NoError(t, err)
	assert.Len(t, m.Calls(), 1)
	assert.Equal(t, "# 低空经济行业研究报告\n\n", report.Markdown)
}

func TestFlow_GenerateFailureSkipped(t *testing.T) {
	var n int
	m := llmtest.NewModel(func(msgs []*schema.Message) (string, error) {
		n++
		switch n {
		case 1:
			return yamlBlock("action: generate\nreason: r\nsection:\n  name: 竞争格局分析\n  focus: f"), nil
		case 2:
			return "", errors.New("context length exceeded")
		}
		return yamlBlock("action: complete\nreason: r"), nil
	})
	f := NewFlow(llmtest.NewClient(m), &stubSearcher{}, Options{})

	report, err := f.Run(context.Background(), IndustryProfile("储能"))
	require.NoError(t, err)
	assert.Empty(t, report.Sections)
	assert.Equal(t, 3, n)
}

func TestFlow_SearchPauseHonorsContext(t *testing.T) {
	s := &stubSearcher{}
	f := NewFlow(llmtest.NewClient(llmtest.Scripted("")), s, Options{SearchPause: time.Hour})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := f.Search(ctx, &State{seen: map[string]bool{}}, []string{"a", "b"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, []string{"a"}, s.queries)
}

func TestFlow_ContextTruncated(t *testing.T) {
	f := NewFlow(nil, nil, Options{ContextMaxRunes: 10})
	st := &State{Context: []ContextItem{{Term: "t", Results: []search.Result{{Title: strings.Repeat("长", 50)}}}}}
	assert.Len(t, []rune(f.contextYAML(st)), 10)
	assert.Equal(t, "[]", f.contextYAML(&State{}))
}

func TestParseDecision(t *testing.T) {
	checklist := []string{"行业概述/行业概览", "市场规模分析"}

	tests := []struct {
		name      string
		resp      string
		generated []string
		action    string
		section   string
	}{
		{"search", yamlBlock("action: search\nreason: r\nsearch_terms: [a, ' ', b]"), nil, ActionSearch, ""},
		{"search without terms", yamlBlock("action: search\nreason: r"), nil, ActionComplete, ""},
		{"generate", yamlBlock("action: generate\nsection:\n  name: 市场规模分析"), nil, ActionGenerate, "市场规模分析"},
		{"duplicate switches", yamlBlock("action: generate\nsection:\n  name: 市场规模分析"), []string{"市场规模分析"}, ActionGenerate, "行业概述/行业概览"},
		{"duplicate all done", yamlBlock("action: generate\nsection:\n  name: 市场规模分析"), checklist, ActionComplete, ""},
		{"section list", yamlBlock("action: generate\nsection:\n  - name: 市场规模分析\n  - name: 技术发展趋势"), []string{"市场规模分析"}, ActionGenerate, "技术发展趋势"},
		{"section list all done", yamlBlock("action: generate\nsection:\n  - name: 市场规模分析"), []string{"市场规模分析"}, ActionComplete, ""},
		{"missing section", yamlBlock("action: generate\nreason: r"), nil, ActionComplete, ""},
		{"section without name", yamlBlock("action: generate\nsection:\n  focus: x"), nil, ActionComplete, ""},
		{"unknown action", yamlBlock("action: pause"), nil, ActionComplete, ""},
		{"bad terms", yamlBlock("action: search\nsearch_terms:\n  a: b"), nil, ActionComplete, ""},
		{"not yaml", "好的", nil, ActionComplete, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := ParseDecision(tt.resp, tt.generated, checklist)
			assert.Equal(t, tt.action, d.Action)
			assert.Equal(t, tt.section, d.Section.Name)
		})
	}

	d := ParseDecision(yamlBlock("action: search\nsearch_terms: [a, ' ', b]"), nil, checklist)
	assert.Equal(t, []string{"a", "b"}, d.SearchTerms)
}

func TestProfile(t *testing.T) {
	p := MacroProfile("人工智能+", "2023-2025")
	assert.Equal(t, "人工智能+（2023-2025）", p.Topic())
	assert.Equal(t, "Macro_Research_Report", p.OutputBaseName)
	assert.Equal(t, "低空经济", IndustryProfile("低空经济").Topic())
}
