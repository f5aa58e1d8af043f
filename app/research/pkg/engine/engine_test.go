package engine

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iWorld-y/research_report/app/research/pkg/config"
	"github.com/iWorld-y/research_report/app/research/pkg/convert"
	"github.com/iWorld-y/research_report/app/research/pkg/llm/llmtest"
	"github.com/iWorld-y/research_report/app/research/pkg/model"
	"github.com/iWorld-y/research_report/app/research/pkg/rag"
	"github.com/iWorld-y/research_report/app/research/pkg/search"
	"github.com/iWorld-y/research_report/app/research/pkg/storage"
)

type fakeRecorder struct {
	mu       sync.Mutex
	runs     []string
	sections map[int][]model.Section
	results  map[int]storage.RunResult
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{sections: map[int][]model.Section{}, results: map[int]storage.RunResult{}}
}

func (f *fakeRecorder) CreateRun(ctx context.Context, kind model.Kind, subject string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs = append(f.runs, string(kind)+":"+subject)
	return len(f.runs), nil
}

func (f *fakeRecorder) SaveSections(ctx context.Context, runID int, sections []model.Section) error {
	f.sections[runID] = sections
	return nil
}

func (f *fakeRecorder) SaveReferences(ctx context.Context, runID int, refs []model.Reference) error {
	return nil
}

func (f *fakeRecorder) FinishRun(ctx context.Context, runID int, res storage.RunResult) error {
	f.results[runID] = res
	return nil
}

type stubSearcher struct {
	err error
}

func (s *stubSearcher) Search(ctx context.Context, req *search.Request) (*search.Response, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &search.Response{Results: []search.Result{
		{Title: req.Query, URL: "https://example.com/" + req.Query, Content: "商汤科技 营收 增长 " + req.Query},
	}}, nil
}

// analyst 按提示词类型应答
func analyst(msgs []*schema.Message) (string, error) {
	prompt := msgs[len(msgs)-1].Content
	switch {
	case strings.Contains(prompt, "请判断下一步应该"):
		if strings.Contains(prompt, "已生成的章节：[]") {
			return "```yaml\naction: generate\nreason: r\nsection:\n  name: 市场规模分析\n  focus: 规模\n```", nil
		}
		return "```yaml\naction: complete\nreason: done\n```", nil
	case strings.HasPrefix(prompt, "请撰写"):
		return "正文", nil
	case strings.Contains(prompt, "撰写摘要"):
		return "## 摘要\n\n观点", nil
	}
	return "内容", nil
}

func newTestEngine(t *testing.T, h llmtest.Handler) (*Engine, *fakeRecorder, string) {
	t.Helper()
	t.Setenv("TAVILY_API_KEY", "")
	cfg := config.Default()
	cfg.Report.SearchPause = 0
	cfg.Report.DiscussRounds = 1

	dir := t.TempDir()
	rec := newFakeRecorder()
	e := New(cfg, Deps{
		LLM:       llmtest.NewClient(llmtest.NewModel(h)),
		Searcher:  &stubSearcher{},
		RAG:       rag.NewHelper(rag.NewMemoryStore(), 500, 50),
		Publisher: convert.NewPublisher(dir, filepath.Join(dir, "reports"), convert.NativeConverter{}),
		Recorder:  rec,
	})
	return e, rec, dir
}

func TestEngine_RunIndustry(t *testing.T) {
	e, rec, dir := newTestEngine(t, analyst)

	var statuses []string
	report, err := e.Run(context.Background(), RunOptions{
		Kind:             model.KindIndustry,
		Subject:          DefaultIndustry,
		ProgressCallback: func(status string, _ int) { statuses = append(statuses, status) },
	})
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "Industry_Research_Report.md"), report.MarkdownPath)
	assert.FileExists(t, report.DocxPath)
	assert.FileExists(t, report.ArchivePath)
	assert.Equal(t, "starting", statuses[0])
	assert.Equal(t, "completed", statuses[len(statuses)-1])

	assert.Equal(t, []string{"industry:" + DefaultIndustry}, rec.runs)
	require.Len(t, rec.sections[1], 1)
	assert.Equal(t, "市场规模分析", rec.sections[1][0].Name)
	res := rec.results[1]
	assert.Equal(t, storage.StatusSucceeded, res.Status)
	assert.Equal(t, "中国智能服务机器人产业行业研究报告", res.Title)
	assert.Equal(t, report.DocxPath, res.DocxPath)
}

func TestEngine_RunCompanyTemplate(t *testing.T) {
	e, rec, _ := newTestEngine(t, analyst)

	report, err := e.RunCompany(context.Background(), CompanyRequest{Name: DefaultCompany, Code: DefaultCompanyCode, UseTemplate: true})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(report.Markdown, "# 商汤科技研报\n"))
	assert.Contains(t, report.MarkdownPath, "Company_Research_Report.md")
	assert.NotEmpty(t, report.References)
	assert.Len(t, report.Sections, 13)
	assert.Equal(t, []string{"company:商汤科技"}, rec.runs)

	hits, err := e.RAG.Search(context.Background(), "company:00020", "营收", 3)
	require.NoError(t, err)
	assert.NotEmpty(t, hits)
}

func TestEngine_RunFailureRecorded(t *testing.T) {
	e, rec, _ := newTestEngine(t, func([]*schema.Message) (string, error) {
		return "", errors.New("invalid api key")
	})

	_, err := e.RunCompany(context.Background(), CompanyRequest{Name: DefaultCompany})
	require.Error(t, err)
	res := rec.results[1]
	assert.Equal(t, storage.StatusFailed, res.Status)
	assert.ErrorContains(t, res.Err, "invalid api key")
	assert.Empty(t, rec.sections[1])
}

func TestEngine_RunAllContinuesAfterFailure(t *testing.T) {
	e, rec, _ := newTestEngine(t, func([]*schema.Message) (string, error) {
		return "", errors.New("invalid api key")
	})

	err := e.RunAll(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "company 商汤科技")
	assert.Len(t, rec.runs, 3)
	assert.Equal(t, storage.StatusSucceeded, rec.results[2].Status)
	assert.Equal(t, "macro:"+DefaultMacroTopic, rec.runs[2])
}

func TestEngine_RunValidation(t *testing.T) {
	e, rec, _ := newTestEngine(t, analyst)

	_, err := e.Run(context.Background(), RunOptions{Kind: "fund", Subject: "x"})
	assert.Error(t, err)
	_, err = e.Run(context.Background(), RunOptions{Kind: model.KindMacro})
	assert.Error(t, err)
	assert.Empty(t, rec.runs)
}

func TestEngine_CheckHealth(t *testing.T) {
	e, _, _ := newTestEngine(t, func([]*schema.Message) (string, error) { return "2", nil })
	assert.NoError(t, e.CheckHealth(context.Background()))

	e.Searcher = &stubSearcher{err: errors.New("quota exceeded")}
	assert.ErrorContains(t, e.CheckHealth(context.Background()), "搜索测试失败")
}
