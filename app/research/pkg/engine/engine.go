package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/iWorld-y/research_report/app/research/pkg/collect"
	"github.com/iWorld-y/research_report/app/research/pkg/company"
	"github.com/iWorld-y/research_report/app/research/pkg/config"
	"github.com/iWorld-y/research_report/app/research/pkg/convert"
	"github.com/iWorld-y/research_report/app/research/pkg/fetch"
	"github.com/iWorld-y/research_report/app/research/pkg/llm"
	"github.com/iWorld-y/research_report/app/research/pkg/logger"
	"github.com/iWorld-y/research_report/app/research/pkg/market"
	"github.com/iWorld-y/research_report/app/research/pkg/metrics"
	"github.com/iWorld-y/research_report/app/research/pkg/model"
	"github.com/iWorld-y/research_report/app/research/pkg/rag"
	"github.com/iWorld-y/research_report/app/research/pkg/research"
	"github.com/iWorld-y/research_report/app/research/pkg/search"
	"github.com/iWorld-y/research_report/app/research/pkg/search/factory"
	"github.com/iWorld-y/research_report/app/research/pkg/storage"
)

// 默认研报主题
const (
	DefaultCompany     = "商汤科技"
	DefaultCompanyCode = "00020.HK"
	DefaultIndustry    = "中国智能服务机器人产业"
	DefaultMacroTopic  = "国家级'人工智能+'政策效果评估"
	DefaultMacroTime   = "2023-2025"
)

// Recorder 运行记录持久化，*storage.Storage 实现了该接口
type Recorder interface {
	CreateRun(ctx context.Context, kind model.Kind, subject string) (int, error)
	SaveSections(ctx context.Context, runID int, sections []model.Section) error
	SaveReferences(ctx context.Context, runID int, refs []model.Reference) error
	FinishRun(ctx context.Context, runID int, res storage.RunResult) error
}

// Deps 引擎依赖，除 LLM、Searcher 与 Publisher 外均可为空
type Deps struct {
	LLM       *llm.Client
	Searcher  search.Searcher
	Fetcher   *fetch.Fetcher
	Market    market.Provider
	RAG       *rag.Helper
	Publisher *convert.Publisher
	Recorder  Recorder
}

// Engine 核心处理引擎
type Engine struct {
	cfg *config.Config
	Deps
}

// New 使用现成依赖创建引擎
func New(cfg *config.Config, deps Deps) *Engine {
	return &Engine{cfg: cfg, Deps: deps}
}

// NewEngine 根据配置创建引擎实例，store 为空时不记录运行
func NewEngine(ctx context.Context, cfg *config.Config, store *storage.Storage) (*Engine, error) {
	client, err := llm.NewFromConfig(ctx, cfg.LLM, cfg.Concurrency)
	if err != nil {
		return nil, err
	}

	searcher, err := factory.NewSearcher(cfg, factory.NewRedisClient(cfg.Redis))
	if err != nil {
		return nil, fmt.Errorf("搜索客户端初始化失败: %w", err)
	}

	deps := Deps{
		LLM:       client,
		Searcher:  searcher,
		Fetcher:   fetch.NewFetcher(30*time.Second, cfg.Concurrency.Workers),
		Publisher: convert.NewPublisher(cfg.Report.OutputDir, cfg.Report.ArchiveDir, convert.New(cfg.Converter)),
	}
	if store != nil {
		deps.Recorder = store
	}
	if cfg.Market.Enabled {
		deps.Market = market.NewYahooClient(cfg.Market.BaseURL, cfg.Market.Timeout)
	}
	if cfg.RAG.Enabled {
		deps.RAG, err = newRAG(ctx, cfg.RAG, store)
		if err != nil {
			return nil, err
		}
	}
	return New(cfg, deps), nil
}

func newRAG(ctx context.Context, cfg config.RAGConfig, store *storage.Storage) (*rag.Helper, error) {
	if cfg.Store != "postgres" {
		return rag.NewHelper(rag.NewMemoryStore(), cfg.ChunkSize, cfg.ChunkOverlap), nil
	}
	if store == nil {
		return nil, errors.New("rag store postgres requires a database connection")
	}
	ps, err := rag.NewPostgresStore(ctx, store.DB())
	if err != nil {
		return nil, err
	}
	return rag.NewHelper(ps, cfg.ChunkSize, cfg.ChunkOverlap), nil
}

// RunOptions 运行选项
type RunOptions struct {
	Kind model.Kind
	// Subject 公司名 / 行业名 / 宏观主题
	Subject string
	// Code 股票代码，例如 00020.HK
	Code             string
	TimeRange        string
	MaxIterations    int
	ForceRefresh     bool
	UseTemplate      bool
	ProgressCallback func(status string, progress int)
}

// CompanyRequest 公司研报
type CompanyRequest struct {
	Name        string
	Code        string
	UseTemplate bool
}

// IndustryRequest 行业研报
type IndustryRequest struct {
	Name          string
	MaxIterations int
	ForceRefresh  bool
}

// MacroRequest 宏观研报
type MacroRequest struct {
	Topic         string
	TimeRange     string
	MaxIterations int
	ForceRefresh  bool
}

func (e *Engine) RunCompany(ctx context.Context, req CompanyRequest) (*model.Report, error) {
	return e.Run(ctx, RunOptions{Kind: model.KindCompany, Subject: req.Name, Code: req.Code, UseTemplate: req.UseTemplate})
}

func (e *Engine) RunIndustry(ctx context.Context, req IndustryRequest) (*model.Report, error) {
	return e.Run(ctx, RunOptions{Kind: model.KindIndustry, Subject: req.Name, MaxIterations: req.MaxIterations, ForceRefresh: req.ForceRefresh})
}

func (e *Engine) RunMacro(ctx context.Context, req MacroRequest) (*model.Report, error) {
	return e.Run(ctx, RunOptions{
		Kind:          model.KindMacro,
		Subject:       req.Topic,
		TimeRange:     req.TimeRange,
		MaxIterations: req.MaxIterations,
		ForceRefresh:  req.ForceRefresh,
	})
}

// Run 执行一次研报生成任务
func (e *Engine) Run(ctx context.Context, opts RunOptions) (*model.Report, error) {
	if !opts.Kind.Valid() {
		return nil, fmt.Errorf("unknown report kind: %q", opts.Kind)
	}
	if opts.Subject == "" {
		return nil, fmt.Errorf("%s report: subject is required", opts.Kind)
	}
	progress := func(status string, pct int) {
		if opts.ProgressCallback != nil {
			opts.ProgressCallback(status, pct)
		}
	}

	logger.Log.Infof("开始生成 %s 研报: %s", opts.Kind, opts.Subject)
	progress("starting", 0)

	// 创建本次运行记录
	var runID int
	if e.Recorder != nil {
		rid, err := e.Recorder.CreateRun(ctx, opts.Kind, opts.Subject)
		if err != nil {
			logger.Log.Errorf("无法创建运行记录: %v", err)
		} else {
			runID = rid
		}
	}

	report, baseName, err := e.generate(ctx, opts, progress)
	if err == nil {
		progress("publishing", 90)
		err = e.publish(ctx, report, baseName)
	}
	e.finish(ctx, runID, opts.Kind, report, err)
	if err != nil {
		logger.Log.Errorf("❌ 研报生成失败 [%s]: %v", opts.Subject, err)
		return nil, err
	}

	progress("completed", 100)
	logger.Log.Infof("✅ 研报生成完成！文件已保存到: %s", report.MarkdownPath)
	return report, nil
}

func (e *Engine) generate(ctx context.Context, opts RunOptions, progress func(string, int)) (*model.Report, string, error) {
	switch opts.Kind {
	case model.KindCompany:
		r, err := e.generateCompany(ctx, opts, progress)
		return r, company.OutputBaseName, err
	case model.KindIndustry:
		p := research.IndustryProfile(opts.Subject)
		r, err := e.generateResearch(ctx, p, opts, progress)
		return r, p.OutputBaseName, err
	default:
		timeRange := opts.TimeRange
		if timeRange == "" {
			timeRange = DefaultMacroTime
		}
		p := research.MacroProfile(opts.Subject, timeRange)
		r, err := e.generateResearch(ctx, p, opts, progress)
		return r, p.OutputBaseName, err
	}
}

func (e *Engine) generateCompany(ctx context.Context, opts RunOptions, progress func(string, int)) (*model.Report, error) {
	code, mkt := market.ParseStockCode(opts.Code)
	target := collect.Target{Name: opts.Subject, Code: code, Market: mkt}

	// 数据收集失败不影响研报生成
	progress("collecting", 5)
	var refs []model.Reference
	if e.Searcher != nil {
		if e.RAG != nil {
			if err := e.RAG.Clear(ctx, target.Collection()); err != nil {
				logger.Log.Warnf("清理资料集合失败: %v", err)
			}
		}
		c := collect.NewCollector(e.Searcher, e.Fetcher, e.Market, e.RAG, e.cfg.Concurrency.Workers, e.cfg.Report.CollectQueryTopK)
		res, err := c.CollectCompany(ctx, target)
		if err != nil {
			logger.Log.Errorf("数据收集失败 [%s]: %v", target.Name, err)
		}
		if res != nil {
			refs = res.References
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	progress("writing", 20)
	gen := company.NewGenerator(e.LLM, e.RAG, company.Options{
		DiscussRounds:   e.cfg.Report.DiscussRounds,
		UseTemplate:     opts.UseTemplate || e.cfg.Report.UseTemplate,
		RAGMaxTokens:    e.cfg.RAG.MaxTokens,
		RAGTopK:         e.cfg.RAG.TopK,
		ContextMaxRunes: e.cfg.Report.ContextMaxRunes,
		Progress: func(done, total int) {
			progress(fmt.Sprintf("writing part %d/%d", done, total), 20+done*65/total)
		},
	})
	report, err := gen.Generate(ctx, company.NewReportInfo(target.Name, target.Code, target.Market), target.Collection())
	if err != nil {
		return nil, err
	}
	report.References = refs
	return report, nil
}

func (e *Engine) generateResearch(ctx context.Context, p research.Profile, opts RunOptions, progress func(string, int)) (*model.Report, error) {
	maxIter := opts.MaxIterations
	if maxIter <= 0 {
		maxIter = e.cfg.Report.MaxIterations
	}
	flow := research.NewFlow(e.LLM, e.Searcher, research.Options{
		MaxIterations:   maxIter,
		MaxResults:      10,
		SearchPause:     time.Duration(e.cfg.Report.SearchPause * float64(time.Second)),
		ForceRefresh:    opts.ForceRefresh,
		ContextMaxRunes: e.cfg.Report.ContextMaxRunes,
		Progress:        progress,
	})
	return flow.Run(ctx, p)
}

func (e *Engine) publish(ctx context.Context, report *model.Report, baseName string) error {
	if e.Publisher == nil {
		return nil
	}
	out, err := e.Publisher.Publish(ctx, baseName, report.Markdown)
	if err != nil {
		return err
	}
	report.MarkdownPath = out.MarkdownPath
	report.ArchivePath = out.ArchivePath
	report.DocxPath = out.DocxPath
	return nil
}

// finish 回写运行结果并记录指标，ctx 取消后仍尽量写入
func (e *Engine) finish(ctx context.Context, runID int, kind model.Kind, report *model.Report, runErr error) {
	status := storage.StatusSucceeded
	if runErr != nil {
		status = storage.StatusFailed
	}
	metrics.Reports.WithLabelValues(string(kind), status).Inc()

	if e.Recorder == nil || runID == 0 {
		return
	}
	ctx = context.WithoutCancel(ctx)
	res := storage.RunResult{Status: status, Err: runErr}
	if report != nil && runErr == nil {
		if err := e.Recorder.SaveSections(ctx, runID, report.Sections); err != nil {
			logger.Log.Errorf("保存章节失败: %v", err)
		}
		if err := e.Recorder.SaveReferences(ctx, runID, report.References); err != nil {
			logger.Log.Errorf("保存引用失败: %v", err)
		}
		res.Title = report.Title
		res.Markdown = report.Markdown
		res.MarkdownPath = report.MarkdownPath
		res.DocxPath = report.DocxPath
	}
	if err := e.Recorder.FinishRun(ctx, runID, res); err != nil {
		logger.Log.Errorf("更新运行记录失败: %v", err)
	}
}

// RunAll 依次生成默认的公司、行业、宏观研报，单个失败不影响后续
func (e *Engine) RunAll(ctx context.Context) error {
	jobs := []RunOptions{
		{Kind: model.KindCompany, Subject: DefaultCompany, Code: DefaultCompanyCode},
		{Kind: model.KindIndustry, Subject: DefaultIndustry},
		{Kind: model.KindMacro, Subject: DefaultMacroTopic, TimeRange: DefaultMacroTime},
	}
	var errs []error
	for i, job := range jobs {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		logger.Log.Infof("========== [%d/%d] %s: %s ==========", i+1, len(jobs), job.Kind, job.Subject)
		if _, err := e.Run(ctx, job); err != nil {
			errs = append(errs, fmt.Errorf("%s %s: %w", job.Kind, job.Subject, err))
		}
	}
	return errors.Join(errs...)
}

// CheckHealth 测试 LLM 与搜索是否可用
func (e *Engine) CheckHealth(ctx context.Context) error {
	logger.Log.Info("🧪 开始测试工作流...")

	answer, err := e.LLM.Call(ctx, "请简单回答：1+1等于几？")
	if err != nil {
		return fmt.Errorf("LLM 测试失败: %w", err)
	}
	logger.Log.Infof("✅ LLM测试成功: %s", answer)

	resp, err := e.Searcher.Search(search.WithForceRefresh(ctx, true), &search.Request{Query: "测试搜索", MaxResults: 5})
	if err != nil {
		return fmt.Errorf("搜索测试失败: %w", err)
	}
	logger.Log.Infof("✅ 搜索测试成功，找到 %d 条结果", len(resp.Results))
	logger.Log.Info("✅ 所有测试通过")
	return nil
}
