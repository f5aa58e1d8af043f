package server

import (
	"context"

	"github.com/go-kratos/kratos/v2/log"

	"github.com/iWorld-y/research_report/app/display/internal/conf"
	"github.com/iWorld-y/research_report/app/display/internal/data"
	"github.com/iWorld-y/research_report/app/display/internal/usecase"
	"github.com/iWorld-y/research_report/app/research/pkg/config"
	"github.com/iWorld-y/research_report/app/research/pkg/engine"
	rrLogger "github.com/iWorld-y/research_report/app/research/pkg/logger"
)

// NewResearchEngine 初始化研报引擎，未配置或配置无效时返回空 Runner，只提供查询接口
func NewResearchEngine(c *conf.Research, d *data.Data, logger log.Logger) (usecase.Runner, func(), error) {
	helper := log.NewHelper(logger)
	if c == nil {
		helper.Warn("research engine is not configured, run submission disabled")
		return nil, func() {}, nil
	}

	cfg := researchConfig(c)
	if err := rrLogger.InitLogger(cfg.Log.Level, cfg.Log.File); err != nil {
		helper.Errorf("Failed to init research logger: %v", err)
		_ = rrLogger.InitLogger("info", "") // 降级处理
	}
	if err := cfg.Validate(); err != nil {
		helper.Warnf("research engine disabled: %v", err)
		return nil, func() {}, nil
	}

	eng, err := engine.NewEngine(context.Background(), cfg, d.Store())
	if err != nil {
		helper.Errorf("Failed to init engine: %v", err)
		return nil, nil, err
	}

	cleanup := func() {
		helper.Info("Cleaning up research engine")
	}
	return eng, cleanup, nil
}

// researchConfig 将 conf.Research 转换为 config.Config，未填写的字段沿用环境变量与默认值
func researchConfig(c *conf.Research) *config.Config {
	cfg := &config.Config{}
	if c.Llm != nil {
		cfg.LLM = config.LLMConfig{BaseURL: c.Llm.BaseUrl, APIKey: c.Llm.ApiKey, Model: c.Llm.Model}
	}
	if c.Search != nil {
		cfg.Search.Provider = c.Search.Provider
		if c.Search.Tavily != nil {
			cfg.Search.Tavily.APIKey = c.Search.Tavily.ApiKey
		}
		if c.Search.Searxng != nil {
			cfg.Search.SearXNG = config.SearXNGConfig{
				BaseURL: c.Search.Searxng.BaseUrl,
				Timeout: int(c.Search.Searxng.Timeout),
			}
		}
	}
	if c.Redis != nil {
		cfg.Redis = config.RedisConfig{Addr: c.Redis.Addr, Password: c.Redis.Password, DB: int(c.Redis.Db)}
		cfg.Search.Cache.Enabled = c.Redis.Addr != ""
	}
	if c.Rag != nil {
		cfg.RAG.Enabled = c.Rag.Enabled
		cfg.RAG.Store = c.Rag.Store
	}
	if c.Report != nil {
		cfg.Report.OutputDir = c.Report.OutputDir
		cfg.Report.ArchiveDir = c.Report.ArchiveDir
		cfg.Report.DiscussRounds = int(c.Report.DiscussRounds)
		cfg.Report.MaxIterations = int(c.Report.MaxIterations)
	}
	if c.Converter != nil {
		cfg.Converter.Engine = c.Converter.Engine
	}
	if c.Log != nil {
		cfg.Log = config.LogConfig{Level: c.Log.Level, File: c.Log.File}
	}
	if c.Concurrency != nil {
		cfg.Concurrency.QPS = int(c.Concurrency.Qps)
		cfg.Concurrency.RPM = int(c.Concurrency.Rpm)
	}

	cfg.ApplyEnv()
	cfg.ApplyDefaults()
	return cfg
}
