package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/iWorld-y/research_report/app/research/pkg/config"
	"github.com/iWorld-y/research_report/app/research/pkg/engine"
	"github.com/iWorld-y/research_report/app/research/pkg/logger"
	"github.com/iWorld-y/research_report/app/research/pkg/storage"
)

var (
	cfgPath  string
	logLevel string
	cfg      *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "research",
	Short: "金融研报自动生成",
	Long: `基于大模型与多源检索的研报生成工具。

支持公司、行业、宏观三类研报，输出 Markdown 与 Word 文档。`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "configs/config.yaml", "配置文件路径")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "日志级别，覆盖配置文件 (debug/info/warn/error)")
}

// setup 加载配置并初始化日志，配置文件不存在时退回环境变量
func setup(cmd *cobra.Command, args []string) error {
	c, err := config.LoadConfig(cfgPath)
	missing := errors.Is(err, os.ErrNotExist)
	switch {
	case missing:
		c = config.Default()
	case err != nil:
		return fmt.Errorf("无法加载配置文件: %w", err)
	}
	cfg = c

	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	logFile := cfg.Log.File
	if logFile == "" {
		logFile = logger.DefaultLogFile("logs", time.Now())
	}
	if err := logger.InitLogger(cfg.Log.Level, logFile); err != nil {
		return fmt.Errorf("无法初始化日志: %w", err)
	}
	if missing {
		logger.Log.Warnf("配置文件 %s 不存在，使用环境变量配置", cfgPath)
	}
	return nil
}

// openEngine 校验配置并创建引擎，数据库不可用时仅输出文件
func openEngine(ctx context.Context) (*engine.Engine, func(), error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("配置错误: %w", err)
	}

	var store *storage.Storage
	if cfg.DB.Enabled() {
		s, err := storage.NewStorage(cfg.DB)
		if err != nil {
			logger.Log.Errorf("无法连接数据库: %v. 将仅生成报告文件。", err)
		} else {
			store = s
			logger.Log.Info("已成功连接到数据库")
		}
	} else {
		logger.Log.Info("未配置数据库信息，跳过数据库连接")
	}

	cleanup := func() {
		if store != nil {
			store.Close()
		}
	}
	e, err := engine.NewEngine(ctx, cfg, store)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return e, cleanup, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logger.Log.Errorf("❌ %v", err)
		os.Exit(1)
	}
}
