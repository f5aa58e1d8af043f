package main

import (
	"github.com/spf13/cobra"

	"github.com/iWorld-y/research_report/app/research/pkg/engine"
	"github.com/iWorld-y/research_report/app/research/pkg/logger"
	"github.com/iWorld-y/research_report/app/research/pkg/model"
)

var (
	companyName  string
	companyCode  string
	useTemplate  bool
	industryName string
	macroName    string
	macroTime    string
	maxIter      int
	forceRefresh bool
	testOnly     bool
)

var companyCmd = &cobra.Command{
	Use:   "company",
	Short: "生成公司研报",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, cleanup, err := openEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		logger.Log.Infof("🚀 开始公司研报: %s (%s)", companyName, companyCode)
		report, err := e.RunCompany(cmd.Context(), engine.CompanyRequest{
			Name:        companyName,
			Code:        companyCode,
			UseTemplate: useTemplate || cfg.Report.UseTemplate,
		})
		if err != nil {
			return err
		}
		printReport(report)
		return nil
	},
}

var industryCmd = &cobra.Command{
	Use:   "industry",
	Short: "生成行业研报",
	Example: `  research industry --industry_name "智能风控&大数据征信服务"
  research industry --test`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, cleanup, err := openEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		if testOnly {
			return e.CheckHealth(cmd.Context())
		}

		logger.Log.Infof("🚀 开始行业研究工作流")
		logger.Log.Infof("📊 目标行业: %s", industryName)
		logger.Log.Infof("🔄 最大迭代次数: %d", maxIter)
		if forceRefresh {
			logger.Log.Info("🔄 强制刷新搜索缓存")
		}
		report, err := e.RunIndustry(cmd.Context(), engine.IndustryRequest{
			Name:          industryName,
			MaxIterations: maxIter,
			ForceRefresh:  forceRefresh,
		})
		if err != nil {
			return err
		}
		printReport(report)
		return nil
	},
}

var macroCmd = &cobra.Command{
	Use:   "macro",
	Short: "生成宏观研报",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, cleanup, err := openEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		logger.Log.Infof("🚀 开始宏观研究工作流: %s（%s）", macroName, macroTime)
		report, err := e.RunMacro(cmd.Context(), engine.MacroRequest{
			Topic:         macroName,
			TimeRange:     macroTime,
			MaxIterations: maxIter,
			ForceRefresh:  forceRefresh,
		})
		if err != nil {
			return err
		}
		printReport(report)
		return nil
	},
}

var allCmd = &cobra.Command{
	Use:   "all",
	Short: "依次生成默认的公司、行业、宏观研报",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, cleanup, err := openEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()
		return e.RunAll(cmd.Context())
	},
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "测试 LLM 与搜索是否可用",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, cleanup, err := openEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()
		return e.CheckHealth(cmd.Context())
	},
}

func printReport(r *model.Report) {
	logger.Log.Infof("✅ %s 生成完毕，共 %d 个章节，%d 条引用", r.Title, len(r.Sections), len(r.References))
	logger.Log.Infof("📝 Markdown: %s", r.MarkdownPath)
	if r.ArchivePath != "" {
		logger.Log.Infof("🗂️ 归档: %s", r.ArchivePath)
	}
	if r.DocxPath != "" {
		logger.Log.Infof("📄 Word: %s", r.DocxPath)
	}
}

func init() {
	companyCmd.Flags().StringVar(&companyName, "company_name", "4Paradigm", "目标公司名称")
	companyCmd.Flags().StringVar(&companyCode, "company_code", "06682.HK", "股票代码")
	companyCmd.Flags().BoolVar(&useTemplate, "template", false, "使用模板大纲")

	industryCmd.Flags().StringVar(&industryName, "industry_name", engine.DefaultIndustry, "目标行业名称")
	industryCmd.Flags().BoolVar(&testOnly, "test", false, "仅运行测试，不执行完整工作流")

	macroCmd.Flags().StringVar(&macroName, "marco_name", engine.DefaultMacroTopic, "宏观研究主题")
	macroCmd.Flags().StringVar(&macroTime, "time", engine.DefaultMacroTime, "研究时间范围")

	for _, c := range []*cobra.Command{industryCmd, macroCmd} {
		c.Flags().IntVar(&maxIter, "max-iterations", 10, "最大迭代次数，防止无限循环")
		c.Flags().BoolVar(&forceRefresh, "force-refresh", false, "强制刷新搜索缓存")
	}

	rootCmd.AddCommand(companyCmd, industryCmd, macroCmd, allCmd, checkCmd)
}
