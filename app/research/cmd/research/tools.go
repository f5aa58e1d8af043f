package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/iWorld-y/research_report/app/common/auth"
	"github.com/iWorld-y/research_report/app/research/pkg/convert"
	"github.com/iWorld-y/research_report/app/research/pkg/logger"
)

var (
	convertEngine string
	tokenKey      string
	tokenUser     string
	tokenTTL      time.Duration
)

var convertCmd = &cobra.Command{
	Use:   "convert <src> <dst>",
	Short: "Markdown 与 Word 文档互转",
	Long: `按文件扩展名在 .md 与 .docx 之间转换。

pandoc 可用时优先使用 pandoc，否则使用内置的 docx 渲染（仅支持 md -> docx）。`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cc := cfg.Converter
		if convertEngine != "" {
			cc.Engine = convertEngine
		}
		if err := convert.New(cc).Convert(cmd.Context(), args[0], args[1]); err != nil {
			return fmt.Errorf("文档转换失败: %w", err)
		}
		logger.Log.Infof("📄 已生成: %s", args[1])
		return nil
	},
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "签发展示服务的 API token",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		key := tokenKey
		if key == "" {
			key = os.Getenv("JWT_KEY")
		}
		raw, err := auth.Issue(key, tokenUser, tokenTTL)
		if err != nil {
			return fmt.Errorf("签发 token 失败: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), raw)
		return nil
	},
}

func init() {
	convertCmd.Flags().StringVar(&convertEngine, "engine", "", "转换引擎 (pandoc/native/auto)，默认读取配置")

	tokenCmd.Flags().StringVar(&tokenKey, "key", "", "签名密钥，默认读取环境变量 JWT_KEY")
	tokenCmd.Flags().StringVar(&tokenUser, "user", "admin", "token 持有者")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", auth.DefaultTTL, "有效期")

	rootCmd.AddCommand(convertCmd, tokenCmd)
}
