package convert

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/iWorld-y/research_report/app/research/pkg/config"
	"github.com/iWorld-y/research_report/app/research/pkg/logger"
)

var (
	// ErrPandocMissing 找不到 pandoc 可执行文件
	ErrPandocMissing = errors.New("pandoc not found")
	// ErrUnsupported 转换器不支持该方向
	ErrUnsupported = errors.New("unsupported conversion")
)

// Converter 文档格式转换，方向由 src/dst 扩展名决定
type Converter interface {
	Convert(ctx context.Context, src, dst string) error
}

// New 按配置创建转换器
func New(cfg config.ConverterConfig) Converter {
	pandoc := &PandocConverter{Path: cfg.PandocPath, ReferenceDoc: cfg.ReferenceDoc}
	switch cfg.Engine {
	case "pandoc":
		return pandoc
	case "native":
		return &NativeConverter{}
	default:
		return &FallbackConverter{Converters: []Converter{pandoc, &NativeConverter{}}}
	}
}

// FallbackConverter 依次尝试，第一个成功即返回
type FallbackConverter struct {
	Converters []Converter
}

func (f *FallbackConverter) Convert(ctx context.Context, src, dst string) error {
	var errs []error
	for _, c := range f.Converters {
		err := c.Convert(ctx, src, dst)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logger.Log.Warnf("转换器 %T 失败，尝试下一个: %v", c, err)
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return fmt.Errorf("no converter configured: %w", ErrUnsupported)
	}
	return errors.Join(errs...)
}

func format(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown":
		return "markdown"
	case ".docx":
		return "docx"
	}
	return ""
}
