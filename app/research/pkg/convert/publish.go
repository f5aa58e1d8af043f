package convert

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/iWorld-y/research_report/app/research/pkg/logger"
)

// Output 发布结果
type Output struct {
	MarkdownPath string
	ArchivePath  string
	DocxPath     string
	// ConvertErr docx 转换失败时记录原因，markdown 仍然保留
	ConvertErr error
}

// Publisher 写出 markdown、归档并转换为 docx
type Publisher struct {
	outDir     string
	archiveDir string
	conv       Converter
	now        func() time.Time
}

// NewPublisher 创建发布器，conv 为空时只输出 markdown
func NewPublisher(outDir, archiveDir string, conv Converter) *Publisher {
	return &Publisher{outDir: outDir, archiveDir: archiveDir, conv: conv, now: time.Now}
}

// Publish 写入 <out>/<base>.md，归档 <archive>/<base>_<时间戳>.md，并生成 <out>/<base>.docx
func (p *Publisher) Publish(ctx context.Context, baseName, markdown string) (*Output, error) {
	if err := os.MkdirAll(p.outDir, 0o755); err != nil {
		return nil, fmt.Errorf("创建输出目录失败: %w", err)
	}
	out := &Output{MarkdownPath: filepath.Join(p.outDir, baseName+".md")}
	docx := filepath.Join(p.outDir, baseName+".docx")

	// 删除上一次的 word 文件，避免转换失败时留下旧内容
	if err := os.Remove(docx); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("删除旧文件失败: %w", err)
	}
	if err := os.WriteFile(out.MarkdownPath, []byte(markdown), 0o644); err != nil {
		return nil, fmt.Errorf("写入报告失败: %w", err)
	}
	logger.Log.Infof("📝 报告已保存: %s", out.MarkdownPath)

	if p.archiveDir != "" {
		if err := os.MkdirAll(p.archiveDir, 0o755); err != nil {
			return nil, fmt.Errorf("创建归档目录失败: %w", err)
		}
		archive := filepath.Join(p.archiveDir, fmt.Sprintf("%s_%s.md", baseName, p.now().Format("20060102_150405")))
		if err := copyFile(out.MarkdownPath, archive); err != nil {
			return nil, fmt.Errorf("归档报告失败: %w", err)
		}
		out.ArchivePath = archive
	}

	if p.conv == nil {
		return out, nil
	}
	if err := p.conv.Convert(ctx, out.MarkdownPath, docx); err != nil {
		logger.Log.Errorf("❌ 文档转换失败: %v", err)
		out.ConvertErr = err
		return out, nil
	}
	out.DocxPath = docx
	logger.Log.Infof("📄 Word 文档已生成: %s", docx)
	return out, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	f, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, in); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
