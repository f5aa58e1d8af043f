package convert

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// PandocConverter 调用外部 pandoc 完成 markdown 与 docx 互转
type PandocConverter struct {
	Path         string
	ReferenceDoc string
}

func (p *PandocConverter) Convert(ctx context.Context, src, dst string) error {
	bin, err := exec.LookPath(p.path())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPandocMissing, err)
	}
	args, err := p.args(src, dst)
	if err != nil {
		return err
	}

	cmd := exec.CommandContext(ctx, bin, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("pandoc %s -> %s: %w: %s", src, dst, err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

func (p *PandocConverter) path() string {
	if p.Path == "" {
		return "pandoc"
	}
	return p.Path
}

func (p *PandocConverter) args(src, dst string) ([]string, error) {
	from, to := format(src), format(dst)
	if from == "" || to == "" || from == to {
		return nil, fmt.Errorf("%w: %s -> %s", ErrUnsupported, src, dst)
	}
	if to == "markdown" {
		to = "gfm"
	}
	args := []string{"-f", from, "-t", to, "-o", dst}
	if to == "docx" && p.ReferenceDoc != "" {
		args = append(args, "--reference-doc="+p.ReferenceDoc)
	}
	return append(args, src), nil
}
