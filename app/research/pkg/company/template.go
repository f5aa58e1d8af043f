package company

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed templates/default_outline.yaml
var defaultOutline string

// DefaultOutline 默认大纲模板
func DefaultOutline(company string) ([]Part, error) {
	var doc struct {
		Parts []Part `yaml:"parts"`
	}
	raw := strings.ReplaceAll(defaultOutline, "{company}", company)
	if err := yaml.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, fmt.Errorf("解析默认大纲失败: %w", err)
	}
	return doc.Parts, nil
}

// TableOfContents 根据大纲生成目录
func TableOfContents(parts []Part) string {
	var sb strings.Builder
	sb.WriteString("## 目录\n\n")
	for _, p := range parts {
		if p.TitleType == TitleSection {
			sb.WriteString("  ")
		}
		sb.WriteString("- ")
		sb.WriteString(p.Title)
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}
