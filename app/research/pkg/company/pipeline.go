package company

import (
	"context"
	"fmt"
	"strings"

	"github.com/iWorld-y/research_report/app/research/pkg/llm"
	"github.com/iWorld-y/research_report/app/research/pkg/logger"
	"github.com/iWorld-y/research_report/app/research/pkg/model"
	"github.com/iWorld-y/research_report/app/research/pkg/rag"
)

// OutputBaseName 公司研报输出文件名（不含扩展名）
const OutputBaseName = "Company_Research_Report"

// Options 生成参数
type Options struct {
	DiscussRounds   int
	UseTemplate     bool
	RAGMaxTokens    int
	RAGTopK         int
	ContextMaxRunes int
	// Progress 每完成一个部分回调一次
	Progress func(done, total int)
}

// Generator 公司研报生成流水线
type Generator struct {
	agents *Agents
	rag    *rag.Helper
	opts   Options
}

// NewGenerator 创建生成器，rag 为空时跳过资料检索
func NewGenerator(c *llm.Client, r *rag.Helper, opts Options) *Generator {
	if opts.DiscussRounds <= 0 {
		opts.DiscussRounds = 2
	}
	if opts.RAGMaxTokens <= 0 {
		opts.RAGMaxTokens = 4000
	}
	if opts.RAGTopK <= 0 {
		opts.RAGTopK = 10
	}
	return &Generator{agents: NewAgents(c, opts.ContextMaxRunes), rag: r, opts: opts}
}

// Generate 生成公司研报，collection 为公司资料所在的 RAG 集合
func (g *Generator) Generate(ctx context.Context, info *ReportInfo, collection string) (*model.Report, error) {
	logger.Log.Infof("🚀 开始生成公司研报: %s", info.Company)

	info.RAGContext = g.context(ctx, collection, info.Company+" 公司分析 财务数据 行业地位 竞争分析", g.opts.RAGTopK*2)
	info.CompetitorContext = g.context(ctx, collection, info.Company+"竞争对手分析", g.opts.RAGTopK)

	outline, err := g.GenerateOutline(ctx, info)
	if err != nil {
		return nil, err
	}
	logger.Log.Infof("📄 大纲生成成功，共 %d 个部分", len(outline))

	sections, err := g.generateParts(ctx, info, collection)
	if err != nil {
		return nil, err
	}

	if _, err := g.agents.Abstract(ctx, info); err != nil {
		logger.Log.Errorf("%v", err)
	}

	return &model.Report{
		Kind:     model.KindCompany,
		Title:    info.Title,
		Subject:  info.Company,
		Markdown: Assemble(info),
		Sections: sections,
	}, nil
}

// GenerateOutline 模板或多轮讨论生成大纲
func (g *Generator) GenerateOutline(ctx context.Context, info *ReportInfo) ([]Part, error) {
	if g.opts.UseTemplate {
		parts, err := DefaultOutline(info.Company)
		if err != nil {
			return nil, err
		}
		logger.Log.Info("📄 使用模板大纲")
		info.Outline = parts
		return parts, nil
	}

	var parts []Part
	for round := 0; round < g.opts.DiscussRounds; round++ {
		if _, err := g.agents.OutlineOpinion(ctx, info); err != nil {
			return nil, err
		}
		p, err := g.agents.Outline(ctx, info)
		if err != nil {
			return nil, err
		}
		parts = p
		logger.Log.Debugf("第 %d 轮大纲讨论完成，共 %d 个部分", round+1, len(parts))
	}
	if len(parts) == 0 {
		return nil, fmt.Errorf("大纲生成失败: %w", ErrEmptyOutline)
	}
	return parts, nil
}

func (g *Generator) generateParts(ctx context.Context, info *ReportInfo, collection string) ([]model.Section, error) {
	outline := info.Outline
	nodes := HasSubNodes(outline)
	total := len(outline)
	var sections []model.Section

	logger.Log.Info("✍️ 开始分段生成深度研报...")
	for idx, part := range outline {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		info.Current = PartContext{Part: part, IsLast: idx == total-1}

		if nodes[idx] {
			info.Texts = append(info.Texts, part.Heading())
		} else {
			info.PartRAGContext = g.context(ctx, collection, part.Title+" "+info.Company, g.opts.RAGTopK)
			content, err := g.discussPart(ctx, info)
			if err != nil {
				logger.Log.Errorf("跳过部分 [%s]: %v", part.Title, err)
			} else {
				info.Texts = append(info.Texts, content)
				sections = append(sections, model.Section{Name: part.Title, Content: content})
			}
		}
		logger.Log.Infof("✅ 已完成：%s (%d/%d)", part.Title, idx+1, total)
		if g.opts.Progress != nil {
			g.opts.Progress(idx+1, total)
		}
	}
	return sections, nil
}

// discussPart 多轮 意见 -> 修改
func (g *Generator) discussPart(ctx context.Context, info *ReportInfo) (string, error) {
	var content string
	for round := 0; round < g.opts.DiscussRounds; round++ {
		if _, err := g.agents.SectionOpinion(ctx, info); err != nil {
			return "", err
		}
		c, err := g.agents.SectionEdit(ctx, info)
		if err != nil {
			return "", err
		}
		content = c
	}
	return content, nil
}

func (g *Generator) context(ctx context.Context, collection, query string, topK int) string {
	if g.rag == nil {
		logger.Log.Warn("RAG助手不可用，跳过上下文获取")
		return ""
	}
	text, err := g.rag.GetContextForLLM(ctx, collection, query, g.opts.RAGMaxTokens, topK)
	if err != nil {
		logger.Log.Errorf("RAG助手获取上下文失败: %v", err)
		return ""
	}
	return text
}

// Assemble 拼接标题、摘要、目录与正文
func Assemble(info *ReportInfo) string {
	parts := []string{"# " + info.Title + "\n"}
	if info.Abstract != "" {
		parts = append(parts, info.Abstract)
	}
	parts = append(parts, TableOfContents(info.Outline))
	parts = append(parts, info.Texts...)
	return strings.Join(parts, "\n\n")
}
