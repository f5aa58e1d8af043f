package company

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/iWorld-y/research_report/app/research/pkg/llm"
)

// ErrEmptyOutline 模型没有给出任何大纲部分
var ErrEmptyOutline = errors.New("empty outline")

const analystRole = "你是一名资深的证券分析师，擅长撰写结构严谨、数据翔实的上市公司深度研究报告。"

// Agents 研报各环节的提示词封装
type Agents struct {
	llm *llm.Client
	// 提示词中已生成正文的最大字符数
	maxContextRunes int
}

// NewAgents 创建代理集合
func NewAgents(c *llm.Client, maxContextRunes int) *Agents {
	return &Agents{llm: c, maxContextRunes: maxContextRunes}
}

// OutlineOpinion 对当前大纲提出修改意见
func (a *Agents) OutlineOpinion(ctx context.Context, info *ReportInfo) (string, error) {
	prompt := fmt.Sprintf(`请为「%s」的深度研究报告的大纲提出改进意见。

【公司资料】
%s

【竞争对手资料】
%s

【当前大纲】
%s

要求：
1. 指出大纲中缺失的关键分析维度（如行业格局、财务质量、估值、风险）。
2. 指出结构不合理、重复或者过于空泛的部分。
3. 给出具体的调整建议，条目化输出，不超过 10 条。`,
		info.Company, orNone(info.RAGContext), orNone(info.CompetitorContext), outlineText(info.Outline))

	opinion, err := a.llm.Call(ctx, prompt, llm.WithSystemPrompt(analystRole))
	if err != nil {
		return "", fmt.Errorf("大纲意见生成失败: %w", err)
	}
	info.OutlineOpinion = opinion
	return opinion, nil
}

// Outline 根据意见生成（或修订）大纲
func (a *Agents) Outline(ctx context.Context, info *ReportInfo) ([]Part, error) {
	prompt := fmt.Sprintf(`请为「%s」撰写一份深度研究报告的大纲。

【公司资料】
%s

【竞争对手资料】
%s

【当前大纲】
%s

【修改意见】
%s

输出要求：
1. 使用 YAML 格式，放在 `+"```yaml```"+` 代码块中，根节点为 parts 列表。
2. 每个部分包含字段：part_num, part_title, part_title_type, part_desc, part_content_type, part_key_output, part_data_source, part_importance, part_length_ratio。
3. part_title_type 只能是"章"或"节"，章的编号为 "1"、"2"，节的编号为 "1.1"、"1.2"，节紧跟在所属章之后。
4. part_title 以编号开头，例如 "1. 宏观环境分析"、"1.1 全球AI政策图谱"。
5. 章的数量在 5 到 8 之间。`,
		info.Company, orNone(info.RAGContext), orNone(info.CompetitorContext),
		outlineText(info.Outline), orNone(info.OutlineOpinion))

	resp, err := a.llm.Call(ctx, prompt, llm.WithSystemPrompt(analystRole))
	if err != nil {
		return nil, fmt.Errorf("大纲生成失败: %w", err)
	}
	parts, err := ParseOutline(resp)
	if err != nil {
		return nil, err
	}
	info.Outline = parts
	return parts, nil
}

// ParseOutline 解析 {parts: [...]} 或直接的列表
func ParseOutline(text string) ([]Part, error) {
	var doc struct {
		Parts []Part `json:"parts" yaml:"parts"`
	}
	if err := llm.ParseStructured(text, &doc); err == nil && len(doc.Parts) > 0 {
		return cleanParts(doc.Parts)
	}
	var list []Part
	if err := llm.ParseStructured(text, &list); err != nil {
		return nil, fmt.Errorf("解析大纲失败: %w", err)
	}
	return cleanParts(list)
}

func cleanParts(parts []Part) ([]Part, error) {
	out := parts[:0]
	for _, p := range parts {
		p.Title = strings.TrimSpace(p.Title)
		if p.Title == "" {
			continue
		}
		p.Num = strings.TrimSpace(p.Num)
		if p.TitleType != TitleSection {
			p.TitleType = TitleChapter
		}
		out = append(out, p)
	}
	if len(out) == 0 {
		return nil, ErrEmptyOutline
	}
	return out, nil
}

// SectionOpinion 对当前部分的写作提出意见
func (a *Agents) SectionOpinion(ctx context.Context, info *ReportInfo) (string, error) {
	p := info.Current.Part
	prompt := fmt.Sprintf(`你正在审阅「%s」深度研究报告中的「%s」部分。

【部分要求】
%s

【参考资料】
%s

【当前草稿】
%s

请给出这一部分的写作意见：应当覆盖的要点、需要引用的数据、论证是否充分、与前文的衔接。条目化输出，不超过 8 条。`,
		info.Company, p.Title, partBrief(p), orNone(info.PartRAGContext), orNone(info.Current.Content))

	opinion, err := a.llm.Call(ctx, prompt, llm.WithSystemPrompt(analystRole))
	if err != nil {
		return "", fmt.Errorf("章节意见生成失败 [%s]: %w", p.Title, err)
	}
	info.Current.Opinion = opinion
	return opinion, nil
}

// SectionEdit 根据意见撰写当前部分
func (a *Agents) SectionEdit(ctx context.Context, info *ReportInfo) (string, error) {
	p := info.Current.Part
	ending := "后续还有其他部分，结尾不要做全文总结。"
	if info.Current.IsLast {
		ending = "这是报告的最后一部分，结尾需要对全文做简要总结。"
	}
	prompt := fmt.Sprintf(`请撰写「%s」深度研究报告中的「%s」部分。

【部分要求】
%s

【参考资料】
%s

【前文摘录】
%s

【当前草稿】
%s

【修改意见】
%s

写作要求：
1. 使用 Markdown，第一行为标题 "%s"，正文中不要再出现同级或更高级的标题。
2. 数据要注明来源，没有资料支撑的数字不要编造。
3. 篇幅参考占比 %s。
4. %s
只输出正文内容。`,
		info.Company, p.Title, partBrief(p), orNone(info.PartRAGContext),
		orNone(info.Generated(a.maxContextRunes)), orNone(info.Current.Content),
		orNone(info.Current.Opinion), p.Heading(), orNone(p.LengthRatio), ending)

	content, err := a.llm.Call(ctx, prompt, llm.WithSystemPrompt(analystRole))
	if err != nil {
		return "", fmt.Errorf("章节撰写失败 [%s]: %w", p.Title, err)
	}
	content = withHeading(content, p.Heading())
	info.Current.Content = content
	return content, nil
}

// Abstract 根据全文生成摘要
func (a *Agents) Abstract(ctx context.Context, info *ReportInfo) (string, error) {
	prompt := fmt.Sprintf(`请为「%s」深度研究报告撰写摘要。

【报告正文】
%s

要求：
1. 以 "## 摘要" 开头。
2. 概括核心观点、关键财务数据、投资建议和主要风险。
3. 篇幅在 300 到 600 字之间。`, info.Company, orNone(info.Generated(a.maxContextRunes)))

	abstract, err := a.llm.Call(ctx, prompt, llm.WithSystemPrompt(analystRole))
	if err != nil {
		return "", fmt.Errorf("摘要生成失败: %w", err)
	}
	abstract = withHeading(abstract, "## 摘要")
	info.Abstract = abstract
	return abstract, nil
}

func partBrief(p Part) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "编号：%s\n标题：%s\n", p.Num, p.Title)
	if p.Desc != "" {
		fmt.Fprintf(&sb, "描述：%s\n", p.Desc)
	}
	if p.ContentType != "" {
		fmt.Fprintf(&sb, "内容类型：%s\n", p.ContentType)
	}
	if p.KeyOutput != "" {
		fmt.Fprintf(&sb, "关键产出：%s\n", p.KeyOutput)
	}
	if p.DataSource != "" {
		fmt.Fprintf(&sb, "数据来源：%s\n", p.DataSource)
	}
	if p.Importance != "" {
		fmt.Fprintf(&sb, "重要性：%s\n", p.Importance)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func outlineText(parts []Part) string {
	if len(parts) == 0 {
		return "（暂无）"
	}
	out, err := yaml.Marshal(map[string][]Part{"parts": parts})
	if err != nil {
		return "（暂无）"
	}
	return string(out)
}

// withHeading 模型漏写标题时补上
func withHeading(content, heading string) string {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "#") {
		return content
	}
	return heading + "\n\n" + content
}

func orNone(s string) string {
	if strings.TrimSpace(s) == "" {
		return "（暂无）"
	}
	return s
}
