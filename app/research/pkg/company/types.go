package company

import (
	"strings"
)

// 标题类型
const (
	TitleChapter = "章"
	TitleSection = "节"
)

// Part 研报大纲中的一个部分
type Part struct {
	Num         string `json:"part_num" yaml:"part_num"`
	Title       string `json:"part_title" yaml:"part_title"`
	TitleType   string `json:"part_title_type" yaml:"part_title_type"`
	Desc        string `json:"part_desc" yaml:"part_desc"`
	ContentType string `json:"part_content_type" yaml:"part_content_type"`
	KeyOutput   string `json:"part_key_output" yaml:"part_key_output"`
	DataSource  string `json:"part_data_source" yaml:"part_data_source"`
	Importance  string `json:"part_importance" yaml:"part_importance"`
	LengthRatio string `json:"part_length_ratio" yaml:"part_length_ratio"`
}

// Heading 章为二级标题，节为三级标题
func (p Part) Heading() string {
	if p.TitleType == TitleSection {
		return "### " + p.Title
	}
	return "## " + p.Title
}

// HasSubNodes 逐个判断部分是否带有下级节点，即下一部分编号以 "<num>." 开头
func HasSubNodes(parts []Part) []bool {
	nodes := make([]bool, len(parts))
	for i := 0; i+1 < len(parts); i++ {
		num := strings.TrimSpace(parts[i].Num)
		if num == "" {
			continue
		}
		nodes[i] = strings.HasPrefix(strings.TrimSpace(parts[i+1].Num), num+".")
	}
	return nodes
}

// PartContext 当前正在撰写的部分
type PartContext struct {
	Part    Part
	IsLast  bool
	Opinion string
	Content string
}

// ReportInfo 研报生成过程中的共享状态
type ReportInfo struct {
	Company string
	Code    string
	Market  string
	Title   string

	RAGContext        string // 公司整体资料
	CompetitorContext string // 竞争对手资料

	Outline        []Part
	OutlineOpinion string

	Current        PartContext
	PartRAGContext string

	Texts    []string
	Abstract string
}

// NewReportInfo 初始化报告信息
func NewReportInfo(company, code, mkt string) *ReportInfo {
	return &ReportInfo{
		Company: company,
		Code:    code,
		Market:  mkt,
		Title:   company + "研报",
	}
}

// Generated 已生成正文（截断），供后续部分保持上下文连贯
func (r *ReportInfo) Generated(maxRunes int) string {
	text := strings.Join(r.Texts, "\n\n")
	runes := []rune(text)
	if maxRunes > 0 && len(runes) > maxRunes {
		return string(runes[len(runes)-maxRunes:])
	}
	return text
}
