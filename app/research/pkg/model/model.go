package model

// Kind 研报类型
type Kind string

const (
	KindCompany  Kind = "company"
	KindIndustry Kind = "industry"
	KindMacro    Kind = "macro"
)

// Valid 是否为已知研报类型
func (k Kind) Valid() bool {
	switch k {
	case KindCompany, KindIndustry, KindMacro:
		return true
	}
	return false
}

// Reference 报告引用的资料
type Reference struct {
	Title   string
	Link    string
	Source  string
	PubDate string
	Content string // 临时存储用于 LLM 分析，不一定展示
}

// Section 报告章节
type Section struct {
	Name    string
	Content string
}

// Report 一份生成完成的研报
type Report struct {
	Kind       Kind
	Title      string
	Subject    string // 公司名 / 行业名 / 宏观主题
	Markdown   string
	Sections   []Section
	References []Reference

	MarkdownPath string
	ArchivePath  string
	DocxPath     string
}
