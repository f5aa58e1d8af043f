package domain

import "errors"

// ErrReportNotFound 报告不存在
var ErrReportNotFound = errors.New("report not found")

// Reference 引用来源
type Reference struct {
	Title   string
	Link    string
	Source  string
	PubDate string
}

// Section 报告章节
type Section struct {
	Name    string
	Content string
}

// ReportSummary 报告摘要信息
type ReportSummary struct {
	ID           int
	Kind         string
	Subject      string
	Title        string
	Status       string
	SectionCount int
	CreatedAt    string
}

// Report 报告详情
type Report struct {
	ReportSummary
	Error        string
	Markdown     string
	MarkdownPath string
	DocxPath     string
	FinishedAt   string
	Sections     []Section
	References   []Reference
}
