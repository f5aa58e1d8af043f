package research

import (
	"fmt"

	"github.com/iWorld-y/research_report/app/research/pkg/model"
)

// Profile 一类研报的主题、章节清单与输出命名
type Profile struct {
	Kind      model.Kind
	Subject   string
	TimeRange string
	// Field 提示词中的研究领域，例如 "行业研究"
	Field          string
	TitleSuffix    string
	Checklist      []string
	OutputBaseName string
}

// IndustryChecklist 行业研报重要章节
var IndustryChecklist = []string{
	"行业概述/行业概览",
	"市场规模分析",
	"竞争格局分析",
	"技术发展趋势",
	"政策环境分析",
	"风险与挑战",
	"发展前景预测",
}

// MacroChecklist 宏观研报重要章节
var MacroChecklist = []string{
	"政策背景与目标",
	"政策实施现状",
	"经济影响评估",
	"产业影响分析",
	"区域与国际比较",
	"风险与挑战",
	"政策建议与展望",
}

// IndustryProfile 行业研报
func IndustryProfile(industry string) Profile {
	return Profile{
		Kind:           model.KindIndustry,
		Subject:        industry,
		Field:          "行业研究",
		TitleSuffix:    "行业研究报告",
		Checklist:      IndustryChecklist,
		OutputBaseName: "Industry_Research_Report",
	}
}

// MacroProfile 宏观研报，timeRange 形如 "2023-2025"
func MacroProfile(topic, timeRange string) Profile {
	return Profile{
		Kind:           model.KindMacro,
		Subject:        topic,
		TimeRange:      timeRange,
		Field:          "宏观经济与政策研究",
		TitleSuffix:    "宏观研究报告",
		Checklist:      MacroChecklist,
		OutputBaseName: "Macro_Research_Report",
	}
}

// Topic 提示词与标题中的主题，带时间范围
func (p Profile) Topic() string {
	if p.TimeRange == "" {
		return p.Subject
	}
	return fmt.Sprintf("%s（%s）", p.Subject, p.TimeRange)
}

// Title 报告标题
func (p Profile) Title() string {
	return p.Topic() + p.TitleSuffix
}
