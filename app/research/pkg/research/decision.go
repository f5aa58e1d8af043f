package research

import (
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/iWorld-y/research_report/app/research/pkg/llm"
)

// 决策动作
const (
	ActionSearch   = "search"
	ActionGenerate = "generate"
	ActionComplete = "complete"
)

// SectionPlan 待生成章节
type SectionPlan struct {
	Name  string `yaml:"name"`
	Focus string `yaml:"focus"`
}

// Decision 决策节点的输出
type Decision struct {
	Action      string
	Reason      string
	SearchTerms []string
	Section     SectionPlan
}

type rawDecision struct {
	Action      string    `yaml:"action"`
	Reason      string    `yaml:"reason"`
	SearchTerms []string  `yaml:"search_terms"`
	Section     yaml.Node `yaml:"section"`
}

func complete(reason string) Decision {
	return Decision{Action: ActionComplete, Reason: reason}
}

// ParseDecision 解析模型回答并修正不合法的决策
func ParseDecision(resp string, generated, checklist []string) Decision {
	var raw rawDecision
	if err := llm.ParseYAML(resp, &raw); err != nil {
		return complete("解析失败，默认完成")
	}

	d := Decision{
		Action:      strings.TrimSpace(raw.Action),
		Reason:      raw.Reason,
		SearchTerms: cleanTerms(raw.SearchTerms),
	}

	switch d.Action {
	case ActionSearch:
		if len(d.SearchTerms) == 0 {
			return complete("没有搜索关键词，自动完成。")
		}
		return d
	case ActionGenerate:
		return resolveSection(d, &raw.Section, generated, checklist)
	case ActionComplete:
		return d
	}
	return complete("未知决策 " + d.Action + "，自动完成。")
}

func resolveSection(d Decision, node *yaml.Node, generated, checklist []string) Decision {
	switch node.Kind {
	case yaml.MappingNode:
		var s SectionPlan
		if err := node.Decode(&s); err != nil || strings.TrimSpace(s.Name) == "" {
			return complete("章节信息格式错误，自动完成。")
		}
		s.Name = strings.TrimSpace(s.Name)
		if !slices.Contains(generated, s.Name) {
			d.Section = s
			return d
		}
		// 重复章节改为清单中第一个未生成的章节
		for _, name := range checklist {
			if !slices.Contains(generated, name) {
				d.Section = SectionPlan{Name: name, Focus: "重点分析"}
				return d
			}
		}
		return complete("所有重要章节都已生成，自动完成。")

	case yaml.SequenceNode:
		var list []SectionPlan
		if err := node.Decode(&list); err != nil {
			return complete("章节信息格式错误，自动完成。")
		}
		for _, s := range list {
			s.Name = strings.TrimSpace(s.Name)
			if s.Name != "" && !slices.Contains(generated, s.Name) {
				d.Section = s
				return d
			}
		}
		return complete("所有章节都已生成，自动完成。")
	}
	return complete("章节信息格式错误，自动完成。")
}

func cleanTerms(terms []string) []string {
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}
