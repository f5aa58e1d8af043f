package research

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/iWorld-y/research_report/app/research/pkg/llm"
	"github.com/iWorld-y/research_report/app/research/pkg/logger"
	"github.com/iWorld-y/research_report/app/research/pkg/model"
	"github.com/iWorld-y/research_report/app/research/pkg/search"
)

// Options 流程参数
type Options struct {
	MaxIterations   int
	MaxResults      int
	SearchPause     time.Duration
	ForceRefresh    bool
	ContextMaxRunes int
	Progress        func(status string, progress int)
}

// ContextItem 一次搜索的结果
type ContextItem struct {
	Term    string          `yaml:"term"`
	Results []search.Result `yaml:"results"`
}

// State 流程共享状态
type State struct {
	Context    []ContextItem
	Sections   []model.Section
	References []model.Reference
	seen       map[string]bool
}

// SectionNames 已生成章节名
func (s *State) SectionNames() []string {
	names := make([]string, len(s.Sections))
	for i, sec := range s.Sections {
		names[i] = sec.Name
	}
	return names
}

// Flow 决策 -> 搜索 / 生成 -> 决策 ... -> 完成
type Flow struct {
	llm      *llm.Client
	searcher search.Searcher
	opts     Options
}

// NewFlow 创建研究流程
func NewFlow(c *llm.Client, s search.Searcher, opts Options) *Flow {
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = 10
	}
	if opts.MaxResults <= 0 {
		opts.MaxResults = 10
	}
	return &Flow{llm: c, searcher: s, opts: opts}
}

// Run 执行完整流程
func (f *Flow) Run(ctx context.Context, p Profile) (*model.Report, error) {
	logger.Log.Infof("🚀 开始%s工作流: %s", p.Field, p.Topic())
	st := &State{seen: make(map[string]bool)}

	for i := 0; i < f.opts.MaxIterations; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		f.progress("deciding", i*90/f.opts.MaxIterations)

		d := f.Decide(ctx, p, st)
		logger.Log.Infof("决策结果: %s, 原因: %s", d.Action, d.Reason)

		switch d.Action {
		case ActionSearch:
			logger.Log.Info("=== 开始信息搜索阶段 ===")
			if err := f.Search(ctx, st, d.SearchTerms); err != nil {
				return nil, err
			}
		case ActionGenerate:
			logger.Log.Infof("=== 开始章节生成阶段: %s ===", d.Section.Name)
			f.Generate(ctx, p, st, d.Section)
		default:
			return f.Complete(p, st), nil
		}
	}

	logger.Log.Warn("已达最大循环次数，自动完成。")
	return f.Complete(p, st), nil
}

// Decide 让模型判断下一步
func (f *Flow) Decide(ctx context.Context, p Profile, st *State) Decision {
	generated := st.SectionNames()
	logger.Log.Infof("正在分析 %s 的研究进度，已生成的章节: %v", p.Topic(), generated)

	resp, err := f.llm.Call(ctx, f.decisionPrompt(p, st, generated))
	if err != nil {
		logger.Log.Errorf("决策调用失败: %v", err)
		return complete("模型调用失败，默认完成")
	}
	d := ParseDecision(resp, generated, p.Checklist)
	if d.Reason == "解析失败，默认完成" {
		logger.Log.Errorf("解析YAML失败，原始响应: %s", resp)
	}
	return d
}

func (f *Flow) decisionPrompt(p Profile, st *State, generated []string) string {
	var checklist strings.Builder
	for _, s := range p.Checklist {
		checklist.WriteString("- " + s + "\n")
	}
	return fmt.Sprintf(`
针对 %s %s，%s分析已有信息：%s

已生成的章节：%v

请判断下一步应该：
1) 搜索更多信息 - 如果信息不足
2) 开始生成某个章节内容 - 如果信息充足且还有重要章节未生成
3) 完成研报生成 - 如果所有重要章节都已生成

重要章节清单：
%s
请以 YAML 格式输出：
`+"```yaml"+`
action: search/generate/complete  # search表示继续搜索，generate表示生成章节，complete表示完成
reason: 做出此判断的原因
search_terms: # 如果是search，列出要搜索的关键词列表
  - 关键词1
  - 关键词2
section: # 如果是generate，指定要生成的单个章节
  name: 章节名称
  focus: 重点关注内容
`+"```"+`

注意：
- 如果某个章节已经生成过，不要重复生成
- 如果信息不足，优先选择search
- 如果所有重要章节都已生成，选择complete
- section字段必须是一个单个章节的字典，包含name和focus字段
- 不要返回章节列表，只返回一个要生成的章节
`, p.Topic(), p.Field, timeHint(p), f.contextYAML(st), generated, checklist.String())
}

// Search 逐个关键词搜索并追加到上下文，关键词之间按配置暂停
func (f *Flow) Search(ctx context.Context, st *State, terms []string) error {
	ctx = search.WithForceRefresh(ctx, f.opts.ForceRefresh)
	for i, term := range terms {
		if i > 0 && f.opts.SearchPause > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(f.opts.SearchPause):
			}
		}
		logger.Log.Infof("搜索关键词 (%d/%d): %s", i+1, len(terms), term)
		resp, err := f.searcher.Search(ctx, &search.Request{Query: term, MaxResults: f.opts.MaxResults})
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Log.Errorf("搜索失败 [%s]: %v", term, err)
			continue
		}
		logger.Log.Infof("找到 %d 条相关信息", len(resp.Results))
		st.Context = append(st.Context, ContextItem{Term: term, Results: resp.Results})
		for _, r := range resp.Results {
			key := search.NormalizeURL(r.URL)
			if key == "" || st.seen[key] {
				continue
			}
			st.seen[key] = true
			st.References = append(st.References, model.Reference{
				Title: r.Title, Link: r.URL, Source: r.Source, PubDate: r.PublishedDate,
			})
		}
	}
	logger.Log.Info("信息搜索完成，返回决策节点...")
	return nil
}

// Generate 生成单个章节，失败或重复时跳过
func (f *Flow) Generate(ctx context.Context, p Profile, st *State, sec SectionPlan) {
	focus := sec.Focus
	if focus == "" {
		focus = "综合分析"
	}
	prompt := fmt.Sprintf(`
%s：%s
章节：%s
重点：%s
%s参考资料：%s

请生成一个专业、详实的研报章节。要求：
1. 数据支撑充分
2. 逻辑严谨
3. 分析深入
4. 结构清晰
5. 语言专业
`, fieldLabel(p), p.Subject, sec.Name, focus, timeHint(p), f.contextYAML(st))

	content, err := f.llm.Call(ctx, prompt)
	if err != nil {
		logger.Log.Errorf("章节 %s 生成失败: %v", sec.Name, err)
		return
	}
	for _, s := range st.Sections {
		if s.Name == sec.Name {
			logger.Log.Warnf("章节 %s 已生成，跳过", sec.Name)
			return
		}
	}
	st.Sections = append(st.Sections, model.Section{Name: sec.Name, Content: content})
	logger.Log.Infof("章节 %s 生成完成，内容长度: %d 字符，当前已生成 %d 个章节", sec.Name, len([]rune(content)), len(st.Sections))
}

// Complete 整合最终研报
func (f *Flow) Complete(p Profile, st *State) *model.Report {
	logger.Log.Info("=== 开始整合最终研报 ===")
	f.progress("completing", 95)

	var sb strings.Builder
	sb.WriteString("# " + p.Title() + "\n\n")
	for _, s := range st.Sections {
		sb.WriteString("\n## " + s.Name + "\n\n" + s.Content + "\n")
	}
	return &model.Report{
		Kind:       p.Kind,
		Title:      p.Title(),
		Subject:    p.Subject,
		Markdown:   sb.String(),
		Sections:   st.Sections,
		References: st.References,
	}
}

// contextYAML 上下文序列化，超长时保留最新部分
func (f *Flow) contextYAML(st *State) string {
	if len(st.Context) == 0 {
		return "[]"
	}
	out, err := yaml.Marshal(st.Context)
	if err != nil {
		logger.Log.Errorf("序列化上下文失败: %v", err)
		return "[]"
	}
	runes := []rune(string(out))
	if f.opts.ContextMaxRunes > 0 && len(runes) > f.opts.ContextMaxRunes {
		return string(runes[len(runes)-f.opts.ContextMaxRunes:])
	}
	return string(out)
}

func (f *Flow) progress(status string, pct int) {
	if f.opts.Progress != nil {
		f.opts.Progress(status, pct)
	}
}

func fieldLabel(p Profile) string {
	if p.Kind == model.KindMacro {
		return "主题"
	}
	return "行业"
}

func timeHint(p Profile) string {
	if p.TimeRange == "" {
		return ""
	}
	return "时间范围：" + p.TimeRange + "\n"
}
