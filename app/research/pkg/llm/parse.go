package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	yamlFence = regexp.MustCompile("(?s)```(?:yaml|yml)\\s*\\n(.*?)```")
	anyFence  = regexp.MustCompile("(?s)```[a-zA-Z]*\\s*\\n(.*?)```")
)

// ExtractYAML 依次尝试 ```yaml 代码块、任意代码块、原文
func ExtractYAML(text string) string {
	if m := yamlFence.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	if m := anyFence.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(text)
}

// ParseYAML 解析模型返回的 YAML
func ParseYAML(text string, out any) error {
	body := ExtractYAML(text)
	if body == "" {
		return fmt.Errorf("yaml unmarshal: empty content")
	}
	if err := yaml.Unmarshal([]byte(body), out); err != nil {
		return fmt.Errorf("yaml unmarshal: %w", err)
	}
	return nil
}

// CleanJSON 去掉 ```json 包裹
func CleanJSON(text string) string {
	clean := strings.TrimSpace(text)
	clean = strings.TrimPrefix(clean, "```json")
	clean = strings.TrimPrefix(clean, "```")
	clean = strings.TrimSuffix(clean, "```")
	return strings.TrimSpace(clean)
}

// ParseJSON 解析模型返回的 JSON
func ParseJSON(text string, out any) error {
	if err := json.Unmarshal([]byte(CleanJSON(text)), out); err != nil {
		return fmt.Errorf("json unmarshal: %w", err)
	}
	return nil
}

// ParseStructured 先按 JSON 再按 YAML 解析
func ParseStructured(text string, out any) error {
	if err := ParseJSON(text, out); err == nil {
		return nil
	}
	return ParseYAML(text, out)
}
