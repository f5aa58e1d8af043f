// Package llmtest 提供测试用的可编排 ChatModel
package llmtest

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/iWorld-y/research_report/app/research/pkg/llm"
)

// Handler 根据输入消息返回模型输出
type Handler func(messages []*schema.Message) (string, error)

// Model 实现 model.BaseChatModel，记录每次调用
type Model struct {
	mu      sync.Mutex
	handler Handler
	calls   [][]*schema.Message
}

var _ model.BaseChatModel = (*Model)(nil)

// NewModel 创建假模型
func NewModel(h Handler) *Model {
	return &Model{handler: h}
}

// Scripted 按顺序返回预设回答，用完后重复最后一条
func Scripted(responses ...string) *Model {
	var (
		mu sync.Mutex
		i  int
	)
	return NewModel(func([]*schema.Message) (string, error) {
		mu.Lock()
		defer mu.Unlock()
		if len(responses) == 0 {
			return "", nil
		}
		r := responses[min(i, len(responses)-1)]
		i++
		return r, nil
	})
}

// Generate 调用 handler
func (m *Model) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	m.mu.Lock()
	m.calls = append(m.calls, input)
	m.mu.Unlock()

	content, err := m.handler(input)
	if err != nil {
		return nil, err
	}
	return schema.AssistantMessage(content, nil), nil
}

// Stream 不支持
func (m *Model) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("llmtest: stream not supported")
}

// Calls 已记录的调用
func (m *Model) Calls() [][]*schema.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]*schema.Message, len(m.calls))
	copy(out, m.calls)
	return out
}

// LastPrompt 最后一次调用的用户消息
func (m *Model) LastPrompt() string {
	calls := m.Calls()
	if len(calls) == 0 {
		return ""
	}
	msgs := calls[len(calls)-1]
	return msgs[len(msgs)-1].Content
}

// NewClient 以假模型构建无限流、快速重试的客户端
func NewClient(m *Model) *llm.Client {
	return llm.NewClient(m, nil, llm.WithRetry(2, time.Millisecond))
}
