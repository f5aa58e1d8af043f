package llm

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"golang.org/x/time/rate"

	"github.com/iWorld-y/research_report/app/research/pkg/config"
	"github.com/iWorld-y/research_report/app/research/pkg/logger"
	"github.com/iWorld-y/research_report/app/research/pkg/metrics"
)

// ErrEmptyResponse 模型返回空内容
var ErrEmptyResponse = errors.New("llm returned empty response")

// Client 带限流、429 重试和调用审计的 LLM 客户端
type Client struct {
	cm          model.BaseChatModel
	limiter     *rate.Limiter
	temperature float32
	maxTokens   int
	maxRetries  int
	baseDelay   time.Duration
	callLog     string

	mu sync.Mutex // 保护 callLog 写入
}

// ClientOption 客户端选项
type ClientOption func(*Client)

// WithDefaults 默认温度与最大 token
func WithDefaults(temperature float32, maxTokens int) ClientOption {
	return func(c *Client) {
		c.temperature = temperature
		c.maxTokens = maxTokens
	}
}

// WithRetry 429 重试次数与初始退避
func WithRetry(maxRetries int, baseDelay time.Duration) ClientOption {
	return func(c *Client) {
		c.maxRetries = maxRetries
		c.baseDelay = baseDelay
	}
}

// WithCallLog 调用审计日志文件
func WithCallLog(path string) ClientOption {
	return func(c *Client) { c.callLog = path }
}

// NewClient 包装任意 eino ChatModel
func NewClient(cm model.BaseChatModel, limiter *rate.Limiter, opts ...ClientOption) *Client {
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Inf, 1)
	}
	c := &Client{
		cm:          cm,
		limiter:     limiter,
		temperature: 0.7,
		maxTokens:   8192,
		maxRetries:  3,
		baseDelay:   2 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewFromConfig 使用 OpenAI 兼容接口创建客户端
func NewFromConfig(ctx context.Context, cfg config.LLMConfig, conc config.ConcurrencyConfig) (*Client, error) {
	temperature := cfg.Temperature
	maxTokens := cfg.MaxTokens
	chatModel, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		BaseURL:     cfg.BaseURL,
		APIKey:      cfg.APIKey,
		Model:       cfg.Model,
		Timeout:     time.Duration(cfg.Timeout) * time.Second,
		Temperature: &temperature,
		MaxTokens:   &maxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("LLM 初始化失败: %w", err)
	}

	limiter := rate.NewLimiter(rate.Limit(float64(conc.RPM)/60.0), conc.QPS)
	return NewClient(chatModel, limiter,
		WithDefaults(cfg.Temperature, cfg.MaxTokens),
		WithRetry(cfg.MaxRetries, 2*time.Second),
		WithCallLog(cfg.CallLog),
	), nil
}

type callOptions struct {
	systemPrompt string
	temperature  *float32
	maxTokens    *int
}

// CallOption 单次调用选项
type CallOption func(*callOptions)

// WithSystemPrompt 设置系统提示词
func WithSystemPrompt(prompt string) CallOption {
	return func(o *callOptions) { o.systemPrompt = prompt }
}

// WithTemperature 覆盖本次调用温度
func WithTemperature(t float32) CallOption {
	return func(o *callOptions) { o.temperature = &t }
}

// WithMaxTokens 覆盖本次调用最大 token
func WithMaxTokens(n int) CallOption {
	return func(o *callOptions) { o.maxTokens = &n }
}

// Call 单轮调用：可选系统提示词 + 用户提示词
func (c *Client) Call(ctx context.Context, prompt string, opts ...CallOption) (string, error) {
	o := c.resolve(opts)
	var messages []*schema.Message
	if o.systemPrompt != "" {
		messages = append(messages, schema.SystemMessage(o.systemPrompt))
	}
	messages = append(messages, schema.UserMessage(prompt))
	return c.generate(ctx, messages, o)
}

// Ask 多消息对话调用
func (c *Client) Ask(ctx context.Context, messages []*schema.Message, opts ...CallOption) (string, error) {
	o := c.resolve(opts)
	if o.systemPrompt != "" {
		messages = append([]*schema.Message{schema.SystemMessage(o.systemPrompt)}, messages...)
	}
	return c.generate(ctx, messages, o)
}

func (c *Client) resolve(opts []CallOption) callOptions {
	o := callOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.temperature == nil {
		o.temperature = &c.temperature
	}
	if o.maxTokens == nil {
		o.maxTokens = &c.maxTokens
	}
	return o
}

func (c *Client) generate(ctx context.Context, messages []*schema.Message, o callOptions) (string, error) {
	modelOpts := []model.Option{
		model.WithTemperature(*o.temperature),
		model.WithMaxTokens(*o.maxTokens),
	}

	var lastErr error
	for i := 0; i <= c.maxRetries; i++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", err
		}

		start := time.Now()
		resp, err := c.cm.Generate(ctx, messages, modelOpts...)
		if err != nil {
			if isRateLimited(err) && i < c.maxRetries {
				lastErr = err
				metrics.LLMCalls.WithLabelValues("retry").Inc()
				delay := c.baseDelay * time.Duration(1<<i)
				logger.Log.Warnf("LLM 触发限流，%v 后重试 (%d/%d)", delay, i+1, c.maxRetries)
				select {
				case <-ctx.Done():
					return "", ctx.Err()
				case <-time.After(delay):
				}
				continue
			}
			metrics.LLMCalls.WithLabelValues("error").Inc()
			metrics.LLMDuration.WithLabelValues("error").Observe(time.Since(start).Seconds())
			return "", fmt.Errorf("llm generate: %w", err)
		}
		metrics.LLMDuration.WithLabelValues("ok").Observe(time.Since(start).Seconds())

		content := ""
		if resp != nil {
			content = strings.TrimSpace(resp.Content)
		}
		if content == "" {
			metrics.LLMCalls.WithLabelValues("error").Inc()
			return "", ErrEmptyResponse
		}
		metrics.LLMCalls.WithLabelValues("ok").Inc()
		c.audit(messages, content)
		return content, nil
	}
	return "", fmt.Errorf("llm generate failed after %d retries: %w", c.maxRetries, lastErr)
}

func isRateLimited(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") || strings.Contains(msg, "too many requests") || strings.Contains(msg, "rate limit")
}

// audit 追加写入 llm_calls 审计日志，失败只记日志
func (c *Client) audit(messages []*schema.Message, response string) {
	if c.callLog == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if dir := filepath.Dir(c.callLog); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			logger.Log.Warnf("创建 LLM 调用日志目录失败: %v", err)
			return
		}
	}
	f, err := os.OpenFile(c.callLog, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		logger.Log.Warnf("打开 LLM 调用日志失败: %v", err)
		return
	}
	defer f.Close()

	var sb strings.Builder
	fmt.Fprintf(&sb, "==== %s ====\n", time.Now().Format(time.DateTime))
	for _, m := range messages {
		fmt.Fprintf(&sb, "[%s]\n%s\n", strings.ToUpper(string(m.Role)), m.Content)
	}
	fmt.Fprintf(&sb, "[RESPONSE]\n%s\n\n", response)
	if _, err := f.WriteString(sb.String()); err != nil {
		logger.Log.Warnf("写入 LLM 调用日志失败: %v", err)
	}
}
