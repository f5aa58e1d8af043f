package llm_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"

	"github.com/iWorld-y/research_report/app/research/pkg/llm"
	"github.com/iWorld-y/research_report/app/research/pkg/llm/llmtest"
)

func TestClient_CallWithSystemPrompt(t *testing.T) {
	m := llmtest.Scripted("  2  ")
	c := llmtest.NewClient(m)

	got, err := c.Call(context.Background(), "1+1=?", llm.WithSystemPrompt("你是计算器"))
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if got != "2" {
		t.Errorf("Call() = %q, want 2", got)
	}

	calls := m.Calls()
	if len(calls) != 1 || len(calls[0]) != 2 {
		t.Fatalf("unexpected calls: %v", calls)
	}
	if calls[0][0].Role != schema.System || calls[0][1].Role != schema.User {
		t.Errorf("unexpected roles: %s %s", calls[0][0].Role, calls[0][1].Role)
	}
}

func TestClient_RetryOn429(t *testing.T) {
	attempts := 0
	m := llmtest.NewModel(func([]*schema.Message) (string, error) {
		attempts++
		if attempts < 3 {
			return "", errors.New("error, status code: 429, Too Many Requests")
		}
		return "ok", nil
	})
	c := llm.NewClient(m, nil, llm.WithRetry(3, time.Millisecond))

	got, err := c.Call(context.Background(), "hi")
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if got != "ok" || attempts != 3 {
		t.Errorf("got %q after %d attempts", got, attempts)
	}
}

func TestClient_NoRetryOnOtherErrors(t *testing.T) {
	attempts := 0
	m := llmtest.NewModel(func([]*schema.Message) (string, error) {
		attempts++
		return "", errors.New("invalid api key")
	})
	c := llm.NewClient(m, nil, llm.WithRetry(3, time.Millisecond))

	if _, err := c.Call(context.Background(), "hi"); err == nil {
		t.Fatal("Call() expected error")
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
}

func TestClient_RetryExhausted(t *testing.T) {
	m := llmtest.NewModel(func([]*schema.Message) (string, error) {
		return "", errors.New("429")
	})
	c := llm.NewClient(m, nil, llm.WithRetry(2, time.Millisecond))

	if _, err := c.Call(context.Background(), "hi"); err == nil {
		t.Fatal("Call() expected error after retries")
	}
	if n := len(m.Calls()); n != 3 {
		t.Errorf("calls = %d, want 3", n)
	}
}

func TestClient_EmptyResponse(t *testing.T) {
	c := llmtest.NewClient(llmtest.Scripted("   "))
	if _, err := c.Call(context.Background(), "hi"); !errors.Is(err, llm.ErrEmptyResponse) {
		t.Errorf("Call() error = %v, want ErrEmptyResponse", err)
	}
}

func TestClient_CallLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "llm_calls.log")
	c := llm.NewClient(llmtest.Scripted("回答"), nil, llm.WithCallLog(path))

	if _, err := c.Call(context.Background(), "问题", llm.WithSystemPrompt("系统")); err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read call log: %v", err)
	}
	for _, want := range []string{"[SYSTEM]\n系统", "[USER]\n问题", "[RESPONSE]\n回答"} {
		if !strings.Contains(string(data), want) {
			t.Errorf("call log missing %q:\n%s", want, data)
		}
	}
}

func TestClient_AskPrependsSystem(t *testing.T) {
	m := llmtest.Scripted("fine")
	c := llmtest.NewClient(m)
	_, err := c.Ask(context.Background(), []*schema.Message{
		schema.UserMessage("a"),
		schema.AssistantMessage("b", nil),
		schema.UserMessage("c"),
	}, llm.WithSystemPrompt("sys"))
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	calls := m.Calls()
	if len(calls[0]) != 4 || calls[0][0].Content != "sys" {
		t.Errorf("unexpected messages: %v", calls[0])
	}
}
