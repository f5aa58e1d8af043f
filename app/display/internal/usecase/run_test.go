package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/go-kratos/kratos/v2/log"

	"github.com/iWorld-y/research_report/app/display/internal/domain"
	"github.com/iWorld-y/research_report/app/research/pkg/engine"
	"github.com/iWorld-y/research_report/app/research/pkg/model"
)

// mockRunner 模拟研报引擎
type mockRunner struct {
	mu    sync.Mutex
	opts  []engine.RunOptions
	err   error
	block chan struct{}
}

func (m *mockRunner) Run(ctx context.Context, opts engine.RunOptions) (*model.Report, error) {
	m.mu.Lock()
	m.opts = append(m.opts, opts)
	m.mu.Unlock()

	if opts.ProgressCallback != nil {
		opts.ProgressCallback("generating", 50)
	}
	if m.block != nil {
		select {
		case <-m.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if m.err != nil {
		return nil, m.err
	}
	return &model.Report{Title: opts.Subject + "研报", MarkdownPath: "Company_Research_Report.md"}, nil
}

func waitJob(t *testing.T, uc *RunUseCase, id string) *domain.Job {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		job, err := uc.Get(context.Background(), id)
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if job.Done() {
			return job
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("job %s not finished", id)
	return nil
}

func TestRunUseCase_Submit(t *testing.T) {
	runner := &mockRunner{}
	uc, cleanup := NewRunUseCase(runner, log.DefaultLogger)
	defer cleanup()

	job, err := uc.Submit(context.Background(), domain.RunRequest{Kind: "company", SubmittedBy: "analyst"})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if job.ID == "" || job.Subject != engine.DefaultCompany || job.SubmittedBy != "analyst" {
		t.Errorf("Submit() job = %+v", job)
	}

	done := waitJob(t, uc, job.ID)
	if done.Status != domain.JobSucceeded || done.Progress != 100 || done.Title != "商汤科技研报" {
		t.Errorf("job = %+v", done)
	}
	if done.Stage != "generating" || done.FinishedAt == nil {
		t.Errorf("job stage = %q, finished = %v", done.Stage, done.FinishedAt)
	}
	if got := runner.opts[0].Code; got != engine.DefaultCompanyCode {
		t.Errorf("code = %q, want %q", got, engine.DefaultCompanyCode)
	}
}

func TestRunUseCase_SubmitFailure(t *testing.T) {
	uc, cleanup := NewRunUseCase(&mockRunner{err: errors.New("invalid api key")}, log.DefaultLogger)
	defer cleanup()

	job, err := uc.Submit(context.Background(), domain.RunRequest{Kind: "macro", Subject: "数字经济"})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	done := waitJob(t, uc, job.ID)
	if done.Status != domain.JobFailed || done.Error != "invalid api key" {
		t.Errorf("job = %+v", done)
	}
}

func TestRunUseCase_Validation(t *testing.T) {
	uc, cleanup := NewRunUseCase(&mockRunner{}, log.DefaultLogger)
	defer cleanup()

	tests := []struct {
		name string
		req  domain.RunRequest
	}{
		{"unknown kind", domain.RunRequest{Kind: "fund"}},
		{"negative iterations", domain.RunRequest{Kind: "industry", MaxIterations: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := uc.Submit(context.Background(), tt.req); !errors.Is(err, domain.ErrInvalidRequest) {
				t.Errorf("Submit() error = %v, want ErrInvalidRequest", err)
			}
		})
	}

	if _, err := uc.Get(context.Background(), "missing"); !errors.Is(err, domain.ErrJobNotFound) {
		t.Errorf("Get() error = %v, want ErrJobNotFound", err)
	}
}

func TestRunUseCase_EngineDisabled(t *testing.T) {
	uc, cleanup := NewRunUseCase(nil, log.DefaultLogger)
	defer cleanup()

	if _, err := uc.Submit(context.Background(), domain.RunRequest{Kind: "industry"}); !errors.Is(err, domain.ErrEngineDisabled) {
		t.Errorf("Submit() error = %v, want ErrEngineDisabled", err)
	}
}

func TestRunUseCase_Serialized(t *testing.T) {
	runner := &mockRunner{block: make(chan struct{})}
	uc, cleanup := NewRunUseCase(runner, log.DefaultLogger)
	defer cleanup()

	first, _ := uc.Submit(context.Background(), domain.RunRequest{Kind: "industry"})
	second, _ := uc.Submit(context.Background(), domain.RunRequest{Kind: "macro"})

	time.Sleep(20 * time.Millisecond)
	j1, _ := uc.Get(context.Background(), first.ID)
	j2, _ := uc.Get(context.Background(), second.ID)
	if (j1.Status == domain.JobRunning) == (j2.Status == domain.JobRunning) {
		t.Errorf("statuses = %s, %s, want exactly one running", j1.Status, j2.Status)
	}

	close(runner.block)
	waitJob(t, uc, first.ID)
	waitJob(t, uc, second.ID)
}

func TestRunUseCase_CleanupCancelsRunning(t *testing.T) {
	runner := &mockRunner{block: make(chan struct{})}
	uc, cleanup := NewRunUseCase(runner, log.DefaultLogger)

	job, _ := uc.Submit(context.Background(), domain.RunRequest{Kind: "industry"})
	cleanup()

	done, _ := uc.Get(context.Background(), job.ID)
	if done.Status != domain.JobFailed || done.Error != context.Canceled.Error() {
		t.Errorf("job = %+v", done)
	}
}
