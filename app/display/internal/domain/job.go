package domain

import (
	"errors"
	"time"
)

var (
	ErrJobNotFound    = errors.New("job not found")
	ErrEngineDisabled = errors.New("research engine is not configured")
	ErrInvalidRequest = errors.New("invalid run request")
)

// 任务状态
const (
	JobQueued    = "queued"
	JobRunning   = "running"
	JobSucceeded = "succeeded"
	JobFailed    = "failed"
)

// RunRequest 提交研报生成任务
type RunRequest struct {
	Kind          string
	Subject       string
	Code          string
	TimeRange     string
	MaxIterations int
	ForceRefresh  bool
	UseTemplate   bool
	SubmittedBy   string
}

// Job 异步生成任务
type Job struct {
	ID           string
	Kind         string
	Subject      string
	Status       string
	Stage        string
	Progress     int
	Title        string
	MarkdownPath string
	DocxPath     string
	Error        string
	SubmittedBy  string
	CreatedAt    time.Time
	FinishedAt   *time.Time
}

// Done 任务是否已结束
func (j *Job) Done() bool {
	return j.Status == JobSucceeded || j.Status == JobFailed
}
