package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"

	"github.com/iWorld-y/research_report/app/display/internal/domain"
	"github.com/iWorld-y/research_report/app/research/pkg/engine"
	"github.com/iWorld-y/research_report/app/research/pkg/model"
)

// Runner 研报引擎，*engine.Engine 实现了该接口
type Runner interface {
	Run(ctx context.Context, opts engine.RunOptions) (*model.Report, error)
}

// RunUseCase 异步研报任务，同一时间只执行一个任务
type RunUseCase struct {
	runner Runner
	log    *log.Helper

	mu   sync.RWMutex
	jobs map[string]*domain.Job

	sem    chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	now    func() time.Time
}

// NewRunUseCase runner 为空时拒绝提交任务，cleanup 取消进行中的任务并等待退出
func NewRunUseCase(runner Runner, logger log.Logger) (*RunUseCase, func()) {
	ctx, cancel := context.WithCancel(context.Background())
	uc := &RunUseCase{
		runner: runner,
		log:    log.NewHelper(logger),
		jobs:   make(map[string]*domain.Job),
		sem:    make(chan struct{}, 1),
		ctx:    ctx,
		cancel: cancel,
		now:    time.Now,
	}
	cleanup := func() {
		uc.cancel()
		uc.wg.Wait()
	}
	return uc, cleanup
}

// Submit 校验请求并排队执行，立即返回任务快照
func (uc *RunUseCase) Submit(ctx context.Context, req domain.RunRequest) (*domain.Job, error) {
	if uc.runner == nil {
		return nil, domain.ErrEngineDisabled
	}
	opts, err := runOptions(req)
	if err != nil {
		return nil, err
	}

	job := &domain.Job{
		ID:          uuid.NewString(),
		Kind:        string(opts.Kind),
		Subject:     opts.Subject,
		Status:      domain.JobQueued,
		SubmittedBy: req.SubmittedBy,
		CreatedAt:   uc.now(),
	}
	uc.mu.Lock()
	uc.jobs[job.ID] = job
	snapshot := *job
	uc.mu.Unlock()

	uc.log.WithContext(ctx).Infof("job %s queued: %s %s", job.ID, job.Kind, job.Subject)
	uc.wg.Add(1)
	go uc.execute(job.ID, opts)
	return &snapshot, nil
}

// Get 任务快照
func (uc *RunUseCase) Get(ctx context.Context, id string) (*domain.Job, error) {
	uc.mu.RLock()
	defer uc.mu.RUnlock()
	job, ok := uc.jobs[id]
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	snapshot := *job
	return &snapshot, nil
}

func (uc *RunUseCase) execute(id string, opts engine.RunOptions) {
	defer uc.wg.Done()

	select {
	case uc.sem <- struct{}{}:
	case <-uc.ctx.Done():
		uc.finish(id, nil, uc.ctx.Err())
		return
	}
	defer func() { <-uc.sem }()

	uc.update(id, func(j *domain.Job) { j.Status = domain.JobRunning })
	opts.ProgressCallback = func(status string, progress int) {
		uc.update(id, func(j *domain.Job) {
			j.Stage = status
			j.Progress = progress
		})
	}
	report, err := uc.runner.Run(uc.ctx, opts)
	uc.finish(id, report, err)
}

func (uc *RunUseCase) finish(id string, report *model.Report, err error) {
	now := uc.now()
	uc.update(id, func(j *domain.Job) {
		j.FinishedAt = &now
		if err != nil {
			j.Status = domain.JobFailed
			j.Error = err.Error()
			return
		}
		j.Status = domain.JobSucceeded
		j.Progress = 100
		j.Title = report.Title
		j.MarkdownPath = report.MarkdownPath
		j.DocxPath = report.DocxPath
	})
	if err != nil {
		uc.log.Errorf("job %s failed: %v", id, err)
		return
	}
	uc.log.Infof("job %s succeeded: %s", id, report.MarkdownPath)
}

func (uc *RunUseCase) update(id string, fn func(j *domain.Job)) {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	if j, ok := uc.jobs[id]; ok {
		fn(j)
	}
}

// runOptions 未指定主题时使用默认主题
func runOptions(req domain.RunRequest) (engine.RunOptions, error) {
	opts := engine.RunOptions{
		Kind:          model.Kind(req.Kind),
		Subject:       req.Subject,
		Code:          req.Code,
		TimeRange:     req.TimeRange,
		MaxIterations: req.MaxIterations,
		ForceRefresh:  req.ForceRefresh,
		UseTemplate:   req.UseTemplate,
	}
	if !opts.Kind.Valid() {
		return opts, fmt.Errorf("%w: unknown kind %q", domain.ErrInvalidRequest, req.Kind)
	}
	if opts.MaxIterations < 0 {
		return opts, fmt.Errorf("%w: max_iterations must not be negative", domain.ErrInvalidRequest)
	}
	if opts.Subject != "" {
		return opts, nil
	}
	switch opts.Kind {
	case model.KindCompany:
		opts.Subject, opts.Code = engine.DefaultCompany, engine.DefaultCompanyCode
	case model.KindIndustry:
		opts.Subject = engine.DefaultIndustry
	case model.KindMacro:
		opts.Subject = engine.DefaultMacroTopic
		if opts.TimeRange == "" {
			opts.TimeRange = engine.DefaultMacroTime
		}
	}
	return opts, nil
}
