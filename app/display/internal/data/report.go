package data

import (
	"context"
	"errors"
	"time"

	"github.com/go-kratos/kratos/v2/log"

	"github.com/iWorld-y/research_report/app/display/internal/domain"
	"github.com/iWorld-y/research_report/app/display/internal/repo"
	"github.com/iWorld-y/research_report/app/research/pkg/storage"
)

const timeLayout = "2006-01-02 15:04:05"

type runStore interface {
	ListRuns(ctx context.Context, page, pageSize int) ([]*storage.Run, int, error)
	GetRun(ctx context.Context, id int) (*storage.RunDetail, error)
}

type reportRepo struct {
	store runStore
	log   *log.Helper
}

// NewReportRepo 基于运行记录的报告仓库
func NewReportRepo(data *Data, logger log.Logger) repo.ReportRepo {
	return &reportRepo{store: data.store, log: log.NewHelper(logger)}
}

func (r *reportRepo) ListReports(ctx context.Context, page, pageSize int) ([]*domain.ReportSummary, int, error) {
	runs, total, err := r.store.ListRuns(ctx, page, pageSize)
	if err != nil {
		return nil, 0, err
	}
	list := make([]*domain.ReportSummary, 0, len(runs))
	for _, run := range runs {
		s := toSummary(run)
		list = append(list, &s)
	}
	return list, total, nil
}

func (r *reportRepo) GetReport(ctx context.Context, id int) (*domain.Report, error) {
	d, err := r.store.GetRun(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, domain.ErrReportNotFound
	}
	if err != nil {
		return nil, err
	}

	report := &domain.Report{
		ReportSummary: toSummary(&d.Run),
		Error:         d.Error,
		Markdown:      d.Markdown,
		MarkdownPath:  d.MarkdownPath,
		DocxPath:      d.DocxPath,
		FinishedAt:    formatTime(d.FinishedAt),
	}
	for _, sec := range d.Sections {
		report.Sections = append(report.Sections, domain.Section{Name: sec.Name, Content: sec.Content})
	}
	for _, ref := range d.References {
		report.References = append(report.References, domain.Reference{
			Title:   ref.Title,
			Link:    ref.Link,
			Source:  ref.Source,
			PubDate: ref.PubDate,
		})
	}
	return report, nil
}

func toSummary(run *storage.Run) domain.ReportSummary {
	return domain.ReportSummary{
		ID:           run.ID,
		Kind:         string(run.Kind),
		Subject:      run.Subject,
		Title:        run.Title,
		Status:       run.Status,
		SectionCount: run.SectionCount,
		CreatedAt:    run.CreatedAt.Format(timeLayout),
	}
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(timeLayout)
}
