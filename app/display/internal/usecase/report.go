package usecase

import (
	"context"

	"github.com/go-kratos/kratos/v2/log"

	"github.com/iWorld-y/research_report/app/display/internal/domain"
	"github.com/iWorld-y/research_report/app/display/internal/repo"
)

const maxPageSize = 100

// ReportUseCase 报告查询业务逻辑
type ReportUseCase struct {
	repo repo.ReportRepo
	log  *log.Helper
}

// NewReportUseCase 创建报告业务逻辑实例
func NewReportUseCase(repo repo.ReportRepo, logger log.Logger) *ReportUseCase {
	return &ReportUseCase{repo: repo, log: log.NewHelper(logger)}
}

// List 分页列出报告摘要
func (uc *ReportUseCase) List(ctx context.Context, page, pageSize int) ([]*domain.ReportSummary, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 10
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return uc.repo.ListReports(ctx, page, pageSize)
}

// Get 根据ID获取报告详情
func (uc *ReportUseCase) Get(ctx context.Context, id int) (*domain.Report, error) {
	r, err := uc.repo.GetReport(ctx, id)
	if err != nil {
		uc.log.WithContext(ctx).Warnf("get report %d: %v", id, err)
		return nil, err
	}
	return r, nil
}
