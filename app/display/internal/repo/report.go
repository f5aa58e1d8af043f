package repo

import (
	"context"

	"github.com/iWorld-y/research_report/app/display/internal/domain"
)

// ReportRepo 报告仓库接口
type ReportRepo interface {
	// ListReports 分页获取报告摘要列表
	ListReports(ctx context.Context, page, pageSize int) ([]*domain.ReportSummary, int, error)
	// GetReport 根据ID获取报告详情，不存在时返回 domain.ErrReportNotFound
	GetReport(ctx context.Context, id int) (*domain.Report, error)
}
