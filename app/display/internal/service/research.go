package service

import (
	"context"
	"errors"
	"time"

	kerrors "github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/middleware/auth/jwt"

	"github.com/iWorld-y/research_report/app/common/auth"
	"github.com/iWorld-y/research_report/app/display/internal/domain"
	"github.com/iWorld-y/research_report/app/display/internal/usecase"
)

type ListReportsRequest struct {
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
}

type ReportSummary struct {
	ID           int    `json:"id"`
	Kind         string `json:"kind"`
	Subject      string `json:"subject"`
	Title        string `json:"title"`
	Status       string `json:"status"`
	SectionCount int    `json:"section_count"`
	CreatedAt    string `json:"created_at"`
}

type ListReportsReply struct {
	Reports []*ReportSummary `json:"reports"`
	Total   int              `json:"total"`
}

type GetReportRequest struct {
	ID int `json:"id"`
}

type Section struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

type Reference struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Source  string `json:"source,omitempty"`
	PubDate string `json:"pub_date,omitempty"`
}

type GetReportReply struct {
	ReportSummary
	Error        string       `json:"error,omitempty"`
	Markdown     string       `json:"markdown"`
	MarkdownPath string       `json:"markdown_path,omitempty"`
	DocxPath     string       `json:"docx_path,omitempty"`
	FinishedAt   string       `json:"finished_at,omitempty"`
	Sections     []*Section   `json:"sections"`
	References   []*Reference `json:"references"`
}

type SubmitRunRequest struct {
	Kind          string `json:"kind"`
	Subject       string `json:"subject"`
	Code          string `json:"code"`
	TimeRange     string `json:"time_range"`
	MaxIterations int    `json:"max_iterations"`
	ForceRefresh  bool   `json:"force_refresh"`
	UseTemplate   bool   `json:"use_template"`
}

type GetRunRequest struct {
	ID string `json:"id"`
}

type JobReply struct {
	ID           string `json:"id"`
	Kind         string `json:"kind"`
	Subject      string `json:"subject"`
	Status       string `json:"status"`
	Stage        string `json:"stage,omitempty"`
	Progress     int    `json:"progress"`
	Title        string `json:"title,omitempty"`
	MarkdownPath string `json:"markdown_path,omitempty"`
	DocxPath     string `json:"docx_path,omitempty"`
	Error        string `json:"error,omitempty"`
	SubmittedBy  string `json:"submitted_by,omitempty"`
	CreatedAt    string `json:"created_at"`
	FinishedAt   string `json:"finished_at,omitempty"`
}

type ResearchService struct {
	ucReport *usecase.ReportUseCase
	ucRun    *usecase.RunUseCase
	log      *log.Helper
}

func NewResearchService(ucReport *usecase.ReportUseCase, ucRun *usecase.RunUseCase, logger log.Logger) *ResearchService {
	return &ResearchService{
		ucReport: ucReport,
		ucRun:    ucRun,
		log:      log.NewHelper(logger),
	}
}

func (s *ResearchService) ListReports(ctx context.Context, req *ListReportsRequest) (*ListReportsReply, error) {
	reports, total, err := s.ucReport.List(ctx, req.Page, req.PageSize)
	if err != nil {
		return nil, toStatus(err)
	}

	list := make([]*ReportSummary, 0, len(reports))
	for _, r := range reports {
		list = append(list, toSummary(r))
	}
	return &ListReportsReply{Reports: list, Total: total}, nil
}

func (s *ResearchService) GetReport(ctx context.Context, req *GetReportRequest) (*GetReportReply, error) {
	r, err := s.ucReport.Get(ctx, req.ID)
	if err != nil {
		return nil, toStatus(err)
	}

	reply := &GetReportReply{
		ReportSummary: *toSummary(&r.ReportSummary),
		Error:         r.Error,
		Markdown:      r.Markdown,
		MarkdownPath:  r.MarkdownPath,
		DocxPath:      r.DocxPath,
		FinishedAt:    r.FinishedAt,
		Sections:      make([]*Section, 0, len(r.Sections)),
		References:    make([]*Reference, 0, len(r.References)),
	}
	for _, sec := range r.Sections {
		reply.Sections = append(reply.Sections, &Section{Name: sec.Name, Content: sec.Content})
	}
	for _, ref := range r.References {
		reply.References = append(reply.References, &Reference{
			Title:   ref.Title,
			Link:    ref.Link,
			Source:  ref.Source,
			PubDate: ref.PubDate,
		})
	}
	return reply, nil
}

func (s *ResearchService) SubmitRun(ctx context.Context, req *SubmitRunRequest) (*JobReply, error) {
	var user string
	if claims, ok := jwt.FromContext(ctx); ok {
		if c, ok := claims.(*auth.Claims); ok {
			user = c.Username
		}
	}

	job, err := s.ucRun.Submit(ctx, domain.RunRequest{
		Kind:          req.Kind,
		Subject:       req.Subject,
		Code:          req.Code,
		TimeRange:     req.TimeRange,
		MaxIterations: req.MaxIterations,
		ForceRefresh:  req.ForceRefresh,
		UseTemplate:   req.UseTemplate,
		SubmittedBy:   user,
	})
	if err != nil {
		return nil, toStatus(err)
	}
	return toJobReply(job), nil
}

func (s *ResearchService) GetRun(ctx context.Context, req *GetRunRequest) (*JobReply, error) {
	job, err := s.ucRun.Get(ctx, req.ID)
	if err != nil {
		return nil, toStatus(err)
	}
	return toJobReply(job), nil
}

// toStatus 业务错误转换为 HTTP 状态
func toStatus(err error) error {
	switch {
	case errors.Is(err, domain.ErrReportNotFound):
		return kerrors.NotFound("REPORT_NOT_FOUND", err.Error())
	case errors.Is(err, domain.ErrJobNotFound):
		return kerrors.NotFound("JOB_NOT_FOUND", err.Error())
	case errors.Is(err, domain.ErrInvalidRequest):
		return kerrors.BadRequest("INVALID_REQUEST", err.Error())
	case errors.Is(err, domain.ErrEngineDisabled):
		return kerrors.ServiceUnavailable("ENGINE_DISABLED", err.Error())
	}
	return kerrors.InternalServer("INTERNAL", err.Error()).WithCause(err)
}

func toSummary(r *domain.ReportSummary) *ReportSummary {
	return &ReportSummary{
		ID:           r.ID,
		Kind:         r.Kind,
		Subject:      r.Subject,
		Title:        r.Title,
		Status:       r.Status,
		SectionCount: r.SectionCount,
		CreatedAt:    r.CreatedAt,
	}
}

func toJobReply(j *domain.Job) *JobReply {
	reply := &JobReply{
		ID:           j.ID,
		Kind:         j.Kind,
		Subject:      j.Subject,
		Status:       j.Status,
		Stage:        j.Stage,
		Progress:     j.Progress,
		Title:        j.Title,
		MarkdownPath: j.MarkdownPath,
		DocxPath:     j.DocxPath,
		Error:        j.Error,
		SubmittedBy:  j.SubmittedBy,
		CreatedAt:    j.CreatedAt.Format(time.DateTime),
	}
	if j.FinishedAt != nil {
		reply.FinishedAt = j.FinishedAt.Format(time.DateTime)
	}
	return reply
}
