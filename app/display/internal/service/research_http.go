package service

import (
	"context"

	"github.com/go-kratos/kratos/v2/transport/http"
)

const (
	OperationResearchListReports = "/research.v1.Research/ListReports"
	OperationResearchGetReport   = "/research.v1.Research/GetReport"
	OperationResearchSubmitRun   = "/research.v1.Research/SubmitRun"
	OperationResearchGetRun      = "/research.v1.Research/GetRun"
)

// RegisterResearchHTTPServer 注册 /api 路由
func RegisterResearchHTTPServer(s *http.Server, srv *ResearchService) {
	r := s.Route("/api")
	r.GET("/reports", listReportsHandler(srv))
	r.GET("/reports/{id}", getReportHandler(srv))
	r.POST("/runs", submitRunHandler(srv))
	r.GET("/runs/{id}", getRunHandler(srv))
}

func listReportsHandler(srv *ResearchService) func(ctx http.Context) error {
	return func(ctx http.Context) error {
		var in ListReportsRequest
		if err := ctx.BindQuery(&in); err != nil {
			return err
		}
		http.SetOperation(ctx, OperationResearchListReports)
		h := ctx.Middleware(func(ctx context.Context, req interface{}) (interface{}, error) {
			return srv.ListReports(ctx, req.(*ListReportsRequest))
		})
		out, err := h(ctx, &in)
		if err != nil {
			return err
		}
		return ctx.Result(200, out.(*ListReportsReply))
	}
}

func getReportHandler(srv *ResearchService) func(ctx http.Context) error {
	return func(ctx http.Context) error {
		var in GetReportRequest
		if err := ctx.BindVars(&in); err != nil {
			return err
		}
		http.SetOperation(ctx, OperationResearchGetReport)
		h := ctx.Middleware(func(ctx context.Context, req interface{}) (interface{}, error) {
			return srv.GetReport(ctx, req.(*GetReportRequest))
		})
		out, err := h(ctx, &in)
		if err != nil {
			return err
		}
		return ctx.Result(200, out.(*GetReportReply))
	}
}

func submitRunHandler(srv *ResearchService) func(ctx http.Context) error {
	return func(ctx http.Context) error {
		var in SubmitRunRequest
		if err := ctx.Bind(&in); err != nil {
			return err
		}
		http.SetOperation(ctx, OperationResearchSubmitRun)
		h := ctx.Middleware(func(ctx context.Context, req interface{}) (interface{}, error) {
			return srv.SubmitRun(ctx, req.(*SubmitRunRequest))
		})
		out, err := h(ctx, &in)
		if err != nil {
			return err
		}
		return ctx.Result(202, out.(*JobReply))
	}
}

func getRunHandler(srv *ResearchService) func(ctx http.Context) error {
	return func(ctx http.Context) error {
		var in GetRunRequest
		if err := ctx.BindVars(&in); err != nil {
			return err
		}
		http.SetOperation(ctx, OperationResearchGetRun)
		h := ctx.Middleware(func(ctx context.Context, req interface{}) (interface{}, error) {
			return srv.GetRun(ctx, req.(*GetRunRequest))
		})
		out, err := h(ctx, &in)
		if err != nil {
			return err
		}
		return ctx.Result(200, out.(*JobReply))
	}
}
