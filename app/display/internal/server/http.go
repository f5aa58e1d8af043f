package server

import (
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/middleware"
	"github.com/go-kratos/kratos/v2/middleware/auth/jwt"
	"github.com/go-kratos/kratos/v2/middleware/logging"
	"github.com/go-kratos/kratos/v2/middleware/recovery"
	"github.com/go-kratos/kratos/v2/middleware/selector"
	"github.com/go-kratos/kratos/v2/transport/http"
	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/iWorld-y/research_report/app/common/auth"
	"github.com/iWorld-y/research_report/app/display/internal/conf"
	"github.com/iWorld-y/research_report/app/display/internal/service"
)

func NewHTTPServer(c *conf.Server, a *conf.Auth, s *service.ResearchService, logger log.Logger) *http.Server {
	var opts = []http.ServerOption{
		http.Middleware(
			recovery.Recovery(),
			logging.Server(logger),
			// 只有提交任务需要 token
			selector.Server(authMiddleware(a)).
				Path(service.OperationResearchSubmitRun).
				Build(),
		),
	}
	if c != nil && c.Http != nil {
		if c.Http.Addr != "" {
			opts = append(opts, http.Address(c.Http.Addr))
		}
		if c.Http.Timeout != "" {
			if d, err := time.ParseDuration(c.Http.Timeout); err == nil {
				opts = append(opts, http.Timeout(d))
			}
		}
	}

	srv := http.NewServer(opts...)
	service.RegisterResearchHTTPServer(srv, s)
	srv.Handle("/metrics", promhttp.Handler())
	return srv
}

func authMiddleware(a *conf.Auth) middleware.Middleware {
	var key string
	if a != nil {
		key = a.JwtKey
	}
	return jwt.Server(
		func(*jwtv5.Token) (interface{}, error) {
			if key == "" {
				return nil, auth.ErrEmptyKey
			}
			return []byte(key), nil
		},
		jwt.WithSigningMethod(jwtv5.SigningMethodHS256),
		jwt.WithClaims(func() jwtv5.Claims { return &auth.Claims{} }),
	)
}
