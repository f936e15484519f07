// Package server 把推荐引擎暴露为 HTTP 接口。
//
//	GET  /health
//	GET  /recommend/global?limit=
//	GET  /recommend/user/{userID}?limit=
//	POST /recommend/by-items?limit=
//	POST /admin/retrain   （Options.AdminRetrain 开启时注册，全局限流）
//	GET  /metrics
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rushteam/bookrec/core"
	"github.com/rushteam/bookrec/model"
)

// MaxLimit 是单次请求允许的最大返回数量。
const MaxLimit = 100

// Recommender 是 HTTP 层依赖的引擎能力，engine.Engine 实现此接口。
type Recommender interface {
	RecommendForUser(ctx context.Context, userID string, count int) ([]core.Recommendation, error)
	GlobalRecommendations(ctx context.Context, count int) ([]core.Recommendation, error)
	RecommendByItems(ctx context.Context, ids []core.Identifier, count int) ([]core.Recommendation, error)
	Retrain(ctx context.Context) error
	Stats() (model.Stats, bool)
}

// Options 是 HTTP 层参数。
type Options struct {
	// DefaultLimit 请求未带 limit 时的返回数量，默认 10
	DefaultLimit int

	// RateLimit 每个客户端 IP 每分钟允许的推荐请求数，<= 0 不限流
	RateLimit int

	// CORSOrigins 允许跨域的来源，为空时不启用 CORS
	CORSOrigins []string

	// AdminRetrain 为 true 时注册 POST /admin/retrain
	AdminRetrain bool
	// RetrainPerMinute 是 /admin/retrain 全局每分钟允许的调用次数，<= 0 时取 1
	RetrainPerMinute int
}

// Server 持有路由与处理函数。
type Server struct {
	rec          Recommender
	defaultLimit int
	validate     *validator.Validate
	router       chi.Router
}

// New 创建 Server 并注册路由。
func New(rec Recommender, opts Options) *Server {
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = (&core.DefaultEngineConfig{}).DefaultLimit()
	}
	s := &Server{
		rec:          rec,
		defaultLimit: opts.DefaultLimit,
		validate:     validator.New(validator.WithRequiredStructEnabled()),
	}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(requestID)
	r.Use(middleware.Recoverer)
	r.Use(observe)
	if len(opts.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: opts.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
			MaxAge:         300,
		}))
	}

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/recommend", func(r chi.Router) {
		if opts.RateLimit > 0 {
			r.Use(httprate.LimitByIP(opts.RateLimit, time.Minute))
		}
		r.Get("/global", s.handleGlobal)
		r.Get("/user/{userID}", s.handleUser)
		r.Post("/by-items", s.handleByItems)
	})
	if opts.AdminRetrain {
		perMinute := opts.RetrainPerMinute
		if perMinute <= 0 {
			perMinute = 1
		}
		// 全局限流：每次调用都是一次全量 O(I²·U) 重训
		r.With(httprate.LimitAll(perMinute, time.Minute)).Post("/admin/retrain", s.handleRetrain)
	}

	s.router = r
	return s
}

// ServeHTTP 实现 http.Handler。
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
