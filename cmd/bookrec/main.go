// Command bookrec 启动图书推荐 HTTP 服务。
//
// 启动顺序：
//  1. 加载配置（默认值 → YAML → 环境变量）
//  2. 初始化日志
//  3. 打开存储（Redis / Badger / 内存）
//  4. 组装书目服务（Google Books → 缓存 → 冷启动策略）
//  5. 按配置构建 Pipeline 节点，创建引擎并完成首次训练
//  6. 在 suture 监督树下运行 HTTP 服务与定时重训，直到收到 SIGINT/SIGTERM
//
// 用法：
//
//	bookrec -config configs/bookrec.yaml
//	bookrec -config configs/bookrec.yaml -publish   # 把 CSV 数据发布到 Redis 后退出
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rushteam/bookrec/config"
	_ "github.com/rushteam/bookrec/config/builders"
	"github.com/rushteam/bookrec/logging"
	"github.com/rushteam/bookrec/server"
	"github.com/rushteam/bookrec/service"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	publish := flag.Bool("publish", false, "publish CSV ratings/books to redis and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.Fatal().Err(err).Msg("load config")
	}
	logging.Init(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *publish {
		if err := publishSnapshot(ctx, cfg); err != nil {
			logging.Fatal().Err(err).Msg("publish snapshot")
		}
		logging.Info().Str("prefix", cfg.Data.KeyPrefix).Msg("snapshot published")
		return
	}

	deps, err := build(ctx, cfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("build application")
	}
	defer deps.Close()

	if err := deps.engine.Retrain(ctx); err != nil {
		logging.Fatal().Err(err).Msg("initial training failed")
	}

	srv := server.New(deps.engine, server.Options{
		DefaultLimit: cfg.Server.DefaultLimit,
		RateLimit:    cfg.Server.RateLimit,
		CORSOrigins:  cfg.Server.CORSOrigins,

		AdminRetrain:     cfg.Server.AdminRetrain,
		RetrainPerMinute: cfg.Server.RetrainPerMinute,
	})
	httpServer := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      srv,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	tree := service.NewTree(service.TreeConfig{ShutdownTimeout: cfg.Server.ShutdownTimeout})
	tree.Add(service.NewHTTPService(httpServer, cfg.Server.ShutdownTimeout))
	if cfg.Model.RetrainInterval > 0 {
		tree.Add(service.NewRetrainService(deps.engine, cfg.Model.RetrainInterval))
	}

	logging.Info().Str("addr", cfg.Server.Addr).Msg("bookrec listening")
	if err := tree.Serve(ctx); err != nil && ctx.Err() == nil {
		logging.Error().Err(err).Msg("supervisor exited")
		os.Exit(1)
	}
	logging.Info().Msg("bookrec stopped")
}
