// Package service 把长期运行的组件（HTTP 服务、定时重训）交给 suture 监督：
// 组件异常退出会按退避策略重启，根 ctx 取消时统一优雅退出。
package service

import (
	"context"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/rushteam/bookrec/logging"
)

// TreeConfig 是监督树的重启策略。
type TreeConfig struct {
	FailureThreshold float64
	FailureDecay     float64
	FailureBackoff   time.Duration
	ShutdownTimeout  time.Duration
}

// DefaultTreeConfig 返回默认策略。
func DefaultTreeConfig() TreeConfig {
	return TreeConfig{
		FailureThreshold: 5,
		FailureDecay:     30,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	}
}

// Tree 是 bookrec 的根监督者。
type Tree struct {
	root *suture.Supervisor
}

// NewTree 创建监督树，事件写入全局日志。
func NewTree(cfg TreeConfig) *Tree {
	def := DefaultTreeConfig()
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.FailureDecay <= 0 {
		cfg.FailureDecay = def.FailureDecay
	}
	if cfg.FailureBackoff <= 0 {
		cfg.FailureBackoff = def.FailureBackoff
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = def.ShutdownTimeout
	}

	root := suture.New("bookrec", suture.Spec{
		EventHook: func(e suture.Event) {
			logging.Warn().Fields(e.Map()).Msg(e.String())
		},
		FailureThreshold: cfg.FailureThreshold,
		FailureDecay:     cfg.FailureDecay,
		FailureBackoff:   cfg.FailureBackoff,
		Timeout:          cfg.ShutdownTimeout,
	})
	return &Tree{root: root}
}

// Add 加入一个受监督的服务。
func (t *Tree) Add(svc suture.Service) suture.ServiceToken {
	return t.root.Add(svc)
}

// Serve 阻塞运行直到 ctx 取消。
func (t *Tree) Serve(ctx context.Context) error {
	return t.root.Serve(ctx)
}
