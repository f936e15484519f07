package service

import (
	"context"
	"time"

	"github.com/rushteam/bookrec/logging"
)

// Retrainer 是可以重新训练的引擎，engine.Engine 实现此接口。
type Retrainer interface {
	Retrain(ctx context.Context) error
}

// RetrainService 按固定间隔重新加载数据并训练。
// 单次失败只记日志，当前模型继续服务，下个周期再试。
type RetrainService struct {
	engine   Retrainer
	interval time.Duration
}

func NewRetrainService(engine Retrainer, interval time.Duration) *RetrainService {
	return &RetrainService{engine: engine, interval: interval}
}

// Serve 实现 suture.Service。
func (s *RetrainService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	logging.Info().Dur("interval", s.interval).Msg("periodic retrain enabled")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			start := time.Now()
			if err := s.engine.Retrain(ctx); err != nil {
				logging.Warn().Err(err).Msg("scheduled retrain failed, keeping current model")
				continue
			}
			logging.Info().Dur("duration", time.Since(start)).Msg("scheduled retrain complete")
		}
	}
}

func (s *RetrainService) String() string { return "retrain" }
