package core

import (
	"runtime"
	"time"
)

// EngineConfig 提供推荐相关的默认值。
type EngineConfig interface {
	// DefaultLimit 返回请求未指定 limit 时的返回数量
	DefaultLimit() int

	// DefaultMetric 返回默认的相似度度量
	DefaultMetric() string

	// DefaultWorkers 返回训练时并行计算相似度的 worker 数（GOMAXPROCS）
	DefaultWorkers() int

	// DefaultTimeout 返回外部书目服务调用的默认超时
	DefaultTimeout() time.Duration
}

// DefaultEngineConfig 是默认配置实现。
type DefaultEngineConfig struct{}

func (c *DefaultEngineConfig) DefaultLimit() int {
	return 10
}

func (c *DefaultEngineConfig) DefaultMetric() string {
	return "cosine"
}

func (c *DefaultEngineConfig) DefaultWorkers() int {
	return runtime.GOMAXPROCS(0)
}

func (c *DefaultEngineConfig) DefaultTimeout() time.Duration {
	return 5 * time.Second
}
