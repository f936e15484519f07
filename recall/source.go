package recall

import (
	"context"

	"github.com/rushteam/bookrec/core"
)

// Source 表示一个可复用的召回源。
// 召回源同时实现 pipeline.Node 时可以直接放进 Pipeline 的第一个位置。
type Source interface {
	Name() string
	Recall(ctx context.Context, rctx *core.RecommendContext) ([]*core.Item, error)
}
