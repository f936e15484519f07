package pipeline

import (
	"context"
	"fmt"

	"github.com/rushteam/bookrec/core"
)

// Pipeline 把推荐逻辑拆成可组合的 Node 链。
// Pipeline 本身无状态，可被多个请求并发执行（前提是各 Node 只读）。
type Pipeline struct {
	Nodes []Node
}

func (p *Pipeline) Run(
	ctx context.Context,
	rctx *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	cur := items
	for _, node := range p.Nodes {
		next, err := node.Process(ctx, rctx, cur)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", node.Name(), err)
		}
		cur = next
	}
	return cur, nil
}
