// Package rank 对候选排序。
package rank

import (
	"context"
	"sort"

	"github.com/rushteam/bookrec/core"
	"github.com/rushteam/bookrec/pipeline"
	"github.com/rushteam/bookrec/pkg/utils"
)

// ScoreNode 按召回分数降序排序，分数相同时按物品 ID 自然序升序，
// 保证同样的输入总是得到同样的顺序。
type ScoreNode struct{}

func (n *ScoreNode) Name() string        { return "rank.score" }
func (n *ScoreNode) Kind() pipeline.Kind { return pipeline.KindRank }

func (n *ScoreNode) Process(
	_ context.Context,
	_ *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	if len(items) == 0 {
		return items, nil
	}

	for _, it := range items {
		if it != nil {
			it.PutLabel(utils.LabelRank, utils.Label{Value: "score", Source: "rank"})
		}
	}

	sort.SliceStable(items, func(i, j int) bool {
		if items[i] == nil {
			return false
		}
		if items[j] == nil {
			return true
		}
		if items[i].Score != items[j].Score {
			return items[i].Score > items[j].Score
		}
		return core.CompareIDs(items[i].ID, items[j].ID) < 0
	})
	return items, nil
}
