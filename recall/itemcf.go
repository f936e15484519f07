package recall

import (
	"context"
	"slices"

	"github.com/rushteam/bookrec/core"
	"github.com/rushteam/bookrec/model"
	"github.com/rushteam/bookrec/pipeline"
	"github.com/rushteam/bookrec/pkg/utils"
)

// ItemCF 是基于物品的协同过滤召回源（Item-based Collaborative Filtering, i2i）。
//
// 核心思想："被同一批用户喜欢的物品，相互相似"
//
// 算法流程：
//  1. 离线：model.Train 构建 物品 × 物品 相似度矩阵
//  2. 在线：对用户喜欢的每个物品 i（评分 w_i > 0），
//     score[j] += sim(i, j) * w_i，j 取训练集中所有物品
//  3. 去掉用户已喜欢的物品
//
// 输出所有候选（包括得分为 0 的），排序与截断交给后续节点。
// 已喜欢物品的排除放在召回里完成，配置的其它节点无法绕过。
type ItemCF struct {
	Model *model.ItemCF
}

func (r *ItemCF) Name() string        { return "recall.i2i" }
func (r *ItemCF) Kind() pipeline.Kind { return pipeline.KindRecall }

// Process 实现 Node 接口，忽略输入直接召回。
func (r *ItemCF) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	_ []*core.Item,
) ([]*core.Item, error) {
	return r.Recall(ctx, rctx)
}

// Recall 实现 Source 接口。rctx.Liked 为空时返回空结果。
func (r *ItemCF) Recall(
	_ context.Context,
	rctx *core.RecommendContext,
) ([]*core.Item, error) {
	if r.Model == nil {
		return nil, core.ErrModelNotTrained
	}
	if rctx == nil || len(rctx.Liked) == 0 {
		return nil, nil
	}

	// 固定累加顺序，保证同样的请求得到逐位相同的分数
	liked := make([]string, 0, len(rctx.Liked))
	for id := range rctx.Liked {
		liked = append(liked, id)
	}
	slices.SortFunc(liked, core.CompareIDs)

	items := r.Model.Items()
	scores := make([]float64, len(items))
	for _, id := range liked {
		row, ok := r.Model.Row(id)
		if !ok {
			// 不在训练集中的物品不贡献任何邻居
			continue
		}
		w := rctx.Liked[id]
		for j, s := range row {
			scores[j] += s * w
		}
	}

	metric := string(r.Model.Stats().Metric)
	out := make([]*core.Item, 0, len(items))
	for j, id := range items {
		if _, ok := rctx.Liked[id]; ok {
			continue
		}
		it := core.NewItem(id)
		it.Score = scores[j]
		it.PutLabel(utils.LabelRecallSource, utils.Label{Value: "i2i", Source: "recall"})
		it.PutLabel(utils.LabelMetric, utils.Label{Value: metric, Source: "recall"})
		out = append(out, it)
	}
	return out, nil
}

var (
	_ Source        = (*ItemCF)(nil)
	_ pipeline.Node = (*ItemCF)(nil)
)
