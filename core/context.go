package core

import "github.com/rushteam/bookrec/pkg/utils"

// RecommendContext 承载一次请求的用户与参数，贯穿整个 Pipeline 透传。
type RecommendContext struct {
	UserID string

	// Liked 是用户评分 > 0 的物品及其评分，由 engine 从训练好的矩阵中取出。
	// 召回节点据此加权并排除已评分物品。
	Liked map[string]float64

	// Labels 是用户级标签，例如 cold_start
	Labels map[string]utils.Label

	// Params 请求级参数，例如 limit
	Params map[string]any
}

// ParamLimit 是 Params 中本次请求返回数量的 key。
const ParamLimit = "limit"

// Limit 返回请求的返回数量；未设置时返回 (0, false)。
func (rctx *RecommendContext) Limit() (int, bool) {
	if rctx == nil || rctx.Params == nil {
		return 0, false
	}
	n, ok := rctx.Params[ParamLimit].(int)
	return n, ok
}

// PutLabel 写入用户级 Label。
func (rctx *RecommendContext) PutLabel(key string, lbl utils.Label) {
	if rctx.Labels == nil {
		rctx.Labels = make(map[string]utils.Label)
	}
	if old, ok := rctx.Labels[key]; ok {
		rctx.Labels[key] = utils.MergeLabel(old, lbl)
		return
	}
	rctx.Labels[key] = lbl
}

// GetLabel 获取用户级 Label。
func (rctx *RecommendContext) GetLabel(key string) (utils.Label, bool) {
	if rctx.Labels == nil {
		return utils.Label{}, false
	}
	lbl, ok := rctx.Labels[key]
	return lbl, ok
}
