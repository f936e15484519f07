// Package engine 是推荐服务对外的查询入口。
//
// Engine 持有一个不可变快照（相似度模型 + 评分/书目数据 + 组装好的 Pipeline），
// 通过 atomic.Pointer 读取，请求路径上无锁。重新训练时先在旁边构建新快照，
// 完成后一次性替换；正在进行的请求看到的要么是旧快照，要么是新快照。
package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rushteam/bookrec/core"
	"github.com/rushteam/bookrec/feature"
	"github.com/rushteam/bookrec/logging"
	"github.com/rushteam/bookrec/metrics"
	"github.com/rushteam/bookrec/model"
	"github.com/rushteam/bookrec/pipeline"
	"github.com/rushteam/bookrec/rank"
	"github.com/rushteam/bookrec/rating"
	"github.com/rushteam/bookrec/recall"
	"github.com/rushteam/bookrec/rerank"
)

// Fallback 回答不走协同过滤的请求，catalog.Fallback 实现此接口。
type Fallback interface {
	GlobalRecommendations(ctx context.Context, count int) ([]core.Recommendation, error)
	RecommendByItems(ctx context.Context, ids []core.Identifier, count int) ([]core.Recommendation, error)
}

// Loader 加载一份完整的评分/书目数据，供 Retrain 使用。
type Loader func(ctx context.Context) (*rating.Store, error)

// Options 是 Engine 的构建参数。
type Options struct {
	Model    model.Config
	Fallback Fallback
	Loader   Loader

	// Nodes 是插在书目补全与排序之间的可配置节点（过滤器等），必须无状态。
	Nodes []pipeline.Node
}

type snapshot struct {
	model    *model.ItemCF
	data     *rating.Store
	pipeline *pipeline.Pipeline
}

// Engine 是推荐引擎。零值不可用，使用 New 创建。
type Engine struct {
	cur atomic.Pointer[snapshot]

	cfg      model.Config
	fallback Fallback
	loader   Loader
	nodes    []pipeline.Node

	// 串行化训练，避免两次重训同时占用 O(I²) 内存
	trainMu sync.Mutex
}

// New 创建尚未训练的 Engine。
func New(opts Options) *Engine {
	fb := opts.Fallback
	if fb == nil {
		fb = emptyFallback{}
	}
	return &Engine{
		cfg:      opts.Model,
		fallback: fb,
		loader:   opts.Loader,
		nodes:    opts.Nodes,
	}
}

// Train 用 src 训练新模型并原子替换当前快照。训练失败时保留旧快照。
func (e *Engine) Train(ctx context.Context, src *rating.Store) error {
	if src == nil {
		return core.NewDomainError(core.ModuleEngine, core.ErrorCodeInvalidInput, "engine: nil rating store")
	}
	e.trainMu.Lock()
	defer e.trainMu.Unlock()

	m, err := model.Train(ctx, src.Ratings(), e.cfg)
	if err != nil {
		return fmt.Errorf("train similarity model: %w", err)
	}

	e.cur.Store(&snapshot{
		model:    m,
		data:     src,
		pipeline: e.buildPipeline(m, src),
	})

	st := m.Stats()
	metrics.RecordTrain(st.Duration, st.Users, st.Items)
	logging.Info().
		Int("users", st.Users).
		Int("items", st.Items).
		Int("ratings", st.Ratings).
		Str("metric", string(st.Metric)).
		Dur("duration", st.Duration).
		Msg("similarity model trained")
	return nil
}

// Retrain 通过配置的 Loader 重新加载数据并训练。
func (e *Engine) Retrain(ctx context.Context) error {
	if e.loader == nil {
		return core.NewDomainError(core.ModuleEngine, core.ErrorCodeNotSupported, "engine: no data loader configured")
	}
	src, err := e.loader(ctx)
	if err != nil {
		return fmt.Errorf("load ratings: %w", err)
	}
	return e.Train(ctx, src)
}

func (e *Engine) buildPipeline(m *model.ItemCF, data *rating.Store) *pipeline.Pipeline {
	nodes := make([]pipeline.Node, 0, len(e.nodes)+4)
	nodes = append(nodes,
		&recall.ItemCF{Model: m},
		&feature.BookEnrichNode{Books: data},
	)
	nodes = append(nodes, e.nodes...)
	nodes = append(nodes,
		&rank.ScoreNode{},
		&rerank.TopNNode{},
	)
	return &pipeline.Pipeline{Nodes: nodes}
}

// Stats 返回当前模型的训练统计；未训练时 ok 为 false。
func (e *Engine) Stats() (st model.Stats, ok bool) {
	snap := e.cur.Load()
	if snap == nil {
		return model.Stats{}, false
	}
	return snap.model.Stats(), true
}

// Model 返回当前模型，未训练时为 nil。
func (e *Engine) Model() *model.ItemCF {
	if snap := e.cur.Load(); snap != nil {
		return snap.model
	}
	return nil
}

// RecommendForUser 为用户返回最多 count 条推荐，按分数降序、ID 自然序升序。
//
//   - count < 0：core.ErrInvalidCount
//   - 未训练：core.ErrModelNotTrained
//   - count == 0：空结果
//   - 用户不在训练集中，或没有任何正分评分：原样返回全局推荐
func (e *Engine) RecommendForUser(ctx context.Context, userID string, count int) ([]core.Recommendation, error) {
	if count < 0 {
		return nil, core.ErrInvalidCount
	}
	snap := e.cur.Load()
	if snap == nil {
		return nil, core.ErrModelNotTrained
	}
	if count == 0 {
		return []core.Recommendation{}, nil
	}

	liked := snap.model.UserRatings(userID)
	if len(liked) == 0 {
		logging.Ctx(ctx).Debug().
			Str("user_id", userID).
			Bool("known", snap.model.HasUser(userID)).
			Msg("no cf evidence, using global recommendations")
		metrics.RecordRecommendation(metrics.PathFallback)
		return e.fallback.GlobalRecommendations(ctx, count)
	}

	rctx := &core.RecommendContext{
		UserID: userID,
		Liked:  liked,
		Params: map[string]any{core.ParamLimit: count},
	}
	items, err := snap.pipeline.Run(ctx, rctx, nil)
	if err != nil {
		return nil, err
	}

	out := make([]core.Recommendation, 0, len(items))
	for _, it := range items {
		if it != nil {
			out = append(out, it.Recommendation())
		}
	}
	metrics.RecordRecommendation(metrics.PathCF)
	return out, nil
}

// GlobalRecommendations 返回非个性化的全局推荐，不依赖模型。
func (e *Engine) GlobalRecommendations(ctx context.Context, count int) ([]core.Recommendation, error) {
	if count < 0 {
		return nil, core.ErrInvalidCount
	}
	if count == 0 {
		return []core.Recommendation{}, nil
	}
	metrics.RecordRecommendation(metrics.PathFallback)
	return e.fallback.GlobalRecommendations(ctx, count)
}

// RecommendByItems 返回与种子书相似的推荐，由外部书目服务回答。
func (e *Engine) RecommendByItems(ctx context.Context, ids []core.Identifier, count int) ([]core.Recommendation, error) {
	if count < 0 {
		return nil, core.ErrInvalidCount
	}
	if count == 0 || len(ids) == 0 {
		return []core.Recommendation{}, nil
	}
	metrics.RecordRecommendation(metrics.PathFallback)
	return e.fallback.RecommendByItems(ctx, ids, count)
}

type emptyFallback struct{}

func (emptyFallback) GlobalRecommendations(context.Context, int) ([]core.Recommendation, error) {
	return []core.Recommendation{}, nil
}

func (emptyFallback) RecommendByItems(context.Context, []core.Identifier, int) ([]core.Recommendation, error) {
	return []core.Recommendation{}, nil
}
