// Package model 构建物品协同过滤（Item-CF）所需的相似度模型。
//
// 训练流程：
//  1. 评分 → 用户 × 物品矩阵（未观测为 0）
//  2. 每个物品取其列向量
//  3. 两两计算物品相似度，得到 物品 × 物品 矩阵
//
// 训练是评分快照的纯函数：同样的输入得到逐位相同的相似度矩阵。
// 模型训练完成后只读，可被任意数量的请求并发读取；重新训练会得到一个新的 *ItemCF，
// 由调用方原子替换引用，不做增量更新。
package model

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rushteam/bookrec/core"
)

// Config 是训练参数。
type Config struct {
	// Metric 相似度度量：cosine（默认）/ pearson
	Metric string

	// Workers 并行计算相似度的 goroutine 数，<= 0 时取 core.EngineConfig 的 DefaultWorkers
	Workers int
}

// ItemCF 是训练好的物品相似度模型（ItemSimilarityMatrix）。
type ItemCF struct {
	matrix *UserItemMatrix
	sim    [][]float64 // sim[i][j]，下标与 matrix.items 一致
	metric Metric
	stats  Stats
}

// Stats 描述一次训练。
type Stats struct {
	Users     int           `json:"users"`
	Items     int           `json:"items"`
	Ratings   int           `json:"ratings"`
	Metric    Metric        `json:"metric"`
	TrainedAt time.Time     `json:"trainedAt"`
	Duration  time.Duration `json:"duration"`
}

// Train 由评分训练模型，复杂度 O(I²·U) 时间、O(I²) 空间。
//
// 相似度矩阵按行并行计算：worker i 负责第 i 行的上三角（含对角线），
// 并把结果镜像写到第 i 列，不同 worker 永远不写同一个格子，因此无需加锁。
// 模为 0 的物品（没人打过正分）与任何物品（包括自己）的相似度都是 0。
func Train(ctx context.Context, ratings []core.Rating, cfg Config) (*ItemCF, error) {
	metric, err := ParseMetric(cfg.Metric)
	if err != nil {
		return nil, err
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = (&core.DefaultEngineConfig{}).DefaultWorkers()
	}

	start := time.Now()
	matrix := NewUserItemMatrix(ratings)
	n := len(matrix.items)

	vecs := make([][]float64, n)
	norms := make([]float64, n)
	for i, col := range matrix.cols {
		vecs[i] = metric.prepare(col)
		norms[i] = norm(vecs[i])
	}

	sim := make([][]float64, n)
	for i := range sim {
		sim[i] = make([]float64, n)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if norms[i] == 0 {
				// 零向量：整行/整列保持 0
				return nil
			}
			sim[i][i] = 1
			for j := i + 1; j < n; j++ {
				s := cosine(vecs[i], vecs[j], norms[i], norms[j])
				sim[i][j] = s
				sim[j][i] = s
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	users, items := matrix.Shape()
	return &ItemCF{
		matrix: matrix,
		sim:    sim,
		metric: metric,
		stats: Stats{
			Users:     users,
			Items:     items,
			Ratings:   len(ratings),
			Metric:    metric,
			TrainedAt: start,
			Duration:  time.Since(start),
		},
	}, nil
}

// Matrix 返回训练使用的用户 × 物品矩阵。
func (m *ItemCF) Matrix() *UserItemMatrix { return m.matrix }

// Items 返回模型覆盖的物品（自然序）。
func (m *ItemCF) Items() []string { return m.matrix.Items() }

// Users 返回训练集中的用户（自然序）。
func (m *ItemCF) Users() []string { return m.matrix.Users() }

// HasUser 判断用户是否在训练集中。
func (m *ItemCF) HasUser(userID string) bool { return m.matrix.HasUser(userID) }

// UserRatings 返回用户评分 > 0 的物品及评分，未知用户返回 nil。
func (m *ItemCF) UserRatings(userID string) map[string]float64 { return m.matrix.Liked(userID) }

// Stats 返回训练统计。
func (m *ItemCF) Stats() Stats { return m.stats }

// Similarity 返回两个物品的相似度；任一物品不在训练集中时返回 (0, false)。
func (m *ItemCF) Similarity(a, b string) (float64, bool) {
	i, ok := m.matrix.itemIndex[a]
	if !ok {
		return 0, false
	}
	j, ok := m.matrix.itemIndex[b]
	if !ok {
		return 0, false
	}
	return m.sim[i][j], true
}

// Neighbors 返回物品与训练集中所有物品（包括自身）的相似度；物品未知时返回 (nil, false)。
func (m *ItemCF) Neighbors(item string) (map[string]float64, bool) {
	i, ok := m.matrix.itemIndex[item]
	if !ok {
		return nil, false
	}
	out := make(map[string]float64, len(m.sim[i]))
	for j, s := range m.sim[i] {
		out[m.matrix.items[j]] = s
	}
	return out, true
}

// EachNeighbor 按物品自然序遍历 item 的相似度行，避免为每次请求分配 map。
// 物品未知时不调用 fn 并返回 false。
func (m *ItemCF) EachNeighbor(item string, fn func(neighbor string, sim float64)) bool {
	i, ok := m.matrix.itemIndex[item]
	if !ok {
		return false
	}
	for j, s := range m.sim[i] {
		fn(m.matrix.items[j], s)
	}
	return true
}

// Row 返回 item 的相似度行，下标与 Items() 对齐。返回值只读。
func (m *ItemCF) Row(item string) ([]float64, bool) {
	i, ok := m.matrix.itemIndex[item]
	if !ok {
		return nil, false
	}
	return m.sim[i], true
}
