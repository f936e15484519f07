package model

import (
	"slices"

	"github.com/rushteam/bookrec/core"
)

// UserItemMatrix 是稠密的 用户 × 物品 评分矩阵，未观测的位置为 0。
//
// 注意：0 同时表示“未评分”和“评分为 0”，两者不可区分；打分时统一视为“不喜欢”。
// 行、列按 ID 自然序排列，同一份评分总是得到同一个矩阵。
// 内部按列（物品向量）存储，便于计算物品相似度。
type UserItemMatrix struct {
	users     []string
	items     []string
	userIndex map[string]int
	itemIndex map[string]int
	cols      [][]float64 // cols[item][user]
}

// NewUserItemMatrix 由评分构建矩阵。同一 (user, item) 的重复评分取平均值。
func NewUserItemMatrix(ratings []core.Rating) *UserItemMatrix {
	type cell struct {
		sum   float64
		count int
	}
	type key struct{ user, item string }

	cells := make(map[key]*cell, len(ratings))
	userSet := make(map[string]struct{})
	itemSet := make(map[string]struct{})
	for _, r := range ratings {
		k := key{r.UserID, r.ItemID}
		c, ok := cells[k]
		if !ok {
			c = &cell{}
			cells[k] = c
		}
		c.sum += r.Value
		c.count++
		userSet[r.UserID] = struct{}{}
		itemSet[r.ItemID] = struct{}{}
	}

	m := &UserItemMatrix{
		users: sortedKeys(userSet),
		items: sortedKeys(itemSet),
	}
	m.userIndex = indexOf(m.users)
	m.itemIndex = indexOf(m.items)

	m.cols = make([][]float64, len(m.items))
	for j := range m.cols {
		m.cols[j] = make([]float64, len(m.users))
	}
	for k, c := range cells {
		m.cols[m.itemIndex[k.item]][m.userIndex[k.user]] = c.sum / float64(c.count)
	}
	return m
}

// Users 返回行 ID（自然序）。
func (m *UserItemMatrix) Users() []string { return slices.Clone(m.users) }

// Items 返回列 ID（自然序）。
func (m *UserItemMatrix) Items() []string { return slices.Clone(m.items) }

// HasUser 报告用户是否出现在训练数据中。
func (m *UserItemMatrix) HasUser(userID string) bool {
	_, ok := m.userIndex[userID]
	return ok
}

// Rating 返回 (user, item) 的评分，未知用户/物品或未观测时为 0。
func (m *UserItemMatrix) Rating(userID, itemID string) float64 {
	u, ok := m.userIndex[userID]
	if !ok {
		return 0
	}
	i, ok := m.itemIndex[itemID]
	if !ok {
		return 0
	}
	return m.cols[i][u]
}

// Liked 返回用户评分 > 0 的物品及评分。未知用户返回 nil。
func (m *UserItemMatrix) Liked(userID string) map[string]float64 {
	u, ok := m.userIndex[userID]
	if !ok {
		return nil
	}
	liked := make(map[string]float64)
	for i, item := range m.items {
		if v := m.cols[i][u]; v > 0 {
			liked[item] = v
		}
	}
	return liked
}

// Shape 返回 (用户数, 物品数)。
func (m *UserItemMatrix) Shape() (users, items int) {
	return len(m.users), len(m.items)
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	slices.SortFunc(out, core.CompareIDs)
	return out
}

func indexOf(ids []string) map[string]int {
	idx := make(map[string]int, len(ids))
	for i, id := range ids {
		idx[id] = i
	}
	return idx
}
