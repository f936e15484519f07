package core

import (
	"cmp"
	"strconv"
	"strings"
)

// Rating 是一条原始评分观测：(用户, 物品, 评分)。评分非负。
type Rating struct {
	UserID string  `json:"userId"`
	ItemID string  `json:"itemId"`
	Value  float64 `json:"rating"`
}

// Book 是书目元数据（ItemRecord），按 ItemID 索引，进程内只读。
type Book struct {
	ItemID        string   `json:"itemId"`
	Title         string   `json:"title"`
	Authors       []string `json:"authors"`
	Description   string   `json:"description"`
	Thumbnail     string   `json:"thumbnail"`
	AverageRating float64  `json:"averageRating"`
	RatingsCount  int      `json:"ratingsCount"`
}

// Recommendation 是推荐结果的输出单元。
// Score 未归一化，只在同一次响应内用于相对排序；Book 为 nil 表示缺少元数据。
type Recommendation struct {
	ItemID string  `json:"itemId"`
	Score  float64 `json:"score"`
	Book   *Book   `json:"book,omitempty"`
}

// FromBooks 把外部书目列表转成推荐结果（分数为 0，顺序不变）。
func FromBooks(books []Book) []Recommendation {
	out := make([]Recommendation, 0, len(books))
	for i := range books {
		b := books[i]
		out = append(out, Recommendation{ItemID: b.ItemID, Book: &b})
	}
	return out
}

// CompareIDs 按自然序比较两个 ID，返回 -1 / 0 / 1。
//
// 十进制整数 ID 排在所有非整数 ID 之前；整数之间按数值比较，数值相等时（"07" 与 "7"）
// 按字典序；非整数之间按字典序。这是一个全序，排序结果与输入顺序无关。
func CompareIDs(a, b string) int {
	if a == b {
		return 0
	}
	ai, errA := strconv.ParseInt(a, 10, 64)
	bi, errB := strconv.ParseInt(b, 10, 64)
	switch {
	case errA == nil && errB != nil:
		return -1
	case errA != nil && errB == nil:
		return 1
	case errA == nil && errB == nil:
		if c := cmp.Compare(ai, bi); c != 0 {
			return c
		}
	}
	return strings.Compare(a, b)
}

// IdentifierKind 区分 by-items 请求里的标识类型。
type IdentifierKind string

const (
	// IdentifierCatalogKey 是外部书目服务的条目 key（例如 Google Books volume id）
	IdentifierCatalogKey IdentifierKind = "key"
	// IdentifierQuery 是自由文本查询（书名、作者等）
	IdentifierQuery IdentifierKind = "query"
)

// Identifier 是 by-items 请求的标识，显式携带类型，不在运行时按内容猜测。
type Identifier struct {
	Kind  IdentifierKind `json:"kind"`
	Value string         `json:"value"`
}

// Valid 报告标识是否可用。
func (id Identifier) Valid() bool {
	if strings.TrimSpace(id.Value) == "" {
		return false
	}
	return id.Kind == IdentifierCatalogKey || id.Kind == IdentifierQuery
}
