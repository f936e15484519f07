// Package rating 持有训练所需的原始评分与书目元数据（RatingStore）。
//
// 加载是全有或全无的：任一数据源缺失或格式错误都返回错误，调用方应当终止启动，
// 而不是带着半份数据运行。
package rating

import (
	"fmt"
	"math"

	"github.com/rushteam/bookrec/core"
)

// Store 是一份只读的评分快照 + 书目表。构建后不再修改，可并发读取。
type Store struct {
	ratings []core.Rating
	books   map[string]core.Book
}

// NewStore 校验并构建 Store。
// 评分要求 user/item 非空、分值非负；书目要求 itemId 非空且不重复。
func NewStore(ratings []core.Rating, books []core.Book) (*Store, error) {
	for i, r := range ratings {
		if r.UserID == "" || r.ItemID == "" {
			return nil, fmt.Errorf("rating %d: empty user or item id", i)
		}
		if r.Value < 0 || math.IsNaN(r.Value) || math.IsInf(r.Value, 0) {
			return nil, fmt.Errorf("rating %d (%s, %s): invalid value %v", i, r.UserID, r.ItemID, r.Value)
		}
	}

	index := make(map[string]core.Book, len(books))
	for i, b := range books {
		if b.ItemID == "" {
			return nil, fmt.Errorf("book %d: empty item id", i)
		}
		if _, dup := index[b.ItemID]; dup {
			return nil, fmt.Errorf("book %d: duplicate item id %q", i, b.ItemID)
		}
		index[b.ItemID] = b
	}

	rs := make([]core.Rating, len(ratings))
	copy(rs, ratings)
	return &Store{ratings: rs, books: index}, nil
}

// Ratings 返回全部评分。返回值只读，调用方不得修改。
func (s *Store) Ratings() []core.Rating {
	return s.ratings
}

// Book 按 itemID 查找书目元数据。
func (s *Store) Book(itemID string) (core.Book, bool) {
	b, ok := s.books[itemID]
	return b, ok
}

// Books 返回全部书目（顺序按 itemID 自然序）。
func (s *Store) Books() []core.Book {
	out := make([]core.Book, 0, len(s.books))
	for _, b := range s.books {
		out = append(out, b)
	}
	sortBooks(out)
	return out
}

// Len 返回评分条数与书目条数。
func (s *Store) Len() (ratings, books int) {
	return len(s.ratings), len(s.books)
}
