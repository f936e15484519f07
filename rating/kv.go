package rating

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/rushteam/bookrec/core"
)

// DefaultKeyPrefix 是评分快照在 core.Store 中的默认 key 前缀。
const DefaultKeyPrefix = "bookrec"

// 快照布局：
//
//	{prefix}:ratings  JSON 数组 []core.Rating
//	{prefix}:books    JSON 数组 []core.Book
func ratingsKey(prefix string) string { return prefix + ":ratings" }
func booksKey(prefix string) string   { return prefix + ":books" }

// LoadFromStore 从 Redis 等 KV 存储读取评分快照。
// 任一 key 缺失或 JSON 非法都返回错误（与 LoadCSV 一样全有或全无）。
func LoadFromStore(ctx context.Context, s core.Store, prefix string) (*Store, error) {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}

	keys := []string{ratingsKey(prefix), booksKey(prefix)}
	data, err := s.BatchGet(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("read snapshot from %s: %w", s.Name(), err)
	}
	for _, k := range keys {
		if _, ok := data[k]; !ok {
			return nil, fmt.Errorf("read snapshot from %s: key %q: %w", s.Name(), k, core.ErrStoreNotFound)
		}
	}

	var ratings []core.Rating
	if err := json.Unmarshal(data[ratingsKey(prefix)], &ratings); err != nil {
		return nil, fmt.Errorf("decode ratings: %w", err)
	}
	var books []core.Book
	if err := json.Unmarshal(data[booksKey(prefix)], &books); err != nil {
		return nil, fmt.Errorf("decode books: %w", err)
	}
	return NewStore(ratings, books)
}

// Publish 把快照写入 KV 存储，供其它实例通过 LoadFromStore 读取。
// 两个 key 在一次 BatchSet 中写入。
func Publish(ctx context.Context, s core.Store, prefix string, src *Store) error {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}

	ratingsData, err := json.Marshal(src.Ratings())
	if err != nil {
		return fmt.Errorf("encode ratings: %w", err)
	}
	booksData, err := json.Marshal(src.Books())
	if err != nil {
		return fmt.Errorf("encode books: %w", err)
	}

	return s.BatchSet(ctx, map[string][]byte{
		ratingsKey(prefix): ratingsData,
		booksKey(prefix):   booksData,
	})
}
