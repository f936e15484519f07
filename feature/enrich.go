// Package feature 为候选补充书目元数据。
package feature

import (
	"context"

	"github.com/rushteam/bookrec/core"
	"github.com/rushteam/bookrec/pipeline"
	"github.com/rushteam/bookrec/pkg/utils"
)

// BookSource 按物品 ID 查书目元数据，rating.Store 实现此接口。
type BookSource interface {
	Book(itemID string) (core.Book, bool)
}

// BookEnrichNode 给候选挂上 *core.Book。
// 查不到元数据的候选保留在结果中（Book 为 nil），只打一个 metadata=miss 标签。
type BookEnrichNode struct {
	Books BookSource
}

func (n *BookEnrichNode) Name() string        { return "feature.book_enrich" }
func (n *BookEnrichNode) Kind() pipeline.Kind { return pipeline.KindPostProcess }

func (n *BookEnrichNode) Process(
	_ context.Context,
	_ *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	if n.Books == nil {
		return items, nil
	}
	for _, it := range items {
		if it == nil || it.Book != nil {
			continue
		}
		b, ok := n.Books.Book(it.ID)
		if !ok {
			it.PutLabel(utils.LabelMetadata, utils.Label{Value: "miss", Source: "feature"})
			continue
		}
		it.Book = &b
		it.PutLabel(utils.LabelMetadata, utils.Label{Value: "hit", Source: "feature"})
	}
	return items, nil
}
