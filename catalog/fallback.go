package catalog

import (
	"context"

	"github.com/rushteam/bookrec/core"
	"github.com/rushteam/bookrec/logging"
)

// DefaultGlobalQuery 是全局推荐使用的检索串。
const DefaultGlobalQuery = "subject:fiction"

// Fallback 用外部书目服务回答非个性化请求：全局推荐与 by-items 推荐。
//
// 任何书目服务错误都降级为空结果并记日志，不向调用方返回错误。
// 结果保持服务返回的顺序，Score 为 0。
type Fallback struct {
	Catalog     core.Catalog
	GlobalQuery string
}

// NewFallback 创建 Fallback，globalQuery 为空时使用 DefaultGlobalQuery。
func NewFallback(c core.Catalog, globalQuery string) *Fallback {
	if globalQuery == "" {
		globalQuery = DefaultGlobalQuery
	}
	return &Fallback{Catalog: c, GlobalQuery: globalQuery}
}

// GlobalRecommendations 返回全局推荐，最多 count 条。
func (f *Fallback) GlobalRecommendations(ctx context.Context, count int) ([]core.Recommendation, error) {
	if count <= 0 {
		return []core.Recommendation{}, nil
	}
	books, err := f.Catalog.Search(ctx, f.GlobalQuery, count)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("query", f.GlobalQuery).Msg("global recommendations degraded to empty")
		return []core.Recommendation{}, nil
	}
	return core.FromBooks(books), nil
}

// RecommendByItems 以第一个标识为种子，推荐同作者的书。
//
//   - query：先检索 1 本作为种子
//   - key：直接按目录 key 取种子
//
// 种子有作者时检索 inauthor:<第一作者>，否则用原始值检索。
func (f *Fallback) RecommendByItems(ctx context.Context, ids []core.Identifier, count int) ([]core.Recommendation, error) {
	if count <= 0 || len(ids) == 0 {
		return []core.Recommendation{}, nil
	}

	first := ids[0]
	if !first.Valid() {
		logging.Ctx(ctx).Warn().Str("kind", string(first.Kind)).Str("value", first.Value).Msg("invalid seed identifier")
		return []core.Recommendation{}, nil
	}

	seed, ok := f.seed(ctx, first)
	if !ok {
		return []core.Recommendation{}, nil
	}

	query := first.Value
	if len(seed.Authors) > 0 {
		query = "inauthor:" + seed.Authors[0]
	}
	books, err := f.Catalog.Search(ctx, query, count)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("query", query).Msg("by-items recommendations degraded to empty")
		return []core.Recommendation{}, nil
	}
	return core.FromBooks(books), nil
}

func (f *Fallback) seed(ctx context.Context, id core.Identifier) (*core.Book, bool) {
	log := logging.Ctx(ctx)
	switch id.Kind {
	case core.IdentifierCatalogKey:
		b, err := f.Catalog.Volume(ctx, id.Value)
		if err != nil {
			log.Warn().Err(err).Str("key", id.Value).Msg("seed volume lookup failed")
			return nil, false
		}
		return b, true
	default:
		books, err := f.Catalog.Search(ctx, id.Value, 1)
		if err != nil {
			log.Warn().Err(err).Str("query", id.Value).Msg("seed search failed")
			return nil, false
		}
		if len(books) == 0 {
			return nil, false
		}
		return &books[0], true
	}
}
