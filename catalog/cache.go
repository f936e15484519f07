package catalog

import (
	"context"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"github.com/rushteam/bookrec/core"
	"github.com/rushteam/bookrec/logging"
	"github.com/rushteam/bookrec/metrics"
)

// CachedCatalog 在任意 Catalog 外加一层 Store 缓存。
// 只缓存成功的结果；缓存读写失败只记日志，不影响请求。
type CachedCatalog struct {
	next   core.Catalog
	store  core.Store
	ttl    time.Duration
	prefix string
}

// NewCachedCatalog 创建缓存包装。ttl 按秒取整，不足 1 秒按 1 秒。
func NewCachedCatalog(next core.Catalog, store core.Store, ttl time.Duration, prefix string) *CachedCatalog {
	if prefix == "" {
		prefix = "bookrec"
	}
	return &CachedCatalog{next: next, store: store, ttl: ttl, prefix: prefix + ":catalog"}
}

func (c *CachedCatalog) Search(ctx context.Context, query string, limit int) ([]core.Book, error) {
	key := c.prefix + ":search:" + strconv.Itoa(limit) + ":" + query
	var books []core.Book
	if c.load(ctx, key, &books) {
		return books, nil
	}

	books, err := c.next.Search(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	c.save(ctx, key, books)
	return books, nil
}

func (c *CachedCatalog) Volume(ctx context.Context, id string) (*core.Book, error) {
	key := c.prefix + ":volume:" + id
	var book core.Book
	if c.load(ctx, key, &book) {
		return &book, nil
	}

	b, err := c.next.Volume(ctx, id)
	if err != nil {
		return nil, err
	}
	c.save(ctx, key, b)
	return b, nil
}

func (c *CachedCatalog) load(ctx context.Context, key string, dst any) bool {
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !core.IsStoreNotFound(err) {
			logging.Ctx(ctx).Warn().Err(err).Str("key", key).Str("store", c.store.Name()).Msg("catalog cache read failed")
		}
		metrics.RecordCacheLookup(false)
		return false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("catalog cache entry corrupt")
		metrics.RecordCacheLookup(false)
		return false
	}
	metrics.RecordCacheLookup(true)
	return true
}

func (c *CachedCatalog) save(ctx context.Context, key string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	ttl := int(c.ttl / time.Second)
	if ttl < 1 {
		ttl = 1
	}
	if err := c.store.Set(ctx, key, data, ttl); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("key", key).Str("store", c.store.Name()).Msg("catalog cache write failed")
	}
}

var _ core.Catalog = (*CachedCatalog)(nil)
