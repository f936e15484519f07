package core

import "context"

// Catalog 是外部书目服务的领域接口。
//
// 设计原则：
//   - 定义在领域层（core），由基础设施层（catalog）实现
//   - 只暴露检索能力，冷启动/by-items 策略由 catalog.Fallback 组合
//
// 实现：
//   - catalog.GoogleBooks 实现此接口（HTTP + 熔断）
//   - catalog.CachedCatalog 在任意 Catalog 外加一层 Store 缓存
type Catalog interface {
	// Search 按查询串检索，返回有序结果，最多 limit 条。
	// 查询串支持 Google Books 语法，例如 "subject:fiction"、"inauthor:Tolkien"。
	Search(ctx context.Context, query string, limit int) ([]Book, error)

	// Volume 按目录 key 获取单本书，不存在时返回 NOT_FOUND。
	Volume(ctx context.Context, id string) (*Book, error)
}
