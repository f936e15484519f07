// Package store 提供 core.Store 的实现：进程内 MemoryStore、嵌入式 BadgerStore 与 RedisStore。
//
// 注意：此包只包含实现，接口定义在 core 包。
//
// 示例：
//
//	var s core.Store = store.NewMemoryStore()
package store

import "github.com/rushteam/bookrec/core"

// ErrNotFound 与 core.ErrStoreNotFound 相同，便于包内使用。
var ErrNotFound = core.ErrStoreNotFound
