// Package bookrec 是一个基于物品协同过滤（Item-CF）的图书推荐服务。
//
// 设计要点：
// - Pipeline-first: 一次推荐由 Node 串联完成（Recall → 书目补全 → Filter → Rank → ReRank）
// - Labels-first: 每个候选携带 labels，记录召回来源、相似度度量、过滤原因，便于解释与观测
// - 快照替换: 训练得到新的只读模型后原子替换，读请求不加锁
// - 冷启动: 未知用户、没有正向评分的用户走外部书目服务（Google Books）
//
// 入口：cmd/bookrec；引擎：engine；HTTP：server。
package bookrec

import (
	"github.com/rushteam/bookrec/core"
	"github.com/rushteam/bookrec/engine"
	"github.com/rushteam/bookrec/pipeline"
)

// 轻量 facade：嵌入方可直接 import "bookrec" 使用核心抽象。
type (
	Engine         = engine.Engine
	Options        = engine.Options
	Recommendation = core.Recommendation
	Identifier     = core.Identifier
	Pipeline       = pipeline.Pipeline
	Node           = pipeline.Node
)

// New 创建尚未训练的推荐引擎。
func New(opts Options) *Engine { return engine.New(opts) }
