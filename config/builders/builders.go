// Package builders 注册可由配置构建的 Pipeline 节点。
package builders

import (
	"fmt"

	"github.com/rushteam/bookrec/config"
	"github.com/rushteam/bookrec/filter"
	"github.com/rushteam/bookrec/pipeline"
	"github.com/rushteam/bookrec/pkg/conv"
)

func init() {
	config.Register("filter.blacklist", BuildBlacklistNode)
	config.Register("filter.expr", BuildExprNode)
	config.Register("filter", BuildFilterNode)
}

// BuildBlacklistNode 构建黑名单过滤节点。
//
//	type: filter.blacklist
//	config:
//	  item_ids: [1984, "0439708180"]
func BuildBlacklistNode(cfg map[string]any) (pipeline.Node, error) {
	f, err := buildBlacklist(cfg)
	if err != nil {
		return nil, err
	}
	return &filter.FilterNode{Filters: []filter.Filter{f}}, nil
}

// BuildExprNode 构建 CEL 表达式过滤节点。
//
//	type: filter.expr
//	config:
//	  expr: "item.has_book && item.ratings_count >= 10"
//	  invert: false
func BuildExprNode(cfg map[string]any) (pipeline.Node, error) {
	f, err := buildExpr(cfg)
	if err != nil {
		return nil, err
	}
	return &filter.FilterNode{Filters: []filter.Filter{f}}, nil
}

// BuildFilterNode 把多个过滤器组合进一个节点：
//
//	type: filter
//	config:
//	  filters:
//	    - type: blacklist
//	      item_ids: [...]
//	    - type: expr
//	      expr: "..."
func BuildFilterNode(cfg map[string]any) (pipeline.Node, error) {
	raw, ok := cfg["filters"].([]any)
	if !ok {
		return nil, fmt.Errorf("filters not found or invalid")
	}

	filters := make([]filter.Filter, 0, len(raw))
	for i, fc := range raw {
		m, ok := fc.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("filters[%d]: expected a mapping", i)
		}
		var (
			f   filter.Filter
			err error
		)
		switch t := conv.ConfigGet(m, "type", ""); t {
		case "blacklist":
			f, err = buildBlacklist(m)
		case "expr":
			f, err = buildExpr(m)
		default:
			err = fmt.Errorf("unknown filter type: %s", t)
		}
		if err != nil {
			return nil, fmt.Errorf("filters[%d]: %w", i, err)
		}
		filters = append(filters, f)
	}
	return &filter.FilterNode{Filters: filters}, nil
}

func buildBlacklist(cfg map[string]any) (filter.Filter, error) {
	ids := conv.SliceAnyToString(cfg["item_ids"])
	if len(ids) == 0 {
		return nil, fmt.Errorf("item_ids is required")
	}
	return filter.NewBlacklistFilter(ids), nil
}

func buildExpr(cfg map[string]any) (filter.Filter, error) {
	expr := conv.ConfigGet(cfg, "expr", "")
	if expr == "" {
		return nil, fmt.Errorf("expr is required")
	}
	return filter.NewExprFilter(expr, conv.ConfigGet(cfg, "invert", false))
}
