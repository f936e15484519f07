package filter

import (
	"context"

	"github.com/rushteam/bookrec/core"
	"github.com/rushteam/bookrec/pkg/dsl"
)

// ExprFilter 用 CEL 表达式过滤候选。
//
// 默认语义是“表达式为 true 则保留”，例如：
//
//	item.has_book && item.ratings_count >= 10
//
// Invert 为 true 时反过来，表达式为 true 的被移除：
//
//	"Anonymous" in item.authors
type ExprFilter struct {
	Program *dsl.Program
	Invert  bool
}

// NewExprFilter 编译表达式并创建过滤器。
func NewExprFilter(expr string, invert bool) (*ExprFilter, error) {
	p, err := dsl.Compile(expr)
	if err != nil {
		return nil, err
	}
	return &ExprFilter{Program: p, Invert: invert}, nil
}

func (f *ExprFilter) Name() string {
	return "filter.expr"
}

func (f *ExprFilter) ShouldFilter(
	_ context.Context,
	rctx *core.RecommendContext,
	item *core.Item,
) (bool, error) {
	if item == nil {
		return true, nil
	}
	ok, err := f.Program.Eval(item, rctx)
	if err != nil {
		return false, err
	}
	return ok == f.Invert, nil
}
