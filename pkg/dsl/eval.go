package dsl

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/rushteam/bookrec/core"
)

var (
	// celEnv 是全局的 CEL 环境，线程安全，可复用
	celEnv     *cel.Env
	celEnvErr  error
	celEnvOnce sync.Once
)

// initCELEnv 初始化 CEL 环境，定义变量
func initCELEnv() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("item", cel.DynType),
		cel.Variable("label", cel.DynType),
		cel.Variable("rctx", cel.DynType),
	)
}

// getCELEnv 获取或创建 CEL 环境
func getCELEnv() (*cel.Env, error) {
	celEnvOnce.Do(func() {
		celEnv, celEnvErr = initCELEnv()
	})
	return celEnv, celEnvErr
}

// Program 是编译好的 Label DSL 表达式，使用 CEL (Common Expression Language) 实现。
// 编译一次，可并发多次求值。
//
// 表达式语法（CEL 标准语法）：
//   - 数值：item.score > 0.1
//   - 元数据：item.has_book && item.ratings_count >= 10
//   - 作者："Tolkien" in item.authors
//   - 标签：label.recall_source == "i2i"
//   - 用户：rctx.user_id != "42"
type Program struct {
	expr string
	prg  cel.Program
}

// Compile 编译表达式；表达式必须返回 bool。
// 配置阶段调用，错误表达式在启动时即失败。
func Compile(expr string) (*Program, error) {
	env, err := getCELEnv()
	if err != nil {
		return nil, fmt.Errorf("cel env: %w", err)
	}

	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile error: %w", issues.Err())
	}
	if out := ast.OutputType(); !out.IsExactType(cel.BoolType) && !out.IsExactType(cel.DynType) {
		return nil, fmt.Errorf("expression must return bool, got %v", ast.OutputType())
	}

	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("program error: %w", err)
	}
	return &Program{expr: expr, prg: prg}, nil
}

// String 返回原始表达式。
func (p *Program) String() string { return p.expr }

// Eval 对一个候选物品求值。
func (p *Program) Eval(item *core.Item, rctx *core.RecommendContext) (bool, error) {
	out, _, err := p.prg.Eval(buildInput(item, rctx))
	if err != nil {
		// 访问不存在的 label key 会报错，表达式里应使用 has(label.key)
		return false, fmt.Errorf("eval error: %w", err)
	}

	result, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("expression must return boolean, got %T", out.Value())
	}
	return result, nil
}

// buildInput 构建 CEL 表达式的输入数据
func buildInput(item *core.Item, rctx *core.RecommendContext) map[string]any {
	labels := make(map[string]any, len(item.Labels))
	for k, v := range item.Labels {
		labels[k] = v.Value
	}

	authors := []string{}
	in := map[string]any{
		"id":            item.ID,
		"score":         item.Score,
		"has_book":      item.Book != nil,
		"title":         "",
		"authors":       authors,
		"average":       0.0,
		"ratings_count": int64(0),
	}
	if b := item.Book; b != nil {
		if b.Authors != nil {
			authors = b.Authors
		}
		in["title"] = b.Title
		in["authors"] = authors
		in["average"] = b.AverageRating
		in["ratings_count"] = int64(b.RatingsCount)
	}

	user := map[string]any{"user_id": ""}
	if rctx != nil {
		user["user_id"] = rctx.UserID
	}

	return map[string]any{
		"item":  in,
		"label": labels,
		"rctx":  user,
	}
}
