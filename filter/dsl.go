package filter

import (
	"context"

	"github.com/rushteam/filmrec/core"
	"github.com/rushteam/filmrec/pkg/dsl"
)

// DSLFilter 使用 CEL 表达式过滤候选，表达式返回 false 的电影被移除。
// 适合运营侧临时圈选/排除，不用改代码发版。
//
// 示例：
//   - `meta.release_year >= 2000`
//   - `"Horror" in meta.genres == false`
type DSLFilter struct {
	// Expr 为空时不过滤。
	Expr string
}

func (f *DSLFilter) Name() string {
	return "filter.dsl"
}

func (f *DSLFilter) ShouldFilter(
	_ context.Context,
	rctx *core.RecommendContext,
	item *core.Item,
) (bool, error) {
	if f.Expr == "" || item == nil {
		return false, nil
	}
	keep, err := dsl.NewEval(item, rctx).Evaluate(f.Expr)
	if err != nil {
		// 表达式错误时保留候选，不让配置失误清空推荐
		return false, err
	}
	return !keep, nil
}
