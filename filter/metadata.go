package filter

import (
	"context"

	"github.com/rushteam/filmrec/core"
)

// MetadataFilter 按请求携带的元数据条件（类型/语言/年份区间）过滤候选。
// 条件之间为 AND，单条件内为 OR（类型命中任一即可）。
// 元数据缺失的电影视为不满足条件（宁缺毋滥）。
type MetadataFilter struct {
	Metadata core.MetadataStore
}

func (f *MetadataFilter) Name() string {
	return "filter.metadata"
}

func (f *MetadataFilter) ShouldFilter(
	ctx context.Context,
	rctx *core.RecommendContext,
	item *core.Item,
) (bool, error) {
	if item == nil || rctx == nil || rctx.Filters == nil || rctx.Filters.Empty() {
		return false, nil
	}
	if f.Metadata == nil {
		return false, nil
	}

	meta, err := f.Metadata.GetMetadata(ctx, item.ID)
	if err != nil {
		if core.IsNotFound(err) {
			return true, nil
		}
		return false, err
	}
	return !rctx.Filters.Match(meta), nil
}
