package recall

import (
	"context"
	"strconv"

	"github.com/rushteam/filmrec/core"
	"github.com/rushteam/filmrec/pipeline"
)

// Hot 是热门召回源，按全站热度降序取电影，是所有路径的最终兜底。
// - 优先走 Metadata.ListByPopularity（可应用类型/语言/年份过滤）
// - 否则从 KeyValueStore 的热度 zset 读取（例如 "movies:popularity"）
// Hot 同时实现了 Source 和 Node 接口，可以直接在 Pipeline 中使用。
type Hot struct {
	Metadata core.MetadataStore
	Store    core.KeyValueStore
	Key      string // zset key，例如 "movies:popularity"

	// Limit 固定候选数；0 表示按 rctx.Limit 计算。
	Limit int
}

func (r *Hot) Name() string        { return "recall.hot" }
func (r *Hot) Kind() pipeline.Kind { return pipeline.KindRecall }

// Process 实现 Node 接口，直接调用 Recall。
func (r *Hot) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	_ []*core.Item,
) ([]*core.Item, error) {
	return r.Recall(ctx, rctx)
}

// Recall 实现 Source 接口。
func (r *Hot) Recall(
	ctx context.Context,
	rctx *core.RecommendContext,
) ([]*core.Item, error) {
	limit := r.Limit
	if limit <= 0 && rctx != nil {
		limit = rctx.Limit
	}
	if limit <= 0 {
		limit = 20
	}

	if r.Metadata != nil {
		var filters *core.MovieFilters
		if rctx != nil {
			filters = rctx.Filters
		}
		movies, err := r.Metadata.ListByPopularity(ctx, filters, limit)
		if err != nil {
			return nil, err
		}
		out := make([]*core.Item, 0, len(movies))
		for _, m := range movies {
			it := core.NewItem(m.MovieID)
			it.PutScore("popularity", m.Popularity)
			it.Score = m.Popularity
			it.Meta["popularity"] = m.Popularity
			it.Meta["title"] = m.Title
			out = append(out, it)
		}
		return out, nil
	}

	// zset 通道：member 为 movieID，score 为热度
	if r.Store != nil && r.Key != "" {
		members, err := r.Store.ZRange(ctx, r.Key, 0, int64(limit)-1)
		if err != nil {
			return nil, err
		}
		out := make([]*core.Item, 0, len(members))
		for _, m := range members {
			id, err := strconv.ParseInt(m, 10, 64)
			if err != nil {
				continue
			}
			it := core.NewItem(id)
			if score, err := r.Store.ZScore(ctx, r.Key, m); err == nil {
				it.PutScore("popularity", score)
				it.Score = score
				it.Meta["popularity"] = score
			}
			out = append(out, it)
		}
		return out, nil
	}

	return nil, core.NewDomainError(core.ModuleService, core.ErrorCodeInternalError, "recall.hot: no backing store configured")
}
