package recall

import (
	"context"
	"sort"
	"strconv"

	"github.com/rushteam/filmrec/core"
	"github.com/rushteam/filmrec/pipeline"
	"github.com/rushteam/filmrec/pkg/utils"
)

// Similar 是语义相似召回源：以若干"种子电影"的向量做近邻检索，合并结果。
//
// 种子选取优先级：
//  1. rctx.SeedTitles（游客显式给出的喜好片名，按标题解析）
//  2. 用户近期高分交互（最近 RecentSeeds 条评分 >= SeedMinRating 的电影）
//
// 同一电影命中多个种子时保留最高相似度。种子自身不出现在结果中。
type Similar struct {
	Index    core.EmbeddingIndex
	Metadata core.MetadataStore
	Feedback core.FeedbackStore

	// PerSeedK 每个种子取的近邻数；0 表示按 Limit*Multiplier 计算。
	PerSeedK int
	// Multiplier 默认 4。
	Multiplier int
	// RecentSeeds 默认取 DefaultFusionConfig。
	RecentSeeds int
	// SeedMinRating 默认取 DefaultFusionConfig。
	SeedMinRating float64
}

func (r *Similar) Name() string        { return "recall.similar" }
func (r *Similar) Kind() pipeline.Kind { return pipeline.KindRecall }

// Process 实现 Node 接口，直接调用 Recall。
func (r *Similar) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	_ []*core.Item,
) ([]*core.Item, error) {
	return r.Recall(ctx, rctx)
}

// Recall 实现 Source 接口。取不到任何种子时返回空结果而非错误：
// 语义通道缺席是正常降级，由融合与兜底层补齐。
func (r *Similar) Recall(
	ctx context.Context,
	rctx *core.RecommendContext,
) ([]*core.Item, error) {
	seeds, err := r.pickSeeds(ctx, rctx)
	if err != nil {
		return nil, err
	}
	if len(seeds) == 0 {
		return nil, nil
	}

	k := r.PerSeedK
	if k <= 0 {
		mult := r.Multiplier
		if mult <= 0 {
			mult = core.DefaultFusionConfig().CandidateMultiplier
		}
		k = rctx.Limit * mult
	}
	if k <= 0 {
		k = 40
	}

	exclude := make(map[int64]struct{}, len(seeds))
	for _, id := range seeds {
		exclude[id] = struct{}{}
	}

	// 同一电影取各种子命中的最高相似度
	best := make(map[int64]float64)
	for _, seed := range seeds {
		hits, err := r.Index.QueryByMovie(ctx, seed, k, exclude)
		if err != nil {
			if core.IsNotFound(err) {
				continue // 种子尚未入索引，跳过
			}
			return nil, err
		}
		for _, h := range hits {
			if cur, ok := best[h.MovieID]; !ok || h.Score > cur {
				best[h.MovieID] = h.Score
			}
		}
	}

	ids := make([]int64, 0, len(best))
	for id := range best {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if best[ids[i]] != best[ids[j]] {
			return best[ids[i]] > best[ids[j]]
		}
		return ids[i] < ids[j]
	})

	out := make([]*core.Item, 0, len(ids))
	for _, id := range ids {
		it := core.NewItem(id)
		it.PutScore("embedding", best[id])
		it.Score = best[id]
		it.PutLabel("seed_count", utils.Label{Value: strconv.Itoa(len(seeds)), Source: r.Name()})
		out = append(out, it)
	}
	return out, nil
}

// pickSeeds 解析种子电影 id 列表。
func (r *Similar) pickSeeds(ctx context.Context, rctx *core.RecommendContext) ([]int64, error) {
	if len(rctx.SeedTitles) > 0 {
		return r.seedsFromTitles(ctx, rctx.SeedTitles)
	}
	if rctx.IsGuest() || r.Feedback == nil {
		return nil, nil
	}
	return r.seedsFromHistory(ctx, rctx.UserID)
}

func (r *Similar) seedsFromTitles(ctx context.Context, titles []string) ([]int64, error) {
	if r.Metadata == nil {
		return nil, nil
	}
	seeds := make([]int64, 0, len(titles))
	for _, title := range titles {
		meta, err := r.Metadata.GetByTitle(ctx, title)
		if err != nil {
			if core.IsNotFound(err) {
				continue // 未收录的片名直接忽略
			}
			return nil, err
		}
		seeds = append(seeds, meta.MovieID)
	}
	return seeds, nil
}

// seedsFromHistory 从尾部（最近）向前扫描用户交互，取高分电影作种子。
func (r *Similar) seedsFromHistory(ctx context.Context, userID int64) ([]int64, error) {
	ins, err := r.Feedback.ListInteractionsForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	limit := r.RecentSeeds
	if limit <= 0 {
		limit = core.DefaultFusionConfig().RecentSeeds
	}
	minRating := r.SeedMinRating
	if minRating <= 0 {
		minRating = core.DefaultFusionConfig().SeedMinRating
	}

	var seeds []int64
	for i := len(ins) - 1; i >= 0 && len(seeds) < limit; i-- {
		in := ins[i]
		if in.HasRating() && *in.Rating >= minRating {
			seeds = append(seeds, in.MovieID)
		}
	}
	return seeds, nil
}
