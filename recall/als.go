package recall

import (
	"context"

	"github.com/rushteam/filmrec/core"
	"github.com/rushteam/filmrec/pipeline"
	"github.com/rushteam/filmrec/pkg/utils"
	"github.com/rushteam/filmrec/registry"
)

// Collaborative 是协同过滤召回源：从当前生产模型取用户 Top-K 预测分。
// 候选量默认为 rctx.Limit 的 Multiplier 倍，给下游过滤留余量。
// 已有过交互的电影在源头排除（推荐看过的电影没有意义）。
// Collaborative 同时实现 Source 和 Node 接口，可直接挂进 Pipeline。
type Collaborative struct {
	Registry *registry.Registry
	Feedback core.FeedbackStore

	// K 固定候选数；0 表示按 Limit*Multiplier 计算。
	K int
	// Multiplier 默认 4。
	Multiplier int
}

func (r *Collaborative) Name() string        { return "recall.collaborative" }
func (r *Collaborative) Kind() pipeline.Kind { return pipeline.KindRecall }

// Process 实现 Node 接口，直接调用 Recall。
func (r *Collaborative) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	_ []*core.Item,
) ([]*core.Item, error) {
	return r.Recall(ctx, rctx)
}

// Recall 实现 Source 接口。
// 无生产模型返回 ErrNoModelAvailable，用户不在模型内返回 ErrColdStartUser，
// 由上游路由决定降级方式。
func (r *Collaborative) Recall(
	ctx context.Context,
	rctx *core.RecommendContext,
) ([]*core.Item, error) {
	if rctx.IsGuest() {
		return nil, core.ErrColdStartUser
	}

	model, version, err := r.Registry.CurrentModel()
	if err != nil {
		return nil, err
	}
	if !model.HasUser(rctx.UserID) {
		return nil, core.ErrColdStartUser
	}

	exclude, err := r.seenMovies(ctx, rctx.UserID)
	if err != nil {
		return nil, err
	}

	k := r.K
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

	scored, err := model.TopK(rctx.UserID, k, exclude)
	if err != nil {
		return nil, err
	}

	out := make([]*core.Item, 0, len(scored))
	for _, s := range scored {
		it := core.NewItem(s.MovieID)
		it.PutScore("als", s.Score)
		it.Score = s.Score
		it.PutLabel("model_version", utils.Label{Value: version.VersionID, Source: r.Name()})
		out = append(out, it)
	}
	return out, nil
}

// seenMovies 取用户交互过的全部电影（评过分/想看/看过都算）。
func (r *Collaborative) seenMovies(ctx context.Context, userID int64) (map[int64]struct{}, error) {
	if r.Feedback == nil {
		return nil, nil
	}
	ins, err := r.Feedback.ListInteractionsForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	seen := make(map[int64]struct{}, len(ins))
	for _, in := range ins {
		seen[in.MovieID] = struct{}{}
	}
	return seen, nil
}
