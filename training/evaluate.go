package training

import (
	"context"
	"sort"

	"github.com/rushteam/filmrec/als"
	"github.com/rushteam/filmrec/core"
	"github.com/rushteam/filmrec/dataset"
)

// evalK 是离线评估的截断位置（precision@10 / recall@10）。
const evalK = 10

// holdout 是留一法切分结果：每个可评估用户留出最近一条正交互。
type holdout struct {
	train []core.Interaction
	// heldout: userID -> 留出的 movieID
	heldout map[int64]int64
}

// splitLeaveOneOut 对交互快照做留一法切分。
// 规则：
//   - 只考虑权重为正的交互（评过分且合法，或想看/看过）
//   - 同 (user, movie) 多条时只保留 UpdatedAt 最新的一条
//   - 用户至少要有两部不同电影的正交互才参与评估，留出其中最近一条
//
// 切分只由快照内容决定，与遍历顺序无关。
func splitLeaveOneOut(interactions []core.Interaction, b *dataset.Builder) holdout {
	// 去重，保留最新
	latest := make(map[int64]map[int64]core.Interaction)
	for _, in := range interactions {
		if b.Weight(in) <= 0 {
			continue
		}
		byMovie, ok := latest[in.UserID]
		if !ok {
			byMovie = make(map[int64]core.Interaction)
			latest[in.UserID] = byMovie
		}
		if old, ok := byMovie[in.MovieID]; !ok || in.UpdatedAt.After(old.UpdatedAt) {
			byMovie[in.MovieID] = in
		}
	}

	out := holdout{heldout: make(map[int64]int64)}
	userIDs := make([]int64, 0, len(latest))
	for uid := range latest {
		userIDs = append(userIDs, uid)
	}
	sort.Slice(userIDs, func(i, j int) bool { return userIDs[i] < userIDs[j] })

	for _, uid := range userIDs {
		byMovie := latest[uid]
		ins := make([]core.Interaction, 0, len(byMovie))
		for _, in := range byMovie {
			ins = append(ins, in)
		}
		sort.Slice(ins, func(i, j int) bool {
			if !ins[i].UpdatedAt.Equal(ins[j].UpdatedAt) {
				return ins[i].UpdatedAt.Before(ins[j].UpdatedAt)
			}
			return ins[i].MovieID < ins[j].MovieID
		})

		if len(ins) < 2 {
			out.train = append(out.train, ins...)
			continue
		}
		last := ins[len(ins)-1]
		out.heldout[uid] = last.MovieID
		out.train = append(out.train, ins[:len(ins)-1]...)
	}
	return out
}

// evaluate 用留一法计算 precision@10 / recall@10：
// 在去掉留出条目的矩阵上训练一个评估模型，对每个评估用户取 Top-10
// （排除其训练集内的电影），命中留出电影记 1。
// 每用户只留一条，故 precision@10 = recall@10 / 10。
func evaluate(ctx context.Context, interactions []core.Interaction, b *dataset.Builder, hp core.Hyperparams) (core.EvalMetrics, error) {
	split := splitLeaveOneOut(interactions, b)
	if len(split.heldout) == 0 {
		return core.EvalMetrics{}, nil
	}

	m, im, err := b.Build(split.train)
	if err != nil {
		return core.EvalMetrics{}, err
	}
	res, err := als.Train(ctx, m, im, hp)
	if err != nil {
		return core.EvalMetrics{}, err
	}
	model := res.Model

	// 训练集内每用户已看集合（Top-10 需排除）
	trainSeen := make(map[int64]map[int64]struct{}, len(split.heldout))
	for _, in := range split.train {
		set, ok := trainSeen[in.UserID]
		if !ok {
			set = make(map[int64]struct{})
			trainSeen[in.UserID] = set
		}
		set[in.MovieID] = struct{}{}
	}

	evaluated := 0
	hits := 0
	for uid, heldMovie := range split.heldout {
		if !model.HasUser(uid) || !model.HasMovie(heldMovie) {
			continue
		}
		top, err := model.TopK(uid, evalK, trainSeen[uid])
		if err != nil {
			continue
		}
		evaluated++
		for _, s := range top {
			if s.MovieID == heldMovie {
				hits++
				break
			}
		}
	}
	if evaluated == 0 {
		return core.EvalMetrics{}, nil
	}

	recall := float64(hits) / float64(evaluated)
	return core.EvalMetrics{
		PrecisionAt10: recall / float64(evalK),
		RecallAt10:    recall,
	}, nil
}
