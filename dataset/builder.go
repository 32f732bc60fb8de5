package dataset

import (
	"sort"

	"github.com/rushteam/filmrec/core"
)

// Builder 把交互快照转换为置信度加权的稀疏矩阵与稠密索引映射。
//
// 确定性契约：同一快照两次构建，产出完全相同的索引映射与矩阵值。
// 实现上先按 (user_id, movie_id) 稳定排序再编号，保证同快照重训可复现。
//
// 置信度换算：
//   - 带评分（无论 watchlist/watched）：weight = 1 + RatingScale*rating
//   - 仅隐式信号（watchlist/watched 无评分）：weight = ImplicitWeight，
//     必须小于任何带评分交互的最小权重
//   - status=none 且无评分的记录不产生权重，直接忽略
//
// 交互数低于门槛的用户/电影整行（列）剔除，不留零行，避免退化分解。
type Builder struct {
	Weights core.WeightConfig
}

// NewBuilder 创建矩阵构建器；cfg 为零值时使用默认权重配置。
func NewBuilder(cfg core.WeightConfig) *Builder {
	if cfg.RatingScale == 0 && cfg.ImplicitWeight == 0 {
		cfg = core.DefaultWeightConfig()
	}
	return &Builder{Weights: cfg}
}

// Weight 返回单条交互的置信度权重；0 表示该条不进入矩阵。
func (b *Builder) Weight(in core.Interaction) float64 {
	if in.HasRating() {
		r := *in.Rating
		if r < 0.5 || r > 5 {
			return 0
		}
		return 1 + b.Weights.RatingScale*r
	}
	switch in.Status {
	case core.StatusWatchlist, core.StatusWatched:
		return b.Weights.ImplicitWeight
	default:
		return 0
	}
}

// Build 构建稀疏矩阵与索引映射。
func (b *Builder) Build(interactions []core.Interaction) (*Matrix, *IndexMap, error) {
	minRated := 1 + b.Weights.RatingScale*0.5
	if b.Weights.ImplicitWeight >= minRated {
		return nil, nil, core.NewDomainError(core.ModuleDataset, core.ErrorCodeInvalidInput,
			"dataset: implicit weight must be below the minimum rated weight")
	}

	// upsert 语义的兜底：同 (user, movie) 保留 UpdatedAt 最新的一条。
	type pairKey struct{ user, movie int64 }
	latest := make(map[pairKey]core.Interaction, len(interactions))
	for _, in := range interactions {
		k := pairKey{in.UserID, in.MovieID}
		if old, ok := latest[k]; ok && old.UpdatedAt.After(in.UpdatedAt) {
			continue
		}
		latest[k] = in
	}

	type weighted struct {
		user, movie int64
		weight      float64
	}
	rows := make([]weighted, 0, len(latest))
	for _, in := range latest {
		w := b.Weight(in)
		if w <= 0 {
			continue
		}
		rows = append(rows, weighted{user: in.UserID, movie: in.MovieID, weight: w})
	}

	// 交互数门槛：不足门槛的用户/电影连同其交互一起剔除。
	// 剔除可能级联（电影被删后用户交互数下降），迭代至收敛。
	minUser := b.Weights.MinUserInteractions
	minMovie := b.Weights.MinMovieInteractions
	if minUser < 1 {
		minUser = 1
	}
	if minMovie < 1 {
		minMovie = 1
	}
	for {
		userCount := make(map[int64]int)
		movieCount := make(map[int64]int)
		for _, r := range rows {
			userCount[r.user]++
			movieCount[r.movie]++
		}
		kept := rows[:0]
		for _, r := range rows {
			if userCount[r.user] >= minUser && movieCount[r.movie] >= minMovie {
				kept = append(kept, r)
			}
		}
		if len(kept) == len(rows) {
			rows = kept
			break
		}
		rows = kept
	}

	// 稳定排序：user_id 升序，movie_id 升序。编号顺序由此唯一确定。
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].user != rows[j].user {
			return rows[i].user < rows[j].user
		}
		return rows[i].movie < rows[j].movie
	})

	im := &IndexMap{}
	seenUser := make(map[int64]struct{})
	seenMovie := make(map[int64]struct{})
	for _, r := range rows {
		if _, ok := seenUser[r.user]; !ok {
			seenUser[r.user] = struct{}{}
			im.UserIDs = append(im.UserIDs, r.user)
		}
		if _, ok := seenMovie[r.movie]; !ok {
			seenMovie[r.movie] = struct{}{}
			im.MovieIDs = append(im.MovieIDs, r.movie)
		}
	}
	// UserIDs 已因排序天然升序；MovieIDs 需单独排序。
	sort.Slice(im.MovieIDs, func(i, j int) bool { return im.MovieIDs[i] < im.MovieIDs[j] })
	im.BuildLookups()

	m := &Matrix{
		Users:  len(im.UserIDs),
		Movies: len(im.MovieIDs),
		RowPtr: make([]int, len(im.UserIDs)+1),
		Cols:   make([]int, 0, len(rows)),
		Vals:   make([]float64, 0, len(rows)),
	}
	cur := 0
	for _, r := range rows {
		u, _ := im.UserRow(r.user)
		c, _ := im.MovieCol(r.movie)
		for cur < u {
			cur++
			m.RowPtr[cur] = len(m.Cols)
		}
		m.Cols = append(m.Cols, c)
		m.Vals = append(m.Vals, r.weight)
	}
	for cur < m.Users {
		cur++
		m.RowPtr[cur] = len(m.Cols)
	}

	return m, im, nil
}
