// Package als 实现隐式反馈的交替最小二乘矩阵分解（Hu-Koren-Volinsky 形式）：
// 观测到的交互视为偏好 1，置信度为矩阵权重，交替固定一侧因子求解另一侧的
// 带权最小二乘，直至轮数上限或重构误差收敛。
package als

import (
	"sort"

	"github.com/rushteam/filmrec/core"
	"github.com/rushteam/filmrec/dataset"
)

// Model 是一次训练产出的隐因子模型。
// 训练完成后不可变：因子矩阵与索引映射归属唯一的模型版本，绝不跨版本共享，
// 服务路径可无协调并发读取。
type Model struct {
	// Factors 是隐因子维度。
	Factors int

	// UserFactors[row] / MovieFactors[col] 是稠密下标对应的隐向量。
	UserFactors  [][]float64
	MovieFactors [][]float64

	// Index 是训练快照的稠密索引映射，随模型一起持久化。
	Index *dataset.IndexMap
}

// ScoredMovie 是 TopK 的单条结果。
type ScoredMovie struct {
	MovieID int64
	Score   float64
}

// HasUser 判断用户是否在训练索引中。不在即冷启动，调用方应降级到内容路径。
func (m *Model) HasUser(userID int64) bool {
	if m == nil || m.Index == nil {
		return false
	}
	_, ok := m.Index.UserRow(userID)
	return ok
}

// HasMovie 判断电影是否在训练索引中。
func (m *Model) HasMovie(movieID int64) bool {
	if m == nil || m.Index == nil {
		return false
	}
	_, ok := m.Index.MovieCol(movieID)
	return ok
}

// Score 返回 (user, movie) 的预测偏好：对应隐向量的点积，O(Factors)。
// 用户不在索引中返回 ErrColdStartUser；电影不在索引中返回 NOT_FOUND。
// 缺因子时绝不编造分数，由调用方决定降级。
func (m *Model) Score(userID, movieID int64) (float64, error) {
	row, ok := m.Index.UserRow(userID)
	if !ok {
		return 0, core.ErrColdStartUser
	}
	col, ok := m.Index.MovieCol(movieID)
	if !ok {
		return 0, core.NewDomainError(core.ModuleModel, core.ErrorCodeNotFound, "model: movie not in trained index")
	}
	return dot(m.UserFactors[row], m.MovieFactors[col]), nil
}

// TopK 对用户未排除的全部电影列打分，返回分数最高的 k 部。
// 同分按电影列升序（即 movie_id 升序），保证结果确定。
// exclude 以外部电影 ID 表达（通常是用户已评分/已加清单的电影）。
func (m *Model) TopK(userID int64, k int, exclude map[int64]struct{}) ([]ScoredMovie, error) {
	row, ok := m.Index.UserRow(userID)
	if !ok {
		return nil, core.ErrColdStartUser
	}
	if k <= 0 {
		return nil, nil
	}

	uv := m.UserFactors[row]
	scored := make([]ScoredMovie, 0, len(m.MovieFactors))
	for col, mv := range m.MovieFactors {
		movieID := m.Index.MovieAt(col)
		if exclude != nil {
			if _, skip := exclude[movieID]; skip {
				continue
			}
		}
		scored = append(scored, ScoredMovie{MovieID: movieID, Score: dot(uv, mv)})
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].MovieID < scored[j].MovieID
	})
	if len(scored) > k {
		scored = scored[:k]
	}
	return scored, nil
}

func dot(a, b []float64) float64 {
	var sum float64
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}
