package als

import (
	"context"
	"math"
	"math/rand"
	"runtime"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"github.com/rushteam/filmrec/core"
	"github.com/rushteam/filmrec/dataset"
)

// TrainResult 附带训练过程的观测量。
type TrainResult struct {
	Model *Model

	// FinalErr 是最后一轮的加权重构误差（含正则项）。
	FinalErr float64

	// Iterations 是实际执行的轮数（可能因收敛提前结束）。
	Iterations int
}

// Train 在置信度矩阵上训练 ALS 模型。
//
// 给定固定的 Seed 与超参数，同一矩阵重训产出的因子在数值容差内一致：
// 因子初始化完全由 Seed 决定，交替求解按固定的行序执行（并发只分摊行级求解，
// 每行的解与执行顺序无关）。
//
// 训练失败（求解矩阵非正定、因子出现 NaN/Inf）返回 TRAINING_FAILED，
// 调用方应把版本标记为 failed，绝不提升。
func Train(ctx context.Context, m *dataset.Matrix, im *dataset.IndexMap, hp core.Hyperparams) (*TrainResult, error) {
	if m == nil || m.Users == 0 || m.Movies == 0 {
		return nil, core.NewDomainError(core.ModuleModel, core.ErrorCodeInvalidInput, "als: empty interaction matrix")
	}
	if hp.Factors <= 0 || hp.Iterations <= 0 {
		return nil, core.NewDomainError(core.ModuleModel, core.ErrorCodeInvalidInput, "als: factors and iterations must be positive")
	}

	f := hp.Factors
	rng := rand.New(rand.NewSource(hp.Seed))
	users := initFactors(rng, m.Users, f)
	movies := initFactors(rng, m.Movies, f)

	mt := m.Transpose()

	var prevErr = math.Inf(1)
	var lastErr float64
	iters := 0
	for it := 0; it < hp.Iterations; it++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		// 固定电影因子解用户因子，再反向。
		if err := solveSide(ctx, m, users, movies, hp.Regularization); err != nil {
			return nil, err
		}
		if err := solveSide(ctx, mt, movies, users, hp.Regularization); err != nil {
			return nil, err
		}
		iters++

		lastErr = reconstructionErr(m, users, movies, hp.Regularization)
		if math.IsNaN(lastErr) || math.IsInf(lastErr, 0) {
			return nil, core.NewDomainError(core.ModuleModel, core.ErrorCodeTrainingFailed, "als: reconstruction error diverged")
		}
		if hp.ConvergenceTol > 0 && math.Abs(prevErr-lastErr) < hp.ConvergenceTol {
			break
		}
		prevErr = lastErr
	}

	if hasDegenerate(users) || hasDegenerate(movies) {
		return nil, core.NewDomainError(core.ModuleModel, core.ErrorCodeTrainingFailed, "als: degenerate factors (NaN/Inf)")
	}

	return &TrainResult{
		Model: &Model{
			Factors:      f,
			UserFactors:  users,
			MovieFactors: movies,
			Index:        im,
		},
		FinalErr:   lastErr,
		Iterations: iters,
	}, nil
}

// initFactors 用固定种子生成小随机初始因子。
func initFactors(rng *rand.Rand, n, f int) [][]float64 {
	out := make([][]float64, n)
	for i := range out {
		row := make([]float64, f)
		for j := range row {
			row[j] = rng.Float64() * 0.01
		}
		out[i] = row
	}
	return out
}

// solveSide 固定 fixed 一侧因子，逐行求解 target 一侧的带权最小二乘：
//
//	(YtY + Yt(Cu−I)Y + λI) xu = Yt Cu pu
//
// YtY 只算一次；每行再叠加观测项的 (c−1)·y·yᵀ 低秩修正。
// 行与行相互独立，用 errgroup 并发分摊。
func solveSide(ctx context.Context, m *dataset.Matrix, target, fixed [][]float64, reg float64) error {
	f := len(fixed[0])
	yty := gramMatrix(fixed, f)

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(runtime.GOMAXPROCS(0))

	for u := 0; u < m.Users; u++ {
		u := u
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			cols, vals := m.Row(u)

			// A = YtY + λI + Σ (c−1)·y·yᵀ ；b = Σ c·y
			a := mat.NewSymDense(f, nil)
			a.CopySym(yty)
			for i := 0; i < f; i++ {
				a.SetSym(i, i, a.At(i, i)+reg)
			}
			b := mat.NewVecDense(f, nil)
			for i, c := range cols {
				conf := vals[i]
				y := mat.NewVecDense(f, fixed[c])
				a.SymRankOne(a, conf-1, y)
				b.AddScaledVec(b, conf, y)
			}

			var chol mat.Cholesky
			if ok := chol.Factorize(a); !ok {
				return core.NewDomainError(core.ModuleModel, core.ErrorCodeTrainingFailed, "als: normal equations not positive definite")
			}
			x := mat.NewVecDense(f, target[u])
			if err := chol.SolveVecTo(x, b); err != nil {
				return core.NewDomainError(core.ModuleModel, core.ErrorCodeTrainingFailed, "als: solve failed: "+err.Error())
			}
			return nil
		})
	}
	return eg.Wait()
}

// gramMatrix 计算 YᵀY（f×f 对称阵）。
func gramMatrix(y [][]float64, f int) *mat.SymDense {
	g := mat.NewSymDense(f, nil)
	for i := 0; i < f; i++ {
		for j := i; j < f; j++ {
			var sum float64
			for _, row := range y {
				sum += row[i] * row[j]
			}
			g.SetSym(i, j, sum)
		}
	}
	return g
}

// reconstructionErr 计算观测项的加权重构误差加正则项。
func reconstructionErr(m *dataset.Matrix, users, movies [][]float64, reg float64) float64 {
	var errSum float64
	for u := 0; u < m.Users; u++ {
		cols, vals := m.Row(u)
		for i, c := range cols {
			d := 1 - dot(users[u], movies[c])
			errSum += vals[i] * d * d
		}
	}
	for _, row := range users {
		errSum += reg * dot(row, row)
	}
	for _, row := range movies {
		errSum += reg * dot(row, row)
	}
	return errSum
}

func hasDegenerate(factors [][]float64) bool {
	for _, row := range factors {
		for _, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return true
			}
		}
	}
	return false
}
