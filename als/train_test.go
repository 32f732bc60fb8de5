package als

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/rushteam/filmrec/core"
	"github.com/rushteam/filmrec/dataset"
)

func rating(v float64) *float64 { return &v }

func buildFixtureMatrix(t *testing.T) (*dataset.Matrix, *dataset.IndexMap) {
	t.Helper()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	ins := []core.Interaction{
		{UserID: 1, MovieID: 1, Rating: rating(4.5), Status: core.StatusWatched, UpdatedAt: base},
		{UserID: 1, MovieID: 2, Rating: rating(5.0), Status: core.StatusWatched, UpdatedAt: base},
		{UserID: 1, MovieID: 3, Rating: rating(1.0), Status: core.StatusWatched, UpdatedAt: base},
		{UserID: 2, MovieID: 1, Rating: rating(4.0), Status: core.StatusWatched, UpdatedAt: base},
		{UserID: 2, MovieID: 2, Rating: rating(4.5), Status: core.StatusWatched, UpdatedAt: base},
		{UserID: 2, MovieID: 4, Rating: rating(2.0), Status: core.StatusWatched, UpdatedAt: base},
		{UserID: 3, MovieID: 3, Rating: rating(5.0), Status: core.StatusWatched, UpdatedAt: base},
		{UserID: 3, MovieID: 4, Rating: rating(4.5), Status: core.StatusWatched, UpdatedAt: base},
		{UserID: 3, MovieID: 1, Rating: rating(1.5), Status: core.StatusWatched, UpdatedAt: base},
		{UserID: 4, MovieID: 2, Status: core.StatusWatchlist, UpdatedAt: base},
		{UserID: 4, MovieID: 3, Rating: rating(4.0), Status: core.StatusWatched, UpdatedAt: base},
	}
	m, im, err := dataset.NewBuilder(core.DefaultWeightConfig()).Build(ins)
	if err != nil {
		t.Fatal(err)
	}
	return m, im
}

func smallHyperparams() core.Hyperparams {
	hp := core.DefaultHyperparams()
	hp.Factors = 4
	hp.Iterations = 10
	return hp
}

func TestTrain_ProducesFiniteFactors(t *testing.T) {
	m, im, hp := testTrainInputs(t)

	res, err := Train(context.Background(), m, im, hp)
	if err != nil {
		t.Fatal(err)
	}
	if res.Model == nil {
		t.Fatal("nil model")
	}
	if len(res.Model.UserFactors) != m.Users || len(res.Model.MovieFactors) != m.Movies {
		t.Fatalf("factor dims %dx%d, want %dx%d",
			len(res.Model.UserFactors), len(res.Model.MovieFactors), m.Users, m.Movies)
	}
	for _, row := range res.Model.UserFactors {
		for _, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				t.Fatal("user factors contain NaN/Inf")
			}
		}
	}
	if res.Iterations <= 0 || res.Iterations > hp.Iterations {
		t.Errorf("iterations = %d, want in (0,%d]", res.Iterations, hp.Iterations)
	}
}

func testTrainInputs(t *testing.T) (*dataset.Matrix, *dataset.IndexMap, core.Hyperparams) {
	t.Helper()
	m, im := buildFixtureMatrix(t)
	return m, im, smallHyperparams()
}

func TestTrain_ReproducibleWithSameSeed(t *testing.T) {
	m, im, hp := testTrainInputs(t)

	r1, err := Train(context.Background(), m, im, hp)
	if err != nil {
		t.Fatal(err)
	}
	r2, err := Train(context.Background(), m, im, hp)
	if err != nil {
		t.Fatal(err)
	}

	const tol = 1e-9
	for u := range r1.Model.UserFactors {
		for f := range r1.Model.UserFactors[u] {
			d := math.Abs(r1.Model.UserFactors[u][f] - r2.Model.UserFactors[u][f])
			if d > tol {
				t.Fatalf("user factor (%d,%d) differs by %g", u, f, d)
			}
		}
	}
	for c := range r1.Model.MovieFactors {
		for f := range r1.Model.MovieFactors[c] {
			d := math.Abs(r1.Model.MovieFactors[c][f] - r2.Model.MovieFactors[c][f])
			if d > tol {
				t.Fatalf("movie factor (%d,%d) differs by %g", c, f, d)
			}
		}
	}
}

func TestTrain_FitsObservedPreferences(t *testing.T) {
	m, im, hp := testTrainInputs(t)

	res, err := Train(context.Background(), m, im, hp)
	if err != nil {
		t.Fatal(err)
	}
	model := res.Model

	// 用户 1 高置信交互过电影 2；从未交互过电影 4，预测偏好应显著更低
	liked, err := model.Score(1, 2)
	if err != nil {
		t.Fatal(err)
	}
	unseen, err := model.Score(1, 4)
	if err != nil {
		t.Fatal(err)
	}
	if liked <= unseen {
		t.Errorf("Score(1,2)=%v should exceed Score(1,4)=%v", liked, unseen)
	}
}

func TestTrain_InvalidInputs(t *testing.T) {
	_, im := buildFixtureMatrix(t)
	hp := smallHyperparams()

	tests := []struct {
		name string
		m    *dataset.Matrix
		hp   core.Hyperparams
	}{
		{name: "nil matrix", m: nil, hp: hp},
		{name: "empty matrix", m: &dataset.Matrix{}, hp: hp},
		{
			name: "zero factors",
			m:    &dataset.Matrix{Users: 1, Movies: 1, RowPtr: []int{0, 1}, Cols: []int{0}, Vals: []float64{1}},
			hp:   core.Hyperparams{Factors: 0, Iterations: 5},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Train(context.Background(), tt.m, im, tt.hp); err == nil {
				t.Fatal("expected error, got nil")
			}
		})
	}
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	m, im, hp := testTrainInputs(t)

	res, err := Train(context.Background(), m, im, hp)
	if err != nil {
		t.Fatal(err)
	}

	data, err := res.Model.Encode()
	if err != nil {
		t.Fatal(err)
	}
	decoded, err := Decode(data)
	if err != nil {
		t.Fatal(err)
	}

	// 解码后的模型对任意 (user, movie) 给出相同分数
	for _, uid := range im.UserIDs {
		for _, mid := range im.MovieIDs {
			want, err := res.Model.Score(uid, mid)
			if err != nil {
				t.Fatal(err)
			}
			got, err := decoded.Score(uid, mid)
			if err != nil {
				t.Fatal(err)
			}
			if math.Abs(want-got) > 1e-12 {
				t.Fatalf("Score(%d,%d) = %v after decode, want %v", uid, mid, got, want)
			}
		}
	}
}

func TestDecode_CorruptData(t *testing.T) {
	if _, err := Decode([]byte("not json")); err == nil {
		t.Fatal("expected error for corrupt artifact")
	}
}
