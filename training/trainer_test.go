package training

import (
	"context"
	"testing"
	"time"

	"github.com/rushteam/filmrec/core"
	"github.com/rushteam/filmrec/registry"
	"github.com/rushteam/filmrec/store"
)

func rating(v float64) *float64 { return &v }

func smallHyperparams() core.Hyperparams {
	return core.Hyperparams{
		Factors:        4,
		Regularization: 0.1,
		Iterations:     8,
		Seed:           7,
	}
}

// seedFeedback 写入 5 用户 x 6 电影的交互，保证每个用户有 >=2 个正反馈
// （留一法才有可评估用户）。
func seedFeedback(t *testing.T) *store.FeedbackAdapter {
	t.Helper()
	ctx := context.Background()
	fb := store.NewFeedbackAdapter(store.NewMemoryStore(), "")

	base := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	type rec struct {
		user, movie int64
		r           float64
	}
	recs := []rec{
		{1, 1, 5.0}, {1, 2, 4.5}, {1, 3, 4.0},
		{2, 1, 4.0}, {2, 2, 5.0}, {2, 4, 3.5},
		{3, 2, 4.5}, {3, 3, 5.0}, {3, 5, 4.0},
		{4, 3, 4.0}, {4, 4, 4.5}, {4, 6, 5.0},
		{5, 1, 3.5}, {5, 5, 5.0}, {5, 6, 4.0},
	}
	for i, rc := range recs {
		in := core.Interaction{
			UserID:    rc.user,
			MovieID:   rc.movie,
			Rating:    rating(rc.r),
			Status:    core.StatusWatched,
			UpdatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := fb.Upsert(ctx, in); err != nil {
			t.Fatal(err)
		}
	}
	return fb
}

func TestRetrain_PromotesFirstModel(t *testing.T) {
	ctx := context.Background()
	fb := seedFeedback(t)
	reg := registry.New(store.NewMemoryStore())
	tr := NewTrainer(fb, reg, WithHyperparams(smallHyperparams()))

	v, err := tr.Retrain(ctx, "snap-1")
	if err != nil {
		t.Fatal(err)
	}
	if v.Status != core.ModelStatusReady {
		t.Fatalf("status = %s, want ready", v.Status)
	}
	if v.Metrics.Users != 5 || v.Metrics.Movies != 6 {
		t.Errorf("metrics dims = %d x %d, want 5 x 6", v.Metrics.Users, v.Metrics.Movies)
	}

	cur, err := reg.Current()
	if err != nil {
		t.Fatal(err)
	}
	if cur.VersionID != v.VersionID {
		t.Errorf("current = %s, want %s (first model promoted unconditionally)", cur.VersionID, v.VersionID)
	}

	model, _, err := reg.CurrentModel()
	if err != nil {
		t.Fatal(err)
	}
	if !model.HasUser(1) {
		t.Error("decoded production model misses trained user")
	}
}

func TestRetrain_KeepsCurrentOnEqualMetrics(t *testing.T) {
	ctx := context.Background()
	fb := seedFeedback(t)
	reg := registry.New(store.NewMemoryStore())
	tr := NewTrainer(fb, reg, WithHyperparams(smallHyperparams()))

	first, err := tr.Retrain(ctx, "snap-1")
	if err != nil {
		t.Fatal(err)
	}
	// 相同数据相同种子，第二次的 precision@10 不会严格更优
	second, err := tr.Retrain(ctx, "snap-2")
	if err != nil {
		t.Fatal(err)
	}

	cur, err := reg.Current()
	if err != nil {
		t.Fatal(err)
	}
	if cur.VersionID != first.VersionID {
		t.Errorf("current = %s, want first version %s", cur.VersionID, first.VersionID)
	}

	// 落选版本保留为 ready，不被清理
	got, err := reg.Get(ctx, second.VersionID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != core.ModelStatusReady {
		t.Errorf("losing candidate status = %s, want ready", got.Status)
	}
}

func TestRetrain_EmptySnapshot(t *testing.T) {
	ctx := context.Background()
	fb := store.NewFeedbackAdapter(store.NewMemoryStore(), "")
	reg := registry.New(store.NewMemoryStore())
	tr := NewTrainer(fb, reg, WithHyperparams(smallHyperparams()))

	if _, err := tr.Retrain(ctx, "snap-empty"); err == nil {
		t.Fatal("expected error for empty snapshot")
	}

	// 失败版本要登记为 failed，而不是停留在 training
	ids, err := reg.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 1 {
		t.Fatalf("versions = %v, want exactly one", ids)
	}
	v, err := reg.Get(ctx, ids[0])
	if err != nil {
		t.Fatal(err)
	}
	if v.Status != core.ModelStatusFailed {
		t.Errorf("status = %s, want failed", v.Status)
	}
	if _, err := reg.Current(); !core.IsNoModel(err) {
		t.Errorf("Current = %v, want no model", err)
	}
}

func TestTriggerRetrain_Async(t *testing.T) {
	ctx := context.Background()
	fb := seedFeedback(t)
	reg := registry.New(store.NewMemoryStore())
	tr := NewTrainer(fb, reg, WithHyperparams(smallHyperparams()))

	versionID, err := tr.TriggerRetrain(ctx, "snap-1")
	if err != nil {
		t.Fatal(err)
	}
	if versionID == "" {
		t.Fatal("expected version id")
	}

	deadline := time.Now().Add(10 * time.Second)
	for {
		v, err := reg.Get(ctx, versionID)
		if err != nil {
			t.Fatal(err)
		}
		if v.Status == core.ModelStatusReady {
			break
		}
		if v.Status == core.ModelStatusFailed {
			t.Fatal("training failed")
		}
		if time.Now().After(deadline) {
			t.Fatalf("training did not finish, status = %s", v.Status)
		}
		time.Sleep(20 * time.Millisecond)
	}

	cur, err := reg.Current()
	if err != nil {
		t.Fatal(err)
	}
	if cur.VersionID != versionID {
		t.Errorf("current = %s, want %s", cur.VersionID, versionID)
	}
}

// blockingFeedback 在 ListAllInteractions 上阻塞，用于测试并发触发护栏。
type blockingFeedback struct {
	inner   core.FeedbackStore
	release chan struct{}
}

func (b *blockingFeedback) ListAllInteractions(ctx context.Context) ([]core.Interaction, error) {
	<-b.release
	return b.inner.ListAllInteractions(ctx)
}

func (b *blockingFeedback) ListInteractionsForUser(ctx context.Context, userID int64) ([]core.Interaction, error) {
	return b.inner.ListInteractionsForUser(ctx, userID)
}

func TestTriggerRetrain_RejectsConcurrent(t *testing.T) {
	ctx := context.Background()
	fb := &blockingFeedback{inner: seedFeedback(t), release: make(chan struct{})}
	reg := registry.New(store.NewMemoryStore())
	tr := NewTrainer(fb, reg, WithHyperparams(smallHyperparams()))

	versionID, err := tr.TriggerRetrain(ctx, "snap-1")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := tr.TriggerRetrain(ctx, "snap-2"); !core.IsUnavailable(err) {
		t.Errorf("second trigger = %v, want unavailable", err)
	}
	if _, err := tr.Retrain(ctx, "snap-3"); !core.IsUnavailable(err) {
		t.Errorf("sync retrain during run = %v, want unavailable", err)
	}

	close(fb.release)
	deadline := time.Now().Add(10 * time.Second)
	for {
		v, err := reg.Get(ctx, versionID)
		if err != nil {
			t.Fatal(err)
		}
		if v.Status != core.ModelStatusTraining {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("training stuck after release")
		}
		time.Sleep(20 * time.Millisecond)
	}
}
