package store

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/rushteam/filmrec/core"
)

func TestMemoryStore_SetGetDelete(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	if _, err := s.Get(ctx, "missing"); err != core.ErrStoreNotFound {
		t.Errorf("Get missing = %v, want ErrStoreNotFound", err)
	}

	if err := s.Set(ctx, "k", []byte("v")); err != nil {
		t.Fatal(err)
	}
	got, err := s.Get(ctx, "k")
	if err != nil || string(got) != "v" {
		t.Fatalf("Get = %q, %v", got, err)
	}

	if err := s.Delete(ctx, "k"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Get(ctx, "k"); err != core.ErrStoreNotFound {
		t.Errorf("Get after delete = %v, want ErrStoreNotFound", err)
	}
}

func TestMemoryStore_TTLExpiry(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	if err := s.Set(ctx, "k", []byte("v"), 1); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Get(ctx, "k"); err != nil {
		t.Fatalf("Get before expiry = %v", err)
	}

	time.Sleep(1100 * time.Millisecond)
	if _, err := s.Get(ctx, "k"); err != core.ErrStoreNotFound {
		t.Errorf("Get after expiry = %v, want ErrStoreNotFound", err)
	}
}

func TestMemoryStore_ZRangeOrdering(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	for member, score := range map[string]float64{"9": 5, "10": 5, "7": 8} {
		if err := s.ZAdd(ctx, "z", score, member); err != nil {
			t.Fatal(err)
		}
	}

	got, err := s.ZRange(ctx, "z", 0, -1)
	if err != nil {
		t.Fatal(err)
	}
	// 分数降序，同分按成员字典序（"10" < "9"）
	want := []string{"7", "10", "9"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ZRange = %v, want %v", got, want)
	}

	top, err := s.ZRange(ctx, "z", 0, 0)
	if err != nil || len(top) != 1 || top[0] != "7" {
		t.Errorf("ZRange top = %v, %v", top, err)
	}
}

func TestFeedbackAdapter_UpsertOverwrites(t *testing.T) {
	ctx := context.Background()
	fb := NewFeedbackAdapter(NewMemoryStore(), "")

	first := core.Interaction{UserID: 1, MovieID: 10, Status: core.StatusWatchlist, UpdatedAt: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)}
	second := first
	second.Status = core.StatusWatched
	second.Rating = ratingOf(4.0)
	second.UpdatedAt = first.UpdatedAt.Add(time.Hour)

	for _, in := range []core.Interaction{first, second} {
		if err := fb.Upsert(ctx, in); err != nil {
			t.Fatal(err)
		}
	}

	ins, err := fb.ListInteractionsForUser(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(ins) != 1 {
		t.Fatalf("len = %d, want 1 (upsert must overwrite)", len(ins))
	}
	if ins[0].Status != core.StatusWatched || ins[0].Rating == nil || *ins[0].Rating != 4.0 {
		t.Errorf("interaction = %+v, want second write", ins[0])
	}
}

func TestFeedbackAdapter_InvalidStatus(t *testing.T) {
	fb := NewFeedbackAdapter(NewMemoryStore(), "")
	err := fb.Upsert(context.Background(), core.Interaction{UserID: 1, MovieID: 2, Status: "deleted"})
	if err == nil {
		t.Fatal("expected error for invalid status")
	}
}

func TestFeedbackAdapter_ListAllOrdering(t *testing.T) {
	ctx := context.Background()
	fb := NewFeedbackAdapter(NewMemoryStore(), "")

	// 乱序写入，遍历必须按 (user_id, movie_id) 升序
	writes := []core.Interaction{
		{UserID: 2, MovieID: 30, Status: core.StatusWatched},
		{UserID: 1, MovieID: 20, Status: core.StatusWatched},
		{UserID: 2, MovieID: 10, Status: core.StatusWatchlist},
		{UserID: 1, MovieID: 10, Status: core.StatusWatched},
	}
	for _, in := range writes {
		if err := fb.Upsert(ctx, in); err != nil {
			t.Fatal(err)
		}
	}

	ins, err := fb.ListAllInteractions(ctx)
	if err != nil {
		t.Fatal(err)
	}
	type key struct{ u, m int64 }
	want := []key{{1, 10}, {1, 20}, {2, 10}, {2, 30}}
	if len(ins) != len(want) {
		t.Fatalf("len = %d, want %d", len(ins), len(want))
	}
	for i, w := range want {
		if ins[i].UserID != w.u || ins[i].MovieID != w.m {
			t.Fatalf("ins[%d] = (%d,%d), want (%d,%d)", i, ins[i].UserID, ins[i].MovieID, w.u, w.m)
		}
	}
}

func TestFeedbackAdapter_UserHistoryOrderedByTime(t *testing.T) {
	ctx := context.Background()
	fb := NewFeedbackAdapter(NewMemoryStore(), "")

	base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	writes := []core.Interaction{
		{UserID: 1, MovieID: 3, Status: core.StatusWatched, UpdatedAt: base.Add(2 * time.Hour)},
		{UserID: 1, MovieID: 1, Status: core.StatusWatched, UpdatedAt: base},
		{UserID: 1, MovieID: 2, Status: core.StatusWatched, UpdatedAt: base.Add(time.Hour)},
	}
	for _, in := range writes {
		if err := fb.Upsert(ctx, in); err != nil {
			t.Fatal(err)
		}
	}

	ins, err := fb.ListInteractionsForUser(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	var got []int64
	for _, in := range ins {
		got = append(got, in.MovieID)
	}
	if !reflect.DeepEqual(got, []int64{1, 2, 3}) {
		t.Errorf("history = %v, want [1 2 3] (UpdatedAt asc)", got)
	}
}

func TestMetadataAdapter_GetAndTitleLookup(t *testing.T) {
	ctx := context.Background()
	md := NewMetadataAdapter(NewMemoryStore(), "")

	meta := core.MovieMetadata{MovieID: 42, Title: "Solaris", Genres: []string{"SciFi"}, Popularity: 12.5, ReleaseYear: 1972}
	if err := md.Put(ctx, meta); err != nil {
		t.Fatal(err)
	}

	got, err := md.GetMetadata(ctx, 42)
	if err != nil {
		t.Fatal(err)
	}
	if got.Title != "Solaris" || got.ReleaseYear != 1972 {
		t.Errorf("GetMetadata = %+v", got)
	}

	byTitle, err := md.GetByTitle(ctx, "Solaris")
	if err != nil || byTitle.MovieID != 42 {
		t.Errorf("GetByTitle = %+v, %v", byTitle, err)
	}

	if _, err := md.GetMetadata(ctx, 999); !core.IsNotFound(err) {
		t.Errorf("missing movie: got %v, want not found", err)
	}
	if _, err := md.GetByTitle(ctx, "No Such"); !core.IsNotFound(err) {
		t.Errorf("missing title: got %v, want not found", err)
	}
}

func TestMetadataAdapter_ListByPopularity(t *testing.T) {
	ctx := context.Background()
	md := NewMetadataAdapter(NewMemoryStore(), "")

	movies := []core.MovieMetadata{
		{MovieID: 9, Title: "A", Genres: []string{"Drama"}, Popularity: 50},
		{MovieID: 2, Title: "B", Genres: []string{"Drama"}, Popularity: 50}, // 同热度按 id 升序
		{MovieID: 5, Title: "C", Genres: []string{"Comedy"}, Popularity: 80},
		{MovieID: 7, Title: "D", Genres: []string{"Drama"}, Popularity: 70},
	}
	for _, m := range movies {
		if err := md.Put(ctx, m); err != nil {
			t.Fatal(err)
		}
	}

	all, err := md.ListByPopularity(ctx, nil, 0)
	if err != nil {
		t.Fatal(err)
	}
	var ids []int64
	for _, m := range all {
		ids = append(ids, m.MovieID)
	}
	if !reflect.DeepEqual(ids, []int64{5, 7, 2, 9}) {
		t.Errorf("order = %v, want [5 7 2 9]", ids)
	}

	dramas, err := md.ListByPopularity(ctx, &core.MovieFilters{Genres: []string{"Drama"}}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(dramas) != 2 || dramas[0].MovieID != 7 || dramas[1].MovieID != 2 {
		t.Errorf("dramas = %+v, want movies 7 then 2", dramas)
	}
}

func TestPreferenceAdapter(t *testing.T) {
	ctx := context.Background()
	pa := NewPreferenceAdapter(NewMemoryStore(), "")

	if _, err := pa.GetPreferences(ctx, 7); !core.IsNotFound(err) {
		t.Errorf("unset preferences: got %v, want not found", err)
	}

	prefs := core.UserPreferences{UserID: 7, Genres: []string{"Horror", "Thriller"}, Languages: []string{"ko"}}
	if err := pa.PutPreferences(ctx, prefs); err != nil {
		t.Fatal(err)
	}
	got, err := pa.GetPreferences(ctx, 7)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got.Genres, prefs.Genres) || !reflect.DeepEqual(got.Languages, prefs.Languages) {
		t.Errorf("prefs = %+v, want %+v", got, prefs)
	}

	f := got.Filters()
	if f == nil || len(f.Genres) != 2 || len(f.Languages) != 1 {
		t.Errorf("Filters = %+v", f)
	}

	if err := pa.PutPreferences(ctx, core.UserPreferences{Genres: []string{"Drama"}}); err == nil {
		t.Error("expected error for missing user id")
	}
}

func ratingOf(v float64) *float64 { return &v }
