package rerank

import (
	"context"
	"reflect"
	"testing"

	"github.com/rushteam/filmrec/core"
)

func withGenres(id int64, genres ...string) *core.Item {
	it := core.NewItem(id)
	if len(genres) > 0 {
		it.Meta["genres"] = genres
	}
	return it
}

func itemIDs(items []*core.Item) []int64 {
	out := make([]int64, 0, len(items))
	for _, it := range items {
		out = append(out, it.ID)
	}
	return out
}

func TestTopNNode(t *testing.T) {
	items := []*core.Item{core.NewItem(1), core.NewItem(2), core.NewItem(3)}

	cases := []struct {
		name string
		n    int
		rctx *core.RecommendContext
		want []int64
	}{
		{name: "explicit n", n: 2, want: []int64{1, 2}},
		{name: "falls back to rctx limit", rctx: &core.RecommendContext{Limit: 1}, want: []int64{1}},
		{name: "no limit keeps all", want: []int64{1, 2, 3}},
		{name: "n larger than input", n: 10, want: []int64{1, 2, 3}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			node := &TopNNode{N: tc.n}
			got, err := node.Process(context.Background(), tc.rctx, items)
			if err != nil {
				t.Fatal(err)
			}
			if !reflect.DeepEqual(itemIDs(got), tc.want) {
				t.Errorf("ids = %v, want %v", itemIDs(got), tc.want)
			}
		})
	}
}

func TestDiversity_CapsPrimaryGenre(t *testing.T) {
	items := []*core.Item{
		withGenres(1, "Drama"),
		withGenres(2, "Drama", "Romance"),
		withGenres(3, "Comedy"),
		withGenres(4, "Drama"), // 第三部 Drama，达到上限后第 5 部被跳过
		withGenres(5, "Drama"),
		withGenres(6, "Comedy"),
	}

	node := &Diversity{MaxPerGenre: 3}
	got, err := node.Process(context.Background(), nil, items)
	if err != nil {
		t.Fatal(err)
	}
	// 保序跳过，不重排
	want := []int64{1, 2, 3, 4, 6}
	if !reflect.DeepEqual(itemIDs(got), want) {
		t.Errorf("ids = %v, want %v", itemIDs(got), want)
	}
}

func TestDiversity_GenrelessAlwaysKept(t *testing.T) {
	items := []*core.Item{
		withGenres(1, "Drama"),
		withGenres(2, "Drama"),
		core.NewItem(3), // 无类型信息，不参与控频
		withGenres(4, "Drama"),
		core.NewItem(5),
	}

	node := &Diversity{MaxPerGenre: 2}
	got, err := node.Process(context.Background(), nil, items)
	if err != nil {
		t.Fatal(err)
	}
	want := []int64{1, 2, 3, 5}
	if !reflect.DeepEqual(itemIDs(got), want) {
		t.Errorf("ids = %v, want %v", itemIDs(got), want)
	}
}

func TestDiversity_AnySliceGenres(t *testing.T) {
	it := core.NewItem(1)
	it.Meta["genres"] = []any{"Noir", "Crime"}
	blocked := core.NewItem(2)
	blocked.Meta["genres"] = []any{"Noir"}

	node := &Diversity{MaxPerGenre: 1}
	got, err := node.Process(context.Background(), nil, []*core.Item{it, blocked})
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(itemIDs(got), []int64{1}) {
		t.Errorf("ids = %v, want [1]", itemIDs(got))
	}
}
