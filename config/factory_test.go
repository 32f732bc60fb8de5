package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rushteam/filmrec/core"
	"github.com/rushteam/filmrec/embedding"
	"github.com/rushteam/filmrec/pipeline"
	"github.com/rushteam/filmrec/registry"
	"github.com/rushteam/filmrec/store"
)

const guestPipelineYAML = `
pipeline:
  name: guest
  nodes:
    - type: recall.hot
      config:
        limit: 10
    - type: filter
      config:
        filters:
          - type: metadata
    - type: rank.fusion
      config:
        alpha: 0.6
    - type: rerank.topn
      config:
        n: 3
`

func testDeps(t *testing.T) Deps {
	t.Helper()
	ctx := context.Background()

	ms := store.NewMemoryStore()
	md := store.NewMetadataAdapter(ms, "")
	movies := []core.MovieMetadata{
		{MovieID: 1, Title: "A", Genres: []string{"Drama"}, Popularity: 90},
		{MovieID: 2, Title: "B", Genres: []string{"Drama"}, Popularity: 80},
		{MovieID: 3, Title: "C", Genres: []string{"Comedy"}, Popularity: 70},
		{MovieID: 4, Title: "D", Genres: []string{"Comedy"}, Popularity: 60},
	}
	for _, m := range movies {
		if err := md.Put(ctx, m); err != nil {
			t.Fatal(err)
		}
	}

	return Deps{
		Registry: registry.New(ms),
		Feedback: store.NewFeedbackAdapter(ms, ""),
		Metadata: md,
		Index:    embedding.NewMemoryIndex(),
		Store:    ms,
	}
}

func TestBuildPipelineFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pipeline.yaml")
	if err := os.WriteFile(path, []byte(guestPipelineYAML), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := pipeline.LoadFromYAML(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Pipeline.Name != "guest" {
		t.Errorf("name = %q, want guest", cfg.Pipeline.Name)
	}

	p, err := cfg.BuildPipeline(NewFactory(testDeps(t)))
	if err != nil {
		t.Fatal(err)
	}
	if len(p.Nodes) != 4 {
		t.Fatalf("nodes = %d, want 4", len(p.Nodes))
	}

	items, err := p.Run(context.Background(), &core.RecommendContext{Limit: 10}, nil)
	if err != nil {
		t.Fatal(err)
	}
	// topn n=3 截断，热度降序
	if len(items) != 3 {
		t.Fatalf("len = %d, want 3", len(items))
	}
	if items[0].ID != 1 || items[1].ID != 2 || items[2].ID != 3 {
		t.Errorf("order = [%d %d %d], want [1 2 3]", items[0].ID, items[1].ID, items[2].ID)
	}
}

func TestBuildFanoutWithSources(t *testing.T) {
	factory := NewFactory(testDeps(t))

	node, err := factory.Build("recall.fanout", map[string]interface{}{
		"dedup":   true,
		"timeout": 0.5,
		"sources": []interface{}{
			map[string]interface{}{"type": "collaborative", "k": 20},
			map[string]interface{}{"type": "similar", "per_seed_k": 10},
			map[string]interface{}{"type": "hot", "limit": 5},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if node.Name() == "" {
		t.Error("expected named node")
	}

	// 无模型、无交互：协同路静默缺席，hot 路兜底依然有产出
	items, err := node.Process(context.Background(), &core.RecommendContext{Limit: 5}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) == 0 {
		t.Fatal("expected hot source output")
	}
}

func TestBuildSource_MissingDeps(t *testing.T) {
	factory := NewFactory(Deps{})

	_, err := factory.Build("recall.fanout", map[string]interface{}{
		"sources": []interface{}{
			map[string]interface{}{"type": "collaborative"},
		},
	})
	if err == nil {
		t.Error("collaborative without registry should fail")
	}

	_, err = factory.Build("recall.fanout", map[string]interface{}{
		"sources": []interface{}{
			map[string]interface{}{"type": "similar"},
		},
	})
	if err == nil {
		t.Error("similar without index should fail")
	}
}

func TestBuildFilterNode(t *testing.T) {
	factory := NewFactory(testDeps(t))

	cases := []struct {
		name    string
		cfg     map[string]interface{}
		wantErr bool
	}{
		{
			name: "watched and metadata filters",
			cfg: map[string]interface{}{
				"filters": []interface{}{
					map[string]interface{}{"type": "watched"},
					map[string]interface{}{"type": "metadata"},
				},
			},
		},
		{
			name: "bloom filter with capacity",
			cfg: map[string]interface{}{
				"filters": []interface{}{
					map[string]interface{}{"type": "watched_bloom", "capacity": 1000, "false_positive_rate": 0.01},
				},
			},
		},
		{
			name: "dsl filter",
			cfg: map[string]interface{}{
				"filters": []interface{}{
					map[string]interface{}{"type": "dsl", "expr": `item.Score > 0.0`},
				},
			},
		},
		{
			name: "dsl without expr",
			cfg: map[string]interface{}{
				"filters": []interface{}{
					map[string]interface{}{"type": "dsl"},
				},
			},
			wantErr: true,
		},
		{
			name: "unknown filter type",
			cfg: map[string]interface{}{
				"filters": []interface{}{
					map[string]interface{}{"type": "nope"},
				},
			},
			wantErr: true,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := factory.Build("filter", tc.cfg)
			if (err != nil) != tc.wantErr {
				t.Errorf("err = %v, wantErr = %v", err, tc.wantErr)
			}
		})
	}
}

func TestBuild_UnknownNodeType(t *testing.T) {
	factory := NewFactory(testDeps(t))
	if _, err := factory.Build("rank.dnn", nil); err == nil {
		t.Error("expected unknown node type error")
	}
}
