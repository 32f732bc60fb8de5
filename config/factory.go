// Package config 根据 YAML/JSON 配置构建推荐 Pipeline。
// Node 依赖的领域组件（模型注册处、反馈台账、元数据库、向量索引）
// 不可能从配置里长出来，统一通过 Deps 注入。
package config

import (
	"fmt"
	"time"

	"github.com/rushteam/filmrec/core"
	"github.com/rushteam/filmrec/filter"
	"github.com/rushteam/filmrec/pipeline"
	"github.com/rushteam/filmrec/pkg/conv"
	"github.com/rushteam/filmrec/rank"
	"github.com/rushteam/filmrec/recall"
	"github.com/rushteam/filmrec/registry"
	"github.com/rushteam/filmrec/rerank"
)

// Deps 是配置驱动构建时注入的领域组件。
// 某个字段为 nil 时，依赖它的 Node 构建会报错。
type Deps struct {
	Registry *registry.Registry
	Feedback core.FeedbackStore
	Metadata core.MetadataStore
	Index    core.EmbeddingIndex
	Store    core.Store
}

// NewFactory 返回注册了全部内置 Node 的工厂。
func NewFactory(deps Deps) *pipeline.NodeFactory {
	factory := pipeline.NewNodeFactory()

	factory.Register("recall.fanout", buildFanoutNode(deps))
	factory.Register("recall.hot", buildHotNode(deps))
	factory.Register("filter", buildFilterNode(deps))
	factory.Register("rank.fusion", buildFusionNode(deps))
	factory.Register("rerank.topn", buildTopNNode)
	factory.Register("rerank.diversity", buildDiversityNode)

	return factory
}

func buildFanoutNode(deps Deps) pipeline.NodeBuilder {
	return func(cfg map[string]interface{}) (pipeline.Node, error) {
		sourcesConfig, ok := cfg["sources"].([]interface{})
		if !ok {
			return nil, fmt.Errorf("sources not found or invalid")
		}

		sources := make([]recall.Source, 0, len(sourcesConfig))
		for _, sc := range sourcesConfig {
			sourceMap, ok := sc.(map[string]interface{})
			if !ok {
				continue
			}
			src, err := buildSource(deps, sourceMap)
			if err != nil {
				return nil, err
			}
			sources = append(sources, src)
		}

		fanout := &recall.Fanout{
			Sources:       sources,
			Dedup:         conv.ConfigGet(cfg, "dedup", true),
			MergeStrategy: conv.ConfigGet(cfg, "merge_strategy", ""),
		}
		if sec := conv.ConfigGetFloat64(cfg, "timeout", 0); sec > 0 {
			fanout.Timeout = time.Duration(sec * float64(time.Second))
		}
		if n := conv.ConfigGetInt(cfg, "max_concurrent", 0); n > 0 {
			fanout.MaxConcurrent = n
		}
		return fanout, nil
	}
}

func buildSource(deps Deps, cfg map[string]interface{}) (recall.Source, error) {
	sourceType := conv.ConfigGet(cfg, "type", "")
	switch sourceType {
	case "collaborative":
		if deps.Registry == nil {
			return nil, fmt.Errorf("collaborative source requires registry")
		}
		return &recall.Collaborative{
			Registry:   deps.Registry,
			Feedback:   deps.Feedback,
			K:          conv.ConfigGetInt(cfg, "k", 0),
			Multiplier: conv.ConfigGetInt(cfg, "multiplier", 0),
		}, nil
	case "similar":
		if deps.Index == nil {
			return nil, fmt.Errorf("similar source requires embedding index")
		}
		return &recall.Similar{
			Index:         deps.Index,
			Metadata:      deps.Metadata,
			Feedback:      deps.Feedback,
			PerSeedK:      conv.ConfigGetInt(cfg, "per_seed_k", 0),
			Multiplier:    conv.ConfigGetInt(cfg, "multiplier", 0),
			RecentSeeds:   conv.ConfigGetInt(cfg, "recent_seeds", 0),
			SeedMinRating: conv.ConfigGetFloat64(cfg, "seed_min_rating", 0),
		}, nil
	case "hot":
		return &recall.Hot{
			Metadata: deps.Metadata,
			Limit:    conv.ConfigGetInt(cfg, "limit", 0),
		}, nil
	default:
		return nil, fmt.Errorf("unknown source type: %s", sourceType)
	}
}

func buildHotNode(deps Deps) pipeline.NodeBuilder {
	return func(cfg map[string]interface{}) (pipeline.Node, error) {
		return &recall.Hot{
			Metadata: deps.Metadata,
			Limit:    conv.ConfigGetInt(cfg, "limit", 0),
		}, nil
	}
}

func buildFilterNode(deps Deps) pipeline.NodeBuilder {
	return func(cfg map[string]interface{}) (pipeline.Node, error) {
		filtersConfig, ok := cfg["filters"].([]interface{})
		if !ok {
			return nil, fmt.Errorf("filters not found or invalid")
		}

		filters := make([]filter.Filter, 0, len(filtersConfig))
		for _, fc := range filtersConfig {
			filterMap, ok := fc.(map[string]interface{})
			if !ok {
				continue
			}
			f, err := buildFilter(deps, filterMap)
			if err != nil {
				return nil, err
			}
			filters = append(filters, f)
		}
		return &filter.FilterNode{Filters: filters}, nil
	}
}

func buildFilter(deps Deps, cfg map[string]interface{}) (filter.Filter, error) {
	filterType := conv.ConfigGet(cfg, "type", "")
	switch filterType {
	case "watched":
		if deps.Feedback == nil {
			return nil, fmt.Errorf("watched filter requires feedback store")
		}
		return filter.NewWatchedFilter(deps.Feedback), nil
	case "watched_bloom":
		if deps.Store == nil {
			return nil, fmt.Errorf("watched_bloom filter requires store")
		}
		return filter.NewBloomWatchedFilter(
			deps.Store,
			uint(conv.ConfigGetInt(cfg, "capacity", 0)),
			conv.ConfigGetFloat64(cfg, "false_positive_rate", 0),
		), nil
	case "metadata":
		return &filter.MetadataFilter{Metadata: deps.Metadata}, nil
	case "dsl":
		expr := conv.ConfigGet(cfg, "expr", "")
		if expr == "" {
			return nil, fmt.Errorf("dsl filter requires expr")
		}
		return &filter.DSLFilter{Expr: expr}, nil
	default:
		return nil, fmt.Errorf("unknown filter type: %s", filterType)
	}
}

func buildFusionNode(deps Deps) pipeline.NodeBuilder {
	return func(cfg map[string]interface{}) (pipeline.Node, error) {
		return &rank.FusionNode{
			Alpha:    conv.ConfigGetFloat64(cfg, "alpha", 0),
			Metadata: deps.Metadata,
		}, nil
	}
}

func buildTopNNode(cfg map[string]interface{}) (pipeline.Node, error) {
	return &rerank.TopNNode{N: conv.ConfigGetInt(cfg, "n", 0)}, nil
}

func buildDiversityNode(cfg map[string]interface{}) (pipeline.Node, error) {
	return &rerank.Diversity{MaxPerGenre: conv.ConfigGetInt(cfg, "max_per_genre", 0)}, nil
}
