package rerank

import (
	"context"

	"github.com/rushteam/filmrec/core"
	"github.com/rushteam/filmrec/pipeline"
)

// Diversity 是一个按电影类型控频的多样性 ReRank：
// 同一主类型（genres 首位）最多保留 MaxPerGenre 部，超出的下沉跳过。
// 类型来源：meta["genres"]（[]string 或 []any），缺失时不参与控频。
//
// 保序：不重排已有顺序，只做跳过，所以排序的确定性不受影响。
type Diversity struct {
	// MaxPerGenre 同一主类型保留上限，默认 3。
	MaxPerGenre int
}

func (n *Diversity) Name() string {
	return "rerank.diversity"
}

func (n *Diversity) Kind() pipeline.Kind {
	return pipeline.KindReRank
}

func (n *Diversity) Process(
	_ context.Context,
	_ *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	if len(items) == 0 {
		return items, nil
	}

	limit := n.MaxPerGenre
	if limit <= 0 {
		limit = 3
	}

	count := make(map[string]int, 16)
	out := make([]*core.Item, 0, len(items))

	for _, it := range items {
		if it == nil {
			continue
		}

		genre := primaryGenre(it)
		if genre == "" {
			out = append(out, it)
			continue
		}
		if count[genre] >= limit {
			continue
		}
		count[genre]++
		out = append(out, it)
	}

	return out, nil
}

// primaryGenre 取 meta["genres"] 的首位作为主类型。
func primaryGenre(it *core.Item) string {
	if it.Meta == nil {
		return ""
	}
	v, ok := it.Meta["genres"]
	if !ok {
		return ""
	}
	switch gs := v.(type) {
	case []string:
		if len(gs) > 0 {
			return gs[0]
		}
	case []any:
		if len(gs) > 0 {
			if s, ok := gs[0].(string); ok {
				return s
			}
		}
	}
	return ""
}
