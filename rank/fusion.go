package rank

import (
	"context"
	"fmt"
	"sort"

	"github.com/rushteam/filmrec/core"
	"github.com/rushteam/filmrec/pipeline"
	"github.com/rushteam/filmrec/pkg/utils"
)

// FusionNode 是混合融合排序 Node：把协同过滤分与语义相似分各自 min-max
// 归一化到 [0,1]，再按 final = Alpha*协同 + (1-Alpha)*语义 加权。
//
// 归一化只在当次候选集内进行（两路信号量纲不同，绝对值不可比）。
// 只带单路信号的电影用该路归一化分乘以对应权重，信号缺席按 0 计：
// 双路都命中的电影天然占优，这正是混合策略想要的。
//
// 排序键：融合分降序 -> 热度降序 -> 电影 ID 升序（全链路可复现）。
// - 写入 labels：fusion_alpha
type FusionNode struct {
	// Alpha 协同过滤权重，取值 [0,1]；0 值时用 DefaultFusionConfig。
	Alpha float64

	// Metadata 用于补齐热度（同分第二排序键）；可为 nil，缺热度按 0 计。
	Metadata core.MetadataStore
}

func (n *FusionNode) Name() string        { return "rank.fusion" }
func (n *FusionNode) Kind() pipeline.Kind { return pipeline.KindRank }

func (n *FusionNode) Process(
	ctx context.Context,
	_ *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	if len(items) == 0 {
		return items, nil
	}

	alpha := n.Alpha
	if alpha <= 0 || alpha > 1 {
		alpha = core.DefaultFusionConfig().Alpha
	}

	normCollab := normalize(items, "als")
	normEmbed := normalize(items, "embedding")

	out := make([]*core.Item, 0, len(items))
	for i, it := range items {
		if it == nil {
			continue
		}
		it.Score = alpha*normCollab[i] + (1-alpha)*normEmbed[i]
		it.PutLabel("fusion_alpha", utils.Label{Value: fmt.Sprintf("%.2f", alpha), Source: "rank"})
		out = append(out, it)
	}

	n.enrichPopularity(ctx, out)

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		if out[i].Popularity() != out[j].Popularity() {
			return out[i].Popularity() > out[j].Popularity()
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// normalize 对候选集内某路信号做 min-max 归一化，缺席信号记 0。
// 候选集内该信号只有一个取值时归一化为 1（有信号总好过没信号）。
func normalize(items []*core.Item, signal string) []float64 {
	var (
		lo, hi float64
		seen   bool
	)
	for _, it := range items {
		if it == nil {
			continue
		}
		s, ok := it.GetScore(signal)
		if !ok {
			continue
		}
		if !seen {
			lo, hi = s, s
			seen = true
			continue
		}
		if s < lo {
			lo = s
		}
		if s > hi {
			hi = s
		}
	}

	out := make([]float64, len(items))
	if !seen {
		return out
	}
	for i, it := range items {
		if it == nil {
			continue
		}
		s, ok := it.GetScore(signal)
		if !ok {
			continue
		}
		if hi == lo {
			out[i] = 1
			continue
		}
		out[i] = (s - lo) / (hi - lo)
	}
	return out
}

// enrichPopularity 为缺少热度的候选补齐 Meta（同分排序需要）。
// 元数据读取失败只影响该电影的 tie-break，不中断排序。
func (n *FusionNode) enrichPopularity(ctx context.Context, items []*core.Item) {
	if n.Metadata == nil {
		return
	}
	for _, it := range items {
		if it == nil {
			continue
		}
		if _, ok := it.Meta["popularity"]; ok {
			continue
		}
		meta, err := n.Metadata.GetMetadata(ctx, it.ID)
		if err != nil {
			continue
		}
		it.Meta["popularity"] = meta.Popularity
		it.Meta["title"] = meta.Title
		it.Meta["genres"] = meta.Genres
	}
}
