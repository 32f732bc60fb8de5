package core

import "github.com/rushteam/filmrec/pkg/utils"

// Item 是推荐链路中的统一承载结构：候选电影的分数、元信息、标签。
// Scores 按信号来源分桶（als / embedding / popularity），供融合节点归一化使用；
// Score 是融合后的最终排序分。
type Item struct {
	ID     int64
	Score  float64
	Scores map[string]float64
	Meta   map[string]any
	Labels map[string]utils.Label
}

func NewItem(id int64) *Item {
	return &Item{
		ID:     id,
		Score:  0,
		Scores: make(map[string]float64),
		Meta:   make(map[string]any),
		Labels: make(map[string]utils.Label),
	}
}

// PutScore 记录某个信号来源的原始分数。
func (it *Item) PutScore(signal string, score float64) {
	if it.Scores == nil {
		it.Scores = make(map[string]float64)
	}
	it.Scores[signal] = score
}

// GetScore 读取某个信号来源的原始分数。
func (it *Item) GetScore(signal string) (float64, bool) {
	if it.Scores == nil {
		return 0, false
	}
	s, ok := it.Scores[signal]
	return s, ok
}

// PutLabel 写入 Label；若已存在同名 key，则按默认 Merge 规则累积。
func (it *Item) PutLabel(key string, lbl utils.Label) {
	if it.Labels == nil {
		it.Labels = make(map[string]utils.Label)
	}
	if old, ok := it.Labels[key]; ok {
		it.Labels[key] = utils.MergeLabel(old, lbl)
		return
	}
	it.Labels[key] = lbl
}

// Popularity 从 Meta 读取电影热度，缺失时返回 0。
// 融合节点用它做同分时的第二排序键。
func (it *Item) Popularity() float64 {
	if it.Meta == nil {
		return 0
	}
	if v, ok := it.Meta["popularity"]; ok {
		if f, ok := v.(float64); ok {
			return f
		}
	}
	return 0
}
