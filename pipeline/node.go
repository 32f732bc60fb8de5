package pipeline

import (
	"context"

	"github.com/rushteam/filmrec/core"
)

// Kind 用于标记 Node 类型，方便观测/治理/编排（例如按阶段打点）。
type Kind string

const (
	KindRecall      Kind = "recall"      // 召回阶段：生成候选电影集
	KindFilter      Kind = "filter"      // 过滤阶段：剔除已看/不满足元数据约束的候选
	KindRank        Kind = "rank"        // 排序阶段：信号归一化与融合打分
	KindReRank      Kind = "rerank"      // 重排阶段：多样性/截断
	KindPostProcess Kind = "postprocess" // 后处理阶段：补充元数据或最终修饰
)

// Node 是 Pipeline 的最小可扩展单元。
// 统一采用"输入 items -> 输出 items"的形态，方便召回生成、过滤截断、融合重排等操作。
type Node interface {
	Name() string
	Kind() Kind

	Process(
		ctx context.Context,
		rctx *core.RecommendContext,
		items []*core.Item,
	) ([]*core.Item, error)
}

// NodeBuilder 根据配置构建 Node，用于配置驱动的 Pipeline 组装。
type NodeBuilder func(config map[string]interface{}) (Node, error)
