// Package filmrec 是一个混合电影推荐引擎（协同过滤 + 语义相似）。
//
// 设计要点：
// - Pipeline-first: 推荐逻辑通过 Node 串联（Recall → Filter → Rank → ReRank）
// - 双路混合: ALS 矩阵分解与文本向量近邻在候选集内归一化后加权融合
// - 模型即版本: 训练产出不可变版本，择优提升，服务读路径单次原子指针读
// - Labels-first: labels 全链路透传与标准化 merge，支持 explain / 观测
package filmrec

import "github.com/rushteam/filmrec/pipeline"

// 轻量 facade：便于用户直接 import "filmrec" 使用核心抽象。
type Pipeline = pipeline.Pipeline
type Node = pipeline.Node
type Kind = pipeline.Kind

const (
	KindRecall      = pipeline.KindRecall
	KindFilter      = pipeline.KindFilter
	KindRank        = pipeline.KindRank
	KindReRank      = pipeline.KindReRank
	KindPostProcess = pipeline.KindPostProcess
)
