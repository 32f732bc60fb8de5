package core

import "context"

// EmbeddingHit 是一次向量检索的单条结果。
type EmbeddingHit struct {
	MovieID int64
	// Score 是余弦相似度，越大越相似。
	Score float64
	// Distance = 1 - Score。
	Distance float64
}

// EmbeddingIndex 是电影语义向量索引的领域接口。
//
// 契约（正确性要求，无论后端是向量数据库还是暴力扫描的测试替身都必须满足）：
//   - 度量固定为余弦相似度，必须与向量生成方式（归一化文本向量）一致
//   - 结果按相似度严格非增排序，同分按 MovieID 升序
//   - exclude 中的电影绝不出现在结果里
//   - 并发 upsert 与 query 下，query 绝不观测到写了一半的向量（单向量原子性，
//     不要求整索引加锁）
//
// 实现：
//   - embedding.MemoryIndex
type EmbeddingIndex interface {
	// Upsert 写入或覆盖一部电影的向量。
	Upsert(ctx context.Context, movieID int64, vector []float64) error

	// Query 返回与 vector 最相似的 k 部电影。
	Query(ctx context.Context, vector []float64, k int, exclude map[int64]struct{}) ([]EmbeddingHit, error)

	// QueryByMovie 使用已存向量检索；电影无向量时返回 ErrEmbeddingNotFound。
	QueryByMovie(ctx context.Context, movieID int64, k int, exclude map[int64]struct{}) ([]EmbeddingHit, error)

	// Has 判断电影是否已有向量。
	Has(ctx context.Context, movieID int64) (bool, error)

	// Close 释放资源。
	Close() error
}

// Embedder 把文本编码为归一化稠密向量（外部编码服务的领域接口）。
// 向量维度独立于隐因子维度。
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}
