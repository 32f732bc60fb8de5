// Package embedding 提供电影语义向量索引：元数据文本 → 归一化向量 → 近邻检索。
// 索引随元数据变更重建，与交互数据和模型重训节奏无关。
package embedding

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/rushteam/filmrec/core"
)

// MemoryIndex 是内存实现的向量索引，用于测试/开发/原型，
// 平替 Qdrant/Milvus 等向量数据库，但完整满足 core.EmbeddingIndex 的契约：
// 余弦度量、严格非增排序、同分按 MovieID 升序、exclude 绝对排除。
//
// 并发语义：Upsert 先拷贝整条向量再在写锁内换入 map，
// 查询读到的向量要么是旧的完整版本要么是新的完整版本（单向量原子性）。
type MemoryIndex struct {
	mu      sync.RWMutex
	vectors map[int64][]float64
	dim     int
}

// NewMemoryIndex 创建空索引。首条向量决定维度，后续维度不符报 INVALID_INPUT。
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{vectors: make(map[int64][]float64)}
}

var _ core.EmbeddingIndex = (*MemoryIndex)(nil)

// Upsert 写入或覆盖一部电影的向量。
func (m *MemoryIndex) Upsert(ctx context.Context, movieID int64, vector []float64) error {
	if len(vector) == 0 {
		return core.NewDomainError(core.ModuleEmbedding, core.ErrorCodeInvalidInput, "embedding: empty vector")
	}
	// 先整条拷贝，锁内只做指针换入。
	v := make([]float64, len(vector))
	copy(v, vector)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.dim == 0 {
		m.dim = len(v)
	} else if len(v) != m.dim {
		return core.NewDomainError(core.ModuleEmbedding, core.ErrorCodeInvalidInput, "embedding: vector dimension mismatch")
	}
	m.vectors[movieID] = v
	return nil
}

// Query 暴力扫描全部向量，按余弦相似度取 TopK。
func (m *MemoryIndex) Query(ctx context.Context, vector []float64, k int, exclude map[int64]struct{}) ([]core.EmbeddingHit, error) {
	if k <= 0 {
		return nil, nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	hits := make([]core.EmbeddingHit, 0, len(m.vectors))
	for id, v := range m.vectors {
		if exclude != nil {
			if _, skip := exclude[id]; skip {
				continue
			}
		}
		score := cosine(vector, v)
		hits = append(hits, core.EmbeddingHit{MovieID: id, Score: score, Distance: 1 - score})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].MovieID < hits[j].MovieID
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// QueryByMovie 使用已存向量检索；电影无向量时返回 ErrEmbeddingNotFound。
// 电影自身总是从结果中排除。
func (m *MemoryIndex) QueryByMovie(ctx context.Context, movieID int64, k int, exclude map[int64]struct{}) ([]core.EmbeddingHit, error) {
	m.mu.RLock()
	v, ok := m.vectors[movieID]
	m.mu.RUnlock()
	if !ok {
		return nil, core.ErrEmbeddingNotFound
	}

	ex := make(map[int64]struct{}, len(exclude)+1)
	for id := range exclude {
		ex[id] = struct{}{}
	}
	ex[movieID] = struct{}{}
	return m.Query(ctx, v, k, ex)
}

// Has 判断电影是否已有向量。
func (m *MemoryIndex) Has(ctx context.Context, movieID int64) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.vectors[movieID]
	return ok, nil
}

// Len 返回已索引的电影数。
func (m *MemoryIndex) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.vectors)
}

// Close 清空索引。
func (m *MemoryIndex) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vectors = make(map[int64][]float64)
	return nil
}

// cosine 计算余弦相似度。向量生成侧已归一化，这里仍做除法兜底。
func cosine(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
