package embedding

import (
	"context"

	"github.com/rushteam/filmrec/core"
)

// Indexer 把电影元数据编码并写入向量索引。
// 由元数据摄取方在电影新增/变更时调用，与模型重训节奏无关；
// 写入与查询可并发（索引保证单向量原子性）。
type Indexer struct {
	Index    core.EmbeddingIndex
	Embedder core.Embedder
}

// IndexMovie 编码并写入一部电影。
func (ix *Indexer) IndexMovie(ctx context.Context, m *core.MovieMetadata) error {
	if m == nil {
		return core.NewDomainError(core.ModuleEmbedding, core.ErrorCodeInvalidInput, "embedding: nil metadata")
	}
	vec, err := ix.Embedder.Embed(ctx, MovieText(m))
	if err != nil {
		return err
	}
	return ix.Index.Upsert(ctx, m.MovieID, vec)
}

// IndexAll 全量重建：遍历元数据库中的电影逐一编码写入。
// 单部电影编码失败跳过（该电影在相似检索中缺席，不阻塞整体重建）。
func (ix *Indexer) IndexAll(ctx context.Context, metadata core.MetadataStore) (int, error) {
	movies, err := metadata.ListByPopularity(ctx, nil, 0)
	if err != nil {
		return 0, err
	}
	indexed := 0
	for _, m := range movies {
		if err := ix.IndexMovie(ctx, m); err != nil {
			continue
		}
		indexed++
	}
	return indexed, nil
}
