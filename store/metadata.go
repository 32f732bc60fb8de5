package store

import (
	"context"
	"encoding/json"
	"sort"
	"strconv"

	"github.com/rushteam/filmrec/core"
)

// MetadataAdapter 把 core.KeyValueStore 适配为 core.MetadataStore。
//
// 存储布局：
//   - Hash {prefix}:meta：field 为 movieID，value 为 MovieMetadata JSON
//   - Hash {prefix}:title：field 为标题，value 为 movieID（标题精确查找）
//   - ZSet {prefix}:popularity：member 为 movieID，score 为热度
//     （供热门召回直接走 zset 通道）
type MetadataAdapter struct {
	store core.KeyValueStore

	// KeyPrefix 默认 "movies"。
	KeyPrefix string
}

func NewMetadataAdapter(s core.KeyValueStore, keyPrefix string) *MetadataAdapter {
	if keyPrefix == "" {
		keyPrefix = "movies"
	}
	return &MetadataAdapter{store: s, KeyPrefix: keyPrefix}
}

var _ core.MetadataStore = (*MetadataAdapter)(nil)

func (a *MetadataAdapter) metaKey() string       { return a.KeyPrefix + ":meta" }
func (a *MetadataAdapter) titleKey() string      { return a.KeyPrefix + ":title" }
func (a *MetadataAdapter) popularityKey() string { return a.KeyPrefix + ":popularity" }

// PopularityKey 返回热度 zset 的 key，热门召回可直接读取。
func (a *MetadataAdapter) PopularityKey() string { return a.popularityKey() }

// Put 写入/覆盖一部电影的元数据（同时维护标题索引与热度 zset）。
func (a *MetadataAdapter) Put(ctx context.Context, meta core.MovieMetadata) error {
	if meta.MovieID <= 0 {
		return core.NewDomainError(core.ModuleStore, core.ErrorCodeInvalidInput, "metadata: movie id must be positive")
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	field := strconv.FormatInt(meta.MovieID, 10)
	if err := a.store.HSet(ctx, a.metaKey(), field, data); err != nil {
		return err
	}
	if meta.Title != "" {
		if err := a.store.HSet(ctx, a.titleKey(), meta.Title, []byte(field)); err != nil {
			return err
		}
	}
	return a.store.ZAdd(ctx, a.popularityKey(), meta.Popularity, field)
}

// GetMetadata 按电影 id 取元数据；不存在返回 NOT_FOUND。
func (a *MetadataAdapter) GetMetadata(ctx context.Context, movieID int64) (*core.MovieMetadata, error) {
	raw, err := a.store.HGet(ctx, a.metaKey(), strconv.FormatInt(movieID, 10))
	if err != nil {
		if core.IsStoreNotFound(err) {
			return nil, core.NewDomainError(core.ModuleStore, core.ErrorCodeNotFound, "metadata: movie not found")
		}
		return nil, err
	}
	var meta core.MovieMetadata
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, core.NewDomainError(core.ModuleStore, core.ErrorCodeInternalError, "metadata: corrupt record")
	}
	return &meta, nil
}

// GetByTitle 按标题精确查找；不存在返回 NOT_FOUND。
func (a *MetadataAdapter) GetByTitle(ctx context.Context, title string) (*core.MovieMetadata, error) {
	raw, err := a.store.HGet(ctx, a.titleKey(), title)
	if err != nil {
		if core.IsStoreNotFound(err) {
			return nil, core.NewDomainError(core.ModuleStore, core.ErrorCodeNotFound, "metadata: title not found")
		}
		return nil, err
	}
	movieID, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return nil, core.NewDomainError(core.ModuleStore, core.ErrorCodeInternalError, "metadata: corrupt title index")
	}
	return a.GetMetadata(ctx, movieID)
}

// ListByPopularity 按热度降序返回满足过滤条件的电影；limit <= 0 表示不限。
// 同热度按 movie id 升序，保证任何后端下顺序一致。
func (a *MetadataAdapter) ListByPopularity(ctx context.Context, filters *core.MovieFilters, limit int) ([]*core.MovieMetadata, error) {
	fields, err := a.store.HGetAll(ctx, a.metaKey())
	if err != nil {
		return nil, err
	}

	out := make([]*core.MovieMetadata, 0, len(fields))
	for _, raw := range fields {
		var meta core.MovieMetadata
		if err := json.Unmarshal(raw, &meta); err != nil {
			continue
		}
		if filters != nil && !filters.Match(&meta) {
			continue
		}
		out = append(out, &meta)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Popularity != out[j].Popularity {
			return out[i].Popularity > out[j].Popularity
		}
		return out[i].MovieID < out[j].MovieID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
