package core

import "context"

// MovieMetadata 是一部电影的已归一化元数据。
// 原始目录的抓取与清洗在核心范围之外，这里假定数据已就位。
type MovieMetadata struct {
	MovieID     int64    `json:"movie_id"`
	Title       string   `json:"title"`
	Overview    string   `json:"overview"`
	Genres      []string `json:"genres"`
	Tagline     string   `json:"tagline"`
	Keywords    []string `json:"keywords"`
	Language    string   `json:"language"`
	Popularity  float64  `json:"popularity"`
	ReleaseYear int      `json:"release_year"`
}

// MovieFilters 是游客/搜索路径的元数据过滤条件。零值字段表示不过滤。
type MovieFilters struct {
	Genres    []string `json:"genres,omitempty"`
	Languages []string `json:"languages,omitempty"`
	YearMin   int      `json:"year_min,omitempty"`
	YearMax   int      `json:"year_max,omitempty"`
}

// Empty 判断是否没有任何过滤条件。
func (f *MovieFilters) Empty() bool {
	if f == nil {
		return true
	}
	return len(f.Genres) == 0 && len(f.Languages) == 0 && f.YearMin == 0 && f.YearMax == 0
}

// Match 判断电影是否满足过滤条件。
// Genres 取任意命中（OR），Languages 取任意命中，年份取闭区间。
func (f *MovieFilters) Match(m *MovieMetadata) bool {
	if f == nil || m == nil {
		return m != nil
	}
	if len(f.Genres) > 0 && !anyOverlap(f.Genres, m.Genres) {
		return false
	}
	if len(f.Languages) > 0 && !contains(f.Languages, m.Language) {
		return false
	}
	if f.YearMin > 0 && m.ReleaseYear < f.YearMin {
		return false
	}
	if f.YearMax > 0 && m.ReleaseYear > f.YearMax {
		return false
	}
	return true
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func anyOverlap(want, have []string) bool {
	for _, w := range want {
		if contains(have, w) {
			return true
		}
	}
	return false
}

// MetadataStore 是电影元数据的只读领域接口（外部协作者：关系库）。
//
// 实现：
//   - store.MetadataAdapter（基于 core.KeyValueStore）
type MetadataStore interface {
	// GetMetadata 按 ID 读取元数据；不存在时返回 NOT_FOUND。
	GetMetadata(ctx context.Context, movieID int64) (*MovieMetadata, error)

	// GetByTitle 按标题精确查找（种子电影解析用）；不存在时返回 NOT_FOUND。
	GetByTitle(ctx context.Context, title string) (*MovieMetadata, error)

	// ListByPopularity 按热度降序返回满足过滤条件的电影，最多 limit 部；
	// limit <= 0 表示不限量。filters 为 nil 时不过滤。
	// 同热度按 MovieID 升序，保证结果确定。
	ListByPopularity(ctx context.Context, filters *MovieFilters, limit int) ([]*MovieMetadata, error)
}
