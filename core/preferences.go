package core

import "context"

// UserPreferences 是用户在注册/引导流程中声明的口味偏好。
// 冷启动用户（无可用交互历史）用它约束热度兜底与语义检索的范围。
type UserPreferences struct {
	UserID    int64    `json:"user_id"`
	Genres    []string `json:"genres,omitempty"`
	Languages []string `json:"languages,omitempty"`
}

// Empty 判断是否没有任何可用偏好。
func (p *UserPreferences) Empty() bool {
	if p == nil {
		return true
	}
	return len(p.Genres) == 0 && len(p.Languages) == 0
}

// Filters 把偏好转成元数据过滤条件；无偏好时返回 nil。
func (p *UserPreferences) Filters() *MovieFilters {
	if p.Empty() {
		return nil
	}
	return &MovieFilters{Genres: p.Genres, Languages: p.Languages}
}

// PreferenceStore 是用户偏好的读写边界。偏好维护在注册/设置页一侧，
// 推荐核心只在冷启动路径读取。
type PreferenceStore interface {
	// GetPreferences 返回用户偏好；未设置过返回 NOT_FOUND。
	GetPreferences(ctx context.Context, userID int64) (*UserPreferences, error)

	// PutPreferences 写入/覆盖用户偏好。
	PutPreferences(ctx context.Context, prefs UserPreferences) error
}
