package core

import (
	"context"
	"time"
)

// InteractionStatus 是用户对电影的行为状态。
type InteractionStatus string

const (
	StatusNone      InteractionStatus = "none"
	StatusWatchlist InteractionStatus = "watchlist"
	StatusWatched   InteractionStatus = "watched"
)

// Valid 校验状态枚举值。
func (s InteractionStatus) Valid() bool {
	switch s {
	case StatusNone, StatusWatchlist, StatusWatched:
		return true
	default:
		return false
	}
}

// Interaction 是一条用户→电影的交互记录。
// 每个 (user, movie) 至多一条，后写覆盖先写（upsert 语义），由反馈提交边界维护；
// 推荐核心只读。
type Interaction struct {
	UserID  int64             `json:"user_id"`
	MovieID int64             `json:"movie_id"`
	// Rating 为显式评分，取值 [0.5, 5]；nil 表示仅有隐式信号。
	Rating    *float64          `json:"rating,omitempty"`
	Status    InteractionStatus `json:"status"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// HasRating 判断是否带显式评分。
func (i Interaction) HasRating() bool {
	return i.Rating != nil
}

// FeedbackStore 是交互数据的只读领域接口（外部协作者：反馈台账）。
//
// 实现：
//   - store.FeedbackAdapter（基于 core.KeyValueStore）
type FeedbackStore interface {
	// ListAllInteractions 返回全量交互快照，用于训练。
	ListAllInteractions(ctx context.Context) ([]Interaction, error)

	// ListInteractionsForUser 返回某用户的全部交互，按 UpdatedAt 升序。
	// 服务路径用于已看排除与近期种子选取。
	ListInteractionsForUser(ctx context.Context, userID int64) ([]Interaction, error)
}
