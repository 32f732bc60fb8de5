package filter

import (
	"context"
	"sync"

	"github.com/rushteam/filmrec/core"
)

// WatchedFilter 过滤用户交互过的电影（评过分/想看/看过都算"交互过"）。
// 推荐已经看过的电影没有价值，这是个性化路径的硬过滤。
//
// 用户的已看集合在单次请求内只加载一次（按 userID 缓存在过滤器里，
// TTL 由上层请求生命周期保证：每次请求新建过滤器即可避免陈旧数据）。
type WatchedFilter struct {
	Feedback core.FeedbackStore

	mu   sync.Mutex
	seen map[int64]map[int64]struct{} // userID -> movie 集合
}

func NewWatchedFilter(feedback core.FeedbackStore) *WatchedFilter {
	return &WatchedFilter{Feedback: feedback}
}

func (f *WatchedFilter) Name() string {
	return "filter.watched"
}

func (f *WatchedFilter) ShouldFilter(
	ctx context.Context,
	rctx *core.RecommendContext,
	item *core.Item,
) (bool, error) {
	if item == nil || rctx == nil || rctx.IsGuest() || f.Feedback == nil {
		return false, nil
	}

	set, err := f.seenSet(ctx, rctx.UserID)
	if err != nil {
		return false, err
	}
	_, watched := set[item.ID]
	return watched, nil
}

func (f *WatchedFilter) seenSet(ctx context.Context, userID int64) (map[int64]struct{}, error) {
	f.mu.Lock()
	if f.seen != nil {
		if set, ok := f.seen[userID]; ok {
			f.mu.Unlock()
			return set, nil
		}
	}
	f.mu.Unlock()

	ins, err := f.Feedback.ListInteractionsForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	set := make(map[int64]struct{}, len(ins))
	for _, in := range ins {
		set[in.MovieID] = struct{}{}
	}

	f.mu.Lock()
	if f.seen == nil {
		f.seen = make(map[int64]map[int64]struct{})
	}
	f.seen[userID] = set
	f.mu.Unlock()
	return set, nil
}
