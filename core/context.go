package core

import "github.com/rushteam/filmrec/pkg/utils"

// RecommendContext 承载一次推荐请求的用户/过滤/种子信息，贯穿整个 Pipeline 透传。
// 不落库，每次请求临时构造。
type RecommendContext struct {
	// UserID 为 0 时表示游客请求（无个性化信号）。
	UserID int64

	// Scene 标记请求场景，例如 "home" / "search" / "similar"。
	Scene string

	// Limit 是最终返回的电影数量上限。
	Limit int

	// Filters 是元数据过滤条件（类型/语言/年份区间），可为 nil。
	Filters *MovieFilters

	// SeedTitles 是内容相似检索的种子电影标题（游客/冷启动路径）。
	SeedTitles []string

	// Labels 是请求级标签，可驱动整个 Pipeline 行为（例如冷启动路由）。
	Labels map[string]utils.Label

	// Params 请求级上下文参数。
	Params map[string]any
}

// PutLabel 写入请求级 Label。
func (rctx *RecommendContext) PutLabel(key string, lbl utils.Label) {
	if rctx.Labels == nil {
		rctx.Labels = make(map[string]utils.Label)
	}
	if old, ok := rctx.Labels[key]; ok {
		rctx.Labels[key] = utils.MergeLabel(old, lbl)
		return
	}
	rctx.Labels[key] = lbl
}

// GetLabel 获取请求级 Label。
func (rctx *RecommendContext) GetLabel(key string) (utils.Label, bool) {
	if rctx.Labels == nil {
		return utils.Label{}, false
	}
	lbl, ok := rctx.Labels[key]
	return lbl, ok
}

// IsGuest 判断是否为游客请求。
func (rctx *RecommendContext) IsGuest() bool {
	return rctx == nil || rctx.UserID == 0
}
