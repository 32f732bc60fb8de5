package core

// FusionConfig 是混合召回融合的策略配置。
// alpha 与置信度权重是策略选择而非行为规约，因此全部做成可调配置，
// 上线前应在留出交互数据上校验取值。
type FusionConfig struct {
	// Alpha 是协同过滤信号的混合权重，embedding 信号权重为 1-Alpha。
	Alpha float64 `json:"alpha" yaml:"alpha"`

	// CandidateMultiplier 是召回候选量相对最终 limit 的放大倍数，
	// 留出过滤与融合的余量。
	CandidateMultiplier int `json:"candidate_multiplier" yaml:"candidate_multiplier"`

	// RecentSeeds 是个性化路径取最近高分电影作为相似种子的数量。
	RecentSeeds int `json:"recent_seeds" yaml:"recent_seeds"`

	// SeedMinRating 是种子电影的最低评分门槛。
	SeedMinRating float64 `json:"seed_min_rating" yaml:"seed_min_rating"`
}

// DefaultFusionConfig 返回默认融合配置。
func DefaultFusionConfig() FusionConfig {
	return FusionConfig{
		Alpha:               0.6,
		CandidateMultiplier: 4,
		RecentSeeds:         5,
		SeedMinRating:       3.5,
	}
}

// WeightConfig 是交互→置信度权重的换算配置。
type WeightConfig struct {
	// RatingScale：带评分交互的权重 = 1 + RatingScale*rating。
	RatingScale float64 `json:"rating_scale" yaml:"rating_scale"`

	// ImplicitWeight 是仅隐式信号（watchlist/watched 无评分）的固定权重，
	// 必须小于任何带评分交互的最小权重（1 + RatingScale*0.5）。
	ImplicitWeight float64 `json:"implicit_weight" yaml:"implicit_weight"`

	// MinUserInteractions / MinMovieInteractions 是进入稠密索引的最低交互数，
	// 低于门槛的用户/电影整行（列）剔除，而不是留零行。
	MinUserInteractions  int `json:"min_user_interactions" yaml:"min_user_interactions"`
	MinMovieInteractions int `json:"min_movie_interactions" yaml:"min_movie_interactions"`
}

// DefaultWeightConfig 返回默认权重配置。
func DefaultWeightConfig() WeightConfig {
	return WeightConfig{
		RatingScale:          10.0,
		ImplicitWeight:       1.0,
		MinUserInteractions:  1,
		MinMovieInteractions: 1,
	}
}
