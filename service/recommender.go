// Package service 是推荐能力的对外门面：按用户状态路由三种服务形态
// （个性化/内容相似/游客热门），并实现无感降级——调用方永远拿到一个
// 尽力而为的列表，绝不因某一路信号缺席而失败。
package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/rushteam/filmrec/core"
	"github.com/rushteam/filmrec/filter"
	"github.com/rushteam/filmrec/pipeline"
	"github.com/rushteam/filmrec/rank"
	"github.com/rushteam/filmrec/recall"
	"github.com/rushteam/filmrec/registry"
	"github.com/rushteam/filmrec/rerank"
	"github.com/rushteam/filmrec/training"
)

// DefaultLimit 是未指定数量时的返回条数。
const DefaultLimit = 10

// Recommender 组合模型注册处、反馈台账、元数据库与向量索引，
// 对外提供完整的推荐服务。
type Recommender struct {
	registry *registry.Registry
	feedback core.FeedbackStore
	metadata core.MetadataStore
	index    core.EmbeddingIndex
	prefs    core.PreferenceStore
	trainer  *training.Trainer

	fusion  core.FusionConfig
	timeout time.Duration
	logger  *zap.Logger
}

// Option 配置 Recommender。
type Option func(*Recommender)

// WithFusionConfig 覆盖默认融合配置。
func WithFusionConfig(cfg core.FusionConfig) Option {
	return func(r *Recommender) { r.fusion = cfg }
}

// WithLogger 注入日志器，默认 Nop。
func WithLogger(logger *zap.Logger) Option {
	return func(r *Recommender) { r.logger = logger }
}

// WithPreferences 注入用户偏好存储；冷启动用户的兜底会按偏好收窄范围。
func WithPreferences(ps core.PreferenceStore) Option {
	return func(r *Recommender) { r.prefs = ps }
}

// WithTrainer 注入重训器（不注入时 TriggerRetrain 返回 NOT_SUPPORTED）。
func WithTrainer(t *training.Trainer) Option {
	return func(r *Recommender) { r.trainer = t }
}

// WithRecallTimeout 设置单个召回源的超时时间，默认 2s。
func WithRecallTimeout(d time.Duration) Option {
	return func(r *Recommender) { r.timeout = d }
}

func NewRecommender(
	reg *registry.Registry,
	feedback core.FeedbackStore,
	metadata core.MetadataStore,
	index core.EmbeddingIndex,
	opts ...Option,
) *Recommender {
	r := &Recommender{
		registry: reg,
		feedback: feedback,
		metadata: metadata,
		index:    index,
		fusion:   core.DefaultFusionConfig(),
		timeout:  2 * time.Second,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Recommend 为已登录用户生成个性化推荐。
//
// 路由规则：
//   - 用户在生产模型内：协同 + 语义双路融合
//   - 冷启动（不在模型内/无模型）：语义相似单路
//   - 结果不足 limit：按热度补齐（排除已看与已出现的电影）
//
// 降级不返回错误，对调用方透明。
func (r *Recommender) Recommend(ctx context.Context, userID int64, limit int) ([]*core.Item, error) {
	if userID <= 0 {
		return nil, core.NewDomainError(core.ModuleService, core.ErrorCodeInvalidInput, "service: user id must be positive")
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	rctx := &core.RecommendContext{
		UserID: userID,
		Scene:  "home",
		Limit:  limit,
	}

	p := r.personalizedPipeline()
	items, err := p.Run(ctx, rctx, nil)
	if err != nil {
		r.logger.Warn("personalized pipeline failed, falling back to popularity",
			zap.Int64("user_id", userID),
			zap.Error(err))
		items = nil
	}

	// 冷启动（两路个性化信号都缺席）时按注册偏好收窄兜底范围
	if len(items) == 0 {
		if filters := r.coldStartFilters(ctx, userID); filters != nil {
			rctx.Filters = filters
		}
	}

	items, err = r.fillWithPopularity(ctx, rctx, items)
	if err != nil {
		return nil, err
	}

	r.logger.Debug("recommend served",
		zap.Int64("user_id", userID),
		zap.Int("returned", len(items)))
	return items, nil
}

// RecommendGuest 为游客生成推荐：可选喜好片名做语义种子，
// 可选元数据过滤条件；其余空缺按热度补齐。
// 过滤条件筛不出任何电影时返回空列表而非错误。
func (r *Recommender) RecommendGuest(ctx context.Context, filters *core.MovieFilters, seedTitles []string, limit int) ([]*core.Item, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	rctx := &core.RecommendContext{
		Scene:      "guest",
		Limit:      limit,
		Filters:    filters,
		SeedTitles: seedTitles,
	}

	p := r.guestPipeline()
	items, err := p.Run(ctx, rctx, nil)
	if err != nil {
		r.logger.Warn("guest pipeline failed, falling back to popularity",
			zap.Error(err))
		items = nil
	}

	items, err = r.fillWithPopularity(ctx, rctx, items)
	if err != nil {
		return nil, err
	}
	return items, nil
}

// FindSimilar 返回与指定电影语义最相似的电影列表。
// 电影未入向量索引时返回 NOT_FOUND（embedding 模块错误）。
func (r *Recommender) FindSimilar(ctx context.Context, movieID int64, limit int) ([]*core.Item, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	hits, err := r.index.QueryByMovie(ctx, movieID, limit, nil)
	if err != nil {
		return nil, err
	}

	items := make([]*core.Item, 0, len(hits))
	for _, h := range hits {
		it := core.NewItem(h.MovieID)
		it.PutScore("embedding", h.Score)
		it.Score = h.Score
		r.enrich(ctx, it)
		items = append(items, it)
	}
	return items, nil
}

// TriggerRetrain 异步触发一次模型重训，返回新版本 ID。
func (r *Recommender) TriggerRetrain(ctx context.Context, snapshotID string) (string, error) {
	if r.trainer == nil {
		return "", core.NewDomainError(core.ModuleService, core.ErrorCodeNotSupported, "service: no trainer configured")
	}
	return r.trainer.TriggerRetrain(ctx, snapshotID)
}

// personalizedPipeline 组装个性化链路：双路召回 -> 已看过滤 -> 融合 -> 截断。
func (r *Recommender) personalizedPipeline() *pipeline.Pipeline {
	mult := r.fusion.CandidateMultiplier

	fanout := &recall.Fanout{
		Sources: []recall.Source{
			&recall.Collaborative{
				Registry:   r.registry,
				Feedback:   r.feedback,
				Multiplier: mult,
			},
			&recall.Similar{
				Index:         r.index,
				Metadata:      r.metadata,
				Feedback:      r.feedback,
				Multiplier:    mult,
				RecentSeeds:   r.fusion.RecentSeeds,
				SeedMinRating: r.fusion.SeedMinRating,
			},
		},
		Dedup:   true,
		Timeout: r.timeout,
	}

	return &pipeline.Pipeline{
		Nodes: []pipeline.Node{
			fanout,
			&filter.FilterNode{Filters: []filter.Filter{
				filter.NewWatchedFilter(r.feedback),
			}},
			&rank.FusionNode{Alpha: r.fusion.Alpha, Metadata: r.metadata},
			&rerank.TopNNode{},
		},
	}
}

// guestPipeline 组装游客链路：语义种子召回 -> 元数据过滤 -> 融合 -> 截断。
// 热度兜底不进 pipeline，统一走 fillWithPopularity（它会带上过滤条件）。
func (r *Recommender) guestPipeline() *pipeline.Pipeline {
	fanout := &recall.Fanout{
		Sources: []recall.Source{
			&recall.Similar{
				Index:      r.index,
				Metadata:   r.metadata,
				Multiplier: r.fusion.CandidateMultiplier,
			},
		},
		Dedup:   true,
		Timeout: r.timeout,
	}

	return &pipeline.Pipeline{
		Nodes: []pipeline.Node{
			fanout,
			&filter.FilterNode{Filters: []filter.Filter{
				&filter.MetadataFilter{Metadata: r.metadata},
			}},
			&rank.FusionNode{Alpha: r.fusion.Alpha, Metadata: r.metadata},
			&rerank.TopNNode{},
		},
	}
}

// coldStartFilters 读取冷启动用户的注册偏好并转成过滤条件。
// 未配置偏好存储、未设置偏好或读取失败都返回 nil（不收窄）。
func (r *Recommender) coldStartFilters(ctx context.Context, userID int64) *core.MovieFilters {
	if r.prefs == nil {
		return nil
	}
	prefs, err := r.prefs.GetPreferences(ctx, userID)
	if err != nil {
		if !core.IsNotFound(err) {
			r.logger.Warn("load preferences failed",
				zap.Int64("user_id", userID),
				zap.Error(err))
		}
		return nil
	}
	return prefs.Filters()
}

// fillWithPopularity 把结果补齐到 rctx.Limit：按热度降序追加未出现、
// 未看过且满足过滤条件的电影。元数据库不可用时原样返回已有结果。
func (r *Recommender) fillWithPopularity(ctx context.Context, rctx *core.RecommendContext, items []*core.Item) ([]*core.Item, error) {
	if len(items) >= rctx.Limit || r.metadata == nil {
		if len(items) > rctx.Limit {
			items = items[:rctx.Limit]
		}
		return items, nil
	}

	exclude := make(map[int64]struct{}, len(items))
	for _, it := range items {
		exclude[it.ID] = struct{}{}
	}
	if !rctx.IsGuest() && r.feedback != nil {
		ins, err := r.feedback.ListInteractionsForUser(ctx, rctx.UserID)
		if err == nil {
			for _, in := range ins {
				exclude[in.MovieID] = struct{}{}
			}
		}
	}

	// 多取一些余量，排除项可能占据榜单头部
	movies, err := r.metadata.ListByPopularity(ctx, rctx.Filters, rctx.Limit+len(exclude))
	if err != nil {
		r.logger.Warn("popularity fill failed", zap.Error(err))
		return items, nil
	}

	for _, m := range movies {
		if len(items) >= rctx.Limit {
			break
		}
		if _, ok := exclude[m.MovieID]; ok {
			continue
		}
		it := core.NewItem(m.MovieID)
		it.PutScore("popularity", m.Popularity)
		it.Meta["popularity"] = m.Popularity
		it.Meta["title"] = m.Title
		it.Meta["genres"] = m.Genres
		items = append(items, it)
	}
	return items, nil
}

// enrich 给单个结果补充展示用元数据。
func (r *Recommender) enrich(ctx context.Context, it *core.Item) {
	if r.metadata == nil {
		return
	}
	meta, err := r.metadata.GetMetadata(ctx, it.ID)
	if err != nil {
		return
	}
	it.Meta["popularity"] = meta.Popularity
	it.Meta["title"] = meta.Title
	it.Meta["genres"] = meta.Genres
}
