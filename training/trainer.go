// Package training 实现从交互快照到生产模型的完整重训流水线：
// 快照 -> 矩阵构建 -> 留一法评估 -> 全量训练 -> 版本登记 -> 择优提升。
package training

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rushteam/filmrec/als"
	"github.com/rushteam/filmrec/core"
	"github.com/rushteam/filmrec/dataset"
	"github.com/rushteam/filmrec/registry"
)

// Trainer 驱动一次完整的模型重训。
// 同一时刻至多一次重训在跑，重复触发返回 UNAVAILABLE。
type Trainer struct {
	feedback core.FeedbackStore
	registry *registry.Registry
	builder  *dataset.Builder
	hp       core.Hyperparams
	logger   *zap.Logger

	mu      sync.Mutex
	running bool
}

// Option 配置 Trainer。
type Option func(*Trainer)

// WithHyperparams 覆盖默认超参数。
func WithHyperparams(hp core.Hyperparams) Option {
	return func(t *Trainer) { t.hp = hp }
}

// WithLogger 注入日志器，默认 Nop。
func WithLogger(logger *zap.Logger) Option {
	return func(t *Trainer) { t.logger = logger }
}

// WithWeights 覆盖默认的置信度权重配置。
func WithWeights(cfg core.WeightConfig) Option {
	return func(t *Trainer) { t.builder = dataset.NewBuilder(cfg) }
}

func NewTrainer(feedback core.FeedbackStore, reg *registry.Registry, opts ...Option) *Trainer {
	t := &Trainer{
		feedback: feedback,
		registry: reg,
		builder:  dataset.NewBuilder(core.DefaultWeightConfig()),
		hp:       core.DefaultHyperparams(),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// TriggerRetrain 异步触发重训，立即返回新版本 ID。
// 训练在后台进行，结果通过版本状态（ready/failed）与提升结果观测。
func (t *Trainer) TriggerRetrain(ctx context.Context, snapshotID string) (string, error) {
	t.mu.Lock()
	if t.running {
		t.mu.Unlock()
		return "", core.NewDomainError(core.ModuleService, core.ErrorCodeUnavailable, "training: retrain already in progress")
	}
	t.running = true
	t.mu.Unlock()

	versionID := newVersionID()
	v := core.ModelVersion{
		VersionID:   versionID,
		TrainedAt:   time.Now().UTC(),
		SnapshotID:  snapshotID,
		Hyperparams: t.hp,
		Status:      core.ModelStatusTraining,
	}
	if err := t.registry.Register(ctx, v); err != nil {
		t.mu.Lock()
		t.running = false
		t.mu.Unlock()
		return "", err
	}

	go func() {
		defer func() {
			t.mu.Lock()
			t.running = false
			t.mu.Unlock()
		}()
		// 训练生命周期独立于触发请求
		runCtx := context.WithoutCancel(ctx)
		if err := t.run(runCtx, versionID); err != nil {
			t.logger.Warn("retrain failed",
				zap.String("version", versionID),
				zap.Error(err))
			if err := t.registry.MarkFailed(runCtx, versionID); err != nil {
				t.logger.Error("mark failed version",
					zap.String("version", versionID),
					zap.Error(err))
			}
		}
	}()
	return versionID, nil
}

// Retrain 同步执行一次重训（测试与离线任务用），返回版本元数据。
func (t *Trainer) Retrain(ctx context.Context, snapshotID string) (core.ModelVersion, error) {
	t.mu.Lock()
	if t.running {
		t.mu.Unlock()
		return core.ModelVersion{}, core.NewDomainError(core.ModuleService, core.ErrorCodeUnavailable, "training: retrain already in progress")
	}
	t.running = true
	t.mu.Unlock()
	defer func() {
		t.mu.Lock()
		t.running = false
		t.mu.Unlock()
	}()

	versionID := newVersionID()
	v := core.ModelVersion{
		VersionID:   versionID,
		TrainedAt:   time.Now().UTC(),
		SnapshotID:  snapshotID,
		Hyperparams: t.hp,
		Status:      core.ModelStatusTraining,
	}
	if err := t.registry.Register(ctx, v); err != nil {
		return core.ModelVersion{}, err
	}
	if err := t.run(ctx, versionID); err != nil {
		if markErr := t.registry.MarkFailed(ctx, versionID); markErr != nil {
			t.logger.Error("mark failed version", zap.String("version", versionID), zap.Error(markErr))
		}
		return core.ModelVersion{}, err
	}
	return t.registry.Get(ctx, versionID)
}

// run 执行重训主体：评估 + 全量训练 + 登记 + 择优提升。
func (t *Trainer) run(ctx context.Context, versionID string) error {
	started := time.Now()
	t.logger.Info("retrain started", zap.String("version", versionID))

	interactions, err := t.feedback.ListAllInteractions(ctx)
	if err != nil {
		return err
	}
	if len(interactions) == 0 {
		return core.NewDomainError(core.ModuleDataset, core.ErrorCodeInvalidInput, "training: empty interaction snapshot")
	}

	// 留一法离线评估（在切分出的训练子集上训练评估模型）
	metrics, err := evaluate(ctx, interactions, t.builder, t.hp)
	if err != nil {
		return err
	}

	// 全量训练生产模型
	m, im, err := t.builder.Build(interactions)
	if err != nil {
		return err
	}
	res, err := als.Train(ctx, m, im, t.hp)
	if err != nil {
		return err
	}
	metrics.ReconstructionErr = res.FinalErr
	metrics.Users = m.Users
	metrics.Movies = m.Movies

	artifact, err := res.Model.Encode()
	if err != nil {
		return err
	}
	if err := t.registry.Complete(ctx, versionID, metrics, artifact); err != nil {
		return err
	}

	t.logger.Info("retrain completed",
		zap.String("version", versionID),
		zap.Int("users", m.Users),
		zap.Int("movies", m.Movies),
		zap.Int("iterations", res.Iterations),
		zap.Float64("precision_at_10", metrics.PrecisionAt10),
		zap.Float64("recall_at_10", metrics.RecallAt10),
		zap.Duration("elapsed", time.Since(started)))

	return t.maybePromote(ctx, versionID, metrics)
}

// maybePromote 实施择优提升策略：
//   - 尚无生产模型：无条件提升
//   - 否则仅当 precision@10 严格更优且 recall@10 不劣化时提升
//
// 不提升不是失败，旧模型继续服务。
func (t *Trainer) maybePromote(ctx context.Context, versionID string, metrics core.EvalMetrics) error {
	cur, err := t.registry.Current()
	if err != nil {
		if core.IsNoModel(err) {
			t.logger.Info("promoting first model", zap.String("version", versionID))
			return t.registry.Promote(ctx, versionID)
		}
		return err
	}

	better := metrics.PrecisionAt10 > cur.Metrics.PrecisionAt10 &&
		metrics.RecallAt10 >= cur.Metrics.RecallAt10
	if !better {
		t.logger.Info("keeping current model",
			zap.String("candidate", versionID),
			zap.String("current", cur.VersionID),
			zap.Float64("candidate_p10", metrics.PrecisionAt10),
			zap.Float64("current_p10", cur.Metrics.PrecisionAt10))
		return nil
	}

	t.logger.Info("promoting model",
		zap.String("version", versionID),
		zap.String("replaced", cur.VersionID))
	return t.registry.Promote(ctx, versionID)
}

func newVersionID() string {
	return fmt.Sprintf("als-%d", time.Now().UTC().UnixNano())
}
