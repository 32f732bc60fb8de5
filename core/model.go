package core

import "time"

// ModelStatus 是模型版本的生命周期状态。
type ModelStatus string

const (
	ModelStatusTraining ModelStatus = "training" // 训练中，尚未产出
	ModelStatusReady    ModelStatus = "ready"    // 训练完成，可被提升
	ModelStatusFailed   ModelStatus = "failed"   // 训练失败，永不提升
	ModelStatusRetired  ModelStatus = "retired"  // 曾是生产版本，已被替换
)

// Hyperparams 是 ALS 训练的超参数。
// 固定 Seed 时训练可复现（同一快照重训产出同样的因子，误差在数值容差内）。
type Hyperparams struct {
	// Factors 是隐因子维度。
	Factors int `json:"factors" yaml:"factors"`

	// Regularization 是 L2 正则强度。
	Regularization float64 `json:"regularization" yaml:"regularization"`

	// Iterations 是交替求解轮数上限。
	Iterations int `json:"iterations" yaml:"iterations"`

	// ConvergenceTol 为重构误差变化的收敛阈值；<=0 表示只用轮数上限。
	ConvergenceTol float64 `json:"convergence_tol" yaml:"convergence_tol"`

	// Seed 是因子初始化随机种子。
	Seed int64 `json:"seed" yaml:"seed"`
}

// DefaultHyperparams 返回默认超参数。
func DefaultHyperparams() Hyperparams {
	return Hyperparams{
		Factors:        64,
		Regularization: 0.05,
		Iterations:     15,
		ConvergenceTol: 1e-4,
		Seed:           42,
	}
}

// EvalMetrics 是一次训练的离线评估结果（留一法）。
type EvalMetrics struct {
	PrecisionAt10 float64 `json:"precision_at_10"`
	RecallAt10    float64 `json:"recall_at_10"`
	// ReconstructionErr 是最终一轮的加权重构误差，用于收敛观测。
	ReconstructionErr float64 `json:"reconstruction_err"`
	// Users / Movies 是训练矩阵的稠密维度。
	Users  int `json:"users"`
	Movies int `json:"movies"`
}

// ModelVersion 是一次训练产出的版本元数据。
// 因子矩阵本体序列化后存放在产物存储（ArtifactKey 指向 core.Store 中的 blob），
// 训练完成后不可变；重训只产生新版本，绝不原地修改。
type ModelVersion struct {
	VersionID   string      `json:"version_id"`
	TrainedAt   time.Time   `json:"trained_at"`
	SnapshotID  string      `json:"dataset_snapshot_id"`
	Hyperparams Hyperparams `json:"hyperparameters"`
	Metrics     EvalMetrics `json:"evaluation_metrics"`
	ArtifactKey string      `json:"artifact_location"`
	Status      ModelStatus `json:"status"`
}
