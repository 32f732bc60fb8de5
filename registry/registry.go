// Package registry 管理协同过滤模型的版本生命周期：
// register(training) → complete(ready) / fail(failed) → promote(ready-and-current)。
//
// promote 是训练路径与服务路径之间唯一的同步点：生产模型指针用原子交换更新，
// 读者要么看到旧版本要么看到新版本，绝不会观测到半换状态；任意时刻至多一个
// 版本处于 ready-and-current。
package registry

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rushteam/filmrec/als"
	"github.com/rushteam/filmrec/core"
)

const (
	keyVersionPrefix  = "model:version:"  // {prefix}{version_id} -> ModelVersion JSON
	keyArtifactPrefix = "model:artifact:" // {prefix}{version_id} -> 序列化因子
	keyCurrent        = "model:current"   // 生产版本指针
	keyVersionList    = "model:versions"  // 版本 ID 列表 JSON
)

// production 是服务路径读取的不可变快照：版本元数据 + 已解码模型。
type production struct {
	version core.ModelVersion
	model   *als.Model
}

// Registry 是模型版本登记处。
// 变更（register/complete/fail/promote）串行化在互斥锁下并持久化到 Store；
// 读路径（Current/CurrentModel）只做一次原子指针读，不触存储。
type Registry struct {
	store core.Store

	mu      sync.Mutex
	current atomic.Pointer[production]
}

// New 创建 Registry；store 同时承载版本元数据与模型产物 blob。
func New(store core.Store) *Registry {
	return &Registry{store: store}
}

// Load 从持久化状态恢复生产指针（进程重启后调用一次）。
// 从未有版本被提升时不报错，保持"无模型"状态。
func (r *Registry) Load(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := r.store.Get(ctx, keyCurrent)
	if err != nil {
		if core.IsStoreNotFound(err) {
			return nil
		}
		return err
	}
	versionID := string(data)

	v, err := r.getVersion(ctx, versionID)
	if err != nil {
		return err
	}
	model, err := r.loadArtifact(ctx, v)
	if err != nil {
		return err
	}
	r.current.Store(&production{version: *v, model: model})
	return nil
}

// Register 登记一个新训练中的版本（status=training）。
func (r *Registry) Register(ctx context.Context, v core.ModelVersion) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if v.VersionID == "" {
		return core.NewDomainError(core.ModuleRegistry, core.ErrorCodeInvalidInput, "registry: version id required")
	}
	v.Status = core.ModelStatusTraining
	if v.TrainedAt.IsZero() {
		v.TrainedAt = time.Now().UTC()
	}
	if err := r.putVersion(ctx, &v); err != nil {
		return err
	}
	return r.appendVersionList(ctx, v.VersionID)
}

// Complete 保存训练产物并把版本置为 ready（可被提升）。
func (r *Registry) Complete(ctx context.Context, versionID string, metrics core.EvalMetrics, artifact []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	v, err := r.getVersion(ctx, versionID)
	if err != nil {
		return err
	}
	if v.Status != core.ModelStatusTraining {
		return core.NewDomainError(core.ModuleRegistry, core.ErrorCodeInvalidInput, "registry: version not in training state")
	}

	v.ArtifactKey = keyArtifactPrefix + versionID
	if err := r.store.Set(ctx, v.ArtifactKey, artifact); err != nil {
		return err
	}
	v.Metrics = metrics
	v.Status = core.ModelStatusReady
	return r.putVersion(ctx, v)
}

// MarkFailed 把训练失败的版本置为 failed。failed 版本永不提升。
func (r *Registry) MarkFailed(ctx context.Context, versionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	v, err := r.getVersion(ctx, versionID)
	if err != nil {
		return err
	}
	v.Status = core.ModelStatusFailed
	return r.putVersion(ctx, v)
}

// Promote 原子地把 ready 版本提升为生产版本，并把原生产版本置为 retired。
// 产物在换指针之前完整加载解码，换入的必然是成形的模型。
func (r *Registry) Promote(ctx context.Context, versionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	v, err := r.getVersion(ctx, versionID)
	if err != nil {
		return err
	}
	if v.Status != core.ModelStatusReady {
		return core.NewDomainError(core.ModuleRegistry, core.ErrorCodeInvalidInput, "registry: only ready versions can be promoted")
	}

	model, err := r.loadArtifact(ctx, v)
	if err != nil {
		return err
	}

	prev := r.current.Load()

	v.Status = core.ModelStatusReady
	if err := r.putVersion(ctx, v); err != nil {
		return err
	}
	if err := r.store.Set(ctx, keyCurrent, []byte(v.VersionID)); err != nil {
		return err
	}

	// 唯一的发布点：读者在此前后分别看到旧/新版本。
	r.current.Store(&production{version: *v, model: model})

	if prev != nil && prev.version.VersionID != v.VersionID {
		old := prev.version
		old.Status = core.ModelStatusRetired
		if err := r.putVersion(ctx, &old); err != nil {
			return err
		}
	}
	return nil
}

// Current 返回当前生产版本；从未有版本被提升时返回 ErrNoModelAvailable，
// 调用方应降级到纯内容路径而不是把错误抛给用户。
func (r *Registry) Current() (core.ModelVersion, error) {
	p := r.current.Load()
	if p == nil {
		return core.ModelVersion{}, core.ErrNoModelAvailable
	}
	return p.version, nil
}

// CurrentModel 返回当前生产版本及其已解码模型。
func (r *Registry) CurrentModel() (*als.Model, core.ModelVersion, error) {
	p := r.current.Load()
	if p == nil {
		return nil, core.ModelVersion{}, core.ErrNoModelAvailable
	}
	return p.model, p.version, nil
}

// Get 按版本 ID 读取版本元数据（训练状态轮询用）。
func (r *Registry) Get(ctx context.Context, versionID string) (core.ModelVersion, error) {
	v, err := r.getVersion(ctx, versionID)
	if err != nil {
		return core.ModelVersion{}, err
	}
	return *v, nil
}

// List 返回全部已登记版本 ID（按登记顺序）。
func (r *Registry) List(ctx context.Context) ([]string, error) {
	data, err := r.store.Get(ctx, keyVersionList)
	if err != nil {
		if core.IsStoreNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *Registry) getVersion(ctx context.Context, versionID string) (*core.ModelVersion, error) {
	data, err := r.store.Get(ctx, keyVersionPrefix+versionID)
	if err != nil {
		if core.IsStoreNotFound(err) {
			return nil, core.NewDomainError(core.ModuleRegistry, core.ErrorCodeNotFound, "registry: version not found: "+versionID)
		}
		return nil, err
	}
	var v core.ModelVersion
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *Registry) putVersion(ctx context.Context, v *core.ModelVersion) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return r.store.Set(ctx, keyVersionPrefix+v.VersionID, data)
}

func (r *Registry) loadArtifact(ctx context.Context, v *core.ModelVersion) (*als.Model, error) {
	key := v.ArtifactKey
	if key == "" {
		key = keyArtifactPrefix + v.VersionID
	}
	data, err := r.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	return als.Decode(data)
}

func (r *Registry) appendVersionList(ctx context.Context, versionID string) error {
	ids, err := r.List(ctx)
	if err != nil {
		return err
	}
	ids = append(ids, versionID)
	data, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	return r.store.Set(ctx, keyVersionList, data)
}
