package filter

import (
	"bytes"
	"context"
	"strconv"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"

	"github.com/rushteam/filmrec/core"
)

// BloomWatchedFilter 是基于布隆过滤器的长窗口已看过滤。
// 适合交互史很大的用户：不把全量已看集合加载进内存，
// 只读一段序列化的 bitset 做 Test。误判（把没看过当成看过）率可控，
// 绝不漏判（看过的一定被过滤）。
//
// 存储布局：{KeyPrefix}:{userID} -> bloom bitset（兼容任意 core.Store 后端）。
type BloomWatchedFilter struct {
	Store core.Store

	// KeyPrefix 默认 "watched:bloom"。
	KeyPrefix string

	// Capacity 预期容量（交互条数），NewWithEstimates 参数。
	Capacity uint
	// FalsePositiveRate 期望误判率，例如 0.01。
	FalsePositiveRate float64

	// 本地缓存，避免每个候选都反序列化一次
	mu    sync.RWMutex
	cache map[int64]*bloom.BloomFilter
}

func NewBloomWatchedFilter(store core.Store, capacity uint, falsePositiveRate float64) *BloomWatchedFilter {
	if capacity == 0 {
		capacity = 100000
	}
	if falsePositiveRate <= 0 {
		falsePositiveRate = 0.01
	}
	return &BloomWatchedFilter{
		Store:             store,
		KeyPrefix:         "watched:bloom",
		Capacity:          capacity,
		FalsePositiveRate: falsePositiveRate,
		cache:             make(map[int64]*bloom.BloomFilter),
	}
}

func (f *BloomWatchedFilter) Name() string {
	return "filter.watched_bloom"
}

func (f *BloomWatchedFilter) key(userID int64) string {
	prefix := f.KeyPrefix
	if prefix == "" {
		prefix = "watched:bloom"
	}
	return prefix + ":" + strconv.FormatInt(userID, 10)
}

func (f *BloomWatchedFilter) ShouldFilter(
	ctx context.Context,
	rctx *core.RecommendContext,
	item *core.Item,
) (bool, error) {
	if item == nil || rctx == nil || rctx.IsGuest() || f.Store == nil {
		return false, nil
	}

	bf, err := f.load(ctx, rctx.UserID)
	if err != nil {
		return false, err
	}
	if bf == nil {
		// 过滤器不存在：一定没看过
		return false, nil
	}
	return bf.Test([]byte(strconv.FormatInt(item.ID, 10))), nil
}

// AddWatched 把一批电影追加进用户的布隆过滤器并持久化。
// 由反馈写入边界在交互落库后调用。
func (f *BloomWatchedFilter) AddWatched(ctx context.Context, userID int64, movieIDs []int64) error {
	if f.Store == nil {
		return core.ErrStoreNotSupported
	}

	bf, err := f.load(ctx, userID)
	if err != nil {
		return err
	}
	if bf == nil {
		bf = bloom.NewWithEstimates(f.Capacity, f.FalsePositiveRate)
	}

	for _, id := range movieIDs {
		bf.Add([]byte(strconv.FormatInt(id, 10)))
	}

	var buf bytes.Buffer
	if _, err := bf.WriteTo(&buf); err != nil {
		return err
	}
	if err := f.Store.Set(ctx, f.key(userID), buf.Bytes(), 0); err != nil {
		return err
	}

	f.mu.Lock()
	f.cache[userID] = bf
	f.mu.Unlock()
	return nil
}

// load 读取用户的布隆过滤器；不存在返回 (nil, nil)。
func (f *BloomWatchedFilter) load(ctx context.Context, userID int64) (*bloom.BloomFilter, error) {
	f.mu.RLock()
	cached, ok := f.cache[userID]
	f.mu.RUnlock()
	if ok {
		return cached, nil
	}

	data, err := f.Store.Get(ctx, f.key(userID))
	if err != nil {
		if core.IsStoreNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	bf := bloom.NewWithEstimates(f.Capacity, f.FalsePositiveRate)
	if _, err := bf.ReadFrom(bytes.NewReader(data)); err != nil {
		return nil, core.NewDomainError(core.ModuleStore, core.ErrorCodeInternalError, "bloom: corrupt filter data")
	}

	f.mu.Lock()
	f.cache[userID] = bf
	f.mu.Unlock()
	return bf, nil
}
