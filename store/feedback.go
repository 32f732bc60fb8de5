package store

import (
	"context"
	"encoding/json"
	"sort"
	"strconv"

	"github.com/rushteam/filmrec/core"
)

// FeedbackAdapter 把 core.KeyValueStore 适配为 core.FeedbackStore。
//
// 存储布局：
//   - Hash {prefix}:user:{userID}：field 为 movieID，value 为 Interaction JSON
//     （天然 upsert：同 (user, movie) 后写覆盖先写）
//   - ZSet {prefix}:users：member 为 userID（全量遍历用）
//
// 推荐核心只读；Upsert 供反馈提交边界与测试使用。
type FeedbackAdapter struct {
	store core.KeyValueStore

	// KeyPrefix 默认 "feedback"。
	KeyPrefix string
}

func NewFeedbackAdapter(s core.KeyValueStore, keyPrefix string) *FeedbackAdapter {
	if keyPrefix == "" {
		keyPrefix = "feedback"
	}
	return &FeedbackAdapter{store: s, KeyPrefix: keyPrefix}
}

var _ core.FeedbackStore = (*FeedbackAdapter)(nil)

func (a *FeedbackAdapter) userKey(userID int64) string {
	return a.KeyPrefix + ":user:" + strconv.FormatInt(userID, 10)
}

// Upsert 写入/覆盖一条交互记录。
func (a *FeedbackAdapter) Upsert(ctx context.Context, in core.Interaction) error {
	if !in.Status.Valid() {
		return core.NewDomainError(core.ModuleStore, core.ErrorCodeInvalidInput, "feedback: invalid status")
	}
	data, err := json.Marshal(in)
	if err != nil {
		return err
	}
	field := strconv.FormatInt(in.MovieID, 10)
	if err := a.store.HSet(ctx, a.userKey(in.UserID), field, data); err != nil {
		return err
	}
	return a.store.ZAdd(ctx, a.KeyPrefix+":users", float64(in.UserID), strconv.FormatInt(in.UserID, 10))
}

// ListAllInteractions 返回全量交互快照（训练用），按 (user_id, movie_id) 升序。
func (a *FeedbackAdapter) ListAllInteractions(ctx context.Context) ([]core.Interaction, error) {
	members, err := a.store.ZRange(ctx, a.KeyPrefix+":users", 0, -1)
	if err != nil {
		return nil, err
	}

	var out []core.Interaction
	for _, m := range members {
		userID, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			continue
		}
		ins, err := a.ListInteractionsForUser(ctx, userID)
		if err != nil {
			return nil, err
		}
		out = append(out, ins...)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].UserID != out[j].UserID {
			return out[i].UserID < out[j].UserID
		}
		return out[i].MovieID < out[j].MovieID
	})
	return out, nil
}

// ListInteractionsForUser 返回某用户的全部交互，按 UpdatedAt 升序
// （最近的交互在尾部，便于取近期种子）。
func (a *FeedbackAdapter) ListInteractionsForUser(ctx context.Context, userID int64) ([]core.Interaction, error) {
	fields, err := a.store.HGetAll(ctx, a.userKey(userID))
	if err != nil {
		return nil, err
	}

	out := make([]core.Interaction, 0, len(fields))
	for _, raw := range fields {
		var in core.Interaction
		if err := json.Unmarshal(raw, &in); err != nil {
			continue
		}
		out = append(out, in)
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.Before(out[j].UpdatedAt)
		}
		return out[i].MovieID < out[j].MovieID
	})
	return out, nil
}
