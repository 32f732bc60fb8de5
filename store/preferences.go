package store

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/rushteam/filmrec/core"
)

// PreferenceAdapter 把 core.KeyValueStore 适配为 core.PreferenceStore。
//
// 存储布局：Hash {prefix}:prefs，field 为 userID，value 为 UserPreferences JSON。
type PreferenceAdapter struct {
	store core.KeyValueStore

	// KeyPrefix 默认 "user"。
	KeyPrefix string
}

func NewPreferenceAdapter(s core.KeyValueStore, keyPrefix string) *PreferenceAdapter {
	if keyPrefix == "" {
		keyPrefix = "user"
	}
	return &PreferenceAdapter{store: s, KeyPrefix: keyPrefix}
}

var _ core.PreferenceStore = (*PreferenceAdapter)(nil)

func (a *PreferenceAdapter) prefsKey() string { return a.KeyPrefix + ":prefs" }

// PutPreferences 写入/覆盖用户偏好。
func (a *PreferenceAdapter) PutPreferences(ctx context.Context, prefs core.UserPreferences) error {
	if prefs.UserID <= 0 {
		return core.NewDomainError(core.ModuleStore, core.ErrorCodeInvalidInput, "preferences: user id must be positive")
	}
	data, err := json.Marshal(prefs)
	if err != nil {
		return err
	}
	return a.store.HSet(ctx, a.prefsKey(), strconv.FormatInt(prefs.UserID, 10), data)
}

// GetPreferences 返回用户偏好；未设置过返回 NOT_FOUND。
func (a *PreferenceAdapter) GetPreferences(ctx context.Context, userID int64) (*core.UserPreferences, error) {
	raw, err := a.store.HGet(ctx, a.prefsKey(), strconv.FormatInt(userID, 10))
	if err != nil {
		if core.IsStoreNotFound(err) {
			return nil, core.NewDomainError(core.ModuleStore, core.ErrorCodeNotFound, "preferences: not set for user")
		}
		return nil, err
	}
	var prefs core.UserPreferences
	if err := json.Unmarshal(raw, &prefs); err != nil {
		return nil, err
	}
	return &prefs, nil
}
