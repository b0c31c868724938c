package uistate

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/example/oblivion-comments/internal/comments/model"
)

// Snapshot is the part of a comment view worth restoring.
type Snapshot struct {
	SortMode    model.SortMode `json:"sort"`
	SearchQuery string         `json:"search"`
	ExpandedIDs []model.ID     `json:"expanded"`
}

// Key namespaces a discussion's snapshot by session.
func Key(session, discussionID string) string {
	return "comments:ui:" + session + ":" + discussionID
}

// Bridge saves and restores snapshots on a best-effort basis: failures are
// logged at debug level and never reach the caller. A nil Bridge does nothing.
type Bridge struct {
	store   Store
	session string
	log     *zap.Logger
}

func NewBridge(store Store, session string, log *zap.Logger) *Bridge {
	if log == nil {
		log = zap.NewNop()
	}
	if session == "" {
		session = "anonymous"
	}
	return &Bridge{store: store, session: session, log: log}
}

func (b *Bridge) Save(ctx context.Context, discussionID string, snap Snapshot) {
	if b == nil || b.store == nil {
		return
	}
	key := Key(b.session, discussionID)
	payload, err := json.Marshal(snap)
	if err != nil {
		b.log.Debug("ui state: marshal failed", zap.String("key", key), zap.Error(err))
		return
	}
	if err := b.store.Save(ctx, key, payload); err != nil {
		b.log.Debug("ui state: save failed", zap.String("key", key), zap.Error(err))
	}
}

// Restore returns the saved snapshot. ok is false when nothing usable was
// found, including when the store failed.
func (b *Bridge) Restore(ctx context.Context, discussionID string) (snap Snapshot, ok bool) {
	if b == nil || b.store == nil {
		return Snapshot{}, false
	}
	key := Key(b.session, discussionID)
	payload, found, err := b.store.Load(ctx, key)
	if err != nil {
		b.log.Debug("ui state: load failed", zap.String("key", key), zap.Error(err))
		return Snapshot{}, false
	}
	if !found {
		return Snapshot{}, false
	}
	if err := json.Unmarshal(payload, &snap); err != nil {
		b.log.Debug("ui state: corrupt snapshot", zap.String("key", key), zap.Error(err))
		return Snapshot{}, false
	}
	snap.SortMode = model.ParseSortMode(string(snap.SortMode))
	return snap, true
}
