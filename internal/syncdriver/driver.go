// Package syncdriver moves the change log to and from the remote backend:
// it pushes unsynced events oldest first, pulls remote snapshots, runs them
// through the conflict resolver, and writes resolved entities back. The
// wire protocol stays behind the RemoteBackend interface.
package syncdriver

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chatvault/core/internal/conflict"
	"github.com/chatvault/core/internal/logging"
	"github.com/chatvault/core/internal/models"
	"github.com/chatvault/core/internal/store"
	"github.com/chatvault/core/internal/syncerr"
	"github.com/chatvault/core/internal/telemetry"
)

// RemoteBackend is the remote side of synchronization. Implementations own
// transport, authentication, and encoding.
type RemoteBackend interface {
	// PushEvent transmits one change-log event. A nil return is the remote
	// acknowledgment; only then may the event be marked synced.
	PushEvent(ctx context.Context, event *models.SyncEvent) error

	// FetchChats returns the remote snapshots of a user's chats, tombstones
	// included.
	FetchChats(ctx context.Context, userID models.UUID) ([]*models.Chat, error)

	// FetchMessages returns the remote snapshots of a user's messages,
	// tombstones included.
	FetchMessages(ctx context.Context, userID models.UUID) ([]*models.Message, error)
}

// Status is the driver's current state.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusSyncing Status = "syncing"
	StatusFailed  Status = "failed"
)

// Result summarizes one sync pass.
type Result struct {
	StartTime    time.Time
	EndTime      time.Time
	Pushed       int
	Pulled       int
	Conflicts    int
	ManualReview int
}

// Driver runs push/pull passes for one device.
type Driver struct {
	store   *store.Store
	remote  RemoteBackend
	handler *syncerr.Handler

	mu      sync.Mutex
	status  Status
	lastErr error
}

// New creates a Driver. handler supplies the retry policy wrapped around
// every remote call.
func New(s *store.Store, remote RemoteBackend, handler *syncerr.Handler) *Driver {
	return &Driver{
		store:   s,
		remote:  remote,
		handler: handler,
		status:  StatusIdle,
	}
}

// Status returns the driver's current state.
func (d *Driver) Status() Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.status
}

// LastError returns the failure of the most recent pass, if any.
func (d *Driver) LastError() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastErr
}

// Sync runs one full push/pull pass for userID. Writes are never blocked
// on remote state; divergence is reconciled here, after the fact.
func (d *Driver) Sync(ctx context.Context, userID models.UUID) (*Result, error) {
	d.mu.Lock()
	if d.status == StatusSyncing {
		d.mu.Unlock()
		return nil, syncerr.New(syncerr.KindSyncFailed, "sync already in progress")
	}
	d.status = StatusSyncing
	d.lastErr = nil
	d.mu.Unlock()

	result := &Result{StartTime: time.Now()}
	err := d.sync(ctx, userID, result)
	result.EndTime = time.Now()

	telemetry.RecordTiming("sync.pass", result.EndTime.Sub(result.StartTime), nil)
	telemetry.RecordCount("sync.events_pushed", result.Pushed, nil)

	d.mu.Lock()
	if err != nil {
		d.status = StatusFailed
		d.lastErr = err
	} else {
		d.status = StatusIdle
	}
	d.mu.Unlock()

	if err != nil {
		return result, err
	}
	return result, nil
}

func (d *Driver) sync(ctx context.Context, userID models.UUID, result *Result) error {
	dev, err := d.store.GetDeviceByFingerprint(ctx, d.store.DeviceID())
	if err != nil {
		return err
	}
	if dev == nil {
		return syncerr.New(syncerr.KindSyncFailed, "device not registered")
	}

	var lastSync int64
	if dev.LastSyncAt != nil {
		lastSync = *dev.LastSyncAt
	}

	if err := d.push(ctx, userID, result); err != nil {
		return err
	}
	if err := d.pull(ctx, userID, lastSync, result); err != nil {
		return err
	}

	syncedAt := time.Now().Unix()
	if err := d.store.TouchDeviceSync(ctx, dev.ID, syncedAt); err != nil {
		return err
	}

	logging.Info("sync pass completed", map[string]interface{}{
		"user_id":       string(userID),
		"pushed":        result.Pushed,
		"pulled":        result.Pulled,
		"conflicts":     result.Conflicts,
		"manual_review": result.ManualReview,
	})
	return nil
}

// push transmits unsynced events oldest first. An event is marked synced
// only after the remote acknowledged it; a retried push of an already
// delivered event is the remote's problem to deduplicate by event id.
func (d *Driver) push(ctx context.Context, userID models.UUID, result *Result) error {
	events, err := d.store.GetUnsyncedEvents(ctx, userID)
	if err != nil {
		return err
	}

	for _, ev := range events {
		ev := ev
		opID := "sync.push." + string(ev.ID)
		err := d.handler.WithRetry(ctx, opID, func(ctx context.Context) error {
			return d.remote.PushEvent(ctx, ev)
		})
		if err != nil {
			return syncerr.Wrap(syncerr.KindSyncFailed,
				fmt.Sprintf("failed to push event %s", ev.ID), err)
		}

		if err := d.store.MarkEventSynced(ctx, ev.ID); err != nil {
			return err
		}
		result.Pushed++
	}
	return nil
}

// pull fetches remote snapshots and reconciles them against local rows,
// tombstones included. Resolved entities are written back without new
// change-log entries.
func (d *Driver) pull(ctx context.Context, userID models.UUID, lastSync int64, result *Result) error {
	var remoteChats []*models.Chat
	err := d.handler.WithRetry(ctx, "sync.pull.chats", func(ctx context.Context) error {
		var err error
		remoteChats, err = d.remote.FetchChats(ctx, userID)
		return err
	})
	if err != nil {
		return syncerr.Wrap(syncerr.KindSyncFailed, "failed to fetch remote chats", err)
	}

	for _, rc := range remoteChats {
		local, err := d.store.GetChatAny(ctx, rc.ID)
		if err != nil {
			return err
		}
		if local == nil {
			if err := d.store.UpsertResolvedChat(ctx, rc); err != nil {
				return err
			}
			result.Pulled++
			continue
		}

		if conflict.IsInConflict(local.UpdatedAt, rc.UpdatedAt, lastSync) {
			result.Conflicts++
		}
		res := conflict.ResolveChat(local, rc, lastSync)
		if res.Strategy == conflict.StrategyCloud {
			if err := d.store.UpsertResolvedChat(ctx, res.Resolved); err != nil {
				return err
			}
			result.Pulled++
		}
	}

	var remoteMsgs []*models.Message
	err = d.handler.WithRetry(ctx, "sync.pull.messages", func(ctx context.Context) error {
		var err error
		remoteMsgs, err = d.remote.FetchMessages(ctx, userID)
		return err
	})
	if err != nil {
		return syncerr.Wrap(syncerr.KindSyncFailed, "failed to fetch remote messages", err)
	}

	for _, rm := range remoteMsgs {
		local, err := d.store.GetMessageAny(ctx, rm.ID)
		if err != nil {
			return err
		}
		if local == nil {
			if err := d.store.UpsertResolvedMessage(ctx, rm); err != nil {
				return err
			}
			result.Pulled++
			continue
		}

		res := conflict.ResolveMessage(local, rm, lastSync)
		if res.RequiresManualReview {
			result.ManualReview++
			logging.Warn("message content divergence needs manual review", map[string]interface{}{
				"message_id": string(rm.ID),
				"chat_id":    string(rm.ChatID),
			})
		}
		if res.Strategy == conflict.StrategyCloud {
			if err := d.store.UpsertResolvedMessage(ctx, res.Resolved); err != nil {
				return err
			}
			result.Pulled++
		}
	}
	return nil
}

// Run drives periodic sync passes for userID, honoring the user's sync
// policy: local-only mode and disabled auto-sync both pause the loop, and
// the configured interval is re-read every tick so policy changes take
// effect without a restart.
func (d *Driver) Run(ctx context.Context, userID models.UUID, fallback time.Duration) {
	if fallback <= 0 {
		fallback = 5 * time.Minute
	}

	timer := time.NewTimer(fallback)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		interval := fallback
		cfg, err := d.store.GetSyncConfig(ctx, userID)
		if err == nil && cfg != nil {
			if cfg.SyncInterval > 0 {
				interval = time.Duration(cfg.SyncInterval) * time.Second
			}
			if !cfg.AutoSync || cfg.Mode == models.SyncModeLocalOnly {
				timer.Reset(interval)
				continue
			}
		}

		if _, err := d.Sync(ctx, userID); err != nil {
			logging.Error("periodic sync failed", err, map[string]interface{}{
				"user_id": string(userID),
			})
		}
		timer.Reset(interval)
	}
}
