// Package conflict reconciles divergent local and remote versions of the
// same entity. Resolution is deterministic and pure: no I/O, no hidden
// state, identical inputs always yield identical outputs, so a retried
// sync can safely re-apply the same decision.
package conflict

import (
	"github.com/chatvault/core/internal/models"
)

// Strategy names the side whose version won a resolution.
type Strategy string

const (
	StrategyLocal Strategy = "local"
	StrategyCloud Strategy = "cloud"
)

// ChatResolution is the outcome of resolving two chat versions.
type ChatResolution struct {
	Resolved             *models.Chat
	Strategy             Strategy
	RequiresManualReview bool
}

// MessageResolution is the outcome of resolving two message versions.
type MessageResolution struct {
	Resolved             *models.Message
	Strategy             Strategy
	RequiresManualReview bool
}

// IsInConflict reports whether both sides changed independently since the
// last confirmed sync point. If only one side changed there is no conflict;
// the changed side simply wins.
func IsInConflict(localUpdatedAt, remoteUpdatedAt, lastSyncTimestamp int64) bool {
	return localUpdatedAt > lastSyncTimestamp && remoteUpdatedAt > lastSyncTimestamp
}

// ResolveChat reconciles two versions of a chat.
//
// A non-deleted version always beats a deleted one, regardless of which
// carries the later timestamp: an undo-delete outranks a delete so live
// data is never silently discarded. Otherwise the strictly newer UpdatedAt
// wins, with ties going to local. Chat resolutions never need manual
// review.
func ResolveChat(local, remote *models.Chat, lastSyncTimestamp int64) ChatResolution {
	if local.Status.Deleted() != remote.Status.Deleted() {
		if local.Status.Deleted() {
			return ChatResolution{Resolved: remote, Strategy: StrategyCloud}
		}
		return ChatResolution{Resolved: local, Strategy: StrategyLocal}
	}

	if remote.UpdatedAt > local.UpdatedAt {
		return ChatResolution{Resolved: remote, Strategy: StrategyCloud}
	}
	return ChatResolution{Resolved: local, Strategy: StrategyLocal}
}

// ResolveMessage reconciles two versions of a message.
//
// When both sides changed since the last sync and the content differs, the
// remote version wins and the result is flagged for manual review: message
// text has no safe automatic merge, so divergence is surfaced to the user
// instead of silently merged. Without a conflict the changed side wins.
func ResolveMessage(local, remote *models.Message, lastSyncTimestamp int64) MessageResolution {
	localChanged := messageChangedSince(local, lastSyncTimestamp)
	remoteChanged := messageChangedSince(remote, lastSyncTimestamp)

	if localChanged && remoteChanged && local.Content != remote.Content {
		return MessageResolution{
			Resolved:             remote,
			Strategy:             StrategyCloud,
			RequiresManualReview: true,
		}
	}

	if remoteChanged && !localChanged {
		return MessageResolution{Resolved: remote, Strategy: StrategyCloud}
	}
	if localChanged && !remoteChanged {
		return MessageResolution{Resolved: local, Strategy: StrategyLocal}
	}

	// Both unchanged, or both changed identically: prefer the tombstone so
	// a delete is not resurrected, otherwise keep local.
	if remote.Status.Deleted() && !local.Status.Deleted() {
		return MessageResolution{Resolved: remote, Strategy: StrategyCloud}
	}
	return MessageResolution{Resolved: local, Strategy: StrategyLocal}
}

// messageChangedSince reports whether a message changed after the sync
// point. Messages carry no UpdatedAt: creation and soft-deletion are the
// only mutations, so CreatedAt after the sync point or a tombstone counts
// as a change.
func messageChangedSince(msg *models.Message, lastSyncTimestamp int64) bool {
	return msg.CreatedAt > lastSyncTimestamp || msg.Status.Deleted()
}
