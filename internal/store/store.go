// Package store provides typed CRUD over the storage bridge for all entity
// kinds, with mandatory change-log emission: every mutating call appends
// exactly one sync event recording what changed and on which device.
package store

import (
	"context"
	"time"

	"github.com/chatvault/core/internal/bridge"
	"github.com/chatvault/core/internal/models"
	"github.com/chatvault/core/internal/notify"
)

// Store is the entity store. All operations wait for bridge initialization
// before executing; bridge failures propagate to the caller unmodified so
// the retry layer can classify them at the call site.
type Store struct {
	bridge   *bridge.Bridge
	bus      *notify.Bus
	deviceID string
}

// New creates a Store. deviceID is the stable fingerprint of this
// installation and attributes every appended sync event.
func New(b *bridge.Bridge, bus *notify.Bus, deviceID string) *Store {
	return &Store{bridge: b, bus: bus, deviceID: deviceID}
}

// DeviceID returns the attribution key this store stamps on sync events.
func (s *Store) DeviceID() string {
	return s.deviceID
}

func (s *Store) ready(ctx context.Context) error {
	return s.bridge.WaitReady(ctx)
}

func now() int64 {
	return time.Now().Unix()
}

// Row decoding helpers. The bridge surfaces SQLite values as int64, string,
// []byte, float64 or nil depending on column affinity.

func rowString(r bridge.Row, col string) string {
	switch v := r[col].(type) {
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return ""
	}
}

func rowInt64(r bridge.Row, col string) int64 {
	switch v := r[col].(type) {
	case int64:
		return v
	case float64:
		return int64(v)
	default:
		return 0
	}
}

func rowBool(r bridge.Row, col string) bool {
	return rowInt64(r, col) != 0
}

func rowNullableInt64(r bridge.Row, col string) *int64 {
	if r[col] == nil {
		return nil
	}
	v := rowInt64(r, col)
	return &v
}

func rowUUID(r bridge.Row, col string) models.UUID {
	return models.UUID(rowString(r, col))
}
