// Package main runs the ChatVault desktop daemon: it opens the local
// store and pushes change-log notifications to the UI process over a
// localhost WebSocket.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"path/filepath"

	"github.com/chatvault/core/internal/bridge"
	"github.com/chatvault/core/internal/device"
	"github.com/chatvault/core/internal/logging"
	"github.com/chatvault/core/internal/notify"
	"github.com/chatvault/core/internal/store"
	"github.com/chatvault/core/internal/syncerr"
)

func main() {
	logging.Init(os.Stdout, logging.LevelInfo)

	dataDir := os.Getenv("CHATVAULT_DATA_DIR")
	if dataDir == "" {
		dataDir = "./data"
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}

	br := bridge.New(bridge.Config{DSN: filepath.Join(dataDir, "chatvault.db")})
	defer br.Close()

	ctx := context.Background()
	if err := br.Initialize(ctx); err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}

	bus := notify.NewBus(0)
	st := store.New(br, bus, device.Fingerprint())

	// Recovery hooks for the retry layer shared with any embedded caller.
	handler := syncerr.NewHandler(0, 0)
	handler.SetQuotaPruner(st.PruneSyncedEvents)
	handler.SetWorkerReinit(br.Initialize)
	handler.SetErrorCallback(func(e *syncerr.Error) {
		logging.Warn("classified failure", map[string]interface{}{
			"kind":    string(e.Kind),
			"message": syncerr.UserMessage(e.Kind),
		})
	})

	hub := NewWSHub()
	events, cancel := bus.Subscribe()
	defer cancel()
	go hub.Relay(events)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/health", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","service":"chatvault-desktop"}`))
	})
	mux.Handle("/ws", HandleWebSocket(hub))

	addr := "localhost:8091"
	logging.Info("desktop daemon listening", map[string]interface{}{
		"addr":     addr,
		"data_dir": dataDir,
		"device":   device.Fingerprint(),
	})
	log.Fatal(http.ListenAndServe(addr, mux))
}
