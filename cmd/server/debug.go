package main

import (
	"encoding/json"
	"net/http"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/Ko-stant/grid-depths-engine/internal/metrics"
	"github.com/Ko-stant/grid-depths-engine/internal/protocol"
	"github.com/Ko-stant/grid-depths-engine/internal/ws"
)

// newDebugMux builds the HTTP surface served next to the game port:
// liveness, loop metrics, the machine-readable action contract, and a
// websocket feed of the update stream for spectators.
func newDebugMux(m *metrics.LoopMetrics, hub *ws.Hub, logger *zap.SugaredLogger) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, m.Snapshot(), logger)
	})

	mux.HandleFunc("/debug/contract", func(w http.ResponseWriter, r *http.Request) {
		hash, err := protocol.ContractHash()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, map[string]any{
			"schema": protocol.ContractSchema(),
			"hash":   hash,
		}, logger)
	})

	mux.HandleFunc("/watch", func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			logger.Errorf("websocket accept: %v", err)
			return
		}
		hub.Add(conn)
		defer hub.Remove(conn)
		logger.Infof("spectator attached (%d total)", hub.Count())

		// Spectators are read-only; drain until they hang up.
		for {
			if _, _, err := conn.Read(r.Context()); err != nil {
				_ = conn.Close(websocket.StatusNormalClosure, "")
				return
			}
		}
	})

	return mux
}

func writeJSON(w http.ResponseWriter, v any, logger *zap.SugaredLogger) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Errorf("write debug response: %v", err)
	}
}
