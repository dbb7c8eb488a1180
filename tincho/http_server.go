package main

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/tincho-client/tincho/session"
	"github.com/gosuda/tincho-client/tincho/table"
)

// inspected is what the local inspect server exposes.
type inspected interface {
	Snapshot() (table.State, bool)
	Identity() (session.Identity, bool)
	Confirm() bool
}

type stateResponse struct {
	Connected bool         `json:"connected"`
	Room      string       `json:"room,omitempty"`
	Player    string       `json:"player,omitempty"`
	Table     *table.State `json:"table,omitempty"`
}

// NewInspectHandler serves the live table state for debugging.
func NewInspectHandler(src inspected) http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/state", func(w http.ResponseWriter, r *http.Request) {
		var resp stateResponse
		if id, ok := src.Identity(); ok {
			resp.Connected = true
			resp.Room = id.RoomID
			resp.Player = id.PlayerID
		}
		if st, ok := src.Snapshot(); ok {
			resp.Table = &st
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			log.Warn().Err(err).Msg("[inspect] encode state")
		}
	})
	r.Post("/confirm", func(w http.ResponseWriter, r *http.Request) {
		released := src.Confirm()
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]bool{"released": released})
	})
	return r
}
