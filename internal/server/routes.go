package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/huddlewire/huddle/internal/coordinator"
)

func newUpgrader(allowedOrigin string) *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  64 * 1024,
		WriteBufferSize: 64 * 1024,
		CheckOrigin: func(r *http.Request) bool {
			if allowedOrigin == "" {
				return true
			}
			// CLI clients send no Origin header at all.
			origin := r.Header.Get("Origin")
			return origin == "" || origin == allowedOrigin
		},
	}
}

// ServeWs upgrades the connection and hands it to the mesh hub.
func ServeWs(hub *coordinator.Hub, upgrader *websocket.Upgrader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			slog.Warn("websocket upgrade failed", "err", err)
			return
		}

		client := coordinator.NewClient(hub, conn)
		go client.WritePump()
		go client.ReadPump()
	}
}

// ServePair upgrades the connection and hands it to the pairwise hub.
func ServePair(hub *coordinator.PairHub, upgrader *websocket.Upgrader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			slog.Warn("websocket upgrade failed", "err", err)
			return
		}

		client := coordinator.NewPairClient(hub, conn)
		go client.WritePump()
		go client.ReadPump()
	}
}

// Health reports liveness.
func Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("coordinator is healthy."))
}

// RoomStatus is one row of the debug room listing.
type RoomStatus struct {
	Room    string `json:"room"`
	Members int    `json:"members"`
}

// DebugRooms lists current mesh rooms and their member counts as JSON.
// Rooms are ephemeral and in-memory; this reflects the instant of the
// request only.
func DebugRooms(hub *coordinator.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sizes := hub.Registry().RoomSizes()
		rooms := make([]RoomStatus, 0, len(sizes))
		for id, n := range sizes {
			rooms = append(rooms, RoomStatus{Room: id, Members: n})
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(rooms)
	}
}

// Mux assembles the coordinator's HTTP surface. An empty allowedOrigin
// accepts websocket upgrades from any origin.
func Mux(hub *coordinator.Hub, pairHub *coordinator.PairHub, allowedOrigin string) *http.ServeMux {
	upgrader := newUpgrader(allowedOrigin)
	mux := http.NewServeMux()
	mux.HandleFunc("/health", Health)
	mux.HandleFunc("/ws", ServeWs(hub, upgrader))
	mux.HandleFunc("/pair", ServePair(pairHub, upgrader))
	mux.HandleFunc("/debug/rooms", DebugRooms(hub))
	return mux
}
