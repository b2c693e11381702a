package server

import (
	"fmt"
	"net/http"
	"sync/atomic"

	"github.com/zeusync/worldcore/internal/core/events/bus"
)

// Health is the /healthz body.
type Health struct {
	Status      string      `json:"status"`
	Entities    int         `json:"entities"`
	Components  int         `json:"components"`
	Fingerprint string      `json:"fingerprint"`
	Sessions    int         `json:"sessions"`
	Ticks       uint64      `json:"ticks"`
	Bus         bus.Metrics `json:"bus"`
}

func (s *Server) health() Health {
	return Health{
		Status:      "ok",
		Entities:    s.world.Store.Len(),
		Components:  s.world.Registry.Len(),
		Fingerprint: fmt.Sprintf("%016x", s.world.Registry.Fingerprint()),
		Sessions:    s.Sessions(),
		Ticks:       atomic.LoadUint64(&s.ticks),
		Bus:         s.world.Bus.GetMetrics(),
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}
	body, err := s.encode(s.health())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(body)
}
