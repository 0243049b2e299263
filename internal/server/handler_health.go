package server

import (
	"encoding/json"
	"net/http"
	"runtime"
	"time"

	"github.com/jzx17/roundrobin/pkg/scheduler"
)

type healthResponse struct {
	Status    string            `json:"status"`
	RequestID string            `json:"request_id"`
	GoVersion string            `json:"go_version"`
	Uptime    string            `json:"uptime"`
	Scheduler *scheduler.Status `json:"scheduler,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:    "healthy",
		RequestID: RequestIDFromContext(r.Context()),
		GoVersion: runtime.Version(),
		Uptime:    time.Since(s.startTime).Round(time.Second).String(),
	}
	if s.status != nil {
		st := s.status.Status()
		resp.Scheduler = &st
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Warn("encode health response", "error", err)
	}
}
