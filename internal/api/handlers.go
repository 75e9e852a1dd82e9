// internal/api/handlers.go
package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

type statusResponse struct {
	Running   bool       `json:"running"`
	LastRunAt *time.Time `json:"lastRunAt"`
}

type toggleResponse struct {
	OK      bool `json:"ok"`
	Running bool `json:"running"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.state.Snapshot())
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	snap := s.state.Snapshot()
	writeJSON(w, http.StatusOK, statusResponse{Running: snap.Running, LastRunAt: snap.LastRunAt})
}

// handleSetRunning включает или выключает флайвил после проверки подписи
func (s *Server) handleSetRunning(running bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req adminRequest
		body := http.MaxBytesReader(w, r.Body, 1<<20)
		if err := json.NewDecoder(body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Malformed request"})
			return
		}

		if err := verifyAdmin(req, s.cfg.AllowedPubkey); err != nil {
			var authErr *AuthError
			if errors.As(err, &authErr) {
				s.logger.Warn("Admin request rejected",
					zap.String("remote", r.RemoteAddr),
					zap.Int("status", authErr.Status),
					zap.String("reason", authErr.Message))
				writeJSON(w, authErr.Status, errorResponse{Error: authErr.Message})
				return
			}
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Internal error"})
			return
		}

		snap, err := s.state.SetRunning(r.Context(), running)
		if err != nil {
			s.logger.Error("Failed to persist running flag", zap.Bool("running", running), zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Internal error"})
			return
		}
		if s.metrics != nil {
			s.metrics.SetRunning(snap.Running)
		}

		s.logger.Info("Flywheel running flag changed", zap.Bool("running", snap.Running))
		writeJSON(w, http.StatusOK, toggleResponse{OK: true, Running: snap.Running})
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
