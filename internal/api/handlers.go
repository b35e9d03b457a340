package api

import (
	"encoding/json"
	"net/http"

	"github.com/opslatam/pistoleado/internal/session"
)

type scanRequest struct {
	Payload string `json:"payload"`
}

type sessionResponse struct {
	Provider     string `json:"provider"`
	Container    string `json:"container"`
	ScanCount    int    `json:"scan_count"`
	AudioEnabled bool   `json:"audio_enabled"`
	Operator     string `json:"operator"`
	Phase        string `json:"phase"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Debug().Err(err).Msg("response encode failed")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) sessionSnapshot() sessionResponse {
	return sessionResponse{
		Provider:     s.store.Provider(),
		Container:    s.store.Container(),
		ScanCount:    s.store.ScanCount(),
		AudioEnabled: s.store.AudioEnabled(),
		Operator:     s.pipeline.Operator(),
		Phase:        string(s.pipeline.Phase()),
	}
}

// handleScan feeds one raw payload through the pipeline and answers with the
// resulting session state and the newest log events. Responding only after
// Handle returns is the "ready for next scan" signal to the station.
func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	var req scanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "cuerpo inválido")
		return
	}

	s.pipeline.Handle(r.Context(), req.Payload)

	events := s.store.Events()
	if len(events) > 5 {
		events = events[:5]
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"session": s.sessionSnapshot(),
		"events":  events,
	})
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.sessionSnapshot())
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	events := s.store.Events()
	if events == nil {
		events = []session.ScanEvent{}
	}
	s.writeJSON(w, http.StatusOK, events)
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	provider := s.store.Provider()
	if provider == "" {
		s.writeError(w, http.StatusConflict, "sin logística seleccionada")
		return
	}
	snap, err := s.stats.Refresh(r.Context(), provider)
	if err != nil {
		// Serve the last known snapshot when the remote read fails.
		snap = s.stats.Last()
	}
	if snap == nil {
		s.writeError(w, http.StatusBadGateway, "progreso no disponible")
		return
	}
	s.writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleProviders(w http.ResponseWriter, r *http.Request) {
	providers, err := s.providers.ListProviders(r.Context(), s.now())
	if err != nil {
		s.writeError(w, http.StatusBadGateway, "logísticas no disponibles")
		return
	}
	s.writeJSON(w, http.StatusOK, providers)
}

func (s *Server) handleSelectProvider(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ID == "" {
		s.writeError(w, http.StatusBadRequest, "id de logística requerido")
		return
	}
	s.pipeline.SelectProvider(r.Context(), req.ID)
	s.writeJSON(w, http.StatusOK, s.sessionSnapshot())
}

func (s *Server) handleSetOperator(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ID == "" {
		s.writeError(w, http.StatusBadRequest, "id de operador requerido")
		return
	}
	s.pipeline.SetOperator(req.ID)
	s.writeJSON(w, http.StatusOK, s.sessionSnapshot())
}

func (s *Server) handleAudio(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Enabled bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "cuerpo inválido")
		return
	}
	s.store.SetAudioEnabled(req.Enabled)
	s.writeJSON(w, http.StatusOK, s.sessionSnapshot())
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
