package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/polypilot/engine/internal/domain"
)

type syncRequest struct {
	Positions []domain.Position     `json:"positions"`
	Config    domain.AutoExitConfig `json:"config"`
}

type viewRequest struct {
	TweetID  string `json:"tweetId"`
	Text     string `json:"text"`
	MarketID string `json:"marketId"`
}

func (s *Server) handleSyncPositions(w http.ResponseWriter, r *http.Request) {
	installID, ok := s.installID(w, r)
	if !ok {
		return
	}

	var req syncRequest
	if !s.decode(w, r, &req) {
		return
	}

	pending := s.exits.SyncPositions(r.Context(), installID, req.Positions, req.Config)
	s.writeJSON(w, http.StatusOK, map[string]any{"pendingExits": pending})
}

func (s *Server) handleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	installID, ok := s.installID(w, r)
	if !ok {
		return
	}

	var cfg domain.AutoExitConfig
	if !s.decode(w, r, &cfg) {
		return
	}

	s.exits.UpdateConfig(installID, cfg)
	s.writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleListExits(w http.ResponseWriter, r *http.Request) {
	installID, ok := s.installID(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"pendingExits": s.exits.ListPending(installID)})
}

func (s *Server) handleDismiss(w http.ResponseWriter, r *http.Request) {
	installID, ok := s.installID(w, r)
	if !ok {
		return
	}

	positionID := mux.Vars(r)["positionId"]
	dismissed := s.exits.Dismiss(installID, positionID)
	s.writeJSON(w, http.StatusOK, map[string]any{"dismissed": dismissed})
}

func (s *Server) handleRecordView(w http.ResponseWriter, r *http.Request) {
	installID, ok := s.installID(w, r)
	if !ok {
		return
	}

	var req viewRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.TweetID == "" || req.MarketID == "" {
		s.writeError(w, http.StatusBadRequest, "tweetId and marketId are required")
		return
	}

	outcome := s.insights.RecordTweetView(installID, req.TweetID, req.Text, req.MarketID)
	s.writeJSON(w, http.StatusOK, outcome)
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	installID, ok := s.installID(w, r)
	if !ok {
		return
	}

	var settings domain.AIInsightsSettings
	if !s.decode(w, r, &settings) {
		return
	}
	if settings.MinTweetCount < 1 {
		s.writeError(w, http.StatusBadRequest, "minTweetCount must be at least 1")
		return
	}

	s.viewStore.UpdateSettings(installID, settings)
	s.writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleGetInsight(w http.ResponseWriter, r *http.Request) {
	installID, ok := s.installID(w, r)
	if !ok {
		return
	}

	marketID := mux.Vars(r)["marketId"]
	ins := s.insights.Insight(installID, marketID)
	s.writeJSON(w, http.StatusOK, map[string]any{"insight": ins})
}

func (s *Server) handleListInsights(w http.ResponseWriter, r *http.Request) {
	installID, ok := s.installID(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"insights": s.insights.ListInsights(installID)})
}

func (s *Server) handleAuditExits(w http.ResponseWriter, r *http.Request) {
	if s.repo == nil {
		s.writeError(w, http.StatusNotFound, "audit storage disabled")
		return
	}

	events, err := s.repo.RecentExitEvents(100)
	if err != nil {
		s.logger.Error("load audit events", "error", err)
		s.writeError(w, http.StatusInternalServerError, "audit lookup failed")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) installID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := r.Header.Get(installIDHeader)
	if id == "" {
		s.writeError(w, http.StatusBadRequest, "missing "+installIDHeader+" header")
		return "", false
	}
	return id, true
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]any{"error": msg})
}
