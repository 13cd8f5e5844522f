package web

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/samber/lo"

	"github.com/kasboi/payecards-bot/internal/domain/model"
	"github.com/kasboi/payecards-bot/internal/domain/ports/repository"
	"github.com/kasboi/payecards-bot/internal/infra/logging"
)

const maxHistoryLimit = 100

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	result := map[string]string{}
	for name, check := range s.checks {
		if err := check(r.Context()); err != nil {
			status = http.StatusServiceUnavailable
			result[name] = err.Error()
			continue
		}
		result[name] = "ok"
	}
	writeJSON(w, status, result)
}

type tokenRequest struct {
	APIKey string `json:"api_key" validate:"required"`
}

type tokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	if s.apiKey == "" {
		writeError(w, http.StatusForbidden, "admin api is disabled")
		return
	}
	var req tokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "api_key is required")
		return
	}
	if subtle.ConstantTimeCompare([]byte(req.APIKey), []byte(s.apiKey)) != 1 {
		writeError(w, http.StatusUnauthorized, "invalid api key")
		return
	}
	tok, exp, err := s.auth.Mint()
	if err != nil {
		logging.With(r.Context(), s.log).Error().Err(err).Msg("mint admin token")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{Token: tok, ExpiresAt: exp})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	sum, err := s.statsUC.Summary(r.Context())
	if err != nil {
		logging.With(r.Context(), s.log).Error().Err(err).Msg("stats summary")
		writeError(w, http.StatusInternalServerError, "failed to load stats")
		return
	}
	resp := struct {
		TotalUsers    int                `json:"total_users"`
		LastBroadcast *broadcastResponse `json:"last_broadcast"`
	}{TotalUsers: sum.TotalUsers}
	if sum.LastBroadcast != nil {
		b := toBroadcastResponse(sum.LastBroadcast)
		resp.LastBroadcast = &b
	}
	writeJSON(w, http.StatusOK, resp)
}

type broadcastResponse struct {
	ID              string    `json:"id"`
	InitiatorID     int64     `json:"initiator_id"`
	Text            string    `json:"text"`
	SentAt          time.Time `json:"sent_at"`
	TotalRecipients int       `json:"total_recipients"`
	Succeeded       int       `json:"succeeded"`
	Failed          int       `json:"failed"`
	SuccessRate     *float64  `json:"success_rate"`
}

func toBroadcastResponse(rec *model.BroadcastRecord) broadcastResponse {
	out := broadcastResponse{
		ID:              rec.ID,
		InitiatorID:     rec.InitiatorID,
		Text:            rec.Text,
		SentAt:          rec.SentAt,
		TotalRecipients: rec.TotalRecipients,
		Succeeded:       rec.Succeeded,
		Failed:          rec.Failed,
	}
	if rate, ok := rec.SuccessRate(); ok {
		out.SuccessRate = &rate
	}
	return out
}

func (s *Server) handleBroadcasts(w http.ResponseWriter, r *http.Request) {
	limit := repository.DefaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || s.validate.Var(n, "min=1,max=100") != nil {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and "+strconv.Itoa(maxHistoryLimit))
			return
		}
		limit = n
	}

	records, err := s.broadcastUC.History(r.Context(), limit)
	if err != nil {
		logging.With(r.Context(), s.log).Error().Err(err).Msg("broadcast history")
		writeError(w, http.StatusInternalServerError, "failed to load history")
		return
	}
	items := lo.Map(records, func(rec *model.BroadcastRecord, _ int) broadcastResponse {
		return toBroadcastResponse(rec)
	})
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}
