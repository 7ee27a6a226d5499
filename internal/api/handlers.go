package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/deepak6009/khetsaathi-sub000/internal/auth"
	"github.com/deepak6009/khetsaathi-sub000/internal/casedb"
	"github.com/deepak6009/khetsaathi-sub000/internal/config"
	"github.com/deepak6009/khetsaathi-sub000/internal/health"
	"github.com/deepak6009/khetsaathi-sub000/internal/voice"
)

type Handlers struct {
	cfg    config.Config
	mgr    *voice.Manager
	events *voice.EventLog
	cases  *casedb.Store
}

func NewHandlers(cfg config.Config, mgr *voice.Manager, events *voice.EventLog, cases *casedb.Store) *Handlers {
	return &Handlers{cfg: cfg, mgr: mgr, events: events, cases: cases}
}

// HandleCreateSession mints a session ID and a signed token for the voice
// websocket. The client connects to ws_path with both.
func (h *Handlers) HandleCreateSession(w http.ResponseWriter, r *http.Request) {
	if h.cfg.Voice.TokenSecret == "" {
		http.Error(w, "voice token secret not configured", http.StatusServiceUnavailable)
		return
	}

	meta := h.mgr.Mint()
	exp := time.Now().Add(time.Duration(h.cfg.Voice.TokenExpMin) * time.Minute).Unix()
	token, err := auth.GenerateSessionToken(h.cfg.Voice.TokenSecret, meta.ID, exp)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.events.Append(meta.ID, "session_created", nil)

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"session_id": meta.ID,
		"token":      token,
		"expires_at": exp,
		"ws_path":    "/ws/voice?session_id=" + meta.ID + "&token=" + token,
	})
}

func (h *Handlers) HandleListEvents(w http.ResponseWriter, r *http.Request, id string) {
	if !h.mgr.Known(id) {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"session_id": id,
		"events":     h.events.List(id),
	})
}

// HandleListCases returns a farmer's archived cases, most recent first.
func (h *Handlers) HandleListCases(w http.ResponseWriter, r *http.Request) {
	phone := r.URL.Query().Get("phone")
	if phone == "" {
		http.Error(w, "phone query parameter required", http.StatusBadRequest)
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	records, err := h.cases.ListCasesByPhone(r.Context(), phone, limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"cases": records})
}

func (h *Handlers) HandleGetCase(w http.ResponseWriter, r *http.Request, id string) {
	rec, err := h.cases.GetCase(r.Context(), id)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(rec)
}

func (h *Handlers) HandleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := health.CheckAll(ctx, h.cfg, h.cases.DB())
	w.Header().Set("Content-Type", "application/json")
	if !status.OK {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(status)
}
