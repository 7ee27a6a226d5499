package voice

import (
	"context"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	ws "nhooyr.io/websocket"

	"github.com/deepak6009/khetsaathi-sub000/internal/auth"
	"github.com/deepak6009/khetsaathi-sub000/internal/config"
	"github.com/deepak6009/khetsaathi-sub000/internal/protocol"
)

// Handler upgrades /ws/voice connections and pumps the session read loop.
type Handler struct {
	Cfg config.Config
	Mgr *Manager
	Dep Deps
}

func NewHandler(cfg config.Config, mgr *Manager, dep Deps) *Handler {
	return &Handler{Cfg: cfg, Mgr: mgr, Dep: dep}
}

// wsSender serializes all writes to one connection.
type wsSender struct {
	mu   sync.Mutex
	conn *ws.Conn
}

func (w *wsSender) SendJSON(ctx context.Context, msg protocol.Message) error {
	data, err := protocol.Encode(msg)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn.Write(ctx, ws.MessageText, data)
}

func (w *wsSender) SendAudio(ctx context.Context, data []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn.Write(ctx, ws.MessageBinary, data)
}

func (h *Handler) HandleVoiceWS(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	sessionID := q.Get("session_id")
	if sessionID == "" {
		http.Error(w, "missing session_id", http.StatusBadRequest)
		return
	}
	if !h.Mgr.Known(sessionID) {
		http.Error(w, "unknown session", http.StatusNotFound)
		return
	}

	// Token from the Authorization header, or the token query parameter for
	// clients that cannot set websocket headers.
	token := q.Get("token")
	if authz := r.Header.Get("Authorization"); strings.HasPrefix(authz, "Bearer ") {
		token = strings.TrimPrefix(authz, "Bearer ")
	}
	if token == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}
	if h.Cfg.Voice.TokenSecret == "" {
		http.Error(w, "session auth not configured", http.StatusUnauthorized)
		return
	}
	if _, _, err := auth.ValidateSessionToken(h.Cfg.Voice.TokenSecret, token, sessionID, time.Now(), 30); err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	c, err := ws.Accept(w, r, nil)
	if err != nil {
		log.Printf("[voice] ws accept: %v", err)
		return
	}
	// Utterances are raw PCM; a minute of speech is ~2 MB.
	c.SetReadLimit(8 << 20)

	sess := NewSession(context.Background(), sessionID, h.Dep, &wsSender{conn: c})
	if h.Mgr.Attach(sessionID, sess) {
		h.Dep.Events.Append(sessionID, "connection_replaced", nil)
	}
	h.Dep.Events.Append(sessionID, "connected", nil)
	log.Printf("[voice] connected sid=%s", sessionID)

	ctx := r.Context()
	for {
		typ, data, err := c.Read(ctx)
		if err != nil {
			// Transport failure or close: terminal for the session.
			break
		}
		switch typ {
		case ws.MessageText:
			msg, err := protocol.Decode(data)
			if err != nil {
				h.Dep.Events.Append(sessionID, "message_invalid", map[string]any{"error": err.Error()})
				continue
			}
			switch m := msg.(type) {
			case *protocol.Start:
				sess.HandleStart(m)
			case *protocol.PlanLanguage:
				sess.HandlePlanLanguage(m)
			default:
				h.Dep.Events.Append(sessionID, "message_unexpected", map[string]any{"type": protocol.TypeOf(msg)})
			}
		case ws.MessageBinary:
			sess.HandleAudio(data)
		}
	}

	sess.Close()
	h.Mgr.Detach(sessionID, sess)
	_ = c.Close(ws.StatusNormalClosure, "done")
	h.Dep.Events.Append(sessionID, "disconnected", nil)
	log.Printf("[voice] disconnected sid=%s", sessionID)
}
