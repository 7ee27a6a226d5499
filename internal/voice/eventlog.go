package voice

import (
	"sync"
	"time"

	"github.com/deepak6009/khetsaathi-sub000/internal/types"
)

// EventLog keeps a bounded per-session event trail for operators.
type EventLog struct {
	mu     sync.RWMutex
	events map[string][]types.Event
}

func NewEventLog() *EventLog {
	return &EventLog{events: make(map[string][]types.Event)}
}

func (l *EventLog) Append(sessionID, typ string, payload map[string]any) types.Event {
	evt := types.Event{Type: typ, Ts: time.Now().UTC(), Payload: payload}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events[sessionID] = append(l.events[sessionID], evt)
	// Cap total events per session to avoid unbounded growth
	const maxEvents = 200
	if n := len(l.events[sessionID]); n > maxEvents {
		// Keep space for a single truncation warning so the total stays at maxEvents
		keep := maxEvents - 1
		dropped := n - keep
		l.events[sessionID] = append([]types.Event(nil), l.events[sessionID][n-keep:]...)
		warn := types.Event{Type: "events_truncated", Ts: time.Now().UTC(), Payload: map[string]any{"session_id": sessionID, "dropped": dropped, "kept": keep}}
		l.events[sessionID] = append(l.events[sessionID], warn)
	}
	return evt
}

func (l *EventLog) List(sessionID string) []types.Event {
	l.mu.RLock()
	defer l.mu.RUnlock()
	src := l.events[sessionID]
	out := make([]types.Event, len(src))
	copy(out, src)
	return out
}

func (l *EventLog) Drop(sessionID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.events, sessionID)
}
