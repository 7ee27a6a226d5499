// Package protocol defines the JSON control messages exchanged over the voice
// websocket. Binary frames (recorded utterances client→server, synthesized
// speech server→client) are sent raw and never pass through this package.
package protocol

import (
	"encoding/json"
	"fmt"
)

// Message type discriminators.
const (
	// Client → server
	TypeStart        = "start"
	TypePlanLanguage = "plan_language"

	// Server → client
	TypeStarted        = "started"
	TypeTranscript     = "transcript"
	TypeStatus         = "status"
	TypeStatusInfo     = "status_info"
	TypeWantsPlan      = "wants_plan"
	TypePlanReady      = "plan_ready"
	TypeDiagnosisReady = "diagnosis_ready"
	TypeError          = "error"
)

// Session status values carried by Status messages. These mirror the server
// session states the client is allowed to observe.
const (
	StatusListening      = "listening"
	StatusRecording      = "recording"
	StatusTranscribing   = "transcribing"
	StatusThinking       = "thinking"
	StatusSpeaking       = "speaking"
	StatusGeneratingPlan = "generating_plan"
	StatusError          = "error"
)

// Message is implemented by every control message variant. Handling code
// switches exhaustively on the concrete type.
type Message interface {
	msgType() string
}

// Start initializes a voice session. It must be the first message on the wire.
type Start struct {
	Type      string   `json:"type"`
	Phone     string   `json:"phone"`
	Language  string   `json:"language"`
	ImageURLs []string `json:"imageUrls,omitempty"`
}

// PlanLanguage carries the farmer's chosen plan language.
type PlanLanguage struct {
	Type     string `json:"type"`
	Language string `json:"language"`
}

// Started acknowledges session initialization.
type Started struct {
	Type string `json:"type"`
}

// Transcript carries one conversation turn for display.
type Transcript struct {
	Type string `json:"type"`
	Role string `json:"role"`
	Text string `json:"text"`
}

// Status announces a session phase change.
type Status struct {
	Type   string `json:"type"`
	Status string `json:"status"`
}

// StatusInfo is a non-phase informational event (e.g. "analyzing_images").
type StatusInfo struct {
	Type string `json:"type"`
	Info string `json:"info"`
}

// WantsPlan tells the client the farmer asked for a treatment plan.
type WantsPlan struct {
	Type string `json:"type"`
}

// PlanReady announces a generated plan and its rendered PDF.
type PlanReady struct {
	Type     string `json:"type"`
	PdfURL   string `json:"pdfUrl"`
	Language string `json:"language"`
}

// DiagnosisReady announces a completed diagnosis.
type DiagnosisReady struct {
	Type string `json:"type"`
}

// Error carries a human-readable failure message. The session stays usable
// unless the transport itself failed.
type Error struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func (*Start) msgType() string          { return TypeStart }
func (*PlanLanguage) msgType() string   { return TypePlanLanguage }
func (*Started) msgType() string        { return TypeStarted }
func (*Transcript) msgType() string     { return TypeTranscript }
func (*Status) msgType() string         { return TypeStatus }
func (*StatusInfo) msgType() string     { return TypeStatusInfo }
func (*WantsPlan) msgType() string      { return TypeWantsPlan }
func (*PlanReady) msgType() string      { return TypePlanReady }
func (*DiagnosisReady) msgType() string { return TypeDiagnosisReady }
func (*Error) msgType() string          { return TypeError }

// TypeOf reports the wire discriminator for a message variant.
func TypeOf(msg Message) string { return msg.msgType() }

// ErrUnknownType is returned by Decode for unrecognized discriminators.
// Callers treat it as a malformed message and ignore the frame.
type ErrUnknownType struct{ Type string }

func (e ErrUnknownType) Error() string { return fmt.Sprintf("unknown message type %q", e.Type) }

// Decode parses a JSON control frame into its typed variant.
func Decode(data []byte) (Message, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}

	var msg Message
	switch head.Type {
	case TypeStart:
		msg = &Start{}
	case TypePlanLanguage:
		msg = &PlanLanguage{}
	case TypeStarted:
		msg = &Started{}
	case TypeTranscript:
		msg = &Transcript{}
	case TypeStatus:
		msg = &Status{}
	case TypeStatusInfo:
		msg = &StatusInfo{}
	case TypeWantsPlan:
		msg = &WantsPlan{}
	case TypePlanReady:
		msg = &PlanReady{}
	case TypeDiagnosisReady:
		msg = &DiagnosisReady{}
	case TypeError:
		msg = &Error{}
	default:
		return nil, ErrUnknownType{Type: head.Type}
	}
	if err := json.Unmarshal(data, msg); err != nil {
		return nil, fmt.Errorf("decode %s: %w", head.Type, err)
	}
	return msg, nil
}

// Encode marshals a control message, stamping its type discriminator so
// callers cannot send a variant with a mismatched or empty type field.
func Encode(msg Message) ([]byte, error) {
	stamp(msg)
	return json.Marshal(msg)
}

func stamp(msg Message) {
	switch m := msg.(type) {
	case *Start:
		m.Type = TypeStart
	case *PlanLanguage:
		m.Type = TypePlanLanguage
	case *Started:
		m.Type = TypeStarted
	case *Transcript:
		m.Type = TypeTranscript
	case *Status:
		m.Type = TypeStatus
	case *StatusInfo:
		m.Type = TypeStatusInfo
	case *WantsPlan:
		m.Type = TypeWantsPlan
	case *PlanReady:
		m.Type = TypePlanReady
	case *DiagnosisReady:
		m.Type = TypeDiagnosisReady
	case *Error:
		m.Type = TypeError
	}
}
