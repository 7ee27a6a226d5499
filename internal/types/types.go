package types

import "time"

// Role values for conversation turns.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one conversation turn. The ordered message slice held by a voice
// session is the single source of truth for generation context.
type Message struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// Diagnosis is the normalized result of the external disease-detection API.
// All fields are optional at the boundary; missing fields stay zero-valued.
type Diagnosis struct {
	Disease         string   `json:"disease"`
	Severity        string   `json:"severity"`
	Confidence      float64  `json:"confidence"`
	Symptoms        []string `json:"symptoms"`
	Treatment       string   `json:"treatment"`
	Dosage          string   `json:"dosage"`
	ImmediateAction string   `json:"immediate_action"`
}

// CaseRecord is the best-effort archive row written after a diagnosis or a
// generated plan. Persistence failures never surface to the farmer.
type CaseRecord struct {
	ID        string    `json:"id"`
	Phone     string    `json:"phone"`
	Language  string    `json:"language"`
	Crop      string    `json:"crop"`
	Location  string    `json:"location"`
	Summary   string    `json:"summary"`
	Diagnosis Diagnosis `json:"diagnosis"`
	ImageURLs []string  `json:"image_urls"`
	PdfURL    string    `json:"pdf_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Event is one entry in a session's operator-facing event log.
type Event struct {
	Type    string         `json:"type"`
	Ts      time.Time      `json:"timestamp"`
	Payload map[string]any `json:"payload,omitempty"`
}
