package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/deepak6009/khetsaathi-sub000/internal/types"
)

// Facts holds details mined from the conversation. Empty string means unknown.
type Facts struct {
	Crop     string `json:"crop"`
	Location string `json:"location"`
}

// PhaseFlags tells reply generation where the conversation stands.
type PhaseFlags struct {
	HasDiagnosis  bool
	PlanGenerated bool
}

type Client struct {
	gc        *genai.Client
	chatModel string
	fastModel string
}

func New(ctx context.Context, apiKey, chatModel, fastModel string) (*Client, error) {
	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("genai client: %w", err)
	}
	return &Client{gc: gc, chatModel: chatModel, fastModel: fastModel}, nil
}

// GenAI exposes the underlying SDK client so the speech layer can share it.
func (c *Client) GenAI() *genai.Client { return c.gc }

// GenerateReply produces the next assistant utterance in the session language.
func (c *Client) GenerateReply(ctx context.Context, history []types.Message, language string, diag *types.Diagnosis, flags PhaseFlags) (string, error) {
	start := time.Now()
	sys := replySystemPrompt(language, diag, flags)
	contents := historyToContents(history)
	if len(contents) == 0 {
		contents = []*genai.Content{genai.NewContentFromText("Hello", genai.RoleUser)}
	}
	resp, err := c.gc.Models.GenerateContent(ctx, c.chatModel, contents, &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(sys, genai.RoleUser),
		Temperature:       genai.Ptr(float32(0.6)),
		MaxOutputTokens:   512,
	})
	if err != nil {
		return "", fmt.Errorf("generate reply: %w", err)
	}
	out := strings.TrimSpace(resp.Text())
	if out == "" {
		return "", fmt.Errorf("generate reply: empty response")
	}
	log.Printf("[agent] reply generated lang=%s ms=%d", language, time.Since(start).Milliseconds())
	return out, nil
}

// ExtractFacts mines crop and location from the conversation so far.
// Fields the model cannot attribute to the user come back empty.
func (c *Client) ExtractFacts(ctx context.Context, history []types.Message) (Facts, error) {
	contents := []*genai.Content{genai.NewContentFromText(renderHistory(history), genai.RoleUser)}
	resp, err := c.gc.Models.GenerateContent(ctx, c.fastModel, contents, &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(factsSystemPrompt, genai.RoleUser),
		ResponseMIMEType:  "application/json",
		Temperature:       genai.Ptr(float32(0)),
	})
	if err != nil {
		return Facts{}, fmt.Errorf("extract facts: %w", err)
	}
	return parseFacts(resp.Text())
}

// DetectPlanIntent decides whether the farmer just agreed to a treatment plan.
func (c *Client) DetectPlanIntent(ctx context.Context, recent []types.Message) (bool, error) {
	contents := []*genai.Content{genai.NewContentFromText(renderHistory(recent), genai.RoleUser)}
	resp, err := c.gc.Models.GenerateContent(ctx, c.fastModel, contents, &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(intentSystemPrompt, genai.RoleUser),
		Temperature:       genai.Ptr(float32(0)),
		MaxOutputTokens:   8,
	})
	if err != nil {
		return false, fmt.Errorf("detect plan intent: %w", err)
	}
	return parseYesNo(resp.Text()), nil
}

// GeneratePlan produces the long-form 7-day treatment plan text.
func (c *Client) GeneratePlan(ctx context.Context, history []types.Message, diag *types.Diagnosis, language string) (string, error) {
	start := time.Now()
	sys := planSystemPrompt(language, diag)
	contents := []*genai.Content{genai.NewContentFromText(renderHistory(history), genai.RoleUser)}
	resp, err := c.gc.Models.GenerateContent(ctx, c.chatModel, contents, &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(sys, genai.RoleUser),
		Temperature:       genai.Ptr(float32(0.4)),
	})
	if err != nil {
		return "", fmt.Errorf("generate plan: %w", err)
	}
	out := strings.TrimSpace(resp.Text())
	if out == "" {
		return "", fmt.Errorf("generate plan: empty response")
	}
	log.Printf("[agent] plan generated lang=%s chars=%d ms=%d", language, len(out), time.Since(start).Milliseconds())
	return out, nil
}

// historyToContents maps conversation turns to model contents. Gemini wants
// alternating turns starting with user, so a leading assistant greeting gets
// a synthetic opener and consecutive same-role turns are merged.
func historyToContents(history []types.Message) []*genai.Content {
	out := make([]*genai.Content, 0, len(history))
	var lastRole genai.Role
	for _, m := range history {
		role := genai.Role(genai.RoleUser)
		if m.Role == types.RoleAssistant {
			role = genai.RoleModel
		}
		if len(out) == 0 && role != genai.RoleUser {
			out = append(out, genai.NewContentFromText("Namaste.", genai.RoleUser))
			lastRole = genai.RoleUser
		}
		if role == lastRole && len(out) > 0 {
			last := out[len(out)-1]
			last.Parts = append(last.Parts, &genai.Part{Text: m.Text})
			continue
		}
		out = append(out, genai.NewContentFromText(m.Text, role))
		lastRole = role
	}
	return out
}

func renderHistory(history []types.Message) string {
	var b strings.Builder
	for _, m := range history {
		b.WriteString(m.Role)
		b.WriteString(": ")
		b.WriteString(m.Text)
		b.WriteString("\n")
	}
	if b.Len() == 0 {
		return "(no conversation yet)"
	}
	return b.String()
}

// parseFacts is tolerant of code fences and JSON null fields.
func parseFacts(raw string) (Facts, error) {
	raw = stripFences(raw)
	var got struct {
		Crop     *string `json:"crop"`
		Location *string `json:"location"`
	}
	if err := json.Unmarshal([]byte(raw), &got); err != nil {
		return Facts{}, fmt.Errorf("parse facts: %w", err)
	}
	var f Facts
	if got.Crop != nil {
		f.Crop = strings.TrimSpace(*got.Crop)
	}
	if got.Location != nil {
		f.Location = strings.TrimSpace(*got.Location)
	}
	return f, nil
}

func parseYesNo(raw string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(stripFences(raw))), "yes")
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(s, "```")
	}
	return strings.TrimSpace(s)
}
