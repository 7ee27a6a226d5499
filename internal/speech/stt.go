package speech

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"google.golang.org/genai"
)

// Transcriber turns one recorded utterance into text.
type Transcriber struct {
	gc    *genai.Client
	model string
}

func NewTranscriber(gc *genai.Client, model string) *Transcriber {
	return &Transcriber{gc: gc, model: model}
}

// Transcribe converts raw PCM16 mono 16kHz audio to text. A silent or
// unintelligible utterance comes back as an empty string, not an error.
func (t *Transcriber) Transcribe(ctx context.Context, pcm []byte, languageHint string) (string, error) {
	start := time.Now()
	wav := EncodeWAVPCM16(pcm, 16000)
	prompt := fmt.Sprintf("Transcribe this speech verbatim. The speaker is most likely speaking %s. Output only the transcript text, nothing else. If there is no intelligible speech, output nothing.", languageHint)
	contents := []*genai.Content{{
		Role: genai.RoleUser,
		Parts: []*genai.Part{
			{Text: prompt},
			{InlineData: &genai.Blob{MIMEType: "audio/wav", Data: wav}},
		},
	}}
	resp, err := t.gc.Models.GenerateContent(ctx, t.model, contents, &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(0)),
	})
	if err != nil {
		sttRequestsTotal.WithLabelValues("error").Inc()
		return "", fmt.Errorf("transcribe: %w", err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		sttRequestsTotal.WithLabelValues("empty").Inc()
	} else {
		sttRequestsTotal.WithLabelValues("ok").Inc()
	}
	sttLatencyMS.Observe(float64(time.Since(start).Milliseconds()))
	log.Printf("[stt] transcribed bytes=%d lang=%s chars=%d ms=%d", len(pcm), languageHint, len(text), time.Since(start).Milliseconds())
	return text, nil
}
