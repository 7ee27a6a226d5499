package speech

import (
	"context"
	"fmt"
	"log"
	"time"

	"google.golang.org/genai"
)

// Synthesizer turns assistant text into one playable audio segment.
type Synthesizer struct {
	gc    *genai.Client
	model string
}

func NewSynthesizer(gc *genai.Client, model string) *Synthesizer {
	return &Synthesizer{gc: gc, model: model}
}

// Synthesize returns a WAV segment (PCM16 mono 24kHz) for the given text in
// the given language. The voice is resolved via VoiceFor.
func (s *Synthesizer) Synthesize(ctx context.Context, text, language string) ([]byte, error) {
	start := time.Now()
	voice := VoiceFor(language)
	contents := []*genai.Content{genai.NewContentFromText(text, genai.RoleUser)}
	resp, err := s.gc.Models.GenerateContent(ctx, s.model, contents, &genai.GenerateContentConfig{
		ResponseModalities: []string{"AUDIO"},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: voice.Name},
			},
		},
	})
	if err != nil {
		ttsSynthesisTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("synthesize: %w", err)
	}
	pcm := firstAudioPart(resp)
	if len(pcm) == 0 {
		ttsSynthesisTotal.WithLabelValues("empty").Inc()
		return nil, fmt.Errorf("synthesize: no audio in response")
	}
	ttsSynthesisTotal.WithLabelValues("ok").Inc()
	ttsLatencyMS.Observe(float64(time.Since(start).Milliseconds()))
	log.Printf("[tts] synthesized lang=%s voice=%s chars=%d pcm_bytes=%d ms=%d", language, voice.Name, len(text), len(pcm), time.Since(start).Milliseconds())
	// The model returns raw PCM16 mono 24kHz
	return EncodeWAVPCM16(pcm, 24000), nil
}

func firstAudioPart(resp *genai.GenerateContentResponse) []byte {
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, p := range cand.Content.Parts {
			if p.InlineData != nil && len(p.InlineData.Data) > 0 {
				return p.InlineData.Data
			}
		}
	}
	return nil
}
