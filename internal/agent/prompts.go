package agent

import (
	"fmt"
	"strings"

	"github.com/deepak6009/khetsaathi-sub000/internal/types"
)

const factsSystemPrompt = `You read a conversation between a farmer (user) and a crop assistant.
Extract ONLY facts the farmer themselves stated:
- "crop": the crop they grow, translated to its common English name (e.g. "Rice", "Cotton").
- "location": the village/district/region of their farm, transliterated to Latin script.
Respond with a single JSON object {"crop": string|null, "location": string|null}.
Use null for anything the farmer has not said. Never guess, never take values
from the assistant's own messages.`

const intentSystemPrompt = `You read the last few turns between a farmer (user) and a crop assistant.
The assistant may have offered a 7-day treatment plan. Answer "yes" only if the
farmer's latest message affirmatively accepts the plan offer, in any language
(e.g. "yes", "haan", "avunu", "sari", "ok cheyyi"). Otherwise answer "no".
Answer with exactly one word: yes or no.`

func replySystemPrompt(language string, diag *types.Diagnosis, flags PhaseFlags) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are KhetSaathi, a friendly crop-disease assistant for Indian farmers. ")
	fmt.Fprintf(&b, "Reply ENTIRELY in %s. Never mix languages. Keep replies short and spoken-style, two or three sentences, no markdown.\n", language)
	switch {
	case flags.PlanGenerated:
		b.WriteString("A treatment plan has already been produced. Answer follow-up questions using the diagnosis and plan context below.\n")
	case diag != nil:
		b.WriteString("A diagnosis just became available. Explain it in plain words a farmer understands, then ask whether they would like a 7-day treatment plan.\n")
	default:
		b.WriteString("No diagnosis yet. Your goal is to learn the farmer's crop and their farm location, conversationally. Ask for at most ONE missing detail per turn, never both at once. If one is already known, acknowledge it and ask only for the other.\n")
	}
	if diag != nil {
		fmt.Fprintf(&b, "\nDiagnosis: disease=%s severity=%s confidence=%.2f\nSymptoms: %s\nTreatment: %s\nDosage: %s\nImmediate action: %s\n",
			diag.Disease, diag.Severity, diag.Confidence,
			strings.Join(diag.Symptoms, "; "), diag.Treatment, diag.Dosage, diag.ImmediateAction)
	}
	return b.String()
}

func planSystemPrompt(language string, diag *types.Diagnosis) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write a detailed 7-day crop treatment plan ENTIRELY in %s. ", language)
	b.WriteString("Structure it day by day (Day 1 .. Day 7) with concrete actions, product names, dosages and safety precautions a smallholder farmer can follow. Plain text only.\n")
	if diag != nil {
		fmt.Fprintf(&b, "\nDiagnosis to treat: disease=%s severity=%s\nTreatment: %s\nDosage: %s\nImmediate action: %s\n",
			diag.Disease, diag.Severity, diag.Treatment, diag.Dosage, diag.ImmediateAction)
	}
	return b.String()
}
