package voice

import "strings"

// Spoken openers per session language. Keys are lowercased language names.
var greetings = map[string]string{
	"telugu":  "నమస్కారం! నేను మీ పంట సహాయకుడిని. మీ పంట గురించి చెప్పండి.",
	"hindi":   "नमस्ते! मैं आपका फसल सहायक हूँ। अपनी फसल के बारे में बताइए।",
	"tamil":   "வணக்கம்! நான் உங்கள் பயிர் உதவியாளர். உங்கள் பயிரைப் பற்றி சொல்லுங்கள்.",
	"kannada": "ನಮಸ್ಕಾರ! ನಾನು ನಿಮ್ಮ ಬೆಳೆ ಸಹಾಯಕ. ನಿಮ್ಮ ಬೆಳೆ ಬಗ್ಗೆ ಹೇಳಿ.",
	"english": "Hello! I am your crop assistant. Tell me about your crop.",
}

var planConfirmations = map[string]string{
	"telugu":  "మీ ఏడు రోజుల ప్రణాళిక సిద్ధంగా ఉంది. మీరు దాన్ని డౌన్‌లోడ్ చేసుకోవచ్చు.",
	"hindi":   "आपकी सात दिन की योजना तैयार है। आप इसे डाउनलोड कर सकते हैं।",
	"tamil":   "உங்கள் ஏழு நாள் திட்டம் தயாராக உள்ளது. அதை பதிவிறக்கலாம்.",
	"kannada": "ನಿಮ್ಮ ಏಳು ದಿನಗಳ ಯೋಜನೆ ಸಿದ್ಧವಾಗಿದೆ. ಅದನ್ನು ಡೌನ್‌ಲೋಡ್ ಮಾಡಬಹುದು.",
	"english": "Your seven-day plan is ready. You can download it now.",
}

func GreetingFor(language string) string {
	if g, ok := greetings[strings.ToLower(strings.TrimSpace(language))]; ok {
		return g
	}
	return greetings["english"]
}

func PlanConfirmationFor(language string) string {
	if g, ok := planConfirmations[strings.ToLower(strings.TrimSpace(language))]; ok {
		return g
	}
	return planConfirmations["english"]
}
