package speech

import "strings"

// Voice is a synthesis voice descriptor.
type Voice struct {
	Name string
	Lang string
}

var defaultVoice = Voice{Name: "Kore", Lang: "en-IN"}

// voiceTable maps normalized language keys to prebuilt voices. Keys are either
// full BCP-47 codes or bare language prefixes.
var voiceTable = map[string]Voice{
	"te-in": {Name: "Leda", Lang: "te-IN"},
	"te":    {Name: "Leda", Lang: "te-IN"},
	"hi-in": {Name: "Puck", Lang: "hi-IN"},
	"hi":    {Name: "Puck", Lang: "hi-IN"},
	"ta-in": {Name: "Aoede", Lang: "ta-IN"},
	"ta":    {Name: "Aoede", Lang: "ta-IN"},
	"kn-in": {Name: "Charon", Lang: "kn-IN"},
	"kn":    {Name: "Charon", Lang: "kn-IN"},
	"en-in": {Name: "Kore", Lang: "en-IN"},
	"en":    {Name: "Kore", Lang: "en-IN"},
}

// langAliases maps spoken-out language names (as clients send them) to codes.
var langAliases = map[string]string{
	"telugu":  "te-in",
	"hindi":   "hi-in",
	"tamil":   "ta-in",
	"kannada": "kn-in",
	"english": "en-in",
}

// VoiceFor resolves a language to a voice: exact code match first, then the
// bare language prefix, then the default voice.
func VoiceFor(language string) Voice {
	key := strings.ToLower(strings.TrimSpace(language))
	if code, ok := langAliases[key]; ok {
		key = code
	}
	if v, ok := voiceTable[key]; ok {
		return v
	}
	if i := strings.IndexAny(key, "-_"); i > 0 {
		if v, ok := voiceTable[key[:i]]; ok {
			return v
		}
	}
	return defaultVoice
}
