// Package translate implements the bidirectional English/Urdu translation
// capability: script-based language detection, a translation backend client
// and the tool exposing both to the agent.
package translate

import "regexp"

// Lang identifies a supported language by its ISO 639-1 code.
type Lang string

const (
	// LangEnglish is Latin-script English.
	LangEnglish Lang = "en"
	// LangUrdu is Arabic-script Urdu.
	LangUrdu Lang = "ur"
	// LangUnknown marks text in neither supported script.
	LangUnknown Lang = ""
)

// Counterpart returns the opposite direction of a detected language.
func (l Lang) Counterpart() Lang {
	switch l {
	case LangEnglish:
		return LangUrdu
	case LangUrdu:
		return LangEnglish
	default:
		return LangUnknown
	}
}

// Name returns the human-readable language name.
func (l Lang) Name() string {
	switch l {
	case LangEnglish:
		return "English"
	case LangUrdu:
		return "Urdu"
	default:
		return "Unknown"
	}
}

// DetectLanguage classifies text by script: any Arabic-block rune marks it
// Urdu, otherwise any Latin letter marks it English. Urdu wins on mixed input
// since Latin loanwords are common in Urdu text.
func DetectLanguage(text string) Lang {
	hasLatin := false
	for _, r := range text {
		if r >= 0x0600 && r <= 0x06FF {
			return LangUrdu
		}
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			hasLatin = true
		}
	}
	if hasLatin {
		return LangEnglish
	}
	return LangUnknown
}

// validInput accepts word characters plus common punctuation in either
// script.
var validInput = regexp.MustCompile(`^[\w\s.,!?'"-]+$|^[\x{0600}-\x{06FF}\s.,!?]+$`)

// ValidInput reports whether text contains only translatable characters.
func ValidInput(text string) bool {
	return text != "" && validInput.MatchString(text)
}
