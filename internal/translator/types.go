package translator

import (
	"context"

	"github.com/andrifs/subpipe/internal/subtitle"
)

// Unit is the atomic element translation and review operate on. Index ties
// it back to its cue so timing survives text mutation.
type Unit struct {
	Index          int    `json:"index"`
	OriginalText   string `json:"original_text"`
	TranslatedText string `json:"translated_text"`
	SourceLang     string `json:"source_lang"`
	TargetLang     string `json:"target_lang"`
}

// ChatClient is the slice of the LLM client the translator needs.
type ChatClient interface {
	SimpleChat(ctx context.Context, prompt string, systemPrompt string) (string, error)
}

// UnitsFromLines builds translation units from subtitle lines.
func UnitsFromLines(lines []subtitle.Line, sourceLang, targetLang string) []Unit {
	units := make([]Unit, len(lines))
	for i, line := range lines {
		units[i] = Unit{
			Index:        i,
			OriginalText: line.Text,
			SourceLang:   sourceLang,
			TargetLang:   targetLang,
		}
	}
	return units
}

// ApplyToLines writes translated text back onto the cues the units came
// from. Units whose index no longer resolves are skipped.
func ApplyToLines(lines []subtitle.Line, units []Unit) []subtitle.Line {
	ret := make([]subtitle.Line, len(lines))
	copy(ret, lines)
	for _, unit := range units {
		if unit.Index >= 0 && unit.Index < len(ret) {
			ret[unit.Index].TranslatedText = unit.TranslatedText
		}
	}
	return ret
}

// langNames maps ISO codes to the names used in prompts.
var langNames = map[string]string{
	"en": "English",
	"id": "Indonesian (casual, natural)",
	"ja": "Japanese",
	"es": "Spanish",
	"fr": "French",
	"de": "German",
	"zh": "Chinese",
}

func langName(code string) string {
	if name, ok := langNames[code]; ok {
		return name
	}
	return code
}

// DetermineDirection picks the translation pair for a detected language.
// Indonesian sources go to English; everything else goes to Indonesian.
func DetermineDirection(detectedLang string) (source, target string) {
	if detectedLang == "id" {
		return "id", "en"
	}
	if detectedLang == "" {
		return "en", "id"
	}
	return detectedLang, "id"
}
