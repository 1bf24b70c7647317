// Package shield implements the side-by-side quality review pass: original
// and translated cues are compared with surrounding context, and the
// backend's confidence-gated verdicts are applied as keep/edit/delete.
package shield

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/andrifs/subpipe/internal/translator"
	"github.com/andrifs/subpipe/pkg/log"
)

// ActionType is the corrective verdict for one unit.
type ActionType string

const (
	ActionKeep   ActionType = "keep"
	ActionEdit   ActionType = "edit"
	ActionDelete ActionType = "delete"
)

// Action is one review verdict as returned by the backend.
type Action struct {
	Index       int        `json:"index"` // 1-based, as shown in the prompt
	Original    string     `json:"original"`
	Translation string     `json:"translation"`
	Issue       string     `json:"issue"`
	Action      ActionType `json:"action"`
	Corrected   string     `json:"corrected,omitempty"`
	Confidence  int        `json:"confidence"`
}

// Report summarizes one review run. QualityScore is diagnostic output
// only; it never influences control flow.
type Report struct {
	TotalReviewed int
	Kept          int
	Edited        int
	Deleted       int
	Actions       []Action
	QualityScore  float64
	Skipped       bool
	SkipReason    string
}

// ChatClient is the slice of the LLM client the shield needs.
type ChatClient interface {
	SimpleChat(ctx context.Context, prompt string, systemPrompt string) (string, error)
}

// Options configures the shield.
type Options struct {
	BatchSize  int           // default 50
	Confidence int           // default 80; actions below are discarded as noise
	BatchDelay time.Duration // courtesy delay between batches
	VideoTitle string
}

// Shield reviews translated units against their originals.
type Shield struct {
	client ChatClient
	opts   Options
}

func NewShield(client ChatClient, opts Options) *Shield {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 50
	}
	if opts.Confidence <= 0 {
		opts.Confidence = 80
	}
	return &Shield{client: client, opts: opts}
}

// Review applies confidence-gated corrections to units and returns the
// surviving sequence plus a report. Deletions are applied only after every
// batch has been reviewed, so later batches still see un-deleted neighbors
// as context. A batch-level backend failure skips review for that batch
// only.
func (s *Shield) Review(ctx context.Context, units []translator.Unit) ([]translator.Unit, Report) {
	report := Report{TotalReviewed: len(units)}
	if len(units) == 0 {
		report.QualityScore = 100
		return units, report
	}

	// If the first unit is untranslated the caller most likely handed us
	// the wrong list; reviewing would only produce false positives.
	if units[0].TranslatedText == units[0].OriginalText {
		log.Warn("original and translated text are identical, skipping quality review")
		report.Skipped = true
		report.SkipReason = "identical text"
		report.Kept = len(units)
		report.QualityScore = 100
		return units, report
	}

	ret := make([]translator.Unit, len(units))
	copy(ret, units)

	for i := 0; i < len(ret); i += s.opts.BatchSize {
		end := min(i+s.opts.BatchSize, len(ret))

		if i > 0 && s.opts.BatchDelay > 0 {
			time.Sleep(s.opts.BatchDelay)
		}

		actions, err := s.reviewBatch(ctx, ret, i, end)
		if err != nil {
			log.Warn("review batch %d-%d failed, keeping batch as-is: %v", i+1, end, err)
			continue
		}
		report.Actions = append(report.Actions, actions...)
	}

	// Deletes win over edits for the same unit, so collect them first;
	// editing a cue that is about to disappear would skew the counts.
	deleted := make(map[int]bool)
	for _, action := range report.Actions {
		if action.Confidence < s.opts.Confidence {
			continue // noise, not an implicit keep
		}
		idx := action.Index - 1
		if idx < 0 || idx >= len(ret) {
			continue
		}
		if action.Action == ActionDelete && !deleted[idx] {
			deleted[idx] = true
			report.Deleted++
		}
	}

	for _, action := range report.Actions {
		if action.Confidence < s.opts.Confidence {
			continue
		}
		idx := action.Index - 1
		if idx < 0 || idx >= len(ret) || deleted[idx] {
			continue
		}
		if action.Action == ActionEdit && action.Corrected != "" {
			ret[idx].TranslatedText = action.Corrected
			report.Edited++
		}
	}

	// Deletion happens strictly after the batch loop so the context
	// windows above were never desynchronized.
	if len(deleted) > 0 {
		kept := make([]translator.Unit, 0, len(ret)-len(deleted))
		for i, unit := range ret {
			if !deleted[i] {
				kept = append(kept, unit)
			}
		}
		ret = kept
	}

	report.Kept = report.TotalReviewed - report.Edited - report.Deleted
	report.QualityScore = float64(report.Kept) / float64(report.TotalReviewed) * 100
	return ret, report
}

type batchResult struct {
	Actions []Action `json:"actions"`
	Summary string   `json:"summary"`
}

func (s *Shield) reviewBatch(ctx context.Context, units []translator.Unit, start, end int) ([]Action, error) {
	sourceLang := strings.ToUpper(units[0].SourceLang)
	targetLang := strings.ToUpper(units[0].TargetLang)

	systemPrompt := fmt.Sprintf(`You are an AI expert in subtitle translation quality control.

IMPORTANT: You are comparing %s (ORIGINAL) vs %s (TRANSLATION).
If both are in the same language, DO NOT flag as mistranslation.

You see [Previous] and [Next] subtitles for CONTEXT. Use them to judge
conversation flow, not just line-level fidelity.

Your task: detect
1. MISTRANSLATION: wrong meaning
2. ANOMALY: hallucinations, out-of-context phrases
3. CONTEXT MISMATCH: translation breaks conversation continuity

ACTIONS:
- keep: translation is correct
- edit: translation is wrong, provide corrected version in %s
- delete: anomaly/hallucination (no real speech)

OUTPUT FORMAT (JSON):
{"actions":[{"index":5,"original":"...","translation":"...","issue":"...","action":"edit","corrected":"...","confidence":95}],"summary":"..."}

Only return units that are problematic. Be conservative: only flag with
confidence above 80. When in doubt, use keep.`, sourceLang, targetLang, targetLang)

	var sb strings.Builder
	fmt.Fprintf(&sb, "Video: %s\nTranslation: %s -> %s\n\nSIDE-BY-SIDE COMPARISON (with context window):\n\n",
		s.opts.VideoTitle, sourceLang, targetLang)

	for i := start; i < end; i++ {
		fmt.Fprintf(&sb, "%d. ORIGINAL: %s\n   TRANSLATION: %s\n", i+1, units[i].OriginalText, units[i].TranslatedText)
		if i > 0 {
			fmt.Fprintf(&sb, "   [Previous] Original: %s\n   [Previous] Translation: %s\n",
				units[i-1].OriginalText, units[i-1].TranslatedText)
		}
		if i < len(units)-1 {
			fmt.Fprintf(&sb, "   [Next] Original: %s\n   [Next] Translation: %s\n",
				units[i+1].OriginalText, units[i+1].TranslatedText)
		}
		sb.WriteString("\n")
	}
	sb.WriteString("Detect mistranslations and anomalies. Return JSON with actions.")

	response, err := s.client.SimpleChat(ctx, sb.String(), systemPrompt)
	if err != nil {
		return nil, fmt.Errorf("review backend: %w", err)
	}

	result, err := parseBatchResult(response)
	if err != nil {
		return nil, err
	}
	return result.Actions, nil
}

// parseBatchResult tolerates markdown fencing around the JSON body.
func parseBatchResult(response string) (*batchResult, error) {
	first := strings.Index(response, "{")
	last := strings.LastIndex(response, "}")
	if first < 0 || last <= first {
		// No JSON body means no issues were reported.
		return &batchResult{}, nil
	}

	var result batchResult
	if err := json.Unmarshal([]byte(response[first:last+1]), &result); err != nil {
		return nil, fmt.Errorf("malformed review response: %w", err)
	}
	return &result, nil
}
