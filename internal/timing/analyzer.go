package timing

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/andrifs/subpipe/pkg/log"
)

// ChatClient is the slice of the LLM client the analyzer needs.
type ChatClient interface {
	SimpleChat(ctx context.Context, prompt string, systemPrompt string) (string, error)
}

// Analyzer classifies each cue's text as COMPLETE or CONTINUES using an
// LLM backend. The result feeds Adjust as authoritative hints.
type Analyzer struct {
	client     ChatClient
	batchSize  int
	batchDelay time.Duration
}

// NewAnalyzer creates a structure analyzer. batchSize <= 0 selects the
// default of 20.
func NewAnalyzer(client ChatClient, batchSize int, batchDelay time.Duration) *Analyzer {
	if batchSize <= 0 {
		batchSize = 20
	}
	return &Analyzer{
		client:     client,
		batchSize:  batchSize,
		batchDelay: batchDelay,
	}
}

var statusPattern = regexp.MustCompile(`^\d+[.)\s]+([A-Z]+)`)

const analyzerSystemPrompt = "You are a Linguistic Structure Analyzer. " +
	"For each numbered line, decide whether the sentence is finished. " +
	"Output a numbered list with exactly one of 'COMPLETE' or 'CONTINUES' per line. No explanations."

// Classify returns one hint per input text, in order. A backend failure
// degrades the affected batch to all-COMPLETE rather than failing the
// caller; timing adjustment then falls back to neutral behavior.
func (a *Analyzer) Classify(ctx context.Context, texts []string) []Hint {
	hints := make([]Hint, 0, len(texts))

	for i := 0; i < len(texts); i += a.batchSize {
		end := min(i+a.batchSize, len(texts))
		batch := texts[i:end]

		if i > 0 && a.batchDelay > 0 {
			time.Sleep(a.batchDelay)
		}

		batchHints, err := a.classifyBatch(ctx, batch)
		if err != nil {
			log.Warn("structure analysis failed for lines %d-%d, assuming complete: %v", i+1, end, err)
			batchHints = make([]Hint, len(batch))
			for j := range batchHints {
				batchHints[j] = HintComplete
			}
		}
		hints = append(hints, batchHints...)
	}

	return hints
}

func (a *Analyzer) classifyBatch(ctx context.Context, batch []string) ([]Hint, error) {
	var sb strings.Builder
	for i, text := range batch {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, strings.ReplaceAll(text, "\n", " "))
	}

	response, err := a.client.SimpleChat(ctx, "Analyze:\n"+sb.String(), analyzerSystemPrompt)
	if err != nil {
		return nil, err
	}

	hints := make([]Hint, 0, len(batch))
	for _, line := range strings.Split(strings.ToUpper(response), "\n") {
		match := statusPattern.FindStringSubmatch(strings.TrimSpace(line))
		if match == nil {
			continue
		}
		switch Hint(match[1]) {
		case HintComplete, HintContinues:
			hints = append(hints, Hint(match[1]))
		}
	}

	// Pad short responses so hints stay aligned with the cue list.
	for len(hints) < len(batch) {
		hints = append(hints, HintComplete)
	}
	return hints[:len(batch)], nil
}
