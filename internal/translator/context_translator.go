// Package translator implements batched, context-carrying subtitle
// translation over a numbered-line LLM protocol.
package translator

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/andrifs/subpipe/internal/termmap"
	"github.com/andrifs/subpipe/pkg/log"
)

// skipSentinel marks a line the backend judged an anomaly. Such lines are
// emitted as empty text so index alignment is preserved.
const skipSentinel = "[SKIP]"

// Options configures the context translator.
type Options struct {
	BatchSize  int           // default 8
	BatchDelay time.Duration // courtesy delay between batches
	Premium    bool          // run the second refinement pass
}

// ContextTranslator translates units in bounded batches, carrying the
// video-level context into every batch and a one-unit sliding window of
// the previous batch's last translation.
type ContextTranslator struct {
	client ChatClient
	opts   Options
}

func NewContextTranslator(client ChatClient, opts Options) *ContextTranslator {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 8
	}
	return &ContextTranslator{client: client, opts: opts}
}

// Translate returns a copy of units with TranslatedText filled in. The
// output always has exactly the same length and order as the input. A
// failed batch degrades to the original text for that batch only.
func (t *ContextTranslator) Translate(
	ctx context.Context,
	units []Unit,
	globalContext string,
	glossary termmap.TermMap,
) []Unit {
	ret := make([]Unit, len(units))
	copy(ret, units)

	contextBlock := buildContextBlock(globalContext, glossary)
	prevContext := ""

	for i := 0; i < len(ret); i += t.opts.BatchSize {
		end := min(i+t.opts.BatchSize, len(ret))
		batch := ret[i:end]

		if i > 0 && t.opts.BatchDelay > 0 {
			time.Sleep(t.opts.BatchDelay)
		}

		translations, err := t.translateBatch(ctx, batch, contextBlock, prevContext)
		if err != nil {
			// Fallback policy lives here, not inside the batch call:
			// keep the original text and move on to the next batch.
			log.Warn("translation batch %d-%d failed, keeping original text: %v", i+1, end, err)
			for j := range batch {
				batch[j].TranslatedText = batch[j].OriginalText
			}
			continue
		}

		for j := range batch {
			batch[j].TranslatedText = translations[j]
		}

		if last := lastNonEmpty(translations); last != "" {
			prevContext = last
		}
	}

	return ret
}

// translateBatch runs one batch through the backend and reconciles the
// response to exactly len(batch) lines.
func (t *ContextTranslator) translateBatch(
	ctx context.Context,
	batch []Unit,
	contextBlock string,
	prevContext string,
) ([]string, error) {
	if len(batch) == 0 {
		return nil, nil
	}
	sourceLang := batch[0].SourceLang
	targetLang := batch[0].TargetLang

	systemPrompt := fmt.Sprintf(`You are a professional subtitle translator.
Target: %s. Style: Natural, conversational.
RULES:
1. Translate LINE-BY-LINE.
2. Output numbered list exactly like input.
3. No explanations.
4. If you detect anomalies (hallucinations/spam), output: %s`, langName(targetLang), skipSentinel)

	var contextInstruction strings.Builder
	if contextBlock != "" {
		contextInstruction.WriteString("\n[Global Video Context]: " + contextBlock)
	}
	if prevContext != "" {
		contextInstruction.WriteString("\n[Previous Sentence]: ..." + prevContext)
	}

	userPrompt := fmt.Sprintf("Translate %d lines from %s to %s.\n%s\nInput:\n%s",
		len(batch), langName(sourceLang), langName(targetLang),
		contextInstruction.String(), numberedList(originals(batch)))

	response, err := t.client.SimpleChat(ctx, userPrompt, systemPrompt)
	if err != nil {
		return nil, fmt.Errorf("translation backend: %w", err)
	}

	if t.opts.Premium {
		response = t.refine(ctx, batch, contextBlock, response)
	}

	translations := parseNumberedList(response)
	return reconcile(translations, originals(batch)), nil
}

// refine runs the quality-editor second pass over an already-translated
// batch. The draft is kept whenever refinement fails.
func (t *ContextTranslator) refine(ctx context.Context, batch []Unit, contextBlock, draft string) string {
	targetLang := batch[0].TargetLang

	refineSystem := fmt.Sprintf(`You are a Quality Assurance Editor for subtitles (%s).
Your job: Fix grammar, improve flow, and ensure consistent tone.
Context: %s
RULES:
1. Output ONLY the refined numbered list.
2. Do NOT change line count.`, langName(targetLang), contextBlock)

	refineUser := fmt.Sprintf("Original Source:\n%s\n\nDraft Translation:\n%s\n\nTask: Polish and refine the translation to be natural %s.",
		numberedList(originals(batch)), draft, langName(targetLang))

	refined, err := t.client.SimpleChat(ctx, refineUser, refineSystem)
	if err != nil {
		log.Warn("refinement pass failed, keeping draft: %v", err)
		return draft
	}
	return refined
}

func buildContextBlock(globalContext string, glossary termmap.TermMap) string {
	var sb strings.Builder
	sb.WriteString(globalContext)

	if len(glossary) > 0 {
		sb.WriteString("\n[MANDATORY GLOSSARY - DO NOT TRANSLATE THESE TERMS]:\n")
		for term, definition := range glossary {
			fmt.Fprintf(&sb, "- %s = %s\n", term, definition)
		}
	}
	return strings.TrimSpace(sb.String())
}

func originals(batch []Unit) []string {
	texts := make([]string, len(batch))
	for i, unit := range batch {
		texts[i] = unit.OriginalText
	}
	return texts
}

func numberedList(texts []string) string {
	var sb strings.Builder
	for i, text := range texts {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, strings.ReplaceAll(text, "\n", " "))
	}
	return sb.String()
}

var numberedLinePattern = regexp.MustCompile(`^\d+[.)\s]+(.*)`)

// parseNumberedList extracts translations from a numbered-list response.
// Skip sentinels become empty strings to preserve index alignment.
func parseNumberedList(response string) []string {
	var translations []string
	for _, line := range strings.Split(response, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		match := numberedLinePattern.FindStringSubmatch(line)
		if match == nil {
			continue
		}
		translation := strings.TrimSpace(match[1])
		if strings.EqualFold(translation, skipSentinel) || strings.EqualFold(translation, "SKIP") {
			translations = append(translations, "")
		} else {
			translations = append(translations, translation)
		}
	}
	return translations
}

// reconcile forces the translation list to exactly len(originals): short
// responses are padded with the untranslated text, long ones truncated.
func reconcile(translations, originals []string) []string {
	if len(translations) > len(originals) {
		return translations[:len(originals)]
	}
	for len(translations) < len(originals) {
		translations = append(translations, originals[len(translations)])
	}
	return translations
}

func lastNonEmpty(texts []string) string {
	for i := len(texts) - 1; i >= 0; i-- {
		if texts[i] != "" {
			return texts[i]
		}
	}
	return ""
}
