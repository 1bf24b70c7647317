package termmap

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/andrifs/subpipe/pkg/log"
)

// ChatClient is the slice of the LLM client the generator needs.
type ChatClient interface {
	SimpleChat(ctx context.Context, prompt string, systemPrompt string) (string, error)
}

// Generator extracts a VideoContext (topic, tone, glossary) from the video
// title and a transcript sample.
type Generator struct {
	client ChatClient
}

func NewGenerator(client ChatClient) *Generator {
	return &Generator{client: client}
}

const generatorSystemPrompt = `You are an expert content strategist and linguist. Analyze the provided video title and transcription sample. Identify the following:
1. TOPIC: What is the video about? (Specific niche)
2. TONE: What is the speaking style? (Formal, Casual, Humorous, Educational)
3. GLOSSARY: List 3-10 specific technical terms, names, or slang found.
   Format: Term=Definition/Translation constraint

Output strictly in this format:
TOPIC: ...
TONE: ...
GLOSSARY:
- Term1=Definition1
- Term2=Definition2`

const sampleLimit = 1500

// Analyze asks the backend to characterize the video. Returns nil on
// backend failure; callers treat a missing context as "no bias".
func (g *Generator) Analyze(ctx context.Context, title, sampleText string) *VideoContext {
	if len(sampleText) > sampleLimit {
		// Back up to a rune boundary so the prompt stays valid UTF-8.
		cut := sampleLimit
		for cut > 0 && !utf8.RuneStart(sampleText[cut]) {
			cut--
		}
		sampleText = sampleText[:cut]
	}
	prompt := fmt.Sprintf("Title: %s\nSample Text: %s", title, sampleText)

	response, err := g.client.SimpleChat(ctx, prompt, generatorSystemPrompt)
	if err != nil {
		log.Warn("context analysis failed: %v", err)
		return nil
	}

	vc := ParseContext(response)
	log.Info("context analysis: topic=%q tone=%q glossary=%d terms", vc.Topic, vc.Tone, len(vc.Glossary))
	return &vc
}

// ParseContext parses the TOPIC/TONE/GLOSSARY response format.
func ParseContext(response string) VideoContext {
	vc := VideoContext{Glossary: make(TermMap)}

	inGlossary := false
	for _, line := range strings.Split(response, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		switch {
		case strings.HasPrefix(line, "TOPIC:"):
			vc.Topic = strings.TrimSpace(strings.TrimPrefix(line, "TOPIC:"))
			inGlossary = false
		case strings.HasPrefix(line, "TONE:"):
			vc.Tone = strings.TrimSpace(strings.TrimPrefix(line, "TONE:"))
			inGlossary = false
		case strings.HasPrefix(line, "GLOSSARY:"):
			inGlossary = true
		case inGlossary && strings.HasPrefix(line, "-") && strings.Contains(line, "="):
			entry := strings.Replace(line, "-", "", 1)
			parts := strings.SplitN(entry, "=", 2)
			if len(parts) == 2 {
				term := strings.TrimSpace(parts[0])
				definition := strings.TrimSpace(parts[1])
				if term != "" {
					vc.Glossary[term] = definition
				}
			}
		}
	}

	return vc
}
