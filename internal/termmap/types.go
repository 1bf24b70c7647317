package termmap

// TermMap maps source language terms to translation constraints.
type TermMap map[string]string

// MatchResult holds terms that matched against input texts.
type MatchResult struct {
	Matched TermMap
}

// VideoContext is the LLM analysis of a video: what it is about, how the
// speaker talks, and which terms must not be translated literally.
type VideoContext struct {
	Topic    string
	Tone     string
	Glossary TermMap
}

// Summary renders the context as a prompt fragment for the translator.
func (c VideoContext) Summary() string {
	if c.Topic == "" && c.Tone == "" {
		return ""
	}
	return "VIDEO CONTEXT:\n- TOPIC: " + c.Topic + "\n- TONE: " + c.Tone + "\n"
}
