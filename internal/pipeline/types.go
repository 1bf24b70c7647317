package pipeline

import (
	"context"

	"github.com/andrifs/subpipe/internal/config"
	"github.com/andrifs/subpipe/internal/media"
	"github.com/andrifs/subpipe/internal/shield"
	"github.com/andrifs/subpipe/internal/termmap"
	"github.com/andrifs/subpipe/internal/timing"
	"github.com/andrifs/subpipe/internal/transcribe"
	"github.com/andrifs/subpipe/internal/translator"
)

// Translator is the batch translation engine consumed by the pipeline.
type Translator interface {
	Translate(ctx context.Context, units []translator.Unit, globalContext string, glossary termmap.TermMap) []translator.Unit
}

// Reviewer is the quality review pass consumed by the pipeline.
type Reviewer interface {
	Review(ctx context.Context, units []translator.Unit) ([]translator.Unit, shield.Report)
}

// StructureAnalyzer produces sentence-completeness hints for the timing
// engine. Optional; when absent the punctuation heuristic is used.
type StructureAnalyzer interface {
	Classify(ctx context.Context, texts []string) []timing.Hint
}

// ContextAnalyzer extracts topic/tone/glossary from the video title and a
// transcript sample. Optional.
type ContextAnalyzer interface {
	Analyze(ctx context.Context, title, sampleText string) *termmap.VideoContext
}

// Collaborators are the external engines the orchestrator sequences.
// Transcriber and NewMedia are required; the AI collaborators may be nil,
// which disables the corresponding enhancement.
type Collaborators struct {
	Transcriber transcribe.Transcriber
	NewMedia    func(videoPath string) media.Operator
	Translator  Translator
	Reviewer    Reviewer
	Structure   StructureAnalyzer
	Context     ContextAnalyzer
}

// Config carries the per-run settings the orchestrator needs.
type Config struct {
	Timing      config.TimingConfig
	OutputDir   string
	EmbedMethod string
	TargetLang  string // ISO code, e.g. "id"
}
