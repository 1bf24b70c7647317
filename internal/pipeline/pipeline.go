// Package pipeline sequences transcription, timing adjustment,
// translation, quality review and embedding for a single video, writing a
// checkpoint after every completed stage so an interrupted run resumes
// without redoing finished work.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"

	"github.com/andrifs/subpipe/internal/checkpoint"
	"github.com/andrifs/subpipe/internal/shield"
	"github.com/andrifs/subpipe/internal/subtitle"
	"github.com/andrifs/subpipe/internal/termmap"
	"github.com/andrifs/subpipe/internal/timing"
	"github.com/andrifs/subpipe/internal/translator"
	"github.com/andrifs/subpipe/pkg/file"
	"github.com/andrifs/subpipe/pkg/log"
)

// RunResult summarizes a completed pipeline run.
type RunResult struct {
	Identity     string
	OutputPath   string
	SubtitlePath string
	SourceLang   string
	TargetLang   string
	LineCount    int
	QualityScore float64
	ResumedFrom  checkpoint.Stage
}

type Pipeline struct {
	cfg    Config
	store  *checkpoint.Store
	collab Collaborators
	writer subtitle.Writer
}

func New(cfg Config, store *checkpoint.Store, collab Collaborators) (*Pipeline, error) {
	if store == nil {
		return nil, fmt.Errorf("checkpoint store is required")
	}
	if collab.Transcriber == nil {
		return nil, fmt.Errorf("transcriber is required")
	}
	if collab.NewMedia == nil {
		return nil, fmt.Errorf("media operator factory is required")
	}
	if collab.Translator == nil {
		return nil, fmt.Errorf("translator is required")
	}
	if cfg.TargetLang == "" {
		cfg.TargetLang = "id"
	}
	if cfg.EmbedMethod == "" {
		cfg.EmbedMethod = "soft"
	}
	return &Pipeline{
		cfg:    cfg,
		store:  store,
		collab: collab,
		writer: subtitle.NewWriter(),
	}, nil
}

// Run processes one video end to end and returns the embedded output
// path. With resume=true a previous checkpoint skips directly past its
// completed stages; resume=false starts fresh and discards any
// checkpoint. Only one run may operate on a video identity at a time.
func (p *Pipeline) Run(ctx context.Context, videoPath string, resume bool) (*RunResult, error) {
	if _, err := os.Stat(videoPath); err != nil {
		return nil, fmt.Errorf("video file not found: %w", err)
	}

	identity := checkpoint.Identity(videoPath)

	lock := flock.New(filepath.Join(p.store.Dir(), identity+".lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire run lock: %w", err)
	}
	if !locked {
		return nil, ErrAlreadyRunning
	}
	defer lock.Unlock()

	var cp *checkpoint.Checkpoint
	if resume {
		if loaded, ok := p.store.Load(identity); ok {
			cp = loaded
			log.Info("found checkpoint for %s: %s completed at %s",
				identity, cp.Stage, cp.Timestamp.Format("2006-01-02 15:04:05"))
		}
	} else {
		// Explicit fresh start discards prior progress.
		if err := p.store.Clear(identity); err != nil {
			return nil, err
		}
	}

	outputPath := filepath.Join(p.cfg.OutputDir, identity+"_with_subtitle.mp4")

	// An embedding checkpoint whose artifact vanished cannot seed any
	// stage; start over instead of failing.
	if cp != nil && cp.Stage == checkpoint.StageEmbedding {
		if _, err := os.Stat(cp.Embedding.OutputPath); err != nil {
			log.Warn("embedding checkpoint points at missing output %s, starting fresh", cp.Embedding.OutputPath)
			cp = nil
		}
	}

	result := &RunResult{Identity: identity, QualityScore: 100}
	if cp != nil {
		result.ResumedFrom = cp.Stage
	}

	stageDone := func(s checkpoint.Stage) bool {
		return cp != nil && cp.Stage.Covers(s)
	}

	// --- Stage 1: transcription + timing adjustment ---
	var transLines []subtitle.Line
	var detectedLang string

	if stageDone(checkpoint.StageTranscription) {
		if cp.Transcription != nil {
			transLines = cp.Transcription.Lines
			detectedLang = cp.Transcription.DetectedLang
		}
		log.Info("resume: skipping transcription for %s", identity)
	} else {
		transLines, detectedLang, err = p.transcribeStage(ctx, videoPath, identity)
		if err != nil {
			return nil, stageErr(checkpoint.StageTranscription, identity, err)
		}
		if err := p.store.Save(checkpoint.Checkpoint{
			Identity:  identity,
			VideoPath: videoPath,
			Stage:     checkpoint.StageTranscription,
			Transcription: &checkpoint.TranscriptionPayload{
				Lines:        transLines,
				DetectedLang: detectedLang,
			},
		}); err != nil {
			return nil, fmt.Errorf("save transcription checkpoint: %w", err)
		}
	}

	// --- Stage 2: translation + quality review ---
	var finalLines []subtitle.Line

	if stageDone(checkpoint.StageTranslation) {
		if cp.Translation != nil {
			finalLines = cp.Translation.Lines
			result.SourceLang = cp.Translation.SourceLang
			result.TargetLang = cp.Translation.TargetLang
		}
		log.Info("resume: skipping translation for %s", identity)
	} else {
		var units []translator.Unit
		var sourceLang, targetLang string

		units, finalLines, sourceLang, targetLang, err = p.translateStage(ctx, videoPath, transLines, detectedLang, result)
		if err != nil {
			return nil, stageErr(checkpoint.StageTranslation, identity, err)
		}
		result.SourceLang = sourceLang
		result.TargetLang = targetLang

		if err := p.store.Save(checkpoint.Checkpoint{
			Identity:  identity,
			VideoPath: videoPath,
			Stage:     checkpoint.StageTranslation,
			Translation: &checkpoint.TranslationPayload{
				Units:      units,
				Lines:      finalLines,
				SourceLang: sourceLang,
				TargetLang: targetLang,
			},
		}); err != nil {
			return nil, fmt.Errorf("save translation checkpoint: %w", err)
		}
	}

	// --- Stage 3: embedding ---
	if _, err := os.Stat(outputPath); err == nil {
		log.Info("output %s already exists, skipping embedding", outputPath)
		result.OutputPath = outputPath
	} else {
		outPath, srtPath, err := p.embedStage(ctx, videoPath, identity, finalLines, result.TargetLang, outputPath)
		if err != nil {
			return nil, stageErr(checkpoint.StageEmbedding, identity, err)
		}
		result.OutputPath = outPath
		result.SubtitlePath = srtPath
	}

	if err := p.store.Save(checkpoint.Checkpoint{
		Identity:  identity,
		VideoPath: videoPath,
		Stage:     checkpoint.StageEmbedding,
		Embedding: &checkpoint.EmbeddingPayload{
			OutputPath: result.OutputPath,
			Completed:  true,
		},
	}); err != nil {
		return nil, fmt.Errorf("save embedding checkpoint: %w", err)
	}

	result.LineCount = len(finalLines)

	// Full success: the checkpoint has served its purpose.
	if err := p.store.Clear(identity); err != nil {
		return nil, err
	}
	log.Info("pipeline complete for %s: %s", identity, result.OutputPath)
	return result, nil
}

func (p *Pipeline) transcribeStage(ctx context.Context, videoPath, identity string) ([]subtitle.Line, string, error) {
	op := p.collab.NewMedia(videoPath)

	if duration, err := op.Duration(ctx); err != nil {
		log.Warn("could not determine duration of %s: %v", identity, err)
	} else if duration <= 0 {
		return nil, "", fmt.Errorf("video reports zero duration")
	} else {
		log.Info("video %s: %.1fs", identity, duration)
	}

	// A subtitle track sitting next to the video beats re-transcribing it.
	if lines, lang, ok := sidecarSubtitle(videoPath); ok {
		log.Info("reusing sidecar subtitle for %s: %d cues, language=%s", identity, len(lines), lang)
		return lines, lang, nil
	}

	audioPath := filepath.Join(os.TempDir(), identity+"_audio.wav")
	if _, err := op.ExtractAudio(ctx, audioPath); err != nil {
		return nil, "", err
	}
	defer os.Remove(audioPath)

	transcription, err := p.collab.Transcriber.Transcribe(ctx, audioPath)
	if err != nil {
		return nil, "", err
	}
	if len(transcription.Segments) == 0 {
		return nil, "", fmt.Errorf("transcription produced no segments")
	}

	detectedLang := transcription.Language
	if detectedLang == "" {
		detectedLang = subtitle.DetectLanguage(transcription.Segments).String()
	}

	var hints []timing.Hint
	if p.collab.Structure != nil {
		hints = p.collab.Structure.Classify(ctx, subtitle.Texts(transcription.Segments))
	}

	adjusted := timing.Adjust(transcription.Segments, hints, p.cfg.Timing)
	adjusted = timing.OptimizeGaps(adjusted)

	log.Info("transcribed %s: %d segments, language=%s", identity, len(adjusted), detectedLang)
	return adjusted, detectedLang, nil
}

func (p *Pipeline) translateStage(
	ctx context.Context,
	videoPath string,
	transLines []subtitle.Line,
	detectedLang string,
	result *RunResult,
) ([]translator.Unit, []subtitle.Line, string, string, error) {
	if len(transLines) == 0 {
		return nil, nil, "", "", fmt.Errorf("no transcription lines to translate")
	}

	sourceLang, targetLang := chooseDirection(detectedLang, p.cfg.TargetLang)
	title := videoTitle(videoPath)

	globalContext := fmt.Sprintf("Video Context: Title is %q.", title)
	glossary := termmap.TermMap{}
	if p.collab.Context != nil {
		sample := strings.Join(subtitle.Texts(sampleLines(transLines, 20)), " ")
		if vc := p.collab.Context.Analyze(ctx, title, sample); vc != nil {
			if summary := vc.Summary(); summary != "" {
				globalContext = summary
			}
			glossary = termmap.Match(vc.Glossary, subtitle.Texts(transLines)).Matched
		}
	}

	units := translator.UnitsFromLines(transLines, sourceLang, targetLang)
	translated := p.collab.Translator.Translate(ctx, units, globalContext, glossary)

	reviewed := translated
	if p.collab.Reviewer != nil {
		var report shield.Report
		reviewed, report = p.collab.Reviewer.Review(ctx, translated)
		result.QualityScore = report.QualityScore
		log.Info("quality review: %d reviewed, %d edited, %d deleted, score %.1f%%",
			report.TotalReviewed, report.Edited, report.Deleted, report.QualityScore)
	}

	// Write translations back onto the cues, then drop the cues whose
	// units did not survive review. Timing never changes here.
	applied := translator.ApplyToLines(transLines, reviewed)
	surviving := make(map[int]bool, len(reviewed))
	for _, unit := range reviewed {
		surviving[unit.Index] = true
	}
	finalLines := make([]subtitle.Line, 0, len(reviewed))
	for i, line := range applied {
		if surviving[i] {
			finalLines = append(finalLines, line)
		}
	}
	finalLines = subtitle.Reindex(finalLines)

	return reviewed, finalLines, sourceLang, targetLang, nil
}

func (p *Pipeline) embedStage(
	ctx context.Context,
	videoPath, identity string,
	finalLines []subtitle.Line,
	targetLang, outputPath string,
) (string, string, error) {
	if len(finalLines) == 0 {
		return "", "", fmt.Errorf("no subtitle lines to embed")
	}
	if err := os.MkdirAll(p.cfg.OutputDir, 0o755); err != nil {
		return "", "", fmt.Errorf("create output directory: %w", err)
	}

	srtPath := filepath.Join(p.cfg.OutputDir, fmt.Sprintf("%s.%s.srt", identity, targetLang))
	track := &subtitle.File{
		Lines:  finalLines,
		Format: "SRT",
		Path:   srtPath,
	}
	if err := p.writer.Write(srtPath, track); err != nil {
		return "", "", err
	}

	op := p.collab.NewMedia(videoPath)
	outPath, err := op.EmbedSubtitle(ctx, srtPath, outputPath, p.cfg.EmbedMethod)
	if err != nil {
		return "", "", err
	}
	return outPath, srtPath, nil
}

// chooseDirection flips the pair when the video already speaks the
// configured target language.
func chooseDirection(detectedLang, configuredTarget string) (string, string) {
	if detectedLang == "" {
		return "en", configuredTarget
	}
	if detectedLang == configuredTarget {
		source, target := translator.DetermineDirection(detectedLang)
		return source, target
	}
	return detectedLang, configuredTarget
}

// sidecarSubtitle reuses an SRT sitting next to the video as the
// transcription result, skipping audio extraction and the speech backend.
// Sidecar timings are author-provided and are taken as-is.
func sidecarSubtitle(videoPath string) ([]subtitle.Line, string, bool) {
	srtPath := file.ReplaceExt(videoPath, "srt")
	if _, err := os.Stat(srtPath); err != nil {
		return nil, "", false
	}

	parsed, err := subtitle.NewReader(srtPath).Read()
	if err != nil {
		log.Warn("ignoring unreadable sidecar subtitle %s: %v", srtPath, err)
		return nil, "", false
	}
	if len(parsed.Lines) == 0 {
		return nil, "", false
	}

	lang := parsed.Language.String()
	if lang == "und" {
		lang = ""
	}
	return parsed.Lines, lang, true
}

func videoTitle(videoPath string) string {
	title := file.Stem(videoPath)
	title = strings.ReplaceAll(title, "_", " ")
	title = strings.ReplaceAll(title, "-", " ")
	return title
}

func sampleLines(lines []subtitle.Line, n int) []subtitle.Line {
	if len(lines) <= n {
		return lines
	}
	return lines[:n]
}
