// Package transcribe wraps an external whisper-compatible CLI as the
// transcription collaborator. The engine itself is a black box; only the
// JSON result shape matters here.
package transcribe

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/andrifs/subpipe/internal/subtitle"
	"github.com/andrifs/subpipe/pkg/file"
	"github.com/andrifs/subpipe/pkg/log"
)

// Result is the transcription output: detected language plus raw cues.
type Result struct {
	Language string
	Segments []subtitle.Line
}

// Transcriber converts an audio file into timed text segments.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (*Result, error)
}

// WhisperCLI shells out to a whisper-style command that writes a JSON
// transcript ({"language": ..., "segments": [{start, end, text}, ...]}).
type WhisperCLI struct {
	Command  string
	Model    string
	Language string // empty means auto-detect
	// InitialPrompt biases the decoder toward domain vocabulary
	// (glossary terms from the context analyzer).
	InitialPrompt string
}

func NewWhisperCLI(command, model string) *WhisperCLI {
	if command == "" {
		command = "whisper"
	}
	if model == "" {
		model = "medium"
	}
	return &WhisperCLI{Command: command, Model: model}
}

type whisperSegment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

type whisperOutput struct {
	Language string           `json:"language"`
	Segments []whisperSegment `json:"segments"`
}

func (w *WhisperCLI) Transcribe(ctx context.Context, audioPath string) (*Result, error) {
	cmdPath, err := exec.LookPath(w.Command)
	if err != nil {
		return nil, fmt.Errorf("transcription command %q not found: %w", w.Command, err)
	}

	outDir, err := os.MkdirTemp("", "subpipe-transcribe-*")
	if err != nil {
		return nil, fmt.Errorf("create transcription temp dir: %w", err)
	}
	defer os.RemoveAll(outDir)

	args := []string{
		audioPath,
		"--model", w.Model,
		"--output_format", "json",
		"--output_dir", outDir,
	}
	if w.Language != "" {
		args = append(args, "--language", w.Language)
	}
	if w.InitialPrompt != "" {
		args = append(args, "--initial_prompt", w.InitialPrompt)
	}

	log.Info("transcribing %s (model=%s)", filepath.Base(audioPath), w.Model)
	cmd := exec.CommandContext(ctx, cmdPath, args...)
	if output, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("transcription failed: %w: %s", err, lastLine(output))
	}

	jsonPath := filepath.Join(outDir, file.Stem(audioPath)+".json")
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		return nil, fmt.Errorf("read transcription output: %w", err)
	}

	var parsed whisperOutput
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("parse transcription output: %w", err)
	}

	return &Result{
		Language: parsed.Language,
		Segments: toLines(parsed.Segments),
	}, nil
}

func toLines(segments []whisperSegment) []subtitle.Line {
	lines := make([]subtitle.Line, 0, len(segments))
	for i, seg := range segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		lines = append(lines, subtitle.Line{
			Index:     i + 1,
			StartTime: secondsToDuration(seg.Start),
			EndTime:   secondsToDuration(seg.End),
			Text:      text,
		})
	}
	return lines
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second)).Round(time.Millisecond)
}

func lastLine(output []byte) string {
	trimmed := strings.TrimSpace(string(output))
	if idx := strings.LastIndex(trimmed, "\n"); idx >= 0 {
		return trimmed[idx+1:]
	}
	return trimmed
}
