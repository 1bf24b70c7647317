package media

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"

	"github.com/andrifs/subpipe/pkg/log"
)

type ffmpeg struct {
	ffmpegCmd  string
	ffprobeCmd string
	filePath   string
	fileDir    string
	fileName   string
}

func NewFFmpeg(
	mediaPath string,
) Operator {
	mediaPath = filepath.Clean(mediaPath)

	return &ffmpeg{
		ffmpegCmd:  "ffmpeg",
		ffprobeCmd: "ffprobe",
		filePath:   mediaPath,
		fileDir:    filepath.Dir(mediaPath),
		fileName:   filepath.Base(mediaPath),
	}
}

func (ff *ffmpeg) ExtractAudio(ctx context.Context, toPath string) (string, error) {
	cmdPath, err := exec.LookPath(ff.ffmpegCmd)
	if err != nil {
		return "", err
	}

	args := []string{
		"-i", ff.filePath,
		"-vn",
		"-acodec", "pcm_s16le",
		"-ar", "16000",
		"-ac", "1",
		"-y",
		toPath,
	}

	cmd := exec.CommandContext(ctx, cmdPath, args...)
	if output, err := cmd.CombinedOutput(); err != nil {
		return "", fmt.Errorf("audio extraction failed: %w: %s", err, tail(output))
	}
	return toPath, nil
}

func (ff *ffmpeg) Duration(ctx context.Context) (float64, error) {
	cmdPath, err := exec.LookPath(ff.ffprobeCmd)
	if err != nil {
		return 0, err
	}

	cmd := exec.CommandContext(ctx, cmdPath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		ff.filePath,
	)

	output, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe failed: %w", err)
	}

	var probeResult struct {
		Format struct {
			Duration string `json:"duration"`
		} `json:"format"`
	}
	if err := json.Unmarshal(output, &probeResult); err != nil {
		return 0, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	duration, err := strconv.ParseFloat(probeResult.Format.Duration, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", probeResult.Format.Duration, err)
	}
	return duration, nil
}

func (ff *ffmpeg) EmbedSubtitle(ctx context.Context, subtitlePath, outputPath, method string) (string, error) {
	cmdPath, err := exec.LookPath(ff.ffmpegCmd)
	if err != nil {
		return "", err
	}

	var args []string
	switch method {
	case "fast":
		// Burn the subtitles into the picture. Re-encodes video, so use
		// the cheapest preset.
		args = []string{
			"-i", ff.filePath,
			"-vf", "subtitles=" + escapeFilterPath(subtitlePath),
			"-c:a", "copy",
			"-preset", "ultrafast",
			"-y",
			outputPath,
		}
	default: // soft
		args = []string{
			"-i", ff.filePath,
			"-i", subtitlePath,
			"-c", "copy",
			"-c:s", "mov_text",
			"-y",
			outputPath,
		}
	}

	log.Info("embedding subtitle into %s (method=%s)", ff.fileName, method)
	cmd := exec.CommandContext(ctx, cmdPath, args...)
	if output, err := cmd.CombinedOutput(); err != nil {
		return "", fmt.Errorf("subtitle embedding failed: %w: %s", err, tail(output))
	}
	return outputPath, nil
}

// escapeFilterPath escapes characters the ffmpeg filter parser treats
// specially.
func escapeFilterPath(path string) string {
	escaped := make([]rune, 0, len(path))
	for _, r := range path {
		switch r {
		case ':', '\'', '[', ']', ',', ';':
			escaped = append(escaped, '\\', r)
		default:
			escaped = append(escaped, r)
		}
	}
	return string(escaped)
}

func tail(output []byte) string {
	const limit = 400
	if len(output) <= limit {
		return string(output)
	}
	return "..." + string(output[len(output)-limit:])
}
