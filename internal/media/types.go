package media

import "context"

// Operator wraps the external media tooling the pipeline edges need.
type Operator interface {
	// ExtractAudio writes a mono 16kHz WAV to toPath.
	ExtractAudio(ctx context.Context, toPath string) (string, error)

	// Duration returns the container duration in seconds.
	Duration(ctx context.Context) (float64, error)

	// EmbedSubtitle muxes or burns the subtitle track into the video and
	// returns the output path. method is "soft" (stream copy + mov_text)
	// or "fast" (burned-in, ultrafast preset).
	EmbedSubtitle(ctx context.Context, subtitlePath, outputPath, method string) (string, error)
}

func NewOperator(mediaPath string) Operator {
	return NewFFmpeg(mediaPath)
}
