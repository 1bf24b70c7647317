package checkpoint

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/andrifs/subpipe/internal/subtitle"
	"github.com/andrifs/subpipe/internal/translator"
)

// Stage identifies the last successfully completed pipeline stage.
type Stage string

const (
	StageTranscription Stage = "transcription"
	StageTranslation   Stage = "translation"
	StageEmbedding     Stage = "embedding"
)

// order maps stages to their pipeline position for comparisons.
var order = map[Stage]int{
	StageTranscription: 1,
	StageTranslation:   2,
	StageEmbedding:     3,
}

// Covers reports whether a checkpoint at stage s makes the work of stage
// other redundant.
func (s Stage) Covers(other Stage) bool {
	return order[s] >= order[other]
}

// TranscriptionPayload carries everything needed to resume from just
// after transcription: the timing-adjusted cues and the detected language.
type TranscriptionPayload struct {
	Lines        []subtitle.Line `json:"lines"`
	DetectedLang string          `json:"detected_lang"`
	Model        string          `json:"model,omitempty"`
}

// TranslationPayload carries the reviewed translation units plus the
// language pair.
type TranslationPayload struct {
	Units      []translator.Unit `json:"units"`
	Lines      []subtitle.Line   `json:"lines"`
	SourceLang string            `json:"source_lang"`
	TargetLang string            `json:"target_lang"`
}

// EmbeddingPayload records where the finished video was written.
type EmbeddingPayload struct {
	OutputPath string `json:"output_path"`
	Completed  bool   `json:"completed"`
}

// Checkpoint is the persisted record of the last successfully completed
// stage for one video. Exactly one of the payload fields matching Stage
// is populated.
type Checkpoint struct {
	Identity  string    `json:"identity"`
	VideoPath string    `json:"video_path"`
	Stage     Stage     `json:"stage"`
	Timestamp time.Time `json:"timestamp"`

	Transcription *TranscriptionPayload `json:"-"`
	Translation   *TranslationPayload   `json:"-"`
	Embedding     *EmbeddingPayload     `json:"-"`
}

// envelope is the on-disk shape; the payload is decoded by stage tag.
type envelope struct {
	Identity  string          `json:"identity"`
	VideoPath string          `json:"video_path"`
	Stage     Stage           `json:"stage"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

func (c Checkpoint) MarshalJSON() ([]byte, error) {
	var payload any
	switch c.Stage {
	case StageTranscription:
		if c.Transcription == nil {
			return nil, fmt.Errorf("checkpoint stage %q has no payload", c.Stage)
		}
		payload = c.Transcription
	case StageTranslation:
		if c.Translation == nil {
			return nil, fmt.Errorf("checkpoint stage %q has no payload", c.Stage)
		}
		payload = c.Translation
	case StageEmbedding:
		if c.Embedding == nil {
			return nil, fmt.Errorf("checkpoint stage %q has no payload", c.Stage)
		}
		payload = c.Embedding
	default:
		return nil, fmt.Errorf("unknown checkpoint stage: %q", c.Stage)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{
		Identity:  c.Identity,
		VideoPath: c.VideoPath,
		Stage:     c.Stage,
		Timestamp: c.Timestamp,
		Payload:   raw,
	})
}

func (c *Checkpoint) UnmarshalJSON(data []byte) error {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}

	c.Identity = env.Identity
	c.VideoPath = env.VideoPath
	c.Stage = env.Stage
	c.Timestamp = env.Timestamp

	switch env.Stage {
	case StageTranscription:
		c.Transcription = &TranscriptionPayload{}
		return json.Unmarshal(env.Payload, c.Transcription)
	case StageTranslation:
		c.Translation = &TranslationPayload{}
		return json.Unmarshal(env.Payload, c.Translation)
	case StageEmbedding:
		c.Embedding = &EmbeddingPayload{}
		return json.Unmarshal(env.Payload, c.Embedding)
	default:
		return fmt.Errorf("unknown checkpoint stage: %q", env.Stage)
	}
}
