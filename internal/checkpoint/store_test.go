package checkpoint

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrifs/subpipe/internal/subtitle"
	"github.com/andrifs/subpipe/internal/translator"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	return store
}

func TestIdentityIsPathIndependent(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "lecture01", Identity("/mnt/incoming/lecture01.mp4"))
	assert.Equal(t, "lecture01", Identity("lecture01.mp4"))
	assert.Equal(t, Identity("/a/video.mkv"), Identity("/b/video.mkv"))
}

func TestSaveLoadRoundTrip(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)

	cp := Checkpoint{
		Identity:  "vid",
		VideoPath: "/videos/vid.mp4",
		Stage:     StageTranscription,
		Transcription: &TranscriptionPayload{
			Lines: []subtitle.Line{
				{Index: 1, StartTime: time.Second, EndTime: 2 * time.Second, Text: "hello"},
			},
			DetectedLang: "en",
		},
	}
	require.NoError(t, store.Save(cp))

	loaded, ok := store.Load("vid")
	require.True(t, ok)
	assert.Equal(t, StageTranscription, loaded.Stage)
	assert.Equal(t, "/videos/vid.mp4", loaded.VideoPath)
	require.NotNil(t, loaded.Transcription)
	assert.Equal(t, "en", loaded.Transcription.DetectedLang)
	require.Len(t, loaded.Transcription.Lines, 1)
	assert.Equal(t, "hello", loaded.Transcription.Lines[0].Text)
	assert.Nil(t, loaded.Translation)
	assert.False(t, loaded.Timestamp.IsZero())
}

func TestSaveOverwritesPreviousStage(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)

	require.NoError(t, store.Save(Checkpoint{
		Identity: "vid", Stage: StageTranscription,
		Transcription: &TranscriptionPayload{DetectedLang: "en"},
	}))
	require.NoError(t, store.Save(Checkpoint{
		Identity: "vid", Stage: StageTranslation,
		Translation: &TranslationPayload{
			Units:      []translator.Unit{{Index: 0, OriginalText: "hi", TranslatedText: "hai"}},
			SourceLang: "en", TargetLang: "id",
		},
	}))

	loaded, ok := store.Load("vid")
	require.True(t, ok)
	assert.Equal(t, StageTranslation, loaded.Stage)
	assert.Nil(t, loaded.Transcription)
	require.NotNil(t, loaded.Translation)
	assert.Equal(t, "hai", loaded.Translation.Units[0].TranslatedText)
}

func TestLoadMissingCheckpoint(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)

	cp, ok := store.Load("nothing")
	assert.False(t, ok)
	assert.Nil(t, cp)
}

func TestLoadCorruptCheckpointTreatedAsAbsent(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)

	require.NoError(t, os.WriteFile(filepath.Join(store.Dir(), "bad.json"), []byte("{not json"), 0o644))

	cp, ok := store.Load("bad")
	assert.False(t, ok)
	assert.Nil(t, cp)
}

func TestClearIsIdempotent(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)

	require.NoError(t, store.Save(Checkpoint{
		Identity: "vid", Stage: StageEmbedding,
		Embedding: &EmbeddingPayload{OutputPath: "/out/vid.mp4", Completed: true},
	}))

	require.NoError(t, store.Clear("vid"))
	_, ok := store.Load("vid")
	assert.False(t, ok)

	require.NoError(t, store.Clear("vid"))
	require.NoError(t, store.Clear("never-existed"))
}

func TestListNewestFirstSkippingCorrupt(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)

	require.NoError(t, store.Save(Checkpoint{
		Identity: "older", Stage: StageTranscription,
		Transcription: &TranscriptionPayload{DetectedLang: "en"},
	}))
	time.Sleep(10 * time.Millisecond)
	require.NoError(t, store.Save(Checkpoint{
		Identity: "newer", Stage: StageTranslation,
		Translation: &TranslationPayload{SourceLang: "en", TargetLang: "id"},
	}))
	require.NoError(t, os.WriteFile(filepath.Join(store.Dir(), "corrupt.json"), []byte("nope"), 0o644))

	checkpoints, err := store.List()
	require.NoError(t, err)
	require.Len(t, checkpoints, 2)
	assert.Equal(t, "newer", checkpoints[0].Identity)
	assert.Equal(t, "older", checkpoints[1].Identity)
}

func TestExpireRemovesOldCheckpoints(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)

	require.NoError(t, store.Save(Checkpoint{
		Identity: "stale", Stage: StageTranscription,
		Transcription: &TranscriptionPayload{DetectedLang: "en"},
	}))
	require.NoError(t, store.Save(Checkpoint{
		Identity: "fresh", Stage: StageTranscription,
		Transcription: &TranscriptionPayload{DetectedLang: "en"},
	}))

	old := time.Now().Add(-10 * 24 * time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(store.Dir(), "stale.json"), old, old))

	removed := store.Expire(7 * 24 * time.Hour)
	assert.Equal(t, 1, removed)

	_, ok := store.Load("stale")
	assert.False(t, ok)
	_, ok = store.Load("fresh")
	assert.True(t, ok)
}

func TestStageCovers(t *testing.T) {
	t.Parallel()

	assert.True(t, StageTranslation.Covers(StageTranscription))
	assert.True(t, StageTranslation.Covers(StageTranslation))
	assert.False(t, StageTranscription.Covers(StageTranslation))
	assert.True(t, StageEmbedding.Covers(StageTranscription))
}

func TestMarshalRequiresPayload(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)

	err := store.Save(Checkpoint{Identity: "vid", Stage: StageTranscription})
	assert.Error(t, err)
}
