package subtitle

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleSRT = `1
00:00:01,000 --> 00:00:02,500
Hello there.

2
00:00:03,000 --> 00:00:05,250
How are you
doing today?

3
00:00:06,000 --> 00:00:08,000
Goodbye.
`

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sample.srt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestReadParsesSRT(t *testing.T) {
	t.Parallel()

	file, err := NewReader(writeTemp(t, sampleSRT)).Read()
	require.NoError(t, err)

	require.Len(t, file.Lines, 3)
	assert.Equal(t, "SRT", file.Format)

	assert.Equal(t, 1, file.Lines[0].Index)
	assert.Equal(t, time.Second, file.Lines[0].StartTime)
	assert.Equal(t, 2500*time.Millisecond, file.Lines[0].EndTime)
	assert.Equal(t, "Hello there.", file.Lines[0].Text)

	// Multi-line cues keep the line break.
	assert.Equal(t, "How are you\ndoing today?", file.Lines[1].Text)
	assert.Equal(t, 2250*time.Millisecond, file.Lines[1].Duration())
}

func TestReadRejectsNonSRT(t *testing.T) {
	t.Parallel()

	_, err := NewReader("movie.ass").Read()
	assert.Error(t, err)
}

func TestReadMissingFile(t *testing.T) {
	t.Parallel()

	_, err := NewReader(filepath.Join(t.TempDir(), "missing.srt")).Read()
	assert.Error(t, err)
}

func TestReadSkipsGarbageBetweenCues(t *testing.T) {
	t.Parallel()

	srt := "WEBVTT-ish junk\n\n1\n00:00:01,000 --> 00:00:02,000\nHello.\n"
	file, err := NewReader(writeTemp(t, srt)).Read()
	require.NoError(t, err)
	require.Len(t, file.Lines, 1)
	assert.Equal(t, "Hello.", file.Lines[0].Text)
}

func TestWriteRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "out.srt")
	original := &File{
		Format: "SRT",
		Lines: []Line{
			{Index: 1, StartTime: time.Second, EndTime: 2 * time.Second, Text: "Hello.", TranslatedText: "Halo."},
			{Index: 2, StartTime: 3 * time.Second, EndTime: 4500 * time.Millisecond, Text: "Untranslated line."},
		},
	}

	require.NoError(t, NewWriter().Write(path, original))

	read, err := NewReader(path).Read()
	require.NoError(t, err)
	require.Len(t, read.Lines, 2)

	// Translated text wins; originals are the fallback.
	assert.Equal(t, "Halo.", read.Lines[0].Text)
	assert.Equal(t, "Untranslated line.", read.Lines[1].Text)
	assert.Equal(t, time.Second, read.Lines[0].StartTime)
	assert.Equal(t, 4500*time.Millisecond, read.Lines[1].EndTime)
}

func TestWriteNilFile(t *testing.T) {
	t.Parallel()

	err := NewWriter().Write(filepath.Join(t.TempDir(), "out.srt"), nil)
	assert.Error(t, err)
}

func TestFormatDuration(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "00:00:01,000", FormatDuration(time.Second))
	assert.Equal(t, "01:02:03,450", FormatDuration(time.Hour+2*time.Minute+3*time.Second+450*time.Millisecond))
	assert.Equal(t, "00:00:00,000", FormatDuration(0))
}

func TestReindex(t *testing.T) {
	t.Parallel()

	lines := Reindex([]Line{
		{Index: 4, Text: "a"},
		{Index: 9, Text: "b"},
	})
	assert.Equal(t, 1, lines[0].Index)
	assert.Equal(t, 2, lines[1].Index)
}

func TestDetectLanguageEmpty(t *testing.T) {
	t.Parallel()

	tag := DetectLanguage(nil)
	assert.Equal(t, "und", tag.String())
}

func TestDetectLanguageEnglish(t *testing.T) {
	t.Parallel()

	lines := []Line{
		{Text: "The quick brown fox jumps over the lazy dog."},
		{Text: "This is clearly an English sentence with many words."},
		{Text: "Another unmistakably English line for good measure."},
	}
	tag := DetectLanguage(lines)
	assert.Equal(t, "en", tag.String())
}
