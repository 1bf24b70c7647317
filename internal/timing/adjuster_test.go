package timing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/andrifs/subpipe/internal/config"
	"github.com/andrifs/subpipe/internal/subtitle"
)

func line(start, end time.Duration, text string) subtitle.Line {
	return subtitle.Line{StartTime: start, EndTime: end, Text: text}
}

func TestIsSentenceEnding(t *testing.T) {
	t.Parallel()

	complete := []string{"Done.", "Really?", "Stop!", "he said\"", "(aside)", "wait…", "hold on...", "", "   "}
	for _, text := range complete {
		assert.True(t, IsSentenceEnding(text), "expected complete: %q", text)
	}

	incomplete := []string{"and then", "I was going to", "because", "the quick brown"}
	for _, text := range incomplete {
		assert.False(t, IsSentenceEnding(text), "expected incomplete: %q", text)
	}
}

func TestAdjustBridgesIncompleteSentence(t *testing.T) {
	t.Parallel()

	lines := []subtitle.Line{
		line(0, 2*time.Second, "I was going to"),
		line(5*time.Second, 7*time.Second, "tell you something."),
	}

	adjusted := Adjust(lines, nil, config.DefaultTimingConfig())

	// Gap of 3s is below the bridging limit, so the cue extends to just
	// before its successor.
	assert.Equal(t, 4900*time.Millisecond, adjusted[0].EndTime)
	assert.Equal(t, time.Duration(0), adjusted[0].StartTime)
}

func TestAdjustDoesNotBridgeCompleteSentenceAcrossLongGap(t *testing.T) {
	t.Parallel()

	lines := []subtitle.Line{
		line(0, 2*time.Second, "That is everything."),
		line(5500*time.Millisecond, 7*time.Second, "New topic now."),
	}

	adjusted := Adjust(lines, nil, config.DefaultTimingConfig())

	assert.Equal(t, 2*time.Second, adjusted[0].EndTime)
}

func TestAdjustBreathBridgeForCompleteSentence(t *testing.T) {
	t.Parallel()

	lines := []subtitle.Line{
		line(0, 2*time.Second, "That is everything."),
		line(3*time.Second, 5*time.Second, "New topic now."),
	}

	adjusted := Adjust(lines, nil, config.DefaultTimingConfig())

	// 1s pause is a breath, not a topic change.
	assert.Equal(t, 2900*time.Millisecond, adjusted[0].EndTime)
}

func TestAdjustMinDurationClampedByNeighbor(t *testing.T) {
	t.Parallel()

	lines := []subtitle.Line{
		line(0, 500*time.Millisecond, "Hi."),
		line(1050*time.Millisecond, 3*time.Second, "How are you doing today?"),
	}

	adjusted := Adjust(lines, nil, config.DefaultTimingConfig())

	// Legibility wants 1.5s but the neighbor starts at 1.05s; the gap
	// margin wins.
	assert.Equal(t, 950*time.Millisecond, adjusted[0].EndTime)
	assert.LessOrEqual(t, adjusted[0].EndTime, adjusted[1].StartTime-100*time.Millisecond)
}

func TestAdjustOverlapClamp(t *testing.T) {
	t.Parallel()

	lines := []subtitle.Line{
		line(0, 3*time.Second, "This one runs long and overlaps."),
		line(2*time.Second, 4*time.Second, "While this one already started."),
	}

	adjusted := Adjust(lines, nil, config.DefaultTimingConfig())

	assert.Equal(t, 1900*time.Millisecond, adjusted[0].EndTime)
	assert.Less(t, adjusted[0].EndTime, adjusted[1].StartTime)
}

func TestAdjustDegenerateNeighborKeepsPositiveDuration(t *testing.T) {
	t.Parallel()

	lines := []subtitle.Line{
		line(2*time.Second, 3*time.Second, "so I"),
		line(1500*time.Millisecond, 4*time.Second, "went home."),
	}

	adjusted := Adjust(lines, nil, config.DefaultTimingConfig())

	assert.Greater(t, adjusted[0].EndTime, adjusted[0].StartTime)
}

func TestAdjustLastCueExtendsFreely(t *testing.T) {
	t.Parallel()

	lines := []subtitle.Line{
		line(10*time.Second, 10500*time.Millisecond, "This is the last line in the file"),
	}

	adjusted := Adjust(lines, nil, config.DefaultTimingConfig())

	// 33 characters at 15 cps need 2.2s of display time.
	assert.Equal(t, 12200*time.Millisecond, adjusted[0].EndTime)
}

func TestAdjustMaxDurationCapsBridging(t *testing.T) {
	t.Parallel()

	lines := []subtitle.Line{
		line(0, 7*time.Second, "and while we waited for the"),
		line(10800*time.Millisecond, 12*time.Second, "train to arrive."),
	}

	adjusted := Adjust(lines, nil, config.DefaultTimingConfig())

	assert.Equal(t, 8*time.Second, adjusted[0].EndTime)
}

func TestAdjustHintsOverridePunctuation(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultTimingConfig()

	// Punctuation says complete, classifier says the sentence continues.
	lines := []subtitle.Line{
		line(0, 2*time.Second, "Mr."),
		line(5*time.Second, 7*time.Second, "Smith arrived."),
	}
	adjusted := Adjust(lines, []Hint{HintContinues, HintComplete}, cfg)
	assert.Equal(t, 4900*time.Millisecond, adjusted[0].EndTime)

	// Punctuation says incomplete, classifier says the thought is done.
	lines = []subtitle.Line{
		line(0, 2*time.Second, "and that was that"),
		line(5*time.Second, 7*time.Second, "Completely new topic."),
	}
	adjusted = Adjust(lines, []Hint{HintComplete, HintComplete}, cfg)
	assert.Equal(t, 2*time.Second, adjusted[0].EndTime)
}

func TestAdjustDoesNotMutateInput(t *testing.T) {
	t.Parallel()

	lines := []subtitle.Line{
		line(0, 2*time.Second, "I was going to"),
		line(5*time.Second, 7*time.Second, "tell you something."),
	}

	_ = Adjust(lines, nil, config.DefaultTimingConfig())

	assert.Equal(t, 2*time.Second, lines[0].EndTime)
}

func TestAdjustDeterministic(t *testing.T) {
	t.Parallel()

	lines := []subtitle.Line{
		line(0, 1*time.Second, "one"),
		line(1200*time.Millisecond, 2*time.Second, "two and"),
		line(4*time.Second, 6*time.Second, "three."),
	}

	first := Adjust(lines, nil, config.DefaultTimingConfig())
	second := Adjust(lines, nil, config.DefaultTimingConfig())

	assert.Equal(t, first, second)
}
