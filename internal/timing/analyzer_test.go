package timing

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedChat struct {
	responses []string
	errs      []error
	calls     int
	prompts   []string
}

func (s *scriptedChat) SimpleChat(_ context.Context, prompt, _ string) (string, error) {
	i := s.calls
	s.calls++
	s.prompts = append(s.prompts, prompt)
	if i < len(s.errs) && s.errs[i] != nil {
		return "", s.errs[i]
	}
	if i < len(s.responses) {
		return s.responses[i], nil
	}
	return "", fmt.Errorf("unexpected call %d", i)
}

func TestClassifyParsesStatuses(t *testing.T) {
	t.Parallel()

	chat := &scriptedChat{responses: []string{"1. COMPLETE\n2. CONTINUES\n3. COMPLETE"}}
	analyzer := NewAnalyzer(chat, 0, 0)

	hints := analyzer.Classify(context.Background(), []string{"Done.", "and then", "The end."})

	require.Len(t, hints, 3)
	assert.Equal(t, []Hint{HintComplete, HintContinues, HintComplete}, hints)
}

func TestClassifyPadsShortResponse(t *testing.T) {
	t.Parallel()

	chat := &scriptedChat{responses: []string{"1. CONTINUES"}}
	analyzer := NewAnalyzer(chat, 0, 0)

	hints := analyzer.Classify(context.Background(), []string{"a", "b", "c"})

	require.Len(t, hints, 3)
	assert.Equal(t, HintContinues, hints[0])
	assert.Equal(t, HintComplete, hints[1])
	assert.Equal(t, HintComplete, hints[2])
}

func TestClassifyFailedBatchDefaultsToComplete(t *testing.T) {
	t.Parallel()

	chat := &scriptedChat{
		errs:      []error{fmt.Errorf("backend down"), nil},
		responses: []string{"", "1. CONTINUES\n2. CONTINUES"},
	}
	analyzer := NewAnalyzer(chat, 2, 0)

	hints := analyzer.Classify(context.Background(), []string{"a", "b", "c", "d"})

	require.Len(t, hints, 4)
	assert.Equal(t, []Hint{HintComplete, HintComplete, HintContinues, HintContinues}, hints)
}

func TestClassifyBatchesInput(t *testing.T) {
	t.Parallel()

	chat := &scriptedChat{responses: []string{
		"1. COMPLETE\n2. COMPLETE",
		"1. CONTINUES",
	}}
	analyzer := NewAnalyzer(chat, 2, 0)

	hints := analyzer.Classify(context.Background(), []string{"a", "b", "c"})

	require.Len(t, hints, 3)
	assert.Equal(t, 2, chat.calls)
	assert.Contains(t, chat.prompts[0], "1. a")
	assert.Contains(t, chat.prompts[1], "1. c")
}
