package subtitle

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/abadojack/whatlanggo"
	"golang.org/x/text/language"
)

// timecodePattern matches "00:02:16,612 --> 00:02:19,376".
var timecodePattern = regexp.MustCompile(`(\d{2}):(\d{2}):(\d{2}),(\d{3}) --> (\d{2}):(\d{2}):(\d{2}),(\d{3})`)

// DefaultReader parses SRT tracks from disk.
type DefaultReader struct {
	path string
}

func NewReader(path string) Reader {
	return &DefaultReader{path: path}
}

// Read parses the SRT file. Blocks without a valid timecode are skipped
// rather than failing the whole track; sidecar files found in the wild
// are frequently sloppy around block boundaries.
func (r *DefaultReader) Read() (*File, error) {
	if !strings.EqualFold(filepath.Ext(r.path), ".srt") {
		return nil, fmt.Errorf("unsupported subtitle format: %s", r.path)
	}

	data, err := os.ReadFile(r.path)
	if err != nil {
		return nil, fmt.Errorf("read subtitle file: %w", err)
	}
	content := strings.ReplaceAll(string(data), "\r\n", "\n")

	var lines []Line
	for _, block := range strings.Split(content, "\n\n") {
		if line, ok := parseCueBlock(block); ok {
			lines = append(lines, line)
		}
	}

	return &File{
		Lines:    Reindex(lines),
		Language: DetectLanguage(lines),
		Format:   "SRT",
		Path:     r.path,
	}, nil
}

// parseCueBlock parses one cue: an optional numeric index, a timecode
// line and one or more text lines.
func parseCueBlock(block string) (Line, bool) {
	rows := strings.Split(strings.TrimSpace(block), "\n")

	pos := 0
	if pos < len(rows) {
		if _, err := strconv.Atoi(strings.TrimSpace(rows[pos])); err == nil {
			pos++
		}
	}
	if pos >= len(rows) {
		return Line{}, false
	}

	start, end, err := parseSRTTime(strings.TrimSpace(rows[pos]))
	if err != nil {
		return Line{}, false
	}
	pos++

	var texts []string
	for ; pos < len(rows); pos++ {
		if text := strings.TrimSpace(rows[pos]); text != "" {
			texts = append(texts, text)
		}
	}
	if len(texts) == 0 {
		return Line{}, false
	}

	return Line{
		StartTime: start,
		EndTime:   end,
		Text:      strings.Join(texts, "\n"),
	}, true
}

// parseSRTTime parses one SRT timecode line into start and end offsets.
func parseSRTTime(timeString string) (time.Duration, time.Duration, error) {
	matches := timecodePattern.FindStringSubmatch(timeString)
	if len(matches) != 9 {
		return 0, 0, fmt.Errorf("invalid timecode: %s", timeString)
	}

	field := func(i int) time.Duration {
		n, _ := strconv.Atoi(matches[i])
		return time.Duration(n)
	}
	start := field(1)*time.Hour + field(2)*time.Minute + field(3)*time.Second + field(4)*time.Millisecond
	end := field(5)*time.Hour + field(6)*time.Minute + field(7)*time.Second + field(8)*time.Millisecond
	return start, end, nil
}

// DetectLanguage detects the dominant language across all lines
func DetectLanguage(lines []Line) language.Tag {
	if len(lines) == 0 {
		return language.Und
	}

	langMap := make(map[string]int)

	for _, line := range lines {
		lang := whatlanggo.DetectLang(line.Text).Iso6391()
		langMap[lang]++
	}

	var topLang string
	var topCount int
	for lang, count := range langMap {
		if count > topCount {
			topLang = lang
			topCount = count
		}
	}

	return language.All.Make(topLang)
}
