package subtitle

import (
	"time"

	"golang.org/x/text/language"
)

// Reader is the interface for reading subtitle files
type Reader interface {
	Read() (*File, error)
}

// Writer is the interface for writing subtitle files
type Writer interface {
	Write(path string, subtitle *File) error
}

// Line represents a single timed subtitle cue.
// Index is positional metadata for serialization; ordering in File.Lines
// is authoritative.
type Line struct {
	Index          int           `json:"index"`
	StartTime      time.Duration `json:"start"`
	EndTime        time.Duration `json:"end"`
	Text           string        `json:"text"`
	TranslatedText string        `json:"translated_text,omitempty"`
}

// Duration returns the display time of the line.
func (l Line) Duration() time.Duration {
	return l.EndTime - l.StartTime
}

// File represents a subtitle track
type File struct {
	Lines    []Line
	Language language.Tag
	Format   string // e.g. SRT
	Path     string
}

// Texts returns the original text of every line, in order.
func Texts(lines []Line) []string {
	ret := make([]string, len(lines))
	for i, line := range lines {
		ret[i] = line.Text
	}
	return ret
}

// Reindex rewrites Line.Index as 1-based positions. Used after lines are
// removed so the serialized track stays contiguous.
func Reindex(lines []Line) []Line {
	for i := range lines {
		lines[i].Index = i + 1
	}
	return lines
}
