package entities

import (
	"errors"
	"strings"
	"unicode/utf8"
)

// MinNarrationLength is the minimum trimmed length of slide notes that can be narrated
const MinNarrationLength = 20

// Slide represents a single slide of a presentation
type Slide struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Content  []string `json:"content"`
	Notes    string   `json:"notes"`
	ImageURL string   `json:"imageUrl,omitempty"`
}

// Deck represents a presentation: an ordered collection of slides with a title
type Deck struct {
	Title  string  `json:"title"`
	Slides []Slide `json:"slides"`
}

// NarrationLength returns the number of characters of the trimmed notes
func (s Slide) NarrationLength() int {
	return utf8.RuneCountInString(strings.TrimSpace(s.Notes))
}

// CanNarrate reports whether the notes are long enough to be narrated
func (s Slide) CanNarrate() bool {
	return s.NarrationLength() >= MinNarrationLength
}

// ScriptWords tokenizes the notes into the words the narrator will speak
func (s Slide) ScriptWords() []string {
	return strings.Fields(s.Notes)
}

// Clone returns a deep copy of the slide
func (s Slide) Clone() Slide {
	out := s
	if s.Content != nil {
		out.Content = append([]string(nil), s.Content...)
	}
	return out
}

// Clone returns a deep copy of the deck
func (d Deck) Clone() Deck {
	out := Deck{Title: d.Title}
	if d.Slides != nil {
		out.Slides = make([]Slide, len(d.Slides))
		for i, slide := range d.Slides {
			out.Slides[i] = slide.Clone()
		}
	}
	return out
}

// Validate validates the deck data
func (d Deck) Validate() error {
	if d.Slides == nil {
		return errors.New("slides are required")
	}

	seen := make(map[string]struct{}, len(d.Slides))
	for _, slide := range d.Slides {
		if slide.ID == "" {
			return errors.New("slide id is required")
		}
		if _, dup := seen[slide.ID]; dup {
			return errors.New("slide ids must be unique within a deck")
		}
		seen[slide.ID] = struct{}{}
	}

	return nil
}
