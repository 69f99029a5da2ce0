package llm

import (
	"context"
	"fmt"

	"github.com/satriahrh/slidecast/domain/entities"
	"github.com/satriahrh/slidecast/domain/repositories"
)

// MockGenerator is a deterministic stand-in for Gemini, used when no API key is configured
type MockGenerator struct{}

var _ repositories.NotesGenerator = MockGenerator{}

// NewMockGenerator creates a new mock generator
func NewMockGenerator() MockGenerator {
	return MockGenerator{}
}

// GenerateNotes implements repositories.NotesGenerator
func (MockGenerator) GenerateNotes(ctx context.Context, deckTitle string, slide entities.Slide) (string, error) {
	return fmt.Sprintf("In this part of %s we look at %s. Take a moment to read the points on screen while I walk you through them.",
		deckTitle, slide.Title), nil
}

// GenerateDeck implements repositories.NotesGenerator
func (m MockGenerator) GenerateDeck(ctx context.Context, topic string, slideCount int) (entities.Deck, error) {
	deck := entities.Deck{Title: topic}
	for i := 0; i < slideCount; i++ {
		slide := entities.Slide{
			ID:      fmt.Sprintf("slide-%d", i+1),
			Title:   fmt.Sprintf("%s, part %d", topic, i+1),
			Content: []string{fmt.Sprintf("Key idea %d", i+1)},
		}
		slide.Notes, _ = m.GenerateNotes(ctx, topic, slide)
		deck.Slides = append(deck.Slides, slide)
	}
	return deck, nil
}
