package repositories

import (
	"context"

	"github.com/satriahrh/slidecast/domain/entities"
)

// NotesGenerator abstracts any LLM provider able to write presentation material
type NotesGenerator interface {
	// GenerateNotes writes speaker notes for a single slide
	GenerateNotes(ctx context.Context, deckTitle string, slide entities.Slide) (string, error)
	// GenerateDeck drafts a whole deck about a topic
	GenerateDeck(ctx context.Context, topic string, slideCount int) (entities.Deck, error)
}
