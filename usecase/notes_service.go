package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/satriahrh/slidecast/domain/entities"
	"github.com/satriahrh/slidecast/domain/repositories"
)

// MaxGeneratedSlides bounds the size of a generated deck
const MaxGeneratedSlides = 20

var ErrInvalidDeckRequest = errors.New("invalid deck generation request")

// NotesService fills in narration scripts and drafts decks with a content generator
type NotesService struct {
	generator repositories.NotesGenerator
	logger    *zap.Logger
}

func NewNotesService(generator repositories.NotesGenerator, logger *zap.Logger) *NotesService {
	return &NotesService{generator: generator, logger: logger}
}

// EnsureNotes returns a copy of deck in which every slide has notes long enough to narrate.
// Slides that already qualify are left untouched.
func (n *NotesService) EnsureNotes(ctx context.Context, deck entities.Deck) (entities.Deck, error) {
	if n.generator == nil {
		return entities.Deck{}, ErrServiceNotInitialized
	}

	out := deck.Clone()
	generated := 0
	for i, slide := range out.Slides {
		if slide.CanNarrate() {
			continue
		}

		notes, err := n.generator.GenerateNotes(ctx, deck.Title, slide)
		if err != nil {
			return entities.Deck{}, fmt.Errorf("generate notes for slide %d: %w", i, err)
		}
		out.Slides[i].Notes = strings.TrimSpace(notes)
		generated++
	}

	n.logger.Info("Ensured narration notes",
		zap.String("title", deck.Title),
		zap.Int("slides", len(out.Slides)),
		zap.Int("generated", generated))
	return out, nil
}

// GenerateDeck drafts a deck of count slides about topic
func (n *NotesService) GenerateDeck(ctx context.Context, topic string, count int) (entities.Deck, error) {
	if n.generator == nil {
		return entities.Deck{}, ErrServiceNotInitialized
	}

	topic = strings.TrimSpace(topic)
	if topic == "" {
		return entities.Deck{}, fmt.Errorf("%w: topic is required", ErrInvalidDeckRequest)
	}
	if count < 1 || count > MaxGeneratedSlides {
		return entities.Deck{}, fmt.Errorf("%w: slide count must be between 1 and %d", ErrInvalidDeckRequest, MaxGeneratedSlides)
	}

	deck, err := n.generator.GenerateDeck(ctx, topic, count)
	if err != nil {
		return entities.Deck{}, fmt.Errorf("generate deck: %w", err)
	}

	n.logger.Info("Generated deck",
		zap.String("topic", topic),
		zap.String("title", deck.Title),
		zap.Int("slides", len(deck.Slides)))
	return deck, nil
}
