package usecase

import (
	"fmt"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/satriahrh/slidecast/domain/entities"
	"github.com/satriahrh/slidecast/internal/metrics"
)

const (
	// ImportedContentMarker separates existing and imported bullet lines in a merged slide
	ImportedContentMarker = "--- Imported Content ---"
	// ImportedNotesMarker separates existing and imported notes in a merged slide
	ImportedNotesMarker = "--- Imported Notes ---"

	importedTitleSuffix = " (Imported)"
)

// ResolveDeckConflict combines an existing deck with an imported one under opts.
// Imported slides are re-keyed with stamp so their ids cannot collide with existing ones.
// Neither input is modified.
func ResolveDeckConflict(existing, imported entities.Deck, opts entities.ConflictResolutionOptions, stamp int64) entities.Deck {
	opts = opts.WithDefaults()

	result := entities.Deck{Title: resolveTitle(existing.Title, imported.Title, opts.TitleHandling)}

	switch opts.Action {
	case entities.ConflictActionReplace:
		result.Slides = make([]entities.Slide, 0, len(imported.Slides))
		for i, slide := range imported.Slides {
			result.Slides = append(result.Slides, rekey(slide, stamp, i))
		}

	case entities.ConflictActionAppend:
		result.Slides = make([]entities.Slide, 0, len(existing.Slides)+len(imported.Slides))
		for _, slide := range existing.Slides {
			result.Slides = append(result.Slides, slide.Clone())
		}
		for i, slide := range imported.Slides {
			appended := rekey(slide, stamp, i)
			appended.Title += importedTitleSuffix
			result.Slides = append(result.Slides, appended)
		}

	case entities.ConflictActionMerge:
		n := len(existing.Slides)
		if len(imported.Slides) > n {
			n = len(imported.Slides)
		}
		result.Slides = make([]entities.Slide, 0, n)
		for i := 0; i < n; i++ {
			switch {
			case i >= len(imported.Slides):
				result.Slides = append(result.Slides, existing.Slides[i].Clone())
			case i >= len(existing.Slides):
				result.Slides = append(result.Slides, rekey(imported.Slides[i], stamp, i))
			default:
				result.Slides = append(result.Slides, mergeSlide(existing.Slides[i], imported.Slides[i], opts.SlideHandling, stamp, i))
			}
		}

	default:
		// Unknown actions leave the existing deck untouched
		result = existing.Clone()
	}

	return result
}

func resolveTitle(existing, imported string, handling entities.TitleHandling) string {
	switch handling {
	case entities.TitleHandlingKeepImported:
		return imported
	case entities.TitleHandlingCombine:
		return existing + " + " + imported
	default:
		return existing
	}
}

func rekey(slide entities.Slide, stamp int64, index int) entities.Slide {
	out := slide.Clone()
	out.ID = fmt.Sprintf("imported-%d-%d-%s", stamp, index, slide.ID)
	return out
}

func mergeSlide(existing, imported entities.Slide, handling entities.SlideHandling, stamp int64, index int) entities.Slide {
	switch handling {
	case entities.SlideHandlingKeepImported:
		return rekey(imported, stamp, index)

	case entities.SlideHandlingMergeContent:
		merged := existing.Clone()
		merged.Content = make([]string, 0, len(existing.Content)+len(imported.Content)+1)
		merged.Content = append(merged.Content, existing.Content...)
		merged.Content = append(merged.Content, ImportedContentMarker)
		merged.Content = append(merged.Content, imported.Content...)
		merged.Notes = joinNotes(existing.Notes, imported.Notes)
		if merged.ImageURL == "" {
			merged.ImageURL = imported.ImageURL
		}
		return merged

	default:
		return existing.Clone()
	}
}

func joinNotes(existing, imported string) string {
	switch {
	case existing == "":
		return imported
	case imported == "":
		return existing
	default:
		return existing + "\n\n" + ImportedNotesMarker + "\n\n" + imported
	}
}

// DeckMerger resolves deck conflicts for the API, stamping re-keyed ids with its clock
type DeckMerger struct {
	clock  clock.Clock
	logger *zap.Logger
}

func NewDeckMerger(clk clock.Clock, logger *zap.Logger) *DeckMerger {
	return &DeckMerger{clock: clk, logger: logger}
}

// Resolve validates opts and combines the two decks
func (m *DeckMerger) Resolve(existing, imported entities.Deck, opts entities.ConflictResolutionOptions) (entities.Deck, error) {
	switch opts.Action {
	case entities.ConflictActionReplace, entities.ConflictActionMerge, entities.ConflictActionAppend:
	default:
		return entities.Deck{}, fmt.Errorf("%w: %q", ErrUnknownConflictAction, opts.Action)
	}
	if err := opts.Validate(); err != nil {
		return entities.Deck{}, fmt.Errorf("%w: %v", ErrInvalidConflictOptions, err)
	}

	stamp := m.clock.Now().UnixMilli()
	result := ResolveDeckConflict(existing, imported, opts, stamp)

	metrics.DeckMerges.WithLabelValues(string(opts.Action)).Inc()
	m.logger.Info("Resolved deck conflict",
		zap.String("action", string(opts.Action)),
		zap.Int("existingSlides", len(existing.Slides)),
		zap.Int("importedSlides", len(imported.Slides)),
		zap.Int("resultSlides", len(result.Slides)))

	return result, nil
}
