package usecase

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap/zaptest"

	"github.com/satriahrh/slidecast/domain/entities"
)

const testStamp int64 = 1700000000000

func existingDeck() entities.Deck {
	return entities.Deck{
		Title: "Existing",
		Slides: []entities.Slide{
			{ID: "e1", Title: "Intro", Content: []string{"hello"}, Notes: "existing notes one", ImageURL: "https://img/e1.png"},
			{ID: "e2", Title: "Body", Content: []string{"details"}, Notes: "existing notes two"},
		},
	}
}

func importedDeck() entities.Deck {
	return entities.Deck{
		Title: "Imported",
		Slides: []entities.Slide{
			{ID: "i1", Title: "Welcome", Content: []string{"hi there"}, Notes: "imported notes one", ImageURL: "https://img/i1.png"},
			{ID: "i2", Title: "Agenda", Content: []string{"agenda"}, Notes: "imported notes two", ImageURL: "https://img/i2.png"},
			{ID: "i3", Title: "Outro", Content: []string{"bye"}, Notes: "imported notes three"},
		},
	}
}

func TestResolveDeckConflictMergeContentCombine(t *testing.T) {
	result := ResolveDeckConflict(existingDeck(), importedDeck(), entities.ConflictResolutionOptions{
		Action:        entities.ConflictActionMerge,
		SlideHandling: entities.SlideHandlingMergeContent,
		TitleHandling: entities.TitleHandlingCombine,
	}, testStamp)

	if result.Title != "Existing + Imported" {
		t.Errorf("Expected combined title, got %q", result.Title)
	}
	if len(result.Slides) != 3 {
		t.Fatalf("Expected 3 slides, got %d", len(result.Slides))
	}

	first := result.Slides[0]
	if first.ID != "e1" {
		t.Errorf("Merged slide should keep existing id, got %q", first.ID)
	}
	expectedContent := []string{"hello", ImportedContentMarker, "hi there"}
	if strings.Join(first.Content, "|") != strings.Join(expectedContent, "|") {
		t.Errorf("Expected content %v, got %v", expectedContent, first.Content)
	}
	if !strings.Contains(first.Notes, "existing notes one") || !strings.Contains(first.Notes, ImportedNotesMarker) || !strings.Contains(first.Notes, "imported notes one") {
		t.Errorf("Notes should be concatenated with marker, got %q", first.Notes)
	}
	if first.ImageURL != "https://img/e1.png" {
		t.Errorf("Existing image should win, got %q", first.ImageURL)
	}

	second := result.Slides[1]
	if second.ImageURL != "https://img/i2.png" {
		t.Errorf("Imported image should fill a missing existing image, got %q", second.ImageURL)
	}
	if second.Content[1] != ImportedContentMarker {
		t.Errorf("Expected separator marker between content, got %v", second.Content)
	}

	third := result.Slides[2]
	if third.ID != "imported-1700000000000-2-i3" {
		t.Errorf("Expected re-keyed id, got %q", third.ID)
	}
	if third.Title != "Outro" || third.Notes != "imported notes three" {
		t.Errorf("Imported-only slide should be taken unchanged, got %+v", third)
	}
}

func TestResolveDeckConflictMergeSlideCount(t *testing.T) {
	handlings := []entities.SlideHandling{
		entities.SlideHandlingKeepExisting,
		entities.SlideHandlingKeepImported,
		entities.SlideHandlingMergeContent,
	}

	for _, handling := range handlings {
		t.Run(string(handling), func(t *testing.T) {
			opts := entities.ConflictResolutionOptions{Action: entities.ConflictActionMerge, SlideHandling: handling}

			forward := ResolveDeckConflict(existingDeck(), importedDeck(), opts, testStamp)
			if len(forward.Slides) != 3 {
				t.Errorf("Expected max(2,3)=3 slides, got %d", len(forward.Slides))
			}

			backward := ResolveDeckConflict(importedDeck(), existingDeck(), opts, testStamp)
			if len(backward.Slides) != 3 {
				t.Errorf("Expected max(3,2)=3 slides, got %d", len(backward.Slides))
			}
		})
	}
}

func TestResolveDeckConflictMergeKeepPolicies(t *testing.T) {
	keepExisting := ResolveDeckConflict(existingDeck(), importedDeck(), entities.ConflictResolutionOptions{
		Action: entities.ConflictActionMerge,
	}, testStamp)
	if keepExisting.Slides[0].ID != "e1" || keepExisting.Slides[0].Notes != "existing notes one" {
		t.Errorf("Default slide handling should keep existing slide, got %+v", keepExisting.Slides[0])
	}
	if keepExisting.Title != "Existing" {
		t.Errorf("Default title handling should keep existing title, got %q", keepExisting.Title)
	}

	keepImported := ResolveDeckConflict(existingDeck(), importedDeck(), entities.ConflictResolutionOptions{
		Action:        entities.ConflictActionMerge,
		SlideHandling: entities.SlideHandlingKeepImported,
		TitleHandling: entities.TitleHandlingKeepImported,
	}, testStamp)
	if keepImported.Slides[1].ID != "imported-1700000000000-1-i2" {
		t.Errorf("Expected re-keyed imported slide, got %q", keepImported.Slides[1].ID)
	}
	if keepImported.Slides[1].Title != "Agenda" {
		t.Errorf("Expected imported slide title, got %q", keepImported.Slides[1].Title)
	}
	if keepImported.Title != "Imported" {
		t.Errorf("Expected imported title, got %q", keepImported.Title)
	}
}

func TestResolveDeckConflictMergeExistingLonger(t *testing.T) {
	existing := existingDeck()
	imported := entities.Deck{Title: "Short", Slides: []entities.Slide{{ID: "x", Notes: "only"}}}

	result := ResolveDeckConflict(existing, imported, entities.ConflictResolutionOptions{
		Action:        entities.ConflictActionMerge,
		SlideHandling: entities.SlideHandlingMergeContent,
	}, testStamp)

	if len(result.Slides) != 2 {
		t.Fatalf("Expected 2 slides, got %d", len(result.Slides))
	}
	if result.Slides[1].ID != "e2" || result.Slides[1].Notes != "existing notes two" {
		t.Errorf("Existing-only slide should be taken unchanged, got %+v", result.Slides[1])
	}
}

func TestResolveDeckConflictReplace(t *testing.T) {
	imported := importedDeck()
	result := ResolveDeckConflict(existingDeck(), imported, entities.ConflictResolutionOptions{
		Action:        entities.ConflictActionReplace,
		TitleHandling: entities.TitleHandlingKeepImported,
	}, testStamp)

	if result.Title != "Imported" {
		t.Errorf("Expected imported title, got %q", result.Title)
	}
	if len(result.Slides) != len(imported.Slides) {
		t.Fatalf("Expected %d slides, got %d", len(imported.Slides), len(result.Slides))
	}

	seen := map[string]bool{}
	for i, slide := range result.Slides {
		orig := imported.Slides[i]
		if slide.ID == orig.ID {
			t.Errorf("Slide %d id should be rewritten", i)
		}
		if seen[slide.ID] {
			t.Errorf("Duplicate id %q", slide.ID)
		}
		seen[slide.ID] = true

		if slide.Title != orig.Title || slide.Notes != orig.Notes || slide.ImageURL != orig.ImageURL {
			t.Errorf("Slide %d content changed: %+v vs %+v", i, slide, orig)
		}
		if strings.Join(slide.Content, "|") != strings.Join(orig.Content, "|") {
			t.Errorf("Slide %d bullets changed: %v vs %v", i, slide.Content, orig.Content)
		}
	}
}

func TestResolveDeckConflictAppend(t *testing.T) {
	existing := existingDeck()
	imported := importedDeck()

	result := ResolveDeckConflict(existing, imported, entities.ConflictResolutionOptions{
		Action:        entities.ConflictActionAppend,
		TitleHandling: entities.TitleHandlingCombine,
	}, testStamp)

	if len(result.Slides) != 5 {
		t.Fatalf("Expected 5 slides, got %d", len(result.Slides))
	}
	if result.Slides[0].ID != "e1" || result.Slides[1].ID != "e2" {
		t.Error("Existing slides should come first and keep their ids")
	}

	for i, orig := range imported.Slides {
		slide := result.Slides[len(existing.Slides)+i]
		if slide.Title != orig.Title+" (Imported)" {
			t.Errorf("Expected suffixed title, got %q", slide.Title)
		}
		if !strings.HasPrefix(slide.ID, "imported-1700000000000-") || !strings.HasSuffix(slide.ID, "-"+orig.ID) {
			t.Errorf("Unexpected re-keyed id %q", slide.ID)
		}
		if slide.Notes != orig.Notes {
			t.Errorf("Imported notes lost: %q vs %q", slide.Notes, orig.Notes)
		}
	}
}

func TestResolveDeckConflictDoesNotMutateInputs(t *testing.T) {
	existing := existingDeck()
	imported := importedDeck()

	result := ResolveDeckConflict(existing, imported, entities.ConflictResolutionOptions{
		Action:        entities.ConflictActionMerge,
		SlideHandling: entities.SlideHandlingMergeContent,
	}, testStamp)
	result.Slides[0].Content[0] = "mutated"

	if existing.Slides[0].Content[0] != "hello" {
		t.Error("Existing deck should not share content with the result")
	}
	if len(existing.Slides[0].Content) != 1 {
		t.Error("Existing deck content should not grow")
	}
	if imported.Slides[2].ID != "i3" {
		t.Error("Imported deck ids should not be rewritten in place")
	}
}

func TestDeckMergerResolve(t *testing.T) {
	mock := clock.NewMock()
	mock.Set(time.UnixMilli(testStamp))
	merger := NewDeckMerger(mock, zaptest.NewLogger(t))

	result, err := merger.Resolve(existingDeck(), importedDeck(), entities.ConflictResolutionOptions{Action: entities.ConflictActionReplace})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if result.Slides[0].ID != "imported-1700000000000-0-i1" {
		t.Errorf("Expected id stamped with clock time, got %q", result.Slides[0].ID)
	}

	_, err = merger.Resolve(existingDeck(), importedDeck(), entities.ConflictResolutionOptions{Action: "shuffle"})
	if !errors.Is(err, ErrUnknownConflictAction) {
		t.Errorf("Expected ErrUnknownConflictAction, got %v", err)
	}

	_, err = merger.Resolve(existingDeck(), importedDeck(), entities.ConflictResolutionOptions{
		Action:        entities.ConflictActionMerge,
		SlideHandling: "shuffle",
	})
	if !errors.Is(err, ErrInvalidConflictOptions) {
		t.Errorf("Expected ErrInvalidConflictOptions, got %v", err)
	}
}
