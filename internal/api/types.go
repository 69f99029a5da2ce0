package api

import (
	"github.com/satriahrh/slidecast/domain/entities"
)

// StartSlideRequest represents the request payload for narrating a single slide
type StartSlideRequest struct {
	Slide       entities.Slide `json:"slide"`
	SlideIndex  int            `json:"slide_index"`
	TotalSlides int            `json:"total_slides"`
	Title       string         `json:"title"`
}

// StartAutoAdvanceRequest represents the request payload for narrating a whole deck
type StartAutoAdvanceRequest struct {
	Title  string           `json:"title"`
	Slides []entities.Slide `json:"slides"`
}

// MergeDecksRequest represents the request payload for resolving an import conflict
type MergeDecksRequest struct {
	Existing entities.Deck                      `json:"existing"`
	Imported entities.Deck                      `json:"imported"`
	Options  entities.ConflictResolutionOptions `json:"options"`
}

// GenerateDeckRequest represents the request payload for drafting a deck
type GenerateDeckRequest struct {
	Topic      string `json:"topic"`
	SlideCount int    `json:"slide_count"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
