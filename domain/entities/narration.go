package entities

import "fmt"

// NarrationStatus is the externally visible state of the narrator
type NarrationStatus string

const (
	NarrationStatusIdle          NarrationStatus = "idle"
	NarrationStatusConnected     NarrationStatus = "connected"
	NarrationStatusSpeaking      NarrationStatus = "speaking"
	NarrationStatusPaused        NarrationStatus = "paused"
	NarrationStatusStopped       NarrationStatus = "stopped"
	NarrationStatusError         NarrationStatus = "error"
	NarrationStatusTransitioning NarrationStatus = "transitioning"
)

// ConflictAction selects how an imported deck is combined with the existing one
type ConflictAction string

const (
	ConflictActionReplace ConflictAction = "replace"
	ConflictActionMerge   ConflictAction = "merge"
	ConflictActionAppend  ConflictAction = "append"
)

// SlideHandling selects how two slides at the same position are combined in a merge
type SlideHandling string

const (
	SlideHandlingKeepExisting SlideHandling = "keepExisting"
	SlideHandlingKeepImported SlideHandling = "keepImported"
	SlideHandlingMergeContent SlideHandling = "mergeContent"
)

// TitleHandling selects the title of the combined deck
type TitleHandling string

const (
	TitleHandlingKeepExisting TitleHandling = "keepExisting"
	TitleHandlingKeepImported TitleHandling = "keepImported"
	TitleHandlingCombine      TitleHandling = "combine"
)

// ConflictResolutionOptions configures a single deck merge
type ConflictResolutionOptions struct {
	Action        ConflictAction `json:"action"`
	SlideHandling SlideHandling  `json:"slideHandling,omitempty"`
	TitleHandling TitleHandling  `json:"titleHandling,omitempty"`
}

// WithDefaults fills the optional sub-policies with keepExisting
func (o ConflictResolutionOptions) WithDefaults() ConflictResolutionOptions {
	if o.SlideHandling == "" {
		o.SlideHandling = SlideHandlingKeepExisting
	}
	if o.TitleHandling == "" {
		o.TitleHandling = TitleHandlingKeepExisting
	}
	return o
}

// Validate checks that every policy is a known value
func (o ConflictResolutionOptions) Validate() error {
	switch o.Action {
	case ConflictActionReplace, ConflictActionMerge, ConflictActionAppend:
	default:
		return fmt.Errorf("unknown conflict action %q", o.Action)
	}

	switch o.SlideHandling {
	case "", SlideHandlingKeepExisting, SlideHandlingKeepImported, SlideHandlingMergeContent:
	default:
		return fmt.Errorf("unknown slide handling %q", o.SlideHandling)
	}

	switch o.TitleHandling {
	case "", TitleHandlingKeepExisting, TitleHandlingKeepImported, TitleHandlingCombine:
	default:
		return fmt.Errorf("unknown title handling %q", o.TitleHandling)
	}

	return nil
}
