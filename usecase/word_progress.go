package usecase

import (
	"math"
	"strings"
	"time"
	"unicode"
)

const (
	// estimatedWordsPerSecond is the speaking cadence assumed by the fallback ticker
	estimatedWordsPerSecond = 1.8
	// progressTickInterval is how often the fallback ticker samples
	progressTickInterval = 350 * time.Millisecond
	// transcriptStaleAfter is how long without transcript progress before ticking takes over
	transcriptStaleAfter = 3 * time.Second
)

// normalizeWord lowercases a token and strips everything but letters and digits
func normalizeWord(word string) string {
	var b strings.Builder
	b.Grow(len(word))
	for _, r := range strings.ToLower(word) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// normalizeWords splits text on whitespace and normalizes every token, dropping empty ones
func normalizeWords(text string) []string {
	fields := strings.Fields(text)
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if n := normalizeWord(f); n != "" {
			out = append(out, n)
		}
	}
	return out
}

// EstimateSpokenCount aligns a transcript fragment against the script and returns the
// number of script words believed to have been spoken. The result never goes below
// previous and never exceeds len(scriptWords).
func EstimateSpokenCount(scriptWords []string, fragment string, previous int) int {
	total := len(scriptWords)
	if previous < 0 {
		previous = 0
	}
	if previous > total {
		previous = total
	}

	spoken := normalizeWords(fragment)
	if len(spoken) == 0 || total == 0 {
		return previous
	}

	// Script tokens that normalize to nothing (dashes, bullets) keep their position
	// but are skipped while matching.
	script := make([]string, 0, total)
	positions := make([]int, 0, total)
	for i, w := range scriptWords {
		if n := normalizeWord(w); n != "" {
			script = append(script, n)
			positions = append(positions, i)
		}
	}

	candidate := 0
	for start := 0; start < len(spoken); start++ {
		end, ok := matchEnd(script, spoken[start:], positions, previous)
		if ok {
			candidate = end
			break
		}
	}

	if candidate > total {
		candidate = total
	}
	if candidate < previous {
		return previous
	}
	return candidate
}

// matchEnd finds where needle occurs in script and returns the script prefix length
// ending at that occurrence. The first occurrence ending at or after previous wins,
// otherwise the last occurrence.
func matchEnd(script, needle []string, positions []int, previous int) (int, bool) {
	if len(needle) > len(script) {
		return 0, false
	}

	last := -1
	for i := 0; i+len(needle) <= len(script); i++ {
		if !equalWords(script[i:i+len(needle)], needle) {
			continue
		}
		end := positions[i+len(needle)-1] + 1
		if end >= previous {
			return end, true
		}
		last = end
	}

	if last < 0 {
		return 0, false
	}
	return last, true
}

func equalWords(a, b []string) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// advanceByTime moves the time-based estimate forward by one tick. The returned count is
// capped at total-1 so only speech-end can declare the final word spoken.
func advanceByTime(estimate float64, spoken, total int) (float64, int) {
	if estimate < float64(spoken) {
		estimate = float64(spoken)
	}
	estimate += estimatedWordsPerSecond * progressTickInterval.Seconds()

	ceiling := total - 1
	if ceiling < 0 {
		ceiling = 0
	}

	candidate := int(math.Floor(estimate))
	if candidate > ceiling {
		candidate = ceiling
	}
	if candidate < spoken {
		candidate = spoken
	}
	return estimate, candidate
}

// ProgressPercent converts a word count into a display percentage
func ProgressPercent(spoken, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(spoken) / float64(total) * 100))
}
