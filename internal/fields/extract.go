// Package fields separates raw OCR detections into vehicle category labels and
// date strings, and cleans up the typical OCR misreadings of both.
package fields

import (
	"fmt"
	"math"
	"strings"
	"unicode"
	"unicode/utf8"

	"licensetable/pkg/models"
)

const (
	// maxCategoryLength is the longest trimmed text still considered a category cell.
	maxCategoryLength = 5

	// maxDateLetters is the number of ASCII letters at which a text stops being a
	// date candidate.
	maxDateLetters = 3

	// excludedCategory is skipped during substring matching.
	excludedCategory = "CE"
)

// Config carries the read-only settings the classifier depends on.
type Config struct {
	// Check is the category vocabulary in matching order; earlier entries win.
	Check []string

	// Threshold is the OCR confidence a detection must exceed to be used.
	Threshold float64
}

// Candidate is a validated text field: its box and its cleaned text.
type Candidate struct {
	Box  models.BoundingBox
	Text string
}

type categoryHit struct {
	box      models.BoundingBox
	text     string
	category string
}

// Validate checks that the classifier can run with this configuration.
func (c Config) Validate() error {
	if len(c.Check) == 0 {
		return newFieldError("Validate", ErrConfiguration, "category vocabulary is empty")
	}
	if math.IsNaN(c.Threshold) || c.Threshold < 0 || c.Threshold > 1 {
		return newFieldError("Validate", ErrConfiguration, fmt.Sprintf("OCR text threshold %v outside [0,1]", c.Threshold))
	}
	return nil
}

// Extract splits OCR detections into validated category and date candidates.
func Extract(detections []models.TextDetection, cfg Config) (categories, dates []Candidate, err error) {
	const op = "Extract"

	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	var hits []categoryHit
	var rawDates []Candidate

	for i, det := range detections {
		if len(det.Box) == 0 || math.IsNaN(det.Confidence) {
			return nil, nil, newFieldError(op, ErrMalformedInput, fmt.Sprintf("detection %d has no box or confidence", i))
		}
		if det.Confidence <= cfg.Threshold {
			continue
		}

		text := strings.TrimSpace(det.Text)
		if utf8.RuneCountInString(text) <= maxCategoryLength {
			if cat, ok := matchCategory(text, cfg.Check); ok {
				hits = append(hits, categoryHit{box: det.Box, text: text, category: cat})
			}
			continue
		}
		if countASCIILetters(text) < maxDateLetters {
			rawDates = append(rawDates, Candidate{Box: det.Box, Text: text})
		}
	}

	return validateCategories(hits), ValidateDates(rawDates), nil
}

func matchCategory(text string, check []string) (string, bool) {
	for _, cat := range check {
		if cat != excludedCategory && strings.Contains(text, cat) {
			return cat, true
		}
	}
	return "", false
}

func countASCIILetters(s string) int {
	n := 0
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			n++
		}
	}
	return n
}

// validateCategories keeps the category hits whose text is the label itself or
// one of two known misreadings: a table rule read as a leading I, i or 1
// ("IDE" for "DE"), or a trailing icon glued onto the label ("B§" for "B").
func validateCategories(hits []categoryHit) []Candidate {
	var out []Candidate
	for _, h := range hits {
		runes := []rune(h.text)
		switch {
		case strings.TrimSpace(h.text) == h.category:
			out = append(out, Candidate{Box: h.box, Text: h.text})
		case len(runes) == 3 && string(runes[1:]) == h.category && strings.ContainsRune("Ii1", runes[0]):
			out = append(out, Candidate{Box: h.box, Text: string(runes[1:])})
		case len(runes) >= 2 && string(runes[:2]) == h.category:
			out = append(out, Candidate{Box: h.box, Text: string(runes[:2])})
		}
	}
	return out
}

// ValidateDates drops texts with separators that never appear in a clean date
// and normalizes eight-digit strings to DD.MM.YYYY. Anything else passes
// through unchanged.
func ValidateDates(raw []Candidate) []Candidate {
	var out []Candidate
	for _, c := range raw {
		if hasRejectedSeparator(c.Text) {
			continue
		}
		out = append(out, Candidate{Box: c.Box, Text: NormalizeDate(c.Text)})
	}
	return out
}

func hasRejectedSeparator(s string) bool {
	for _, sep := range []string{"..", "-", "_", "/"} {
		if strings.Contains(s, sep) {
			return true
		}
	}
	return false
}

// NormalizeDate reformats s as DD.MM.YYYY when removing its dots leaves exactly
// eight non-letter characters; otherwise s is returned as is.
func NormalizeDate(s string) string {
	digits := []rune(strings.ReplaceAll(s, ".", ""))
	if len(digits) != 8 {
		return s
	}
	for _, r := range digits {
		if unicode.IsLetter(r) {
			return s
		}
	}
	return string(digits[:2]) + "." + string(digits[2:4]) + "." + string(digits[4:])
}
