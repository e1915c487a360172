// Package langdetect implements ports.LanguageDetector with a small
// script-frequency heuristic: it classifies text by which Unicode
// script its letters predominantly belong to, rather than true
// statistical language identification. SPEC_FULL.md names the real
// detector an external collaborator with no required third-party
// implementation; this adapter is a reference stand-in sufficient to
// exercise LanguageNode end to end, not a production classifier.
package langdetect

import (
	"strings"
	"unicode"

	"github.com/nugget/nostrgraph/ports"
)

// minRunes below which detection short-circuits to "und" (§6).
const minRunes = 10

// Undetermined is returned when the language cannot be determined.
const Undetermined = "und"

// Detector is the reference ports.LanguageDetector.
type Detector struct{}

var _ ports.LanguageDetector = Detector{}

// New returns a ready-to-use Detector.
func New() Detector { return Detector{} }

// scriptLang maps a dominant Unicode script to an ISO-639-3 code. This
// is necessarily approximate — e.g. Cyrillic is mapped to Russian even
// though Bulgarian, Serbian, and others share the script.
var scriptLang = map[string]string{
	"Latin":      "eng",
	"Cyrillic":   "rus",
	"Han":        "cmn",
	"Hiragana":   "jpn",
	"Katakana":   "jpn",
	"Hangul":     "kor",
	"Arabic":     "ara",
	"Hebrew":     "heb",
	"Greek":      "ell",
	"Thai":       "tha",
	"Devanagari": "hin",
}

// Detect classifies text by its dominant Unicode script. Text shorter
// than minRunes significant runes, or text with no single dominant
// script, returns Undetermined.
func (Detector) Detect(text string) string {
	text = strings.TrimSpace(text)
	if len([]rune(text)) < minRunes {
		return Undetermined
	}

	counts := make(map[string]int)
	total := 0
	for _, r := range text {
		if !unicode.IsLetter(r) {
			continue
		}
		script := scriptOf(r)
		if script == "" {
			continue
		}
		counts[script]++
		total++
	}
	if total == 0 {
		return Undetermined
	}

	var bestScript string
	var bestCount int
	for script, count := range counts {
		if count > bestCount {
			bestScript, bestCount = script, count
		}
	}
	// Require a clear majority; otherwise the text is too mixed to
	// attribute to one script.
	if float64(bestCount)/float64(total) < 0.6 {
		return Undetermined
	}

	lang, ok := scriptLang[bestScript]
	if !ok {
		return Undetermined
	}
	return lang
}

func scriptOf(r rune) string {
	for _, name := range []string{"Latin", "Cyrillic", "Han", "Hiragana", "Katakana", "Hangul", "Arabic", "Hebrew", "Greek", "Thai", "Devanagari"} {
		if unicode.Is(rangeTableFor(name), r) {
			return name
		}
	}
	return ""
}

func rangeTableFor(name string) *unicode.RangeTable {
	switch name {
	case "Latin":
		return unicode.Latin
	case "Cyrillic":
		return unicode.Cyrillic
	case "Han":
		return unicode.Han
	case "Hiragana":
		return unicode.Hiragana
	case "Katakana":
		return unicode.Katakana
	case "Hangul":
		return unicode.Hangul
	case "Arabic":
		return unicode.Arabic
	case "Hebrew":
		return unicode.Hebrew
	case "Greek":
		return unicode.Greek
	case "Thai":
		return unicode.Thai
	case "Devanagari":
		return unicode.Devanagari
	default:
		return nil
	}
}
