// Package langdetect tags chat messages with the language they are written
// in.
package langdetect

import (
	"strings"
	"sync"

	"github.com/pemistahl/lingua-go"
)

// Languages are the candidates the detector chooses between: English plus
// the major languages of India that lingua models.
var Languages = []lingua.Language{
	lingua.English,
	lingua.Hindi,
	lingua.Marathi,
	lingua.Punjabi,
	lingua.Bengali,
	lingua.Gujarati,
	lingua.Tamil,
	lingua.Telugu,
	lingua.Urdu,
}

// Detector identifies the language of short texts. The underlying models
// are loaded on first use. Safe for concurrent use.
type Detector struct {
	once     sync.Once
	detector lingua.LanguageDetector
}

// New creates a Detector.
func New() *Detector {
	return &Detector{}
}

// Detect returns the ISO 639-1 code of text's language, or "" when it
// cannot be determined.
func (d *Detector) Detect(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	d.once.Do(func() {
		d.detector = lingua.NewLanguageDetectorBuilder().
			FromLanguages(Languages...).
			WithMinimumRelativeDistance(0.1).
			Build()
	})

	lang, ok := d.detector.DetectLanguageOf(text)
	if !ok {
		return ""
	}
	return strings.ToLower(lang.IsoCode639_1().String())
}
