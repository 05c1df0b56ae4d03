package ingest

import (
	"strings"
	"sync"

	"github.com/pemistahl/lingua-go"
)

// AutoLanguage asks the extractor to detect the document language.
const AutoLanguage = "auto"

// LanguageNames labels the OCR language codes offered to users.
var LanguageNames = map[string]string{
	"eng": "English",
	"fra": "French",
	"ara": "Arabic",
	"spa": "Spanish",
	"deu": "German",
	"ita": "Italian",
	"por": "Portuguese",
}

var linguaLanguages = map[string]lingua.Language{
	"eng": lingua.English,
	"fra": lingua.French,
	"ara": lingua.Arabic,
	"spa": lingua.Spanish,
	"deu": lingua.German,
	"ita": lingua.Italian,
	"por": lingua.Portuguese,
}

// LanguageDetector guesses the OCR language code of a text sample.
type LanguageDetector interface {
	Detect(text string) (code string, ok bool)
}

// linguaDetector restricts lingua to the configured OCR languages. The
// underlying models are loaded on first use.
type linguaDetector struct {
	languages []lingua.Language
	once      sync.Once
	detector  lingua.LanguageDetector
}

// NewLanguageDetector builds a detector over the given tesseract codes.
// Codes lingua does not know are ignored; nil is returned when fewer than two
// remain.
func NewLanguageDetector(codes []string) LanguageDetector {
	var langs []lingua.Language
	for _, code := range codes {
		if l, ok := linguaLanguages[code]; ok {
			langs = append(langs, l)
		}
	}
	if len(langs) < 2 {
		return nil
	}
	return &linguaDetector{languages: langs}
}

func (d *linguaDetector) Detect(text string) (string, bool) {
	d.once.Do(func() {
		d.detector = lingua.NewLanguageDetectorBuilder().
			FromLanguages(d.languages...).
			Build()
	})
	lang, ok := d.detector.DetectLanguageOf(text)
	if !ok {
		return "", false
	}
	return strings.ToLower(lang.IsoCode639_3().String()), true
}
