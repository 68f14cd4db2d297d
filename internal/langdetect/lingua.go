package langdetect

import (
	"strings"
	"sync"
	"unicode"

	lingua "github.com/pemistahl/lingua-go"
)

// candidateLanguages covers English, Irish and the languages that show up in
// syndicated content on Irish news sites. A restricted set keeps lingua fast
// and avoids misclassifying short English headlines as exotic languages.
var candidateLanguages = []lingua.Language{
	lingua.English,
	lingua.Irish,
	lingua.French,
	lingua.German,
	lingua.Spanish,
	lingua.Portuguese,
	lingua.Polish,
	lingua.Dutch,
}

var (
	detectorOnce sync.Once
	detector     lingua.LanguageDetector
)

// maxSampleRunes bounds how much text the detector sees. Detection quality
// plateaus well below this size while cost keeps growing.
const maxSampleRunes = 600

// DetectISO6391 returns the lowercase ISO 639-1 code of the detected language,
// or an empty string when the text is too short or detection is inconclusive.
func DetectISO6391(text string) string {
	sample := sampleText(text)
	if sample == "" {
		return ""
	}

	letterCount := 0
	for _, r := range sample {
		if unicode.IsLetter(r) {
			letterCount++
		}
	}
	if letterCount < 6 {
		return ""
	}

	language, exists := getDetector().DetectLanguageOf(sample)
	if !exists {
		return ""
	}

	code := strings.ToLower(language.IsoCode639_1().String())
	if len(code) != 2 {
		return ""
	}
	return code
}

// IsEnglish reports whether the text reads as English. Inconclusive detection
// counts as English so borderline articles are kept rather than dropped.
func IsEnglish(text string) bool {
	code := DetectISO6391(text)
	return code == "" || code == "en"
}

func sampleText(text string) string {
	sample := strings.TrimSpace(text)
	if sample == "" {
		return ""
	}
	runes := []rune(sample)
	if len(runes) > maxSampleRunes {
		sample = string(runes[:maxSampleRunes])
	}
	return sample
}

func getDetector() lingua.LanguageDetector {
	detectorOnce.Do(func() {
		detector = lingua.NewLanguageDetectorBuilder().
			FromLanguages(candidateLanguages...).
			WithPreloadedLanguageModels().
			Build()
	})
	return detector
}
