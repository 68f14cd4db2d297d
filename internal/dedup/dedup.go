// Package dedup implements the lexical near-duplicate gate that runs before
// any model call. Titles are normalized, stripped of high-frequency filler
// words and compared with a weighted blend of word-set and character n-gram
// Jaccard similarity.
package dedup

import (
	"strings"
	"unicode"
)

const (
	// DefaultThreshold is the combined similarity at or above which two
	// titles count as the same story.
	DefaultThreshold = 0.6

	// earlyExitScore stops the scan outright. A match this strong will not
	// be beaten in any way that changes the outcome.
	earlyExitScore = 0.85

	wordWeight  = 0.7
	ngramWeight = 0.3
	ngramSize   = 4
)

// fillerWords are words so common in Irish political headlines that they
// carry no signal about which story a title describes. Office titles such as
// "Taoiseach" stay out of the list on purpose; they identify the subject.
var fillerWords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "and": {}, "or": {}, "but": {},
	"of": {}, "to": {}, "in": {}, "on": {}, "at": {}, "by": {}, "for": {},
	"with": {}, "from": {}, "as": {}, "into": {}, "over": {}, "after": {},
	"amid": {}, "about": {}, "during": {}, "up": {}, "out": {}, "off": {},
	"is": {}, "are": {}, "was": {}, "were": {}, "be": {}, "been": {},
	"has": {}, "have": {}, "had": {}, "will": {}, "would": {}, "could": {},
	"not": {}, "no": {}, "its": {}, "his": {}, "her": {}, "their": {},
	"this": {}, "that": {}, "these": {}, "those": {},
	"says": {}, "said": {}, "say": {}, "new": {}, "more": {},
	"td": {}, "tds": {}, "dail": {}, "dáil": {}, "seanad": {}, "oireachtas": {},
	"government": {}, "govt": {}, "minister": {}, "ministers": {},
	"ireland": {}, "irish": {},
	"breaking": {}, "live": {}, "latest": {}, "watch": {}, "exclusive": {},
	"revealed": {}, "today": {}, "tonight": {}, "update": {}, "updates": {},
}

// Entry is one stored or incoming title a candidate is compared against.
type Entry struct {
	ID     string
	Source string
	Title  string
}

// Match reports the entry a candidate duplicated and the combined score.
type Match struct {
	Entry Entry
	Score float64
}

// BatchDuplicate records an intra-batch drop for run reporting.
type BatchDuplicate struct {
	Entry       Entry
	DuplicateOf Entry
	Score       float64
}

// NormalizeTitle lowercases, unifies typographic quotes, collapses
// possessives and replaces remaining punctuation with spaces.
func NormalizeTitle(title string) string {
	lowered := strings.ToLower(strings.TrimSpace(title))
	if lowered == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(lowered))
	lastSpace := false
	for _, r := range lowered {
		switch r {
		case '‘', '’', 'ʼ', '\'':
			// Apostrophes vanish entirely so "Taoiseach's" and
			// "Taoiseachs" normalize identically.
			continue
		case '“', '”', '"':
			continue
		}
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			b.WriteRune(r)
			lastSpace = false
			continue
		}
		if !lastSpace {
			b.WriteRune(' ')
			lastSpace = true
		}
	}
	return strings.TrimSpace(b.String())
}

// Similarity combines word-set Jaccard over significant words with
// four-gram Jaccard over the normalized strings. Result is in [0,1].
func Similarity(a, b string) float64 {
	return similarityOf(newSignature(a), newSignature(b))
}

// FindDuplicate scans recent entries in order and reports the best match at
// or above threshold. Scanning stops at the first match reaching the
// early-exit score.
func FindDuplicate(title string, recent []Entry, threshold float64) (Match, bool) {
	sig := newSignature(title)
	if sig.empty() {
		return Match{}, false
	}

	best := Match{}
	found := false
	for _, entry := range recent {
		score := similarityOf(sig, newSignature(entry.Title))
		if score < threshold {
			continue
		}
		if score >= earlyExitScore {
			return Match{Entry: entry, Score: score}, true
		}
		if !found || score > best.Score {
			best = Match{Entry: entry, Score: score}
			found = true
		}
	}
	return best, found
}

// FilterBatch drops later entries that duplicate an earlier kept entry from a
// different source. Same-source pairs are never compared; those collapse on
// URL or content hash instead. Input order is preserved.
func FilterBatch(batch []Entry, threshold float64) ([]Entry, []BatchDuplicate) {
	kept := make([]Entry, 0, len(batch))
	keptSigs := make([]signature, 0, len(batch))
	var dropped []BatchDuplicate

	for _, entry := range batch {
		sig := newSignature(entry.Title)
		duplicate := false
		for i, prior := range kept {
			if prior.Source == entry.Source {
				continue
			}
			score := similarityOf(sig, keptSigs[i])
			if score >= threshold {
				dropped = append(dropped, BatchDuplicate{Entry: entry, DuplicateOf: prior, Score: score})
				duplicate = true
				break
			}
		}
		if duplicate {
			continue
		}
		kept = append(kept, entry)
		keptSigs = append(keptSigs, sig)
	}
	return kept, dropped
}

type signature struct {
	words map[string]struct{}
	grams map[string]struct{}
}

func (s signature) empty() bool {
	return len(s.words) == 0 && len(s.grams) == 0
}

func newSignature(title string) signature {
	normalized := NormalizeTitle(title)
	if normalized == "" {
		return signature{}
	}
	return signature{
		words: significantWords(normalized),
		grams: fourGramSet(normalized),
	}
}

func similarityOf(a, b signature) float64 {
	return wordWeight*jaccard(a.words, b.words) + ngramWeight*jaccard(a.grams, b.grams)
}

func significantWords(normalized string) map[string]struct{} {
	fields := strings.Fields(normalized)
	set := make(map[string]struct{}, len(fields))
	for _, field := range fields {
		if _, skip := fillerWords[field]; skip {
			continue
		}
		set[field] = struct{}{}
	}
	return set
}

func fourGramSet(normalized string) map[string]struct{} {
	runes := []rune(normalized)
	if len(runes) == 0 {
		return nil
	}
	if len(runes) < ngramSize {
		return map[string]struct{}{string(runes): {}}
	}
	set := make(map[string]struct{}, len(runes)-ngramSize+1)
	for i := 0; i <= len(runes)-ngramSize; i++ {
		set[string(runes[i:i+ngramSize])] = struct{}{}
	}
	return set
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	intersection := 0
	for token := range a {
		if _, ok := b[token]; ok {
			intersection++
		}
	}
	if intersection == 0 {
		return 0
	}

	union := len(a) + len(b) - intersection
	if union <= 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}
