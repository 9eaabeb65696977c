// Package language decides which presentation language governs narration and
// speech synthesis for a loaded document. Classification is purely lexical:
// a sample is matched against a closed-class Dutch word list, and a document
// level verdict is a strict-majority vote over several narration samples.
package language

import "strings"

// Language is the closed set of presentation languages. The zero value is
// Unset so that a freshly loaded document has no language until the resolver
// fires.
type Language uint8

const (
	// Unset indicates that no language has been resolved yet for the
	// current document.
	Unset Language = iota

	// Dutch is the classifier's target language.
	Dutch

	// English is the fallback language. Ties and empty sample sets
	// resolve to English.
	English
)

// String returns the human-readable name of the language.
func (l Language) String() string {
	switch l {
	case Dutch:
		return "dutch"
	case English:
		return "english"
	default:
		return "unset"
	}
}

// BCP47 returns the BCP 47 tag used when requesting speech synthesis.
func (l Language) BCP47() string {
	switch l {
	case Dutch:
		return "nl-NL"
	case English:
		return "en-US"
	default:
		return ""
	}
}

const (
	// minAbsoluteMatches is the absolute floor of closed-class word hits
	// a sample needs before it can classify as Dutch.
	minAbsoluteMatches = 3

	// minMatchRatio is the relative floor: at least this fraction of the
	// sample's tokens must be closed-class Dutch words.
	minMatchRatio = 0.20
)

// dutchFunctionWords is the closed-class word list used by the classifier.
// Function words are near-impossible to avoid in natural Dutch prose, which
// makes them a cheap and reliable signal for short narration samples.
var dutchFunctionWords = map[string]struct{}{
	"de": {}, "het": {}, "een": {}, "en": {}, "van": {}, "is": {},
	"dat": {}, "die": {}, "in": {}, "te": {}, "niet": {}, "met": {},
	"voor": {}, "zijn": {}, "aan": {}, "op": {}, "ook": {}, "als": {},
	"maar": {}, "dan": {}, "naar": {}, "bij": {}, "nog": {}, "wat": {},
	"deze": {}, "dit": {}, "over": {}, "we": {}, "je": {}, "ze": {},
	"hij": {}, "wij": {}, "jullie": {}, "hun": {}, "onze": {}, "geen": {},
	"worden": {}, "wordt": {}, "heeft": {}, "hebben": {}, "kunnen": {},
	"kan": {}, "moet": {}, "zal": {}, "zullen": {}, "er": {}, "om": {},
	"door": {}, "uit": {}, "tot": {},
}

// ClassifySample reports whether the given text sample reads as Dutch. The
// sample is tokenized on whitespace, trailing punctuation is stripped from
// each token, and tokens are matched against the closed-class word list. The
// sample classifies as Dutch only when the match count clears both the
// absolute floor and the relative floor. Empty and whitespace-only samples
// never classify as Dutch.
func ClassifySample(text string) bool {
	tokens := strings.Fields(text)
	if len(tokens) == 0 {
		return false
	}

	matches := 0
	for _, tok := range tokens {
		word := strings.ToLower(strings.TrimRight(
			tok, ".,!?;:\"')]}",
		))
		if _, ok := dutchFunctionWords[word]; ok {
			matches++
		}
	}

	if matches < minAbsoluteMatches {
		return false
	}

	return float64(matches) >= minMatchRatio*float64(len(tokens))
}

// Resolve aggregates several narration samples into a single presentation
// language. Every non-empty sample is classified independently; Dutch wins
// only with a strict majority of Dutch-classified samples. Ties resolve to
// English, as does an empty sample set.
//
// NOTE: the tie-break falls out of the strict > comparison rather than a
// deliberate preference. Callers must not rely on ties meaning anything
// beyond "not clearly Dutch".
func Resolve(samples []string) Language {
	if len(samples) == 0 {
		return English
	}

	dutch, other := 0, 0
	for _, sample := range samples {
		if strings.TrimSpace(sample) == "" {
			continue
		}
		if ClassifySample(sample) {
			dutch++
		} else {
			other++
		}
	}

	if dutch > other {
		return Dutch
	}

	return English
}
