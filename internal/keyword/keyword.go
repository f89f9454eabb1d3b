// Package keyword normalizes free text into index tokens.
package keyword

import (
	"strings"
	"unicode"
)

// DefaultMinLength is the shortest token kept by Tokenize.
const DefaultMinLength = 2

// stopwords are dropped during tokenization. Covers English function words
// plus the Japanese particles that dominate casual chat.
var stopwords = map[string]bool{}

func init() {
	for _, w := range []string{
		// Japanese particles and copulas
		"の", "は", "が", "を", "に", "で", "と", "も", "や", "から",
		"まで", "より", "など", "って", "という", "です", "ます",
		"だ", "な", "ね", "よ", "か", "い", "う", "え", "お",
		// English function words
		"the", "a", "an", "is", "are", "was", "were", "be", "been",
		"being", "have", "has", "had", "do", "does", "did", "will",
		"would", "could", "should", "may", "might", "must", "shall",
		"can", "need", "dare", "ought", "used", "to", "of", "in",
		"for", "on", "with", "at", "by", "from", "as", "into",
		"through", "during", "before", "after", "above", "below",
		"between", "under", "again", "further", "then", "once",
		"here", "there", "when", "where", "why", "how", "all",
		"each", "few", "more", "most", "other", "some", "such",
		"no", "nor", "not", "only", "own", "same", "so", "than",
		"too", "very", "just", "and", "but", "if", "or", "because",
		"until", "while", "this", "that", "these", "those", "it",
		"you", "what",
	} {
		stopwords[w] = true
	}
}

// Tokenize splits text into normalized keyword tokens: case-folded, split
// on anything that is not a letter or digit, stopwords and tokens shorter
// than minLength dropped, duplicates collapsed keeping first occurrence.
// It is a pure function with no hidden state.
func Tokenize(text string, minLength int) []string {
	if minLength <= 0 {
		minLength = DefaultMinLength
	}

	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	seen := make(map[string]bool, len(fields))
	var tokens []string
	for _, f := range fields {
		if len([]rune(f)) < minLength || stopwords[f] || seen[f] {
			continue
		}
		seen[f] = true
		tokens = append(tokens, f)
	}
	return tokens
}

// Topics returns up to max tokens from text, for seeding profile topics.
func Topics(text string, max int) []string {
	tokens := Tokenize(text, DefaultMinLength)
	if max > 0 && len(tokens) > max {
		tokens = tokens[:max]
	}
	return tokens
}
