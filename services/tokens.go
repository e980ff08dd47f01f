package services

import (
	"strings"
	"unicode"
)

// stopwords are dropped before texts are compared word by word.
var stopwords = map[string]bool{
	"a": true, "about": true, "all": true, "also": true, "an": true, "and": true,
	"any": true, "are": true, "as": true, "at": true, "be": true, "been": true,
	"but": true, "by": true, "can": true, "could": true, "did": true, "do": true,
	"does": true, "for": true, "from": true, "had": true, "has": true, "have": true,
	"how": true, "if": true, "in": true, "into": true, "is": true, "it": true,
	"its": true, "may": true, "more": true, "most": true, "must": true, "no": true,
	"not": true, "of": true, "on": true, "or": true, "other": true, "our": true,
	"should": true, "so": true, "some": true, "such": true, "than": true, "that": true,
	"the": true, "their": true, "them": true, "then": true, "there": true, "these": true,
	"they": true, "this": true, "those": true, "to": true, "under": true, "use": true,
	"used": true, "using": true, "was": true, "we": true, "were": true, "what": true,
	"when": true, "where": true, "which": true, "while": true, "who": true, "why": true,
	"will": true, "with": true, "would": true, "you": true, "your": true,
}

// tokenize lowercases text and splits it on anything that is not a letter or
// a digit.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// contentWords returns the tokens of text that carry meaning: numbers, and
// words of at least three letters that are not stopwords.
func contentWords(text string) []string {
	var out []string
	for _, tok := range tokenize(text) {
		if isNumber(tok) || (len([]rune(tok)) >= 3 && !stopwords[tok]) {
			out = append(out, tok)
		}
	}
	return out
}

func isNumber(tok string) bool {
	for _, r := range tok {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return tok != ""
}
