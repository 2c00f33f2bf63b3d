package guardrail

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// ForbiddenTermRule fails a narrative that introduces a banned term the
// evidence does not itself contain.
type ForbiddenTermRule struct {
	Category string
	Terms    []string
}

// ForbiddenTermRules expands a category map into one rule per category,
// ordered by category name for deterministic rule ordering.
func ForbiddenTermRules(byCategory map[string][]string) []Rule {
	categories := make([]string, 0, len(byCategory))
	for c := range byCategory {
		categories = append(categories, c)
	}
	sort.Strings(categories)

	rules := make([]Rule, 0, len(categories))
	for _, c := range categories {
		rules = append(rules, ForbiddenTermRule{Category: c, Terms: byCategory[c]})
	}
	return rules
}

func (r ForbiddenTermRule) ID() string {
	return "forbidden_term:" + r.Category
}

func (r ForbiddenTermRule) Check(narrative string, in Input) error {
	folded := Fold(narrative)
	for _, term := range r.Terms {
		t := Fold(term)
		if !containsTerm(folded, t) {
			continue
		}
		if evidenceMentions(in, t) {
			continue
		}
		return fmt.Errorf("term %q not grounded in evidence", term)
	}
	return nil
}

// evidenceMentions reports whether a term appears in the evidence feature
// names. Only terms the evidence itself carries may be narrated.
func evidenceMentions(in Input, foldedTerm string) bool {
	for _, d := range in.Evidence.Drivers {
		if containsTerm(Fold(d.Feature), foldedTerm) {
			return true
		}
	}
	return false
}

var foldCaser = cases.Fold()

// Fold normalizes text for matching: Unicode NFC plus case folding.
func Fold(s string) string {
	return foldCaser.String(norm.NFC.String(s))
}

// containsTerm finds term inside text on word boundaries, so "euro" does
// not match "neurotic". Both arguments must already be folded.
func containsTerm(text, term string) bool {
	if term == "" {
		return false
	}
	for start := 0; ; {
		i := strings.Index(text[start:], term)
		if i < 0 {
			return false
		}
		i += start
		if boundaryBefore(text, i) && boundaryAfter(text, i+len(term)) {
			return true
		}
		start = i + 1
	}
}

func boundaryBefore(text string, i int) bool {
	if i == 0 {
		return true
	}
	runes := []rune(text[:i])
	return !isWordRune(runes[len(runes)-1])
}

func boundaryAfter(text string, i int) bool {
	if i >= len(text) {
		return true
	}
	for _, r := range text[i:] {
		return !isWordRune(r)
	}
	return true
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
