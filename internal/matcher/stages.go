package matcher

import (
	"strings"
	"unicode/utf8"

	"fjacquet/stmt-import/internal/models"
)

// stageFunc inspects one normalized description. It reports false to let
// the next stage run.
type stageFunc func(m *Matcher, desc string, stripped bool) (models.MatchResult, bool)

// textStages run on the raw normalized description and again on its
// punctuation-stripped form.
var textStages = []stageFunc{
	(*Matcher).matchExact,
	(*Matcher).matchPrefix,
	(*Matcher).matchContains,
}

func (m *Matcher) chain(desc string, stripped bool) (models.MatchResult, bool) {
	for _, stage := range textStages {
		if r, ok := stage(m, desc, stripped); ok {
			return r, true
		}
	}
	return models.MatchResult{}, false
}

// matchAlias returns the first alias contained in desc whose target entity
// exists. Aliases pointing at unknown names are skipped.
func (m *Matcher) matchAlias(desc string) (models.MatchResult, bool) {
	for _, a := range m.aliases {
		if !strings.Contains(desc, a.key) {
			continue
		}
		if e, ok := m.byUpper[normalize(a.target)]; ok {
			return e.result(models.MatchTypeAlias), true
		}
	}
	return models.MatchResult{}, false
}

func (m *Matcher) matchExact(desc string, stripped bool) (models.MatchResult, bool) {
	if !stripped {
		if e, ok := m.byUpper[desc]; ok {
			return e.result(models.MatchTypeExact), true
		}
		return models.MatchResult{}, false
	}
	for _, e := range m.stripped {
		if e.stripped == desc {
			return e.result(models.MatchTypeExact), true
		}
	}
	return models.MatchResult{}, false
}

// matchPrefix relies on entries being sorted longest first.
func (m *Matcher) matchPrefix(desc string, stripped bool) (models.MatchResult, bool) {
	for _, e := range m.ordered(stripped) {
		name := e.key(stripped)
		if name != "" && strings.HasPrefix(desc, name) {
			return e.result(models.MatchTypePrefix), true
		}
	}
	return models.MatchResult{}, false
}

func (m *Matcher) matchContains(desc string, stripped bool) (models.MatchResult, bool) {
	for _, e := range m.ordered(stripped) {
		name := e.key(stripped)
		if utf8.RuneCountInString(name) < MinContainsLength {
			continue
		}
		if strings.Contains(desc, name) {
			return e.result(models.MatchTypeContains), true
		}
	}
	return models.MatchResult{}, false
}

func (m *Matcher) ordered(stripped bool) []entry {
	if stripped {
		return m.stripped
	}
	return m.entries
}

func (e entry) key(stripped bool) string {
	if stripped {
		return e.stripped
	}
	return e.upper
}

// quoteReplacer removes apostrophes, backticks and typographic quotes.
var quoteReplacer = strings.NewReplacer(
	"'", "",
	"’", "",
	"‘", "",
	"`", "",
	"\"", "",
	"“", "",
	"”", "",
	"´", "",
)

func stripQuotes(s string) string {
	return strings.TrimSpace(quoteReplacer.Replace(s))
}
