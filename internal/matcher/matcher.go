// Package matcher resolves free-text statement descriptions to known
// entities through a five-stage cascade: alias, exact, prefix, contains and a
// punctuation-stripped retry of the last three. Matching is pure and
// case-insensitive; the first stage that produces a result wins.
package matcher

import (
	"sort"
	"strings"
	"unicode/utf8"

	"fjacquet/stmt-import/internal/models"
)

// MinContainsLength is the shortest entity name (in characters) that may
// match by substring.
const MinContainsLength = 4

// entry is an entity prepared for case-insensitive comparison.
type entry struct {
	name     string
	id       string
	upper    string
	stripped string
}

type aliasEntry struct {
	key    string
	target string
}

// Matcher holds an entity lookup and alias table indexed for repeated
// matching. A Matcher is immutable after construction and safe for
// concurrent use.
type Matcher struct {
	entries  []entry // longest upper name first
	stripped []entry // longest stripped name first
	byUpper  map[string]entry
	aliases  []aliasEntry
}

// New indexes entities and aliases. Entities with a blank name and aliases
// with an empty key are ignored.
func New(entities models.EntityLookup, aliases models.AliasTable) *Matcher {
	m := &Matcher{
		entries: make([]entry, 0, len(entities)),
		byUpper: make(map[string]entry, len(entities)),
		aliases: make([]aliasEntry, 0, len(aliases)),
	}

	for name, id := range entities {
		upper := normalize(name)
		if upper == "" {
			continue
		}
		m.entries = append(m.entries, entry{
			name:     name,
			id:       id,
			upper:    upper,
			stripped: stripQuotes(upper),
		})
	}
	// Longest first so the prefix and contains stages can stop at the first
	// hit; ties resolve lexicographically for deterministic results.
	sortByLength(m.entries, func(e entry) string { return e.upper })
	m.stripped = append([]entry(nil), m.entries...)
	sortByLength(m.stripped, func(e entry) string { return e.stripped })
	for _, e := range m.entries {
		if _, ok := m.byUpper[e.upper]; !ok {
			m.byUpper[e.upper] = e
		}
	}

	for key, target := range aliases {
		upper := strings.ToUpper(key)
		if strings.TrimSpace(upper) == "" {
			continue
		}
		m.aliases = append(m.aliases, aliasEntry{key: upper, target: target})
	}
	sort.Slice(m.aliases, func(i, j int) bool {
		a, b := m.aliases[i], m.aliases[j]
		la, lb := utf8.RuneCountInString(a.key), utf8.RuneCountInString(b.key)
		if la != lb {
			return la > lb
		}
		if a.key != b.key {
			return a.key < b.key
		}
		return a.target < b.target
	})

	return m
}

// Match resolves description against the indexed entities. The boolean is
// false when no stage matched.
func (m *Matcher) Match(description string) (models.MatchResult, bool) {
	desc := normalize(description)
	if desc == "" || len(m.entries) == 0 {
		return models.MatchResult{}, false
	}

	if r, ok := m.matchAlias(desc); ok {
		return r, true
	}
	if r, ok := m.chain(desc, false); ok {
		return r, true
	}

	stripped := stripQuotes(desc)
	if stripped == "" {
		return models.MatchResult{}, false
	}
	return m.chain(stripped, true)
}

// Match is a convenience wrapper for one-off matching. Callers that match
// many descriptions against the same lookup should build a Matcher once.
func Match(description string, entities models.EntityLookup, aliases models.AliasTable) (models.MatchResult, bool) {
	return New(entities, aliases).Match(description)
}

func sortByLength(entries []entry, key func(entry) string) {
	sort.Slice(entries, func(i, j int) bool {
		a, b := key(entries[i]), key(entries[j])
		la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
		if la != lb {
			return la > lb
		}
		if a != b {
			return a < b
		}
		return entries[i].name < entries[j].name
	})
}

func normalize(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

func (e entry) result(matchType models.MatchType) models.MatchResult {
	return models.MatchResult{EntityName: e.name, EntityID: e.id, MatchType: matchType}
}
