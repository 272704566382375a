// Package transformer turns raw bank-statement rows into canonical
// RawTransaction values. Every transformer is pure and stateless.
package transformer

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"fjacquet/stmt-import/internal/models"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// RawBankRow is one statement row keyed by its source column names.
type RawBankRow map[string]string

// Transformer maps a raw row of one bank format to a canonical transaction.
type Transformer interface {
	// Format returns the registry name of the bank format.
	Format() string

	// Transform maps row to a RawTransaction or returns an
	// *parsererror.InvalidRowError.
	Transform(row RawBankRow) (models.RawTransaction, error)
}

// Registry holds transformers by format name.
type Registry struct {
	transformers map[string]Transformer
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{transformers: make(map[string]Transformer)}
}

// Register adds a transformer. Panics on duplicate format.
func (r *Registry) Register(t Transformer) {
	key := strings.ToLower(t.Format())
	if _, ok := r.transformers[key]; ok {
		panic("duplicate transformer format: " + key)
	}
	r.transformers[key] = t
}

// Get returns the transformer for format.
func (r *Registry) Get(format string) (Transformer, error) {
	t, ok := r.transformers[strings.ToLower(format)]
	if !ok {
		return nil, fmt.Errorf("unknown statement format: %s", format)
	}
	return t, nil
}

// Formats lists the registered format names in sorted order.
func (r *Registry) Formats() []string {
	names := make([]string, 0, len(r.transformers))
	for name := range r.transformers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry returns a registry with all built-in transformers.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(NewAmexTransformer(""))
	r.Register(NewCamtTransformer(""))
	return r
}

// New returns a transformer for format that tags rows with account. An
// empty account keeps the format's default.
func New(format, account string) (Transformer, error) {
	switch strings.ToLower(format) {
	case amexFormat:
		return NewAmexTransformer(account), nil
	case camtFormat:
		return NewCamtTransformer(account), nil
	}
	return nil, fmt.Errorf("unknown statement format: %s", format)
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// CleanDescription collapses whitespace runs to a single space and trims.
func CleanDescription(s string) string {
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(s, " "))
}

// onlineMarkers are matched as case-insensitive substrings of the description.
var onlineMarkers = []string{
	"PAYPAL",
	"STRIPE",
	"AMAZON",
	"AMZN",
	"NETFLIX",
	"SPOTIFY",
	"WWW.",
	".COM",
	".COM.AU",
	".CO.UK",
	".NET",
	".IO",
}

// IsOnline reports whether the description names an online merchant.
func IsOnline(description string) bool {
	upper := strings.ToUpper(description)
	for _, marker := range onlineMarkers {
		if strings.Contains(upper, marker) {
			return true
		}
	}
	return false
}

// NormalizeLocation keeps the first line of a city field and title-cases it.
// A blank first line yields "".
func NormalizeLocation(city string) string {
	line := city
	if i := strings.IndexAny(line, "\r\n"); i >= 0 {
		line = line[:i]
	}
	line = CleanDescription(line)
	if line == "" {
		return ""
	}
	// Casers keep state, so one is built per call.
	return cases.Title(language.English).String(line)
}

// SerializeRow renders row deterministically (JSON object, keys sorted).
func SerializeRow(row RawBankRow) string {
	data, err := json.Marshal(map[string]string(row))
	if err != nil {
		// map[string]string always marshals
		panic(err)
	}
	return string(data)
}

// Checksum returns the hex SHA-256 digest of a serialized raw row.
func Checksum(rawRow string) string {
	sum := sha256.Sum256([]byte(rawRow))
	return hex.EncodeToString(sum[:])
}
