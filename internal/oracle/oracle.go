// Package oracle provides the categorization fallback used when neither a
// correction rule nor the entity matcher resolves a description. Backends
// ask a language model (Gemini or Claude) to pick a known entity; wrappers
// add caching, a per-call timeout and rate limiting.
package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"fjacquet/stmt-import/internal/logging"
	"fjacquet/stmt-import/internal/models"
)

// Proposal is an oracle's suggested entity for a description.
type Proposal struct {
	EntityName string  `json:"entityName"`
	EntityID   string  `json:"entityId,omitempty"`
	Confidence float64 `json:"confidence"`
}

// Oracle proposes an entity for a description. A nil proposal with a nil
// error means the oracle has no opinion. Implementations must be safe for
// concurrent use.
type Oracle interface {
	Categorize(ctx context.Context, description string) (*Proposal, error)
}

// Generator sends a prompt to a language model and returns its text reply.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)

	// Name identifies the backend in logs and errors.
	Name() string
}

// EntitySource lists the known entities offered to the model.
type EntitySource interface {
	ListEntities(ctx context.Context) (models.EntityLookup, error)
}

// LLMOracle asks a Generator to choose one of the known entities.
type LLMOracle struct {
	gen      Generator
	entities EntitySource
	logger   logging.Logger
}

// NewLLMOracle creates an oracle backed by gen.
func NewLLMOracle(gen Generator, entities EntitySource, logger logging.Logger) *LLMOracle {
	if logger == nil {
		logger = logging.NewDiscardLogger()
	}
	return &LLMOracle{gen: gen, entities: entities, logger: logger}
}

// Categorize implements Oracle.
func (o *LLMOracle) Categorize(ctx context.Context, description string) (*Proposal, error) {
	if strings.TrimSpace(description) == "" {
		return nil, nil
	}

	lookup, err := o.entities.ListEntities(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list entities: %w", err)
	}
	if len(lookup) == 0 {
		return nil, nil
	}

	reply, err := o.gen.Generate(ctx, BuildPrompt(description, lookup))
	if err != nil {
		return nil, err
	}

	proposal, err := ParseProposal(reply)
	if err != nil {
		return nil, err
	}
	if proposal == nil {
		o.logger.Debug("Oracle has no opinion",
			logging.F(logging.FieldProvider, o.gen.Name()),
			logging.F(logging.FieldDescription, description))
		return nil, nil
	}

	name, id, ok := resolve(lookup, proposal.EntityName)
	if !ok {
		o.logger.Debug("Oracle proposed an unknown entity",
			logging.F(logging.FieldProvider, o.gen.Name()),
			logging.F(logging.FieldEntity, proposal.EntityName))
		return nil, nil
	}
	proposal.EntityName = name
	proposal.EntityID = id

	o.logger.Debug("Oracle proposed entity",
		logging.F(logging.FieldProvider, o.gen.Name()),
		logging.F(logging.FieldDescription, description),
		logging.F(logging.FieldEntity, name))
	return proposal, nil
}

// BuildPrompt renders the categorization prompt. Entity names are listed in
// sorted order so identical inputs produce identical prompts.
func BuildPrompt(description string, lookup models.EntityLookup) string {
	names := make([]string, 0, len(lookup))
	for name := range lookup {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("You match bank statement descriptions to merchants.\n")
	fmt.Fprintf(&b, "Description: %s\n\n", description)
	b.WriteString("Known merchants:\n")
	for _, name := range names {
		fmt.Fprintf(&b, "- %s\n", name)
	}
	b.WriteString("\nReply with JSON only, in the form ")
	b.WriteString(`{"entity": "<merchant name from the list or empty>", "confidence": <0.0-1.0>}`)
	b.WriteString(".\nUse an empty entity when no merchant fits.\n")
	return b.String()
}

type reply struct {
	Entity     string  `json:"entity"`
	Confidence float64 `json:"confidence"`
}

// ParseProposal extracts the JSON object from a model reply. Replies may wrap
// the object in prose or code fences. An empty entity yields nil.
func ParseProposal(text string) (*Proposal, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end < start {
		return nil, fmt.Errorf("no JSON object in oracle reply: %q", text)
	}

	var r reply
	if err := json.Unmarshal([]byte(text[start:end+1]), &r); err != nil {
		return nil, fmt.Errorf("failed to parse oracle reply: %w", err)
	}

	name := strings.TrimSpace(r.Entity)
	if name == "" || strings.EqualFold(name, "none") {
		return nil, nil
	}
	confidence := r.Confidence
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}
	return &Proposal{EntityName: name, Confidence: confidence}, nil
}

// resolve finds name in lookup, falling back to a case-insensitive match.
func resolve(lookup models.EntityLookup, name string) (string, string, bool) {
	if id, ok := lookup[name]; ok {
		return name, id, true
	}
	var matches []string
	for candidate := range lookup {
		if strings.EqualFold(strings.TrimSpace(candidate), name) {
			matches = append(matches, candidate)
		}
	}
	if len(matches) == 0 {
		return "", "", false
	}
	sort.Strings(matches)
	return matches[0], lookup[matches[0]], true
}
