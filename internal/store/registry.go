package store

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"fjacquet/stmt-import/internal/models"

	"gopkg.in/yaml.v3"
)

// EntitySeed describes one entity in a registry file.
type EntitySeed struct {
	Name    string   `yaml:"name"`
	Aliases []string `yaml:"aliases,omitempty"`
}

// Registry is the YAML seed format for entities, aliases and rules:
//
//	entities:
//	  - name: Woolworths
//	    aliases: ["WOW ", "WOOLIES"]
//	rules:
//	  - description_pattern: UBER *EATS
//	    match_type: contains
//	    entity_name: Uber Eats
//	    confidence: 0.9
type Registry struct {
	Entities []EntitySeed            `yaml:"entities,omitempty"`
	Rules    []models.CorrectionRule `yaml:"rules,omitempty"`
}

// FindConfigFile looks for filename in the working directory, ./config and
// $HOME/.stmt-import.
func FindConfigFile(filename string) (string, error) {
	if filepath.IsAbs(filename) {
		if _, err := os.Stat(filename); err != nil {
			return "", err
		}
		return filename, nil
	}

	locations := []string{
		filename,
		filepath.Join("config", filename),
	}
	if home, err := os.UserHomeDir(); err == nil {
		locations = append(locations, filepath.Join(home, ".stmt-import", filename))
	}
	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location, nil
		}
	}
	return "", os.ErrNotExist
}

// LoadRegistryFile reads a registry seed file.
func LoadRegistryFile(filename string) (*Registry, error) {
	path, err := FindConfigFile(filename)
	if err != nil {
		return nil, fmt.Errorf("registry file %s: %w", filename, err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading registry file: %w", err)
	}
	return ParseRegistry(data)
}

// ParseRegistry decodes and checks a registry document.
func ParseRegistry(data []byte) (*Registry, error) {
	var reg Registry
	if err := yaml.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("error parsing registry file: %w", err)
	}

	seen := make(map[string]bool, len(reg.Entities))
	for i, e := range reg.Entities {
		key := strings.ToUpper(strings.TrimSpace(e.Name))
		if key == "" {
			return nil, fmt.Errorf("entity %d has no name", i)
		}
		if seen[key] {
			return nil, fmt.Errorf("entity %q listed twice", e.Name)
		}
		seen[key] = true
	}
	return &reg, nil
}

// WriteRules renders rules as a registry document holding only rules.
func WriteRules(w io.Writer, rules []models.CorrectionRule) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(Registry{Rules: rules}); err != nil {
		return fmt.Errorf("error encoding rules: %w", err)
	}
	return enc.Close()
}
