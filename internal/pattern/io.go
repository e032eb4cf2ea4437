package pattern

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/logvision/backend/internal/models"
	"gopkg.in/yaml.v3"
)

// Format is a pattern interchange format.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat maps a user-supplied name or file extension to a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(s, ".")) {
	case "", "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unsupported pattern format: %s", s)
	}
}

// exported is the interchange shape. IDs are not exported.
type exported struct {
	Name        string `json:"name" yaml:"name"`
	Pattern     string `json:"pattern" yaml:"pattern"`
	Description string `json:"description" yaml:"description"`
}

// Export serializes patterns without their IDs.
func Export(patterns []models.Pattern, format Format) ([]byte, error) {
	out := make([]exported, len(patterns))
	for i, p := range patterns {
		out[i] = exported{Name: p.Name, Pattern: p.Pattern, Description: p.Description}
	}

	switch format {
	case FormatJSON:
		return json.MarshalIndent(out, "", "  ")
	case FormatYAML:
		return yaml.Marshal(out)
	default:
		return nil, fmt.Errorf("unsupported pattern format: %s", format)
	}
}

// Import parses an exported pattern list. Every item must carry a unique
// name and a pattern that compiles. Each imported pattern gets a fresh ID.
func Import(data []byte, format Format) ([]models.Pattern, error) {
	var raw []map[string]interface{}
	switch format {
	case FormatJSON:
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("invalid import format: expected an array: %w", err)
		}
	case FormatYAML:
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("invalid import format: expected a list: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported pattern format: %s", format)
	}

	patterns := make([]models.Pattern, 0, len(raw))
	for i, item := range raw {
		name, ok := item["name"].(string)
		if !ok || strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("item %d: missing or invalid name", i)
		}
		expr, ok := item["pattern"].(string)
		if !ok || expr == "" {
			return nil, fmt.Errorf("item %d (%s): missing or invalid pattern", i, name)
		}
		desc, _ := item["description"].(string)

		p := models.Pattern{ID: NewID(), Name: name, Pattern: expr, Description: desc}
		if _, err := Compile(p); err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		patterns = append(patterns, p)
	}
	if err := ValidateSet(patterns); err != nil {
		return nil, err
	}
	return patterns, nil
}
