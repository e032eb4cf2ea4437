// Package models contains domain types for the LogVision pipeline.
package models

// Pattern is a user-defined extraction rule. The first capture group of
// Pattern yields the value for the signal called Name.
type Pattern struct {
	ID          string `json:"id" yaml:"id,omitempty"`
	Name        string `json:"name" yaml:"name"`
	Pattern     string `json:"pattern" yaml:"pattern"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// Key returns the identity of the pattern within a set: its ID, or its name
// when no ID has been assigned yet.
func (p Pattern) Key() string {
	if p.ID != "" {
		return p.ID
	}
	return p.Name
}
