package pattern

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/logvision/backend/internal/models"
)

// ValidationError reports a pattern that cannot take part in a set.
type ValidationError struct {
	Key    string
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("pattern %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("pattern %q %s: %s", e.Key, e.Field, e.Reason)
}

// Validate checks a single pattern: name and expression must be present,
// the name must not collide with the flat point keys and the expression
// must compile.
func Validate(p models.Pattern) error {
	if err := checkFields(p); err != nil {
		return err
	}
	if _, err := Compile(p); err != nil {
		return err
	}
	return nil
}

func checkFields(p models.Pattern) error {
	if strings.TrimSpace(p.Name) == "" {
		return &ValidationError{Key: p.ID, Field: "name", Reason: "must not be empty"}
	}
	if p.Name == models.TimestampKey || strings.HasSuffix(p.Name, models.OriginalSuffix) {
		return &ValidationError{Key: p.Key(), Field: "name", Reason: "is reserved"}
	}
	if p.Pattern == "" {
		return &ValidationError{Key: p.Key(), Field: "pattern", Reason: "must not be empty"}
	}
	return nil
}

// ValidateSet validates every pattern and the set as a whole. Keys and names
// must be unique since the name is the signal key in every record.
func ValidateSet(patterns []models.Pattern) error {
	return validateSet(patterns, Validate)
}

// CheckSet is ValidateSet without compiling the expressions. A set that
// passes it can run; patterns that fail to compile are isolated by
// CompileSet.
func CheckSet(patterns []models.Pattern) error {
	return validateSet(patterns, checkFields)
}

func validateSet(patterns []models.Pattern, validate func(models.Pattern) error) error {
	var errs []error
	keys := make(map[string]struct{}, len(patterns))
	names := make(map[string]struct{}, len(patterns))

	for _, p := range patterns {
		if err := validate(p); err != nil {
			errs = append(errs, err)
			continue
		}
		if _, dup := keys[p.Key()]; dup {
			errs = append(errs, &ValidationError{Key: p.Key(), Field: "id", Reason: "duplicate"})
		}
		keys[p.Key()] = struct{}{}
		if _, dup := names[p.Name]; dup {
			errs = append(errs, &ValidationError{Key: p.Key(), Field: "name", Reason: "duplicate"})
		}
		names[p.Name] = struct{}{}
	}
	return errors.Join(errs...)
}

// CompileSet compiles every pattern. A pattern that fails to compile, has
// an unusable name, or repeats the name of an earlier pattern is left out
// of the returned matchers and reported in errs; the rest still run.
func CompileSet(patterns []models.Pattern) ([]*Matcher, []error) {
	matchers := make([]*Matcher, 0, len(patterns))
	names := make(map[string]struct{}, len(patterns))
	var errs []error
	for _, p := range patterns {
		if err := checkFields(p); err != nil {
			errs = append(errs, err)
			continue
		}
		if _, dup := names[p.Name]; dup {
			errs = append(errs, &ValidationError{Key: p.Key(), Field: "name", Reason: "duplicate"})
			continue
		}
		m, err := Compile(p)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		names[p.Name] = struct{}{}
		matchers = append(matchers, m)
	}
	return matchers, errs
}
// NewID returns a fresh pattern identifier.
func NewID() string {
	return uuid.NewString()
}

// EnsureIDs returns a copy of patterns with a fresh ID on every pattern
// that has none.
func EnsureIDs(patterns []models.Pattern) []models.Pattern {
	out := make([]models.Pattern, len(patterns))
	for i, p := range patterns {
		if p.ID == "" {
			p.ID = NewID()
		}
		out[i] = p
	}
	return out
}

// Defaults returns the built-in pattern set.
func Defaults() []models.Pattern {
	return []models.Pattern{
		{
			ID:          "default-cpu",
			Name:        "CPU Usage",
			Pattern:     `CPU_USAGE cpu=(\d+)%`,
			Description: "Extracts CPU usage percentage",
		},
		{
			ID:          "default-memory",
			Name:        "Memory Usage",
			Pattern:     `MEMORY_USAGE memory=(\d+)MB`,
			Description: "Extracts memory usage in MB",
		},
		{
			ID:          "default-http",
			Name:        "HTTP Status",
			Pattern:     `HTTP_REQUEST .* status=(\d+) .*`,
			Description: "Extracts HTTP status codes",
		},
		{
			ID:          "default-response-time",
			Name:        "Response Time",
			Pattern:     `HTTP_REQUEST .* time=(\d+)ms`,
			Description: "Extracts HTTP response time",
		},
	}
}
