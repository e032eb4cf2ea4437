// handlers_patterns.go - Pattern set handlers
package api

import (
	"fmt"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/logvision/backend/internal/models"
	"github.com/logvision/backend/internal/pattern"
)

// PatternHandlerImpl implements the PatternHandler interface
type PatternHandlerImpl struct {
	store pattern.Store
}

// NewPatternHandler creates a new pattern handler
func NewPatternHandler(store pattern.Store) PatternHandler {
	return &PatternHandlerImpl{store: store}
}

// HandleGetPatterns returns the active pattern set
func (h *PatternHandlerImpl) HandleGetPatterns(c echo.Context) error {
	patterns, err := h.store.Load(c.Request().Context())
	if err != nil {
		return NewInternalError("failed to load patterns", err)
	}
	return c.JSON(http.StatusOK, patterns)
}

// HandlePutPatterns replaces the active pattern set
func (h *PatternHandlerImpl) HandlePutPatterns(c echo.Context) error {
	var patterns []models.Pattern
	if err := c.Bind(&patterns); err != nil {
		return NewBadRequestError("invalid request body", err)
	}

	patterns = pattern.EnsureIDs(patterns)
	if err := pattern.ValidateSet(patterns); err != nil {
		return NewInvalidPatternError(err)
	}
	if err := h.store.Save(c.Request().Context(), patterns); err != nil {
		return NewInternalError("failed to save patterns", err)
	}
	return c.JSON(http.StatusOK, patterns)
}

// patternCheck is the validation outcome of one pattern.
type patternCheck struct {
	Key   string `json:"key"`
	Name  string `json:"name"`
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

type validateResponse struct {
	Valid    bool           `json:"valid"`
	Patterns []patternCheck `json:"patterns"`
	SetError string         `json:"setError,omitempty"`
}

// HandleValidatePatterns checks patterns without saving them
func (h *PatternHandlerImpl) HandleValidatePatterns(c echo.Context) error {
	var patterns []models.Pattern
	if err := c.Bind(&patterns); err != nil {
		return NewBadRequestError("invalid request body", err)
	}

	resp := validateResponse{Valid: true, Patterns: make([]patternCheck, len(patterns))}
	for i, p := range patterns {
		check := patternCheck{Key: p.Key(), Name: p.Name, Valid: true}
		if err := pattern.Validate(p); err != nil {
			check.Valid = false
			check.Error = err.Error()
		}
		resp.Patterns[i] = check
	}
	if err := pattern.ValidateSet(patterns); err != nil {
		resp.Valid = false
		resp.SetError = err.Error()
	}
	return c.JSON(http.StatusOK, resp)
}

// HandleExportPatterns downloads the active set as JSON or YAML
func (h *PatternHandlerImpl) HandleExportPatterns(c echo.Context) error {
	format, err := pattern.ParseFormat(c.QueryParam("format"))
	if err != nil {
		return NewBadRequestError("unsupported format", err)
	}

	patterns, err := h.store.Load(c.Request().Context())
	if err != nil {
		return NewInternalError("failed to load patterns", err)
	}
	data, err := pattern.Export(patterns, format)
	if err != nil {
		return NewInternalError("failed to export patterns", err)
	}

	contentType := echo.MIMEApplicationJSON
	if format == pattern.FormatYAML {
		contentType = "application/yaml"
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="patterns.%s"`, format))
	return c.Blob(http.StatusOK, contentType, data)
}

// HandleImportPatterns parses an exported set. With apply=true the set
// replaces the active one.
func (h *PatternHandlerImpl) HandleImportPatterns(c echo.Context) error {
	format, err := pattern.ParseFormat(c.QueryParam("format"))
	if err != nil {
		return NewBadRequestError("unsupported format", err)
	}

	data, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return NewBadRequestError("failed to read body", err)
	}
	patterns, err := pattern.Import(data, format)
	if err != nil {
		return NewInvalidPatternError(err)
	}

	if c.QueryParam("apply") == "true" {
		if err := pattern.ValidateSet(patterns); err != nil {
			return NewInvalidPatternError(err)
		}
		if err := h.store.Save(c.Request().Context(), patterns); err != nil {
			return NewInternalError("failed to save patterns", err)
		}
	}
	return c.JSON(http.StatusOK, patterns)
}

// HandlePatternChanges reports whether a newer shared set is available
func (h *PatternHandlerImpl) HandlePatternChanges(c echo.Context) error {
	changed, err := h.store.HasRemoteChanges(c.Request().Context())
	if err != nil {
		return NewInternalError("failed to check for pattern changes", err)
	}
	return c.JSON(http.StatusOK, map[string]bool{"hasChanges": changed})
}
