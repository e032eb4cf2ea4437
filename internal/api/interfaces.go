// interfaces.go - Handler interface definitions for clean separation of concerns
package api

import (
	"context"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/logvision/backend/internal/models"
	"github.com/logvision/backend/internal/upload"
	"github.com/logvision/backend/internal/view"
)

// FileHandler handles log file uploads
type FileHandler interface {
	HandleUploadFile(c echo.Context) error
	HandleUploadChunk(c echo.Context) error
	HandleCompleteUpload(c echo.Context) error
	HandleUploadJob(c echo.Context) error
	HandleListFiles(c echo.Context) error
	HandleGetFile(c echo.Context) error
	HandleDeleteFile(c echo.Context) error
	HandleRenameFile(c echo.Context) error
}

// UploadJobs assembles chunked uploads in the background
type UploadJobs interface {
	StartJob(uploadID, fileName string, totalChunks int) *upload.Job
	GetJob(id string) (*upload.Job, bool)
}

// PatternHandler handles the active pattern set
type PatternHandler interface {
	HandleGetPatterns(c echo.Context) error
	HandlePutPatterns(c echo.Context) error
	HandleValidatePatterns(c echo.Context) error
	HandleExportPatterns(c echo.Context) error
	HandleImportPatterns(c echo.Context) error
	HandlePatternChanges(c echo.Context) error
}

// SessionHandler handles analysis sessions
type SessionHandler interface {
	HandleStartSession(c echo.Context) error
	HandleListSessions(c echo.Context) error
	HandleGetSession(c echo.Context) error
	HandleDeleteSession(c echo.Context) error
	HandleSessionKeepAlive(c echo.Context) error
	HandleProgressStream(c echo.Context) error
	HandleGetPoints(c echo.Context) error
	HandleGetInterns(c echo.Context) error
}

// ViewHandler handles the interactive view of a session
type ViewHandler interface {
	HandleGetView(c echo.Context) error
	HandleZoom(c echo.Context) error
	HandleResetZoom(c echo.Context) error
	HandleBrush(c echo.Context) error
	HandleSetRange(c echo.Context) error
	HandleClearRange(c echo.Context) error
	HandleNextSegment(c echo.Context) error
	HandlePrevSegment(c echo.Context) error
	HandleSelectSegment(c echo.Context) error
	HandleSetSegmentation(c echo.Context) error
	HandleSetChartType(c echo.Context) error
	HandleSetMaxDisplayPoints(c echo.Context) error
	HandleAddPanel(c echo.Context) error
	HandleRemovePanel(c echo.Context) error
	HandleAddSignalToPanel(c echo.Context) error
	HandleRemoveSignalFromPanel(c echo.Context) error
	HandleToggleSignal(c echo.Context) error
}

// HealthHandler handles health check operations
type HealthHandler interface {
	HandleHealth(c echo.Context) error
}

// ProgressSocketHandler pushes session progress over WebSocket
type ProgressSocketHandler interface {
	HandleProgressSocket(c echo.Context) error
}

// SessionManager defines the interface for session management
// This allows mocking in tests
type SessionManager interface {
	StartSession(fileID, text string, patterns []models.Pattern) (*models.AnalysisSession, error)
	GetSession(id string) (*models.AnalysisSession, bool)
	ListSessions() []*models.AnalysisSession
	TouchSession(id string) bool
	DeleteSession(id string) bool
	View(id string) (*view.Controller, bool)
	Interns(id string) (map[string]map[string]int, error)
	QueryPoints(ctx context.Context, id string, start, end time.Time) ([]models.FlatPoint, error)
}
