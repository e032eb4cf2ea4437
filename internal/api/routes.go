// routes.go - Route registration helpers
package api

import (
	"github.com/labstack/echo/v4"
	"github.com/logvision/backend/internal/pattern"
	"github.com/logvision/backend/internal/storage"
)

// Dependencies holds all handler dependencies
type Dependencies struct {
	Store             storage.Store
	Patterns          pattern.Store
	SessionMgr        SessionManager
	Uploads           UploadJobs
	AllowedExtensions []string
	AllowFileDeletion bool
	Version           string
}

// Handlers holds all handler instances
type Handlers struct {
	Health   HealthHandler
	Files    FileHandler
	Patterns PatternHandler
	Sessions SessionHandler
	View     ViewHandler
	Socket   ProgressSocketHandler
}

// NewHandlers creates all handler instances
func NewHandlers(deps *Dependencies) *Handlers {
	return &Handlers{
		Health:   NewHealthHandler(deps.Version, deps.SessionMgr),
		Files:    NewFileHandler(deps.Store, deps.Uploads, deps.AllowedExtensions, deps.AllowFileDeletion),
		Patterns: NewPatternHandler(deps.Patterns),
		Sessions: NewSessionHandler(deps.Store, deps.Patterns, deps.SessionMgr),
		View:     NewViewHandler(deps.SessionMgr),
		Socket:   NewProgressSocketHandler(deps.SessionMgr),
	}
}

// RegisterRoutes registers all API routes with the Echo instance
func RegisterRoutes(e *echo.Echo, handlers *Handlers) {
	api := e.Group("/api")
	api.GET("/health", handlers.Health.HandleHealth)

	files := api.Group("/files")
	files.POST("", handlers.Files.HandleUploadFile)
	files.POST("/chunk", handlers.Files.HandleUploadChunk)
	files.POST("/complete", handlers.Files.HandleCompleteUpload)
	files.GET("/uploads/:jobId", handlers.Files.HandleUploadJob)
	files.GET("", handlers.Files.HandleListFiles)
	files.GET("/:id", handlers.Files.HandleGetFile)
	files.DELETE("/:id", handlers.Files.HandleDeleteFile)
	files.PUT("/:id", handlers.Files.HandleRenameFile)

	patterns := api.Group("/patterns")
	patterns.GET("", handlers.Patterns.HandleGetPatterns)
	patterns.PUT("", handlers.Patterns.HandlePutPatterns)
	patterns.POST("/validate", handlers.Patterns.HandleValidatePatterns)
	patterns.GET("/export", handlers.Patterns.HandleExportPatterns)
	patterns.POST("/import", handlers.Patterns.HandleImportPatterns)
	patterns.GET("/changes", handlers.Patterns.HandlePatternChanges)

	sessions := api.Group("/sessions")
	sessions.POST("", handlers.Sessions.HandleStartSession)
	sessions.GET("", handlers.Sessions.HandleListSessions)
	sessions.GET("/:sessionId", handlers.Sessions.HandleGetSession)
	sessions.DELETE("/:sessionId", handlers.Sessions.HandleDeleteSession)
	sessions.POST("/:sessionId/keepalive", handlers.Sessions.HandleSessionKeepAlive)
	sessions.GET("/:sessionId/progress", handlers.Sessions.HandleProgressStream)
	sessions.GET("/:sessionId/ws", handlers.Socket.HandleProgressSocket)
	sessions.GET("/:sessionId/points", handlers.Sessions.HandleGetPoints)
	sessions.GET("/:sessionId/interns", handlers.Sessions.HandleGetInterns)

	sessions.GET("/:sessionId/view", handlers.View.HandleGetView)
	sessions.POST("/:sessionId/zoom", handlers.View.HandleZoom)
	sessions.DELETE("/:sessionId/zoom", handlers.View.HandleResetZoom)
	sessions.POST("/:sessionId/brush", handlers.View.HandleBrush)
	sessions.POST("/:sessionId/range", handlers.View.HandleSetRange)
	sessions.DELETE("/:sessionId/range", handlers.View.HandleClearRange)
	sessions.POST("/:sessionId/segments/next", handlers.View.HandleNextSegment)
	sessions.POST("/:sessionId/segments/prev", handlers.View.HandlePrevSegment)
	sessions.PUT("/:sessionId/segments/:segmentId", handlers.View.HandleSelectSegment)
	sessions.PUT("/:sessionId/segmentation", handlers.View.HandleSetSegmentation)
	sessions.PUT("/:sessionId/chart-type", handlers.View.HandleSetChartType)
	sessions.PUT("/:sessionId/max-points", handlers.View.HandleSetMaxDisplayPoints)
	sessions.POST("/:sessionId/panels", handlers.View.HandleAddPanel)
	sessions.DELETE("/:sessionId/panels/:panelId", handlers.View.HandleRemovePanel)
	sessions.POST("/:sessionId/panels/:panelId/signals", handlers.View.HandleAddSignalToPanel)
	sessions.DELETE("/:sessionId/panels/:panelId/signals/:signalId", handlers.View.HandleRemoveSignalFromPanel)
	sessions.POST("/:sessionId/signals/:signalId/toggle", handlers.View.HandleToggleSignal)
}

// SetupMiddleware configures the error handler
func SetupMiddleware(e *echo.Echo) {
	e.HTTPErrorHandler = ErrorHandler
}
