// handlers_sessions.go - Analysis session handlers
package api

import (
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/logvision/backend/internal/models"
	"github.com/logvision/backend/internal/pattern"
	"github.com/logvision/backend/internal/storage"
	"github.com/rs/zerolog/log"
)

// progressInterval is how often progress streams poll the session.
const progressInterval = 100 * time.Millisecond

// progressTimeout ends a progress stream that never finishes.
const progressTimeout = 5 * time.Minute

// SessionHandlerImpl implements the SessionHandler interface
type SessionHandlerImpl struct {
	store      storage.Store
	patterns   pattern.Store
	sessionMgr SessionManager
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(store storage.Store, patterns pattern.Store, sessionMgr SessionManager) SessionHandler {
	return &SessionHandlerImpl{
		store:      store,
		patterns:   patterns,
		sessionMgr: sessionMgr,
	}
}

type startSessionRequest struct {
	FileID   string           `json:"fileId"`
	Text     string           `json:"text"`
	Patterns []models.Pattern `json:"patterns"`
}

// HandleStartSession starts analysing an uploaded file or pasted text.
// Without patterns the stored set is used. Only set-level problems are
// refused; a pattern that does not compile is skipped by the run and
// listed in the session warnings.
func (h *SessionHandlerImpl) HandleStartSession(c echo.Context) error {
	var req startSessionRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid request body", err)
	}
	if (req.FileID == "") == (req.Text == "") {
		return NewValidationError("fileId or text")
	}

	text := req.Text
	if req.FileID != "" {
		var err error
		text, err = h.store.ReadText(req.FileID)
		if err != nil {
			return NewNotFoundError("file", req.FileID)
		}
	}

	patterns := req.Patterns
	if len(patterns) == 0 {
		patterns = pattern.LoadOrDefault(c.Request().Context(), h.patterns)
	}
	patterns = pattern.EnsureIDs(patterns)
	if err := pattern.CheckSet(patterns); err != nil {
		return NewInvalidPatternError(err)
	}

	sess, err := h.sessionMgr.StartSession(req.FileID, text, patterns)
	if err != nil {
		return NewInternalError("failed to start session", err)
	}
	if req.FileID != "" {
		h.syncFileStatus(sess)
	}
	return c.JSON(http.StatusAccepted, sess)
}

// syncFileStatus mirrors a session's status onto its file.
func (h *SessionHandlerImpl) syncFileStatus(sess *models.AnalysisSession) {
	if sess.FileID == "" {
		return
	}
	status := models.FileAnalyzing
	switch sess.Status {
	case models.SessionStatusComplete, models.SessionStatusEmpty:
		status = models.FileAnalyzed
	case models.SessionStatusError:
		status = models.FileError
	}
	if err := h.store.SetStatus(sess.FileID, status); err != nil {
		log.Debug().Err(err).Str("file", sess.FileID).Msg("updating file status failed")
	}
}

// HandleListSessions returns all live sessions
func (h *SessionHandlerImpl) HandleListSessions(c echo.Context) error {
	return c.JSON(http.StatusOK, h.sessionMgr.ListSessions())
}

// HandleGetSession returns the current status of a session
func (h *SessionHandlerImpl) HandleGetSession(c echo.Context) error {
	id := c.Param("sessionId")
	sess, ok := h.sessionMgr.GetSession(id)
	if !ok {
		return NewNotFoundError("session", id)
	}

	// Touch session to prevent cleanup while being viewed
	h.sessionMgr.TouchSession(id)
	if sess.Status.Finished() {
		h.syncFileStatus(sess)
	}
	return c.JSON(http.StatusOK, sess)
}

// HandleDeleteSession cancels and removes a session
func (h *SessionHandlerImpl) HandleDeleteSession(c echo.Context) error {
	id := c.Param("sessionId")
	if !h.sessionMgr.DeleteSession(id) {
		return NewNotFoundError("session", id)
	}
	return c.NoContent(http.StatusNoContent)
}

// HandleSessionKeepAlive extends session lifetime for active viewing
func (h *SessionHandlerImpl) HandleSessionKeepAlive(c echo.Context) error {
	id := c.Param("sessionId")
	if !h.sessionMgr.TouchSession(id) {
		return NewNotFoundError("session", id)
	}
	return c.NoContent(http.StatusNoContent)
}

// HandleProgressStream streams session progress via SSE until it finishes
func (h *SessionHandlerImpl) HandleProgressStream(c echo.Context) error {
	id := c.Param("sessionId")

	c.Response().Header().Set(echo.HeaderContentType, "text/event-stream")
	c.Response().Header().Set("Cache-Control", "no-cache")
	c.Response().Header().Set("Connection", "keep-alive")
	c.Response().Header().Set("X-Accel-Buffering", "no")
	c.Response().WriteHeader(http.StatusOK)

	sess, ok := h.sessionMgr.GetSession(id)
	if !ok {
		sendSSEError(c, "session not found")
		return nil
	}
	sendSSEData(c, sess)
	if sess.Status.Finished() {
		return nil
	}

	ticker := time.NewTicker(progressInterval)
	defer ticker.Stop()

	timeout := time.NewTimer(progressTimeout)
	defer timeout.Stop()

	for {
		select {
		case <-ticker.C:
			sess, ok := h.sessionMgr.GetSession(id)
			if !ok {
				sendSSEError(c, "session not found")
				return nil
			}
			sendSSEData(c, sess)
			if sess.Status.Finished() {
				return nil
			}

		case <-timeout.C:
			sendSSEError(c, "stream timeout")
			return nil

		case <-c.Request().Context().Done():
			return nil
		}
	}
}

// HandleGetPoints returns full-resolution points with start <= t <= end.
// start and end are Unix milliseconds and default to the whole series.
func (h *SessionHandlerImpl) HandleGetPoints(c echo.Context) error {
	id := c.Param("sessionId")

	start, end := time.UnixMilli(math.MinInt64/2).UTC(), time.UnixMilli(math.MaxInt64/2).UTC()
	if s := c.QueryParam("start"); s != "" {
		t, err := parseTimestamp(s)
		if err != nil {
			return NewValidationError("start")
		}
		start = t
	}
	if s := c.QueryParam("end"); s != "" {
		t, err := parseTimestamp(s)
		if err != nil {
			return NewValidationError("end")
		}
		end = t
	}
	if end.Before(start) {
		return NewBadRequestError("end before start", nil)
	}

	points, err := h.sessionMgr.QueryPoints(c.Request().Context(), id, start, end)
	if err != nil {
		return err
	}
	h.sessionMgr.TouchSession(id)
	return respond(c, http.StatusOK, map[string]interface{}{
		"points": points,
		"total":  len(points),
	})
}

// HandleGetInterns returns the per-signal string to index mapping
func (h *SessionHandlerImpl) HandleGetInterns(c echo.Context) error {
	interns, err := h.sessionMgr.Interns(c.Param("sessionId"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, interns)
}

func sendSSEData(c echo.Context, data interface{}) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		log.Warn().Err(err).Msg("encoding SSE payload failed")
		return
	}
	fmt.Fprintf(c.Response(), "data: %s\n\n", jsonData)
	c.Response().Flush()
}

func sendSSEError(c echo.Context, message string) {
	sendSSEData(c, map[string]string{"error": message})
}
