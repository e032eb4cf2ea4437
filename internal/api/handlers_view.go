// handlers_view.go - Interactive view handlers
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/logvision/backend/internal/models"
	"github.com/logvision/backend/internal/segment"
	"github.com/logvision/backend/internal/view"
)

// ViewHandlerImpl implements the ViewHandler interface. Every mutating
// call answers with the new snapshot.
type ViewHandlerImpl struct {
	sessionMgr SessionManager
}

// NewViewHandler creates a new view handler
func NewViewHandler(sessionMgr SessionManager) ViewHandler {
	return &ViewHandlerImpl{sessionMgr: sessionMgr}
}

func (h *ViewHandlerImpl) controller(c echo.Context) (*view.Controller, error) {
	id := c.Param("sessionId")
	ctl, ok := h.sessionMgr.View(id)
	if !ok {
		return nil, NewNotFoundError("session", id)
	}
	h.sessionMgr.TouchSession(id)
	return ctl, nil
}

// apply runs fn on the session's controller and responds with the snapshot.
func (h *ViewHandlerImpl) apply(c echo.Context, fn func(*view.Controller) error) error {
	ctl, err := h.controller(c)
	if err != nil {
		return err
	}
	if err := fn(ctl); err != nil {
		return err
	}
	return respond(c, http.StatusOK, ctl.Snapshot())
}

// timeRangeRequest carries Unix milliseconds.
type timeRangeRequest struct {
	Start *int64 `json:"start"`
	End   *int64 `json:"end"`
}

func (r timeRangeRequest) validate() (models.TimeRange, error) {
	if r.Start == nil {
		return models.TimeRange{}, NewValidationError("start")
	}
	if r.End == nil {
		return models.TimeRange{}, NewValidationError("end")
	}
	tr := models.TimeRange{Start: msToTime(*r.Start), End: msToTime(*r.End)}
	if tr.End.Before(tr.Start) {
		return models.TimeRange{}, NewBadRequestError("end before start", nil)
	}
	return tr, nil
}

func bindRange(c echo.Context) (models.TimeRange, error) {
	var req timeRangeRequest
	if err := c.Bind(&req); err != nil {
		return models.TimeRange{}, NewBadRequestError("invalid request body", err)
	}
	return req.validate()
}

// HandleGetView returns the current snapshot
func (h *ViewHandlerImpl) HandleGetView(c echo.Context) error {
	return h.apply(c, func(*view.Controller) error { return nil })
}

// HandleZoom zooms to [start, end]
func (h *ViewHandlerImpl) HandleZoom(c echo.Context) error {
	tr, err := bindRange(c)
	if err != nil {
		return err
	}
	return h.apply(c, func(ctl *view.Controller) error { return ctl.Zoom(tr.Start, tr.End) })
}

// HandleResetZoom shows the whole active segment
func (h *ViewHandlerImpl) HandleResetZoom(c echo.Context) error {
	return h.apply(c, (*view.Controller).ResetZoom)
}

type brushRequest struct {
	StartIndex int `json:"startIndex"`
	EndIndex   int `json:"endIndex"`
}

// HandleBrush zooms to a span of displayed point indices
func (h *ViewHandlerImpl) HandleBrush(c echo.Context) error {
	var req brushRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid request body", err)
	}
	return h.apply(c, func(ctl *view.Controller) error { return ctl.Brush(req.StartIndex, req.EndIndex) })
}

// HandleSetRange restricts the working set to [start, end]
func (h *ViewHandlerImpl) HandleSetRange(c echo.Context) error {
	tr, err := bindRange(c)
	if err != nil {
		return err
	}
	return h.apply(c, func(ctl *view.Controller) error { return ctl.SetTimeRange(tr.Start, tr.End) })
}

// HandleClearRange restores the full series
func (h *ViewHandlerImpl) HandleClearRange(c echo.Context) error {
	return h.apply(c, (*view.Controller).ClearTimeRange)
}

// HandleNextSegment moves to the next segment, wrapping
func (h *ViewHandlerImpl) HandleNextSegment(c echo.Context) error {
	return h.apply(c, (*view.Controller).NextSegment)
}

// HandlePrevSegment moves to the previous segment, wrapping
func (h *ViewHandlerImpl) HandlePrevSegment(c echo.Context) error {
	return h.apply(c, (*view.Controller).PrevSegment)
}

// HandleSelectSegment activates a segment by ID
func (h *ViewHandlerImpl) HandleSelectSegment(c echo.Context) error {
	id := c.Param("segmentId")
	return h.apply(c, func(ctl *view.Controller) error { return ctl.SelectSegment(id) })
}

// HandleSetSegmentation re-segments with new options
func (h *ViewHandlerImpl) HandleSetSegmentation(c echo.Context) error {
	var opts segment.Options
	if err := c.Bind(&opts); err != nil {
		return NewBadRequestError("invalid request body", err)
	}
	if err := opts.Validate(); err != nil {
		return NewBadRequestError("invalid segmentation", err)
	}
	return h.apply(c, func(ctl *view.Controller) error { return ctl.SetSegmentation(opts) })
}

type chartTypeRequest struct {
	ChartType models.ChartType `json:"chartType"`
}

// HandleSetChartType switches between line and bar
func (h *ViewHandlerImpl) HandleSetChartType(c echo.Context) error {
	var req chartTypeRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid request body", err)
	}
	if !req.ChartType.Valid() {
		return NewValidationError("chartType")
	}
	return h.apply(c, func(ctl *view.Controller) error { return ctl.SetChartType(req.ChartType) })
}

type maxPointsRequest struct {
	MaxDisplayPoints int `json:"maxDisplayPoints"`
}

// HandleSetMaxDisplayPoints changes the sampling budget
func (h *ViewHandlerImpl) HandleSetMaxDisplayPoints(c echo.Context) error {
	var req maxPointsRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid request body", err)
	}
	if req.MaxDisplayPoints <= 0 {
		return NewValidationError("maxDisplayPoints")
	}
	return h.apply(c, func(ctl *view.Controller) error { return ctl.SetMaxDisplayPoints(req.MaxDisplayPoints) })
}

// HandleAddPanel appends an empty panel
func (h *ViewHandlerImpl) HandleAddPanel(c echo.Context) error {
	ctl, err := h.controller(c)
	if err != nil {
		return err
	}
	if _, err := ctl.AddPanel(); err != nil {
		return err
	}
	return respond(c, http.StatusCreated, ctl.Snapshot())
}

// HandleRemovePanel deletes a panel; the last one is refused
func (h *ViewHandlerImpl) HandleRemovePanel(c echo.Context) error {
	panelID := c.Param("panelId")
	return h.apply(c, func(ctl *view.Controller) error { return ctl.RemovePanel(panelID) })
}

type panelSignalRequest struct {
	SignalID string `json:"signalId"`
}

// HandleAddSignalToPanel shows a signal on a panel
func (h *ViewHandlerImpl) HandleAddSignalToPanel(c echo.Context) error {
	var req panelSignalRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid request body", err)
	}
	if req.SignalID == "" {
		return NewValidationError("signalId")
	}
	panelID := c.Param("panelId")
	return h.apply(c, func(ctl *view.Controller) error { return ctl.AddSignalToPanel(panelID, req.SignalID) })
}

// HandleRemoveSignalFromPanel takes a signal off a panel
func (h *ViewHandlerImpl) HandleRemoveSignalFromPanel(c echo.Context) error {
	panelID, signalID := c.Param("panelId"), c.Param("signalId")
	return h.apply(c, func(ctl *view.Controller) error { return ctl.RemoveSignalFromPanel(panelID, signalID) })
}

// HandleToggleSignal flips a signal's visibility
func (h *ViewHandlerImpl) HandleToggleSignal(c echo.Context) error {
	signalID := c.Param("signalId")
	return h.apply(c, func(ctl *view.Controller) error {
		_, err := ctl.ToggleSignalVisibility(signalID)
		return err
	})
}
