// handlers_files.go - Log file upload handlers
package api

import (
	"net/http"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/logvision/backend/internal/storage"
)

// FileHandlerImpl implements the FileHandler interface
type FileHandlerImpl struct {
	store         storage.Store
	uploads       UploadJobs
	allowedExts   []string
	allowDeletion bool
}

// NewFileHandler creates a new file handler. An empty allowedExts accepts
// any file name. Without uploads, background assembly is refused.
func NewFileHandler(store storage.Store, uploads UploadJobs, allowedExts []string, allowDeletion bool) FileHandler {
	return &FileHandlerImpl{
		store:         store,
		uploads:       uploads,
		allowedExts:   allowedExts,
		allowDeletion: allowDeletion,
	}
}

func (h *FileHandlerImpl) checkName(name string) error {
	if strings.TrimSpace(name) == "" {
		return NewValidationError("name")
	}
	if len(h.allowedExts) == 0 {
		return nil
	}
	if !slices.Contains(h.allowedExts, strings.ToLower(filepath.Ext(name))) {
		return NewBadRequestError("file type not allowed: "+name, nil)
	}
	return nil
}

// HandleUploadFile accepts a multipart upload in the "file" field
func (h *FileHandlerImpl) HandleUploadFile(c echo.Context) error {
	file, err := c.FormFile("file")
	if err != nil {
		return NewBadRequestError("no file provided", err)
	}
	if err := h.checkName(file.Filename); err != nil {
		return err
	}

	src, err := file.Open()
	if err != nil {
		return NewInternalError("failed to open uploaded file", err)
	}
	defer src.Close()

	info, err := h.store.Save(file.Filename, src)
	if err != nil {
		return NewInternalError("failed to save file", err)
	}
	return c.JSON(http.StatusCreated, info)
}

// HandleUploadChunk accepts one chunk of a chunked upload as multipart
// form fields uploadId, chunkIndex and file.
func (h *FileHandlerImpl) HandleUploadChunk(c echo.Context) error {
	uploadID := c.FormValue("uploadId")
	if !storage.ValidUploadID(uploadID) {
		return NewValidationError("uploadId")
	}
	index, err := strconv.Atoi(c.FormValue("chunkIndex"))
	if err != nil || index < 0 {
		return NewValidationError("chunkIndex")
	}

	file, err := c.FormFile("file")
	if err != nil {
		return NewBadRequestError("no chunk provided", err)
	}
	src, err := file.Open()
	if err != nil {
		return NewInternalError("failed to open chunk", err)
	}
	defer src.Close()

	if err := h.store.SaveChunk(uploadID, index, src); err != nil {
		return NewInternalError("failed to save chunk", err)
	}
	return c.NoContent(http.StatusAccepted)
}

type completeUploadRequest struct {
	UploadID    string `json:"uploadId"`
	Name        string `json:"name"`
	TotalChunks int    `json:"totalChunks"`
	Async       bool   `json:"async"`
}

// HandleCompleteUpload assembles the chunks of an upload into one file.
// Async requests are assembled in the background and answered with the job.
func (h *FileHandlerImpl) HandleCompleteUpload(c echo.Context) error {
	var req completeUploadRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid request body", err)
	}
	if !storage.ValidUploadID(req.UploadID) {
		return NewValidationError("uploadId")
	}
	if req.TotalChunks <= 0 {
		return NewValidationError("totalChunks")
	}
	if err := h.checkName(req.Name); err != nil {
		return err
	}

	if req.Async {
		if h.uploads == nil {
			return NewBadRequestError("background assembly is not available", nil)
		}
		return c.JSON(http.StatusAccepted, h.uploads.StartJob(req.UploadID, req.Name, req.TotalChunks))
	}

	info, err := h.store.CompleteChunkedUpload(req.UploadID, req.Name, req.TotalChunks)
	if err != nil {
		return NewBadRequestError("failed to assemble upload", err)
	}
	return c.JSON(http.StatusCreated, info)
}

// HandleUploadJob returns the state of a background upload job
func (h *FileHandlerImpl) HandleUploadJob(c echo.Context) error {
	id := c.Param("jobId")
	if h.uploads == nil {
		return NewNotFoundError("upload job", id)
	}
	job, ok := h.uploads.GetJob(id)
	if !ok {
		return NewNotFoundError("upload job", id)
	}
	return c.JSON(http.StatusOK, job)
}

// HandleListFiles returns the most recent uploads
func (h *FileHandlerImpl) HandleListFiles(c echo.Context) error {
	limit := 20
	if s := c.QueryParam("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return NewValidationError("limit")
		}
		limit = n
	}

	files, err := h.store.List(limit)
	if err != nil {
		return NewInternalError("failed to list files", err)
	}
	return respond(c, http.StatusOK, files)
}

// HandleGetFile returns a file's metadata
func (h *FileHandlerImpl) HandleGetFile(c echo.Context) error {
	id := c.Param("id")
	info, err := h.store.Get(id)
	if err != nil {
		return NewNotFoundError("file", id)
	}
	return respond(c, http.StatusOK, info)
}

// HandleDeleteFile removes an upload
func (h *FileHandlerImpl) HandleDeleteFile(c echo.Context) error {
	if !h.allowDeletion {
		return NewForbiddenError("file deletion is disabled")
	}
	id := c.Param("id")
	if err := h.store.Delete(id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

type renameFileRequest struct {
	Name string `json:"name"`
}

// HandleRenameFile changes a file's display name
func (h *FileHandlerImpl) HandleRenameFile(c echo.Context) error {
	var req renameFileRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid request body", err)
	}
	if strings.TrimSpace(req.Name) == "" {
		return NewValidationError("name")
	}

	info, err := h.store.Rename(c.Param("id"), req.Name)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, info)
}
