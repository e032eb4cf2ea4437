package models

import "time"

// File statuses.
const (
	FileUploaded  = "uploaded"
	FileAnalyzing = "analyzing"
	FileAnalyzed  = "analyzed"
	FileError     = "error"
)

// FileInfo describes an uploaded log file.
type FileInfo struct {
	ID         string    `json:"id" msgpack:"id"`
	Name       string    `json:"name" msgpack:"name"`
	Size       int64     `json:"size" msgpack:"size"`
	UploadedAt time.Time `json:"uploadedAt" msgpack:"uploadedAt"`
	Status     string    `json:"status" msgpack:"status"`
}
