package models

// SessionStatus represents the status of an analysis session.
type SessionStatus string

const (
	SessionStatusPending    SessionStatus = "pending"
	SessionStatusProcessing SessionStatus = "processing"
	SessionStatusComplete   SessionStatus = "complete"
	SessionStatusEmpty      SessionStatus = "empty"
	SessionStatusError      SessionStatus = "error"
)

// Finished reports whether the session will not change status on its own.
func (s SessionStatus) Finished() bool {
	return s == SessionStatusComplete || s == SessionStatusEmpty || s == SessionStatusError
}

// AnalysisSession represents one extraction run over an uploaded log.
type AnalysisSession struct {
	ID               string        `json:"id"`
	FileID           string        `json:"fileId,omitempty"`
	Status           SessionStatus `json:"status"`
	Progress         float64       `json:"progress"` // 0-100
	StatusText       string        `json:"statusText,omitempty"`
	RecordCount      int           `json:"recordCount,omitempty"`
	PointCount       int           `json:"pointCount,omitempty"`
	SignalCount      int           `json:"signalCount,omitempty"`
	ProcessingTimeMs int64         `json:"processingTimeMs,omitempty"`
	StartTime        int64         `json:"startTime,omitempty"` // Unix ms
	EndTime          int64         `json:"endTime,omitempty"`   // Unix ms
	Warnings         []string      `json:"warnings,omitempty"`
	Errors           []string      `json:"errors,omitempty"`
}

// NewAnalysisSession creates a new AnalysisSession in pending status.
func NewAnalysisSession(id, fileID string) *AnalysisSession {
	return &AnalysisSession{
		ID:       id,
		FileID:   fileID,
		Status:   SessionStatusPending,
		Progress: 0,
		Errors:   make([]string, 0),
	}
}

// Clone returns a copy that is safe to hand out while the original keeps
// being updated.
func (s *AnalysisSession) Clone() *AnalysisSession {
	c := *s
	c.Warnings = append([]string(nil), s.Warnings...)
	c.Errors = append([]string(nil), s.Errors...)
	return &c
}
