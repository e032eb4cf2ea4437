package models

// Stage names a phase of a pipeline run.
type Stage string

const (
	StageExtracting Stage = "extracting"
	StageFormatting Stage = "formatting"
	StageComplete   Stage = "complete"
)

// Progress is one progress event of a pipeline run.
type Progress struct {
	Stage   Stage   `json:"stage"`
	Status  string  `json:"status"`
	Percent float64 `json:"percent"` // 0-100
}
