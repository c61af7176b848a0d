package domain

import "strings"

// ClassificationStatus is the closed-set outcome of vision analysis of a
// property's outdoor space.
type ClassificationStatus string

const (
	StatusDeveloped          ClassificationStatus = "developed"
	StatusPartiallyDeveloped ClassificationStatus = "partially_developed"
	StatusUndeveloped        ClassificationStatus = "undeveloped"
	StatusUncertain          ClassificationStatus = "uncertain"
)

// ParseClassificationStatus maps free-form model output onto the closed set.
// Anything unrecognized collapses to uncertain.
func ParseClassificationStatus(s string) ClassificationStatus {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "developed":
		return StatusDeveloped
	case "partially_developed", "partially developed", "partial":
		return StatusPartiallyDeveloped
	case "undeveloped", "vacant":
		return StatusUndeveloped
	default:
		return StatusUncertain
	}
}

// SolarPresent projects the status onto the legacy tri-state boolean used by
// the /generate-lead response: nil means the model could not tell.
func (s ClassificationStatus) SolarPresent() *bool {
	switch s {
	case StatusDeveloped:
		v := true
		return &v
	case StatusPartiallyDeveloped, StatusUndeveloped:
		v := false
		return &v
	default:
		return nil
	}
}

// ClassificationResult is produced once per distinct image URL. JSON tags
// keep the cache representation stable across backends.
type ClassificationResult struct {
	Status     ClassificationStatus `json:"status"`
	Confidence *float64             `json:"confidence"`
	Model      string               `json:"model"`
	Notes      *string              `json:"notes,omitempty"`
}
