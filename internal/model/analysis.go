package model

import (
	"errors"
	"strings"
)

// ErrEmptyText is returned when an analysis request has no text.
var ErrEmptyText = errors.New("analysis text must not be empty")

// AnalysisRequest is the input to the analysis engine.
type AnalysisRequest struct {
	Text    string `json:"text"`
	Context string `json:"context,omitempty"`
}

// Validate checks the required fields.
func (r AnalysisRequest) Validate() error {
	if strings.TrimSpace(r.Text) == "" {
		return ErrEmptyText
	}
	return nil
}

// AnalysisResult is the typed outcome of a task analysis. Priority, Tags and
// SubtaskTitles are always populated; EstimatedHours may be nil.
type AnalysisResult struct {
	Summary        string   `json:"summary"`
	Priority       Priority `json:"suggested_priority"`
	EstimatedHours *int     `json:"estimated_hours,omitempty"`
	Tags           []string `json:"suggested_tags"`
	SubtaskTitles  []string `json:"suggested_subtasks"`
	Narrative      string   `json:"analysis"`
}
