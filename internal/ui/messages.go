package ui

import (
	"github.com/linuxmatters/voxdose/internal/analysis"
	"github.com/linuxmatters/voxdose/internal/logging"
)

// ProgressMsg represents a progress update from the analyser
type ProgressMsg struct {
	Stage    analysis.Stage
	Progress float64 // 0.0 to 1.0
}

// FileStartMsg indicates a new file has started processing
type FileStartMsg struct {
	FileIndex int
	FileName  string
}

// FileCompleteMsg indicates a file has finished processing
type FileCompleteMsg struct {
	FileIndex int
	Result    *analysis.Result
	Tips      []logging.RecordingTip
	Outputs   []string // files written for this input
	Error     error
}

// AllCompleteMsg indicates all files have been processed
type AllCompleteMsg struct{}
