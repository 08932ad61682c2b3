// Package ui provides the Bubbletea terminal user interface for voxdose
package ui

import (
	"io"
	"log/slog"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/linuxmatters/voxdose/internal/analysis"
	"github.com/linuxmatters/voxdose/internal/logging"
)

// FileStatus represents the processing state of a single file
type FileStatus int

const (
	StatusQueued FileStatus = iota
	StatusRunning
	StatusComplete
	StatusError
)

// FileProgress tracks progress for a single audio file
type FileProgress struct {
	InputPath string
	Status    FileStatus

	Stage       analysis.Stage
	Progress    float64 // 0.0 to 1.0
	StartTime   time.Time
	ElapsedTime time.Duration

	// Completion results
	Result  *analysis.Result
	Tips    []logging.RecordingTip
	Outputs []string

	Error error
}

// Model is the Bubbletea model for the processing UI
type Model struct {
	// File queue
	Files          []FileProgress
	CurrentIndex   int
	TotalFiles     int
	CompletedFiles int
	FailedFiles    int

	// Global state
	StartTime time.Time
	Done      bool

	// Channel for receiving progress updates from the analyser
	ProgressChan chan tea.Msg

	Logger *slog.Logger

	// Terminal dimensions
	Width  int
	Height int
}

// NewModel creates a new UI model with the given input files. A nil
// logger discards UI debug messages.
func NewModel(inputFiles []string, logger *slog.Logger) Model {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	files := make([]FileProgress, len(inputFiles))
	for i, path := range inputFiles {
		files[i] = FileProgress{
			InputPath: path,
			Status:    StatusQueued,
		}
	}

	return Model{
		Files:        files,
		CurrentIndex: -1, // No file processing yet
		TotalFiles:   len(inputFiles),
		StartTime:    time.Now(),
		ProgressChan: make(chan tea.Msg, 100), // Buffered channel
		Logger:       logger.With("component", "ui"),
	}
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return waitForProgress(m.ProgressChan)
}

// Update handles messages and updates the model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.Logger.Debug("window size", "width", m.Width, "height", m.Height)

	case ProgressMsg:
		m.Logger.Debug("progress", "stage", msg.Stage.String(), "progress", msg.Progress)
		if m.CurrentIndex >= 0 && m.CurrentIndex < len(m.Files) {
			m.Files[m.CurrentIndex] = updateFileProgress(m.Files[m.CurrentIndex], msg)
		}
		return m, waitForProgress(m.ProgressChan)

	case FileStartMsg:
		m.Logger.Debug("file start", "index", msg.FileIndex, "file", msg.FileName)
		if msg.FileIndex < 0 || msg.FileIndex >= len(m.Files) {
			return m, waitForProgress(m.ProgressChan)
		}
		m.CurrentIndex = msg.FileIndex
		m.Files[m.CurrentIndex].Status = StatusRunning
		m.Files[m.CurrentIndex].StartTime = time.Now()
		return m, waitForProgress(m.ProgressChan)

	case FileCompleteMsg:
		m.Logger.Debug("file complete", "index", msg.FileIndex, "error", msg.Error)
		if msg.FileIndex >= 0 && msg.FileIndex < len(m.Files) {
			f := &m.Files[msg.FileIndex]
			f.Result = msg.Result
			f.Tips = msg.Tips
			f.Outputs = msg.Outputs
			f.Error = msg.Error
			f.Progress = 1
			if !f.StartTime.IsZero() {
				f.ElapsedTime = time.Since(f.StartTime)
			}

			if msg.Error != nil {
				f.Status = StatusError
				m.FailedFiles++
			} else {
				f.Status = StatusComplete
				m.CompletedFiles++
			}
		}
		return m, waitForProgress(m.ProgressChan)

	case AllCompleteMsg:
		m.Logger.Debug("all complete", "completed", m.CompletedFiles, "failed", m.FailedFiles)
		m.Done = true
		return m, tea.Quit
	}

	return m, nil
}

// View renders the UI
func (m Model) View() string {
	if m.Done {
		return renderCompletionSummary(m)
	}
	if m.Width == 0 {
		return "Initializing...\n"
	}
	return renderProcessingView(m)
}

// updateFileProgress updates a FileProgress based on a ProgressMsg
func updateFileProgress(fp FileProgress, msg ProgressMsg) FileProgress {
	if fp.StartTime.IsZero() {
		fp.StartTime = time.Now()
	}
	fp.Stage = msg.Stage
	fp.Progress = msg.Progress
	fp.ElapsedTime = time.Since(fp.StartTime)
	if fp.Status == StatusQueued {
		fp.Status = StatusRunning
	}
	return fp
}

// waitForProgress creates a command that waits for progress messages
func waitForProgress(progressChan chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		return <-progressChan
	}
}
