package ui

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/linuxmatters/voxdose/internal/analysis"
	"github.com/linuxmatters/voxdose/internal/logging"
)

var (
	primaryColor = lipgloss.Color("#1E6FB8")
	okColor      = lipgloss.Color("#00AA00")
	activeColor  = lipgloss.Color("#FFA500")
	errorColor   = lipgloss.Color("#A40000")
	mutedColor   = lipgloss.Color("#888888")
)

// renderProcessingView renders the main processing view
func renderProcessingView(m Model) string {
	var b strings.Builder

	b.WriteString(renderHeader(m))
	b.WriteString("\n\n")

	b.WriteString(renderFileQueue(m))
	b.WriteString("\n\n")

	b.WriteString(renderOverallProgress(m))

	return b.String()
}

// renderHeader renders the application header
func renderHeader(m Model) string {
	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(primaryColor).
		Render("Voxdose 🗣 - Vocal Dose Estimation")

	subtitle := lipgloss.NewStyle().
		Foreground(mutedColor).
		Italic(true).
		Render(fmt.Sprintf("Analysing %d file(s)", m.TotalFiles))

	return title + "\n" + subtitle
}

// renderFileQueue renders the list of files with their status
func renderFileQueue(m Model) string {
	var b strings.Builder
	for _, file := range m.Files {
		b.WriteString(renderFileEntry(file))
		b.WriteString("\n")
	}
	return b.String()
}

// renderFileEntry renders a single file entry in the queue
func renderFileEntry(file FileProgress) string {
	fileName := filepath.Base(file.InputPath)

	switch file.Status {
	case StatusComplete:
		icon := lipgloss.NewStyle().Foreground(okColor).Render("✓")
		return fmt.Sprintf(" %s %s\n   %s", icon, fileName, doseLine(file.Result))

	case StatusRunning:
		icon := lipgloss.NewStyle().Foreground(activeColor).Render("⚙")
		return fmt.Sprintf(" %s %s\n%s", icon, fileName, renderFileDetails(file))

	case StatusError:
		icon := lipgloss.NewStyle().Foreground(errorColor).Render("✗")
		return fmt.Sprintf(" %s %s\n   Error: %v", icon, fileName, file.Error)

	default:
		icon := lipgloss.NewStyle().Foreground(mutedColor).Render("○")
		return fmt.Sprintf(" %s %s\n   Queued...", icon, fileName)
	}
}

// doseLine summarises a finished run on one line
func doseLine(r *analysis.Result) string {
	if r == nil {
		return "No result"
	}
	d := r.Dose
	return fmt.Sprintf("Dt: %.1f s (%.1f%%) | Dd: %.1f m | SPL: %.1f dBA @ %d cm | F0: %.1f Hz",
		d.Dt, d.DtPercent, d.Dd, d.SPLMean, r.TargetDistanceCM(), d.F0Mean)
}

// renderFileDetails renders detailed progress for the active file
func renderFileDetails(file FileProgress) string {
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(primaryColor).
		Padding(0, 1).
		Width(60)

	var content strings.Builder

	stage := file.Stage
	content.WriteString(fmt.Sprintf("Stage %d/%d: %s\n", int(stage)+1, int(analysis.StageDone), stage))

	content.WriteString(renderProgressBar(file.Progress, 40))
	content.WriteString("\n\n")

	elapsed := file.ElapsedTime.Seconds()
	var remaining float64
	if file.Progress > 0 {
		remaining = (elapsed / file.Progress) - elapsed
	}
	content.WriteString(fmt.Sprintf("⏱  Elapsed: %.1fs | Remaining: ~%.1fs", elapsed, remaining))

	return box.Render(content.String())
}

// renderProgressBar renders a progress bar
func renderProgressBar(progress float64, width int) string {
	progress = min(max(progress, 0), 1)
	filled := int(progress * float64(width))
	empty := width - filled

	bar := strings.Repeat("█", filled) + strings.Repeat("░", empty)
	percentage := int(progress * 100)

	return fmt.Sprintf("%s %d%%", bar, percentage)
}

// renderOverallProgress renders the overall progress footer
func renderOverallProgress(m Model) string {
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(mutedColor).
		Padding(0, 1).
		Width(60)

	var content string
	if m.CurrentIndex >= 0 && m.CurrentIndex < len(m.Files) {
		content = fmt.Sprintf("Analysing file %d of %d (%d complete)",
			m.CurrentIndex+1, m.TotalFiles, m.CompletedFiles)
	} else {
		content = fmt.Sprintf("Overall Progress: %d/%d complete", m.CompletedFiles, m.TotalFiles)
	}

	return box.Render(content)
}

// renderCompletionSummary renders the final completion summary
func renderCompletionSummary(m Model) string {
	var b strings.Builder

	header := lipgloss.NewStyle().
		Bold(true).
		Foreground(okColor).
		Render("✨ Analysis Complete!")
	b.WriteString(header)
	b.WriteString("\n\n")

	for _, file := range m.Files {
		switch file.Status {
		case StatusComplete:
			b.WriteString(renderCompletedFile(file))
			b.WriteString("\n")
		case StatusError:
			b.WriteString(renderFileEntry(file))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(strings.Repeat("─", 60))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("%d analysed, %d failed\n", m.CompletedFiles, m.FailedFiles))

	return b.String()
}

// renderCompletedFile renders the dose table, tips and outputs for a
// completed file
func renderCompletedFile(file FileProgress) string {
	var b strings.Builder
	fileName := filepath.Base(file.InputPath)
	icon := lipgloss.NewStyle().Foreground(okColor).Render("✓")
	b.WriteString(fmt.Sprintf(" %s %s\n", icon, fileName))

	if r := file.Result; r != nil {
		for _, row := range logging.SummaryRows(r) {
			b.WriteString(fmt.Sprintf("   %-28s %s\n", row.Label, row.Value))
		}
		for _, w := range r.Warnings {
			b.WriteString(lipgloss.NewStyle().Foreground(activeColor).Render("   ! " + w))
			b.WriteString("\n")
		}
	}
	for _, tip := range file.Tips {
		b.WriteString(lipgloss.NewStyle().Foreground(mutedColor).Italic(true).Render("   💡 " + tip.Message))
		b.WriteString("\n")
	}
	for _, out := range file.Outputs {
		b.WriteString(fmt.Sprintf("   → %s\n", filepath.Base(out)))
	}
	return b.String()
}
