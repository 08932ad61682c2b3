package logging

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/linuxmatters/voxdose/internal/analysis"
)

// DisplayResults prints the dose table, warnings and tips for one result.
// Used by --plain mode in place of the progress UI.
func DisplayResults(w io.Writer, r *analysis.Result, tips []RecordingTip, outputs []string) {
	fmt.Fprintln(w, strings.Repeat("=", 70))
	fmt.Fprintf(w, "VOCAL DOSES: %s\n", filepath.Base(r.InputPath))
	fmt.Fprintln(w, strings.Repeat("=", 70))

	if m := r.Metadata; m != nil {
		fmt.Fprintf(w, "Duration:    %s\n", formatDurationHMS(m.Duration))
		fmt.Fprintf(w, "Sample Rate: %d Hz\n", m.SampleRate)
		fmt.Fprintf(w, "Channels:    %s\n", channelName(m.Channels))
	}
	fmt.Fprintf(w, "Gender:      %s\n", r.Options.Gender)
	fmt.Fprintf(w, "Frames:      %d aligned, %d voiced (%.1f%%)\n",
		r.Stats.Frames, r.Stats.Voiced, 100*r.Stats.VoicedFraction())
	fmt.Fprintln(w)

	writeAnalysisSection(w, "RESULTS")
	fmt.Fprint(w, plainRows(SummaryRows(r)))
	fmt.Fprintln(w)

	if len(r.Warnings) > 0 {
		writeAnalysisSection(w, "WARNINGS")
		for _, msg := range r.Warnings {
			fmt.Fprintf(w, "  ! %s\n", wrapText(msg, 66, "    "))
		}
		fmt.Fprintln(w)
	}

	if len(tips) > 0 {
		writeAnalysisSection(w, "RECORDING TIPS")
		for i, tip := range tips {
			fmt.Fprintf(w, "  %d. %s\n", i+1, wrapText(tip.Message, 64, "     "))
		}
		fmt.Fprintln(w)
	}

	if len(outputs) > 0 {
		writeAnalysisSection(w, "OUTPUTS")
		for _, path := range outputs {
			fmt.Fprintf(w, "  %s\n", path)
		}
		fmt.Fprintln(w)
	}
}

// plainRows aligns label/value pairs in two columns
func plainRows(rows []SummaryRow) string {
	width := 0
	for _, row := range rows {
		width = max(width, len(row.Label))
	}
	var sb strings.Builder
	for _, row := range rows {
		fmt.Fprintf(&sb, "  %-*s  %s\n", width, row.Label, row.Value)
	}
	return sb.String()
}

// writeAnalysisSection writes a section header for console output.
func writeAnalysisSection(w io.Writer, title string) {
	fmt.Fprintln(w, title)
}

// formatDurationHMS formats duration as "Xh Ym Zs" or "Ym Zs" or "Z.Xs".
func formatDurationHMS(seconds float64) string {
	if seconds < 60 {
		return fmt.Sprintf("%.1fs", seconds)
	}

	totalSeconds := int(seconds)
	hours := totalSeconds / 3600
	minutes := (totalSeconds % 3600) / 60
	secs := totalSeconds % 60

	if hours > 0 {
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, secs)
	}
	return fmt.Sprintf("%dm %ds", minutes, secs)
}
