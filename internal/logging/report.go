package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/linuxmatters/voxdose/internal/analysis"
)

// histogramWidth is the longest bar drawn in report histograms
const histogramWidth = 40

// writeSection writes a section header with title and dashed underline.
// The underline length matches the title length.
func writeSection(w io.Writer, title string) {
	fmt.Fprintln(w, title)
	fmt.Fprintln(w, strings.Repeat("-", len(title)))
}

// ReportData contains all the information needed to generate a summary report
type ReportData struct {
	Result    *analysis.Result
	OutputDir string // empty writes next to the input file
	StartTime time.Time
	EndTime   time.Time
	Tips      []RecordingTip
}

// ReportPath returns <base>_Summary_<N>cm.txt for the result
func ReportPath(r *analysis.Result, outputDir string) string {
	return fmt.Sprintf("%s_Summary_%dcm.txt", OutputBase(r.InputPath, outputDir), r.TargetDistanceCM())
}

// GenerateReport writes the text summary report and returns its path.
//
// Report structure:
// 1. Header - file info and timestamp
// 2. Processing Summary - timing
// 3. Calibration - constant and distance correction
// 4. Results - the dose table
// 5. Distributions - SPL, F0 and CPPS percentiles and histograms
// 6. Alignment - frames removed by each validity rule
// 7. Warnings and recording tips
func GenerateReport(data ReportData) (string, error) {
	if data.Result == nil {
		return "", fmt.Errorf("no result to report")
	}
	if data.OutputDir != "" {
		if err := os.MkdirAll(data.OutputDir, 0o755); err != nil {
			return "", fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	path := ReportPath(data.Result, data.OutputDir)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create report file: %w", err)
	}
	defer f.Close()

	WriteReport(f, data)
	return path, f.Close()
}

// WriteReport renders the summary report to w
func WriteReport(w io.Writer, data ReportData) {
	r := data.Result
	writeReportHeader(w, data)
	writeProcessingSummary(w, data)
	writeCalibration(w, r)
	writeResults(w, r)
	writeDistributions(w, r)
	writeAlignment(w, r)
	writeWarnings(w, r.Warnings)
	writeTips(w, data.Tips)
}

// formatDuration formats a duration in a human-readable way
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}

	minutes := int(d.Minutes())
	seconds := int(d.Seconds()) % 60

	if minutes < 60 {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}

	hours := minutes / 60
	minutes = minutes % 60
	return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
}

// channelName returns a human-readable channel name
func channelName(channels int) string {
	switch channels {
	case 1:
		return "mono"
	case 2:
		return "stereo"
	default:
		return fmt.Sprintf("%d channels", channels)
	}
}

func writeReportHeader(w io.Writer, data ReportData) {
	r := data.Result
	fmt.Fprintln(w, "Voxdose Analysis Report")
	fmt.Fprintln(w, "=======================")
	fmt.Fprintf(w, "File: %s\n", filepath.Base(r.InputPath))
	if !data.EndTime.IsZero() {
		fmt.Fprintf(w, "Processed: %s\n", data.EndTime.Format("2006-01-02 15:04:05 MST"))
	}
	if m := r.Metadata; m != nil {
		fmt.Fprintf(w, "Duration: %s\n", formatDuration(time.Duration(m.Duration*float64(time.Second))))
		fmt.Fprintf(w, "Format: %s, %d Hz, %s", m.Format, m.SampleRate, channelName(m.Channels))
		if m.Channels > 1 {
			fmt.Fprintf(w, " (analysed channel %d)", m.Channel+1)
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintf(w, "Gender: %s\n", r.Options.Gender)
	fmt.Fprintf(w, "F0 range: %.0f-%.0f Hz\n", r.Options.FreqLow, r.Options.FreqHigh)
	fmt.Fprintln(w, "")
}

// writeProcessingSummary outputs the processing time and real-time factor
func writeProcessingSummary(w io.Writer, data ReportData) {
	writeSection(w, "Processing Summary")

	elapsed := data.Result.Elapsed
	if !data.StartTime.IsZero() && !data.EndTime.IsZero() {
		elapsed = data.EndTime.Sub(data.StartTime)
	}
	fmt.Fprintf(w, "Total: %s", formatDuration(elapsed))
	if m := data.Result.Metadata; m != nil && m.Duration > 0 && elapsed > 0 {
		audioDuration := time.Duration(m.Duration * float64(time.Second))
		fmt.Fprintf(w, " (%.0fx real-time)", float64(audioDuration)/float64(elapsed))
	}
	fmt.Fprintln(w, "")
	fmt.Fprintf(w, "Frames: %d level, %d pitch, %d CPPS\n", data.Result.LevelFrames, data.Result.PitchFrames, data.Result.CPPSFrames)
	fmt.Fprintln(w, "")
}

func writeCalibration(w io.Writer, r *analysis.Result) {
	writeSection(w, "Calibration")

	cal := r.Calibration
	table := NewMetricTable("Value")
	if cal.Calibrated {
		table.AddRow("Status", []string{"calibrated"}, "", "")
		table.AddRow("Reference level", []string{formatMetricDB(cal.ReferenceLevel, 1)}, "dBA", "")
		table.AddRow("Measured level (C=50)", []string{formatMetricDB(cal.MeasuredLevel, 1)}, "dB", "")
		table.AddRow("Calibration frames", []string{fmt.Sprint(cal.Frames)}, "", "")
	} else {
		table.AddRow("Status", []string{"uncalibrated"}, "", "")
	}
	table.AddRow("Calibration constant", []string{formatMetric(cal.Constant, 2)}, "dB", "")
	table.AddRow("Distance", []string{DistanceText(r)}, "", "")
	table.AddRow("SPL adjustment", []string{formatMetricSigned(-r.Stats.DistanceCorrection, 2)}, "dB", "")
	table.AddRow("Monitoring level", []string{formatMetricDB(r.LevelMean, 1)}, "dB", fmt.Sprintf("SD %s dB", formatMetric(r.LevelStdDev, 1)))
	fmt.Fprint(w, table.String())
	fmt.Fprintln(w, "")
}

func writeResults(w io.Writer, r *analysis.Result) {
	writeSection(w, "Results")
	table := NewMetricTable("Value")
	for _, row := range SummaryRows(r) {
		table.AddRow(row.Label, []string{row.Value}, "", "")
	}
	fmt.Fprint(w, table.String())
	fmt.Fprintln(w, "")
}

func writeDistributions(w io.Writer, r *analysis.Result) {
	writeSection(w, "Distributions")
	if r.Timeline == nil {
		fmt.Fprintln(w, "No frames")
		fmt.Fprintln(w, "")
		return
	}

	series := []struct {
		label string
		unit  string
		dist  Distribution
	}{
		{fmt.Sprintf("SPL @ %d cm", r.TargetDistanceCM()), "dBA", Distribute(positive(r.Timeline.SPL))},
		{"F0", "Hz", Distribute(positive(r.Timeline.F0))},
		{"CPPS", "dB", Distribute(positive(r.Timeline.CPPS))},
	}

	table := NewMetricTable("Frames", "Mean", "SD", "P5", "P50", "P95")
	for _, s := range series {
		d := s.dist
		if d.Count == 0 {
			table.AddRow(s.label, []string{"0"}, s.unit, "")
			continue
		}
		table.AddRow(s.label, []string{
			fmt.Sprint(d.Count),
			formatMetric(d.Mean, 1),
			formatMetric(d.StdDev, 1),
			formatMetric(d.P5, 1),
			formatMetric(d.P50, 1),
			formatMetric(d.P95, 1),
		}, s.unit, "")
	}
	fmt.Fprint(w, table.String())

	for _, s := range series {
		if s.dist.Count == 0 {
			continue
		}
		fmt.Fprintln(w, "")
		fmt.Fprintf(w, "%s histogram (%s)\n", s.label, s.unit)
		writeHistogram(w, s.dist.Histogram)
	}
	fmt.Fprintln(w, "")
}

// writeHistogram draws one line per non-empty bin, bars scaled to the
// fullest bin
func writeHistogram(w io.Writer, bins []Bin) {
	peak := 0
	for _, b := range bins {
		peak = max(peak, b.Count)
	}
	if peak == 0 {
		return
	}
	for _, b := range bins {
		if b.Count == 0 {
			continue
		}
		bar := max(1, b.Count*histogramWidth/peak)
		fmt.Fprintf(w, "  %7.1f-%-7.1f %6d %s\n", b.Low, b.High, b.Count, strings.Repeat("#", bar))
	}
}

func writeAlignment(w io.Writer, r *analysis.Result) {
	writeSection(w, "Alignment")
	s := r.Stats
	table := NewMetricTable("Frames")
	table.AddRow("Aligned", []string{fmt.Sprint(s.Frames)}, "", "")
	table.AddRow("Dropped by truncation", []string{fmt.Sprint(s.Dropped)}, "", "")
	table.AddRow("Unvoiced", []string{fmt.Sprint(s.Unvoiced)}, "", "")
	table.AddRow("F0 out of band", []string{fmt.Sprint(s.OutOfBand)}, "", "")
	table.AddRow("Below noise floor", []string{fmt.Sprint(s.BelowFloor)}, "", "")
	table.AddRow("Cross-masked", []string{fmt.Sprint(s.CrossMasked)}, "", "")
	table.AddRow("Voiced", []string{fmt.Sprint(s.Voiced)}, "", fmt.Sprintf("%.1f%%", 100*s.VoicedFraction()))
	fmt.Fprint(w, table.String())
	fmt.Fprintln(w, "")
}

func writeWarnings(w io.Writer, warnings []string) {
	if len(warnings) == 0 {
		return
	}
	writeSection(w, "Warnings")
	for _, msg := range warnings {
		fmt.Fprintf(w, "  ! %s\n", wrapText(msg, 74, "    "))
	}
	fmt.Fprintln(w, "")
}

func writeTips(w io.Writer, tips []RecordingTip) {
	if len(tips) == 0 {
		return
	}
	writeSection(w, "Recording Tips")
	for i, tip := range tips {
		fmt.Fprintf(w, "  %d. %s\n", i+1, wrapText(tip.Message, 72, "     "))
	}
	fmt.Fprintln(w, "")
}
