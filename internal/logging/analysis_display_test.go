package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestDisplayResults(t *testing.T) {
	r := calibratedResult(t)
	r.Warnings = []string{"CPPS extraction failed, using zeros"}
	tips := []RecordingTip{{Priority: 5, RuleID: "uncalibrated", Message: "Calibrate next time."}}
	outputs := []string{"/tmp/voice.csv", "/tmp/voice_VocalDoses.csv"}

	var buf bytes.Buffer
	DisplayResults(&buf, r, tips, outputs)
	output := buf.String()

	for _, want := range []string{
		"VOCAL DOSES: voice.wav",
		"Sample Rate: 16000 Hz",
		"Channels:    stereo",
		"Gender:      male",
		"Frames:      5 aligned, 4 voiced (80.0%)",
		"RESULTS",
		"Distance correction",
		"WARNINGS",
		"! CPPS extraction failed",
		"RECORDING TIPS",
		"1. Calibrate next time.",
		"OUTPUTS",
		"/tmp/voice_VocalDoses.csv",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("output should contain %q:\n%s", want, output)
		}
	}
}

func TestDisplayResultsQuietRun(t *testing.T) {
	var buf bytes.Buffer
	DisplayResults(&buf, uncalibratedResult(t), nil, nil)
	output := buf.String()
	for _, absent := range []string{"WARNINGS", "RECORDING TIPS", "OUTPUTS"} {
		if strings.Contains(output, absent) {
			t.Errorf("output should omit %s:\n%s", absent, output)
		}
	}
	if !strings.Contains(output, "Uncalibrated (C=50)") {
		t.Errorf("output should show the uncalibrated distance text:\n%s", output)
	}
}

func TestPlainRows(t *testing.T) {
	got := plainRows([]SummaryRow{{"A", "1"}, {"Longer", "2"}})
	want := "  A       1\n  Longer  2\n"
	if got != want {
		t.Errorf("plainRows() = %q, want %q", got, want)
	}
}

func TestFormatDurationHMS(t *testing.T) {
	tests := []struct {
		seconds float64
		want    string
	}{
		{12.34, "12.3s"},
		{125, "2m 5s"},
		{3723, "1h 2m 3s"},
	}
	for _, tt := range tests {
		if got := formatDurationHMS(tt.seconds); got != tt.want {
			t.Errorf("formatDurationHMS(%v) = %q, want %q", tt.seconds, got, tt.want)
		}
	}
}
