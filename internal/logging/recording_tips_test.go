package logging

import (
	"strings"
	"testing"

	"github.com/linuxmatters/voxdose/internal/analysis"
)

func TestWrapText(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		maxWidth int
		indent   string
		want     string
	}{
		{
			name:     "short_text_no_wrap",
			text:     "Hello world",
			maxWidth: 20,
			indent:   "  ",
			want:     "Hello world",
		},
		{
			name:     "long_text_wraps",
			text:     "Try moving closer to your microphone for better results",
			maxWidth: 30,
			indent:   "  ",
			want:     "Try moving closer to your\n  microphone for better results",
		},
		{
			name:     "single_long_word",
			text:     "supercalifragilisticexpialidocious",
			maxWidth: 10,
			indent:   "  ",
			want:     "supercalifragilisticexpialidocious",
		},
		{
			name:     "empty_input",
			text:     "",
			maxWidth: 20,
			indent:   "  ",
			want:     "",
		},
		{
			name:     "exact_fit",
			text:     "exactly twenty chars",
			maxWidth: 20,
			indent:   "  ",
			want:     "exactly twenty chars",
		},
		{
			name:     "multiple_wraps",
			text:     "one two three four five six seven eight nine ten",
			maxWidth: 15,
			indent:   "    ",
			want:     "one two three\n    four five six\n    seven eight\n    nine ten",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := wrapText(tt.text, tt.maxWidth, tt.indent)
			if got != tt.want {
				t.Errorf("wrapText() = %q, want %q", got, tt.want)
			}
		})
	}
}


// findTip returns the tip with ruleID, or nil
func findTip(tips []RecordingTip, ruleID string) *RecordingTip {
	for i := range tips {
		if tips[i].RuleID == ruleID {
			return &tips[i]
		}
	}
	return nil
}

// humResult returns a calibrated result whose voiced F0 track sits on
// 100 Hz, the second harmonic of 50 Hz mains
func humResult(t *testing.T, frames int) *analysis.Result {
	t.Helper()
	r := calibratedResult(t)
	r.Timeline.F0 = make([]float64, frames)
	for i := range r.Timeline.F0 {
		r.Timeline.F0[i] = 100.5
	}
	r.Stats.Frames = frames
	r.Stats.Voiced = frames
	r.Stats.Unvoiced = 0
	return r
}

func TestGenerateRecordingTipsNilResult(t *testing.T) {
	if tips := GenerateRecordingTips(nil, TipContext{}); tips != nil {
		t.Errorf("GenerateRecordingTips(nil) = %v, want nil", tips)
	}
}

func TestGenerateRecordingTipsCleanRun(t *testing.T) {
	tips := GenerateRecordingTips(calibratedResult(t), TipContext{MainsFrequency: 50})
	if len(tips) != 0 {
		t.Errorf("clean calibrated run produced tips: %+v", tips)
	}
}

func TestTipTooShort(t *testing.T) {
	r := calibratedResult(t)
	r.Stats.Frames = 0
	r.Stats.Voiced = 0

	tips := GenerateRecordingTips(r, TipContext{})
	if findTip(tips, "too_short") == nil {
		t.Fatalf("expected too_short, got %+v", tips)
	}
	if findTip(tips, "no_voice") != nil {
		t.Error("no_voice should be suppressed by too_short")
	}
}

func TestTipNoVoice(t *testing.T) {
	r := calibratedResult(t)
	r.Stats.Frames = 40
	r.Stats.Voiced = 0
	r.Dose.Dt = 1
	r.Dose.SPLMean = 92

	tips := GenerateRecordingTips(r, TipContext{})
	tip := findTip(tips, "no_voice")
	if tip == nil {
		t.Fatalf("expected no_voice, got %+v", tips)
	}
	if !strings.Contains(tip.Message, "75-400 Hz") {
		t.Errorf("message should name the F0 range: %q", tip.Message)
	}
	if findTip(tips, "low_phonation") != nil {
		t.Error("low_phonation should not fire without voiced frames")
	}
	if findTip(tips, "loud_voice") != nil {
		t.Error("loud_voice should be suppressed by no_voice")
	}
}

func TestTipLowPhonation(t *testing.T) {
	tests := []struct {
		name       string
		voiced     int
		belowFloor int
		outOfBand  int
		wantTip    bool
	}{
		{"4% voiced", 4, 0, 0, true},
		{"boundary 5%", 5, 0, 0, false},
		{"explained by noise floor", 4, 60, 0, false},
		{"explained by F0 range", 4, 0, 30, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := calibratedResult(t)
			r.Stats.Frames = 100
			r.Stats.Voiced = tt.voiced
			r.Stats.BelowFloor = tt.belowFloor
			r.Stats.OutOfBand = tt.outOfBand

			tip := findTip(GenerateRecordingTips(r, TipContext{}), "low_phonation")
			if (tip != nil) != tt.wantTip {
				t.Fatalf("low_phonation fired = %v, want %v", tip != nil, tt.wantTip)
			}
			if tip != nil && !strings.Contains(tip.Message, "4.0%") {
				t.Errorf("message should carry the voiced share: %q", tip.Message)
			}
		})
	}
}

func TestTipBelowNoiseFloor(t *testing.T) {
	tests := []struct {
		name       string
		result     func(*testing.T) *analysis.Result
		belowFloor int
		wantTip    bool
		wantMsg    string
	}{
		{"calibrated majority", calibratedResult, 70, true, "at 50 cm"},
		{"uncalibrated majority", uncalibratedResult, 70, true, "calibrate the run"},
		{"boundary half", calibratedResult, 50, false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := tt.result(t)
			r.Stats.Frames = 100
			r.Stats.Voiced = 30
			r.Stats.BelowFloor = tt.belowFloor

			tip := findTip(GenerateRecordingTips(r, TipContext{}), "below_noise_floor")
			if (tip != nil) != tt.wantTip {
				t.Fatalf("below_noise_floor fired = %v, want %v", tip != nil, tt.wantTip)
			}
			if tip != nil && !strings.Contains(tip.Message, tt.wantMsg) {
				t.Errorf("message %q should contain %q", tip.Message, tt.wantMsg)
			}
		})
	}
}

func TestTipOutOfBand(t *testing.T) {
	tests := []struct {
		name      string
		outOfBand int
		wantTip   bool
	}{
		{"21 percent", 21, true},
		{"boundary 20 percent", 20, false},
		{"none", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := calibratedResult(t)
			r.Stats.Frames = 100
			r.Stats.Voiced = 60
			r.Stats.OutOfBand = tt.outOfBand

			tip := findTip(GenerateRecordingTips(r, TipContext{}), "f0_out_of_band")
			if (tip != nil) != tt.wantTip {
				t.Fatalf("f0_out_of_band fired = %v, want %v", tip != nil, tt.wantTip)
			}
			if tip != nil && !strings.Contains(tip.Message, "--freq-low") {
				t.Errorf("message should point at --freq-low: %q", tip.Message)
			}
		})
	}
}

func TestTipMainsHum(t *testing.T) {
	tests := []struct {
		name    string
		frames  int
		mains   int
		wantTip bool
	}{
		{"on 50 Hz harmonic", 30, 50, true},
		{"60 Hz mains", 30, 60, false},
		{"mains unknown", 30, 0, false},
		{"too few voiced frames", 10, 50, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := humResult(t, tt.frames)
			tip := findTip(GenerateRecordingTips(r, TipContext{MainsFrequency: tt.mains}), "mains_hum")
			if (tip != nil) != tt.wantTip {
				t.Fatalf("mains_hum fired = %v, want %v", tip != nil, tt.wantTip)
			}
			if tip != nil && !strings.Contains(tip.Message, "50 Hz") {
				t.Errorf("message should name the mains frequency: %q", tip.Message)
			}
		})
	}
}

func TestTipUncalibrated(t *testing.T) {
	tips := GenerateRecordingTips(uncalibratedResult(t), TipContext{})
	if len(tips) != 1 || tips[0].RuleID != "uncalibrated" {
		t.Fatalf("uncalibrated run tips = %+v, want only uncalibrated", tips)
	}
	if !strings.Contains(tips[0].Message, "--calibration-file") {
		t.Errorf("message should point at --calibration-file: %q", tips[0].Message)
	}
}

func TestTipLoudVoice(t *testing.T) {
	tests := []struct {
		name    string
		result  func(*testing.T) *analysis.Result
		splMean float64
		wantTip bool
	}{
		{"calibrated loud", calibratedResult, 84.2, true},
		{"boundary 80 dBA", calibratedResult, 80, true},
		{"calibrated moderate", calibratedResult, 76, false},
		{"uncalibrated loud", uncalibratedResult, 84.2, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := tt.result(t)
			r.Dose.SPLMean = tt.splMean
			tip := findTip(GenerateRecordingTips(r, TipContext{}), "loud_voice")
			if (tip != nil) != tt.wantTip {
				t.Fatalf("loud_voice fired = %v, want %v", tip != nil, tt.wantTip)
			}
		})
	}
}

func TestGenerateRecordingTipsPriorityOrder(t *testing.T) {
	r := humResult(t, 100)
	r.Calibration.Calibrated = false
	r.Stats.BelowFloor = 80
	r.Stats.OutOfBand = 40

	tips := GenerateRecordingTips(r, TipContext{MainsFrequency: 50})
	if len(tips) == 0 || len(tips) > MaxRecordingTips {
		t.Fatalf("got %d tips", len(tips))
	}
	for i := 1; i < len(tips); i++ {
		if tips[i].Priority > tips[i-1].Priority {
			t.Errorf("tips not sorted by priority: %s (%d) after %s (%d)",
				tips[i].RuleID, tips[i].Priority, tips[i-1].RuleID, tips[i-1].Priority)
		}
	}
	want := []string{"below_noise_floor", "mains_hum", "f0_out_of_band", "uncalibrated"}
	if len(tips) != len(want) {
		t.Fatalf("got %d tips %+v, want %v", len(tips), tips, want)
	}
	for i, id := range want {
		if tips[i].RuleID != id {
			t.Errorf("tip %d = %s, want %s", i, tips[i].RuleID, id)
		}
	}
}
