package logging

import (
	"fmt"
	"sort"
	"strings"

	"github.com/linuxmatters/voxdose/internal/analysis"
	"github.com/linuxmatters/voxdose/internal/mains"
)

// RecordingTip represents a single piece of actionable recording advice
// derived from an analysis result.
type RecordingTip struct {
	Priority int    // Higher = more important (1-10)
	Message  string // Human-readable advice (1-2 sentences)
	RuleID   string // Identifier for testing/logging (e.g., "low_phonation")
}

// TipContext carries facts about the recording environment that are not
// part of the analysis result
type TipContext struct {
	MainsFrequency int // Hz, 50 or 60; 0 skips the hum check
}

// MaxRecordingTips is the maximum number of tips to return.
const MaxRecordingTips = 5

// Thresholds for the tip rules
const (
	lowPhonationFraction = 0.05 // voiced share of frames
	outOfBandFraction    = 0.20 // out-of-band share of frames
	belowFloorFraction   = 0.50 // share of frames under the noise floor
	humShareThreshold    = 0.50 // voiced share sitting on mains harmonics
	humMinVoicedFrames   = 20
	loudVoiceSPL         = 80.0 // dBA at the report distance
)

// GenerateRecordingTips analyses a result and returns prioritised recording
// and measurement suggestions.
func GenerateRecordingTips(r *analysis.Result, tc TipContext) []RecordingTip {
	if r == nil {
		return nil
	}

	var tips []RecordingTip
	firedRules := make(map[string]bool)

	rules := []func(*analysis.Result, TipContext) *RecordingTip{
		tipTooShort,
		tipNoVoice,
		tipLowPhonation,
		tipBelowNoiseFloor,
		tipOutOfBand,
		tipMainsHum,
		tipUncalibrated,
		tipLoudVoice,
	}

	for _, rule := range rules {
		if tip := rule(r, tc); tip != nil {
			tips = append(tips, *tip)
			firedRules[tip.RuleID] = true
		}
	}

	tips = applyExclusions(tips, firedRules)

	sort.SliceStable(tips, func(i, j int) bool {
		return tips[i].Priority > tips[j].Priority
	})

	if len(tips) > MaxRecordingTips {
		tips = tips[:MaxRecordingTips]
	}

	return tips
}

// applyExclusions removes tips that are redundant when a more specific tip
// has already fired. For example, "low_phonation" is suppressed when
// "below_noise_floor" fires because the latter explains the former.
func applyExclusions(tips []RecordingTip, fired map[string]bool) []RecordingTip {
	var result []RecordingTip
	for _, tip := range tips {
		switch tip.RuleID {
		case "low_phonation":
			if fired["below_noise_floor"] || fired["f0_out_of_band"] {
				continue
			}
		case "no_voice":
			if fired["too_short"] {
				continue
			}
		case "loud_voice", "mains_hum":
			if fired["no_voice"] || fired["too_short"] {
				continue
			}
		}
		result = append(result, tip)
	}
	return result
}

// wrapText wraps text at word boundaries to fit within maxWidth columns.
// Continuation lines are prefixed with indent.
func wrapText(text string, maxWidth int, indent string) string {
	words := strings.Fields(text)
	var lines []string
	currentLine := ""

	for _, word := range words {
		if currentLine == "" {
			currentLine = word
		} else if len(currentLine)+1+len(word) <= maxWidth {
			currentLine += " " + word
		} else {
			lines = append(lines, currentLine)
			currentLine = word
		}
	}
	if currentLine != "" {
		lines = append(lines, currentLine)
	}

	return strings.Join(lines, "\n"+indent)
}

// tipTooShort fires when no frame survived alignment, which happens for
// recordings shorter than a few frames.
func tipTooShort(r *analysis.Result, _ TipContext) *RecordingTip {
	if r.Stats.Frames > 0 {
		return nil
	}
	return &RecordingTip{
		Priority: 10,
		RuleID:   "too_short",
		Message:  "The recording is too short to analyse - record at least a few seconds of speech.",
	}
}

// tipNoVoice fires when frames exist but none is voiced-valid.
func tipNoVoice(r *analysis.Result, _ TipContext) *RecordingTip {
	if r.Stats.Frames == 0 || r.Stats.Voiced > 0 {
		return nil
	}
	return &RecordingTip{
		Priority: 10,
		RuleID:   "no_voice",
		Message: fmt.Sprintf("No voiced speech was detected. Check that the recording contains the speaker and that the %.0f-%.0f Hz F0 range suits their voice.",
			r.Options.FreqLow, r.Options.FreqHigh),
	}
}

// tipLowPhonation fires when under 5% of frames are voiced-valid.
func tipLowPhonation(r *analysis.Result, _ TipContext) *RecordingTip {
	if r.Stats.Voiced == 0 || r.Stats.VoicedFraction() >= lowPhonationFraction {
		return nil
	}
	return &RecordingTip{
		Priority: 7,
		RuleID:   "low_phonation",
		Message: fmt.Sprintf("Voice was detected in only %.1f%% of the recording - dose rates from so little phonation are unreliable.",
			100*r.Stats.VoicedFraction()),
	}
}

// tipBelowNoiseFloor fires when most frames fall under the noise floor
// after distance correction.
func tipBelowNoiseFloor(r *analysis.Result, _ TipContext) *RecordingTip {
	if r.Stats.Frames == 0 || float64(r.Stats.BelowFloor)/float64(r.Stats.Frames) <= belowFloorFraction {
		return nil
	}
	msg := fmt.Sprintf("Most frames are under the %.0f dB noise floor at %d cm - place the microphone closer to the mouth or check the calibration reading.",
		r.Options.NoiseFloor, r.TargetDistanceCM())
	if !r.Calibration.Calibrated {
		msg = fmt.Sprintf("Most frames are under the %.0f dB noise floor. Without calibration levels are relative to the recording gain - calibrate the run or raise the input gain.",
			r.Options.NoiseFloor)
	}
	return &RecordingTip{
		Priority: 8,
		RuleID:   "below_noise_floor",
		Message:  msg,
	}
}

// tipOutOfBand fires when the tracker often reports F0 outside the
// configured range, a sign the range does not match the speaker.
func tipOutOfBand(r *analysis.Result, _ TipContext) *RecordingTip {
	if r.Stats.Frames == 0 || float64(r.Stats.OutOfBand)/float64(r.Stats.Frames) <= outOfBandFraction {
		return nil
	}
	return &RecordingTip{
		Priority: 6,
		RuleID:   "f0_out_of_band",
		Message: fmt.Sprintf("%.0f%% of pitch estimates fell outside %.0f-%.0f Hz - adjust --freq-low and --freq-high to the speaker's range.",
			100*float64(r.Stats.OutOfBand)/float64(r.Stats.Frames), r.Options.FreqLow, r.Options.FreqHigh),
	}
}

// tipMainsHum fires when voiced F0 estimates cluster on mains harmonics,
// which suggests the tracker followed hum rather than the voice.
func tipMainsHum(r *analysis.Result, tc TipContext) *RecordingTip {
	if tc.MainsFrequency <= 0 || r.Timeline == nil || r.Stats.Voiced < humMinVoicedFrames {
		return nil
	}
	share := mains.HumShare(r.Timeline.F0, tc.MainsFrequency, r.Options.FreqLow, r.Options.FreqHigh, mains.HumTolerance)
	if share < humShareThreshold {
		return nil
	}
	return &RecordingTip{
		Priority: 7,
		RuleID:   "mains_hum",
		Message: fmt.Sprintf("%.0f%% of F0 estimates sit on %d Hz mains harmonics - move the microphone away from power supplies and chargers, then re-record.",
			100*share, tc.MainsFrequency),
	}
}

// tipUncalibrated fires for runs using the default calibration constant.
func tipUncalibrated(r *analysis.Result, _ TipContext) *RecordingTip {
	if r.Calibration.Calibrated {
		return nil
	}
	return &RecordingTip{
		Priority: 5,
		RuleID:   "uncalibrated",
		Message:  "This run is uncalibrated, so SPL and the energy doses are relative. Record a calibration tone with a sound level meter reading and pass --calibration-file and --calibration-level.",
	}
}

// tipLoudVoice fires for calibrated runs with a high mean SPL.
func tipLoudVoice(r *analysis.Result, _ TipContext) *RecordingTip {
	if !r.Calibration.Calibrated || r.Dose.Dt == 0 || r.Dose.SPLMean < loudVoiceSPL {
		return nil
	}
	return &RecordingTip{
		Priority: 6,
		RuleID:   "loud_voice",
		Message: fmt.Sprintf("Mean SPL was %.1f dBA at %d cm, which is loud for sustained speech - consider amplification or regular vocal rest.",
			r.Dose.SPLMean, r.TargetDistanceCM()),
	}
}
