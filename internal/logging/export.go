package logging

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/linuxmatters/voxdose/internal/analysis"
	"github.com/linuxmatters/voxdose/internal/dose"
	"gopkg.in/yaml.v3"
)

var unsafeName = regexp.MustCompile(`[<>:"/\\|?*]`)

// SanitizeName replaces characters that are invalid in file names on
// common filesystems with underscores
func SanitizeName(name string) string {
	return unsafeName.ReplaceAllString(name, "_")
}

// OutputBase returns the path outputs for inputPath are named from: the
// sanitised input name without extension, inside outputDir or, when
// outputDir is empty, next to the input file.
func OutputBase(inputPath, outputDir string) string {
	name := filepath.Base(inputPath)
	name = SanitizeName(strings.TrimSuffix(name, filepath.Ext(name)))
	dir := outputDir
	if dir == "" {
		dir = filepath.Dir(inputPath)
	}
	return filepath.Join(dir, name)
}

// Export writes the per-frame CSV, the dose CSV and the dose YAML summary
// and returns the paths written
func Export(r *analysis.Result, outputDir string) ([]string, error) {
	if outputDir != "" {
		if err := os.MkdirAll(outputDir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	base := OutputBase(r.InputPath, outputDir)

	outputs := []struct {
		path  string
		write func(string, *analysis.Result) error
	}{
		{base + ".csv", WriteTimelineCSV},
		{base + "_VocalDoses.csv", WriteDoseCSV},
		{base + "_VocalDoses.yaml", WriteDoseYAML},
	}

	var written []string
	for _, out := range outputs {
		if err := out.write(out.path, r); err != nil {
			return written, err
		}
		written = append(written, out.path)
	}
	return written, nil
}

// TimelineHeader returns the per-frame CSV column headings
func TimelineHeader(r *analysis.Result) []string {
	return []string{
		"Time (s)",
		fmt.Sprintf("SPL (dBA) @ %d cm", r.TargetDistanceCM()),
		"F0 (Hz)",
		"F0 mov.avg (Hz)",
		"CPPS (dB)",
		"CPPS mov.avg (dB)",
		fmt.Sprintf("Leq %s s (dBA)", strconv.FormatFloat(r.Options.LeqWindow, 'f', -1, 64)),
	}
}

// WriteTimelineCSV writes one row per aligned frame
func WriteTimelineCSV(path string, r *analysis.Result) error {
	return writeCSV(path, func(w *csv.Writer) error {
		if err := w.Write(TimelineHeader(r)); err != nil {
			return err
		}
		tl := r.Timeline
		if tl == nil {
			return nil
		}
		for i := 0; i < tl.Len(); i++ {
			row := []string{
				formatCSV(tl.Time[i]),
				formatCSV(at(tl.SPL, i)),
				formatCSV(at(tl.F0, i)),
				formatCSV(at(tl.F0Mean, i)),
				formatCSV(at(tl.CPPS, i)),
				formatCSV(at(tl.CPPSMean, i)),
				formatCSV(at(tl.Leq, i)),
			}
			if err := w.Write(row); err != nil {
				return err
			}
		}
		return nil
	})
}

// WriteDoseCSV writes the dose vector under its column headings
func WriteDoseCSV(path string, r *analysis.Result) error {
	return writeCSV(path, func(w *csv.Writer) error {
		if err := w.Write(dose.Labels[:]); err != nil {
			return err
		}
		values := r.Dose.Values()
		row := make([]string, len(values))
		for i, v := range values {
			row[i] = formatCSV(v)
		}
		return w.Write(row)
	})
}

func writeCSV(path string, fill func(*csv.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := fill(w); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	return f.Close()
}

func formatCSV(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func at(s []float64, i int) float64 {
	if i < len(s) {
		return s[i]
	}
	return 0
}

// DoseSummary is the YAML record of one run
type DoseSummary struct {
	File       string      `yaml:"file"`
	Gender     dose.Gender `yaml:"gender"`
	FreqLowHz  float64     `yaml:"freq_low_hz"`
	FreqHighHz float64     `yaml:"freq_high_hz"`

	Calibrated            bool    `yaml:"calibrated"`
	CalibrationConstant   float64 `yaml:"calibration_constant"`
	CalibrationDistanceCM int     `yaml:"calibration_distance_cm"`
	TargetDistanceCM      int     `yaml:"target_distance_cm"`
	DistanceCorrectionDB  float64 `yaml:"distance_correction_db"`

	Frames       int `yaml:"frames"`
	VoicedFrames int `yaml:"voiced_frames"`

	Doses    DoseValues `yaml:"doses"`
	Warnings []string   `yaml:"warnings,omitempty"`
}

// DoseValues mirrors dose.Vector with YAML keys
type DoseValues struct {
	Dt        float64 `yaml:"dt_s"`
	VLI       float64 `yaml:"vli_kcycles"`
	Dd        float64 `yaml:"dd_m"`
	De        float64 `yaml:"de_j"`
	Dr        float64 `yaml:"dr_j"`
	DtPercent float64 `yaml:"dt_percent"`
	DdRate    float64 `yaml:"dd_rate_m_per_s"`
	DeRate    float64 `yaml:"de_rate_j_per_s"`
	DrRate    float64 `yaml:"dr_rate_j_per_s"`
	SPLMean   float64 `yaml:"spl_mean_dba"`
	F0Mean    float64 `yaml:"f0_mean_hz"`
	SPLStdDev float64 `yaml:"spl_sd_dba"`
	F0StdDev  float64 `yaml:"f0_sd_hz"`
}

// NewDoseSummary collects the YAML record for r
func NewDoseSummary(r *analysis.Result) DoseSummary {
	d := r.Dose
	return DoseSummary{
		File:                  filepath.Base(r.InputPath),
		Gender:                r.Options.Gender,
		FreqLowHz:             r.Options.FreqLow,
		FreqHighHz:            r.Options.FreqHigh,
		Calibrated:            r.Calibration.Calibrated,
		CalibrationConstant:   r.Calibration.Constant,
		CalibrationDistanceCM: r.CalibrationDistanceCM(),
		TargetDistanceCM:      r.TargetDistanceCM(),
		DistanceCorrectionDB:  r.Stats.DistanceCorrection,
		Frames:                r.Stats.Frames,
		VoicedFrames:          r.Stats.Voiced,
		Doses: DoseValues{
			Dt: d.Dt, VLI: d.VLI, Dd: d.Dd, De: d.De, Dr: d.Dr,
			DtPercent: d.DtPercent, DdRate: d.DdRate, DeRate: d.DeRate, DrRate: d.DrRate,
			SPLMean: d.SPLMean, F0Mean: d.F0Mean, SPLStdDev: d.SPLStdDev, F0StdDev: d.F0StdDev,
		},
		Warnings: r.Warnings,
	}
}

// WriteDoseYAML writes the YAML summary
func WriteDoseYAML(path string, r *analysis.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	enc := yaml.NewEncoder(f)
	enc.SetIndent(2)
	if err := enc.Encode(NewDoseSummary(r)); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	return f.Close()
}
