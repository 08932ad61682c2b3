package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/linuxmatters/voxdose/internal/analysis"
	"github.com/linuxmatters/voxdose/internal/cli"
	"github.com/linuxmatters/voxdose/internal/config"
	"github.com/linuxmatters/voxdose/internal/dose"
	"github.com/linuxmatters/voxdose/internal/logging"
	"github.com/linuxmatters/voxdose/internal/mains"
	"github.com/linuxmatters/voxdose/internal/ui"
)

var (
	version = "0.0.1"
)

// CLI defines the command-line interface
type CLI struct {
	Version bool            `short:"v" help:"Show version information"`
	Config  kong.ConfigFlag `short:"c" placeholder:"file" help:"YAML file of flag defaults (keys are flag names)"`

	Gender           dose.Gender `default:"male" placeholder:"gender" help:"Speaker gender: male, female or other"`
	CalibrationFile  string      `type:"existingfile" placeholder:"file" help:"Calibration tone recording"`
	CalibrationLevel *float64    `placeholder:"dBA" help:"Sound level meter reading for the calibration tone"`
	FreqLow          float64     `default:"75" placeholder:"hz" help:"Lowest valid F0 in Hz"`
	FreqHigh         float64     `default:"400" placeholder:"hz" help:"Highest valid F0 in Hz"`
	DistanceCal      float64     `default:"0.30" placeholder:"m" help:"Microphone distance during calibration in metres"`
	TargetDistance   float64     `default:"0" placeholder:"m" help:"Report SPL at this distance in metres (0 keeps the calibration distance)"`
	Report50cm       bool        `name:"report-50cm" help:"Report SPL at 50 cm (calibrated runs only)"`
	F0Window         float64     `name:"f0-window" default:"5" placeholder:"s" help:"F0 moving average window in seconds"`
	CPPSWindow       float64     `name:"cpps-window" default:"5" placeholder:"s" help:"CPPS moving average window in seconds"`
	LeqWindow        float64     `default:"60" placeholder:"s" help:"Moving Leq window in seconds"`
	NoCPPS           bool        `name:"no-cpps" help:"Skip cepstral peak prominence"`
	MainsFrequency   int         `placeholder:"hz" help:"Mains frequency for the hum check (default: detect from timezone)"`

	OutputDir string          `type:"path" placeholder:"dir" help:"Write outputs here instead of next to each input"`
	Logs      bool            `help:"Save a text summary report for each file"`
	Plain     bool            `help:"Print results as plain text instead of the interactive display"`
	LogLevel  config.LogLevel `default:"info" enum:"debug,info,warn,error" placeholder:"level" help:"Log level: debug, info, warn or error"`
	LogFile   string          `type:"path" placeholder:"file" help:"Write logs to this file (interactive mode discards them otherwise)"`

	Files []string `arg:"" name:"files" help:"Audio files to analyse (wav, mp3, flac, ogg)" type:"existingfile" optional:""`
}

// Options converts the flags to analysis options
func (c *CLI) Options() (analysis.Options, error) {
	opts := analysis.DefaultOptions()
	opts.Gender = c.Gender
	opts.CalibrationFile = c.CalibrationFile
	opts.CalibrationLevel = c.CalibrationLevel
	opts.FreqLow = c.FreqLow
	opts.FreqHigh = c.FreqHigh
	opts.CalibrationDistance = c.DistanceCal
	opts.TargetDistance = c.TargetDistance
	opts.Report50cm = c.Report50cm
	opts.F0Window = c.F0Window
	opts.CPPSWindow = c.CPPSWindow
	opts.LeqWindow = c.LeqWindow
	opts.CPPS = !c.NoCPPS
	return opts, opts.Validate()
}

func main() {
	cliArgs := &CLI{}
	kctx := kong.Parse(cliArgs,
		kong.Name("voxdose"),
		kong.Description("Vocal dose estimation from voice recordings"),
		kong.UsageOnError(),
		kong.Configuration(config.YAML, "~/.config/voxdose/config.yaml"),
		kong.Vars{
			"version": version,
		},
		kong.Help(cli.StyledHelpPrinter(kong.HelpOptions{Compact: true})),
	)

	if cliArgs.Version {
		cli.PrintVersion(version)
		os.Exit(0)
	}

	if len(cliArgs.Files) == 0 {
		cli.PrintError("No input files specified")
		_ = kctx.PrintUsage(false)
		os.Exit(1)
	}

	opts, err := cliArgs.Options()
	if err != nil {
		cli.PrintError(err.Error())
		os.Exit(1)
	}

	logOut, closeLog, err := openLog(cliArgs)
	if err != nil {
		cli.PrintError(err.Error())
		os.Exit(1)
	}
	defer closeLog()
	logger := config.NewLogger(cliArgs.LogLevel, logOut)

	hz := cliArgs.MainsFrequency
	if hz == 0 {
		hz = mains.Frequency()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	r := &runner{
		opts:      opts,
		outputDir: cliArgs.OutputDir,
		logs:      cliArgs.Logs,
		tips:      logging.TipContext{MainsFrequency: hz},
		analyzer:  analysis.New(opts, logger),
		logger:    logger,
	}

	var failed int
	if cliArgs.Plain {
		failed = r.runPlain(ctx, cliArgs.Files, os.Stdout)
	} else {
		failed, err = r.runInteractive(ctx, stop, cliArgs.Files)
		if err != nil {
			cli.PrintError(fmt.Sprintf("UI error: %v", err))
			os.Exit(1)
		}
	}
	if failed > 0 {
		os.Exit(1)
	}
}

// openLog picks the log destination: the --log-file if given, stderr in
// plain mode, nothing under the interactive display
func openLog(c *CLI) (io.Writer, func(), error) {
	if c.LogFile != "" {
		f, err := os.OpenFile(c.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}
		return f, func() { f.Close() }, nil
	}
	if c.Plain {
		return os.Stderr, func() {}, nil
	}
	return io.Discard, func() {}, nil
}

// runner analyses each input and writes its outputs
type runner struct {
	opts      analysis.Options
	outputDir string
	logs      bool
	tips      logging.TipContext
	analyzer  *analysis.Analyzer
	logger    *slog.Logger
}

// process runs one file end to end
func (r *runner) process(ctx context.Context, index int, path string, progress analysis.ProgressFunc) ui.FileCompleteMsg {
	start := time.Now()
	log := r.logger.With("file", filepath.Base(path))
	log.Info("analysing", "index", index)

	result, err := r.analyzer.Analyze(ctx, path, r.opts, progress)
	if err != nil {
		log.Error("analysis failed", "error", err)
		return ui.FileCompleteMsg{FileIndex: index, Error: err}
	}
	for _, w := range result.Warnings {
		log.Warn(w)
	}

	tips := logging.GenerateRecordingTips(result, r.tips)

	outputs, err := logging.Export(result, r.outputDir)
	if err != nil {
		log.Error("export failed", "error", err)
		return ui.FileCompleteMsg{FileIndex: index, Result: result, Tips: tips, Outputs: outputs, Error: err}
	}

	if r.logs {
		report, err := logging.GenerateReport(logging.ReportData{
			Result:    result,
			OutputDir: r.outputDir,
			StartTime: start,
			EndTime:   time.Now(),
			Tips:      tips,
		})
		if err != nil {
			log.Error("failed to write report", "error", err)
		} else {
			outputs = append(outputs, report)
		}
	}

	log.Info("done",
		"phonation_s", result.Dose.Dt,
		"distance_m", result.Dose.Dd,
		"voiced_frames", result.Stats.Voiced,
		"elapsed", time.Since(start))
	return ui.FileCompleteMsg{FileIndex: index, Result: result, Tips: tips, Outputs: outputs}
}

// runPlain analyses files in order and prints each result to w
func (r *runner) runPlain(ctx context.Context, files []string, w io.Writer) int {
	failed := 0
	for i, path := range files {
		if ctx.Err() != nil {
			return failed + len(files) - i
		}
		msg := r.process(ctx, i, path, nil)
		if msg.Error != nil {
			cli.PrintWarning(filepath.Base(path), msg.Error.Error())
			failed++
			if msg.Result == nil {
				continue
			}
		}
		logging.DisplayResults(w, msg.Result, msg.Tips, msg.Outputs)
	}
	return failed
}

// runInteractive drives the progress display while files are analysed in
// the background
func (r *runner) runInteractive(ctx context.Context, cancel context.CancelFunc, files []string) (int, error) {
	model := ui.NewModel(files, r.logger)
	p := tea.NewProgram(model, tea.WithAltScreen())

	go func() {
		for i, path := range files {
			if ctx.Err() != nil {
				break
			}
			p.Send(ui.FileStartMsg{FileIndex: i, FileName: path})
			progress := func(stage analysis.Stage, progress float64) {
				p.Send(ui.ProgressMsg{Stage: stage, Progress: progress})
			}
			p.Send(r.process(ctx, i, path, progress))
		}
		p.Send(ui.AllCompleteMsg{})
	}()

	final, err := p.Run()
	// Quitting the display stops any analysis still running
	cancel()
	if err != nil {
		return 0, err
	}

	m, ok := final.(ui.Model)
	if !ok {
		return 0, nil
	}
	// Keep the summary on screen after the alternate screen closes
	if m.Done {
		fmt.Print(m.View())
	}
	// Files never reached count as failed
	return m.TotalFiles - m.CompletedFiles, nil
}
