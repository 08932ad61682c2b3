package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/alecthomas/kong"
)

type helpCLI struct {
	Gender   string   `help:"Speaker gender." default:"male"`
	Plain    bool     `help:"Plain text output."`
	Internal string   `hidden:""`
	Files    []string `arg:"" name:"files" help:"Audio files to analyse." optional:""`
}

func renderHelp(t *testing.T) string {
	t.Helper()
	var cli helpCLI
	var buf bytes.Buffer
	parser, err := kong.New(&cli,
		kong.Name("voxdose"),
		kong.Writers(&buf, &buf),
		kong.Exit(func(int) {}),
		kong.Help(StyledHelpPrinter(kong.HelpOptions{})),
	)
	if err != nil {
		t.Fatalf("kong.New() error = %v", err)
	}
	_, _ = parser.Parse([]string{"--help"})
	return buf.String()
}

func TestStyledHelpPrinter(t *testing.T) {
	output := renderHelp(t)

	for _, want := range []string{
		"Voxdose",
		"Vocal dose estimation from voice recordings",
		"voxdose [flags] <files> ...",
		"-h, --help",
		"--gender=GENDER",
		"Speaker gender.",
		"(default: male)",
		"--plain",
		"Audio files to analyse.",
		"_VocalDoses.csv",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("help should contain %q:\n%s", want, output)
		}
	}
	if strings.Contains(output, "--internal") {
		t.Error("hidden flags should not be listed")
	}
}

func TestFprintVersion(t *testing.T) {
	var buf bytes.Buffer
	FprintVersion(&buf, "1.2.3")
	if !strings.Contains(buf.String(), "Voxdose") || !strings.Contains(buf.String(), "1.2.3") {
		t.Errorf("FprintVersion() = %q", buf.String())
	}
}
