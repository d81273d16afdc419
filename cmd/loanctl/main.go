package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"

	"loan-predictor/internal/cfg"
	"loan-predictor/internal/common"
)

const (
	formatJSON = "json"
	formatYAML = "yaml"
)

var (
	version = "v0.0.1-default"
	commit  = ""
)

const (
	debugFlag    = "debug"
	scalerFlag   = "scaler"
	modelFlag    = "model"
	metadataFlag = "metadata"
	dataFlag     = "data"
)

func main() {
	if err := newApp().Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:    "loanctl",
		Version: fmt.Sprintf("%s (commit: %s)", version, commit),
		Usage:   "Score applicants and inspect loan model artifacts",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: debugFlag, Usage: "Prints verbose logs"},
			&cli.StringFlag{Name: scalerFlag, Usage: "Path to the scaler artifact (overrides SCALER_PATH)"},
			&cli.StringFlag{Name: modelFlag, Usage: "Path or URL of the classifier (overrides MODEL_PATH)"},
			&cli.StringFlag{Name: metadataFlag, Usage: "Path to model metadata (overrides METADATA_PATH)"},
			&cli.StringFlag{Name: dataFlag, Usage: "Directory holding the prediction journal (overrides DATA_PATH)"},
		},
		Commands: []*cli.Command{
			predictCmd(),
			inspectCmd(),
			journalCmd(),
		},
	}
}

// loadSettings resolves configuration the same way the servers do, then
// applies command line overrides.
func loadSettings(cmd *cli.Command) (cfg.Settings, error) {
	level := "warn"
	if cmd.Bool(debugFlag) {
		level = "debug"
	}
	if err := common.SetupLogging(level, common.LogFormatConsole); err != nil {
		return cfg.Settings{}, err
	}

	s, err := cfg.Load()
	if err != nil {
		return cfg.Settings{}, fmt.Errorf("loading config: %w", err)
	}
	if v := cmd.String(scalerFlag); v != "" {
		s.ScalerPath = v
	}
	if v := cmd.String(modelFlag); v != "" {
		s.ModelPath = v
	}
	if v := cmd.String(metadataFlag); v != "" {
		s.MetadataPath = v
	}
	if v := cmd.String(dataFlag); v != "" {
		s.DataPath = v
	}
	s.EnableMetrics = false
	return s, nil
}

func output(cmd *cli.Command) io.Writer {
	if w := cmd.Root().Writer; w != nil {
		return w
	}
	return os.Stdout
}
