package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"loan-predictor/internal/storage"
)

const (
	tailDefault = 10
	formatCSV   = "csv"
)

const (
	tailCountFlag = "n"
	exportOutFlag = "out"
	sinceFlag     = "since"
	untilFlag     = "until"
)

var errNoJournal = errors.New("no journal configured: set DATA_PATH or --data")

func journalCmd() *cli.Command {
	return &cli.Command{
		Name:  "journal",
		Usage: "Read the prediction journal",
		Commands: []*cli.Command{
			{
				Name:  "tail",
				Usage: "Print the most recent predictions, newest first",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: tailCountFlag, Aliases: []string{"count"}, Usage: "Number of predictions to show", Value: tailDefault},
				},
				Action: runTail,
			},
			{
				Name:  "export",
				Usage: "Export predictions in a time range as CSV or JSON",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: exportOutFlag, Usage: "File to write (- for stdout)", Value: "-"},
					&cli.StringFlag{Name: formatFlag, Usage: "Output format [csv, json]", Value: formatCSV},
					&cli.StringFlag{Name: sinceFlag, Usage: "Start of range, RFC3339 or YYYY-MM-DD (default: beginning of journal)"},
					&cli.StringFlag{Name: untilFlag, Usage: "End of range, RFC3339 or YYYY-MM-DD (default: now)"},
				},
				Action: runExport,
			},
		},
	}
}

func openJournal(cmd *cli.Command) (*storage.Store, error) {
	settings, err := loadSettings(cmd)
	if err != nil {
		return nil, err
	}
	if settings.DataPath == "" {
		return nil, errNoJournal
	}
	return storage.New(settings.DataPath)
}

func runTail(_ context.Context, cmd *cli.Command) error {
	store, err := openJournal(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	records, err := store.Recent(int(cmd.Int(tailCountFlag)))
	if err != nil {
		return fmt.Errorf("reading journal: %w", err)
	}

	enc := json.NewEncoder(output(cmd))
	for _, r := range records {
		if err := enc.Encode(r); err != nil {
			return err
		}
	}
	return nil
}

func runExport(_ context.Context, cmd *cli.Command) error {
	start, err := parseTime(cmd.String(sinceFlag), time.Unix(0, 0))
	if err != nil {
		return fmt.Errorf("invalid --since: %w", err)
	}
	end, err := parseTime(cmd.String(untilFlag), time.Now())
	if err != nil {
		return fmt.Errorf("invalid --until: %w", err)
	}
	if end.Before(start) {
		return fmt.Errorf("--until %s is before --since %s", end.Format(time.RFC3339), start.Format(time.RFC3339))
	}
	format := cmd.String(formatFlag)
	if format != formatCSV && format != formatJSON {
		return fmt.Errorf("unsupported format %q", format)
	}

	store, err := openJournal(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	var w io.Writer = output(cmd)
	if path := cmd.String(exportOutFlag); path != "-" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("creating %s: %w", path, err)
		}
		defer f.Close()
		w = f
	}

	n, err := exportRecords(store, w, format, start, end)
	if err != nil {
		return err
	}
	log.Info().Int("records", n).Str("format", format).Msg("journal exported")
	return nil
}

func exportRecords(store *storage.Store, w io.Writer, format string, start, end time.Time) (int, error) {
	if format == formatCSV {
		return store.ExportCSV(w, start, end)
	}

	records, err := store.GetPredictionsInRange(start, end)
	if err != nil {
		return 0, fmt.Errorf("reading journal: %w", err)
	}
	if records == nil {
		records = []storage.Record{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return len(records), enc.Encode(records)
}

// parseTime accepts RFC3339 or a bare date, which means midnight UTC.
func parseTime(v string, fallback time.Time) (time.Time, error) {
	if v == "" {
		return fallback, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	return time.Parse(time.DateOnly, v)
}
