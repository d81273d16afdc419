package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"

	"github.com/urfave/cli/v3"

	"loan-predictor/internal/app"
	"loan-predictor/internal/common"
	"loan-predictor/internal/features"
)

const inputFlag = "input"

// recordFlags mirror the /predict body. Values are parsed by the same code
// that parses form posts.
var recordFlags = []string{
	"age",
	"cash_incoming_30days",
	"gps_fix_count",
	"unique_locations_count",
	"avg_time_between_opens",
	"night_usage_ratio",
	"num_clusters",
}

type predictOutput struct {
	ID            string             `json:"id"`
	Prediction    string             `json:"prediction"`
	Probability   float64            `json:"probability"`
	IncomeBracket string             `json:"income_bracket"`
	Features      map[string]float64 `json:"features"`
}

func predictCmd() *cli.Command {
	flags := []cli.Flag{
		&cli.StringFlag{Name: inputFlag, Usage: "JSON file with one applicant record (- for stdin)"},
	}
	for _, name := range recordFlags {
		flags = append(flags, &cli.StringFlag{Name: name, Usage: "Applicant " + name})
	}

	return &cli.Command{
		Name:  "predict",
		Usage: "Score one applicant with the configured artifacts",
		Flags: flags,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			rec, err := readRecord(cmd)
			if err != nil {
				return err
			}

			settings, err := loadSettings(cmd)
			if err != nil {
				return err
			}
			a, err := app.New(settings)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.Service.Predict(ctx, rec, common.SourceCLI)
			if err != nil {
				return fmt.Errorf("prediction failed: %w", err)
			}

			enc := json.NewEncoder(output(cmd))
			enc.SetIndent("", "  ")
			return enc.Encode(predictOutput{
				ID:            res.ID,
				Prediction:    res.Prediction,
				Probability:   res.Probability,
				IncomeBracket: res.Bracket,
				Features:      res.Features.Map(),
			})
		},
	}
}

func readRecord(cmd *cli.Command) (features.UserRecord, error) {
	switch path := cmd.String(inputFlag); path {
	case "":
		values := url.Values{}
		for _, name := range recordFlags {
			if cmd.IsSet(name) {
				values.Set(name, cmd.String(name))
			}
		}
		return features.ParseValues(values)
	case "-":
		return features.DecodeRecord(os.Stdin)
	default:
		f, err := os.Open(path)
		if err != nil {
			return features.UserRecord{}, fmt.Errorf("opening input: %w", err)
		}
		defer f.Close()
		return features.DecodeRecord(f)
	}
}
