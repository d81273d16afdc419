package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"

	"loan-predictor/internal/ml"
)

const formatFlag = "format"

func inspectCmd() *cli.Command {
	return &cli.Command{
		Name:  "inspect",
		Usage: "Load the artifacts and print what the model expects",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: formatFlag, Usage: "Output format [json, yaml]", Value: formatJSON},
		},
		Action: func(_ context.Context, cmd *cli.Command) error {
			settings, err := loadSettings(cmd)
			if err != nil {
				return err
			}

			artifacts, err := ml.LoadArtifacts(settings.ScalerPath, settings.ModelPath, settings.MetadataPath, ml.LoadOptions{
				PythonPath: settings.PythonPath,
				Timeout:    settings.InferenceTimeout,
			})
			if err != nil {
				return err
			}
			svc, err := ml.NewServiceFromArtifacts(artifacts)
			if err != nil {
				return err
			}

			return printInfo(cmd, svc.Info(), cmd.String(formatFlag))
		},
	}
}

func printInfo(cmd *cli.Command, info ml.ModelInfo, format string) error {
	w := output(cmd)
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	case formatYAML, "yml":
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return enc.Encode(info)
	default:
		return fmt.Errorf("unsupported format %q", format)
	}
}
