package main

import (
	"context"

	"github.com/rs/zerolog/log"

	"loan-predictor/internal/api"
	"loan-predictor/internal/app"
	"loan-predictor/internal/cfg"
	"loan-predictor/internal/common"
)

func main() {
	c, err := cfg.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}
	if err := common.SetupLogging(c.LogLevel, c.LogFormat); err != nil {
		log.Fatal().Err(err).Msg("logging setup failed")
	}

	a, err := app.New(c)
	if err != nil {
		log.Fatal().Err(err).Msg("startup failed")
	}
	defer a.Close()

	srv := api.NewServer(a.Service, api.Options{
		Port:             c.APIPort,
		ReadTimeout:      c.ReadTimeout,
		WriteTimeout:     c.WriteTimeout,
		InferenceTimeout: c.InferenceTimeout,
		Metrics:          a.Metrics,
		Source:           common.SourceAPI,
	})

	if err := app.Serve(context.Background(), srv, c.ShutdownTimeout); err != nil {
		log.Error().Err(err).Msg("prediction API failed")
	}
}
