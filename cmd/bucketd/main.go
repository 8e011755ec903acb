package main

import (
	"flag"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/databuckets/internal/app"
	"github.com/dokzlo13/databuckets/internal/config"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "config.yaml", "Path to configuration file")
	flag.StringVar(&configPath, "c", "config.yaml", "Path to configuration file (shorthand)")
	sweep := flag.Bool("sweep", false, "Delete expired buckets from the database and exit")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal().Err(err).Str("config", configPath).Msg("Failed to load configuration")
	}

	setupLogging(cfg.Log)
	log.Info().
		Str("config", configPath).
		Str("driver", cfg.Database.Driver).
		Uint32("zone_id", cfg.Zone.ID).
		Uint32("instance_id", cfg.Zone.Instance).
		Msg("Starting databuckets")

	application, err := app.New(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create application")
	}

	if *sweep {
		deleted := application.Sweep()
		log.Info().Int64("deleted", deleted).Msg("Expired bucket sweep finished")
		shutdown(application)
		return
	}

	if err := application.Start(app.SignalContext()); err != nil {
		log.Fatal().Err(err).Msg("Failed to start application")
	}

	application.Wait()
	shutdown(application)
}

func shutdown(a *app.App) {
	if err := a.Stop(); err != nil {
		log.Error().Err(err).Msg("Error during shutdown")
	}
}

func setupLogging(cfg config.LogConfig) {
	zerolog.TimeFieldFormat = time.RFC3339

	var out io.Writer = os.Stderr
	if !cfg.UseJSON {
		out = zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: "2006-01-02T15:04:05.000Z07:00",
			NoColor:    !cfg.Colors,
		}
	}
	log.Logger = zerolog.New(out).With().Timestamp().Logger()

	level, err := zerolog.ParseLevel(cfg.GetLevel())
	if err != nil || level == zerolog.NoLevel {
		log.Warn().Str("level", cfg.Level).Msg("Unknown log level, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
}
