package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	hubadapter "github.com/bnema/hubcull/internal/adapters/hub"
	"github.com/bnema/hubcull/internal/application"
	"github.com/bnema/hubcull/internal/domain"
	"github.com/bnema/hubcull/internal/ports"
)

func newLogger(out io.Writer, debug bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}

	output := zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: time.RFC3339,
	}
	return zerolog.New(output).With().Timestamp().Str("app", "hubcull").Logger().Level(level)
}

func wireCuller(cfg cullConfig, logger zerolog.Logger) (*application.Culler, error) {
	client, err := hubadapter.NewClient(hubadapter.Config{
		BaseURL:        cfg.URL,
		Token:          cfg.Token,
		Concurrency:    cfg.Concurrency,
		RequestTimeout: cfg.RequestTimeout,
		Logger:         logger,
	})
	if err != nil {
		return nil, fmt.Errorf("wire hub client: %w", err)
	}

	settings := application.Settings{
		Params: domain.CullParams{
			InactiveLimit:       cfg.InactiveLimit,
			MaxAge:              cfg.MaxAge,
			CullDefaultSessions: cfg.CullDefaultSessions,
			CullNamedSessions:   cfg.CullNamedSessions,
			CullAdminAccounts:   cfg.CullAdminAccounts,
		},
		CullAccounts:        cfg.CullAccounts,
		RemoveNamedSessions: cfg.RemoveNamedSessions,
		APIPageSize:         cfg.APIPageSize,
	}

	return application.NewCuller(client, settings, logger, ports.SystemClock{}), nil
}
