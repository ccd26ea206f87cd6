package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bnema/hubcull/internal/domain"
)

// cullConfig is the immutable configuration for cull runs, resolved
// once from flags, environment, and the optional config file.
type cullConfig struct {
	URL   string
	Token string

	InactiveLimit time.Duration
	MaxAge        time.Duration

	CullAccounts        bool
	RemoveNamedSessions bool
	CullAdminAccounts   bool
	CullDefaultSessions bool
	CullNamedSessions   bool

	Concurrency    int
	APIPageSize    int
	RequestTimeout time.Duration

	Every time.Duration
	Debug bool
}

func newCullCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cull",
		Short: "Run the idle-culling reconciliation",
		Long:  "Reconcile the hub's sessions and accounts against the idleness/age policy once, or repeatedly with --cull-every.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := resolveCullConfig(cmd)
			if err != nil {
				return err
			}

			logger := newLogger(cmd.ErrOrStderr(), cfg.Debug)
			culler, err := wireCuller(cfg, logger)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if cfg.Every <= 0 {
				_, err := culler.Run(ctx)
				return err
			}

			// Periodic mode: one run immediately, then on the interval.
			// A failed run is logged and retried on the next tick.
			if _, err := culler.Run(ctx); err != nil {
				logger.Error().Err(err).Msg("cull run failed")
			}
			ticker := time.NewTicker(cfg.Every)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
					if _, err := culler.Run(ctx); err != nil {
						logger.Error().Err(err).Msg("cull run failed")
					}
				}
			}
		},
	}

	flags := cmd.Flags()
	flags.String("url", "", "Hub API URL (env HUBCULL_API_URL)")
	flags.String("token", "", "Hub API token (env HUBCULL_API_TOKEN)")
	flags.Int("timeout", 600, "Idle timeout in seconds; sessions inactive at least this long are culled")
	flags.Int("max-age", 0, "Maximum session/account age in seconds, culled even if active (0 disables)")
	flags.Bool("cull-users", false, "Delete accounts whose sessions have all been stopped")
	flags.Bool("remove-named-servers", false, "Remove culled named sessions instead of only stopping them")
	flags.Bool("cull-admin-users", true, "Allow culling admin accounts (with --cull-users)")
	flags.Bool("cull-default-servers", true, "Allow culling default sessions")
	flags.Bool("cull-named-servers", true, "Allow culling named sessions")
	flags.Int("concurrency", 10, "Maximum concurrent hub API requests (0 for unlimited)")
	flags.Int("api-page-size", 0, "Accounts to request per listing page (0 for the server default)")
	flags.Int("request-timeout", 60, "Per-request timeout in seconds")
	flags.Int("cull-every", 0, "Interval in seconds between runs (0 runs once and exits)")
	flags.String("config", "", "TOML config file providing defaults for these flags")
	flags.Bool("debug", false, "Enable debug logging")

	return cmd
}

// resolveCullConfig merges, in order of precedence: explicit flags,
// environment variables, the config file, and flag defaults.
func resolveCullConfig(cmd *cobra.Command) (cullConfig, error) {
	v := viper.New()
	v.SetConfigType("toml")

	if path, err := cmd.Flags().GetString("config"); err == nil && path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return cullConfig{}, fmt.Errorf("read config file: %w", err)
		}
	}

	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return cullConfig{}, fmt.Errorf("bind flags: %w", err)
	}
	_ = v.BindEnv("url", "HUBCULL_API_URL", "JUPYTERHUB_API_URL")
	_ = v.BindEnv("token", "HUBCULL_API_TOKEN", "JUPYTERHUB_API_TOKEN")

	cfg := cullConfig{
		URL:                 v.GetString("url"),
		Token:               v.GetString("token"),
		InactiveLimit:       time.Duration(v.GetInt("timeout")) * time.Second,
		MaxAge:              time.Duration(v.GetInt("max-age")) * time.Second,
		CullAccounts:        v.GetBool("cull-users"),
		RemoveNamedSessions: v.GetBool("remove-named-servers"),
		CullAdminAccounts:   v.GetBool("cull-admin-users"),
		CullDefaultSessions: v.GetBool("cull-default-servers"),
		CullNamedSessions:   v.GetBool("cull-named-servers"),
		Concurrency:         v.GetInt("concurrency"),
		APIPageSize:         v.GetInt("api-page-size"),
		RequestTimeout:      time.Duration(v.GetInt("request-timeout")) * time.Second,
		Every:               time.Duration(v.GetInt("cull-every")) * time.Second,
		Debug:               v.GetBool("debug"),
	}

	if cfg.URL == "" {
		return cullConfig{}, domain.ErrMissingURL
	}
	if cfg.Token == "" {
		return cullConfig{}, domain.ErrMissingToken
	}
	if cfg.InactiveLimit <= 0 {
		return cullConfig{}, errors.New("timeout must be positive")
	}

	return cfg, nil
}
