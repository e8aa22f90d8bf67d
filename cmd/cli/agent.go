package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jmcgill52/winprep/metrics"
	"github.com/jmcgill52/winprep/orchestrator"
	"github.com/jmcgill52/winprep/server"
	"github.com/jmcgill52/winprep/statestore"
)

func newAgentCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Run the resident agent with its HTTP API",
		Long:  "Serves /api/health, /api/status, /api/run, and /metrics, and optionally re-runs the deployment pipeline on a cron schedule. Runs until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(configPath)
			if err != nil {
				return err
			}

			store, err := statestore.NewDiskStore(cfg.State.Dir, logger.Logger)
			if err != nil {
				return err
			}

			scrape, err := metrics.NewScrapeRegistry()
			if err != nil {
				return err
			}
			deploy, err := metrics.NewDeployment(scrape)
			if err != nil {
				return err
			}

			orch, err := orchestrator.New(cfg, logger.Logger,
				orchestrator.WithStateStore(store),
				orchestrator.WithMetrics(deploy),
			)
			if err != nil {
				return err
			}

			opts := []server.Option{
				server.WithMetricsHandler(scrape.Handler()),
			}
			if cfg.Agent.RunTokenHash != "" {
				opts = append(opts, server.WithRunTokenHash(cfg.Agent.RunTokenHash))
			}
			if cfg.Agent.Schedule != "" {
				opts = append(opts, server.WithSchedule(cfg.Agent.Schedule))
			}

			srv, err := server.New(cfg.Agent.ListenAddr, orch, store, logger.Logger, opts...)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return srv.Serve(ctx)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to the configuration file (required)")
	_ = cmd.MarkFlagRequired("config")

	return cmd
}
