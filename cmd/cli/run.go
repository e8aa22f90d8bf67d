package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jmcgill52/winprep/config"
	"github.com/jmcgill52/winprep/logging"
	"github.com/jmcgill52/winprep/metrics"
	"github.com/jmcgill52/winprep/orchestrator"
	"github.com/jmcgill52/winprep/report"
)

func newRunCommand() *cobra.Command {
	var (
		configPath string
		validate   bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute the deployment pipeline once",
		Long:  "Runs every configured task: parallel groups in declaration order, then the sequential tail. The exit code is zero only when no task failed.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(configPath)
			if err != nil {
				return err
			}
			return runDeployment(cmd, cfg, logger, validate)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to the configuration file (required)")
	cmd.Flags().BoolVar(&validate, "validate", false, "Validate the configuration and task registry without running anything")
	_ = cmd.MarkFlagRequired("config")

	return cmd
}

func runDeployment(cmd *cobra.Command, cfg config.Config, logger *logging.Logger, validate bool) error {
	deploy, err := deploymentMetrics(cfg, logger)
	if err != nil {
		return err
	}

	orch, err := orchestrator.New(cfg, logger.Logger, orchestrator.WithMetrics(deploy))
	if err != nil {
		return err
	}

	if validate {
		fmt.Fprintf(cmd.OutOrStdout(), "configuration valid: %d tasks registered\n", orch.Registry().Len())
		return nil
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	outcome, err := orch.Run(ctx)
	if err != nil {
		return err
	}

	fmt.Fprint(cmd.OutOrStdout(), report.Render(outcome.Results, outcome.RebootRequired))

	if outcome.Summary.Failed > 0 {
		return fmt.Errorf("%d of %d tasks failed", outcome.Summary.Failed, outcome.Summary.Total)
	}
	return nil
}

// deploymentMetrics builds the push-mode metric set, or a no-op set
// when monitoring is not configured.
func deploymentMetrics(cfg config.Config, logger *logging.Logger) (*metrics.Deployment, error) {
	if cfg.Monitoring.PushURL == "" {
		return metrics.NewDeployment(metrics.NewNoopRegistry())
	}

	hostname, err := os.Hostname()
	if err != nil {
		logger.Warn("failed to determine hostname for metrics", "error", err)
		hostname = "unknown"
	}

	reg := metrics.NewPushRegistry(metrics.PushConfig{
		URL:      cfg.Monitoring.PushURL,
		Prefix:   cfg.Monitoring.MetricsPrefix,
		Job:      cfg.Monitoring.JobName,
		Instance: hostname,
	})

	deploy, err := metrics.NewDeployment(reg)
	if err != nil {
		return nil, fmt.Errorf("initializing metrics: %w", err)
	}
	return deploy, nil
}
