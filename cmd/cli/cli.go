// Package cli wires the winprep command tree.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jmcgill52/winprep/config"
	"github.com/jmcgill52/winprep/logging"
)

// Execute runs the root command.
func Execute() error {
	return newRootCommand().Execute()
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "winprep",
		Short:         "Workstation deployment orchestrator",
		Long:          "winprep provisions a Windows workstation by running a configured pipeline of deployment tasks: parallel groups first, then an ordered sequential tail.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newRunCommand(),
		newStatusCommand(),
		newAgentCommand(),
		newVersionCommand(),
	)

	return root
}

// setup loads the configuration and builds the logger every command
// shares.
func setup(configPath string) (config.Config, *logging.Logger, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("loading config %q: %w", configPath, err)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("initializing logging: %w", err)
	}

	return cfg, logger, nil
}
