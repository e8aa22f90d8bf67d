package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jmcgill52/winprep/buildinfo"
)

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Run: func(cmd *cobra.Command, args []string) {
			props := buildinfo.Get()
			fmt.Fprintf(cmd.OutOrStdout(), "winprep %s (commit %s, built %s)\n",
				props.Version, props.GitCommit, props.BuildTime)
		},
	}
}
