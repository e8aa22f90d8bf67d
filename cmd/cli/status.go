package cli

import (
	"encoding/json"
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jmcgill52/winprep/statestore"
)

func newStatusCommand() *cobra.Command {
	var (
		configPath string
		asJSON     bool
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the last recorded outcome of every task",
		Long:  "Reads the persisted task records from the state directory. Works without a network and without triggering any task.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(configPath)
			if err != nil {
				return err
			}

			store, err := statestore.NewDiskStore(cfg.State.Dir, logger.Logger)
			if err != nil {
				return err
			}

			records, err := store.All()
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(records)
			}

			return printStatusTable(cmd, records)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to the configuration file (required)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit the records as JSON")
	_ = cmd.MarkFlagRequired("config")

	return cmd
}

func printStatusTable(cmd *cobra.Command, records map[string]statestore.Record) error {
	if len(records) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no task records found")
		return nil
	}

	names := make([]string, 0, len(records))
	for name := range records {
		names = append(names, name)
	}
	sort.Strings(names)

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TASK\tSTATUS\tEXIT\tWHEN\tDETAIL")
	for _, name := range names {
		rec := records[name]
		exit := "-"
		if rec.ExitCode != nil {
			exit = fmt.Sprintf("%d", *rec.ExitCode)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			name, rec.Status, exit, rec.Timestamp, rec.ErrorMessage)
	}
	return w.Flush()
}
