package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/twiced-technology-gmbh/taskwatch/internal/history"
	"github.com/twiced-technology-gmbh/taskwatch/internal/output"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent task runs",
	Long:  `Lists the run history: starts, stops and exits of tasks run through taskwatch.`,
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntP("limit", "n", 20, "number of entries to show (0 for all)") //nolint:mnd // default page size
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	limit, _ := cmd.Flags().GetInt("limit")

	entries, err := history.Open(cfg.HistoryPath()).Read(limit)
	if err != nil {
		return err
	}

	switch outputFormat() {
	case output.FormatJSON:
		if entries == nil {
			entries = []history.Entry{}
		}
		return output.JSON(os.Stdout, entries)
	case output.FormatCompact:
		output.HistoryCompact(os.Stdout, entries)
	default:
		output.HistoryTable(os.Stdout, entries)
	}
	return nil
}
