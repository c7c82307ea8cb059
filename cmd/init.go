package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/twiced-technology-gmbh/taskwatch/internal/config"
	"github.com/twiced-technology-gmbh/taskwatch/internal/output"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default taskwatch config",
	Long:  `Creates ` + config.ConfigFileName + ` with default settings in the current directory (or --dir).`,
	Args:  cobra.NoArgs,
	RunE:  runInit,
}

func init() {
	initCmd.Flags().String("mode", config.ModeLocal, "task discovery mode (local, remote)")
	initCmd.Flags().String("action", config.ActionOpen, "explorer action on enter (open, run, none)")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, _ []string) error {
	dir, err := startDir()
	if err != nil {
		return err
	}

	cfg, err := config.Init(dir)
	if err != nil {
		return err
	}

	mode, _ := cmd.Flags().GetString("mode")
	action, _ := cmd.Flags().GetString("action")
	if mode != cfg.Mode || action != cfg.Explorer.Action {
		cfg.Mode = mode
		cfg.Explorer.Action = action
		if err := cfg.Validate(); err != nil {
			_ = os.Remove(cfg.Path())
			return err
		}
		if err := cfg.Save(); err != nil {
			return err
		}
	}

	if outputFormat() == output.FormatJSON {
		return output.JSON(os.Stdout, map[string]string{
			"status": "initialized",
			"config": cfg.Path(),
			"mode":   cfg.Mode,
		})
	}

	output.Messagef(os.Stdout, "Initialized %s", cfg.Path())
	output.Messagef(os.Stdout, "  Folders: %v", cfg.Workspace.Folders)
	output.Messagef(os.Stdout, "  Pattern: %s", cfg.Workspace.Pattern)
	output.Messagef(os.Stdout, "  Mode:    %s", cfg.Mode)
	return nil
}
