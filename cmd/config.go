package cmd

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/twiced-technology-gmbh/taskwatch/internal/clierr"
	"github.com/twiced-technology-gmbh/taskwatch/internal/config"
	"github.com/twiced-technology-gmbh/taskwatch/internal/output"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or modify taskwatch configuration",
	Long:  `View the full configuration, get a specific key, or set a writable value.`,
	RunE:  runConfigShow,
}

var configGetCmd = &cobra.Command{
	Use:   "get KEY",
	Short: "Get a configuration value",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigGet,
}

var configSetCmd = &cobra.Command{
	Use:   "set KEY VALUE",
	Short: "Set a configuration value",
	Long: `Sets a writable key. List values (workspace.folders, workspace.exclude,
language_server.args) take a comma-separated VALUE.`,
	Args: cobra.ExactArgs(2), //nolint:mnd // key and value
	RunE: runConfigSet,
}

func init() {
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
	rootCmd.AddCommand(configCmd)
}

// configAccessor describes how to get and set a config key.
type configAccessor struct {
	get      func(*config.Config) any
	set      func(*config.Config, string) error
	writable bool
}

func configAccessors() map[string]configAccessor {
	return map[string]configAccessor{
		"version": {
			get: func(c *config.Config) any { return c.Version },
		},
		"mode": {
			get: func(c *config.Config) any { return c.Mode },
			set: func(c *config.Config, v string) error {
				c.Mode = v
				return nil // validation checks the allowed modes
			},
			writable: true,
		},
		"workspace.folders": {
			get:      func(c *config.Config) any { return c.Workspace.Folders },
			set:      func(c *config.Config, v string) error { c.Workspace.Folders = splitList(v); return nil },
			writable: true,
		},
		"workspace.pattern": {
			get:      func(c *config.Config) any { return c.Workspace.Pattern },
			set:      func(c *config.Config, v string) error { c.Workspace.Pattern = v; return nil },
			writable: true,
		},
		"workspace.exclude": {
			get:      func(c *config.Config) any { return c.Workspace.Exclude },
			set:      func(c *config.Config, v string) error { c.Workspace.Exclude = splitList(v); return nil },
			writable: true,
		},
		"runner.binary": {
			get:      func(c *config.Config) any { return c.Runner.Binary },
			set:      func(c *config.Config, v string) error { c.Runner.Binary = v; return nil },
			writable: true,
		},
		"language_server.command": {
			get:      func(c *config.Config) any { return c.LanguageServer.Command },
			set:      func(c *config.Config, v string) error { c.LanguageServer.Command = v; return nil },
			writable: true,
		},
		"language_server.args": {
			get:      func(c *config.Config) any { return c.LanguageServer.Args },
			set:      func(c *config.Config, v string) error { c.LanguageServer.Args = splitList(v); return nil },
			writable: true,
		},
		"explorer.action": {
			get:      func(c *config.Config) any { return c.Explorer.Action },
			set:      func(c *config.Config, v string) error { c.Explorer.Action = v; return nil },
			writable: true,
		},
		"history.enabled": {
			get: func(c *config.Config) any { return c.History.Enabled },
			set: func(c *config.Config, v string) error {
				b, err := strconv.ParseBool(v)
				if err != nil {
					return clierr.Newf(clierr.InvalidInput,
						"invalid history.enabled %q: must be true or false", v)
				}
				c.History.Enabled = b
				return nil
			},
			writable: true,
		},
		"path": {
			get: func(c *config.Config) any { return c.Path() },
		},
	}
}

// allConfigKeys returns config keys in display order.
func allConfigKeys() []string {
	return []string{
		"version",
		"path",
		"mode",
		"workspace.folders",
		"workspace.pattern",
		"workspace.exclude",
		"runner.binary",
		"language_server.command",
		"language_server.args",
		"explorer.action",
		"history.enabled",
	}
}

// splitList parses a comma-separated list, dropping empty items.
func splitList(v string) []string {
	var items []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

func runConfigShow(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	accessors := configAccessors()

	if outputFormat() == output.FormatJSON {
		m := make(map[string]any, len(accessors))
		for _, key := range allConfigKeys() {
			m[key] = accessors[key].get(cfg)
		}
		return output.JSON(os.Stdout, m)
	}

	for _, key := range allConfigKeys() {
		val := accessors[key].get(cfg)
		fmt.Fprintf(os.Stdout, "%-24s %v\n", key, formatConfigValue(val))
	}
	return nil
}

func runConfigGet(_ *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	key := args[0]
	acc, ok := configAccessors()[key]
	if !ok {
		return clierr.Newf(clierr.InvalidInput, "unknown config key %q", key)
	}

	val := acc.get(cfg)

	if outputFormat() == output.FormatJSON {
		return output.JSON(os.Stdout, val)
	}

	fmt.Fprintln(os.Stdout, formatConfigValue(val))
	return nil
}

func runConfigSet(_ *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	key, value := args[0], args[1]
	acc, ok := configAccessors()[key]
	if !ok {
		return clierr.Newf(clierr.InvalidInput, "unknown config key %q", key)
	}
	if !acc.writable {
		return clierr.Newf(clierr.InvalidInput, "config key %q is read-only", key)
	}

	if err := acc.set(cfg, value); err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return clierr.Wrap(clierr.InvalidInput, err, "%s", err.Error())
	}

	if err := cfg.Save(); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}

	if outputFormat() == output.FormatJSON {
		return output.JSON(os.Stdout, map[string]any{"key": key, "value": acc.get(cfg)})
	}

	output.Messagef(os.Stdout, "Set %s = %v", key, formatConfigValue(acc.get(cfg)))
	return nil
}

func formatConfigValue(val any) string {
	switch v := val.(type) {
	case []string:
		if len(v) == 0 {
			return "--"
		}
		return strings.Join(v, ", ")
	case string:
		if v == "" {
			return "--"
		}
		return v
	default:
		return fmt.Sprintf("%v", v)
	}
}
