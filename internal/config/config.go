package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"go.yaml.in/yaml/v3"

	"github.com/twiced-technology-gmbh/taskwatch/internal/clierr"
	"github.com/twiced-technology-gmbh/taskwatch/internal/filelock"
)

const fileMode = 0o600

// Sentinel errors.
var (
	ErrNotFound = errors.New("no taskwatch config found (run 'taskwatch init' to create one)")
	ErrInvalid  = errors.New("invalid config")
)

// Config represents the taskwatch project configuration.
type Config struct {
	Version        int                  `yaml:"version"`
	Workspace      WorkspaceConfig      `yaml:"workspace"`
	Mode           string               `yaml:"mode"`
	Runner         RunnerConfig         `yaml:"runner"`
	LanguageServer LanguageServerConfig `yaml:"language_server,omitempty"`
	Explorer       ExplorerConfig       `yaml:"explorer"`
	History        HistoryConfig        `yaml:"history"`

	// Version 1 fields, moved by migrateV1ToV2.
	LegacyExplorerAction string `yaml:"explorer_action,omitempty"`
	LegacyBinary         string `yaml:"binary,omitempty"`

	// path is the absolute path of the config file (not serialized).
	path string `yaml:"-"`
	// root overrides the directory relative folders resolve against.
	root string `yaml:"-"`
}

// WorkspaceConfig defines where Taskfiles are discovered.
type WorkspaceConfig struct {
	Folders []string `yaml:"folders"`
	Pattern string   `yaml:"pattern"`
	Exclude []string `yaml:"exclude,omitempty"`
}

// RunnerConfig selects the task runner binary.
type RunnerConfig struct {
	Binary string `yaml:"binary"`
}

// LanguageServerConfig describes the analysis service used in remote mode.
type LanguageServerConfig struct {
	Command string   `yaml:"command,omitempty"`
	Args    []string `yaml:"args,omitempty"`
}

// ExplorerConfig holds explorer behavior.
type ExplorerConfig struct {
	// Action is what activating a task does: open, run or none.
	Action string `yaml:"action"`
}

// HistoryConfig controls the run history log.
type HistoryConfig struct {
	Enabled bool `yaml:"enabled"`
}

// NewDefault creates a Config with default values.
func NewDefault() *Config {
	return &Config{
		Version: CurrentVersion,
		Workspace: WorkspaceConfig{
			Folders: append([]string{}, DefaultFolders...),
			Pattern: DefaultPattern,
			Exclude: append([]string{}, DefaultExclude...),
		},
		Mode:   ModeLocal,
		Runner: RunnerConfig{Binary: DefaultBinary},
		LanguageServer: LanguageServerConfig{
			Command: DefaultLanguageServer,
			Args:    append([]string{}, DefaultLanguageServerArgs...),
		},
		Explorer: ExplorerConfig{Action: ActionOpen},
		History:  HistoryConfig{Enabled: true},
	}
}

// Path returns the absolute path of the config file. It is empty for a
// config that was never loaded or saved.
func (c *Config) Path() string {
	return c.path
}

// SetPath sets the config file path.
func (c *Config) SetPath(path string) {
	c.path = path
}

// Dir returns the directory relative workspace folders are resolved
// against.
func (c *Config) Dir() string {
	if c.root != "" {
		return c.root
	}
	return filepath.Dir(c.path)
}

// FolderPaths returns the workspace folders as absolute paths.
func (c *Config) FolderPaths() []string {
	paths := make([]string, 0, len(c.Workspace.Folders))
	for _, f := range c.Workspace.Folders {
		if !filepath.IsAbs(f) {
			f = filepath.Join(c.Dir(), f)
		}
		paths = append(paths, filepath.Clean(f))
	}
	return paths
}

// HistoryPath returns the absolute path of the run history file.
func (c *Config) HistoryPath() string {
	return filepath.Join(c.Dir(), HistoryFileName)
}

// Validate checks the config for errors.
func (c *Config) Validate() error {
	if c.Version != CurrentVersion {
		return fmt.Errorf("%w: unsupported version %d (expected %d)", ErrInvalid, c.Version, CurrentVersion)
	}
	if len(c.Workspace.Folders) == 0 {
		return fmt.Errorf("%w: workspace.folders needs at least one folder", ErrInvalid)
	}
	if hasDuplicates(c.Workspace.Folders) {
		return fmt.Errorf("%w: workspace.folders contains duplicates", ErrInvalid)
	}
	if c.Workspace.Pattern == "" {
		return fmt.Errorf("%w: workspace.pattern is required", ErrInvalid)
	}
	if !slices.Contains([]string{ModeLocal, ModeRemote}, c.Mode) {
		return fmt.Errorf("%w: mode %q must be %s or %s", ErrInvalid, c.Mode, ModeLocal, ModeRemote)
	}
	if c.Runner.Binary == "" {
		return fmt.Errorf("%w: runner.binary is required", ErrInvalid)
	}
	if c.Mode == ModeRemote && c.LanguageServer.Command == "" {
		return fmt.Errorf("%w: language_server.command is required in remote mode", ErrInvalid)
	}
	if !slices.Contains([]string{ActionOpen, ActionRun, ActionNone}, c.Explorer.Action) {
		return fmt.Errorf("%w: explorer.action %q must be open, run or none", ErrInvalid, c.Explorer.Action)
	}
	return nil
}

// Init writes a default config into dir. An existing config is never
// overwritten.
func Init(dir string) (*Config, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}

	path := filepath.Join(absDir, ConfigFileName)
	if _, err := os.Stat(path); err == nil {
		return nil, clierr.Newf(clierr.ConfigExists, "config already exists: %s", path).
			WithDetails(map[string]any{"path": path})
	}

	cfg := NewDefault()
	cfg.SetPath(path)
	if err := cfg.Save(); err != nil {
		return nil, fmt.Errorf("writing config: %w", err)
	}
	return cfg, nil
}

// Save writes the config to its file while holding an advisory lock, so
// concurrent `config set` invocations do not interleave.
func (c *Config) Save() error {
	if c.path == "" {
		return errors.New("config has no path")
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	return filelock.With(c.path, func() error {
		return os.WriteFile(c.path, data, fileMode)
	})
}

// Load reads, migrates and validates the config file at path.
func Load(path string) (*Config, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}

	data, err := os.ReadFile(absPath) //nolint:gosec // config path from trusted source
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg := NewDefault()
	cfg.Version = 0
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %w", ErrInvalid, absPath, err)
	}
	cfg.path = absPath

	oldVersion := cfg.Version
	if err := migrate(cfg); err != nil {
		return nil, err
	}
	if cfg.Version != oldVersion {
		if err := cfg.Save(); err != nil {
			return nil, fmt.Errorf("saving migrated config: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FindFile walks upward from startDir looking for ConfigFileName and
// returns its absolute path.
func FindFile(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("resolving path: %w", err)
	}

	for {
		candidate := filepath.Join(dir, ConfigFileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", ErrNotFound
		}
		dir = parent
	}
}

// UserFile returns the path of the per-user fallback config.
func UserFile() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locating user config directory: %w", err)
	}
	return filepath.Join(base, UserConfigDir, UserConfigFileName), nil
}

// Resolve loads the project config found from startDir, then the user
// config. When neither exists, defaults rooted at startDir are returned.
func Resolve(startDir string) (*Config, error) {
	if path, err := FindFile(startDir); err == nil {
		return Load(path)
	}

	absDir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}

	if path, err := UserFile(); err == nil {
		cfg, err := Load(path)
		if err == nil {
			// Relative folders of the user config follow the working directory.
			cfg.root = absDir
			return cfg, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}

	cfg := NewDefault()
	cfg.path = filepath.Join(absDir, ConfigFileName)
	return cfg, nil
}

func hasDuplicates(slice []string) bool {
	seen := make(map[string]bool, len(slice))
	for _, s := range slice {
		if seen[s] {
			return true
		}
		seen[s] = true
	}
	return false
}
