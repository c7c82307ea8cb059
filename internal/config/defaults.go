// Package config handles taskwatch project configuration.
package config

const (
	// ConfigFileName is the project config file looked up from the working
	// directory upward.
	ConfigFileName = ".taskwatch.yml"

	// UserConfigDir is the directory under the user's config home holding
	// the fallback config.
	UserConfigDir = "taskwatch"

	// UserConfigFileName is the fallback config file name.
	UserConfigFileName = "config.yml"

	// HistoryFileName is the run history file, kept next to the config.
	HistoryFileName = ".taskwatch-history.jsonl"

	// DefaultPattern matches Taskfiles anywhere below a workspace folder.
	DefaultPattern = "**/Taskfile.{yml,yaml}"

	// DefaultBinary is the task runner looked up on PATH.
	DefaultBinary = "task"

	// DefaultLanguageServer is the analysis service used in remote mode.
	DefaultLanguageServer = "taskfile_language_server"

	// CurrentVersion is the current config schema version.
	CurrentVersion = 2
)

// Discovery modes.
const (
	ModeLocal  = "local"
	ModeRemote = "remote"
)

// Explorer actions.
const (
	ActionOpen = "open"
	ActionRun  = "run"
	ActionNone = "none"
)

// Default slice values (slices cannot be const).
var (
	DefaultFolders = []string{"."}

	DefaultExclude = []string{
		".git",
		"node_modules",
		"vendor",
		".task",
	}

	DefaultLanguageServerArgs = []string{"--trace"}
)
