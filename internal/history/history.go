// Package history keeps an append-only JSONL log of task runs.
package history

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/twiced-technology-gmbh/taskwatch/internal/filelock"
	"github.com/twiced-technology-gmbh/taskwatch/internal/task"
)

const (
	logFileMode   = 0o600
	maxLogEntries = 10000 // truncate oldest entries when log exceeds this size
)

// Actions recorded in the log.
const (
	ActionRun   = "run"
	ActionWatch = "watch"
	ActionStop  = "stop"
	ActionEnd   = "end"
)

// Entry is a single history record.
type Entry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Action    string    `json:"action"`
	Task      string    `json:"task"`
	Taskfile  string    `json:"taskfile"`
	Execution string    `json:"execution,omitempty"`
	ExitCode  *int      `json:"exit_code,omitempty"`
}

// Log is a history file. A nil *Log discards everything.
type Log struct {
	path string
}

// Open returns the log stored at path. The file is created on first write.
func Open(path string) *Log {
	return &Log{path: path}
}

// Path returns the log file path.
func (l *Log) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// Append writes entry to the log, filling in ID and Timestamp when unset.
// If the log exceeds maxLogEntries, the oldest entries are truncated.
func (l *Log) Append(entry Entry) error {
	if l == nil {
		return nil
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshaling history entry: %w", err)
	}

	return filelock.With(l.path, func() error {
		f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, logFileMode) //nolint:gosec // history path from trusted config dir
		if err != nil {
			return fmt.Errorf("opening history file: %w", err)
		}
		defer f.Close()

		if _, err := f.Write(append(data, '\n')); err != nil {
			return fmt.Errorf("writing history entry: %w", err)
		}

		// Truncate if needed (best-effort; errors are non-fatal).
		_ = truncateLogIfNeeded(l.path)
		return nil
	})
}

// Record appends an entry for info. Errors are silently discarded because
// history should never fail a command.
func (l *Log) Record(action string, info task.Info, execution string, exitCode *int) {
	_ = l.Append(Entry{
		Action:    action,
		Task:      info.Name(),
		Taskfile:  info.Scope,
		Execution: execution,
		ExitCode:  exitCode,
	})
}

// Read returns the most recent entries, oldest first. limit <= 0 returns
// everything. Malformed lines are skipped.
func (l *Log) Read(limit int) ([]Entry, error) {
	if l == nil {
		return nil, nil
	}
	f, err := os.Open(l.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening history file: %w", err)
	}
	defer f.Close()

	var entries []Entry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var e Entry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			continue
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading history file: %w", err)
	}

	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	return entries, nil
}

// truncateLogIfNeeded reads the log file and, if it exceeds maxLogEntries,
// rewrites it keeping only the most recent entries.
func truncateLogIfNeeded(path string) error {
	f, err := os.Open(path) //nolint:gosec // trusted path
	if err != nil {
		return err
	}

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	_ = f.Close()

	if err := scanner.Err(); err != nil {
		return err
	}

	if len(lines) <= maxLogEntries {
		return nil
	}

	lines = lines[len(lines)-maxLogEntries:]

	var buf strings.Builder
	for _, line := range lines {
		buf.WriteString(line)
		buf.WriteByte('\n')
	}

	return os.WriteFile(path, []byte(buf.String()), logFileMode)
}
