// Package editor opens task locations in the user's editor.
package editor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/twiced-technology-gmbh/taskwatch/internal/clierr"
	"github.com/twiced-technology-gmbh/taskwatch/internal/commands"
)

// FromEnv returns the editor configured in $VISUAL or $EDITOR.
func FromEnv() string {
	if v := os.Getenv("VISUAL"); v != "" {
		return v
	}
	return os.Getenv("EDITOR")
}

// Args returns the arguments that make editor jump to loc. Locations are
// zero-based; editors count from one.
func Args(editor string, loc commands.Location) []string {
	fields := strings.Fields(editor)
	if len(fields) == 0 {
		return nil
	}
	line := strconv.Itoa(loc.Line + 1)
	col := strconv.Itoa(loc.Col + 1)

	args := fields[1:]
	switch filepath.Base(fields[0]) {
	case "code", "code-insiders", "codium", "cursor", "zed":
		args = append(args, "-g", loc.Path+":"+line+":"+col)
	case "subl", "sublime_text":
		args = append(args, loc.Path+":"+line+":"+col)
	case "vi", "vim", "nvim", "nano", "emacs", "emacsclient", "kak", "hx", "micro":
		args = append(args, "+"+line, loc.Path)
	default:
		args = append(args, loc.Path)
	}
	return args
}

// Command builds the process that opens loc in editor. It returns
// INVALID_INPUT when no editor is configured.
func Command(ctx context.Context, editor string, loc commands.Location) (*exec.Cmd, error) {
	fields := strings.Fields(editor)
	if len(fields) == 0 {
		return nil, clierr.New(clierr.InvalidInput, "no editor configured; set $EDITOR")
	}
	return exec.CommandContext(ctx, fields[0], Args(editor, loc)...), nil //nolint:gosec // editor comes from the user's environment
}

// Opener opens locations by running the editor in the foreground, attached
// to the terminal.
type Opener struct {
	Editor string
}

// Open implements commands.Opener.
func (o Opener) Open(ctx context.Context, loc commands.Location) error {
	cmd, err := Command(ctx, o.Editor, loc)
	if err != nil {
		return err
	}
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("running editor %s: %w", cmd.Path, err)
	}
	return nil
}
