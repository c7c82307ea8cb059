package editor

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/twiced-technology-gmbh/taskwatch/internal/clierr"
	"github.com/twiced-technology-gmbh/taskwatch/internal/commands"
)

func TestArgs(t *testing.T) {
	loc := commands.Location{Path: "/ws/Taskfile.yml", Line: 4, Col: 2}

	tests := []struct {
		editor string
		want   []string
	}{
		{"code --wait", []string{"--wait", "-g", "/ws/Taskfile.yml:5:3"}},
		{"/usr/bin/nvim", []string{"+5", "/ws/Taskfile.yml"}},
		{"subl", []string{"/ws/Taskfile.yml:5:3"}},
		{"gedit", []string{"/ws/Taskfile.yml"}},
		{"", nil},
	}
	for _, tt := range tests {
		t.Run(tt.editor, func(t *testing.T) {
			assert.Equal(t, tt.want, Args(tt.editor, loc))
		})
	}
}

func TestFromEnv(t *testing.T) {
	t.Setenv("VISUAL", "")
	t.Setenv("EDITOR", "vim")
	assert.Equal(t, "vim", FromEnv())

	t.Setenv("VISUAL", "code")
	assert.Equal(t, "code", FromEnv())
}

func TestCommandWithoutEditor(t *testing.T) {
	_, err := Command(context.Background(), " ", commands.Location{})

	var cliErr *clierr.Error
	require.True(t, errors.As(err, &cliErr))
	assert.Equal(t, clierr.InvalidInput, cliErr.Code)
}

func TestOpenerRunsEditor(t *testing.T) {
	err := Opener{Editor: "true"}.Open(context.Background(), commands.Location{Path: "/ws/Taskfile.yml"})
	assert.NoError(t, err)

	err = Opener{Editor: "false"}.Open(context.Background(), commands.Location{Path: "/ws/Taskfile.yml"})
	assert.Error(t, err)
}
