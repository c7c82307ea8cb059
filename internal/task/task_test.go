package task

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/twiced-technology-gmbh/taskwatch/internal/clierr"
)

func info(scope, name string, line, col int) Info {
	return Info{
		Scope: scope,
		Task:  Ref{Value: name, StartLine: line, StartCol: col, EndLine: line, EndCol: col + len(name)},
	}
}

func TestKeyOf(t *testing.T) {
	a := info("/ws/a/Taskfile.yml", "build", 1, 2)
	b := info("/ws/b/Taskfile.yml", "build", 1, 2)

	assert.Equal(t, Key("/ws/a/Taskfile.yml:build"), KeyOf(a))
	assert.NotEqual(t, KeyOf(a), KeyOf(b))
}

func TestRefContains(t *testing.T) {
	r := Ref{Value: "build", StartLine: 3, StartCol: 2, EndLine: 3, EndCol: 7}

	tests := []struct {
		line, col int
		want      bool
	}{
		{3, 2, true},
		{3, 6, true},
		{3, 7, false},
		{3, 1, false},
		{2, 4, false},
		{4, 4, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, r.Contains(tt.line, tt.col), "position %d:%d", tt.line, tt.col)
	}
}

func TestInferGroup(t *testing.T) {
	tests := map[string]Group{
		"build":        GroupBuild,
		"Compile-All":  GroupBuild,
		"watch:assets": GroupBuild,
		"test":         GroupTest,
		"unit-tests":   GroupTest,
		"build-test":   GroupBuild,
		"lint":         GroupNone,
	}
	for name, want := range tests {
		assert.Equal(t, want, InferGroup(name), name)
	}
}

func TestLabel(t *testing.T) {
	assert.Equal(t, "api: build", Label(info("/ws/api/Taskfile.yml", "build", 0, 2)))
}

func TestFindByNameLastDeclarationWins(t *testing.T) {
	infos := []Info{
		info("/ws/Taskfile.yml", "build", 1, 2),
		info("/ws/Taskfile.yml", "test", 3, 2),
		info("/ws/Taskfile.yml", "build", 5, 2),
	}

	got, err := FindByName(infos, "build")
	require.NoError(t, err)
	assert.Equal(t, 5, got.Task.StartLine)
}

func TestFindByNameLabel(t *testing.T) {
	infos := []Info{
		info("/ws/api/Taskfile.yml", "build", 1, 2),
		info("/ws/web/Taskfile.yml", "build", 1, 2),
	}

	got, err := FindByName(infos, "api: build")
	require.NoError(t, err)
	assert.Equal(t, "/ws/api/Taskfile.yml", got.Scope)
}

func TestFindByNameNotFound(t *testing.T) {
	_, err := FindByName(nil, "deploy")

	var cliErr *clierr.Error
	require.True(t, errors.As(err, &cliErr))
	assert.Equal(t, clierr.TaskNotFound, cliErr.Code)
}

func TestFindAt(t *testing.T) {
	infos := []Info{
		info("/ws/Taskfile.yml", "build", 1, 2),
		info("/ws/other/Taskfile.yml", "build", 1, 2),
	}

	got, ok := FindAt(infos, "/ws/Taskfile.yml", 1, 4)
	require.True(t, ok)
	assert.Equal(t, "/ws/Taskfile.yml", got.Scope)

	_, ok = FindAt(infos, "/ws/Taskfile.yml", 2, 4)
	assert.False(t, ok)
}

func TestValidatePosition(t *testing.T) {
	assert.NoError(t, ValidatePosition(0, 0))
	assert.Error(t, ValidatePosition(-1, 0))
}
