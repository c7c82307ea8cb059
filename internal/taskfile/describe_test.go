package taskfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `version: '3'

tasks:
  build:
    desc: Build the binary
    summary: |
      Compiles every package.
    deps: [generate, {task: lint}]
    cmds:
      - go build ./...
      - cmd: echo done
      - task: package
  generate: go generate ./...
  lint:
    - golangci-lint run
  release:
    cmd: goreleaser
`

func TestDescribe(t *testing.T) {
	got, err := Describe(sample)
	require.NoError(t, err)
	require.Len(t, got, 4)

	build := got["build"]
	assert.Equal(t, "Build the binary", build.Desc)
	assert.Equal(t, "Compiles every package.\n", build.Summary)
	assert.Equal(t, []string{"generate", "lint"}, build.Deps)
	assert.Equal(t, []string{"go build ./...", "echo done", "task: package"}, build.Cmds)

	assert.Equal(t, []string{"go generate ./..."}, got["generate"].Cmds)
	assert.Equal(t, []string{"golangci-lint run"}, got["lint"].Cmds)
	assert.Equal(t, []string{"goreleaser"}, got["release"].Cmds)
}

func TestDescribeWithoutTasks(t *testing.T) {
	for _, content := range []string{"", "version: '3'\n", "tasks: [a, b]\n"} {
		got, err := Describe(content)
		require.NoError(t, err)
		assert.Empty(t, got)
	}
}

func TestDescribeInvalidYAML(t *testing.T) {
	_, err := Describe("tasks:\n  build: [\n")
	assert.Error(t, err)
}

func TestLookup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Taskfile.yml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o600))

	d, err := Lookup(path, "build")
	require.NoError(t, err)
	assert.Equal(t, "Build the binary", d.Desc)

	d, err = Lookup(path, "missing")
	require.NoError(t, err)
	assert.Equal(t, Details{Name: "missing"}, d)

	_, err = Lookup(filepath.Join(t.TempDir(), "gone.yml"), "build")
	assert.Error(t, err)
}
