package tree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/twiced-technology-gmbh/taskwatch/internal/task"
)

func TestSummary(t *testing.T) {
	tasks := []task.Info{
		at("/ws/api/Taskfile.yml", "build", 1),
		at("/ws/api/Taskfile.yml", "unit-test", 3),
		at("/ws/web/Taskfile.yml", "serve", 1),
		at("/ws/web/Taskfile.yml", "watch-css", 4),
	}
	running := func(i task.Info) bool { return i.Name() == "serve" || i.Name() == "build" }

	s := Summary(tasks, running)

	assert.Equal(t, 4, s.TotalTasks)
	assert.Equal(t, 2, s.RunningTasks)
	assert.Equal(t, 2, s.TotalTaskfiles)
	assert.Equal(t, []GroupCount{
		{Group: "build", Count: 2, Running: 1},
		{Group: "test", Count: 1},
		{Group: "(other)", Count: 1, Running: 1},
	}, s.Groups)
}

func TestSummaryEmpty(t *testing.T) {
	s := Summary(nil, func(task.Info) bool { return false })

	assert.Zero(t, s.TotalTasks)
	assert.Zero(t, s.TotalTaskfiles)
	assert.Len(t, s.Groups, 3)
}

func TestGroupByTaskfile(t *testing.T) {
	tasks := []task.Info{
		at("/ws/web/Taskfile.yml", "serve", 1),
		at("/ws/api/Taskfile.yml", "build", 1),
		at("/ws/api/Taskfile.yml", "lint", 2),
	}
	idle := func(task.Info) bool { return false }

	g := GroupBy(tasks, FieldTaskfile, idle)

	require.Len(t, g.Groups, 2)
	assert.Equal(t, FieldTaskfile, g.Field)
	assert.Equal(t, "/ws/api/Taskfile.yml", g.Groups[0].Key)
	assert.Equal(t, 2, g.Groups[0].Total)
	assert.Equal(t, "/ws/web/Taskfile.yml", g.Groups[1].Key)
	assert.Equal(t, 1, g.Groups[1].Total)
}

func TestGroupByGroup(t *testing.T) {
	tasks := []task.Info{
		at("/ws/api/Taskfile.yml", "build", 1),
		at("/ws/api/Taskfile.yml", "test", 2),
		at("/ws/web/Taskfile.yml", "compile", 1),
	}

	g := GroupBy(tasks, FieldGroup, func(task.Info) bool { return false })

	keys := make([]string, 0, len(g.Groups))
	for _, grp := range g.Groups {
		keys = append(keys, grp.Key)
	}
	assert.Equal(t, []string{"build", "test"}, keys)
	assert.Equal(t, 2, g.Groups[0].Total)
}

func TestSort(t *testing.T) {
	b := at("/ws/web/Taskfile.yml", "build", 5)
	a := at("/ws/api/Taskfile.yml", "serve", 2)
	c := at("/ws/api/Taskfile.yml", "api-test", 1)

	tasks := []task.Info{b, a, c}
	Sort(tasks, FieldName, false)
	assert.Equal(t, []task.Info{c, b, a}, tasks)

	Sort(tasks, FieldName, true)
	assert.Equal(t, []task.Info{a, b, c}, tasks)

	Sort(tasks, FieldTaskfile, false)
	assert.Equal(t, []task.Info{c, a, b}, tasks)

	Sort(tasks, FieldLine, false)
	assert.Equal(t, []task.Info{c, a, b}, tasks)
}
