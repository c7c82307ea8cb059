// Package taskfile reads task metadata (descriptions, commands and
// dependencies) from a Taskfile for display. Discovery and source
// positions come from the scan package; this package only decorates.
package taskfile

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v3"
)

// Details is the displayable metadata of one task.
type Details struct {
	Name    string   `json:"name"`
	Desc    string   `json:"desc,omitempty"`
	Summary string   `json:"summary,omitempty"`
	Cmds    []string `json:"cmds,omitempty"`
	Deps    []string `json:"deps,omitempty"`
}

// Lookup reads the Taskfile at path and returns the metadata of task name.
// A task the parser cannot see yields Details with only the name set.
func Lookup(path, name string) (Details, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Details{Name: name}, fmt.Errorf("reading taskfile: %w", err)
	}
	all, err := Describe(string(data))
	if err != nil {
		return Details{Name: name}, err
	}
	d, ok := all[name]
	if !ok {
		return Details{Name: name}, nil
	}
	return d, nil
}

// Describe parses content and returns the metadata of every task, keyed by
// name. A later declaration of a name replaces an earlier one.
func Describe(content string) (map[string]Details, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(content), &doc); err != nil {
		return nil, fmt.Errorf("parsing taskfile: %w", err)
	}

	out := make(map[string]Details)
	if len(doc.Content) == 0 {
		return out, nil
	}
	tasks := mappingValue(doc.Content[0], "tasks")
	if tasks == nil || tasks.Kind != yaml.MappingNode {
		return out, nil
	}

	for i := 0; i+1 < len(tasks.Content); i += 2 {
		name := tasks.Content[i].Value
		out[name] = details(name, tasks.Content[i+1])
	}
	return out, nil
}

func details(name string, n *yaml.Node) Details {
	d := Details{Name: name}
	switch n.Kind {
	case yaml.ScalarNode:
		// tasks: {build: go build ./...}
		if n.Value != "" {
			d.Cmds = []string{n.Value}
		}
	case yaml.SequenceNode:
		d.Cmds = commands(n)
	case yaml.MappingNode:
		if v := mappingValue(n, "desc"); v != nil {
			d.Desc = v.Value
		}
		if v := mappingValue(n, "summary"); v != nil {
			d.Summary = v.Value
		}
		if v := mappingValue(n, "cmds"); v != nil {
			d.Cmds = commands(v)
		} else if v := mappingValue(n, "cmd"); v != nil && v.Kind == yaml.ScalarNode {
			d.Cmds = []string{v.Value}
		}
		if v := mappingValue(n, "deps"); v != nil {
			d.Deps = dependencies(v)
		}
	}
	return d
}

func commands(n *yaml.Node) []string {
	if n.Kind != yaml.SequenceNode {
		return nil
	}
	var cmds []string
	for _, item := range n.Content {
		switch item.Kind {
		case yaml.ScalarNode:
			cmds = append(cmds, item.Value)
		case yaml.MappingNode:
			if v := mappingValue(item, "cmd"); v != nil {
				cmds = append(cmds, v.Value)
			} else if v := mappingValue(item, "task"); v != nil {
				cmds = append(cmds, "task: "+v.Value)
			}
		}
	}
	return cmds
}

func dependencies(n *yaml.Node) []string {
	if n.Kind != yaml.SequenceNode {
		return nil
	}
	var deps []string
	for _, item := range n.Content {
		switch item.Kind {
		case yaml.ScalarNode:
			deps = append(deps, item.Value)
		case yaml.MappingNode:
			if v := mappingValue(item, "task"); v != nil {
				deps = append(deps, v.Value)
			}
		}
	}
	return deps
}

func mappingValue(n *yaml.Node, key string) *yaml.Node {
	if n.Kind != yaml.MappingNode {
		return nil
	}
	var found *yaml.Node
	for i := 0; i+1 < len(n.Content); i += 2 {
		if n.Content[i].Value == key {
			found = n.Content[i+1]
		}
	}
	return found
}
