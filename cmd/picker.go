package cmd

import (
	"context"
	"io"
	"os"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"github.com/twiced-technology-gmbh/taskwatch/internal/clierr"
	"github.com/twiced-technology-gmbh/taskwatch/internal/commands"
	"github.com/twiced-technology-gmbh/taskwatch/internal/task"
)

const (
	pickerWidth     = 80
	pickerMaxHeight = 20
	pickerChrome    = 6 // title, filter and help lines
	pickerItemLines = 3 // title, description and spacing
)

// listPicker lets the user choose a task from an inline list.
type listPicker struct {
	in  io.Reader
	out io.Writer
}

// newPicker returns a picker on the terminal, or nil when stdin is not
// interactive.
func newPicker() commands.Picker {
	if !term.IsTerminal(int(os.Stdin.Fd())) { //nolint:gosec // file descriptors fit in int
		return nil
	}
	return &listPicker{in: os.Stdin, out: os.Stderr}
}

// Pick runs the list below the cursor, without the alt screen. Esc, q or
// ctrl+c cancel and return nil.
func (p *listPicker) Pick(ctx context.Context, title string, choices []task.Info) (*task.Info, error) {
	m := newPickerModel(title, choices)
	prog := tea.NewProgram(m, tea.WithContext(ctx), tea.WithInput(p.in), tea.WithOutput(p.out))
	final, err := prog.Run()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, clierr.Wrap(clierr.InternalError, err, "task picker: %v", err)
	}
	return final.(*pickerModel).choice, nil
}

// pickerItem adapts a task to the list.
type pickerItem struct{ info task.Info }

func (i pickerItem) Title() string       { return task.Label(i.info) }
func (i pickerItem) Description() string { return i.info.Scope }
func (i pickerItem) FilterValue() string { return task.Label(i.info) }

// pickerModel is the bubbletea model behind listPicker.
type pickerModel struct {
	list   list.Model
	choice *task.Info
	done   bool
}

func newPickerModel(title string, choices []task.Info) *pickerModel {
	items := make([]list.Item, len(choices))
	for i, c := range choices {
		items[i] = pickerItem{info: c}
	}
	height := min(len(choices)*pickerItemLines+pickerChrome, pickerMaxHeight)
	l := list.New(items, list.NewDefaultDelegate(), pickerWidth, height)
	l.Title = title
	l.SetShowStatusBar(false)
	return &pickerModel{list: l}
}

func (m *pickerModel) Init() tea.Cmd { return nil }

func (m *pickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.list.SetWidth(msg.Width)
		return m, nil
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m.finish(nil)
		}
		// While the filter is being typed, every other key belongs to it.
		if m.list.FilterState() == list.Filtering {
			break
		}
		switch msg.String() {
		case "enter":
			if item, ok := m.list.SelectedItem().(pickerItem); ok {
				return m.finish(&item.info)
			}
			return m, nil
		case "esc", "q":
			if m.list.FilterState() == list.FilterApplied && msg.String() == "esc" {
				break
			}
			return m.finish(nil)
		}
	}
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m *pickerModel) finish(choice *task.Info) (tea.Model, tea.Cmd) {
	m.choice = choice
	m.done = true
	return m, tea.Quit
}

// View renders nothing once done so the inline list leaves no trace.
func (m *pickerModel) View() string {
	if m.done {
		return ""
	}
	return m.list.View()
}
