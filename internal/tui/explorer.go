// Package tui implements the interactive task explorer.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/twiced-technology-gmbh/taskwatch/internal/commands"
	"github.com/twiced-technology-gmbh/taskwatch/internal/editor"
	"github.com/twiced-technology-gmbh/taskwatch/internal/output"
	"github.com/twiced-technology-gmbh/taskwatch/internal/task"
	"github.com/twiced-technology-gmbh/taskwatch/internal/taskfile"
	"github.com/twiced-technology-gmbh/taskwatch/internal/tree"
)

// view represents the current screen state.
type view int

const (
	viewTree view = iota
	viewSearch
	viewDetail
)

// Layout constants.
const (
	keyEsc = "esc"

	headerChrome = 2 // title line + blank line above the rows
	footerChrome = 3 // blank line, hover hint and help below the rows
	errorChrome  = 1 // extra line when an error is displayed
)

// Options configures an Explorer.
type Options struct {
	// HasTaskfile reports whether the workspace holds any Taskfile. It
	// refines the empty-state message and may be nil.
	HasTaskfile func(ctx context.Context) (bool, error)

	// Editor opens task locations. Empty shows the location instead.
	Editor string
}

// Explorer is the top-level bubbletea model.
type Explorer struct {
	cmds *commands.Commands
	ctx  context.Context
	opts Options

	tasks       []task.Info
	hasTaskfile bool
	nodes       []*tree.Node
	rows        []tree.Row
	collapsed   map[string]bool

	cursor    int
	scrollOff int
	view      view
	width     int
	height    int
	loading   bool
	err       error
	status    string

	query  string
	search textinput.Model
	detail viewport.Model
	keys   keyMap
	help   help.Model
}

// NewExplorer creates the explorer over cmds. Blocking work runs as tea
// commands bound to ctx.
func NewExplorer(ctx context.Context, cmds *commands.Commands, opts Options) *Explorer {
	search := textinput.New()
	search.Prompt = "/ "
	search.Placeholder = "filter tasks"

	return &Explorer{
		cmds:        cmds,
		ctx:         ctx,
		opts:        opts,
		hasTaskfile: true,
		collapsed:   make(map[string]bool),
		loading:     true,
		search:      search,
		detail:      viewport.New(0, 0),
		keys:        defaultKeys(),
		help:        help.New(),
	}
}

// Init implements tea.Model.
func (e *Explorer) Init() tea.Cmd {
	return e.loadCmd()
}

// Update implements tea.Model.
func (e *Explorer) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return e.handleKey(msg)
	case tea.WindowSizeMsg:
		e.width = msg.Width
		e.height = msg.Height
		e.help.Width = msg.Width
		e.detail.Width = msg.Width
		e.detail.Height = max(msg.Height-1, 1)
		e.ensureVisible()
		return e, nil
	case ReloadMsg:
		return e, e.loadCmd()
	case tasksMsg:
		e.loading = false
		e.err = msg.err
		if msg.err == nil {
			e.tasks = msg.tasks
			e.hasTaskfile = msg.hasTaskfile
		}
		e.rebuild()
		return e, nil
	case actionMsg:
		e.err = msg.err
		if msg.err == nil && msg.status != "" {
			e.status = msg.status
		}
		e.rebuild()
		return e, nil
	case detailMsg:
		if msg.err != nil {
			e.err = msg.err
			return e, nil
		}
		e.detail.SetContent(msg.content)
		e.detail.GotoTop()
		e.view = viewDetail
		return e, nil
	}

	if e.view == viewDetail {
		var cmd tea.Cmd
		e.detail, cmd = e.detail.Update(msg)
		return e, cmd
	}
	return e, nil
}

// View implements tea.Model.
func (e *Explorer) View() string {
	if e.width == 0 {
		return "Loading..."
	}
	if e.view == viewDetail {
		return e.detail.View() + "\n" + statusBarStyle.Render(truncate(" esc:back  j/k:scroll", e.width))
	}
	return e.viewTree()
}

// --- Messages ---

// ReloadMsg is sent by the file watcher, refreshes and run-state changes to
// re-read the workspace's tasks. Reads are served from the task cache until
// it is invalidated.
type ReloadMsg struct{}

type tasksMsg struct {
	tasks       []task.Info
	hasTaskfile bool
	err         error
}

type actionMsg struct {
	status string
	err    error
}

type detailMsg struct {
	content string
	err     error
}

// --- Keys ---

type keyMap struct {
	Up       key.Binding
	Down     key.Binding
	Collapse key.Binding
	Expand   key.Binding
	Activate key.Binding
	Run      key.Binding
	Watch    key.Binding
	Stop     key.Binding
	Open     key.Binding
	Detail   key.Binding
	Search   key.Binding
	Refresh  key.Binding
	Quit     key.Binding
}

func defaultKeys() keyMap {
	return keyMap{
		Up:       key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k", "up")),
		Down:     key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j", "down")),
		Collapse: key.NewBinding(key.WithKeys("h", "left"), key.WithHelp("h", "collapse")),
		Expand:   key.NewBinding(key.WithKeys("l", "right"), key.WithHelp("l", "expand")),
		Activate: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "activate")),
		Run:      key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "run")),
		Watch:    key.NewBinding(key.WithKeys("w"), key.WithHelp("w", "watch")),
		Stop:     key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "stop")),
		Open:     key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "open")),
		Detail:   key.NewBinding(key.WithKeys("d", "?"), key.WithHelp("d", "details")),
		Search:   key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "filter")),
		Refresh:  key.NewBinding(key.WithKeys("R", "ctrl+r"), key.WithHelp("R", "refresh")),
		Quit:     key.NewBinding(key.WithKeys("q", keyEsc), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Run, k.Watch, k.Stop, k.Open, k.Detail, k.Search, k.Refresh, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Collapse, k.Expand},
		{k.Activate, k.Run, k.Watch, k.Stop, k.Open},
		{k.Detail, k.Search, k.Refresh, k.Quit},
	}
}

func (e *Explorer) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return e, tea.Quit
	}

	switch e.view {
	case viewSearch:
		return e.handleSearchKey(msg)
	case viewDetail:
		if msg.String() == keyEsc || msg.String() == "q" {
			e.view = viewTree
			return e, nil
		}
		var cmd tea.Cmd
		e.detail, cmd = e.detail.Update(msg)
		return e, cmd
	default:
		return e.handleTreeKey(msg)
	}
}

func (e *Explorer) handleTreeKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, e.keys.Quit):
		if msg.String() == keyEsc && e.query != "" {
			e.query = ""
			e.search.SetValue("")
			e.rebuild()
			return e, nil
		}
		return e, tea.Quit
	case key.Matches(msg, e.keys.Up):
		e.status = ""
		if e.cursor > 0 {
			e.cursor--
			e.ensureVisible()
		}
	case key.Matches(msg, e.keys.Down):
		e.status = ""
		if e.cursor < len(e.rows)-1 {
			e.cursor++
			e.ensureVisible()
		}
	case key.Matches(msg, e.keys.Collapse):
		e.collapse()
	case key.Matches(msg, e.keys.Expand):
		if n := e.selected(); n != nil && len(n.Children) > 0 {
			delete(e.collapsed, n.Path)
			e.rebuild()
		}
	case key.Matches(msg, e.keys.Activate):
		return e, e.activate()
	case key.Matches(msg, e.keys.Run):
		return e, e.runCmd(false)
	case key.Matches(msg, e.keys.Watch):
		return e, e.runCmd(true)
	case key.Matches(msg, e.keys.Stop):
		return e, e.stopCmd()
	case key.Matches(msg, e.keys.Open):
		return e, e.openCmd()
	case key.Matches(msg, e.keys.Detail):
		return e, e.detailCmd()
	case key.Matches(msg, e.keys.Search):
		e.view = viewSearch
		e.search.SetValue(e.query)
		return e, e.search.Focus()
	case key.Matches(msg, e.keys.Refresh):
		e.status = ""
		e.cmds.Refresh(true)
		return e, e.loadCmd()
	}
	return e, nil
}

func (e *Explorer) handleSearchKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		e.view = viewTree
		e.search.Blur()
		return e, nil
	case keyEsc:
		e.view = viewTree
		e.search.Blur()
		e.query = ""
		e.search.SetValue("")
		e.rebuild()
		return e, nil
	}

	var cmd tea.Cmd
	e.search, cmd = e.search.Update(msg)
	if v := e.search.Value(); v != e.query {
		e.query = v
		e.cursor = 0
		e.rebuild()
	}
	return e, cmd
}

// --- Commands ---

func (e *Explorer) loadCmd() tea.Cmd {
	ctx, cmds, hasTaskfile := e.ctx, e.cmds, e.opts.HasTaskfile
	return func() tea.Msg {
		tasks, err := cmds.Tasks(ctx)
		if err != nil {
			return tasksMsg{err: err}
		}
		found := len(tasks) > 0
		if !found && hasTaskfile != nil {
			found, _ = hasTaskfile(ctx)
		}
		return tasksMsg{tasks: tasks, hasTaskfile: found}
	}
}

func (e *Explorer) activate() tea.Cmd {
	n := e.selected()
	if n == nil {
		return nil
	}
	if n.Kind != tree.KindTask {
		if len(n.Children) > 0 {
			if e.collapsed[n.Path] {
				delete(e.collapsed, n.Path)
			} else {
				e.collapsed[n.Path] = true
			}
			e.rebuild()
		}
		return nil
	}

	switch n.Command(e.cmds.Context().Action) {
	case tree.ActionRun:
		return e.runCmd(false)
	case tree.ActionOpen:
		return e.openCmd()
	default:
		return nil
	}
}

func (e *Explorer) runCmd(watch bool) tea.Cmd {
	info := e.selectedTask()
	if info == nil {
		return nil
	}
	ctx, cmds := e.ctx, e.cmds
	return func() tea.Msg {
		if _, err := cmds.Run(ctx, info, watch); err != nil {
			return actionMsg{err: err}
		}
		verb := "Running"
		if watch {
			verb = "Watching"
		}
		return actionMsg{status: verb + " " + task.Label(*info)}
	}
}

func (e *Explorer) stopCmd() tea.Cmd {
	info := e.selectedTask()
	if info == nil {
		return nil
	}
	ctx, cmds := e.ctx, e.cmds
	return func() tea.Msg {
		if !cmds.IsRunning(*info) {
			return actionMsg{}
		}
		if err := cmds.Stop(ctx, info); err != nil {
			return actionMsg{err: err}
		}
		return actionMsg{status: "Stopped " + task.Label(*info)}
	}
}

func (e *Explorer) openCmd() tea.Cmd {
	info := e.selectedTask()
	if info == nil {
		return nil
	}
	loc, err := e.cmds.Open(e.ctx, info)
	if err != nil {
		return errCmd(err)
	}
	if loc == nil {
		return nil
	}
	where := fmt.Sprintf("%s:%d:%d", loc.Path, loc.Line+1, loc.Col+1)
	if e.opts.Editor == "" {
		e.status = where
		return nil
	}

	c, err := editor.Command(e.ctx, e.opts.Editor, *loc)
	if err != nil {
		return errCmd(err)
	}
	return tea.ExecProcess(c, func(err error) tea.Msg {
		if err != nil {
			return actionMsg{err: fmt.Errorf("running editor: %w", err)}
		}
		return actionMsg{status: "Opened " + where}
	})
}

func (e *Explorer) detailCmd() tea.Cmd {
	info := e.selectedTask()
	if info == nil {
		return nil
	}
	view := output.NewTaskView(*info, e.cmds.IsRunning(*info), "")
	width := e.width
	return func() tea.Msg {
		details, err := taskfile.Lookup(info.Scope, info.Name())
		if err != nil {
			return detailMsg{err: err}
		}
		out, err := output.RenderMarkdown(output.TaskMarkdown(view, details), width)
		return detailMsg{content: out, err: err}
	}
}

func errCmd(err error) tea.Cmd {
	return func() tea.Msg { return actionMsg{err: err} }
}

// --- Tree state ---

// rebuild recomputes the tree from the loaded tasks, the filter and the
// current run states, keeping the cursor on the same node when possible.
func (e *Explorer) rebuild() {
	var selectedKey string
	if n := e.selected(); n != nil {
		selectedKey = nodeKey(n)
	}

	running := e.cmds.IsRunning
	tasks := e.tasks
	if e.query != "" {
		tasks = tree.Filter(tasks, tree.FilterOptions{Search: e.query}, running)
	}
	e.nodes = tree.Build(tasks, running, e.cmds.Context().Locator)
	e.rows = visibleRows(e.nodes, e.collapsed)

	for i, r := range e.rows {
		if selectedKey != "" && nodeKey(r.Node) == selectedKey {
			e.cursor = i
			break
		}
	}
	e.clampCursor()
	e.ensureVisible()
}

// visibleRows flattens nodes, skipping the children of collapsed nodes.
func visibleRows(nodes []*tree.Node, collapsed map[string]bool) []tree.Row {
	var rows []tree.Row
	var walk func(ns []*tree.Node, depth int)
	walk = func(ns []*tree.Node, depth int) {
		for _, n := range ns {
			rows = append(rows, tree.Row{Node: n, Depth: depth})
			if n.Kind != tree.KindTask && !collapsed[n.Path] {
				walk(n.Children, depth+1)
			}
		}
	}
	walk(nodes, 0)
	return rows
}

func nodeKey(n *tree.Node) string {
	if n.Info != nil {
		return string(task.KeyOf(*n.Info))
	}
	return n.Kind.String() + ":" + n.Path
}

func (e *Explorer) collapse() {
	n := e.selected()
	if n == nil {
		return
	}
	if n.Kind != tree.KindTask && len(n.Children) > 0 && !e.collapsed[n.Path] {
		e.collapsed[n.Path] = true
		e.rebuild()
		return
	}
	// Move to the parent row.
	depth := e.rows[e.cursor].Depth
	for i := e.cursor - 1; i >= 0; i-- {
		if e.rows[i].Depth < depth {
			e.cursor = i
			e.ensureVisible()
			return
		}
	}
}

func (e *Explorer) selected() *tree.Node {
	if e.cursor >= 0 && e.cursor < len(e.rows) {
		return e.rows[e.cursor].Node
	}
	return nil
}

func (e *Explorer) selectedTask() *task.Info {
	n := e.selected()
	if n == nil || n.Kind != tree.KindTask || n.Info == nil {
		return nil
	}
	info := *n.Info
	return &info
}

func (e *Explorer) clampCursor() {
	if e.cursor >= len(e.rows) {
		e.cursor = len(e.rows) - 1
	}
	if e.cursor < 0 {
		e.cursor = 0
	}
}

func (e *Explorer) listHeight() int {
	h := e.height - headerChrome - footerChrome
	if e.err != nil {
		h -= errorChrome
	}
	if e.view == viewSearch || e.query != "" {
		h--
	}
	return max(h, 1)
}

func (e *Explorer) ensureVisible() {
	if e.height == 0 {
		return
	}
	h := e.listHeight()
	if e.cursor < e.scrollOff {
		e.scrollOff = e.cursor
	}
	if e.cursor >= e.scrollOff+h {
		e.scrollOff = e.cursor - h + 1
	}
	if e.scrollOff > max(len(e.rows)-h, 0) {
		e.scrollOff = max(len(e.rows)-h, 0)
	}
}

// --- Styles ---

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("230")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)

	selectedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("230")).
			Background(lipgloss.Color("238"))

	folderStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("110"))
	taskfileStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252"))
	runningStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("34")).Bold(true)
	hintStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("66"))

	statusBarStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))

	groupStyles = map[task.Group]lipgloss.Style{
		task.GroupBuild: lipgloss.NewStyle().Foreground(lipgloss.Color("33")),
		task.GroupTest:  lipgloss.NewStyle().Foreground(lipgloss.Color("226")),
	}
)

// --- View rendering ---

func (e *Explorer) viewTree() string {
	var b strings.Builder

	running := len(e.cmds.Running())
	title := titleStyle.Render("taskwatch") + " " +
		dimStyle.Render(fmt.Sprintf("%d tasks, %d running", len(tree.Tasks(e.nodes)), running))
	b.WriteString(clip(title, e.width) + "\n")
	if e.view == viewSearch || e.query != "" {
		b.WriteString(e.search.View() + "\n")
	}
	b.WriteString("\n")

	h := e.listHeight()
	lines := 0
	switch {
	case e.loading:
		b.WriteString(dimStyle.Render("  Discovering tasks...") + "\n")
		lines++
	case !e.hasTaskfile && e.query == "":
		b.WriteString(dimStyle.Render("  No Taskfile found in the workspace.") + "\n")
		lines++
	default:
		end := min(e.scrollOff+h, len(e.rows))
		for i := e.scrollOff; i < end; i++ {
			b.WriteString(e.renderRow(e.rows[i], i == e.cursor) + "\n")
			lines++
		}
	}
	if lines < h {
		b.WriteString(strings.Repeat("\n", h-lines))
	}

	b.WriteString("\n")
	b.WriteString(e.renderHint() + "\n")
	if e.err != nil {
		b.WriteString(errorStyle.Render(truncate("Error: "+e.err.Error(), e.width)) + "\n")
	}
	b.WriteString(statusBarStyle.Render(e.help.ShortHelpView(e.keys.ShortHelp())))
	return b.String()
}

func (e *Explorer) renderRow(r tree.Row, active bool) string {
	n := r.Node
	indent := strings.Repeat("  ", r.Depth)

	var text string
	switch n.Kind {
	case tree.KindFolder, tree.KindTaskfile:
		arrow := "▾ "
		if e.collapsed[n.Path] {
			arrow = "▸ "
		}
		style := taskfileStyle
		label := n.Label
		if n.Kind == tree.KindFolder {
			style = folderStyle
			label += "/"
		}
		if active {
			style = selectedStyle
		}
		text = indent + arrow + style.Render(label)
	case tree.KindTask:
		marker := dimStyle.Render("○")
		if n.Running {
			marker = runningStyle.Render("●")
		}
		label := n.Label
		if active {
			label = selectedStyle.Render(label)
		}
		text = indent + "  " + marker + " " + label
		if st, ok := groupStyles[n.Group]; ok {
			text += " " + st.Render(string(n.Group))
		}
	case tree.KindPlaceholder:
		label := n.Label
		if active {
			label = selectedStyle.Render(label)
		} else {
			label = dimStyle.Render(label)
		}
		text = indent + label
	}
	return clip(text, e.width)
}

// renderHint shows the hover actions of the selected task, or the last
// status message.
func (e *Explorer) renderHint() string {
	if e.status != "" {
		return hintStyle.Render(" " + truncate(e.status, e.width-1))
	}
	if info := e.selectedTask(); info != nil {
		return hintStyle.Render(" " + e.cmds.HoverFor(*info).Text())
	}
	return ""
}

// clip cuts styled text to width cells without breaking escape sequences.
func clip(s string, width int) string {
	if width <= 0 {
		return s
	}
	return lipgloss.NewStyle().MaxWidth(width).Render(s)
}

func truncate(s string, maxLen int) string {
	if maxLen < 4 { //nolint:mnd // minimum length for truncation
		maxLen = 4
	}
	if lipgloss.Width(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen-3]) + "..."
}
