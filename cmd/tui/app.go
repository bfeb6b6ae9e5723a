package main

import (
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/td0m/tasklists/internal/ui"
	"github.com/td0m/tasklists/pkg/dateinput"
	"github.com/td0m/tasklists/pkg/session"
	"github.com/td0m/tasklists/pkg/task"
)

const (
	headerHeight = 3
	footerHeight = 2
)

type mode int

const (
	modeNormal mode = iota
	modeNewTask
	modeRename
	modeDue
	modeDrag
	modeNewList
	modeEditList
)

// changedMsg tells the program the session changed, locally or in another
// process
type changedMsg struct{}

type app struct {
	mode mode
	help bool
	err  error

	viewport viewport.Model
	input    textinput.Model
	due      dateinput.Model
	tabs     ui.Tabs

	cursor int
	// target is where the dragged task would be dropped
	target int

	s     *session.Session
	store task.Store
	list  task.List
	now   func() time.Time
}

func newApp(s *session.Session, now func() time.Time) *app {
	i := textinput.New()
	i.Prompt = ""
	i.CharLimit = 120
	a := &app{
		input: i,
		due:   dateinput.New(now),
		s:     s,
		now:   now,
	}
	a.refresh()
	return a
}

func (m *app) Init() tea.Cmd {
	return nil
}

func (m *app) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.viewport.Width = msg.Width
		m.viewport.Height = msg.Height - headerHeight - footerHeight
		m.tabs.Width = msg.Width
		m.setCursor(m.cursor)
	case changedMsg:
		m.refresh()
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC:
			return m, tea.Quit
		case tea.KeyEsc:
			if m.mode == modeDrag {
				m.s.CancelDrag()
			}
			m.mode = modeNormal
			m.input.Blur()
		default:
			cmd = m.keyUpdate(msg)
		}
	}
	m.render()
	return m, cmd
}

// refresh takes a new snapshot of the session
func (m *app) refresh() {
	m.store = m.s.Snapshot()
	m.list, _ = m.store.Current(m.s.Selected())
	m.tabs.SetLists(m.store.Lists(), m.list.ID)
	if m.mode == modeDrag {
		if _, ok := m.s.Dragging(); !ok {
			m.mode = modeNormal
		}
	}
	if m.mode == modeRename || m.mode == modeDue {
		if t, ok := m.store.Task(m.atCursor()); !ok || t.Deleted() {
			m.mode = modeNormal
		}
	}
	m.setCursor(m.cursor)
}

// do runs a session operation and keeps its error for the status line
func (m *app) do(err error) bool {
	m.err = err
	m.refresh()
	return err == nil
}

// handle keys differently based on the current mode
func (m *app) keyUpdate(msg tea.KeyMsg) tea.Cmd {
	var cmd tea.Cmd
	switch m.mode {
	case modeNewTask, modeRename, modeNewList, modeEditList:
		if msg.Type == tea.KeyEnter {
			m.submit()
			return nil
		}
		m.input, cmd = m.input.Update(msg)
		if m.mode == modeNewTask {
			// the draft survives restarts and shows up in other terminals
			m.do(m.s.UpdateTaskList(m.list.ID, session.NewTaskTitle(m.input.Value())))
		}
	case modeDue:
		if msg.Type == tea.KeyEnter {
			if m.due.Valid() {
				m.do(m.s.UpdateTask(m.atCursor(), session.Due(m.due.Value())))
				m.mode = modeNormal
			}
			return nil
		}
		m.due, cmd = m.due.Update(msg)
	case modeDrag:
		switch msg.String() {
		case "j", "down":
			m.aim(m.target + 1)
		case "k", "up":
			m.aim(m.target - 1)
		case "enter", "m":
			id := m.atCursor()
			m.mode = modeNormal
			if m.do(m.s.Drop()) {
				m.setCursor(m.indexOf(id))
			}
		}
	case modeNormal:
		m.err = nil
		cmd = m.normalKey(msg.String())
	}
	return cmd
}

func (m *app) normalKey(key string) tea.Cmd {
	id := m.atCursor()
	switch key {
	case "q":
		return tea.Quit
	case "?":
		m.help = !m.help
	case "g":
		m.setCursor(0)
	case "G":
		m.setCursor(len(m.list.TasksSortIndex))
	case "j", "down":
		m.setCursor(m.cursor + 1)
	case "k", "up":
		m.setCursor(m.cursor - 1)
	case "h", "left":
		m.selectOffset(-1)
	case "l", "right":
		m.selectOffset(1)
	case "o":
		m.mode = modeNewTask
		m.input.SetValue(m.list.NewTaskTitle)
		m.input.CursorEnd()
		return m.input.Focus()
	case "i":
		if t, ok := m.editable(id); ok {
			m.mode = modeRename
			m.input.SetValue(t.Title)
			m.input.CursorEnd()
			return m.input.Focus()
		}
	case "d":
		if t, ok := m.editable(id); ok {
			m.mode = modeDue
			m.due.SetValue(t.DueAt)
		}
	case "x", " ":
		if id != "" {
			m.do(m.s.ToggleTask(id))
		}
	case "D", "delete":
		if id != "" {
			m.do(m.s.DeleteTask(id))
		}
	case "J":
		if id != "" && m.do(m.s.MoveTask(id, m.cursor+2)) {
			m.setCursor(m.indexOf(id))
		}
	case "K":
		if id != "" && m.cursor > 0 && m.do(m.s.MoveTask(id, m.cursor-1)) {
			m.setCursor(m.indexOf(id))
		}
	case "m":
		if id != "" && m.do(m.s.Pick(id)) {
			m.mode = modeDrag
			m.aim(m.cursor)
		}
	case "t":
		if next, ok := m.tabs.Offset(1); ok && id != "" && next.ID != m.list.ID {
			m.do(m.s.TransferTask(id, next.ID, len(next.TasksSortIndex)))
		}
	case "n":
		m.mode = modeNewList
		m.input.SetValue("")
		return m.input.Focus()
	case "e":
		m.mode = modeEditList
		m.input.SetValue(m.list.Title)
		m.input.CursorEnd()
		return m.input.Focus()
	case "c":
		m.do(m.s.UpdateTaskList(m.list.ID, session.ListColor(nextColor(m.list.ThemeColor))))
	case "X":
		m.do(m.s.DeleteTaskList(m.list.ID))
	case "<":
		if i := m.tabs.Value(); i > 0 {
			m.do(m.s.PlaceTaskList(m.list.ID, i-1))
		}
	case ">":
		if i := m.tabs.Value(); i < len(m.store.Lists())-1 {
			m.do(m.s.PlaceTaskList(m.list.ID, i+1))
		}
	}
	return nil
}

func (m *app) submit() {
	value := m.input.Value()
	switch m.mode {
	case modeNewTask:
		if strings.TrimSpace(value) == "" {
			break
		}
		_, err := m.s.CreateTask(m.list.ID, value)
		if m.do(err) {
			m.setCursor(len(m.list.TasksSortIndex) - 1)
		}
	case modeRename:
		m.do(m.s.UpdateTask(m.atCursor(), session.Title(value)))
	case modeNewList:
		_, err := m.s.CreateTaskList(value, "")
		if m.do(err) {
			m.setCursor(0)
		}
	case modeEditList:
		m.do(m.s.UpdateTaskList(m.list.ID, session.ListTitle(value)))
	}
	m.mode = modeNormal
	m.input.Blur()
}

func (m *app) aim(target int) {
	m.target = clamp(target, 0, len(m.list.TasksSortIndex))
	m.err = m.s.Aim(m.target)
}

func (m *app) selectOffset(delta int) {
	if l, ok := m.tabs.Offset(delta); ok && m.do(m.s.Select(l.ID)) {
		m.setCursor(0)
	}
}

func (m *app) editable(id task.ID) (task.Task, bool) {
	t, ok := m.store.Task(id)
	if !ok || t.Deleted() {
		m.err = task.ErrDeleted
		return t, false
	}
	return t, true
}

func (m app) atCursor() task.ID {
	if m.cursor >= len(m.list.TasksSortIndex) {
		return ""
	}
	return m.list.TasksSortIndex[m.cursor]
}

func (m app) indexOf(id task.ID) int {
	for i, v := range m.list.TasksSortIndex {
		if v == id {
			return i
		}
	}
	return m.cursor
}

func (m *app) setCursor(value int) {
	m.cursor = clamp(value, 0, max(len(m.list.TasksSortIndex)-1, 0))
	if m.viewport.Height <= 0 {
		return
	}
	if m.cursor < m.viewport.YOffset {
		m.viewport.YOffset = m.cursor
	}
	if m.cursor >= m.viewport.YOffset+m.viewport.Height {
		m.viewport.YOffset = m.cursor - m.viewport.Height + 1
	}
}

func (m *app) render() {
	m.viewport.SetContent(m.viewTasks())
}

func (m app) viewTasks() string {
	var (
		s     strings.Builder
		theme = ui.Theme(m.list.ThemeColor)
		now   = m.now()
	)
	drag, dragging := m.s.Dragging()
	placeholder := func(i int) {
		if m.mode == modeDrag && dragging && m.target == i && !m.s.PlaceholderHidden(i) {
			s.WriteString(ui.Placeholder.Copy().Foreground(theme).Render("── drop here ──") + "\n")
		}
	}
	for i, id := range m.list.TasksSortIndex {
		placeholder(i)
		t := m.store.Tasks[id]

		title := ui.TaskTitle
		switch {
		case t.Deleted():
			title = ui.TaskDeleted
		case t.Completed:
			title = ui.TaskDone
		}
		marker := " "
		if (m.mode != modeDrag && i == m.cursor) || (dragging && drag.ID == id) {
			marker = "›"
			title = title.Copy().Background(ui.Faded)
		}

		s.WriteString(ui.TaskCursor.Copy().Foreground(theme).Render(marker))
		s.WriteString(ui.Checkbox(t.Completed, theme) + " ")
		if m.mode == modeRename && i == m.cursor {
			s.WriteString(m.input.View())
		} else {
			s.WriteString(title.Render(t.Title))
		}
		if t.DueAt != nil {
			style := ui.TaskDue
			if t.DueAt.Before(dateinput.StartOfDay(now)) && !t.Completed {
				style = ui.TaskOverdue
			}
			s.WriteString(ui.TaskDivider + style.Render(dateinput.Describe(*t.DueAt, now)))
		}
		s.WriteString("\n")
	}
	placeholder(len(m.list.TasksSortIndex))
	if len(m.list.TasksSortIndex) == 0 {
		s.WriteString(ui.Help.Render("no tasks yet, press o to add one"))
	}
	return s.String()
}

const helpText = `j/k move cursor   h/l switch list   o new task   i rename   x toggle
d due date   D delete   J/K move task   m drag   t send to next list
n new list   e rename list   c recolor list   X delete list   </> move list   q quit`

func (m *app) View() string {
	status := ""
	switch m.mode {
	case modeNewTask:
		status = "new task: " + m.input.View()
	case modeRename:
		status = "rename, enter to save"
	case modeDue:
		status = m.due.View()
	case modeDrag:
		status = "drag: j/k to move, enter to drop, esc to cancel"
	case modeNewList:
		status = "new list: " + m.input.View()
	case modeEditList:
		status = "list title: " + m.input.View()
	default:
		if m.err != nil {
			status = ui.Failure.Render(m.err.Error())
		} else {
			status = lipgloss.NewStyle().Foreground(ui.Faded).Render("? for help")
		}
	}
	out := m.tabs.View() + m.viewport.View() + "\n" + status
	if m.help {
		out += ui.Help.Render(helpText)
	}
	return out
}

// nextColor cycles through the theme colors
func nextColor(c task.Color) task.Color {
	for i, v := range task.Colors {
		if v == c {
			return task.Colors[(i+1)%len(task.Colors)]
		}
	}
	return task.Colors[0]
}

func clamp(v, low, high int) int {
	return min(high, max(low, v))
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
