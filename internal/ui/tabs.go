package ui

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/td0m/tasklists/pkg/task"
)

var (
	tabContainer = lipgloss.NewStyle().Padding(1, 1)
	inactiveTab  = lipgloss.NewStyle().Foreground(Secondary)
	tabDivider   = lipgloss.NewStyle().Foreground(Faded)
)

// Tabs shows one tab per task list, colored by the theme of the list
type Tabs struct {
	lists []task.List
	i     int

	Width int
	Info  string
}

// NewTabs creates a new tabs ui bubbletea model
func NewTabs(lists []task.List) Tabs {
	return Tabs{lists: lists}
}

func (m Tabs) Init() tea.Cmd {
	return nil
}

func (m Tabs) Update(_ tea.Msg) (Tabs, tea.Cmd) {
	return m, nil
}

func (m Tabs) View() string {
	tabs := make([]string, len(m.lists))
	for i, l := range m.lists {
		r := inactiveTab
		if i == m.i {
			r = lipgloss.NewStyle().Foreground(Theme(l.ThemeColor)).Bold(true).Underline(true)
		}
		tabs[i] = r.Render(l.Title)
	}
	w := lipgloss.Width
	left := strings.Join(tabs, tabDivider.Render(" | "))
	right := m.Info
	space := lipgloss.NewStyle().Width(max(m.Width-2-w(left)-w(right), 0)).Render("")
	return tabContainer.Render(lipgloss.JoinHorizontal(lipgloss.Center, left, space, right)) + "\n"
}

// SetLists replaces the tabs and selects the list with the given id
func (m *Tabs) SetLists(lists []task.List, selected task.ID) {
	m.lists = lists
	m.i = 0
	for i, l := range lists {
		if l.ID == selected {
			m.i = i
		}
	}
}

func (m Tabs) Value() int {
	return m.i
}

// Selected returns the list under the selected tab
func (m Tabs) Selected() (task.List, bool) {
	if m.i < 0 || m.i >= len(m.lists) {
		return task.List{}, false
	}
	return m.lists[m.i], true
}

// Offset returns the list delta tabs away from the selected one, wrapping
// around at both ends
func (m Tabs) Offset(delta int) (task.List, bool) {
	n := len(m.lists)
	if n == 0 {
		return task.List{}, false
	}
	return m.lists[((m.i+delta)%n+n)%n], true
}

func (m *Tabs) Set(i int) {
	m.i = min(max(i, 0), len(m.lists)-1)
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
