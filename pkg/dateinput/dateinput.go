package dateinput

import (
	"strconv"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	indicator = lipgloss.NewStyle().Padding(0, 1).Bold(true)
	checkmark = indicator.Copy().
			Foreground(lipgloss.AdaptiveColor{Light: "#00ad3b", Dark: "#73F59F"}).
			Render("✓")

	cross = indicator.Copy().
		Foreground(lipgloss.AdaptiveColor{Light: "", Dark: "#FF5047"}).
		Render("✗")

	faded = lipgloss.AdaptiveColor{Light: "#666", Dark: "#999"}
)

// Model is a text input for due dates. It understands "today", "tomorrow",
// weekdays, relative dates like "in 2 weeks" and absolute ones like "21 Apr".
type Model struct {
	i     textinput.Model
	value *time.Time
	now   func() time.Time
}

func New(now func() time.Time) Model {
	i := textinput.New()
	i.Focus()
	i.CharLimit = 20
	i.Prompt = ""
	return Model{
		i:   i,
		now: now,
	}
}

func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	var cmd tea.Cmd
	switch msg := msg.(type) {
	case tea.KeyMsg:
		m.i, cmd = m.i.Update(msg)
		m.value = nil
		if t, ok := Parse(m.i.Value(), m.now()); ok {
			m.value = &t
		}
		return m, cmd
	}
	return m, nil
}

func (m Model) View() string {
	indicator := cross
	if m.i.Value() == "" {
		indicator = ""
	} else if m.value != nil {
		indicator = checkmark + " " + format(*m.value, m.now())
	}
	return lipgloss.NewStyle().Foreground(faded).Render("due: ") + m.i.View() + indicator
}

// Value is the parsed date, nil when the input is empty or invalid
func (m Model) Value() *time.Time {
	return m.value
}

// Valid reports whether the input can be saved: empty clears the due date
func (m Model) Valid() bool {
	return m.i.Value() == "" || m.value != nil
}

func (m *Model) SetValue(t *time.Time) {
	m.value = t
	if t == nil {
		m.i.SetValue("")
		return
	}
	m.i.SetValue(t.Format("_2 Jan 2006"))
}

// format describes how far t is from now
func format(t, now time.Time) string {
	days := int(StartOfDay(t).Sub(StartOfDay(now)).Hours() / 24)
	switch {
	case days == 0:
		return "today"
	case days == 1:
		return "tomorrow"
	case days < 0:
		return strconv.Itoa(-days) + " days ago"
	case days < 14:
		return strconv.Itoa(days) + " days"
	// max 1 month
	case days <= 31:
		return strconv.Itoa(days/7) + " weeks"
	default:
		postfix := ""
		months := days / 31
		if months > 1 {
			postfix = "s"
		}
		return strconv.Itoa(months) + " month" + postfix
	}
}

// Describe formats a due date for a task row
func Describe(t, now time.Time) string {
	return "due " + format(t, now)
}
