// Package tui is the bundled terminal popup. It renders an interaction
// request on the controlling terminal and produces the user's Response.
package tui

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fyrsmithlabs/cunzhi/internal/interaction"
)

type focus int

const (
	focusOptions focus = iota
	focusInput
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color("51")).
			Bold(true).
			Padding(0, 1)

	messageStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("238")).
			Padding(0, 1)

	cursorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51")).
			Bold(true)

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("46"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))
)

// Model is the bubbletea model for one popup.
type Model struct {
	title    string
	request  *interaction.Request
	cursor   int
	selected map[int]bool
	input    textarea.Model
	focus    focus
	width    int

	done      bool
	cancelled bool
}

// NewModel creates a popup for req. title labels the window, usually the
// leader tool's display name.
func NewModel(title string, req *interaction.Request) Model {
	ta := textarea.New()
	ta.Placeholder = "补充说明（可选）"
	ta.ShowLineNumbers = false
	ta.SetHeight(4)
	ta.SetWidth(72)

	m := Model{
		title:    title,
		request:  req,
		selected: make(map[int]bool),
		input:    ta,
		width:    76,
	}
	if len(req.PredefinedOptions) == 0 {
		m.focus = focusInput
		m.input.Focus()
	}
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return textarea.Blink
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		if msg.Width > 4 {
			m.input.SetWidth(msg.Width - 4)
		}
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.cancelled = true
			m.done = true
			return m, tea.Quit
		case "ctrl+s":
			m.done = true
			return m, tea.Quit
		case "tab":
			m.toggleFocus()
			return m, nil
		}

		if m.focus == focusOptions {
			switch msg.String() {
			case "up", "k":
				if m.cursor > 0 {
					m.cursor--
				}
			case "down", "j":
				if m.cursor < len(m.request.PredefinedOptions)-1 {
					m.cursor++
				}
			case " ", "x":
				m.selected[m.cursor] = !m.selected[m.cursor]
			case "enter":
				m.done = true
				return m, tea.Quit
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) toggleFocus() {
	if len(m.request.PredefinedOptions) == 0 {
		return
	}
	if m.focus == focusOptions {
		m.focus = focusInput
		m.input.Focus()
		return
	}
	m.focus = focusOptions
	m.input.Blur()
}

// View implements tea.Model.
func (m Model) View() string {
	if m.done {
		return ""
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(m.title))
	b.WriteString("\n\n")
	b.WriteString(messageStyle.Width(max(m.width-2, 20)).Render(m.request.Message))
	b.WriteString("\n\n")

	for i, opt := range m.request.PredefinedOptions {
		cursor := "  "
		if m.focus == focusOptions && i == m.cursor {
			cursor = cursorStyle.Render("> ")
		}
		box := "[ ]"
		line := opt
		if m.selected[i] {
			box = "[x]"
			line = selectedStyle.Render(opt)
		}
		fmt.Fprintf(&b, "%s%s %s\n", cursor, box, line)
	}
	if len(m.request.PredefinedOptions) > 0 {
		b.WriteString("\n")
	}

	b.WriteString(m.input.View())
	b.WriteString("\n\n")
	b.WriteString(dimStyle.Render("space 选择 • tab 切换 • ctrl+s 提交 • esc 取消"))
	b.WriteString("\n")
	return b.String()
}

// Response converts the final model state into the popup answer.
func (m Model) Response() *interaction.Response {
	if m.cancelled || !m.done {
		return &interaction.Response{Cancelled: true}
	}
	resp := &interaction.Response{
		UserInput: strings.TrimSpace(m.input.Value()),
	}
	for i, opt := range m.request.PredefinedOptions {
		if m.selected[i] {
			resp.SelectedOptions = append(resp.SelectedOptions, opt)
		}
	}
	return resp
}

// Run shows req on the given terminal streams until the user submits or
// cancels, or ctx is done.
func Run(ctx context.Context, title string, req *interaction.Request, in io.Reader, out io.Writer) (*interaction.Response, error) {
	p := tea.NewProgram(NewModel(title, req),
		tea.WithContext(ctx),
		tea.WithInput(in),
		tea.WithOutput(out),
		tea.WithAltScreen(),
	)
	final, err := p.Run()
	if err != nil {
		return nil, fmt.Errorf("run popup: %w", err)
	}
	m, ok := final.(Model)
	if !ok {
		return nil, fmt.Errorf("unexpected popup model %T", final)
	}
	return m.Response(), nil
}

// OpenTTY opens the controlling terminal for reading and writing. The popup
// cannot use stdout, which carries the response back to the caller.
func OpenTTY() (*os.File, error) {
	tty, err := os.OpenFile("/dev/tty", os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("open terminal: %w", err)
	}
	return tty, nil
}
