// internal/tui/tui.go
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/user/agentscope/internal/engine"
	"github.com/user/agentscope/internal/protocol"
	"github.com/user/agentscope/internal/timeline"
	"github.com/user/agentscope/internal/transport"
	"github.com/user/agentscope/internal/usage"
)

// stateChangedMsg signals that the engine applied an event or the
// connection status moved.
type stateChangedMsg struct{}

type styles struct {
	header    lipgloss.Style
	user      lipgloss.Style
	assistant lipgloss.Style
	tool      lipgloss.Style
	errMsg    lipgloss.Style
	muted     lipgloss.Style
	graphPane lipgloss.Style
}

func newStyles() styles {
	green := lipgloss.Color("2")
	cyan := lipgloss.Color("6")
	red := lipgloss.Color("1")
	gray := lipgloss.Color("8")

	return styles{
		header:    lipgloss.NewStyle().Bold(true).Foreground(cyan),
		user:      lipgloss.NewStyle().Bold(true).Foreground(green),
		assistant: lipgloss.NewStyle(),
		tool:      lipgloss.NewStyle().Foreground(cyan),
		errMsg:    lipgloss.NewStyle().Foreground(red).Bold(true),
		muted:     lipgloss.NewStyle().Foreground(gray),
		graphPane: lipgloss.NewStyle().BorderStyle(lipgloss.RoundedBorder()).BorderForeground(gray).Padding(0, 1),
	}
}

// Model is the terminal presentation layer. It is a pure consumer of engine
// snapshots and a pure producer of SendMessage / NewConversation.
type Model struct {
	eng       *engine.Engine
	estimator *usage.Estimator // nil when the tokenizer is unavailable

	vp        viewport.Model
	input     textinput.Model
	spin      spinner.Model
	styles    styles
	showGraph bool
	width     int
	height    int
	ready     bool
}

// New creates the TUI model. estimator may be nil.
func New(eng *engine.Engine, estimator *usage.Estimator) Model {
	input := textinput.New()
	input.Placeholder = "Message the agent..."
	input.Focus()

	spin := spinner.New()
	spin.Spinner = spinner.Dot

	return Model{
		eng:       eng,
		estimator: estimator,
		input:     input,
		spin:      spin,
		styles:    newStyles(),
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spin.Tick, m.waitForUpdate())
}

// waitForUpdate blocks on the engine's coalesced change channel.
func (m Model) waitForUpdate() tea.Cmd {
	return func() tea.Msg {
		<-m.eng.Updates()
		return stateChangedMsg{}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		chatHeight := m.height - 5
		if chatHeight < 3 {
			chatHeight = 3
		}
		if !m.ready {
			m.vp = viewport.New(m.width, chatHeight)
			m.ready = true
		} else {
			m.vp.Width = m.width
			m.vp.Height = chatHeight
		}
		m.refreshChat()

	case stateChangedMsg:
		m.refreshChat()
		cmds = append(cmds, m.waitForUpdate())

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		cmds = append(cmds, cmd)

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyCtrlN:
			m.eng.NewConversation()
			m.refreshChat()
			return m, tea.Batch(cmds...)
		case tea.KeyCtrlG:
			m.showGraph = !m.showGraph
			m.refreshChat()
			return m, tea.Batch(cmds...)
		case tea.KeyEnter:
			content := strings.TrimSpace(m.input.Value())
			if content == "" {
				return m, tea.Batch(cmds...)
			}
			if err := m.eng.SendMessage(content); err == nil {
				m.input.SetValue("")
				m.refreshChat()
			}
			return m, tea.Batch(cmds...)
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.vp, cmd = m.vp.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// refreshChat re-renders the viewport from the current snapshots and pins
// the view to the bottom.
func (m *Model) refreshChat() {
	if !m.ready {
		return
	}
	var b strings.Builder
	for _, item := range m.eng.Timeline() {
		b.WriteString(m.renderItem(item))
		b.WriteString("\n")
	}
	if m.showGraph {
		b.WriteString("\n")
		b.WriteString(m.styles.graphPane.Render(m.renderGraph()))
		b.WriteString("\n")
	}
	m.vp.SetContent(b.String())
	m.vp.GotoBottom()
}

func (m *Model) renderItem(item timeline.Item) string {
	switch item.Kind {
	case protocol.KindUserInput:
		return m.styles.user.Render("you: ") + str(item.Payload["content"])
	case protocol.KindFinalAnswer:
		prefix := "agent: "
		if item.ID == timeline.StreamingID {
			prefix = "agent~ "
		}
		return m.styles.assistant.Render(prefix + str(item.Payload["content"]))
	case protocol.KindToolCall:
		return m.styles.tool.Render(fmt.Sprintf("[tool] %s", str(item.Payload["name"])))
	case protocol.KindToolResult:
		status := str(item.Payload["status"])
		return m.styles.tool.Render(fmt.Sprintf("[tool] %s %s", str(item.Payload["name"]), status))
	case protocol.KindError:
		return m.styles.errMsg.Render("error: " + str(item.Payload["message"]))
	default:
		return m.styles.muted.Render(string(item.Kind))
	}
}

// renderGraph lists the execution chain, one node per line, grouped by turn.
func (m *Model) renderGraph() string {
	nodes, _ := m.eng.Graph()
	if len(nodes) == 0 {
		return "no graph yet"
	}
	var b strings.Builder
	turn := -1
	for _, n := range nodes {
		if n.Turn != turn {
			turn = n.Turn
			fmt.Fprintf(&b, "turn %d\n", turn)
		}
		fmt.Fprintf(&b, "  [%s] %s\n", n.Status, n.Label)
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m Model) headerLine() string {
	status := string(m.eng.Status())
	if m.eng.Status() == transport.StatusConnected && m.eng.Running() {
		status = m.spin.View() + "working"
	}
	meta := m.eng.Meta()
	u := m.eng.Usage()

	parts := []string{m.styles.header.Render("agentscope"), status}
	if meta.ModelName != "" {
		parts = append(parts, meta.ModelName)
	}
	parts = append(parts, fmt.Sprintf("tokens %d/%d", u.TotalTokens, meta.ContextLimit))
	if skill := m.eng.ActiveSkill(); skill != "" {
		parts = append(parts, "skill:"+skill)
	}
	return strings.Join(parts, "  |  ")
}

func (m Model) footerLine() string {
	hints := "enter send · ctrl+n new · ctrl+g graph · ctrl+c quit"
	if m.estimator != nil {
		b := m.estimator.Assess(m.input.Value(), m.eng.Usage(), m.eng.Meta().ContextLimit)
		hints = fmt.Sprintf("draft ~%d tok (%.0f%% ctx) · %s", b.DraftTokens, b.Fraction()*100, hints)
	}
	return m.styles.muted.Render(hints)
}

func (m Model) View() string {
	if !m.ready {
		return "loading..."
	}
	return strings.Join([]string{
		m.headerLine(),
		m.vp.View(),
		m.input.View(),
		m.footerLine(),
	}, "\n")
}

func str(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%v", v)
}
