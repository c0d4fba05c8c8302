// This file implements the interactive chat interface using bubbletea.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"dcagent/cmd/dcagent/ui"
	"dcagent/internal/agent"
	"dcagent/internal/config"
	"dcagent/internal/logging"
)

// chatModel is the main model for the interactive chat interface
type chatModel struct {
	// UI components
	textinput textinput.Model
	viewport  viewport.Model
	spinner   spinner.Model
	styles    ui.Styles
	renderer  *glamour.TermRenderer

	// State
	history   []chatMessage
	isLoading bool
	err       error
	width     int
	height    int
	ready     bool

	// Backend
	agent     *agent.Agent
	cfg       *config.Config
	workspace string
	turnCount int
}

type chatMessage struct {
	role    string // "user" or "assistant"
	content string
	time    time.Time
}

// Messages for tea updates
type (
	responseMsg string
	errorMsg    error
)

// newMarkdownRenderer builds the glamour renderer for the current theme.
// Resizes rebuild the renderer, so the theme choice lives here rather
// than at the call sites.
func newMarkdownRenderer(isDark bool, wrap int) *glamour.TermRenderer {
	if wrap <= 0 {
		wrap = 80
	}
	var renderer *glamour.TermRenderer
	if isDark {
		renderer, _ = glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(wrap),
		)
	} else {
		renderer, _ = glamour.NewTermRenderer(
			glamour.WithStylePath("light"),
			glamour.WithWordWrap(wrap),
		)
	}
	return renderer
}

// initChat initializes the interactive chat model
func initChat(cfg *config.Config, a *agent.Agent) chatModel {
	styles := ui.DefaultStyles()

	ti := textinput.New()
	ti.Placeholder = "Ask about a place... (Enter to send, Ctrl+C to exit)"
	ti.Focus()
	ti.Prompt = "│ "
	ti.CharLimit = 4096
	ti.Width = 80
	ti.PromptStyle = styles.Prompt
	ti.TextStyle = styles.UserInput

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.Spinner

	vp := viewport.New(80, 20)
	vp.SetContent("")

	renderer := newMarkdownRenderer(styles.Theme.IsDark, 80)

	workspace, _ := os.Getwd()

	return chatModel{
		textinput: ti,
		viewport:  vp,
		spinner:   sp,
		styles:    styles,
		renderer:  renderer,
		history:   []chatMessage{},
		agent:     a,
		cfg:       cfg,
		workspace: workspace,
	}
}

func (m chatModel) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		m.spinner.Tick,
	)
}

func (m chatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		tiCmd tea.Cmd
		vpCmd tea.Cmd
		spCmd tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit

		case tea.KeyEnter:
			if !m.isLoading {
				return m.handleSubmit()
			}
		}

		if !m.isLoading {
			m.textinput, tiCmd = m.textinput.Update(msg)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		headerHeight := 4
		footerHeight := 2
		inputHeight := 3

		if !m.ready {
			m.viewport = viewport.New(msg.Width-4, msg.Height-headerHeight-footerHeight-inputHeight)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width - 4
			m.viewport.Height = msg.Height - headerHeight - footerHeight - inputHeight
		}

		m.textinput.Width = msg.Width - 4

		if m.renderer != nil {
			m.renderer = newMarkdownRenderer(m.styles.Theme.IsDark, msg.Width-8)
		}

	case spinner.TickMsg:
		if m.isLoading {
			m.spinner, spCmd = m.spinner.Update(msg)
			return m, spCmd
		}

	case responseMsg:
		m.isLoading = false
		m.err = nil
		m.turnCount++
		m.history = append(m.history, chatMessage{
			role:    "assistant",
			content: string(msg),
			time:    time.Now(),
		})
		m.viewport.SetContent(m.renderHistory())
		m.viewport.GotoBottom()

	case errorMsg:
		m.isLoading = false
		m.err = msg
	}

	m.viewport, vpCmd = m.viewport.Update(msg)

	return m, tea.Batch(tiCmd, vpCmd, spCmd)
}

func (m chatModel) handleSubmit() (tea.Model, tea.Cmd) {
	input := strings.TrimSpace(m.textinput.Value())
	if input == "" {
		return m, nil
	}

	if strings.HasPrefix(input, "/") {
		return m.handleCommand(input)
	}

	m.history = append(m.history, chatMessage{
		role:    "user",
		content: input,
		time:    time.Now(),
	})

	m.textinput.Reset()
	m.viewport.SetContent(m.renderHistory())
	m.viewport.GotoBottom()
	m.isLoading = true

	return m, tea.Batch(
		m.spinner.Tick,
		m.processInput(input),
	)
}

func (m chatModel) handleCommand(input string) (tea.Model, tea.Cmd) {
	parts := strings.Fields(input)

	switch parts[0] {
	case "/quit", "/exit", "/q":
		return m, tea.Quit

	case "/clear":
		m.history = []chatMessage{}
		m.viewport.SetContent("")
		m.textinput.Reset()
		return m, nil

	case "/reset":
		m.agent.Reset()
		m.textinput.Reset()
		return m.appendAssistant("Conversation history cleared. The next question starts fresh.")

	case "/status":
		m.textinput.Reset()
		return m.appendAssistant(fmt.Sprintf(
			"**Session** `%s`\n\n| Setting | Value |\n|---------|-------|\n| Model | %s |\n| Data Commons | %s |\n| Turns | %d |",
			m.agent.SessionID(), m.cfg.LLM.Model, m.cfg.DataCommons.BaseURL, m.turnCount,
		))

	case "/help":
		m.textinput.Reset()
		return m.appendAssistant(`## Available Commands

| Command | Description |
|---------|-------------|
| /help | Show this help message |
| /clear | Clear the chat display |
| /reset | Reset the conversation history |
| /status | Show session status |
| /quit, /exit, /q | Exit |

## Tips
- Ask about places: *"What is the population of France and Japan?"*
- **Enter** to send, **Ctrl+C** or **Esc** to exit
- Use **↑/↓** to scroll history`)

	default:
		m.textinput.Reset()
		return m.appendAssistant(fmt.Sprintf("Unknown command `%s`. Try `/help`.", parts[0]))
	}
}

func (m chatModel) appendAssistant(content string) (tea.Model, tea.Cmd) {
	m.history = append(m.history, chatMessage{
		role:    "assistant",
		content: content,
		time:    time.Now(),
	})
	m.viewport.SetContent(m.renderHistory())
	m.viewport.GotoBottom()
	return m, nil
}

// processInput runs the agent loop in the background.
func (m chatModel) processInput(input string) tea.Cmd {
	a := m.agent
	queryTimeout := timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
		defer cancel()

		answer, err := a.Ask(ctx, input)
		if err != nil {
			return errorMsg(err)
		}
		return responseMsg(answer)
	}
}

func (m chatModel) renderHistory() string {
	var sb strings.Builder

	for _, msg := range m.history {
		if msg.role == "user" {
			userStyle := m.styles.Bold.
				Foreground(m.styles.Theme.Primary).
				MarginTop(1)
			sb.WriteString(userStyle.Render("You") + "\n")
			sb.WriteString(m.styles.UserInput.Render(msg.content))
			sb.WriteString("\n\n")
		} else {
			assistantStyle := m.styles.Bold.
				Foreground(m.styles.Theme.Accent).
				MarginTop(1)
			sb.WriteString(assistantStyle.Render("🌍 dcagent") + "\n")
			sb.WriteString(m.safeRenderMarkdown(msg.content))
			sb.WriteString("\n")
		}
	}

	return sb.String()
}

// safeRenderMarkdown renders markdown with panic recovery
func (m chatModel) safeRenderMarkdown(content string) (result string) {
	defer func() {
		if r := recover(); r != nil {
			// If glamour panics, return plain text
			result = content
		}
	}()

	if m.renderer != nil && content != "" {
		rendered, err := m.renderer.Render(content)
		if err == nil {
			return rendered
		}
	}
	return content
}

func (m chatModel) View() string {
	if !m.ready {
		return "Initializing..."
	}

	header := m.renderHeader()

	chatView := m.styles.Content.Render(m.viewport.View())

	if m.isLoading {
		chatView += "\n" + m.styles.Spinner.Render(m.spinner.View()) + " Consulting Data Commons..."
	}

	if m.err != nil {
		chatView += "\n" + m.styles.Error.Render("Error: "+m.err.Error())
	}

	inputStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(m.styles.Theme.Accent).
		Padding(0, 1)
	inputArea := inputStyle.Render(m.textinput.View())

	footer := m.renderFooter()

	return lipgloss.JoinVertical(
		lipgloss.Left,
		header,
		chatView,
		inputArea,
		footer,
	)
}

func (m chatModel) renderHeader() string {
	title := m.styles.Header.Render(" 🌍 dcagent ")
	model := m.styles.Badge.Render(m.cfg.LLM.Model)

	var status string
	if m.isLoading {
		status = m.styles.Warning.Render("● Processing")
	} else {
		status = m.styles.Success.Render("● Ready")
	}

	headerLine := lipgloss.JoinHorizontal(
		lipgloss.Center,
		title,
		" ",
		model,
		"  ",
		status,
	)

	return lipgloss.JoinVertical(
		lipgloss.Left,
		headerLine,
		m.styles.Muted.Render(fmt.Sprintf(" 📁 %s", m.workspace)),
		m.styles.RenderDivider(m.width),
	)
}

func (m chatModel) renderFooter() string {
	help := m.styles.Muted.Render("Enter: send • /help: commands • Ctrl+C: exit")
	return lipgloss.NewStyle().
		MarginTop(1).
		Render(help)
}

// runInteractiveChat launches the chat TUI.
func runInteractiveChat() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	workspace, _ := os.Getwd()
	if err := logging.Initialize(workspace); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: logging initialization failed: %v\n", err)
	}
	defer logging.CloseAll()

	a, err := newAgent(context.Background(), cfg)
	if err != nil {
		return err
	}

	p := tea.NewProgram(
		initChat(cfg, a),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)

	_, err = p.Run()
	return err
}
