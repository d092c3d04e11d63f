// This file implements the interactive chat interface using bubbletea.
package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/dhruvdaberao/CROCO/internal/chat"
)

// pollInterval drives re-renders while a reply streams in. The
// orchestrator mutates the trailing turn chunk by chunk, so the TUI
// polls the transcript rather than receiving per-token messages.
const pollInterval = 80 * time.Millisecond

// Messages for tea updates
type (
	sendDoneMsg struct{}
	pollMsg     struct{}
)

type chatStyles struct {
	header    lipgloss.Style
	userLabel lipgloss.Style
	crocLabel lipgloss.Style
	userText  lipgloss.Style
	muted     lipgloss.Style
	errText   lipgloss.Style
	spinner   lipgloss.Style
	input     lipgloss.Style
}

func defaultChatStyles() chatStyles {
	return chatStyles{
		header:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42")).Padding(0, 1),
		userLabel: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")).MarginTop(1),
		crocLabel: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42")).MarginTop(1),
		userText:  lipgloss.NewStyle().Foreground(lipgloss.Color("252")),
		muted:     lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		errText:   lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		spinner:   lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		input: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("42")).
			Padding(0, 1),
	}
}

// chatModel is the main model for the interactive chat interface
type chatModel struct {
	// UI components
	textinput textinput.Model
	viewport  viewport.Model
	spinner   spinner.Model
	styles    chatStyles
	renderer  *glamour.TermRenderer

	// State
	width   int
	height  int
	ready   bool
	sending bool
	err     error

	// Image staged for the next message via /attach
	pendingImage string

	// Backend
	orch    *chat.Orchestrator
	timeout time.Duration
}

func initChatModel(orch *chat.Orchestrator, timeout time.Duration) chatModel {
	ti := textinput.New()
	ti.Placeholder = "Say something... (Enter to send, Ctrl+C to exit)"
	ti.Focus()
	ti.Prompt = "│ "
	ti.CharLimit = 4096
	ti.Width = 80

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	vp := viewport.New(80, 20)
	vp.SetContent("")

	renderer, _ := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)

	return chatModel{
		textinput: ti,
		viewport:  vp,
		spinner:   sp,
		styles:    defaultChatStyles(),
		renderer:  renderer,
		orch:      orch,
		timeout:   timeout,
	}
}

func (m chatModel) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

func pollCmd() tea.Cmd {
	return tea.Tick(pollInterval, func(time.Time) tea.Msg { return pollMsg{} })
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
			if !m.sending {
				return m.handleSubmit()
			}
		}

		if !m.sending {
			m.textinput, tiCmd = m.textinput.Update(msg)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		headerHeight := 3
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
			m.renderer, _ = glamour.NewTermRenderer(
				glamour.WithAutoStyle(),
				glamour.WithWordWrap(msg.Width-8),
			)
		}
		m.refreshTranscript()

	case spinner.TickMsg:
		if m.sending {
			m.spinner, spCmd = m.spinner.Update(msg)
			return m, spCmd
		}

	case pollMsg:
		// Re-render the streamed text; keep polling until the send
		// command reports completion.
		if m.sending {
			m.refreshTranscript()
			return m, pollCmd()
		}

	case sendDoneMsg:
		m.sending = false
		m.refreshTranscript()
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

	image := m.pendingImage
	m.pendingImage = ""
	m.textinput.Reset()
	m.textinput.Placeholder = "Say something... (Enter to send, Ctrl+C to exit)"
	m.err = nil
	m.sending = true
	m.refreshTranscript()

	return m, tea.Batch(
		m.spinner.Tick,
		pollCmd(),
		m.sendCmd(input, image),
	)
}

func (m chatModel) sendCmd(text, image string) tea.Cmd {
	orch, timeout := m.orch, m.timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		orch.SendMessage(ctx, text, image)
		return sendDoneMsg{}
	}
}

func (m chatModel) handleCommand(input string) (tea.Model, tea.Cmd) {
	fields := strings.Fields(input)
	cmd, args := fields[0], fields[1:]
	m.textinput.Reset()

	switch cmd {
	case "/quit", "/exit":
		return m, tea.Quit

	case "/attach", "/image":
		if len(args) != 1 {
			m.err = fmt.Errorf("usage: /attach <image-file>")
			return m, nil
		}
		dataURL, err := fileToDataURL(args[0])
		if err != nil {
			m.err = err
			return m, nil
		}
		m.pendingImage = dataURL
		m.err = nil
		m.textinput.Placeholder = "Image attached. Add a message and press Enter..."
		return m, nil

	case "/avatar":
		if len(args) != 1 {
			m.err = fmt.Errorf("usage: /avatar <image-file>")
			return m, nil
		}
		dataURL, err := fileToDataURL(args[0])
		if err != nil {
			m.err = err
			return m, nil
		}
		m.orch.UpdateAvatar(dataURL)
		m.err = nil
		m.refreshTranscript()
		return m, nil

	case "/profile":
		encoded, err := json.MarshalIndent(m.orch.Profile(), "", "  ")
		if err != nil {
			m.err = err
			return m, nil
		}
		m.viewport.SetContent(m.renderTranscript() + "\n" + m.styles.muted.Render("Profile:\n"+string(encoded)) + "\n")
		m.viewport.GotoBottom()
		return m, nil

	case "/help":
		help := strings.Join([]string{
			"Commands:",
			"  /attach <file>   attach an image to your next message",
			"  /avatar <file>   set your profile picture",
			"  /profile         show what Croco remembers about you",
			"  /quit            exit",
		}, "\n")
		m.viewport.SetContent(m.renderTranscript() + "\n" + m.styles.muted.Render(help) + "\n")
		m.viewport.GotoBottom()
		return m, nil

	default:
		m.err = fmt.Errorf("unknown command %q (try /help)", cmd)
		return m, nil
	}
}

func (m *chatModel) refreshTranscript() {
	m.viewport.SetContent(m.renderTranscript())
	m.viewport.GotoBottom()
}

func (m chatModel) renderTranscript() string {
	var sb strings.Builder

	for _, turn := range m.orch.Turns() {
		if turn.Speaker == chat.SpeakerUser {
			label := "You"
			if name := m.orch.UserName(); name != "" {
				label = name
			}
			sb.WriteString(m.styles.userLabel.Render(label) + "\n")
			text := turn.Text
			if turn.Image != "" {
				text += " 📎"
			}
			sb.WriteString(m.styles.userText.Render(text))
			sb.WriteString("\n\n")
		} else {
			sb.WriteString(m.styles.crocLabel.Render("🐊 Croco") + "\n")
			sb.WriteString(m.safeRenderMarkdown(turn.Text))
			sb.WriteString("\n")
		}
	}

	return sb.String()
}

// safeRenderMarkdown renders markdown with panic recovery
func (m chatModel) safeRenderMarkdown(content string) (result string) {
	defer func() {
		if r := recover(); r != nil {
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
	chatView := m.viewport.View()

	if m.sending {
		chatView += "\n" + m.styles.spinner.Render(m.spinner.View()) + " Thinking..."
	}
	if errText := m.orch.Err(); errText != "" {
		chatView += "\n" + m.styles.errText.Render(errText)
	}
	if m.err != nil {
		chatView += "\n" + m.styles.errText.Render("Error: " + m.err.Error())
	}

	inputArea := m.styles.input.Render(m.textinput.View())
	footer := m.styles.muted.Render("Enter: send • /help: commands • Ctrl+C: exit")

	return lipgloss.JoinVertical(
		lipgloss.Left,
		header,
		chatView,
		inputArea,
		footer,
	)
}

func (m chatModel) renderHeader() string {
	title := m.styles.header.Render(" 🐊 Croco ")

	var who string
	if name := m.orch.UserName(); name != "" {
		who = m.styles.muted.Render("chatting with " + name)
	} else {
		who = m.styles.muted.Render("getting to know you")
	}

	line := lipgloss.JoinHorizontal(lipgloss.Center, title, "  ", who)
	divider := m.styles.muted.Render(strings.Repeat("─", max(m.width, 1)))
	return lipgloss.JoinVertical(lipgloss.Left, line, divider)
}

// fileToDataURL reads an image file into the data-URL form the
// orchestrator expects.
func fileToDataURL(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}

	mime := "image/png"
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		mime = "image/jpeg"
	case ".gif":
		mime = "image/gif"
	case ".webp":
		mime = "image/webp"
	}

	return fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(data)), nil
}

// runInteractiveChat wires the backend and runs the TUI until exit.
func runInteractiveChat() error {
	a, err := buildApp(context.Background())
	if err != nil {
		return err
	}
	defer a.Close()

	timeout, err := cfg.LLMTimeout()
	if err != nil {
		return err
	}

	p := tea.NewProgram(initChatModel(a.orch, timeout), tea.WithAltScreen())
	_, err = p.Run()
	return err
}
