package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"
	orchestration "github.com/zhafranr/nova-core/core"
	"github.com/zhafranr/nova-core/core/conversations"
)

const (
	roleUser      = "user"
	roleAssistant = "assistant"
	roleSystem    = "system"
)

var (
	headerStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212")).Padding(0, 1)
	userStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	assistantStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	systemStyle    = lipgloss.NewStyle().Faint(true).Italic(true)
	statusStyle    = lipgloss.NewStyle().Faint(true).Padding(0, 1)
)

type chatMessage struct {
	role string
	text string
}

type responseMsg struct {
	text string
}

type voiceMsg struct {
	response string
	err      error
}

type systemMsg string

type chatModel struct {
	orchestrator *orchestration.Orchestrator
	conversation *conversations.Manager
	voiceReady   bool

	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model

	messages  []chatMessage
	width     int
	height    int
	ready     bool
	busy      bool
	listening bool
}

func newChatModel(orchestrator *orchestration.Orchestrator, conversation *conversations.Manager, voiceReady bool) *chatModel {
	input := textinput.New()
	input.Placeholder = "Ketik pesan, atau /help"
	input.Focus()

	s := spinner.New()
	s.Spinner = spinner.Dot

	return &chatModel{
		orchestrator: orchestrator,
		conversation: conversation,
		voiceReady:   voiceReady,
		input:        input,
		spinner:      s,
	}
}

func (m *chatModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m *chatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		chatHeight := max(msg.Height-4, 1)
		if !m.ready {
			m.viewport = viewport.New(msg.Width, chatHeight)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = chatHeight
		}
		m.refreshViewport()

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyCtrlR:
			if m.voiceReady && !m.busy && !m.listening {
				m.listening = true
				m.append(chatMessage{role: roleSystem, text: "Mendengarkan... bicara sekarang."})
				return m, tea.Batch(m.spinner.Tick, m.listen())
			}
		case tea.KeyEnter:
			text := strings.TrimSpace(m.input.Value())
			if text == "" || m.busy || m.listening {
				break
			}
			m.input.Reset()
			if strings.HasPrefix(text, "/") {
				return m.handleCommand(text)
			}
			m.busy = true
			m.append(chatMessage{role: roleUser, text: text})
			return m, tea.Batch(m.spinner.Tick, m.ask(text))
		}

	case responseMsg:
		m.busy = false
		m.append(chatMessage{role: roleAssistant, text: msg.text})

	case voiceMsg:
		m.listening = false
		switch {
		case msg.err != nil:
			m.append(chatMessage{role: roleSystem, text: fmt.Sprintf("Gagal merekam: %v", msg.err)})
		case msg.response == "":
			m.append(chatMessage{role: roleSystem, text: "Tidak ada ucapan yang terdeteksi."})
		default:
			m.append(chatMessage{role: roleAssistant, text: msg.response})
		}

	case systemMsg:
		m.busy = false
		m.append(chatMessage{role: roleSystem, text: string(msg)})

	case spinner.TickMsg:
		if m.busy || m.listening {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
	}

	var cmds []tea.Cmd
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m *chatModel) handleCommand(command string) (tea.Model, tea.Cmd) {
	switch command {
	case "/quit", "/exit":
		return m, tea.Quit
	case "/clear":
		if err := m.conversation.Clear(context.Background()); err != nil {
			m.append(chatMessage{role: roleSystem, text: fmt.Sprintf("Gagal menghapus riwayat: %v", err)})
		} else {
			m.messages = nil
			m.append(chatMessage{role: roleSystem, text: "Riwayat percakapan dihapus."})
		}
		return m, nil
	case "/providers":
		m.busy = true
		return m, tea.Batch(m.spinner.Tick, m.checkProviders())
	case "/help":
		m.append(chatMessage{role: roleSystem, text: helpText(m.voiceReady)})
		return m, nil
	default:
		m.append(chatMessage{role: roleSystem, text: fmt.Sprintf("Perintah tidak dikenal: %s", command)})
		return m, nil
	}
}

func (m *chatModel) ask(prompt string) tea.Cmd {
	return func() tea.Msg {
		return responseMsg{text: m.orchestrator.HandleTurn(context.Background(), prompt)}
	}
}

func (m *chatModel) listen() tea.Cmd {
	return func() tea.Msg {
		response, err := m.orchestrator.HandleVoiceTurn(context.Background())
		return voiceMsg{response: response, err: err}
	}
}

func (m *chatModel) checkProviders() tea.Cmd {
	return func() tea.Msg {
		unavailable := m.orchestrator.CheckProviders(context.Background())
		if len(unavailable) == 0 {
			return systemMsg("Semua penyedia layanan tersedia.")
		}

		var b strings.Builder
		b.WriteString("Penyedia tidak tersedia:")
		for capability, names := range unavailable {
			fmt.Fprintf(&b, "\n- %s: %s", capability, strings.Join(names, ", "))
		}
		return systemMsg(b.String())
	}
}

func (m *chatModel) append(messages ...chatMessage) {
	m.messages = append(m.messages, messages...)
	m.refreshViewport()
}

func (m *chatModel) refreshViewport() {
	if !m.ready {
		return
	}
	m.viewport.SetContent(renderMessages(m.messages, m.viewport.Width))
	m.viewport.GotoBottom()
}

func (m *chatModel) View() string {
	if !m.ready {
		return "memuat..."
	}

	status := "enter: kirim • /help: bantuan • esc: keluar"
	switch {
	case m.busy:
		status = m.spinner.View() + " berpikir..."
	case m.listening:
		status = m.spinner.View() + " mendengarkan..."
	}

	return fmt.Sprintf("%s\n%s\n%s\n%s",
		headerStyle.Render("NOVA"),
		m.viewport.View(),
		m.input.View(),
		statusStyle.Render(status),
	)
}

func renderMessages(messages []chatMessage, width int) string {
	var b strings.Builder
	for i, message := range messages {
		if i > 0 {
			b.WriteString("\n\n")
		}

		switch message.role {
		case roleUser:
			b.WriteString(userStyle.Render("Anda") + "\n")
		case roleAssistant:
			b.WriteString(assistantStyle.Render("NOVA") + "\n")
		}

		text := message.text
		if message.role == roleSystem {
			text = systemStyle.Render(text)
		}
		b.WriteString(wordwrap.String(text, max(width-2, 20)))
	}
	return b.String()
}

func helpText(voiceReady bool) string {
	help := "/clear menghapus riwayat, /providers memeriksa penyedia, /quit keluar."
	if voiceReady {
		help += " Tekan ctrl+r untuk bicara."
	}
	return help
}
