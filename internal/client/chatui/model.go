// Package chatui 终端聊天窗口。会话的泵排空收件箱后把最近的消息发给窗口重绘
package chatui

import (
	"context"
	"strings"

	"go-file-share/internal/client"

	errors "github.com/Laisky/errors/v2"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// QuitCommand 离开聊天室并关闭窗口
const QuitCommand = "/quit"

// ChatSession 窗口用到的 *client.Session 方法
type ChatSession interface {
	Username() string
	Connected() bool
	Send(text string) error
	Disconnect() error
}

// Source 产生消息的会话，*client.Session 实现
type Source interface {
	Pump(ctx context.Context, render client.RenderFunc)
	Connected() bool
}

// HistoryMsg 最近的历史窗口，由 Pump 在有新消息时发送
type HistoryMsg []string

// DisconnectedMsg 连接已断开
type DisconnectedMsg struct{}

// Pump 运行会话的泵，直到 ctx 结束或连接断开。send 通常是 (*tea.Program).Send
func Pump(ctx context.Context, source Source, send func(tea.Msg)) {
	source.Pump(ctx, func(view, _ []string) {
		send(HistoryMsg(view))
	})
	if ctx.Err() == nil && !source.Connected() {
		send(DisconnectedMsg{})
	}
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	systemStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Italic(true)
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

type keyMap struct {
	Send key.Binding
	Quit key.Binding
}

var keys = keyMap{
	Send: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "send")),
	Quit: key.NewBinding(key.WithKeys("ctrl+c", "esc"), key.WithHelp("esc", "leave")),
}

// Model 聊天窗口状态
type Model struct {
	session ChatSession

	input  textinput.Model
	lines  []string
	status string
	width  int

	quitting bool
}

func NewModel(session ChatSession) Model {
	input := textinput.New()
	input.Placeholder = "Your message"
	input.CharLimit = 2000
	input.Focus()

	return Model{
		session: session,
		input:   input,
	}
}

func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case HistoryMsg:
		m.lines = msg
		return m, nil

	case DisconnectedMsg:
		if !m.quitting {
			m.status = "Disconnected from the chat server."
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.input.Width = max(msg.Width-4, 10)
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			return m.leave()
		case key.Matches(msg, keys.Send):
			text := m.input.Value()
			if strings.TrimSpace(text) == QuitCommand {
				return m.leave()
			}
			m.status = ""
			if err := m.session.Send(text); err != nil {
				m.status = describe(err)
				return m, nil
			}
			m.input.Reset()
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) leave() (tea.Model, tea.Cmd) {
	m.quitting = true
	if err := m.session.Disconnect(); err != nil && !errors.Is(err, client.ErrNotConnected) {
		m.status = describe(err)
	}
	return m, tea.Quit
}

func describe(err error) string {
	switch {
	case errors.Is(err, client.ErrEmptyMessage):
		return "Cannot send empty message."
	case errors.Is(err, client.ErrNotConnected):
		return "Not connected to the chat server."
	default:
		return "Failed to send message: " + err.Error()
	}
}

// Lines 当前显示的历史窗口
func (m Model) Lines() []string {
	return m.lines
}

func (m Model) Status() string {
	return m.status
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Chat Room · " + m.session.Username()))
	b.WriteString("\n\n")
	for _, line := range m.lines {
		if strings.Contains(line, "] System: ") {
			line = systemStyle.Render(line)
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	if m.status != "" {
		b.WriteString(statusStyle.Render(m.status))
		b.WriteByte('\n')
	}
	if m.quitting {
		return b.String()
	}
	b.WriteString(m.input.View())
	b.WriteByte('\n')
	b.WriteString(helpStyle.Render(keys.Send.Help().Key + " " + keys.Send.Help().Desc + " · " +
		keys.Quit.Help().Key + " or " + QuitCommand + " " + keys.Quit.Help().Desc))
	return b.String()
}
