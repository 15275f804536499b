package main

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/bhandras/relaychat/internal/chat"
)

const requestTimeout = 10 * time.Second

type phase int

const (
	phaseJoin phase = iota
	phaseChat
)

// stateMsg is delivered whenever the engine signals a transition.
type stateMsg struct{}

type joinedMsg struct{ err error }

type sentMsg struct{ err error }

type model struct {
	engine *chat.Engine

	input textinput.Model
	feed  viewport.Model
	ready bool

	phase       phase
	state       chat.State
	lastCompose string
	err         error

	width  int
	height int
}

func newModel(engine *chat.Engine) model {
	ti := textinput.New()
	ti.Placeholder = "Enter username"
	ti.CharLimit = 500
	ti.Focus()

	return model{
		engine: engine,
		input:  ti,
		state:  engine.State(),
	}
}

func waitForUpdate(engine *chat.Engine) tea.Cmd {
	return func() tea.Msg {
		<-engine.Updates()
		return stateMsg{}
	}
}

func joinCmd(engine *chat.Engine, username string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		return joinedMsg{err: engine.Join(ctx, username)}
	}
}

func sendCmd(engine *chat.Engine) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		return sentMsg{err: engine.Send(ctx)}
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, waitForUpdate(m.engine))
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		feedHeight := msg.Height - 8
		if feedHeight < 3 {
			feedHeight = 3
		}
		if !m.ready {
			m.feed = viewport.New(msg.Width, feedHeight)
			m.ready = true
		} else {
			m.feed.Width = msg.Width
			m.feed.Height = feedHeight
		}
		m.input.Width = msg.Width - 4
		m.refreshFeed()
		return m, nil

	case stateMsg:
		m.state = m.engine.State()
		if m.phase == phaseChat && m.state.Conn == chat.ConnDisconnected {
			m.enterJoin()
		}
		if m.phase == phaseChat {
			m.input.Placeholder = placeholder(m.state)
		}
		m.refreshFeed()
		return m, waitForUpdate(m.engine)

	case joinedMsg:
		m.err = msg.err
		m.state = m.engine.State()
		if msg.err == nil && m.state.Conn != chat.ConnDisconnected {
			m.phase = phaseChat
			m.input.Reset()
			m.lastCompose = ""
			m.input.Placeholder = placeholder(m.state)
		}
		return m, nil

	case sentMsg:
		m.err = msg.err
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC, tea.KeyEsc:
		return m, tea.Quit

	case tea.KeyEnter:
		if m.phase == phaseJoin {
			return m, joinCmd(m.engine, m.input.Value())
		}
		// A blank buffer is not sent; keep the input matching the engine's
		// compose buffer.
		if strings.TrimSpace(m.input.Value()) == "" {
			return m, nil
		}
		m.input.Reset()
		m.lastCompose = ""
		return m, sendCmd(m.engine)

	case tea.KeyTab:
		if m.phase == phaseChat {
			m.err = m.engine.SelectTarget(nextTarget(m.state))
		}
		return m, nil

	case tea.KeyPgUp, tea.KeyPgDown:
		var cmd tea.Cmd
		m.feed, cmd = m.feed.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if m.phase == phaseChat {
		if value := m.input.Value(); value != m.lastCompose {
			m.lastCompose = value
			m.err = m.engine.Compose(value)
		}
	}
	return m, cmd
}

func (m *model) enterJoin() {
	m.phase = phaseJoin
	m.input.Reset()
	m.lastCompose = ""
	m.input.Placeholder = "Enter username to rejoin"
}

func (m *model) refreshFeed() {
	if !m.ready {
		return
	}
	m.feed.SetContent(renderFeed(m.state.Feed))
	m.feed.GotoBottom()
}

func (m model) View() string {
	var b strings.Builder
	b.WriteString(renderHeader(m.state))
	b.WriteString("\n\n")

	if m.ready {
		b.WriteString(m.feed.View())
	} else {
		b.WriteString(renderFeed(m.state.Feed))
	}
	b.WriteString("\n")

	if typers := renderTypers(m.state.Typers); typers != "" {
		b.WriteString(typers)
	}
	b.WriteString("\n")
	b.WriteString(m.input.View())
	b.WriteString("\n")

	if m.phase == phaseChat {
		b.WriteString(strings.ReplaceAll(renderRoster(m.state), "\n", " "))
		b.WriteString("\n")
		b.WriteString("enter: send  tab: switch conversation  esc: quit")
	} else {
		b.WriteString("enter: join  esc: quit")
	}
	if m.err != nil {
		b.WriteString("\n")
		b.WriteString("error: " + m.err.Error())
	}
	return b.String()
}
