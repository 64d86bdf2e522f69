// Package ui is the terminal chat interface. It renders session snapshots and
// upload statuses and turns key presses and slash commands into session and
// upload calls, which all run as tea.Cmds.
package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/go-go-golems/docchat/pkg/conversation"
	"github.com/go-go-golems/docchat/pkg/documents"
	"github.com/go-go-golems/docchat/pkg/session"
	"github.com/go-go-golems/docchat/pkg/upload"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

type errMsg struct {
	err error
}

type sendDoneMsg struct {
	result *session.SendResult
}

type refreshMessageMsg struct {
	GoToBottom bool
}

type pollUploadMsg struct{}

// states:
// - user input
// - user scrolling through messages
// - showing error

type State string

const (
	StateUserInput    State = "user_input"
	StateMovingAround State = "moving_around"
	StateError        State = "error"
)

const uploadPollInterval = time.Second

type Model struct {
	ctx     context.Context
	session *session.Session
	uploads *upload.Controller

	conversationID string
	resume         bool
	markdownStyle  string

	viewport viewport.Model
	textArea textarea.Model
	help     help.Model
	spinner  spinner.Model
	renderer *glamour.TermRenderer

	snapshot          session.Snapshot
	uploadStatus      upload.Status
	showConversations bool
	notice            string

	err    error
	keyMap KeyMap
	style  *Style
	width  int
	height int
	state  State
}

type ModelOption func(*Model)

// WithConversation opens conversationID on startup.
func WithConversation(conversationID string) ModelOption {
	return func(m *Model) {
		m.conversationID = conversationID
	}
}

// WithResume opens the most recent conversation on startup.
func WithResume(resume bool) ModelOption {
	return func(m *Model) {
		m.resume = resume
	}
}

// WithMarkdownStyle selects the glamour standard style, "dark" or "light".
// It has to be decided before the program takes over the terminal.
func WithMarkdownStyle(style string) ModelOption {
	return func(m *Model) {
		m.markdownStyle = style
	}
}

func NewModel(ctx context.Context, s *session.Session, uploads *upload.Controller, options ...ModelOption) Model {
	ret := Model{
		ctx:           ctx,
		session:       s,
		uploads:       uploads,
		markdownStyle: "dark",
		style:         DefaultStyles(),
		keyMap:        DefaultKeyMap,
		viewport:      viewport.New(0, 0),
		help:          help.New(),
		spinner:       spinner.New(spinner.WithSpinner(spinner.Dot)),
		snapshot:      s.Snapshot(),
		uploadStatus:  uploads.Status(),
	}
	for _, option := range options {
		option(&ret)
	}

	ret.textArea = textarea.New()
	ret.textArea.Placeholder = "Ask something about your documents, or type /help"
	ret.textArea.ShowLineNumbers = false
	ret.textArea.SetHeight(3)
	ret.textArea.Focus()
	ret.state = StateUserInput

	ret.viewport.SetContent(ret.messageView())
	ret.viewport.GotoBottom()

	ret.updateKeyBindings()

	return ret
}

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{textarea.Blink, m.spinner.Tick}
	switch {
	case m.conversationID != "":
		cmds = append(cmds, m.loadCmd(m.conversationID), m.refreshConversationsCmd())
	case m.resume:
		cmds = append(cmds, m.resumeCmd())
	}
	return tea.Batch(cmds...)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keyMap.Quit):
			return m, tea.Quit

		case key.Matches(msg, m.keyMap.Help):
			m.help.ShowAll = !m.help.ShowAll
			m.recomputeSize()

		case key.Matches(msg, m.keyMap.DismissError):
			m.err = nil
			m.state = StateUserInput
			cmds = append(cmds, m.textArea.Focus())
			m.updateKeyBindings()
			m.recomputeSize()

		case key.Matches(msg, m.keyMap.UnfocusMessage):
			m.textArea.Blur()
			m.state = StateMovingAround
			m.updateKeyBindings()
			m.recomputeSize()

		case key.Matches(msg, m.keyMap.FocusMessage):
			cmds = append(cmds, m.textArea.Focus())
			m.state = StateUserInput
			m.updateKeyBindings()
			m.recomputeSize()

		case key.Matches(msg, m.keyMap.SubmitMessage):
			cmds = append(cmds, m.submit())

		case key.Matches(msg, m.keyMap.NewConversation):
			cmds = append(cmds, m.runCommand(command{Name: commandNew}))

		case key.Matches(msg, m.keyMap.ListConversations):
			cmds = append(cmds, m.runCommand(command{Name: commandList}))

		case key.Matches(msg, m.keyMap.ScrollUp):
			m.viewport.HalfViewUp()

		case key.Matches(msg, m.keyMap.ScrollDown):
			m.viewport.HalfViewDown()

		default:
			switch m.state {
			case StateUserInput:
				m.textArea, cmd = m.textArea.Update(msg)
				cmds = append(cmds, cmd)
			case StateMovingAround, StateError:
				m.viewport, cmd = m.viewport.Update(msg)
				cmds = append(cmds, cmd)
			}
		}
		return m, tea.Batch(cmds...)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.recomputeSize()

	case SessionUpdatedMsg:
		if m.applySnapshot(msg.Snapshot) {
			cmds = append(cmds, refreshCmd(true))
		}

	case UploadUpdatedMsg:
		if msg.Status.Version >= m.uploadStatus.Version {
			m.uploadStatus = msg.Status
			m.recomputeSize()
			if msg.Status.IsTerminal() {
				cmds = append(cmds, pollUploadCmd())
			}
		}

	case pollUploadMsg:
		// the reset to idle also arrives as an event, polling covers a missing router
		status := m.uploads.Status()
		if status.Version >= m.uploadStatus.Version {
			m.uploadStatus = status
			m.recomputeSize()
		}
		if m.uploadStatus.IsTerminal() {
			cmds = append(cmds, pollUploadCmd())
		}

	case sendDoneMsg:
		if msg.result != nil && msg.result.Failed() {
			log.Debug().Err(msg.result.Err).Msg("Send failed")
		}
		if m.applySnapshot(m.session.Snapshot()) {
			cmds = append(cmds, refreshCmd(true))
		}

	case errMsg:
		cmds = append(cmds, m.setError(msg.err))

	case refreshMessageMsg:
		m.viewport.SetContent(m.messageView())
		if msg.GoToBottom {
			m.viewport.GotoBottom()
		}

	case spinner.TickMsg:
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
		if m.snapshot.Pending || m.uploadStatus.Phase == upload.PhaseUploading {
			m.viewport.SetContent(m.messageView())
		}
		return m, tea.Batch(cmds...)
	}

	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// applySnapshot keeps the newest snapshot. Events may arrive out of order.
func (m *Model) applySnapshot(s session.Snapshot) bool {
	if s.Version < m.snapshot.Version {
		return false
	}
	m.snapshot = s
	return true
}

func (m *Model) updateKeyBindings() {
	m.keyMap.UnfocusMessage.SetEnabled(m.state == StateUserInput)
	m.keyMap.SubmitMessage.SetEnabled(m.state == StateUserInput)
	m.keyMap.FocusMessage.SetEnabled(m.state == StateMovingAround)
	m.keyMap.DismissError.SetEnabled(m.state == StateError)
}

func (m *Model) recomputeSize() {
	headerHeight := lipgloss.Height(m.headerView())
	footerHeight := lipgloss.Height(m.footerView())
	helpViewHeight := lipgloss.Height(m.help.View(m.keyMap))

	newHeight := m.height - headerHeight - footerHeight - helpViewHeight - 2
	if newHeight < 0 {
		newHeight = 0
	}
	m.viewport.Width = m.width
	m.viewport.Height = newHeight
	m.viewport.YPosition = headerHeight + 1

	w, _ := m.style.FocusedInput.GetFrameSize()
	if m.width-w > 0 {
		m.textArea.SetWidth(m.width - w)
	}

	m.updateRenderer()

	m.viewport.SetContent(m.messageView())
	m.viewport.GotoBottom()
}

func (m *Model) updateRenderer() {
	w, _ := m.style.AssistantMessage.GetFrameSize()
	width := m.width - w
	if width <= 0 {
		m.renderer = nil
		return
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(m.markdownStyle),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		log.Warn().Err(err).Msg("Could not create markdown renderer")
		m.renderer = nil
		return
	}
	m.renderer = r
}

func (m Model) headerView() string {
	title := "new conversation"
	if m.snapshot.ConversationID != "" {
		title = m.snapshot.ConversationID
		for _, c := range m.snapshot.Conversations {
			if c.ID == m.snapshot.ConversationID && c.Title != "" {
				title = c.Title
				break
			}
		}
	}
	return m.style.Header.Render(fmt.Sprintf("DOCCHAT · %s", title))
}

func (m Model) messageView() string {
	if m.showConversations {
		return m.conversationsView()
	}

	if len(m.snapshot.Messages) == 0 && !m.snapshot.Pending {
		return wrapWords("Ask a question about your documents. Type /help for commands.", m.width)
	}

	ret := ""
	for _, message := range m.snapshot.Messages {
		ret += m.renderMessage(message)
		ret += "\n"
	}
	if m.snapshot.Pending {
		ret += m.spinner.View() + " thinking...\n"
	}
	return ret
}

func (m Model) renderMessage(message conversation.Message) string {
	w, _ := m.style.AssistantMessage.GetFrameSize()
	width := m.width - w
	if width < 0 {
		width = 0
	}

	switch {
	case message.Error:
		v := wrapWords("⚠ "+message.Content, width)
		return m.style.ErrorMessage.Width(width).Render(v)

	case message.Role == conversation.RoleUser:
		v := m.style.Role.Render("you") + "\n" + wrapWords(message.Content, width)
		return m.style.UserMessage.Width(width).Render(v)

	default:
		v := m.style.Role.Render("assistant") + "\n" + m.renderMarkdown(message.Content, width)
		if tools := message.ToolNames(); len(tools) > 0 {
			v += "\n" + m.style.Tools.Render("tools: "+strings.Join(tools, ", "))
		}
		return m.style.AssistantMessage.Width(width).Render(v)
	}
}

func (m Model) renderMarkdown(content string, width int) string {
	if m.renderer == nil {
		return wrapWords(content, width)
	}
	out, err := m.renderer.Render(content)
	if err != nil {
		log.Debug().Err(err).Msg("Could not render markdown")
		return wrapWords(content, width)
	}
	return strings.Trim(out, "\n")
}

func (m Model) conversationsView() string {
	if len(m.snapshot.Conversations) == 0 {
		return "No conversations yet.\n"
	}
	ret := "Conversations (/open <n> to open one):\n\n"
	for i, c := range m.snapshot.Conversations {
		marker := " "
		if c.ID == m.snapshot.ConversationID {
			marker = "*"
		}
		title := c.Title
		if title == "" {
			title = c.ID
		}
		line := fmt.Sprintf("%s %2d. %s (%d messages", marker, i+1, title, c.MessageCount)
		if !c.UpdatedAt.IsZero() {
			line += ", " + c.UpdatedAt.Local().Format("2006-01-02 15:04")
		}
		ret += wrapWords(line+")", m.width) + "\n"
	}
	return ret
}

func (m Model) uploadView() string {
	switch m.uploadStatus.Phase {
	case upload.PhaseUploading:
		return m.style.UploadInfo.Render(fmt.Sprintf("%s Uploading %s...", m.spinner.View(), m.uploadStatus.FileName))
	case upload.PhaseSuccess:
		return m.style.UploadOK.Render(wrapWords(m.uploadStatus.Message, m.width))
	case upload.PhaseError:
		return m.style.UploadError.Render(wrapWords(m.uploadStatus.Message, m.width))
	default:
		return ""
	}
}

func (m Model) textAreaView() string {
	if m.err != nil {
		w, _ := m.style.ErrorMessage.GetFrameSize()
		v := wrapWords(m.err.Error(), m.width-w)
		return m.style.ErrorMessage.Render(v)
	}

	v := m.textArea.View()
	if m.state == StateUserInput {
		return m.style.FocusedInput.Render(v)
	}
	return m.style.UnfocusedInput.Render(v)
}

func (m Model) footerView() string {
	parts := []string{}
	if v := m.uploadView(); v != "" {
		parts = append(parts, v)
	}
	if m.notice != "" {
		parts = append(parts, m.notice)
	}
	parts = append(parts, m.textAreaView())
	return strings.Join(parts, "\n")
}

func (m Model) View() string {
	return m.headerView() + "\n" +
		m.viewport.View() + "\n" +
		m.footerView() + "\n" +
		m.help.View(m.keyMap)
}

func (m *Model) submit() tea.Cmd {
	text := m.textArea.Value()
	c, ok, err := parseCommand(text)
	if err != nil {
		m.textArea.Reset()
		return m.setError(err)
	}
	if ok {
		m.textArea.Reset()
		return m.runCommand(c)
	}
	if strings.TrimSpace(text) == "" {
		return nil
	}

	// StartSend only appends locally, the backend call runs in its own goroutine
	h, err := m.session.StartSend(m.ctx, text)
	if err != nil {
		return m.setError(err)
	}
	m.textArea.Reset()
	m.notice = ""
	m.showConversations = false
	m.applySnapshot(m.session.Snapshot())
	m.viewport.SetContent(m.messageView())
	m.viewport.GotoBottom()

	return tea.Batch(
		refreshCmd(true),
		func() tea.Msg {
			result, err := h.Wait()
			if err != nil {
				return errMsg{err}
			}
			return sendDoneMsg{result: result}
		},
	)
}

func (m *Model) runCommand(c command) tea.Cmd {
	m.notice = ""

	switch c.Name {
	case commandNew:
		m.session.NewConversation()
		m.showConversations = false
		m.applySnapshot(m.session.Snapshot())
		return refreshCmd(true)

	case commandList:
		m.showConversations = true
		return tea.Batch(refreshCmd(false), m.refreshConversationsCmd())

	case commandOpen:
		id, err := resolveConversation(c.Arg, m.snapshot.Conversations)
		if err != nil {
			return m.setError(err)
		}
		m.showConversations = false
		return m.loadCmd(id)

	case commandUpload:
		return m.uploadCmd(c.Arg)

	case commandHelp:
		m.notice = commandsHelp
		m.recomputeSize()
		return nil

	case commandQuit:
		return tea.Quit
	}

	return nil
}

func (m *Model) setError(err error) tea.Cmd {
	m.err = err
	m.state = StateError
	m.textArea.Blur()
	m.updateKeyBindings()
	m.recomputeSize()
	return nil
}

func (m Model) loadCmd(conversationID string) tea.Cmd {
	s := m.session
	ctx := m.ctx
	return func() tea.Msg {
		if err := s.Load(ctx, conversationID); err != nil {
			return errMsg{err}
		}
		return SessionUpdatedMsg{Snapshot: s.Snapshot()}
	}
}

func (m Model) resumeCmd() tea.Cmd {
	s := m.session
	ctx := m.ctx
	return func() tea.Msg {
		if err := s.Resume(ctx); err != nil {
			return errMsg{err}
		}
		return SessionUpdatedMsg{Snapshot: s.Snapshot()}
	}
}

func (m Model) refreshConversationsCmd() tea.Cmd {
	s := m.session
	ctx := m.ctx
	return func() tea.Msg {
		if _, err := s.RefreshConversations(ctx); err != nil {
			return errMsg{err}
		}
		return SessionUpdatedMsg{Snapshot: s.Snapshot()}
	}
}

func (m Model) uploadCmd(path string) tea.Cmd {
	uploads := m.uploads
	userID := m.session.UserID()
	ctx := m.ctx
	return func() tea.Msg {
		f, closer, err := documents.Open(path)
		if err != nil {
			return errMsg{err}
		}
		defer func() {
			_ = closer.Close()
		}()

		status, err := uploads.Upload(ctx, userID, *f)
		if errors.Is(err, upload.ErrUploadInProgress) {
			return errMsg{err}
		}
		// other failures are reported through the status banner
		return UploadUpdatedMsg{Status: status}
	}
}

func refreshCmd(goToBottom bool) tea.Cmd {
	return func() tea.Msg {
		return refreshMessageMsg{GoToBottom: goToBottom}
	}
}

func pollUploadCmd() tea.Cmd {
	return tea.Tick(uploadPollInterval, func(time.Time) tea.Msg {
		return pollUploadMsg{}
	})
}
