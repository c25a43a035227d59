// Package tui is an interactive chat over the question-answering pipeline.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/perbu/tariffrag/pkg/rag"
)

const indexMissingMessage = "The document index has not been built yet. Run generate-embeddings first."

// Asker answers one question. *pipeline.Pipeline implements it.
type Asker interface {
	AnswerQuestion(ctx context.Context, question string) (string, error)
}

type exchange struct {
	question string
	answer   string
	failed   bool
}

// answerMsg carries the result of an asynchronous AnswerQuestion call.
type answerMsg struct {
	question string
	answer   string
	err      error
}

// Model is the Bubble Tea model for the chat.
type Model struct {
	ctx      context.Context
	asker    Asker
	input    textinput.Model
	viewport viewport.Model
	history  []exchange
	status   string
	pending  bool
	ready    bool
}

// New creates a chat model. ctx bounds every question asked from the UI.
func New(ctx context.Context, asker Asker) Model {
	ti := textinput.New()
	ti.Prompt = "Question: "
	ti.Placeholder = "Ask about a tariff, or type 'exit' to quit"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	return Model{
		ctx:      ctx,
		asker:    asker,
		input:    ti,
		viewport: vp,
		status:   "Ready.",
	}
}

// Init starts the cursor blinking.
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key, window and answer events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, th := transcriptStyle.GetFrameSize()
		_, ih := inputStyle.GetFrameSize()
		reserved := 1 + 1 + ih + 1 // header, status, input box, spacer
		m.viewport.Width = max(20, msg.Width-2)
		m.viewport.Height = max(3, msg.Height-reserved-th)
		m.refresh()
		return m, nil

	case answerMsg:
		m.pending = false
		ex := exchange{question: msg.question, answer: msg.answer}
		switch {
		case errors.Is(msg.err, rag.ErrIndexNotInitialized):
			ex.answer = indexMissingMessage
			ex.failed = true
			m.status = "Index not initialized."
		case msg.err != nil:
			ex.answer = "Error: " + msg.err.Error()
			ex.failed = true
			m.status = "Request failed."
		default:
			m.status = "Ready."
		}
		m.history = append(m.history, ex)
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD || msg.Type == tea.KeyEsc {
			return m, tea.Quit
		}
		switch msg.Type {
		case tea.KeyEnter:
			q := strings.TrimSpace(m.input.Value())
			if strings.EqualFold(q, "exit") {
				return m, tea.Quit
			}
			if q == "" || m.pending {
				return m, nil
			}
			m.input.Reset()
			m.pending = true
			m.status = "Thinking..."
			return m, m.ask(q)
		case tea.KeyPgUp, tea.KeyPgDown, tea.KeyUp, tea.KeyDown:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) ask(question string) tea.Cmd {
	return func() tea.Msg {
		answer, err := m.asker.AnswerQuestion(m.ctx, question)
		return answerMsg{question: question, answer: answer, err: err}
	}
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.renderTranscript())
	m.viewport.GotoBottom()
}

// View renders the chat.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := headerStyle.Render("Tariff Q&A")
	transcript := transcriptStyle.Render(m.viewport.View())
	input := inputStyle.Render(m.input.View())
	status := statusStyle.Render(m.status)
	return header + "\n" + transcript + "\n" + input + "\n" + status
}

func (m Model) renderTranscript() string {
	if len(m.history) == 0 {
		return "Enter your questions (type 'exit' to quit)."
	}
	var b strings.Builder
	for i, ex := range m.history {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(questionStyle.Render("Question: " + ex.question))
		b.WriteString("\n\n")
		if ex.failed {
			b.WriteString(errorStyle.Render(ex.answer))
		} else {
			fmt.Fprintf(&b, "Response:\n%s", ex.answer)
		}
	}
	return b.String()
}

var (
	headerStyle     = lipgloss.NewStyle().Bold(true)
	transcriptStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	inputStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	statusStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	questionStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	errorStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

// Run starts the chat on the terminal and blocks until the user quits.
func Run(ctx context.Context, asker Asker) error {
	_, err := tea.NewProgram(New(ctx, asker), tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	return err
}
