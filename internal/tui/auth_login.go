package tui

import (
	"errors"
	"fmt"
	"strings"

	"nathanbeddoewebdev/dialctl/internal/services/auth"
	"nathanbeddoewebdev/dialctl/internal/tui/components"
	"nathanbeddoewebdev/dialctl/internal/tui/styles"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// TokenVerifier checks a token against the API before it is stored.
type TokenVerifier func(token string) error

type tokenSavedMsg struct{}

type tokenRejectedMsg struct {
	err error
}

type authLoginModel struct {
	account string
	store   auth.Store
	verify  TokenVerifier

	input   textinput.Model
	spinner spinner.Model
	busy    bool

	width  int
	height int

	err      error
	saved    bool
	quitting bool
}

// AuthLoginResult holds the outcome of the login TUI.
type AuthLoginResult struct {
	Saved bool
}

func newAuthLoginModel(account string, store auth.Store, verify TokenVerifier) authLoginModel {
	ti := textinput.New()
	ti.Placeholder = "paste your bearer token here"
	ti.Focus()
	ti.EchoMode = textinput.EchoPassword
	ti.EchoCharacter = '*'
	ti.Width = 50

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.AccentText

	return authLoginModel{
		account: account,
		store:   store,
		verify:  verify,
		input:   ti,
		spinner: sp,
	}
}

// RunAuthLogin prompts for the token of account in a full-window form and
// stores it. When verify is non-nil the token is only stored once it
// passes. A nil result means the operator cancelled.
func RunAuthLogin(account string, store auth.Store, verify TokenVerifier) (*AuthLoginResult, error) {
	p := tea.NewProgram(newAuthLoginModel(account, store, verify), tea.WithAltScreen())
	result, err := p.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to run auth login: %w", err)
	}

	final := result.(authLoginModel)
	if final.quitting && !final.saved {
		return nil, nil
	}
	return &AuthLoginResult{Saved: final.saved}, nil
}

func (m authLoginModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m authLoginModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tokenSavedMsg:
		m.busy = false
		m.saved = true
		return m, tea.Quit

	case tokenRejectedMsg:
		m.busy = false
		m.err = msg.err
		m.input.SetValue("")
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m authLoginModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.busy {
		if msg.String() == "ctrl+c" {
			m.quitting = true
			return m, tea.Quit
		}
		return m, nil
	}

	switch msg.String() {
	case "ctrl+c", "esc":
		m.quitting = true
		return m, tea.Quit
	case "enter":
		token := strings.TrimSpace(m.input.Value())
		if token == "" {
			m.err = errors.New("token cannot be empty")
			return m, nil
		}
		m.err = nil
		m.busy = true
		return m, tea.Batch(m.spinner.Tick, m.submit(token))
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	m.err = nil
	return m, cmd
}

// submit verifies then stores token off the UI goroutine.
func (m authLoginModel) submit(token string) tea.Cmd {
	return func() tea.Msg {
		if m.verify != nil {
			if err := m.verify(token); err != nil {
				return tokenRejectedMsg{err: fmt.Errorf("token rejected: %w", err)}
			}
		}
		if err := m.store.SetToken(m.account, token); err != nil {
			return tokenRejectedMsg{err: fmt.Errorf("failed to store token: %w", err)}
		}
		return tokenSavedMsg{}
	}
}

func (m authLoginModel) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	header := components.Header(m.width, "auth login", m.account)
	bindings := []components.KeyBinding{
		{Key: "enter", Desc: "save"},
		{Key: "esc", Desc: "cancel"},
	}
	if m.verify != nil {
		bindings[0].Desc = "verify and save"
	}
	footer := components.Footer(m.width, bindings)

	contentH := max(m.height-lipgloss.Height(header)-lipgloss.Height(footer), 1)

	return lipgloss.JoinVertical(lipgloss.Left, header, m.renderContent(contentH), footer)
}

func (m authLoginModel) renderContent(height int) string {
	lines := []string{
		styles.Title.Render("Performance API token"),
		styles.MutedText.Render("Stored in the OS keychain under " + auth.ServiceName + "/" + m.account),
		"",
		m.input.View(),
	}

	switch {
	case m.busy && m.verify != nil:
		lines = append(lines, "", m.spinner.View()+" Checking token against the API...")
	case m.busy:
		lines = append(lines, "", m.spinner.View()+" Saving...")
	case m.err != nil:
		lines = append(lines, "", styles.ErrorText.Render(m.err.Error()))
	}

	return lipgloss.Place(
		m.width, height,
		lipgloss.Center, lipgloss.Center,
		lipgloss.JoinVertical(lipgloss.Left, lines...),
	)
}
