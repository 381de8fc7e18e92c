package tui

import (
	"errors"
	"fmt"
	"strings"

	"nathanbeddoewebdev/dialctl/internal/services/auth"
	"nathanbeddoewebdev/dialctl/internal/tui/components"
	"nathanbeddoewebdev/dialctl/internal/tui/styles"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// CredentialStatus is the stored-token state of one keychain account.
type CredentialStatus struct {
	Account  string `json:"account"`
	LoggedIn bool   `json:"logged_in"`
	Token    string `json:"token,omitempty"` // masked
	Error    string `json:"error,omitempty"`
}

// Describe renders the status as a short phrase.
func (s CredentialStatus) Describe() string {
	switch {
	case s.Error != "":
		return "error: " + s.Error
	case s.LoggedIn:
		return "logged in (" + s.Token + ")"
	default:
		return "not logged in"
	}
}

// CheckCredentials looks up each account in store.
func CheckCredentials(store auth.Store, accounts []string) []CredentialStatus {
	out := make([]CredentialStatus, 0, len(accounts))
	for _, account := range accounts {
		st := CredentialStatus{Account: account}
		token, err := store.GetToken(account)
		switch {
		case err == nil:
			st.LoggedIn = true
			st.Token = auth.Mask(token)
		case errors.Is(err, auth.ErrTokenNotFound):
		default:
			st.Error = err.Error()
		}
		out = append(out, st)
	}
	return out
}

// --- Auth status model ---

type authStatusModel struct {
	apiURL   string
	statuses []CredentialStatus

	width  int
	height int
}

// RunAuthStatus starts the full-window auth status TUI.
func RunAuthStatus(store auth.Store, apiURL string, accounts []string) error {
	m := authStatusModel{
		apiURL:   apiURL,
		statuses: CheckCredentials(store, accounts),
	}

	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("failed to run auth status: %w", err)
	}
	return nil
}

func (m authStatusModel) Init() tea.Cmd {
	return nil
}

func (m authStatusModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			return m, tea.Quit
		}
	}

	return m, nil
}

func (m authStatusModel) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	header := components.Header(m.width, "auth status", m.apiURL)
	footer := components.Footer(m.width, []components.KeyBinding{
		{Key: "q", Desc: "quit"},
	})

	contentH := max(m.height-lipgloss.Height(header)-lipgloss.Height(footer), 1)

	return lipgloss.JoinVertical(lipgloss.Left, header, m.renderContent(contentH), footer)
}

func (m authStatusModel) renderContent(height int) string {
	if len(m.statuses) == 0 {
		return lipgloss.Place(
			m.width, height,
			lipgloss.Center, lipgloss.Center,
			styles.MutedText.Render("No accounts to check."),
		)
	}

	title := styles.Title.Render("API Credentials")

	rows := make([]string, 0, len(m.statuses))
	for _, st := range m.statuses {
		name := styles.Label.Width(12).Render(st.Account)

		var text string
		switch {
		case st.Error != "":
			text = styles.ErrorText.Render(st.Describe())
		case st.LoggedIn:
			text = styles.SuccessText.Render("logged in") + "  " + styles.MutedText.Render(st.Token)
		default:
			text = styles.MutedText.Render(st.Describe())
		}
		rows = append(rows, name+text)
	}

	card := styles.Card.Width(48).Render(strings.Join(rows, "\n"))

	return lipgloss.Place(
		m.width, height,
		lipgloss.Center, lipgloss.Center,
		lipgloss.JoinVertical(lipgloss.Center, title, "", card),
	)
}
