package tui

import (
	"fmt"
	"os"
	"strings"

	"nathanbeddoewebdev/dialctl/internal/config"
	"nathanbeddoewebdev/dialctl/internal/tui/components"
	"nathanbeddoewebdev/dialctl/internal/tui/styles"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// --- Config messages ---

type configSavedMsg struct {
	key     string
	cleared bool
}

type configSaveErrorMsg struct {
	err error
}

// valueOrigin says where a key's effective value comes from.
type valueOrigin string

const (
	originStored  valueOrigin = "config"
	originEnv     valueOrigin = "env"
	originDefault valueOrigin = "default"
	originUnset   valueOrigin = ""
)

// --- Config model ---

type configViewModel struct {
	cfg    *config.Config
	keys   []config.KeySpec
	extra  map[string]func(string) error
	lookup func(string) (string, bool)

	cursor  int
	editing bool
	editor  textinput.Model

	width  int
	height int

	status  string
	isError bool
}

// RunConfigView starts the interactive config editor. extra adds
// validators on top of each key's own, keyed by key name; the source key
// uses it to check the provider registry.
func RunConfigView(extra map[string]func(string) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	m := configViewModel{
		cfg:    cfg,
		keys:   config.Keys,
		extra:  extra,
		lookup: os.LookupEnv,
	}

	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err = p.Run()
	return err
}

func (m configViewModel) Init() tea.Cmd {
	return nil
}

func (m configViewModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case configSavedMsg:
		m.editing = false
		m.isError = false
		if msg.cleared {
			m.status = msg.key + " cleared"
		} else {
			m.status = msg.key + " saved"
		}
		if env := m.envOverride(m.keys[m.cursor]); env != "" {
			m.status += " (still overridden by " + env + ")"
		}
		return m, nil

	case configSaveErrorMsg:
		m.status = "Error: " + msg.err.Error()
		m.isError = true
		return m, nil
	}

	if m.editing {
		var cmd tea.Cmd
		m.editor, cmd = m.editor.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m configViewModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.editing {
		return m.handleEditKey(msg)
	}

	switch msg.String() {
	case "ctrl+c", "q", "esc":
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.keys)-1 {
			m.cursor++
		}
	case "enter", "e":
		spec := m.keys[m.cursor]
		ti := textinput.New()
		ti.SetValue(spec.Get(m.cfg))
		ti.Focus()
		ti.Width = 40
		ti.Placeholder = "empty clears the key"
		m.editor = ti
		m.editing = true
		m.status = ""
		return m, textinput.Blink
	case "d":
		spec := m.keys[m.cursor]
		if spec.Get(m.cfg) == "" {
			m.status = spec.Name + " is not set"
			m.isError = false
			return m, nil
		}
		spec.Set(m.cfg, "")
		return m, m.saveConfig(spec.Name, true)
	}

	return m, nil
}

func (m configViewModel) handleEditKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.editing = false
		return m, nil
	case "enter":
		value := strings.TrimSpace(m.editor.Value())
		spec := m.keys[m.cursor]
		if value != "" {
			if err := m.validate(spec, value); err != nil {
				m.status = "Error: " + spec.Name + ": " + err.Error()
				m.isError = true
				return m, nil
			}
		}
		spec.Set(m.cfg, value)
		return m, m.saveConfig(spec.Name, value == "")
	}

	var cmd tea.Cmd
	m.editor, cmd = m.editor.Update(msg)
	return m, cmd
}

func (m configViewModel) validate(spec config.KeySpec, value string) error {
	if spec.Validate != nil {
		if err := spec.Validate(value); err != nil {
			return err
		}
	}
	if v, ok := m.extra[spec.Name]; ok {
		return v(value)
	}
	return nil
}

func (m configViewModel) saveConfig(key string, cleared bool) tea.Cmd {
	return func() tea.Msg {
		if err := m.cfg.Save(); err != nil {
			return configSaveErrorMsg{err: err}
		}
		return configSavedMsg{key: key, cleared: cleared}
	}
}

// envOverride returns the variable overriding spec, or "" when none is set.
func (m configViewModel) envOverride(spec config.KeySpec) string {
	if spec.Env == "" {
		return ""
	}
	lookup := m.lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}
	if v, ok := lookup(spec.Env); ok && strings.TrimSpace(v) != "" {
		return spec.Env
	}
	return ""
}

// effective returns the value in force for spec and where it comes from.
func (m configViewModel) effective(spec config.KeySpec, resolved *config.Config) (string, valueOrigin) {
	if m.envOverride(spec) != "" {
		return spec.Get(resolved), originEnv
	}
	if v := spec.Get(m.cfg); v != "" {
		return v, originStored
	}
	if v := spec.Get(resolved); v != "" {
		return v, originDefault
	}
	return "", originUnset
}

func (m configViewModel) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	path, _ := config.Path()
	header := components.Header(m.width, "config", path)

	var footerBindings []components.KeyBinding
	if m.editing {
		footerBindings = []components.KeyBinding{
			{Key: "enter", Desc: "save"},
			{Key: "esc", Desc: "cancel"},
		}
	} else {
		footerBindings = []components.KeyBinding{
			{Key: "j/k", Desc: "navigate"},
			{Key: "e", Desc: "edit"},
			{Key: "d", Desc: "clear"},
			{Key: "q", Desc: "quit"},
		}
	}
	footer := components.Footer(m.width, footerBindings)

	sections := []string{header}
	statusBar := ""
	if m.status != "" {
		statusBar = components.StatusBar(m.width, m.status, m.isError)
	}

	contentH := max(m.height-lipgloss.Height(header)-lipgloss.Height(footer)-lipgloss.Height(statusBar), 1)
	sections = append(sections, m.renderContent(contentH))
	if statusBar != "" {
		sections = append(sections, statusBar)
	}
	sections = append(sections, footer)

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m configViewModel) renderContent(height int) string {
	title := styles.Title.Render("Configuration")

	if len(m.keys) == 0 {
		return lipgloss.Place(
			m.width, height,
			lipgloss.Center, lipgloss.Center,
			lipgloss.JoinVertical(lipgloss.Center, title, "", styles.MutedText.Render("No configuration keys defined.")),
		)
	}

	const labelWidth = 26
	lookup := m.lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}
	resolved := m.cfg.Resolve(lookup)

	rows := make([]string, 0, len(m.keys)+2)
	for i, spec := range m.keys {
		selected := i == m.cursor

		prefix := "  "
		labelStyle := styles.MutedText
		if selected {
			prefix = styles.AccentText.Render("> ")
			labelStyle = styles.Label
		}
		label := labelStyle.Width(labelWidth).Render(spec.Name)

		if selected && m.editing {
			rows = append(rows, prefix+label+m.editor.View())
			continue
		}

		value, origin := m.effective(spec, &resolved)
		rows = append(rows, prefix+label+renderValue(value, origin, selected))

		if selected {
			indent := strings.Repeat(" ", 4)
			rows = append(rows, indent+styles.MutedText.Italic(true).Render(spec.Description))
			if env := m.envOverride(spec); env != "" {
				rows = append(rows, indent+styles.WarningText.Render("set by "+env+", edits apply once it is unset"))
			}
		}
	}

	card := styles.Card.Width(max(min(m.width-4, 84), 40)).Render(strings.Join(rows, "\n"))

	return lipgloss.Place(
		m.width, height,
		lipgloss.Center, lipgloss.Center,
		lipgloss.JoinVertical(lipgloss.Center, title, "", card),
	)
}

func renderValue(value string, origin valueOrigin, selected bool) string {
	if origin == originUnset {
		return styles.MutedText.Render("(not set)")
	}

	valueStyle := styles.MutedText
	if selected {
		valueStyle = styles.Value.Bold(true)
	}
	out := valueStyle.Render(value)

	switch origin {
	case originEnv:
		out += " " + styles.WarningText.Render("env")
	case originDefault:
		out += " " + styles.MutedText.Render("(default)")
	}
	return out
}
