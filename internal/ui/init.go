package ui

import (
	"fmt"
	"os"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"heyrag/internal/api"
	"heyrag/internal/audio"
	"heyrag/internal/chat"
	"heyrag/internal/config"
	"heyrag/internal/models"
	"heyrag/internal/settings"
	"heyrag/internal/voice"
)

func InitialModel() Model {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	dataDir, err := config.DataDir()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	store, err := settings.Open(dataDir)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	client := api.NewClient(cfg.APIURL, cfg.WSURL())
	session := chat.NewSession(client)
	registry := settings.NewRegistry(store)

	ti := textarea.New()
	ti.Placeholder = "Posez une question sur vos documents..."
	ti.Prompt = "❯ "
	ti.ShowLineNumbers = false
	ti.CharLimit = 0
	ti.MaxHeight = 6
	ti.SetHeight(2)
	ti.SetWidth(80)
	ti.FocusedStyle.Prompt = lipgloss.NewStyle().Foreground(lipgloss.Color("#80CBC4")).Bold(true)
	ti.BlurredStyle.Prompt = lipgloss.NewStyle().Foreground(lipgloss.Color("#80CBC4")).Bold(true)
	ti.FocusedStyle.Placeholder = lipgloss.NewStyle().Foreground(lipgloss.Color("#545454"))
	ti.BlurredStyle.Placeholder = lipgloss.NewStyle().Foreground(lipgloss.Color("#545454"))
	ti.FocusedStyle.CursorLine = lipgloss.NewStyle()
	ti.BlurredStyle.CursorLine = lipgloss.NewStyle()
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#80CBC4"))

	vp := viewport.New(60, 15)

	savedProject, _ := store.Get(settings.KeyProject)

	m := Model{
		TextInput:         ti,
		Viewport:          vp,
		Spinner:           sp,
		Client:            client,
		Session:           session,
		Store:             store,
		Registry:          registry,
		SelectedProjectID: savedProject,
	}
	return m
}

// WireEngines connects the engines to the running program. The chat
// session notifies through Program.Send; the voice engine forwards its
// events into the same session so the transcript keeps a single writer.
func (m *Model) WireEngines(p *tea.Program) {
	m.Session.SetOnUpdate(func() {
		p.Send(SessionUpdatedMsg{})
	})

	m.Voice = voice.NewEngine(
		m.Client,
		audio.NewExecRecorder(),
		audio.NewExecPlayer(),
		func() voice.Config {
			snap := m.Session.Snapshot()
			return voice.Config{
				Model:          m.Registry.Current(),
				ProjectID:      m.SelectedProjectID,
				ConversationID: snap.ConversationID,
				Options:        m.Registry.Options(),
			}
		},
		func() voice.Hooks {
			return voice.Hooks{
				OnTranscription:  m.Session.AppendExchange,
				OnToken:          m.Session.AppendToken,
				OnSources:        m.Session.SetSources,
				OnConversationID: m.Session.SetConversationID,
				OnDone:           func() {},
				OnError:          m.Session.SetError,
				OnState: func(s models.VoiceState) {
					p.Send(VoiceStateMsg{State: s})
				},
			}
		},
	)
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		m.TextInput.Cursor.BlinkCmd(),
		m.Spinner.Tick,
		m.fetchProjectsCmd(),
		m.fetchModelsCmd(),
	)
}

func NewProgram() *tea.Program {
	m := InitialModel()
	p := tea.NewProgram(&m, tea.WithAltScreen())
	m.WireEngines(p)
	return p
}
