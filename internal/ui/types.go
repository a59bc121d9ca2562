package ui

import (
	"heyrag/internal/api"
	"heyrag/internal/chat"
	"heyrag/internal/models"
	"heyrag/internal/settings"
	"heyrag/internal/voice"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/glamour"
)

const (
	ModalListLimit = 10

	// NumCtx slider granularity for the settings pane.
	NumCtxStep = 1024
)

// Modal identifies which overlay, if any, owns the keyboard.
type Modal int

const (
	ModalNone Modal = iota
	ModalProjects
	ModalHistory
	ModalModels
	ModalDocuments
	ModalSettings
	ModalShortcuts
)

// Messages delivered onto the event loop.
type (
	// SessionUpdatedMsg means the chat session mutated; re-render from
	// its snapshot.
	SessionUpdatedMsg struct{}

	// VoiceStateMsg reports a voice engine transition.
	VoiceStateMsg struct{ State models.VoiceState }

	ProjectsLoadedMsg      struct{ Projects []models.Project }
	ConversationsLoadedMsg struct{ Conversations []models.Conversation }
	ModelsLoadedMsg        struct{ Models []models.ModelInfo }
	DocumentsLoadedMsg     struct{ Documents []models.DocumentInfo }
	ConversationOpenedMsg  struct {
		ID       string
		Messages []models.ChatMessage
	}
	ProjectSavedMsg   struct{ Project models.Project }
	ProjectDeletedMsg struct{ ID string }
	UploadedMsg       struct{ Result api.UploadResult }

	ErrMsg struct{ Err error }
)

// Model is the single bubbletea model hosting both engines.
type Model struct {
	Viewport  viewport.Model
	TextInput textarea.Model
	Spinner   spinner.Model
	Renderer  *glamour.TermRenderer

	Client   *api.Client
	Session  *chat.Session
	Voice    *voice.Engine
	Store    *settings.Store
	Registry *settings.Registry

	Projects          []models.Project
	SelectedProjectID string
	Conversations     []models.Conversation
	Documents         []models.DocumentInfo

	VoiceState models.VoiceState

	// KnownConversationID tracks the last conversation id seen so the
	// sidebar list refreshes when the server assigns a new one.
	KnownConversationID string

	OpenModal   Modal
	SelectedIdx int
	SettingsIdx int

	StatusLine   string
	WindowWidth  int
	WindowHeight int
}

// SelectedProject resolves the active project, or nil.
func (m *Model) SelectedProject() *models.Project {
	for i := range m.Projects {
		if m.Projects[i].ID == m.SelectedProjectID {
			return &m.Projects[i]
		}
	}
	return nil
}
