package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"heyrag/internal/models"
	"heyrag/internal/settings"
)

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		tiCmd tea.Cmd
		vpCmd tea.Cmd
		spCmd tea.Cmd
	)

	switch msg := msg.(type) {
	case spinner.TickMsg:
		m.Spinner, spCmd = m.Spinner.Update(msg)
		if m.Session.Snapshot().Streaming {
			m.UpdateViewport()
		}
		return m, spCmd

	case tea.KeyMsg:
		if m.OpenModal != ModalNone {
			return m.updateModal(msg)
		}
		return m.updateMain(msg)

	case SessionUpdatedMsg:
		snap := m.Session.Snapshot()
		m.UpdateViewport()
		if snap.ConversationID != "" && snap.ConversationID != m.KnownConversationID {
			// First reply of a new conversation: the server just named it.
			m.KnownConversationID = snap.ConversationID
			return m, m.fetchConversationsCmd()
		}
		return m, nil

	case VoiceStateMsg:
		m.VoiceState = msg.State
		m.UpdateViewport()
		return m, nil

	case ProjectsLoadedMsg:
		m.Projects = msg.Projects
		if m.SelectedProject() == nil {
			m.SelectedProjectID = ""
		}
		m.UpdateViewport()
		if m.SelectedProjectID != "" {
			return m, m.fetchConversationsCmd()
		}
		return m, nil

	case ModelsLoadedMsg:
		m.Registry.SetModels(msg.Models)
		m.UpdateViewport()
		return m, nil

	case ConversationsLoadedMsg:
		m.Conversations = msg.Conversations
		return m, nil

	case DocumentsLoadedMsg:
		m.Documents = msg.Documents
		if m.SelectedIdx >= len(m.Documents) {
			m.SelectedIdx = 0
		}
		return m, nil

	case ConversationOpenedMsg:
		m.Session.LoadConversation(msg.Messages, msg.ID)
		m.KnownConversationID = msg.ID
		m.OpenModal = ModalNone
		m.UpdateViewport()
		return m, nil

	case ProjectSavedMsg:
		replaced := false
		for i := range m.Projects {
			if m.Projects[i].ID == msg.Project.ID {
				m.Projects[i] = msg.Project
				replaced = true
				break
			}
		}
		if !replaced {
			m.Projects = append([]models.Project{msg.Project}, m.Projects...)
			m.selectProject(msg.Project.ID)
			m.StatusLine = "Projet créé: " + msg.Project.Name
			return m, m.fetchConversationsCmd()
		}
		m.StatusLine = "Projet mis à jour"
		return m, nil

	case ProjectDeletedMsg:
		kept := m.Projects[:0]
		for _, p := range m.Projects {
			if p.ID != msg.ID {
				kept = append(kept, p)
			}
		}
		m.Projects = kept
		if m.SelectedProjectID == msg.ID {
			m.SelectedProjectID = ""
			_ = m.Store.Delete(settings.KeyProject)
			m.Session.Clear()
			m.KnownConversationID = ""
			m.Conversations = nil
		}
		m.UpdateViewport()
		return m, nil

	case UploadedMsg:
		m.StatusLine = "Document indexé: " + msg.Result.Filename
		m.UpdateViewport()
		if m.OpenModal == ModalDocuments {
			return m, m.fetchDocumentsCmd()
		}
		return m, nil

	case ErrMsg:
		m.StatusLine = msg.Err.Error()
		m.UpdateViewport()
		return m, nil

	case tea.WindowSizeMsg:
		m.WindowWidth = msg.Width
		m.WindowHeight = msg.Height

		chatWidth := msg.Width - 2
		m.Viewport.Width = chatWidth - 2
		m.updateInputLayout()

		glamourStyle := "dark"
		if !lipgloss.HasDarkBackground() {
			glamourStyle = "light"
		}
		m.Renderer, _ = glamour.NewTermRenderer(
			glamour.WithStylePath(glamourStyle),
			glamour.WithWordWrap(chatWidth-6),
		)
		m.UpdateViewport()
		return m, tea.Batch(tiCmd, vpCmd)
	}

	m.TextInput, tiCmd = m.TextInput.Update(msg)
	m.updateInputLayout()
	m.Viewport, vpCmd = m.Viewport.Update(msg)

	return m, tea.Batch(tiCmd, vpCmd)
}

func (m *Model) updateMain(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if isNewlineShortcut(msg) {
		m.TextInput.InsertString("\n")
		m.updateInputLayout()
		return m, nil
	}

	switch msg.Type {
	case tea.KeyCtrlC:
		return m, tea.Quit

	case tea.KeyEsc:
		if m.VoiceState != models.VoiceIdle {
			m.Voice.Cancel()
			m.VoiceState = models.VoiceIdle
			m.UpdateViewport()
			return m, nil
		}
		if snap := m.Session.Snapshot(); snap.Streaming {
			m.Session.Stop()
			return m, nil
		}
		return m, tea.Quit

	case tea.KeyCtrlN:
		m.Session.Clear()
		m.KnownConversationID = ""
		m.StatusLine = ""
		m.UpdateViewport()
		return m, nil

	case tea.KeyCtrlP:
		m.OpenModal = ModalProjects
		m.SelectedIdx = 0
		return m, m.fetchProjectsCmd()

	case tea.KeyCtrlH:
		m.OpenModal = ModalHistory
		m.SelectedIdx = 0
		return m, m.fetchConversationsCmd()

	case tea.KeyCtrlB:
		m.OpenModal = ModalModels
		m.SelectedIdx = 0
		return m, nil

	case tea.KeyCtrlD:
		if m.SelectedProjectID == "" {
			m.StatusLine = "Sélectionnez d'abord un projet (ctrl+p)"
			m.UpdateViewport()
			return m, nil
		}
		m.OpenModal = ModalDocuments
		m.SelectedIdx = 0
		return m, m.fetchDocumentsCmd()

	case tea.KeyCtrlO:
		m.OpenModal = ModalSettings
		m.SettingsIdx = 0
		return m, nil

	case tea.KeyCtrlS:
		m.OpenModal = ModalShortcuts
		return m, nil

	case tea.KeyCtrlV:
		return m.toggleVoice()

	case tea.KeyEnter:
		return m.submitInput()
	}

	var tiCmd tea.Cmd
	m.TextInput, tiCmd = m.TextInput.Update(msg)
	m.updateInputLayout()
	return m, tiCmd
}

// toggleVoice drives the press-to-talk cycle: idle starts a recording,
// recording finalizes it, any later state cancels.
func (m *Model) toggleVoice() (tea.Model, tea.Cmd) {
	switch m.VoiceState {
	case models.VoiceIdle:
		if m.SelectedProjectID == "" {
			m.StatusLine = "Sélectionnez d'abord un projet (ctrl+p)"
			m.UpdateViewport()
			return m, nil
		}
		m.Voice.StartRecording()
	case models.VoiceRecording:
		m.Voice.StopRecording()
	default:
		m.Voice.Cancel()
		m.VoiceState = models.VoiceIdle
		m.UpdateViewport()
	}
	return m, nil
}

func (m *Model) submitInput() (tea.Model, tea.Cmd) {
	input := strings.TrimSpace(m.TextInput.Value())
	if input == "" {
		return m, nil
	}

	if strings.HasPrefix(input, "/") {
		return m.runCommand(input)
	}

	snap := m.Session.Snapshot()
	if snap.Streaming {
		return m, nil
	}
	if m.SelectedProjectID == "" {
		m.StatusLine = "Sélectionnez d'abord un projet (ctrl+p)"
		m.UpdateViewport()
		return m, nil
	}

	m.TextInput.Reset()
	m.updateInputLayout()
	m.StatusLine = ""
	m.Session.Send(input, m.Registry.Current(), m.SelectedProjectID, m.Registry.Options())
	return m, m.Spinner.Tick
}

// runCommand handles the slash commands typed into the input box.
func (m *Model) runCommand(input string) (tea.Model, tea.Cmd) {
	m.TextInput.Reset()
	m.updateInputLayout()

	cmd, rest, _ := strings.Cut(input, " ")
	rest = strings.TrimSpace(rest)

	switch cmd {
	case "/clear", "/reset":
		m.Session.Clear()
		m.KnownConversationID = ""
		m.StatusLine = ""
		m.UpdateViewport()
		return m, nil

	case "/retry":
		m.Session.Retry()
		return m, m.Spinner.Tick

	case "/upload":
		if m.SelectedProjectID == "" || rest == "" {
			m.StatusLine = "Usage: /upload <fichier> (projet sélectionné requis)"
			m.UpdateViewport()
			return m, nil
		}
		m.StatusLine = "Envoi de " + rest + "..."
		m.UpdateViewport()
		return m, m.uploadDocumentCmd(rest)

	case "/project":
		if rest == "" {
			m.StatusLine = "Usage: /project <nom> [| prompt système]"
			m.UpdateViewport()
			return m, nil
		}
		name, prompt, _ := strings.Cut(rest, "|")
		return m, m.createProjectCmd(strings.TrimSpace(name), strings.TrimSpace(prompt))

	case "/prompt":
		if m.SelectedProjectID == "" {
			m.StatusLine = "Sélectionnez d'abord un projet (ctrl+p)"
			m.UpdateViewport()
			return m, nil
		}
		return m, m.updateSystemPromptCmd(m.SelectedProjectID, rest)

	case "/rename":
		if m.SelectedProjectID == "" || rest == "" {
			m.StatusLine = "Usage: /rename <nouveau nom>"
			m.UpdateViewport()
			return m, nil
		}
		return m, m.renameProjectCmd(m.SelectedProjectID, rest)

	default:
		m.StatusLine = "Commande inconnue: " + cmd
		m.UpdateViewport()
		return m, nil
	}
}

func (m *Model) updateModal(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}
	if m.OpenModal == ModalShortcuts {
		m.OpenModal = ModalNone
		return m, nil
	}
	if msg.String() == "esc" {
		m.OpenModal = ModalNone
		return m, nil
	}

	switch m.OpenModal {
	case ModalProjects:
		return m.updateProjectsModal(msg)
	case ModalHistory:
		return m.updateHistoryModal(msg)
	case ModalModels:
		return m.updateModelsModal(msg)
	case ModalDocuments:
		return m.updateDocumentsModal(msg)
	case ModalSettings:
		return m.updateSettingsModal(msg)
	}
	return m, nil
}

func (m *Model) updateProjectsModal(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		m.SelectedIdx = wrapIndex(m.SelectedIdx-1, len(m.Projects))
	case "down", "j":
		m.SelectedIdx = wrapIndex(m.SelectedIdx+1, len(m.Projects))
	case "enter":
		if m.SelectedIdx < len(m.Projects) {
			m.selectProject(m.Projects[m.SelectedIdx].ID)
			m.OpenModal = ModalNone
			m.UpdateViewport()
			return m, m.fetchConversationsCmd()
		}
	case "d":
		if m.SelectedIdx < len(m.Projects) {
			id := m.Projects[m.SelectedIdx].ID
			return m, m.deleteProjectCmd(id)
		}
	}
	return m, nil
}

func (m *Model) updateHistoryModal(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		m.SelectedIdx = wrapIndex(m.SelectedIdx-1, len(m.Conversations))
	case "down", "j":
		m.SelectedIdx = wrapIndex(m.SelectedIdx+1, len(m.Conversations))
	case "enter":
		if m.SelectedIdx < len(m.Conversations) {
			return m, m.openConversationCmd(m.Conversations[m.SelectedIdx].ID)
		}
	case "d":
		if m.SelectedIdx < len(m.Conversations) {
			id := m.Conversations[m.SelectedIdx].ID
			if id == m.KnownConversationID {
				m.Session.Clear()
				m.KnownConversationID = ""
			}
			return m, m.deleteConversationCmd(id)
		}
	}
	return m, nil
}

func (m *Model) updateModelsModal(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	infos := m.Registry.Models()
	switch msg.String() {
	case "up", "k":
		m.SelectedIdx = wrapIndex(m.SelectedIdx-1, len(infos))
	case "down", "j":
		m.SelectedIdx = wrapIndex(m.SelectedIdx+1, len(infos))
	case "enter":
		if m.SelectedIdx < len(infos) {
			m.Registry.SelectModel(infos[m.SelectedIdx].Name)
			m.OpenModal = ModalNone
			m.UpdateViewport()
		}
	}
	return m, nil
}

func (m *Model) updateDocumentsModal(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		m.SelectedIdx = wrapIndex(m.SelectedIdx-1, len(m.Documents))
	case "down", "j":
		m.SelectedIdx = wrapIndex(m.SelectedIdx+1, len(m.Documents))
	case "d":
		if m.SelectedIdx < len(m.Documents) {
			return m, m.deleteDocumentCmd(m.Documents[m.SelectedIdx].DocumentID)
		}
	}
	return m, nil
}

func (m *Model) updateSettingsModal(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	const fields = 4
	switch msg.String() {
	case "up", "k":
		m.SettingsIdx = wrapIndex(m.SettingsIdx-1, fields)
	case "down", "j":
		m.SettingsIdx = wrapIndex(m.SettingsIdx+1, fields)
	case "left", "h":
		m.adjustOption(-1)
	case "right", "l":
		m.adjustOption(+1)
	}
	return m, nil
}

// adjustOption nudges the selected option one step, clamped to its
// declared bounds; num_ctx is additionally capped by the model window.
func (m *Model) adjustOption(dir int) {
	opts := m.Registry.Options()
	switch m.SettingsIdx {
	case 0:
		opts.Temperature = clampFloat(opts.Temperature+0.1*float64(dir), models.TemperatureMin, models.TemperatureMax)
	case 1:
		opts.TopP = clampFloat(opts.TopP+0.05*float64(dir), models.TopPMin, models.TopPMax)
	case 2:
		opts.RepeatPenalty = clampFloat(opts.RepeatPenalty+0.1*float64(dir), models.RepeatPenaltyMin, models.RepeatPenaltyMax)
	case 3:
		opts.NumCtx = clampInt(opts.NumCtx+NumCtxStep*dir, models.NumCtxMin, m.Registry.MaxCtx())
	}
	m.Registry.SetOptions(opts)
}

func (m *Model) selectProject(projectID string) {
	if projectID == m.SelectedProjectID {
		return
	}
	m.SelectedProjectID = projectID
	_ = m.Store.Set(settings.KeyProject, projectID)
	// Switching scope invalidates the transcript.
	m.Session.Clear()
	m.KnownConversationID = ""
	m.StatusLine = ""
}

func isNewlineShortcut(msg tea.KeyMsg) bool {
	switch msg.String() {
	case "shift+enter", "shift+return", "ctrl+j", "ctrl+enter", "alt+enter":
		return true
	default:
		return false
	}
}

func wrapIndex(i, n int) int {
	if n == 0 {
		return 0
	}
	if i < 0 {
		return n - 1
	}
	if i >= n {
		return 0
	}
	return i
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
