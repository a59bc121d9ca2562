package ui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"heyrag/internal/models"
)

const restTimeout = 15 * time.Second

func restCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), restTimeout)
}

func (m *Model) fetchProjectsCmd() tea.Cmd {
	client := m.Client
	return func() tea.Msg {
		ctx, cancel := restCtx()
		defer cancel()
		projects, err := client.ListProjects(ctx)
		if err != nil {
			return ErrMsg{err}
		}
		return ProjectsLoadedMsg{Projects: projects}
	}
}

func (m *Model) fetchModelsCmd() tea.Cmd {
	client := m.Client
	return func() tea.Msg {
		ctx, cancel := restCtx()
		defer cancel()
		infos, err := client.ListModels(ctx)
		if err != nil {
			return ErrMsg{err}
		}
		return ModelsLoadedMsg{Models: infos}
	}
}

func (m *Model) fetchConversationsCmd() tea.Cmd {
	client := m.Client
	projectID := m.SelectedProjectID
	return func() tea.Msg {
		if projectID == "" {
			return ConversationsLoadedMsg{}
		}
		ctx, cancel := restCtx()
		defer cancel()
		convs, err := client.ListConversations(ctx, projectID)
		if err != nil {
			return ErrMsg{err}
		}
		return ConversationsLoadedMsg{Conversations: convs}
	}
}

func (m *Model) fetchDocumentsCmd() tea.Cmd {
	client := m.Client
	projectID := m.SelectedProjectID
	return func() tea.Msg {
		ctx, cancel := restCtx()
		defer cancel()
		docs, err := client.ListDocuments(ctx, projectID)
		if err != nil {
			return ErrMsg{err}
		}
		return DocumentsLoadedMsg{Documents: docs}
	}
}

func (m *Model) openConversationCmd(conversationID string) tea.Cmd {
	client := m.Client
	return func() tea.Msg {
		ctx, cancel := restCtx()
		defer cancel()
		history, err := client.ListMessages(ctx, conversationID)
		if err != nil {
			return ErrMsg{err}
		}
		msgs := make([]models.ChatMessage, 0, len(history))
		for _, h := range history {
			msgs = append(msgs, models.ChatMessage{Role: h.Role, Content: h.Content})
		}
		return ConversationOpenedMsg{ID: conversationID, Messages: msgs}
	}
}

func (m *Model) deleteConversationCmd(conversationID string) tea.Cmd {
	client := m.Client
	projectID := m.SelectedProjectID
	return func() tea.Msg {
		ctx, cancel := restCtx()
		defer cancel()
		if err := client.DeleteConversation(ctx, conversationID); err != nil {
			return ErrMsg{err}
		}
		convs, err := client.ListConversations(ctx, projectID)
		if err != nil {
			return ErrMsg{err}
		}
		return ConversationsLoadedMsg{Conversations: convs}
	}
}

func (m *Model) createProjectCmd(name, systemPrompt string) tea.Cmd {
	client := m.Client
	return func() tea.Msg {
		ctx, cancel := restCtx()
		defer cancel()
		project, err := client.CreateProject(ctx, name, systemPrompt)
		if err != nil {
			return ErrMsg{err}
		}
		return ProjectSavedMsg{Project: *project}
	}
}

func (m *Model) updateSystemPromptCmd(projectID, prompt string) tea.Cmd {
	client := m.Client
	return func() tea.Msg {
		ctx, cancel := restCtx()
		defer cancel()
		project, err := client.UpdateProject(ctx, projectID, nil, &prompt)
		if err != nil {
			return ErrMsg{err}
		}
		return ProjectSavedMsg{Project: *project}
	}
}

func (m *Model) renameProjectCmd(projectID, name string) tea.Cmd {
	client := m.Client
	return func() tea.Msg {
		ctx, cancel := restCtx()
		defer cancel()
		project, err := client.UpdateProject(ctx, projectID, &name, nil)
		if err != nil {
			return ErrMsg{err}
		}
		return ProjectSavedMsg{Project: *project}
	}
}

func (m *Model) deleteProjectCmd(projectID string) tea.Cmd {
	client := m.Client
	return func() tea.Msg {
		ctx, cancel := restCtx()
		defer cancel()
		if err := client.DeleteProject(ctx, projectID); err != nil {
			return ErrMsg{err}
		}
		return ProjectDeletedMsg{ID: projectID}
	}
}

func (m *Model) uploadDocumentCmd(path string) tea.Cmd {
	client := m.Client
	projectID := m.SelectedProjectID
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		res, err := client.UploadDocument(ctx, projectID, path)
		if err != nil {
			return ErrMsg{err}
		}
		return UploadedMsg{Result: *res}
	}
}

func (m *Model) deleteDocumentCmd(documentID string) tea.Cmd {
	client := m.Client
	projectID := m.SelectedProjectID
	return func() tea.Msg {
		ctx, cancel := restCtx()
		defer cancel()
		if err := client.DeleteDocument(ctx, documentID, projectID); err != nil {
			return ErrMsg{err}
		}
		docs, err := client.ListDocuments(ctx, projectID)
		if err != nil {
			return ErrMsg{err}
		}
		return DocumentsLoadedMsg{Documents: docs}
	}
}
