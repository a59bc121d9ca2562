package ui

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"heyrag/internal/api"
	"heyrag/internal/chat"
)

func newTestModel() *Model {
	return &Model{
		Client:  api.NewClient("http://localhost:1", "ws://localhost:1"),
		Session: chat.NewSession(nil),
	}
}

func TestUploadRefreshesOpenDocumentsModal(t *testing.T) {
	m := newTestModel()
	m.OpenModal = ModalDocuments
	m.SelectedProjectID = "p1"

	_, cmd := m.Update(UploadedMsg{Result: api.UploadResult{Filename: "notes.md"}})
	assert.NotNil(t, cmd)
	assert.Contains(t, m.StatusLine, "notes.md")
}

func TestUploadOutsideDocumentsModalOnlyUpdatesStatus(t *testing.T) {
	m := newTestModel()

	_, cmd := m.Update(UploadedMsg{Result: api.UploadResult{Filename: "notes.md"}})
	assert.Nil(t, cmd)
	assert.Contains(t, m.StatusLine, "notes.md")
}
