package api

import (
	"encoding/json"

	"heyrag/internal/models"
)

// ChatStreamRequest is the body of POST /api/chat/stream.
type ChatStreamRequest struct {
	Question       string                   `json:"question"`
	Model          string                   `json:"model"`
	ProjectID      string                   `json:"project_id"`
	ConversationID string                   `json:"conversation_id,omitempty"`
	Options        models.GenerationOptions `json:"options"`
}

// Stream event types shared by the chat stream and the voice socket.
const (
	EventToken          = "token"
	EventSources        = "sources"
	EventConversationID = "conversation_id"
	EventError          = "error"
	EventTranscription  = "transcription"
	EventAudioDone      = "audio_done"
	EventDone           = "done"
)

// StreamEvent is one decoded `data:` record or voice control frame.
// Content is kept raw because its shape depends on Type.
type StreamEvent struct {
	Type    string          `json:"type"`
	Content json.RawMessage `json:"content"`
	Text    string          `json:"text,omitempty"`
}

// ContentString decodes Content as a JSON string, else returns it verbatim.
func (e StreamEvent) ContentString() string {
	var s string
	if err := json.Unmarshal(e.Content, &s); err == nil {
		return s
	}
	return string(e.Content)
}

// ContentSources decodes Content as a source list.
func (e StreamEvent) ContentSources() []models.SourceRef {
	var refs []models.SourceRef
	if err := json.Unmarshal(e.Content, &refs); err != nil {
		return nil
	}
	return refs
}

// VoiceConfig is the single JSON frame sent before the utterance.
type VoiceConfig struct {
	Type           string                   `json:"type"`
	ProjectID      string                   `json:"project_id"`
	Model          string                   `json:"model"`
	ConversationID string                   `json:"conversation_id,omitempty"`
	Options        models.GenerationOptions `json:"options"`
}

type listModelsResponse struct {
	Models []models.ModelInfo `json:"models"`
}

// UploadResult is the backend's answer to a document upload.
type UploadResult struct {
	DocumentID  string `json:"document_id"`
	Filename    string `json:"filename"`
	ChunksCount int    `json:"chunks_count"`
}
