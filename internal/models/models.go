package models

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Project binds a system prompt to a document collection on the backend.
type Project struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	SystemPrompt string `json:"system_prompt"`
	Collection   string `json:"collection_name"`
	CreatedAt    string `json:"created_at"`
}

type Conversation struct {
	ID        string `json:"id"`
	ProjectID string `json:"project_id"`
	Title     string `json:"title"`
	CreatedAt string `json:"created_at"`
}

// ChatMessage is one turn of the in-memory transcript.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Message is the persisted history form returned by the backend.
type Message struct {
	ID             string      `json:"id"`
	ConversationID string      `json:"conversation_id"`
	Role           string      `json:"role"`
	Content        string      `json:"content"`
	Sources        []SourceRef `json:"sources"`
	CreatedAt      string      `json:"created_at"`
}

// SourceRef points at the document fragment a reply was grounded on.
type SourceRef struct {
	Filename   string `json:"filename"`
	ChunkIndex int    `json:"chunk_index"`
}

type DocumentInfo struct {
	DocumentID string `json:"document_id"`
	Filename   string `json:"filename"`
	ChunkIndex int    `json:"chunk_index"`
}

// ModelInfo describes one backend model; NumCtx caps GenerationOptions.NumCtx.
type ModelInfo struct {
	Name   string `json:"name"`
	NumCtx int    `json:"num_ctx"`
}

// GenerationOptions are the sampling knobs forwarded verbatim to the backend.
type GenerationOptions struct {
	Temperature   float64 `json:"temperature"`
	TopP          float64 `json:"top_p"`
	RepeatPenalty float64 `json:"repeat_penalty"`
	NumCtx        int     `json:"num_ctx"`
}

// Slider bounds for the settings pane.
const (
	TemperatureMin   = 0.0
	TemperatureMax   = 2.0
	TopPMin          = 0.0
	TopPMax          = 1.0
	RepeatPenaltyMin = 0.5
	RepeatPenaltyMax = 2.0
	NumCtxMin        = 1024
)

func DefaultOptions() GenerationOptions {
	return GenerationOptions{
		Temperature:   0.7,
		TopP:          0.9,
		RepeatPenalty: 1.1,
		NumCtx:        4096,
	}
}

// VoiceState is the voice engine's externally visible state.
type VoiceState int

const (
	VoiceIdle VoiceState = iota
	VoiceRecording
	VoiceProcessing
	VoicePlaying
)

func (s VoiceState) String() string {
	switch s {
	case VoiceRecording:
		return "recording"
	case VoiceProcessing:
		return "processing"
	case VoicePlaying:
		return "playing"
	default:
		return "idle"
	}
}
