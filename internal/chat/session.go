// Package chat holds the streaming text exchange engine. A Session owns
// the transcript for the active conversation: it is the single writer of
// chat state, whether the turn came from the keyboard or, via the host,
// from a voice exchange.
package chat

import (
	"context"
	"errors"
	"sync"

	"heyrag/internal/api"
	"heyrag/internal/models"
)

// Streamer is the transport the session drives; satisfied by *api.Client.
type Streamer interface {
	StreamChat(ctx context.Context, req api.ChatStreamRequest, h api.StreamHandlers) error
}

// Snapshot is a copy of the observable session state.
type Snapshot struct {
	Messages       []models.ChatMessage
	Sources        []models.SourceRef
	ConversationID string
	Streaming      bool
	Err            string
}

// Session drives one streaming completion at a time.
type Session struct {
	mu       sync.Mutex
	streamer Streamer

	messages       []models.ChatMessage
	sources        []models.SourceRef
	conversationID string
	streaming      bool
	errText        string

	cancel context.CancelFunc
	gen    int // bumped per send; stale stream callbacks are dropped

	lastQuestion  string
	lastModel     string
	lastProjectID string
	lastOptions   models.GenerationOptions
	hasLast       bool

	onUpdate func()
}

func NewSession(streamer Streamer) *Session {
	return &Session{streamer: streamer}
}

// SetOnUpdate registers the host notification hook. It is invoked after
// every observable mutation, never while the session lock is held.
func (s *Session) SetOnUpdate(fn func()) {
	s.mu.Lock()
	s.onUpdate = fn
	s.mu.Unlock()
}

func (s *Session) notify() {
	s.mu.Lock()
	fn := s.onUpdate
	s.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// Snapshot returns a copy of the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		Messages:       append([]models.ChatMessage(nil), s.messages...),
		Sources:        append([]models.SourceRef(nil), s.sources...),
		ConversationID: s.conversationID,
		Streaming:      s.streaming,
		Err:            s.errText,
	}
	return snap
}

// Send starts a streaming exchange. It is a no-op without a selected
// project or while another exchange is in flight.
func (s *Session) Send(question, model, projectID string, opts models.GenerationOptions) {
	if projectID == "" {
		return
	}

	s.mu.Lock()
	if s.streaming {
		s.mu.Unlock()
		return
	}
	s.lastQuestion = question
	s.lastModel = model
	s.lastProjectID = projectID
	s.lastOptions = opts
	s.hasLast = true
	s.errText = ""

	s.messages = append(s.messages,
		models.ChatMessage{Role: models.RoleUser, Content: question},
		models.ChatMessage{Role: models.RoleAssistant, Content: ""},
	)
	s.sources = nil
	s.streaming = true

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.gen++
	gen := s.gen
	convID := s.conversationID
	s.mu.Unlock()
	s.notify()

	req := api.ChatStreamRequest{
		Question:       question,
		Model:          model,
		ProjectID:      projectID,
		ConversationID: convID,
		Options:        opts,
	}

	go s.stream(ctx, cancel, gen, req)
}

func (s *Session) stream(ctx context.Context, cancel context.CancelFunc, gen int, req api.ChatStreamRequest) {
	defer cancel()

	err := s.streamer.StreamChat(ctx, req, api.StreamHandlers{
		OnToken: func(token string) {
			s.appendToken(gen, token)
		},
		OnSources: func(sources []models.SourceRef) {
			s.setSources(gen, sources)
		},
		OnConversationID: func(id string) {
			s.setConversationID(gen, id)
		},
	})

	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	s.streaming = false
	s.cancel = nil
	aborted := errors.Is(err, context.Canceled) || ctx.Err() != nil
	if err != nil && !aborted {
		// Drop the trailing assistant turn so the log does not end
		// mid-turn; aborts keep the partial reply readable.
		s.errText = err.Error()
		if n := len(s.messages); n > 0 && s.messages[n-1].Role == models.RoleAssistant {
			s.messages = s.messages[:n-1]
		}
	}
	s.mu.Unlock()
	s.notify()
}

// Stop aborts the in-flight exchange. The partial assistant turn stays
// and no error is surfaced.
func (s *Session) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Retry removes the last user turn and everything after it, then replays
// the remembered question. No-op without a prior question.
func (s *Session) Retry() {
	s.mu.Lock()
	if !s.hasLast || s.streaming {
		s.mu.Unlock()
		return
	}
	for i := len(s.messages) - 1; i >= 0; i-- {
		if s.messages[i].Role == models.RoleUser {
			s.messages = s.messages[:i]
			break
		}
	}
	question, model, projectID, opts := s.lastQuestion, s.lastModel, s.lastProjectID, s.lastOptions
	s.mu.Unlock()
	s.notify()

	s.Send(question, model, projectID, opts)
}

// Clear resets the session to a fresh conversation.
func (s *Session) Clear() {
	s.mu.Lock()
	s.gen++
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.messages = nil
	s.sources = nil
	s.conversationID = ""
	s.errText = ""
	s.streaming = false
	s.hasLast = false
	s.lastQuestion = ""
	s.mu.Unlock()
	s.notify()
}

// LoadConversation replaces the transcript atomically.
func (s *Session) LoadConversation(msgs []models.ChatMessage, conversationID string) {
	s.mu.Lock()
	s.gen++
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.messages = append([]models.ChatMessage(nil), msgs...)
	s.conversationID = conversationID
	s.sources = nil
	s.errText = ""
	s.streaming = false
	s.mu.Unlock()
	s.notify()
}

// AppendExchange appends a user turn plus an empty assistant placeholder.
// Used by the host when a voice transcription arrives.
func (s *Session) AppendExchange(userText string) {
	s.mu.Lock()
	s.messages = append(s.messages,
		models.ChatMessage{Role: models.RoleUser, Content: userText},
		models.ChatMessage{Role: models.RoleAssistant, Content: ""},
	)
	s.sources = nil
	s.mu.Unlock()
	s.notify()
}

// AppendToken grows the trailing assistant turn.
func (s *Session) AppendToken(token string) {
	s.appendToken(s.currentGen(), token)
}

// SetSources replaces the source list for the displayed turn.
func (s *Session) SetSources(sources []models.SourceRef) {
	s.setSources(s.currentGen(), sources)
}

// SetConversationID records the server-assigned conversation id.
func (s *Session) SetConversationID(id string) {
	s.setConversationID(s.currentGen(), id)
}

// SetError surfaces an error from a collaborator (the voice engine).
func (s *Session) SetError(msg string) {
	s.mu.Lock()
	s.errText = msg
	s.mu.Unlock()
	s.notify()
}

func (s *Session) currentGen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

func (s *Session) appendToken(gen int, token string) {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	if n := len(s.messages); n > 0 && s.messages[n-1].Role == models.RoleAssistant {
		s.messages[n-1].Content += token
	}
	s.mu.Unlock()
	s.notify()
}

func (s *Session) setSources(gen int, sources []models.SourceRef) {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	s.sources = append([]models.SourceRef(nil), sources...)
	s.mu.Unlock()
	s.notify()
}

func (s *Session) setConversationID(gen int, id string) {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	s.conversationID = id
	s.mu.Unlock()
	s.notify()
}
