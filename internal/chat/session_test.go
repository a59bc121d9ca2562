package chat

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"heyrag/internal/api"
	"heyrag/internal/models"
)

// fakeStreamer scripts the transport side of an exchange.
type fakeStreamer struct {
	mu     sync.Mutex
	calls  []api.ChatStreamRequest
	script func(ctx context.Context, req api.ChatStreamRequest, h api.StreamHandlers) error
}

func (f *fakeStreamer) StreamChat(ctx context.Context, req api.ChatStreamRequest, h api.StreamHandlers) error {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	script := f.script
	f.mu.Unlock()
	if script == nil {
		return nil
	}
	return script(ctx, req, h)
}

func (f *fakeStreamer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeStreamer) call(i int) api.ChatStreamRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[i]
}

func waitIdle(t *testing.T, s *Session) Snapshot {
	t.Helper()
	require.Eventually(t, func() bool {
		return !s.Snapshot().Streaming
	}, time.Second, time.Millisecond)
	return s.Snapshot()
}

func TestSendAppendsPlaceholderImmediately(t *testing.T) {
	block := make(chan struct{})
	f := &fakeStreamer{script: func(ctx context.Context, req api.ChatStreamRequest, h api.StreamHandlers) error {
		<-block
		return nil
	}}
	s := NewSession(f)

	s.Send("Résume la page 2", "m1", "p1", models.DefaultOptions())

	snap := s.Snapshot()
	require.Len(t, snap.Messages, 2)
	assert.Equal(t, models.ChatMessage{Role: models.RoleUser, Content: "Résume la page 2"}, snap.Messages[0])
	assert.Equal(t, models.ChatMessage{Role: models.RoleAssistant, Content: ""}, snap.Messages[1])
	assert.True(t, snap.Streaming)
	assert.Empty(t, snap.Sources)

	close(block)
	waitIdle(t, s)
}

func TestSendHappyPath(t *testing.T) {
	f := &fakeStreamer{script: func(ctx context.Context, req api.ChatStreamRequest, h api.StreamHandlers) error {
		h.OnToken("Voici ")
		h.OnToken("le ")
		h.OnToken("résumé.")
		h.OnSources([]models.SourceRef{{Filename: "doc.pdf", ChunkIndex: 3}})
		h.OnConversationID("c1")
		return nil
	}}
	s := NewSession(f)

	s.Send("Résume la page 2", "m1", "p1", models.GenerationOptions{Temperature: 0.7})
	snap := waitIdle(t, s)

	require.Len(t, snap.Messages, 2)
	assert.Equal(t, "Voici le résumé.", snap.Messages[1].Content)
	assert.Equal(t, []models.SourceRef{{Filename: "doc.pdf", ChunkIndex: 3}}, snap.Sources)
	assert.Equal(t, "c1", snap.ConversationID)
	assert.Empty(t, snap.Err)
}

func TestSendRequiresProject(t *testing.T) {
	f := &fakeStreamer{}
	s := NewSession(f)

	s.Send("question", "m1", "", models.DefaultOptions())

	assert.Empty(t, s.Snapshot().Messages)
	assert.Zero(t, f.callCount())
}

func TestSendRejectsConcurrentExchange(t *testing.T) {
	block := make(chan struct{})
	f := &fakeStreamer{script: func(ctx context.Context, req api.ChatStreamRequest, h api.StreamHandlers) error {
		<-block
		return nil
	}}
	s := NewSession(f)

	s.Send("first", "m1", "p1", models.DefaultOptions())
	s.Send("second", "m1", "p1", models.DefaultOptions())

	assert.Len(t, s.Snapshot().Messages, 2)
	close(block)
	waitIdle(t, s)
	assert.Equal(t, 1, f.callCount())
}

func TestSendCarriesConversationID(t *testing.T) {
	f := &fakeStreamer{script: func(ctx context.Context, req api.ChatStreamRequest, h api.StreamHandlers) error {
		h.OnConversationID("c42")
		return nil
	}}
	s := NewSession(f)

	s.Send("one", "m1", "p1", models.DefaultOptions())
	waitIdle(t, s)
	s.Send("two", "m1", "p1", models.DefaultOptions())
	waitIdle(t, s)

	assert.Equal(t, "", f.call(0).ConversationID)
	assert.Equal(t, "c42", f.call(1).ConversationID)
}

func TestStopPreservesPartialReply(t *testing.T) {
	tokenSent := make(chan struct{})
	f := &fakeStreamer{script: func(ctx context.Context, req api.ChatStreamRequest, h api.StreamHandlers) error {
		h.OnToken("Vo")
		close(tokenSent)
		<-ctx.Done()
		return ctx.Err()
	}}
	s := NewSession(f)

	s.Send("question", "m1", "p1", models.DefaultOptions())
	<-tokenSent
	s.Stop()
	snap := waitIdle(t, s)

	require.Len(t, snap.Messages, 2)
	assert.Equal(t, "Vo", snap.Messages[1].Content)
	assert.Empty(t, snap.Err)
}

func TestStopIgnoresLateTokens(t *testing.T) {
	tokenSent := make(chan struct{})
	release := make(chan struct{})
	f := &fakeStreamer{script: func(ctx context.Context, req api.ChatStreamRequest, h api.StreamHandlers) error {
		h.OnToken("Vo")
		close(tokenSent)
		<-ctx.Done()
		<-release
		// The transport may still deliver buffered tokens after abort.
		h.OnToken("ici")
		return ctx.Err()
	}}
	s := NewSession(f)

	s.Send("question", "m1", "p1", models.DefaultOptions())
	<-tokenSent
	s.Stop()
	s.Clear()
	close(release)

	require.Eventually(t, func() bool {
		return f.callCount() == 1 && len(s.Snapshot().Messages) == 0
	}, time.Second, time.Millisecond)
	assert.Empty(t, s.Snapshot().Messages)
}

func TestErrorTruncatesTrailingAssistant(t *testing.T) {
	f := &fakeStreamer{script: func(ctx context.Context, req api.ChatStreamRequest, h api.StreamHandlers) error {
		return errors.New("timeout")
	}}
	s := NewSession(f)

	s.Send("question", "m1", "p1", models.DefaultOptions())
	snap := waitIdle(t, s)

	assert.Equal(t, "timeout", snap.Err)
	require.Len(t, snap.Messages, 1)
	assert.Equal(t, models.RoleUser, snap.Messages[0].Role)
}

func TestRetryReplaysLastQuestion(t *testing.T) {
	var fail = true
	f := &fakeStreamer{}
	f.script = func(ctx context.Context, req api.ChatStreamRequest, h api.StreamHandlers) error {
		if fail {
			fail = false
			return errors.New("timeout")
		}
		h.OnToken("ça marche")
		return nil
	}
	s := NewSession(f)
	opts := models.GenerationOptions{Temperature: 1.3, TopP: 0.5, RepeatPenalty: 1.0, NumCtx: 2048}

	s.Send("question", "m1", "p1", opts)
	waitIdle(t, s)
	require.Equal(t, "timeout", s.Snapshot().Err)

	s.Retry()
	snap := waitIdle(t, s)

	require.Equal(t, 2, f.callCount())
	assert.Equal(t, "question", f.call(1).Question)
	assert.Equal(t, opts, f.call(1).Options)
	require.Len(t, snap.Messages, 2)
	assert.Equal(t, "ça marche", snap.Messages[1].Content)
	assert.Empty(t, snap.Err)
}

func TestRetryWithoutHistoryIsNoop(t *testing.T) {
	f := &fakeStreamer{}
	s := NewSession(f)

	s.Retry()

	assert.Zero(t, f.callCount())
	assert.Empty(t, s.Snapshot().Messages)
}

func TestClearResetsEverything(t *testing.T) {
	f := &fakeStreamer{script: func(ctx context.Context, req api.ChatStreamRequest, h api.StreamHandlers) error {
		h.OnToken("x")
		h.OnConversationID("c1")
		h.OnSources([]models.SourceRef{{Filename: "f"}})
		return nil
	}}
	s := NewSession(f)

	s.Send("q", "m1", "p1", models.DefaultOptions())
	waitIdle(t, s)
	s.Clear()

	snap := s.Snapshot()
	assert.Empty(t, snap.Messages)
	assert.Empty(t, snap.Sources)
	assert.Empty(t, snap.ConversationID)
	assert.Empty(t, snap.Err)

	// The remembered question is gone too.
	s.Retry()
	assert.Equal(t, 1, f.callCount())
}

func TestLoadConversationRoundTrip(t *testing.T) {
	s := NewSession(&fakeStreamer{})
	msgs := []models.ChatMessage{
		{Role: models.RoleUser, Content: "q1"},
		{Role: models.RoleAssistant, Content: "a1"},
		{Role: models.RoleUser, Content: "q2"},
		{Role: models.RoleAssistant, Content: "a2"},
	}

	s.LoadConversation(msgs, "c7")

	snap := s.Snapshot()
	assert.Equal(t, msgs, snap.Messages)
	assert.Equal(t, "c7", snap.ConversationID)
	assert.Empty(t, snap.Sources)
	assert.Empty(t, snap.Err)
}

func TestHostForwardedVoiceMutations(t *testing.T) {
	s := NewSession(&fakeStreamer{})

	s.AppendExchange("bonjour")
	s.AppendToken("Sa")
	s.AppendToken("lut")
	s.SetSources([]models.SourceRef{{Filename: "doc.pdf", ChunkIndex: 1}})
	s.SetConversationID("c2")

	snap := s.Snapshot()
	require.Len(t, snap.Messages, 2)
	assert.Equal(t, models.ChatMessage{Role: models.RoleUser, Content: "bonjour"}, snap.Messages[0])
	assert.Equal(t, "Salut", snap.Messages[1].Content)
	assert.Equal(t, "c2", snap.ConversationID)
	require.Len(t, snap.Sources, 1)
}

func TestOnUpdateFires(t *testing.T) {
	s := NewSession(&fakeStreamer{})
	var mu sync.Mutex
	count := 0
	s.SetOnUpdate(func() {
		mu.Lock()
		count++
		mu.Unlock()
	})

	s.AppendExchange("q")
	s.AppendToken("a")

	mu.Lock()
	defer mu.Unlock()
	assert.GreaterOrEqual(t, count, 2)
}
