// Package voice implements the spoken exchange engine: capture one
// utterance, ship it over a WebSocket, and play the streamed reply
// gaplessly while forwarding transcript events to the host.
//
// The engine is a four-state machine (idle, recording, processing,
// playing). It never mutates chat state itself; the host wires the Hooks
// to the same chat.Session mutations the text engine performs, so the
// transcript keeps a single writer.
package voice

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"

	"heyrag/internal/api"
	"heyrag/internal/audio"
	"heyrag/internal/models"
)

// minUtteranceBytes guards against empty recordings: below this size no
// connection is opened.
const minUtteranceBytes = 100

// Config is the subset of host state snapshotted at connection open.
type Config struct {
	Model          string
	ProjectID      string
	ConversationID string
	Options        models.GenerationOptions
}

// Hooks are the host callbacks. They are resolved through the provider
// at dispatch time so a refreshed host never sees stale handlers.
type Hooks struct {
	OnTranscription  func(text string)
	OnToken          func(token string)
	OnSources        func(sources []models.SourceRef)
	OnConversationID func(id string)
	OnDone           func()
	OnError          func(msg string)
	OnState          func(state models.VoiceState)
}

// Dialer opens the voice WebSocket; satisfied by *api.Client.
type Dialer interface {
	DialVoice(ctx context.Context) (*websocket.Conn, error)
}

// Engine owns the recorder, the socket, the playback queue and the
// active source for the duration of one voice session.
type Engine struct {
	dialer   Dialer
	recorder audio.Recorder
	player   audio.Player

	// Latest-value indirections, refreshed by the host on every update.
	config func() Config
	hooks  func() Hooks

	mu         sync.Mutex
	state      models.VoiceState
	conn       *websocket.Conn
	queue      [][]byte
	playing    bool
	serverDone bool
	cancel     context.CancelFunc
	gen        int // session generation; bumping it detaches every pending callback

	// dispatchMu serializes hook dispatch with Cancel, so Cancel cannot
	// return while a callback is still being delivered.
	dispatchMu sync.Mutex
}

func NewEngine(dialer Dialer, recorder audio.Recorder, player audio.Player, config func() Config, hooks func() Hooks) *Engine {
	return &Engine{
		dialer:   dialer,
		recorder: recorder,
		player:   player,
		config:   config,
		hooks:    hooks,
		state:    models.VoiceIdle,
	}
}

// State returns the current engine state.
func (e *Engine) State() models.VoiceState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// QueuedSegments reports how many segments await playback.
func (e *Engine) QueuedSegments() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.queue)
}

// StartRecording begins capturing an utterance. No-op outside idle.
func (e *Engine) StartRecording() {
	e.mu.Lock()
	if e.state != models.VoiceIdle {
		e.mu.Unlock()
		return
	}
	gen := e.gen
	e.mu.Unlock()

	if err := e.recorder.Start(); err != nil {
		e.emitError(gen, "Accès au micro refusé")
		return
	}
	e.setState(gen, models.VoiceRecording)
}

// StopRecording finalizes the capture and, if the utterance is long
// enough to be real, opens the exchange.
func (e *Engine) StopRecording() {
	e.mu.Lock()
	if e.state != models.VoiceRecording {
		e.mu.Unlock()
		return
	}
	gen := e.gen
	e.mu.Unlock()

	payload, err := e.recorder.Stop()
	if err != nil {
		e.emitError(gen, "Accès au micro refusé")
		e.setState(gen, models.VoiceIdle)
		return
	}
	if len(payload) <= minUtteranceBytes {
		e.setState(gen, models.VoiceIdle)
		return
	}

	cfg := e.config()

	e.mu.Lock()
	if gen != e.gen {
		e.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.serverDone = false
	e.mu.Unlock()

	e.setState(gen, models.VoiceProcessing)
	go e.exchange(ctx, gen, cfg, payload)
}

// Cancel tears the whole session down from any state. It is idempotent
// and no callback fires to the host after it returns.
func (e *Engine) Cancel() {
	e.mu.Lock()
	e.gen++
	cancel := e.cancel
	conn := e.conn
	e.cancel = nil
	e.conn = nil
	e.queue = nil
	e.playing = false
	e.serverDone = false
	wasRecording := e.state == models.VoiceRecording
	e.state = models.VoiceIdle
	e.mu.Unlock()

	// Taking dispatchMu waits out any callback that passed its generation
	// check before the bump above; after this point nothing is in flight.
	e.dispatchMu.Lock()
	defer e.dispatchMu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		conn.Close()
	}
	if wasRecording {
		// Release the microphone; the payload is discarded.
		_, _ = e.recorder.Stop()
	}
}

// exchange runs the whole network session: config frame, utterance
// frame, then the interleaved reply.
func (e *Engine) exchange(ctx context.Context, gen int, cfg Config, payload []byte) {
	conn, err := e.dialer.DialVoice(ctx)
	if err != nil {
		e.emitError(gen, "Connexion WebSocket échouée")
		e.setState(gen, models.VoiceIdle)
		return
	}

	e.mu.Lock()
	if gen != e.gen {
		e.mu.Unlock()
		conn.Close()
		return
	}
	e.conn = conn
	e.mu.Unlock()

	frame := api.VoiceConfig{
		Type:           "config",
		ProjectID:      cfg.ProjectID,
		Model:          cfg.Model,
		ConversationID: cfg.ConversationID,
		Options:        cfg.Options,
	}
	raw, err := json.Marshal(frame)
	if err == nil {
		err = conn.WriteMessage(websocket.TextMessage, raw)
	}
	if err == nil {
		err = conn.WriteMessage(websocket.BinaryMessage, payload)
	}
	if err != nil {
		e.failSession(gen, "Connexion WebSocket échouée")
		return
	}

	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			e.mu.Lock()
			done := e.serverDone
			stale := gen != e.gen
			e.mu.Unlock()
			if stale || done || ctx.Err() != nil {
				return
			}
			e.failSession(gen, "Connexion WebSocket échouée")
			return
		}

		switch kind {
		case websocket.BinaryMessage:
			e.enqueue(ctx, gen, data)
		case websocket.TextMessage:
			if e.handleControl(gen, data) {
				return
			}
		}
	}
}

// handleControl dispatches one JSON frame; true means the session is over.
func (e *Engine) handleControl(gen int, data []byte) bool {
	var ev api.StreamEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		// Malformed frame, tolerated.
		return false
	}

	switch ev.Type {
	case api.EventTranscription:
		e.emit(gen, func(h Hooks) {
			if h.OnTranscription != nil {
				h.OnTranscription(ev.Text)
			}
		})
	case api.EventConversationID:
		e.emit(gen, func(h Hooks) {
			if h.OnConversationID != nil {
				h.OnConversationID(ev.ContentString())
			}
		})
	case api.EventToken:
		e.emit(gen, func(h Hooks) {
			if h.OnToken != nil {
				h.OnToken(ev.ContentString())
			}
		})
	case api.EventSources:
		e.emit(gen, func(h Hooks) {
			if h.OnSources != nil {
				h.OnSources(ev.ContentSources())
			}
		})
	case api.EventAudioDone:
		// The last segment is in flight or queued; drain handles the rest.
	case api.EventDone:
		e.mu.Lock()
		if gen != e.gen {
			e.mu.Unlock()
			return true
		}
		e.serverDone = true
		idle := !e.playing && len(e.queue) == 0
		e.mu.Unlock()
		if idle {
			e.closeSession(gen)
			e.setState(gen, models.VoiceIdle)
		}
		e.emit(gen, func(h Hooks) {
			if h.OnDone != nil {
				h.OnDone()
			}
		})
	case api.EventError:
		e.failSession(gen, ev.ContentString())
		return true
	}
	return false
}

// enqueue appends a segment in arrival order and wakes the drain worker
// if playback is not already running.
func (e *Engine) enqueue(ctx context.Context, gen int, segment []byte) {
	e.mu.Lock()
	if gen != e.gen {
		e.mu.Unlock()
		return
	}
	e.queue = append(e.queue, segment)
	start := !e.playing
	if start {
		e.playing = true
	}
	e.mu.Unlock()

	if start {
		e.setState(gen, models.VoicePlaying)
		go e.drain(ctx, gen)
	}
}

// drain plays queued segments back to back. At most one drain worker is
// alive per session, which guarantees a single active source and gapless
// starts: the next segment begins the moment Play returns.
func (e *Engine) drain(ctx context.Context, gen int) {
	for {
		e.mu.Lock()
		if gen != e.gen {
			e.mu.Unlock()
			return
		}
		if len(e.queue) == 0 {
			e.playing = false
			finished := e.serverDone
			e.mu.Unlock()
			if finished {
				e.closeSession(gen)
				e.setState(gen, models.VoiceIdle)
			}
			return
		}
		segment := e.queue[0]
		e.queue = e.queue[1:]
		e.mu.Unlock()

		if err := e.player.Play(ctx, segment); err != nil {
			if ctx.Err() != nil {
				return
			}
			// Undecodable segment: skip it, keep the queue moving.
			continue
		}
	}
}

// failSession surfaces an error and resets everything.
func (e *Engine) failSession(gen int, msg string) {
	e.mu.Lock()
	if gen != e.gen {
		e.mu.Unlock()
		return
	}
	cancel := e.cancel
	conn := e.conn
	e.cancel = nil
	e.conn = nil
	e.queue = nil
	e.playing = false
	e.serverDone = false
	e.state = models.VoiceIdle
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		conn.Close()
	}
	e.emit(gen, func(h Hooks) {
		if h.OnError != nil {
			h.OnError(msg)
		}
	})
	e.emit(gen, func(h Hooks) {
		if h.OnState != nil {
			h.OnState(models.VoiceIdle)
		}
	})
}

// closeSession releases the socket once the reply is fully consumed.
func (e *Engine) closeSession(gen int) {
	e.mu.Lock()
	if gen != e.gen {
		e.mu.Unlock()
		return
	}
	cancel := e.cancel
	conn := e.conn
	e.cancel = nil
	e.conn = nil
	e.mu.Unlock()

	// Cancel before closing so the reader sees the session as finished
	// rather than failed.
	if cancel != nil {
		cancel()
	}
	if conn != nil {
		conn.Close()
	}
}

func (e *Engine) setState(gen int, state models.VoiceState) {
	e.mu.Lock()
	if gen != e.gen {
		e.mu.Unlock()
		return
	}
	e.state = state
	e.mu.Unlock()

	e.emit(gen, func(h Hooks) {
		if h.OnState != nil {
			h.OnState(state)
		}
	})
}

// emit runs a hook against the latest handler set, unless the session
// the event belongs to has been cancelled. The generation check and the
// call happen under dispatchMu, which Cancel takes after bumping the
// generation: either the event is dropped, or it is delivered before
// Cancel returns.
func (e *Engine) emit(gen int, fn func(Hooks)) {
	e.dispatchMu.Lock()
	defer e.dispatchMu.Unlock()

	e.mu.Lock()
	stale := gen != e.gen
	e.mu.Unlock()
	if stale {
		return
	}
	fn(e.hooks())
}

func (e *Engine) emitError(gen int, msg string) {
	e.emit(gen, func(h Hooks) {
		if h.OnError != nil {
			h.OnError(msg)
		}
	})
}
