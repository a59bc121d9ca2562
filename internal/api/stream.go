package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"heyrag/internal/models"
)

const (
	dataPrefix   = "data: "
	doneSentinel = "[DONE]"
)

// StreamHandlers receives decoded chat stream events in arrival order.
// Unset handlers are skipped.
type StreamHandlers struct {
	OnToken          func(token string)
	OnSources        func(sources []models.SourceRef)
	OnConversationID func(id string)
}

// StreamChat drives one streaming completion. It blocks until the stream
// terminates, the server reports an error, or ctx is cancelled; in the
// cancellation case the returned error wraps context.Canceled so callers
// can treat an abort differently from a failure.
//
// The body is a sequence of records separated by a blank line, each
// prefixed "data: " and carrying either the [DONE] sentinel or a JSON
// event. Records that fail to decode are skipped.
func (c *Client) StreamChat(ctx context.Context, reqBody ChatStreamRequest, h StreamHandlers) error {
	raw, err := json.Marshal(reqBody)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat/stream", bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	// Streaming reads are unbounded in time, so bypass the client timeout
	// and rely on ctx for cancellation.
	streamClient := &http.Client{}
	resp, err := streamClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("Erreur %d", resp.StatusCode)
	}

	var buf []byte
	chunk := make([]byte, 4096)
	for {
		n, readErr := resp.Body.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
			rest, done, err := drainRecords(buf, h)
			if err != nil {
				return err
			}
			if done {
				return nil
			}
			buf = rest
		}
		if readErr != nil {
			if ctx.Err() != nil {
				return fmt.Errorf("stream aborted: %w", ctx.Err())
			}
			// EOF without [DONE] is tolerated: the stream simply ended.
			if errors.Is(readErr, io.EOF) {
				return nil
			}
			return readErr
		}
	}
}

// drainRecords consumes every complete blank-line-separated record in buf
// and returns the unconsumed tail.
func drainRecords(buf []byte, h StreamHandlers) (rest []byte, done bool, err error) {
	for {
		idx := bytes.Index(buf, []byte("\n\n"))
		if idx < 0 {
			return buf, false, nil
		}
		record := string(buf[:idx])
		buf = buf[idx+2:]

		data := strings.TrimPrefix(strings.TrimSpace(record), dataPrefix)
		if data == "" {
			continue
		}
		if data == doneSentinel {
			return buf, true, nil
		}

		var ev StreamEvent
		if jsonErr := json.Unmarshal([]byte(data), &ev); jsonErr != nil {
			// Malformed record, skip and keep streaming.
			continue
		}
		switch ev.Type {
		case EventToken:
			if h.OnToken != nil {
				h.OnToken(ev.ContentString())
			}
		case EventSources:
			if h.OnSources != nil {
				h.OnSources(ev.ContentSources())
			}
		case EventConversationID:
			if h.OnConversationID != nil {
				h.OnConversationID(ev.ContentString())
			}
		case EventError:
			return buf, false, errors.New(ev.ContentString())
		default:
			// Unknown event types are dropped.
		}
	}
}
