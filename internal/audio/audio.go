// Package audio abstracts microphone capture and audio playback behind
// small interfaces so the voice engine stays independent of the host
// platform. The default implementations shell out to whichever capture
// and playback tool is installed, probed in preference order.
package audio

import (
	"context"
	"errors"
)

// ErrNoCaptureTool and ErrNoPlaybackTool indicate the platform has none
// of the supported tools installed.
var (
	ErrNoCaptureTool  = errors.New("aucun outil d'enregistrement audio disponible")
	ErrNoPlaybackTool = errors.New("aucun outil de lecture audio disponible")
)

// Recorder captures one utterance. Start begins capture; Stop finalizes
// it, releases the device and returns the encoded payload. Stop after
// Start is always safe, including mid-failure.
type Recorder interface {
	Start() error
	Stop() ([]byte, error)
}

// Player plays one self-contained audio segment, blocking until the
// segment ends or ctx is cancelled. A decode failure is returned as an
// error; callers treat it as non-fatal.
type Player interface {
	Play(ctx context.Context, segment []byte) error
}
