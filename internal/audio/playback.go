package audio

import (
	"context"
	"os"
	"os/exec"
	"runtime"
)

// playbackCandidate mirrors captureCandidate for the output side.
type playbackCandidate struct {
	bin  string
	args func(inPath string) []string
}

func playbackCandidates() []playbackCandidate {
	cands := []playbackCandidate{
		{"ffplay", func(in string) []string {
			return []string{"-hide_banner", "-loglevel", "error", "-autoexit", "-nodisp", in}
		}},
	}
	if runtime.GOOS == "darwin" {
		cands = append(cands, playbackCandidate{"afplay", func(in string) []string {
			return []string{in}
		}})
	} else {
		cands = append(cands, playbackCandidate{"aplay", func(in string) []string {
			return []string{"-q", in}
		}})
	}
	cands = append(cands, playbackCandidate{"play", func(in string) []string {
		return []string{"-q", in}
	}})
	return cands
}

// ExecPlayer plays segments through an external tool. One Play call is
// one process; cancelling ctx kills it, which is how the voice engine
// stops the active source immediately.
type ExecPlayer struct{}

func NewExecPlayer() *ExecPlayer {
	return &ExecPlayer{}
}

func (p *ExecPlayer) Play(ctx context.Context, segment []byte) error {
	var chosen *playbackCandidate
	for _, c := range playbackCandidates() {
		if _, err := exec.LookPath(c.bin); err == nil {
			chosen = &c
			break
		}
	}
	if chosen == nil {
		return ErrNoPlaybackTool
	}

	tmp, err := os.CreateTemp("", "heyrag-play-*.wav")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(segment); err != nil {
		tmp.Close()
		return err
	}
	tmp.Close()

	cmd := exec.CommandContext(ctx, chosen.bin, chosen.args(tmp.Name())...)
	return cmd.Run()
}
