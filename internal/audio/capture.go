package audio

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"sync"
	"time"
)

// captureCandidate is one way of recording the microphone. Candidates
// are probed in order and the first whose binary resolves wins, the same
// way the browser client walks its ordered codec preference list.
type captureCandidate struct {
	bin  string
	args func(outPath string) []string
}

func captureCandidates() []captureCandidate {
	switch runtime.GOOS {
	case "darwin":
		return []captureCandidate{
			{"ffmpeg", func(out string) []string {
				return []string{"-hide_banner", "-loglevel", "error", "-f", "avfoundation", "-i", ":0", "-y", out}
			}},
			{"sox", func(out string) []string {
				return []string{"-d", out}
			}},
		}
	default:
		return []captureCandidate{
			{"ffmpeg", func(out string) []string {
				return []string{"-hide_banner", "-loglevel", "error", "-f", "alsa", "-i", "default", "-y", out}
			}},
			{"arecord", func(out string) []string {
				return []string{"-f", "cd", "-t", "wav", out}
			}},
			{"sox", func(out string) []string {
				return []string{"-d", out}
			}},
		}
	}
}

// ExecRecorder records to a temporary WAV file via an external tool.
type ExecRecorder struct {
	mu      sync.Mutex
	cmd     *exec.Cmd
	outPath string
}

func NewExecRecorder() *ExecRecorder {
	return &ExecRecorder{}
}

func (r *ExecRecorder) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cmd != nil {
		return fmt.Errorf("enregistrement déjà en cours")
	}

	var chosen *captureCandidate
	for _, c := range captureCandidates() {
		if _, err := exec.LookPath(c.bin); err == nil {
			chosen = &c
			break
		}
	}
	if chosen == nil {
		return ErrNoCaptureTool
	}

	tmp, err := os.CreateTemp("", "heyrag-rec-*.wav")
	if err != nil {
		return err
	}
	tmp.Close()

	cmd := exec.Command(chosen.bin, chosen.args(tmp.Name())...)
	if err := cmd.Start(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("accès au micro refusé: %w", err)
	}

	r.cmd = cmd
	r.outPath = tmp.Name()
	return nil
}

// Stop interrupts the capture process, waits for it to flush the file
// and returns the recorded bytes. The device is released when the
// process exits.
func (r *ExecRecorder) Stop() ([]byte, error) {
	r.mu.Lock()
	cmd := r.cmd
	outPath := r.outPath
	r.cmd = nil
	r.outPath = ""
	r.mu.Unlock()

	if cmd == nil {
		return nil, nil
	}
	defer os.Remove(outPath)

	// SIGINT lets the tool finalize the WAV header; fall back to kill.
	if err := cmd.Process.Signal(os.Interrupt); err != nil {
		_ = cmd.Process.Kill()
	}

	waited := make(chan struct{})
	go func() {
		_ = cmd.Wait()
		close(waited)
	}()
	select {
	case <-waited:
	case <-time.After(3 * time.Second):
		_ = cmd.Process.Kill()
		<-waited
	}

	return os.ReadFile(outPath)
}
