// Package audio adapts system audio tools for the voice view: bounded
// microphone capture and single-slot playback. Capture and playback shell
// out to whatever the host has (sox, arecord, ffplay, afplay, aplay);
// missing tools report as unsupported and the UI hides the affordance.
package audio

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"
)

// MaxRecordingDuration is the hard ceiling on one clip.
const MaxRecordingDuration = 5 * time.Second

// CaptureFunc records microphone audio into dst until ctx is done. The
// default implementation execs a system capture tool; tests inject their own.
type CaptureFunc func(ctx context.Context, dst string) error

// Result is the outcome of one recording.
type Result struct {
	WAV     []byte
	Elapsed time.Duration
	Err     error
}

// Recorder captures at most one clip at a time, stopping at the ceiling or
// on explicit Stop, whichever comes first.
type Recorder struct {
	ceiling time.Duration
	capture CaptureFunc

	mu        sync.Mutex
	recording bool
	startedAt time.Time
	cancel    context.CancelFunc
}

// NewRecorder builds a recorder around the host capture tool. Returns an
// error when no capture tool is installed.
func NewRecorder(ceiling time.Duration) (*Recorder, error) {
	capture, err := systemCapture()
	if err != nil {
		return nil, err
	}
	return newRecorder(ceiling, capture), nil
}

func newRecorder(ceiling time.Duration, capture CaptureFunc) *Recorder {
	if ceiling <= 0 {
		ceiling = MaxRecordingDuration
	}
	return &Recorder{ceiling: ceiling, capture: capture}
}

// Start begins capturing and returns immediately. onDone fires exactly once,
// with the clip bytes and elapsed time, when the ceiling is reached or Stop
// is called. Starting while already recording is an error.
func (r *Recorder) Start(onDone func(Result)) error {
	r.mu.Lock()
	if r.recording {
		r.mu.Unlock()
		return errors.New("already recording")
	}
	ctx, cancel := context.WithTimeout(context.Background(), r.ceiling)
	r.recording = true
	r.startedAt = time.Now()
	r.cancel = cancel
	started := r.startedAt
	r.mu.Unlock()

	go func() {
		defer cancel()

		dst := filepath.Join(os.TempDir(), fmt.Sprintf("teller-rec-%d.wav", started.UnixNano()))
		defer os.Remove(dst)

		err := r.capture(ctx, dst)
		// The ceiling and Stop both kill the capture process; that is a
		// complete clip, not a failure.
		if err != nil && ctx.Err() == nil {
			r.finish(Result{Elapsed: time.Since(started), Err: err}, onDone)
			return
		}

		wav, readErr := os.ReadFile(dst)
		if readErr != nil {
			r.finish(Result{Elapsed: time.Since(started), Err: errors.New("microphone capture produced no audio")}, onDone)
			return
		}
		r.finish(Result{WAV: wav, Elapsed: time.Since(started)}, onDone)
	}()
	return nil
}

// Stop ends the recording early. A no-op when nothing is recording.
func (r *Recorder) Stop() {
	r.mu.Lock()
	cancel := r.cancel
	r.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Recording reports whether a capture is in progress.
func (r *Recorder) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recording
}

// Elapsed returns how long the current recording has been running.
func (r *Recorder) Elapsed() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.recording {
		return 0
	}
	return time.Since(r.startedAt)
}

func (r *Recorder) finish(res Result, onDone func(Result)) {
	r.mu.Lock()
	r.recording = false
	r.cancel = nil
	r.mu.Unlock()
	onDone(res)
}

// systemCapture picks the first available capture tool.
func systemCapture() (CaptureFunc, error) {
	if path, err := exec.LookPath("sox"); err == nil {
		return func(ctx context.Context, dst string) error {
			// 16 kHz mono is plenty for transcription.
			cmd := exec.CommandContext(ctx, path, "-q", "-d", "-r", "16000", "-c", "1", dst)
			return cmd.Run()
		}, nil
	}
	if path, err := exec.LookPath("arecord"); err == nil {
		return func(ctx context.Context, dst string) error {
			cmd := exec.CommandContext(ctx, path, "-q", "-f", "S16_LE", "-r", "16000", "-c", "1", dst)
			return cmd.Run()
		}, nil
	}
	return nil, errors.New("no audio capture tool found (install sox or arecord)")
}
