package audio

import (
	"context"
	"errors"
	"os/exec"
	"sync"
)

// StartFunc plays the clip at path, blocking until playback finishes or ctx
// is cancelled. The default implementation execs a system player.
type StartFunc func(ctx context.Context, path string) error

// Player holds the single system-wide playback slot. Starting a new clip
// stops the previous one first; there is no queue.
type Player struct {
	start StartFunc

	mu      sync.Mutex
	cancel  context.CancelFunc
	playing bool
	gen     uint64
}

// NewPlayer builds a player around the host playback tool. Returns an error
// when none is installed.
func NewPlayer() (*Player, error) {
	start, err := systemPlayback()
	if err != nil {
		return nil, err
	}
	return newPlayer(start), nil
}

func newPlayer(start StartFunc) *Player {
	return &Player{start: start}
}

// Play starts the clip at path, stopping any current clip first. done fires
// exactly once when playback ends; a deliberately stopped clip completes
// with a nil error.
func (p *Player) Play(path string, done func(error)) error {
	p.mu.Lock()
	p.stopLocked()

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.playing = true
	p.gen++
	gen := p.gen
	p.mu.Unlock()

	go func() {
		err := p.start(ctx, path)
		if ctx.Err() != nil {
			err = nil
		}

		p.mu.Lock()
		// Only the newest clip owns the playing flag.
		if p.gen == gen {
			p.playing = false
			p.cancel = nil
		}
		p.mu.Unlock()

		if done != nil {
			done(err)
		}
	}()
	return nil
}

// Stop ends the current clip. Idempotent: stopping twice, or stopping when
// nothing plays, is a no-op.
func (p *Player) Stop() {
	p.mu.Lock()
	p.stopLocked()
	p.mu.Unlock()
}

func (p *Player) stopLocked() {
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	p.playing = false
}

// IsPlaying reports whether a clip is currently playing.
func (p *Player) IsPlaying() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}

// systemPlayback picks the first available playback tool.
func systemPlayback() (StartFunc, error) {
	candidates := [][]string{
		{"ffplay", "-nodisp", "-autoexit", "-loglevel", "quiet"},
		{"afplay"},
		{"aplay", "-q"},
		{"paplay"},
	}
	for _, candidate := range candidates {
		path, err := exec.LookPath(candidate[0])
		if err != nil {
			continue
		}
		args := candidate[1:]
		return func(ctx context.Context, clip string) error {
			cmd := exec.CommandContext(ctx, path, append(append([]string{}, args...), clip)...)
			return cmd.Run()
		}, nil
	}
	return nil, errors.New("no audio playback tool found (install ffplay, afplay, or aplay)")
}
