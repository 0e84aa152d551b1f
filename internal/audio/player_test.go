package audio

import (
	"context"
	"sync"
	"testing"
	"time"
)

// blockingStart blocks until its context is cancelled and records which
// clips it was asked to play.
type blockingStart struct {
	mu    sync.Mutex
	paths []string
}

func (b *blockingStart) fn(ctx context.Context, path string) error {
	b.mu.Lock()
	b.paths = append(b.paths, path)
	b.mu.Unlock()
	<-ctx.Done()
	return ctx.Err()
}

func (b *blockingStart) played() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.paths))
	copy(out, b.paths)
	return out
}

func TestPlayStopsPreviousClipFirst(t *testing.T) {
	start := &blockingStart{}
	p := newPlayer(start.fn)

	firstDone := make(chan error, 1)
	if err := p.Play("first.mp3", func(err error) { firstDone <- err }); err != nil {
		t.Fatalf("Play: %v", err)
	}

	secondDone := make(chan error, 1)
	if err := p.Play("second.mp3", func(err error) { secondDone <- err }); err != nil {
		t.Fatalf("Play: %v", err)
	}

	// The superseded clip completes with nil: being replaced is not an error.
	select {
	case err := <-firstDone:
		if err != nil {
			t.Errorf("superseded clip finished with %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("superseded clip never completed")
	}

	if !p.IsPlaying() {
		t.Error("second clip should still be playing")
	}
	if got := start.played(); len(got) != 2 || got[1] != "second.mp3" {
		t.Errorf("played = %v", got)
	}

	p.Stop()
	select {
	case <-secondDone:
	case <-time.After(2 * time.Second):
		t.Fatal("stopped clip never completed")
	}
}

func TestStopIsIdempotent(t *testing.T) {
	start := &blockingStart{}
	p := newPlayer(start.fn)

	done := make(chan error, 1)
	if err := p.Play("clip.mp3", func(err error) { done <- err }); err != nil {
		t.Fatalf("Play: %v", err)
	}

	p.Stop()
	p.Stop() // second stop must be a no-op
	p.Stop() // and stopping with nothing playing too

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("stopped clip finished with %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("clip never completed after stop")
	}
	if p.IsPlaying() {
		t.Error("IsPlaying() after stop")
	}
}

func TestPlaybackErrorSurfacesInDone(t *testing.T) {
	wantErr := context.DeadlineExceeded
	p := newPlayer(func(context.Context, string) error { return wantErr })

	done := make(chan error, 1)
	if err := p.Play("clip.mp3", func(err error) { done <- err }); err != nil {
		t.Fatalf("Play: %v", err)
	}
	select {
	case err := <-done:
		if err != wantErr {
			t.Errorf("done err = %v, want %v", err, wantErr)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("done never fired")
	}
}
