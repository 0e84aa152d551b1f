package audio

import (
	"context"
	"os"
	"testing"
	"time"
)

// writeUntilDone fakes a capture tool: writes payload to dst and waits for
// the context, like a real process being killed at the ceiling or by Stop.
func writeUntilDone(payload string) CaptureFunc {
	return func(ctx context.Context, dst string) error {
		if err := os.WriteFile(dst, []byte(payload), 0o644); err != nil {
			return err
		}
		<-ctx.Done()
		return ctx.Err()
	}
}

func TestRecordingStopsAtCeiling(t *testing.T) {
	r := newRecorder(50*time.Millisecond, writeUntilDone("clip"))

	done := make(chan Result, 1)
	start := time.Now()
	if err := r.Start(func(res Result) { done <- res }); err != nil {
		t.Fatalf("Start: %v", err)
	}

	select {
	case res := <-done:
		if res.Err != nil {
			t.Fatalf("ceiling stop reported error: %v", res.Err)
		}
		if string(res.WAV) != "clip" {
			t.Errorf("WAV = %q", res.WAV)
		}
		if elapsed := time.Since(start); elapsed > 3*time.Second {
			t.Errorf("recording ran %v past a 50ms ceiling", elapsed)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("onDone never fired")
	}
	if r.Recording() {
		t.Error("Recording() still true after the ceiling")
	}
}

func TestStopEndsRecordingEarly(t *testing.T) {
	r := newRecorder(time.Minute, writeUntilDone("early"))

	done := make(chan Result, 1)
	if err := r.Start(func(res Result) { done <- res }); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !r.Recording() {
		t.Fatal("Recording() false right after Start")
	}
	r.Stop()

	select {
	case res := <-done:
		if res.Err != nil {
			t.Fatalf("explicit stop reported error: %v", res.Err)
		}
		if string(res.WAV) != "early" {
			t.Errorf("WAV = %q", res.WAV)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("onDone never fired after Stop")
	}

	// Stop with nothing recording is a no-op.
	r.Stop()
}

func TestStartWhileRecordingFails(t *testing.T) {
	r := newRecorder(time.Minute, writeUntilDone("x"))

	done := make(chan Result, 1)
	if err := r.Start(func(res Result) { done <- res }); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := r.Start(func(Result) {}); err == nil {
		t.Fatal("second Start succeeded while recording")
	}
	r.Stop()
	<-done
}

func TestCaptureFailureSurfaces(t *testing.T) {
	r := newRecorder(time.Minute, func(context.Context, string) error {
		return os.ErrPermission
	})

	done := make(chan Result, 1)
	if err := r.Start(func(res Result) { done <- res }); err != nil {
		t.Fatalf("Start: %v", err)
	}
	select {
	case res := <-done:
		if res.Err == nil {
			t.Fatal("capture failure not reported")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("onDone never fired")
	}
}

func TestElapsedZeroWhenIdle(t *testing.T) {
	r := newRecorder(time.Minute, writeUntilDone("x"))
	if got := r.Elapsed(); got != 0 {
		t.Errorf("Elapsed() = %v while idle", got)
	}
}
