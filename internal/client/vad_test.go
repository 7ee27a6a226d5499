package client

import (
	"encoding/binary"
	"testing"
	"time"
)

func testDetector() *Detector {
	// 20ms frames, 100ms silence window (5 frames), 60ms minimum (3 frames)
	return NewDetector(VADConfig{
		FrameDuration:   20 * time.Millisecond,
		StartRMS:        1000.0,
		MinStartFrames:  2,
		SilenceDuration: 100 * time.Millisecond,
		MinUtterance:    60 * time.Millisecond,
	})
}

func feed(d *Detector, rms float64, n int) []VADEvent {
	var evs []VADEvent
	for i := 0; i < n; i++ {
		if ev := d.ProcessFrame(rms); ev != VADNone {
			evs = append(evs, ev)
		}
	}
	return evs
}

func TestNoStartBelowThreshold(t *testing.T) {
	d := testDetector()
	if evs := feed(d, 500, 20); len(evs) != 0 {
		t.Fatalf("unexpected events %v", evs)
	}
	if d.Recording() {
		t.Fatal("should not be recording")
	}
}

func TestStartsExactlyOncePerSpeechRegion(t *testing.T) {
	d := testDetector()
	evs := feed(d, 1500, 10)
	if len(evs) != 1 || evs[0] != VADStart {
		t.Fatalf("expected single start, got %v", evs)
	}
	if !d.Recording() {
		t.Fatal("should be recording")
	}
}

func TestSingleSpikeDoesNotStart(t *testing.T) {
	d := testDetector()
	if ev := d.ProcessFrame(1500); ev != VADNone {
		t.Fatalf("one frame must not start, got %v", ev)
	}
	if ev := d.ProcessFrame(500); ev != VADNone {
		t.Fatalf("unexpected %v", ev)
	}
	if d.consecSpeech != 0 {
		t.Fatalf("consecutive counter should reset, got %d", d.consecSpeech)
	}
}

func TestStopsAfterSilenceWindow(t *testing.T) {
	d := testDetector()
	feed(d, 1500, 5) // start + satisfy min utterance
	evs := feed(d, 100, 5)
	if len(evs) != 1 || evs[0] != VADStop {
		t.Fatalf("expected single stop, got %v", evs)
	}
	if d.Recording() {
		t.Fatal("should have stopped")
	}
}

func TestSpikeCancelsPendingStop(t *testing.T) {
	d := testDetector()
	feed(d, 1500, 5)
	feed(d, 100, 4) // one frame short of the silence window
	if ev := d.ProcessFrame(1500); ev != VADNone {
		t.Fatalf("spike should not emit an event, got %v", ev)
	}
	// The silence run restarted; four more silent frames are not enough.
	if evs := feed(d, 100, 4); len(evs) != 0 {
		t.Fatalf("stop fired before a full silence window, got %v", evs)
	}
	if evs := feed(d, 100, 1); len(evs) != 1 || evs[0] != VADStop {
		t.Fatalf("expected stop after full silence window, got %v", evs)
	}
}

func TestShortRecordingNotStoppedBeforeMinDuration(t *testing.T) {
	// Detector with a minimum longer than the silence window.
	d := NewDetector(VADConfig{
		FrameDuration:   20 * time.Millisecond,
		StartRMS:        1000.0,
		MinStartFrames:  2,
		SilenceDuration: 60 * time.Millisecond, // 3 frames
		MinUtterance:    200 * time.Millisecond, // 10 frames
	})
	feed(d, 1500, 2) // start, 2 frames recorded
	// Silence window elapses well before the minimum duration.
	if evs := feed(d, 100, 3); len(evs) != 0 {
		t.Fatalf("stopped before minimum duration, got %v", evs)
	}
	if !d.Recording() {
		t.Fatal("recording must continue until minimum duration")
	}
	// After the minimum has elapsed the pending silence finally stops it.
	if evs := feed(d, 100, 5); len(evs) != 1 || evs[0] != VADStop {
		t.Fatalf("expected stop after min duration, got %v", evs)
	}
}

func TestPausedIgnoresLoudFrames(t *testing.T) {
	d := testDetector()
	d.SetPaused(true)
	if evs := feed(d, 2000, 20); len(evs) != 0 {
		t.Fatalf("paused detector emitted %v", evs)
	}
	d.SetPaused(false)
	if evs := feed(d, 1500, 3); len(evs) != 1 || evs[0] != VADStart {
		t.Fatalf("expected start after unpause, got %v", evs)
	}
}

func TestForceStop(t *testing.T) {
	d := testDetector()
	if d.ForceStop() {
		t.Fatal("force stop with no recording must report false")
	}
	feed(d, 1500, 5)
	if !d.ForceStop() {
		t.Fatal("force stop mid-recording must report true")
	}
	if d.Recording() {
		t.Fatal("should not be recording after force stop")
	}
}

func TestFrameRMS(t *testing.T) {
	if got := FrameRMS(nil); got != 0 {
		t.Fatalf("empty frame rms = %f", got)
	}
	// Constant amplitude 1000 -> RMS 1000.
	frame := make([]byte, 8)
	for i := 0; i < 4; i++ {
		binary.LittleEndian.PutUint16(frame[i*2:], uint16(int16(1000)))
	}
	if got := FrameRMS(frame); got < 999 || got > 1001 {
		t.Fatalf("rms = %f, want ~1000", got)
	}
}
