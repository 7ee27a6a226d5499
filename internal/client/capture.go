package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"os/exec"
	"runtime"
	"strconv"
	"sync"
)

const (
	captureSampleRate = 16000
	// 20 ms of 16 kHz mono s16le.
	captureFrameBytes = captureSampleRate / 50 * 2
)

// Capture runs a microphone process (ffmpeg) producing raw PCM, slices the
// stream into 20 ms frames, and drives the energy detector. Completed
// utterances are delivered to the callback as raw 16 kHz mono PCM.
type Capture struct {
	det     *Detector
	onUtter func(pcm []byte)

	mu     sync.Mutex
	buf    bytes.Buffer
	cmd    *exec.Cmd
	cancel context.CancelFunc

	stopOnce sync.Once
	done     chan struct{}
}

func NewCapture(cfg VADConfig, onUtter func(pcm []byte)) *Capture {
	return &Capture{
		det:     NewDetector(cfg),
		onUtter: onUtter,
		done:    make(chan struct{}),
	}
}

// Start spawns the capture process and begins the frame loop. It returns
// once the process is running; the loop exits when the process ends or
// Stop is called.
func (c *Capture) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)

	cmd := exec.CommandContext(ctx, "ffmpeg", captureArgs()...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return fmt.Errorf("capture stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return fmt.Errorf("start capture: %w", err)
	}
	log.Printf("[capture] ffmpeg started pid=%d rate=%d", cmd.Process.Pid, captureSampleRate)

	c.mu.Lock()
	c.cmd = cmd
	c.cancel = cancel
	c.mu.Unlock()

	go func() {
		defer close(c.done)
		c.frameLoop(stdout)
		_ = cmd.Wait()
	}()
	return nil
}

func (c *Capture) frameLoop(r io.Reader) {
	frame := make([]byte, captureFrameBytes)
	for {
		if _, err := io.ReadFull(r, frame); err != nil {
			if flushed := c.flush(); flushed {
				log.Printf("[capture] stream ended mid-utterance, flushed")
			}
			if err != io.EOF && err != io.ErrUnexpectedEOF {
				log.Printf("[capture] read: %v", err)
			}
			return
		}
		c.handleFrame(frame)
	}
}

func (c *Capture) handleFrame(frame []byte) {
	c.mu.Lock()
	ev := c.det.ProcessFrame(FrameRMS(frame))
	if c.det.Recording() || ev == VADStop {
		c.buf.Write(frame)
	}
	var utter []byte
	if ev == VADStop {
		utter = append([]byte(nil), c.buf.Bytes()...)
		c.buf.Reset()
	}
	c.mu.Unlock()

	if ev == VADStart {
		log.Printf("[capture] utterance started")
	}
	if utter != nil {
		log.Printf("[capture] utterance complete bytes=%d", len(utter))
		c.onUtter(utter)
	}
}

// flush finalizes any in-progress recording, delivering it if long enough
// to matter. Returns whether a recording was in progress.
func (c *Capture) flush() bool {
	c.mu.Lock()
	wasRecording := c.det.ForceStop()
	utter := append([]byte(nil), c.buf.Bytes()...)
	c.buf.Reset()
	c.mu.Unlock()

	if wasRecording && len(utter) >= captureFrameBytes*10 {
		c.onUtter(utter)
	}
	return wasRecording
}

// SetPaused gates the detector while assistant audio plays. Pausing also
// discards any partial recording.
func (c *Capture) SetPaused(paused bool) {
	c.mu.Lock()
	c.det.SetPaused(paused)
	if paused {
		c.buf.Reset()
	}
	c.mu.Unlock()
}

// Stop tears the capture down. Safe to call more than once and from any
// goroutine.
func (c *Capture) Stop() {
	c.stopOnce.Do(func() {
		c.mu.Lock()
		cancel := c.cancel
		c.mu.Unlock()
		if cancel != nil {
			cancel()
			<-c.done
		}
		log.Printf("[capture] stopped")
	})
}

func captureArgs() []string {
	common := []string{
		"-loglevel", "quiet",
		"-ac", "1",
		"-ar", strconv.Itoa(captureSampleRate),
		"-f", "s16le",
		"-",
	}
	switch runtime.GOOS {
	case "darwin":
		return append([]string{"-f", "avfoundation", "-i", ":0"}, common...)
	default:
		return append([]string{"-f", "pulse", "-i", "default"}, common...)
	}
}
