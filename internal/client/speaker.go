package client

import (
	"bytes"
	"fmt"
	"io"
	"log"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"github.com/deepak6009/khetsaathi-sub000/internal/speech"
)

// Speaker plays WAV segments through a persistent ffplay process fed raw
// PCM on stdin. The process is started lazily at the first segment's sample
// rate and restarted if a later segment uses a different rate.
type Speaker struct {
	mu     sync.Mutex
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	rate   int
	closed bool
}

func NewSpeaker() *Speaker {
	return &Speaker{}
}

// Play decodes one WAV segment and streams its PCM to ffplay, returning
// only once the segment's duration has elapsed so the playback queue's
// ordering matches what the listener hears.
func (s *Speaker) Play(segment []byte) error {
	pcm, rate, err := speech.ReadWAVPCM16(bytes.NewReader(segment))
	if err != nil {
		return fmt.Errorf("decode segment: %w", err)
	}
	if len(pcm) == 0 {
		return nil
	}

	if err := s.write(pcm, rate); err != nil {
		return err
	}
	// The pipe accepts bytes faster than they play. Hold here for the
	// segment duration so callers see playback, not buffering.
	time.Sleep(time.Duration(len(pcm)/2) * time.Second / time.Duration(rate))
	return nil
}

func (s *Speaker) write(pcm []byte, rate int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("speaker closed")
	}
	if err := s.ensureRunning(rate); err != nil {
		return err
	}
	if _, err := s.stdin.Write(pcm); err != nil {
		// ffplay died mid-write; drop the process so the next segment
		// respawns it.
		s.teardownLocked()
		return fmt.Errorf("write pcm: %w", err)
	}
	return nil
}

func (s *Speaker) ensureRunning(rate int) error {
	if s.cmd != nil && s.rate == rate {
		return nil
	}
	s.teardownLocked()

	cmd := exec.Command("ffplay",
		"-f", "s16le",
		"-ch_layout", "mono",
		"-ar", strconv.Itoa(rate),
		"-nodisp",
		"-autoexit",
		"-loglevel", "quiet",
		"-i", "-",
	)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("ffplay stdin: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start ffplay: %w", err)
	}
	log.Printf("[speaker] ffplay started rate=%d pid=%d", rate, cmd.Process.Pid)
	s.cmd = cmd
	s.stdin = stdin
	s.rate = rate
	go func() { _ = cmd.Wait() }()
	return nil
}

func (s *Speaker) teardownLocked() {
	if s.stdin != nil {
		_ = s.stdin.Close()
		s.stdin = nil
	}
	if s.cmd != nil && s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
	}
	s.cmd = nil
	s.rate = 0
}

// Close stops the player. Idempotent.
func (s *Speaker) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.teardownLocked()
}
