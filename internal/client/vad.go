package client

import (
	"encoding/binary"
	"math"
	"time"
)

// Energy VAD over fixed-size PCM frames. The capture loop feeds one frame per
// tick; the detector decides when an utterance starts and when it has ended.

type VADConfig struct {
	FrameDuration   time.Duration // one polled frame, default 20ms
	StartRMS        float64       // loudness threshold to count a frame as speech
	MinStartFrames  int           // consecutive speech frames before recording starts
	SilenceDuration time.Duration // below-threshold run that ends an utterance
	MinUtterance    time.Duration // recordings shorter than this are never force-stopped
}

func (c *VADConfig) fillDefaults() {
	if c.FrameDuration <= 0 {
		c.FrameDuration = 20 * time.Millisecond
	}
	if c.StartRMS <= 0 {
		c.StartRMS = 1200.0
	}
	if c.MinStartFrames <= 0 {
		c.MinStartFrames = 2
	}
	if c.SilenceDuration <= 0 {
		c.SilenceDuration = 1500 * time.Millisecond
	}
	if c.MinUtterance <= 0 {
		c.MinUtterance = 500 * time.Millisecond
	}
}

type VADEvent int

const (
	VADNone VADEvent = iota
	VADStart
	VADStop
)

type Detector struct {
	cfg VADConfig

	recording    bool
	paused       bool
	consecSpeech int
	silenceRun   int
	recFrames    int

	silenceFrames int
	minFrames     int
}

func NewDetector(cfg VADConfig) *Detector {
	cfg.fillDefaults()
	return &Detector{
		cfg:           cfg,
		silenceFrames: int(cfg.SilenceDuration / cfg.FrameDuration),
		minFrames:     int(cfg.MinUtterance / cfg.FrameDuration),
	}
}

// ProcessFrame consumes one frame's loudness and reports a boundary event.
// While paused (assistant audio playing) all input is ignored.
func (d *Detector) ProcessFrame(rms float64) VADEvent {
	if d.paused {
		return VADNone
	}

	if !d.recording {
		if rms >= d.cfg.StartRMS {
			d.consecSpeech++
			if d.consecSpeech >= d.cfg.MinStartFrames {
				d.recording = true
				d.silenceRun = 0
				d.recFrames = d.consecSpeech
				return VADStart
			}
		} else {
			d.consecSpeech = 0
		}
		return VADNone
	}

	d.recFrames++
	if rms < d.cfg.StartRMS {
		d.silenceRun++
		// Stop only once the silence run is long enough AND the recording
		// has reached the minimum utterance length.
		if d.silenceRun >= d.silenceFrames && d.recFrames >= d.minFrames {
			d.reset()
			return VADStop
		}
	} else {
		// A loudness spike cancels a pending stop.
		d.silenceRun = 0
	}
	return VADNone
}

// ForceStop ends an in-progress recording immediately (mute button). Reports
// whether a recording was actually in progress.
func (d *Detector) ForceStop() bool {
	if !d.recording {
		d.reset()
		return false
	}
	d.reset()
	return true
}

// SetPaused gates the detector while assistant audio plays, so the assistant's
// own voice never triggers a recording. Unpausing starts from a clean slate.
func (d *Detector) SetPaused(p bool) {
	d.paused = p
	d.reset()
}

func (d *Detector) Recording() bool { return d.recording }

func (d *Detector) reset() {
	d.recording = false
	d.consecSpeech = 0
	d.silenceRun = 0
	d.recFrames = 0
}

// FrameRMS computes the root-mean-square loudness of a PCM16LE frame.
func FrameRMS(pcm []byte) float64 {
	n := len(pcm) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i+1 < len(pcm); i += 2 {
		s := float64(int16(binary.LittleEndian.Uint16(pcm[i : i+2])))
		sum += s * s
	}
	return math.Sqrt(sum / float64(n))
}
