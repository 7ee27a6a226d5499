// Package client is the terminal voice client: microphone capture with an
// energy VAD, a duplex websocket to the session server, and ordered speaker
// playback of synthesized replies.
package client

import (
	"context"
	"fmt"
	"log"
	"sync"

	ws "nhooyr.io/websocket"

	"github.com/deepak6009/khetsaathi-sub000/internal/protocol"
)

// Options configures one client run.
type Options struct {
	URL       string // full ws endpoint including session_id and token
	Phone     string
	Language  string
	ImageURLs []string
	VAD       VADConfig
}

// Run connects, starts the session, and pumps audio both ways until the
// context is canceled or the server closes the connection.
func Run(ctx context.Context, opts Options) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	c, _, err := ws.Dial(ctx, opts.URL, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", opts.URL, err)
	}
	defer c.Close(ws.StatusNormalClosure, "done")
	c.SetReadLimit(8 << 20)

	var writeMu sync.Mutex
	sendJSON := func(msg protocol.Message) error {
		data, err := protocol.Encode(msg)
		if err != nil {
			return err
		}
		writeMu.Lock()
		defer writeMu.Unlock()
		return c.Write(ctx, ws.MessageText, data)
	}

	speaker := NewSpeaker()
	defer speaker.Close()

	var capture *Capture
	queue := NewPlaybackQueue(speaker, func() {
		// Assistant finished speaking; open the mic again.
		capture.SetPaused(false)
		fmt.Println("… listening")
	})
	defer queue.Close()

	capture = NewCapture(opts.VAD, func(pcm []byte) {
		writeMu.Lock()
		defer writeMu.Unlock()
		if err := c.Write(ctx, ws.MessageBinary, pcm); err != nil {
			log.Printf("[client] send utterance: %v", err)
			cancel()
		}
	})

	if err := sendJSON(&protocol.Start{
		Phone:     opts.Phone,
		Language:  opts.Language,
		ImageURLs: opts.ImageURLs,
	}); err != nil {
		return fmt.Errorf("send start: %w", err)
	}
	if err := capture.Start(ctx); err != nil {
		return err
	}
	defer capture.Stop()

	for {
		typ, data, err := c.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}
		switch typ {
		case ws.MessageBinary:
			// Hold the mic shut before audio starts so the speaker
			// never triggers the VAD.
			capture.SetPaused(true)
			queue.Enqueue(data)
		case ws.MessageText:
			msg, err := protocol.Decode(data)
			if err != nil {
				log.Printf("[client] bad message: %v", err)
				continue
			}
			if err := handleControl(msg, sendJSON, opts.Language); err != nil {
				return err
			}
		}
	}
}

func handleControl(msg protocol.Message, sendJSON func(protocol.Message) error, language string) error {
	switch m := msg.(type) {
	case *protocol.Started:
		fmt.Println("session started")
	case *protocol.Transcript:
		fmt.Printf("%s: %s\n", m.Role, m.Text)
	case *protocol.Status:
		fmt.Printf("[%s]\n", m.Status)
	case *protocol.StatusInfo:
		fmt.Printf("[%s]\n", m.Info)
	case *protocol.DiagnosisReady:
		fmt.Println("== diagnosis ready ==")
	case *protocol.WantsPlan:
		// The farmer asked for a plan in speech; confirm the language
		// over the control channel.
		return sendJSON(&protocol.PlanLanguage{Language: language})
	case *protocol.PlanReady:
		fmt.Printf("== plan ready (%s): %s ==\n", m.Language, m.PdfURL)
	case *protocol.Error:
		fmt.Printf("!! %s\n", m.Message)
	default:
		log.Printf("[client] unexpected message %s", protocol.TypeOf(msg))
	}
	return nil
}
