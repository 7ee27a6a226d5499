package speech

import (
	"bytes"
	"testing"
)

func TestVoiceForExactCode(t *testing.T) {
	v := VoiceFor("te-IN")
	if v.Lang != "te-IN" {
		t.Fatalf("expected te-IN voice, got %+v", v)
	}
}

func TestVoiceForLanguageName(t *testing.T) {
	v := VoiceFor("Telugu")
	if v.Lang != "te-IN" {
		t.Fatalf("expected te-IN voice for Telugu, got %+v", v)
	}
}

func TestVoiceForPrefixFallback(t *testing.T) {
	// hi-XX is not in the table; should fall back to the bare hi entry
	v := VoiceFor("hi-XX")
	if v.Lang != "hi-IN" {
		t.Fatalf("expected prefix fallback to hi-IN, got %+v", v)
	}
}

func TestVoiceForDefault(t *testing.T) {
	v := VoiceFor("fr-FR")
	if v != defaultVoice {
		t.Fatalf("expected default voice, got %+v", v)
	}
	if VoiceFor("") != defaultVoice {
		t.Fatalf("expected default voice for empty language")
	}
}

func TestWAVRoundTrip(t *testing.T) {
	pcm := []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06}
	wav := EncodeWAVPCM16(pcm, 16000)

	got, rate, err := ReadWAVPCM16(bytes.NewReader(wav))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if rate != 16000 {
		t.Fatalf("expected rate 16000, got %d", rate)
	}
	if !bytes.Equal(got, pcm) {
		t.Fatalf("pcm mismatch: %v vs %v", got, pcm)
	}
}

func TestReadWAVRejectsGarbage(t *testing.T) {
	if _, _, err := ReadWAVPCM16(bytes.NewReader([]byte("nope"))); err == nil {
		t.Fatalf("expected error for non-WAV input")
	}
}

func TestReadWAVStereoDownmix(t *testing.T) {
	// Build a stereo WAV by hand: two frames, L=100/R=200 then L=-50/R=-150
	pcm := make([]byte, 8)
	put := func(i int, v int16) {
		pcm[i] = byte(uint16(v) & 0xFF)
		pcm[i+1] = byte(uint16(v) >> 8)
	}
	put(0, 100)
	put(2, 200)
	put(4, -50)
	put(6, -150)

	wav := EncodeWAVPCM16(pcm, 16000)
	// patch channel count to 2
	wav[22] = 2

	got, _, err := ReadWAVPCM16(bytes.NewReader(wav))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("expected 2 mono samples, got %d bytes", len(got))
	}
	s0 := int16(uint16(got[0]) | uint16(got[1])<<8)
	s1 := int16(uint16(got[2]) | uint16(got[3])<<8)
	if s0 != 150 || s1 != -100 {
		t.Fatalf("bad downmix: %d %d", s0, s1)
	}
}
