package speech

import (
	"encoding/binary"
	"fmt"
	"io"
)

// EncodeWAVPCM16 wraps raw PCM16 mono samples in a minimal WAV container.
func EncodeWAVPCM16(pcm []byte, sampleRate int) []byte {
	out := make([]byte, 44+len(pcm))
	copy(out[0:4], "RIFF")
	binary.LittleEndian.PutUint32(out[4:8], uint32(36+len(pcm)))
	copy(out[8:12], "WAVE")
	copy(out[12:16], "fmt ")
	binary.LittleEndian.PutUint32(out[16:20], 16)
	binary.LittleEndian.PutUint16(out[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(out[22:24], 1) // mono
	binary.LittleEndian.PutUint32(out[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(out[28:32], uint32(sampleRate*2))
	binary.LittleEndian.PutUint16(out[32:34], 2)
	binary.LittleEndian.PutUint16(out[34:36], 16)
	copy(out[36:40], "data")
	binary.LittleEndian.PutUint32(out[40:44], uint32(len(pcm)))
	copy(out[44:], pcm)
	return out
}

// ReadWAVPCM16 is a small WAV parser that returns raw PCM16 bytes and the
// sample rate. Stereo input is averaged down to mono.
func ReadWAVPCM16(r io.Reader) ([]byte, int, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, 0, err
	}
	if len(b) < 44 || string(b[0:4]) != "RIFF" || string(b[8:12]) != "WAVE" {
		return nil, 0, fmt.Errorf("not a WAV")
	}
	off := 12
	var dataOff, dataLen int
	var fmtCh uint16
	var sampRate uint32
	for off+8 <= len(b) {
		cid := string(b[off : off+4])
		csz := int(binary.LittleEndian.Uint32(b[off+4 : off+8]))
		off += 8
		if cid == "fmt " {
			if off+csz > len(b) {
				return nil, 0, fmt.Errorf("bad fmt chunk")
			}
			fmtTag := binary.LittleEndian.Uint16(b[off : off+2])
			fmtCh = binary.LittleEndian.Uint16(b[off+2 : off+4])
			sampRate = binary.LittleEndian.Uint32(b[off+4 : off+8])
			bits := binary.LittleEndian.Uint16(b[off+14 : off+16])
			if fmtTag != 1 || bits != 16 {
				return nil, 0, fmt.Errorf("unsupported WAV format")
			}
			off += csz
		} else if cid == "data" {
			dataOff = off
			dataLen = csz
			break
		} else {
			off += csz
		}
	}
	if dataOff <= 0 || dataOff+dataLen > len(b) {
		return nil, 0, fmt.Errorf("no data chunk")
	}
	raw := b[dataOff : dataOff+dataLen]
	if fmtCh == 2 {
		out := make([]byte, dataLen/2)
		for i := 0; i+3 < len(raw); i += 4 {
			a := int16(binary.LittleEndian.Uint16(raw[i : i+2]))
			c := int16(binary.LittleEndian.Uint16(raw[i+2 : i+4]))
			avg := (int32(a) + int32(c)) / 2
			binary.LittleEndian.PutUint16(out[i/2:i/2+2], uint16(int16(avg)))
		}
		raw = out
	}
	return raw, int(sampRate), nil
}
