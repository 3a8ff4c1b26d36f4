package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

var ErrNotWAV = errors.New("not a RIFF/WAVE stream")

// ParseWAV decodes a 16-bit PCM WAV document. Streamed WAV output often
// carries placeholder chunk sizes, so a data chunk is read to the end of input
// when its declared size overruns it.
func ParseWAV(data []byte) (PCM, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return PCM{}, ErrNotWAV
	}

	var (
		clip      PCM
		haveFmt   bool
		bitsPerSm uint16
	)
	rest := data[12:]
	for len(rest) >= 8 {
		id := string(rest[0:4])
		size := int(binary.LittleEndian.Uint32(rest[4:8]))
		body := rest[8:]
		if size < 0 || size > len(body) {
			size = len(body)
		}

		switch id {
		case "fmt ":
			if size < 16 {
				return PCM{}, fmt.Errorf("fmt chunk too short: %d bytes", size)
			}
			format := binary.LittleEndian.Uint16(body[0:2])
			if format != 1 && format != 0xFFFE {
				return PCM{}, fmt.Errorf("unsupported wav format %d", format)
			}
			clip.Channels = int(binary.LittleEndian.Uint16(body[2:4]))
			clip.SampleRate = int(binary.LittleEndian.Uint32(body[4:8]))
			bitsPerSm = binary.LittleEndian.Uint16(body[14:16])
			haveFmt = true
		case "data":
			if !haveFmt {
				return PCM{}, errors.New("data chunk before fmt chunk")
			}
			if bitsPerSm != 16 {
				return PCM{}, fmt.Errorf("unsupported bits per sample %d", bitsPerSm)
			}
			clip.Samples = make([]int16, size/2)
			for i := range clip.Samples {
				clip.Samples[i] = int16(binary.LittleEndian.Uint16(body[2*i:]))
			}
			return clip, nil
		}

		// chunks are padded to even sizes
		advance := 8 + size + size%2
		if advance > len(rest) {
			break
		}
		rest = rest[advance:]
	}
	if !haveFmt {
		return PCM{}, errors.New("missing fmt chunk")
	}
	return PCM{}, errors.New("missing data chunk")
}

// EncodeWAV writes clip as a canonical 16-bit PCM WAV document.
func EncodeWAV(clip PCM) []byte {
	dataLen := len(clip.Samples) * 2
	var buf bytes.Buffer
	buf.Grow(44 + dataLen)

	le := binary.LittleEndian
	buf.WriteString("RIFF")
	_ = binary.Write(&buf, le, uint32(36+dataLen))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	_ = binary.Write(&buf, le, uint32(16))
	_ = binary.Write(&buf, le, uint16(1))
	_ = binary.Write(&buf, le, uint16(clip.Channels))
	_ = binary.Write(&buf, le, uint32(clip.SampleRate))
	_ = binary.Write(&buf, le, uint32(clip.SampleRate*clip.Channels*2))
	_ = binary.Write(&buf, le, uint16(clip.Channels*2))
	_ = binary.Write(&buf, le, uint16(16))
	buf.WriteString("data")
	_ = binary.Write(&buf, le, uint32(dataLen))
	_ = binary.Write(&buf, le, clip.Samples)
	return buf.Bytes()
}

// PCMFromBytes reinterprets s16le bytes as mono samples at rate.
func PCMFromBytes(raw []byte, rate int) PCM {
	samples := make([]int16, len(raw)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(raw[2*i:]))
	}
	return PCM{SampleRate: rate, Channels: 1, Samples: samples}
}
