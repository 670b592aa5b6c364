package voicechat

import (
	"bytes"
	"fmt"
	"io"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/wav"
)

// Container formats recognised by FormatDecoder.
const (
	FormatWAV     = "wav"
	FormatMP3     = "mp3"
	FormatUnknown = "unknown"
)

// FormatDecoder decodes WAV and MP3 payloads, picking the codec from the header bytes.
type FormatDecoder struct{}

func NewFormatDecoder() *FormatDecoder {
	return &FormatDecoder{}
}

// DetectFormat sniffs the container of payload.
func DetectFormat(payload AudioPayload) string {
	switch {
	case len(payload) >= 12 && bytes.Equal(payload[0:4], []byte("RIFF")) && bytes.Equal(payload[8:12], []byte("WAVE")):
		return FormatWAV
	case len(payload) >= 3 && bytes.Equal(payload[0:3], []byte("ID3")):
		return FormatMP3
	case len(payload) >= 2 && payload[0] == 0xFF && payload[1]&0xE0 == 0xE0:
		return FormatMP3
	default:
		return FormatUnknown
	}
}

func (d *FormatDecoder) Decode(payload AudioPayload) (Source, error) {
	var (
		stream beep.StreamSeekCloser
		format beep.Format
		err    error
	)

	switch DetectFormat(payload) {
	case FormatWAV:
		stream, format, err = wav.Decode(bytes.NewReader(payload))
	case FormatMP3:
		stream, format, err = mp3.Decode(io.NopCloser(bytes.NewReader(payload)))
	default:
		return nil, NewDecodeError(fmt.Errorf("unrecognised audio container (%d bytes)", len(payload)))
	}
	if err != nil {
		return nil, NewDecodeError(err)
	}

	return &decodedSource{StreamSeekCloser: stream, format: format}, nil
}

type decodedSource struct {
	beep.StreamSeekCloser
	format beep.Format
}

func (s *decodedSource) Format() beep.Format {
	return s.format
}
