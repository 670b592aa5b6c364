package voicechat

import (
	"time"

	"github.com/gopxl/beep/v2"
)

// AudioPayload is one complete encoded audio clip (WAV or MP3).
type AudioPayload []byte

// Clone returns a copy that does not share the backing array.
func (p AudioPayload) Clone() AudioPayload {
	if p == nil {
		return nil
	}
	out := make(AudioPayload, len(p))
	copy(out, p)
	return out
}

// PlaybackState enum
type PlaybackState string

const (
	Stopped PlaybackState = "stopped"
	Playing PlaybackState = "playing"
)

// Source is a decoded, playable clip.
type Source interface {
	beep.Streamer
	Format() beep.Format
	Close() error
}

// Sink is the single audio output the player drives.
type Sink interface {
	Append(src Source)
	Pause()
	Play()
	Stop()
	SkipOne()
	Empty() bool
}

// Decoder turns an encoded payload into a playable source.
type Decoder interface {
	Decode(payload AudioPayload) (Source, error)
}

// EventType names an event published to the host.
type EventType string

const (
	EventAudioPlaybackCompleted EventType = "audio-playback-completed"
)

// Event is delivered to bus listeners.
type Event struct {
	Type      EventType
	Timestamp time.Time
	Data      any
}

// EventEmitter receives events raised by the playback monitor.
type EventEmitter interface {
	Emit(eventType EventType)
}

// Listener handles a published event.
type Listener func(*Event)

// ChatMessage is one entry of the completion history.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// BridgeCommand is sent by a UI over the control bridge.
type BridgeCommand struct {
	Command string `json:"command"`
	Text    string `json:"text,omitempty"`
}

// BridgeMessage is sent to a UI over the control bridge.
type BridgeMessage struct {
	Type    string `json:"type"`
	Command string `json:"command,omitempty"`
	OK      bool   `json:"ok,omitempty"`
	Reply   string `json:"reply,omitempty"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
	Event   string `json:"event,omitempty"`
}
