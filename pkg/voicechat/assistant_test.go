package voicechat

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCompleter struct {
	mu     sync.Mutex
	pushed []string
	reply  string
	err    error
}

func (c *fakeCompleter) PushUserMessage(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pushed = append(c.pushed, text)
}

func (c *fakeCompleter) Completion(ctx context.Context) (string, error) {
	if c.err != nil {
		return "", c.err
	}
	return c.reply, nil
}

type fakeSynthesizer struct {
	mu      sync.Mutex
	texts   []string
	speaker Speaker
	wav     AudioPayload
	err     error
}

func (s *fakeSynthesizer) GenerateWAV(ctx context.Context, text string, speaker Speaker) (AudioPayload, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.texts = append(s.texts, text)
	s.speaker = speaker
	if s.err != nil {
		return nil, s.err
	}
	return s.wav, nil
}

func newTestPlayer() *Player {
	return NewPlayer(PlayerConfig{
		Decoder:      &fakeDecoder{},
		PollInterval: testPollInterval,
		Logger:       NewNopLogger(),
	})
}

func TestAssistant_SendMessage(t *testing.T) {
	completer := &fakeCompleter{reply: "ずんだもんなのだ"}
	synth := &fakeSynthesizer{wav: AudioPayload("wav-bytes")}
	player := newTestPlayer()
	assistant := NewAssistant(completer, synth, player, SpeakerZundamon, NewNopLogger())

	reply, err := assistant.SendMessage(context.Background(), "こんにちは")
	require.NoError(t, err)
	assert.Equal(t, "ずんだもんなのだ", reply)

	assert.Equal(t, []string{"こんにちは"}, completer.pushed)
	assert.Equal(t, []string{"ずんだもんなのだ"}, synth.texts)
	assert.Equal(t, SpeakerZundamon, synth.speaker)

	assert.Equal(t, AudioPayload("wav-bytes"), <-player.queue.Receive())
	last, ok, err := player.LastAudio()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, AudioPayload("wav-bytes"), last)
	assert.Same(t, player, assistant.Player())
}

func TestAssistant_CompletionFailure(t *testing.T) {
	completer := &fakeCompleter{err: NewVoiceChatError("HTTP 401: bad key", ErrCodeCompletionFailed)}
	synth := &fakeSynthesizer{wav: AudioPayload("wav-bytes")}
	player := newTestPlayer()
	assistant := NewAssistant(completer, synth, player, SpeakerZundamon, NewNopLogger())

	reply, err := assistant.SendMessage(context.Background(), "hi")
	require.Error(t, err)
	assert.Empty(t, reply)
	assert.Equal(t, ErrCodeCompletionFailed, ErrorCode(err))
	assert.Contains(t, err.Error(), "Failed to get completion")

	assert.Empty(t, synth.texts)
	assert.Equal(t, 0, player.queue.Len())
}

func TestAssistant_SynthesisFailureStillReplies(t *testing.T) {
	completer := &fakeCompleter{reply: "text only"}
	synth := &fakeSynthesizer{err: errors.New("engine offline")}
	player := newTestPlayer()
	assistant := NewAssistant(completer, synth, player, SpeakerZundamon, NewNopLogger())

	reply, err := assistant.SendMessage(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "text only", reply)

	_, ok, err := player.LastAudio()
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 0, player.queue.Len())
}

func TestNewAssistantFromConfig(t *testing.T) {
	config := &Config{
		OpenAIAPIKey:  "sk-test",
		OpenAIBaseURL: "http://localhost:9999/v1",
		OpenAIModel:   "local-model",
		MaxHistory:    4,
		VoicevoxURL:   "http://localhost:50021",
		Speaker:       SpeakerKasukabeTsumugi,
	}
	assistant := NewAssistantFromConfig(config, newTestPlayer(), NewNopLogger())

	completion, ok := assistant.completer.(*ChatCompletion)
	require.True(t, ok)
	assert.Equal(t, "local-model", completion.model)
	assert.Equal(t, 4, completion.maxHistory)

	synth, ok := assistant.synthesizer.(*VoicevoxSynthesizer)
	require.True(t, ok)
	assert.Equal(t, "http://localhost:50021", synth.baseURL)
	assert.Equal(t, SpeakerKasukabeTsumugi, assistant.speaker)
}
