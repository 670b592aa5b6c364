package voicechat

import (
	"context"
	"errors"
	"sync"
)

// Completer produces the next assistant reply for a conversation.
type Completer interface {
	PushUserMessage(text string)
	Completion(ctx context.Context) (string, error)
}

// Synthesizer renders reply text as an encoded audio clip.
type Synthesizer interface {
	GenerateWAV(ctx context.Context, text string, speaker Speaker) (AudioPayload, error)
}

// Assistant turns typed text into a spoken reply: completion, synthesis,
// then submission to the player.
type Assistant struct {
	completer   Completer
	synthesizer Synthesizer
	player      *Player
	speaker     Speaker
	logger      *Logger

	// serializes SendMessage so history and audio stay in request order
	mu sync.Mutex
}

func NewAssistant(completer Completer, synthesizer Synthesizer, player *Player, speaker Speaker, logger *Logger) *Assistant {
	if logger == nil {
		logger = GetGlobalLogger()
	}
	return &Assistant{
		completer:   completer,
		synthesizer: synthesizer,
		player:      player,
		speaker:     speaker,
		logger:      logger.WithComponent("Assistant"),
	}
}

// NewAssistantFromConfig builds the OpenAI and VOICEVOX clients from config.
func NewAssistantFromConfig(config *Config, player *Player, logger *Logger) *Assistant {
	completion := NewChatCompletion(config.OpenAIAPIKey,
		WithBaseURL(config.OpenAIBaseURL),
		WithModel(config.OpenAIModel),
		WithSystemPrompt(config.SystemPrompt),
		WithMaxHistory(config.MaxHistory),
	)
	synth := NewVoicevoxSynthesizer(config.VoicevoxURL, nil)
	return NewAssistant(completion, synth, player, config.Speaker, logger)
}

// SendMessage returns the text reply. A synthesis or playback failure is
// logged and does not fail the call; the reply text is still returned.
func (a *Assistant) SendMessage(ctx context.Context, text string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.completer.PushUserMessage(text)

	reply, err := a.completer.Completion(ctx)
	if err != nil {
		var vErr *VoiceChatError
		if errors.As(err, &vErr) {
			a.logger.LogError(vErr)
		} else {
			a.logger.WithError(err).Error("Failed to get completion")
		}
		return "", WrapError(err, ErrCodeCompletionFailed, "Failed to get completion")
	}

	wav, err := a.synthesizer.GenerateWAV(ctx, reply, a.speaker)
	if err != nil {
		a.logger.WithError(err).Error("Failed to generate wav")
		return reply, nil
	}

	if err := a.player.Submit(ctx, wav); err != nil {
		a.logger.WithError(err).Error("Failed to send wav")
	}
	return reply, nil
}

func (a *Assistant) Player() *Player {
	return a.player
}
