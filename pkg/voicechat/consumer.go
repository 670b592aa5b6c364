package voicechat

import (
	"context"
	"errors"
	"time"
)

const consumerLockRetry = 5 * time.Millisecond

// PlaybackConsumer drains the audio queue into the shared sink. Every new
// payload stops and replaces whatever the sink is playing.
type PlaybackConsumer struct {
	queue   *AudioQueue
	sink    *SharedSink
	decoder Decoder
	logger  *Logger
}

func NewPlaybackConsumer(queue *AudioQueue, sink *SharedSink, decoder Decoder, logger *Logger) *PlaybackConsumer {
	if logger == nil {
		logger = GetGlobalLogger()
	}
	return &PlaybackConsumer{
		queue:   queue,
		sink:    sink,
		decoder: decoder,
		logger:  logger.WithComponent("PlaybackConsumer"),
	}
}

// Run receives payloads until ctx is done. A payload that fails to decode is
// logged and dropped; the loop keeps going.
func (pc *PlaybackConsumer) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case payload := <-pc.queue.Receive():
			if err := pc.play(ctx, payload); err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return nil
				}
				var vErr *VoiceChatError
				if errors.As(err, &vErr) {
					pc.logger.LogError(vErr.AddDetail("payload_bytes", len(payload)))
				} else {
					pc.logger.WithError(err).Error("Dropping audio payload")
				}
			}
		}
	}
}

func (pc *PlaybackConsumer) play(ctx context.Context, payload AudioPayload) error {
	for {
		err := pc.sink.TryWith(func(sink Sink) error {
			sink.Stop()
			sink.SkipOne()

			src, err := pc.decoder.Decode(payload)
			if err != nil {
				return NewDecodeError(err)
			}
			sink.Append(src)
			return nil
		})
		// Busy or not yet installed: the payload is already off the queue, so wait for the sink.
		if errors.Is(err, ErrBusy) || errors.Is(err, ErrNoActiveAudio) {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(consumerLockRetry):
				continue
			}
		}
		if err == nil {
			pc.logger.LogPlaybackEvent("payload_loaded", map[string]interface{}{
				"bytes": len(payload),
			})
		}
		return err
	}
}
