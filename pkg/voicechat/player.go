package voicechat

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

// PlayerConfig wires a Player.
type PlayerConfig struct {
	Decoder      Decoder
	Emitter      EventEmitter
	PollInterval time.Duration
	Logger       *Logger
}

// Player ties the queue, the shared sink, the consumer, the monitor, the
// last-audio cache and the transport controls together.
type Player struct {
	queue    *AudioQueue
	sink     *SharedSink
	cache    *LastAudioCache
	consumer *PlaybackConsumer
	monitor  *PlaybackMonitor
	controls *Controller
	logger   *Logger
}

func NewPlayer(config PlayerConfig) *Player {
	logger := config.Logger
	if logger == nil {
		logger = GetGlobalLogger()
	}
	decoder := config.Decoder
	if decoder == nil {
		decoder = NewFormatDecoder()
	}

	queue := NewAudioQueue()
	sink := NewSharedSink()
	cache := NewLastAudioCache()
	monitor := NewPlaybackMonitor(sink, config.Emitter, config.PollInterval, logger)

	return &Player{
		queue:    queue,
		sink:     sink,
		cache:    cache,
		consumer: NewPlaybackConsumer(queue, sink, decoder, logger),
		monitor:  monitor,
		controls: NewController(sink, cache, queue, monitor, logger),
		logger:   logger.WithComponent("Player"),
	}
}

// Run installs the output sink and runs the consumer and the monitor until ctx is done.
func (p *Player) Run(ctx context.Context, output Sink) error {
	p.sink.Install(output)
	p.logger.Info("Audio output ready")

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return p.consumer.Run(ctx) })
	g.Go(func() error { return p.monitor.Run(ctx) })
	return g.Wait()
}

// Submit caches payload, waits for the queue slot and signals the monitor.
func (p *Player) Submit(ctx context.Context, payload AudioPayload) error {
	return p.controls.dispatch(
		func(ap AudioPayload) error { return p.queue.Enqueue(ctx, ap) },
		func() error {
			err := p.monitor.NotifyPlaying(ctx)
			if err != nil {
				// The payload is queued regardless; it still needs its Playing message.
				p.monitor.TryNotifyPlaying()
			}
			return err
		},
		payload,
	)
}

// TrySubmit is Submit without waiting: an occupied slot, or another producer
// still waiting for it, yields ErrQueueFull.
func (p *Player) TrySubmit(payload AudioPayload) error {
	return p.controls.tryDispatch(
		p.queue.TryEnqueue,
		func() error {
			p.monitor.TryNotifyPlaying()
			return nil
		},
		payload,
	)
}

func (p *Player) Pause() error  { return p.controls.Pause() }
func (p *Player) Resume() error { return p.controls.Resume() }
func (p *Player) Stop() error   { return p.controls.Stop() }
func (p *Player) Replay() error { return p.controls.Replay() }

// State is the monitor's Playing/Stopped bookkeeping.
func (p *Player) State() PlaybackState {
	return p.monitor.State()
}

// LastAudio returns the cached payload, if any.
func (p *Player) LastAudio() (AudioPayload, bool, error) {
	return p.cache.Load()
}
