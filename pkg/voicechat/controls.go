package voicechat

import "sync"

// Controller exposes the transport controls. None of its methods wait for a
// lock: contention is returned as ErrBusy so callers can retry.
type Controller struct {
	mu      sync.Mutex
	sink    *SharedSink
	cache   *LastAudioCache
	queue   *AudioQueue
	monitor *PlaybackMonitor
	logger  *Logger
}

func NewController(sink *SharedSink, cache *LastAudioCache, queue *AudioQueue, monitor *PlaybackMonitor, logger *Logger) *Controller {
	if logger == nil {
		logger = GetGlobalLogger()
	}
	return &Controller{
		sink:    sink,
		cache:   cache,
		queue:   queue,
		monitor: monitor,
		logger:  logger.WithComponent("Controller"),
	}
}

func (c *Controller) Pause() error {
	return c.sink.TryWith(func(sink Sink) error {
		sink.Pause()
		return nil
	})
}

func (c *Controller) Resume() error {
	return c.sink.TryWith(func(sink Sink) error {
		sink.Play()
		return nil
	})
}

// Stop silences the sink. The sink itself stays installed for the next payload.
func (c *Controller) Stop() error {
	return c.sink.TryWith(func(sink Sink) error {
		sink.Stop()
		return nil
	})
}

// Replay resubmits the cached payload without waiting for the queue.
// With nothing cached it succeeds without doing anything.
func (c *Controller) Replay() error {
	if !c.mu.TryLock() {
		return ErrBusy
	}
	defer c.mu.Unlock()

	return c.cache.TryWith(func(payload AudioPayload) error {
		if err := c.queue.TryEnqueue(payload); err != nil {
			c.logger.WithError(err).Warn("Replay request dropped")
			return err
		}
		if c.monitor != nil {
			c.monitor.TryNotifyPlaying()
		}
		c.logger.LogPlaybackEvent("replay_queued", map[string]interface{}{"bytes": len(payload)})
		return nil
	})
}

// dispatch records payload for replay and hands it to the consumer. It holds
// the controller lock, so a concurrent Replay reports ErrBusy instead of
// racing the producer for the queue slot.
func (c *Controller) dispatch(enqueue func(AudioPayload) error, notify func() error, payload AudioPayload) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dispatchLocked(enqueue, notify, payload)
}

// tryDispatch is dispatch without waiting for the lock. Whoever holds it is
// another producer competing for the slot, so contention is ErrQueueFull.
func (c *Controller) tryDispatch(enqueue func(AudioPayload) error, notify func() error, payload AudioPayload) error {
	if !c.mu.TryLock() {
		return ErrQueueFull
	}
	defer c.mu.Unlock()
	return c.dispatchLocked(enqueue, notify, payload)
}

func (c *Controller) dispatchLocked(enqueue func(AudioPayload) error, notify func() error, payload AudioPayload) error {
	if err := c.cache.Store(payload); err != nil {
		c.logger.WithError(err).Warn("Last audio not cached")
	}
	if err := enqueue(payload); err != nil {
		return err
	}
	if err := notify(); err != nil {
		c.logger.WithError(err).Warn("Failed to signal playback start")
	}
	return nil
}
