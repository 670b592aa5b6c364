package voicechat

import "time"

// Factory functions for common listeners

func CreateLoggingListener(logger *Logger, verbose bool) Listener {
	if logger == nil {
		logger = GetGlobalLogger()
	}
	logger = logger.WithComponent("Events")
	return func(event *Event) {
		if verbose {
			logger.Infof("Received %s - Data: %+v - Timestamp: %s", event.Type, event.Data, event.Timestamp.Format(time.RFC3339))
		} else {
			logger.Debugf("Received %s", event.Type)
		}
	}
}

// CreateCompletionListener calls callback for every completed playback.
func CreateCompletionListener(callback func()) Listener {
	return CreateEventTypeFilter(EventAudioPlaybackCompleted, func(*Event) {
		callback()
	})
}

// CreateCompletionSignal returns a listener and a channel that receives one
// value per completed playback. Signals are dropped while the channel is full.
func CreateCompletionSignal(buffer int) (Listener, <-chan struct{}) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan struct{}, buffer)
	return CreateCompletionListener(func() {
		select {
		case ch <- struct{}{}:
		default:
		}
	}), ch
}

func CreateEventTypeFilter(eventType EventType, listener Listener) Listener {
	return func(event *Event) {
		if event.Type == eventType {
			listener(event)
		}
	}
}

func ChainListeners(listeners ...Listener) Listener {
	return func(event *Event) {
		for _, l := range listeners {
			l(event)
		}
	}
}
