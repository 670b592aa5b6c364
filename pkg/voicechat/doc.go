// Package voicechat is a desktop voice assistant runtime: typed text goes to
// a chat completion service, the reply is synthesized by a VOICEVOX engine,
// and the audio is played on the one output device.
//
// # Playback
//
// The Player owns the playback pipeline:
//   - AudioQueue: a single-slot channel between producers and the consumer
//   - PlaybackConsumer: decodes each payload and replaces whatever the sink is playing
//   - PlaybackMonitor: tracks Playing/Stopped and emits audio-playback-completed
//     when a poll finds the sink drained
//   - LastAudioCache: the most recent payload, for Replay
//   - Controller: Pause, Resume, Stop and Replay
//
// Locks on the sink and the cache are taken without waiting; contention is
// reported as ErrBusy and the caller may retry.
//
//	bus := voicechat.NewEventBus()
//	player := voicechat.NewPlayer(voicechat.PlayerConfig{Emitter: bus})
//
//	device, err := voicechat.OpenOutputDevice(voicechat.NewAudioConfig(), nil)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer device.Close()
//
//	go player.Run(ctx, device)
//	bus.Subscribe(voicechat.EventAudioPlaybackCompleted, func(*voicechat.Event) {
//		fmt.Println("done")
//	})
//	_ = player.Submit(ctx, wavBytes)
//
// # Control bridge
//
// ControlBridge serves the transport controls and the event stream over a
// JWT-authenticated websocket for desktop front ends.
//
// # Dependencies
//
//   - github.com/gordonklaus/portaudio: audio output
//   - github.com/gopxl/beep/v2: WAV/MP3 decoding and resampling
//   - github.com/gorilla/websocket: control bridge
//   - github.com/golang-jwt/jwt/v4: bridge tokens
//   - github.com/rs/zerolog: structured logging
//   - github.com/joho/godotenv: .env loading
package voicechat
