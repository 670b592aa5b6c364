package voicechat

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	bridgeWriteTimeout = 10 * time.Second
	bridgeReadLimit    = 64 * 1024
)

// Bridge commands
const (
	CommandSend   = "send"
	CommandPause  = "pause"
	CommandResume = "resume"
	CommandStop   = "stop"
	CommandReplay = "replay"
	CommandStatus = "status"
	CommandExit   = "exit"
)

// BridgeConfig wires a ControlBridge.
type BridgeConfig struct {
	Assistant *Assistant
	Player    *Player
	Bus       *EventBus
	Secret    string
	// OnExit is called when a client sends the exit command.
	OnExit func()
	Logger *Logger
}

// ControlBridge lets a desktop UI drive the assistant over a websocket:
// commands come in as JSON, results and bus events go out as JSON.
type ControlBridge struct {
	config   BridgeConfig
	upgrader websocket.Upgrader
	logger   *Logger

	mu    sync.Mutex
	conns map[*bridgeConn]struct{}
}

type bridgeConn struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (bc *bridgeConn) send(msg BridgeMessage) error {
	bc.writeMu.Lock()
	defer bc.writeMu.Unlock()
	_ = bc.conn.SetWriteDeadline(time.Now().Add(bridgeWriteTimeout))
	return bc.conn.WriteJSON(msg)
}

func NewControlBridge(config BridgeConfig) *ControlBridge {
	logger := config.Logger
	if logger == nil {
		logger = GetGlobalLogger()
	}
	if config.Player == nil && config.Assistant != nil {
		config.Player = config.Assistant.Player()
	}
	return &ControlBridge{
		config: config,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
		logger: logger.WithComponent("ControlBridge"),
		conns:  make(map[*bridgeConn]struct{}),
	}
}

// Handler serves the websocket at /ws and a health probe at /healthz.
func (b *ControlBridge) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/ws", b)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

// Serve listens on addr until ctx is done.
func (b *ControlBridge) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           b.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		b.logger.WithField("addr", addr).Info("Control bridge listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		b.closeAll()
		return srv.Shutdown(shutdownCtx)
	}
}

func bearerToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return r.URL.Query().Get("token")
}

func (b *ControlBridge) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	subject, err := ValidateBridgeToken(b.config.Secret, bearerToken(r))
	if err != nil {
		b.logger.WithError(err).Warn("Rejected bridge connection")
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.logger.WithError(err).Warn("Websocket upgrade failed")
		return
	}
	conn.SetReadLimit(bridgeReadLimit)

	bc := &bridgeConn{conn: conn}
	b.track(bc, true)
	defer func() {
		b.track(bc, false)
		conn.Close()
	}()

	logger := b.logger.WithField("subject", subject)
	logger.Info("Bridge client connected")

	if b.config.Bus != nil {
		unsubscribe := b.config.Bus.SubscribeAll(func(event *Event) {
			if err := bc.send(BridgeMessage{Type: "event", Event: string(event.Type)}); err != nil {
				logger.WithError(err).Debug("Failed to forward event")
			}
		})
		defer unsubscribe()
	}

	ctx := r.Context()
	for {
		var cmd BridgeCommand
		if err := conn.ReadJSON(&cmd); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.WithError(err).Debug("Bridge read ended")
			}
			logger.Info("Bridge client disconnected")
			return
		}

		// send blocks on completion and synthesis; keep the read loop free for transport controls
		if cmd.Command == CommandSend {
			go func(cmd BridgeCommand) {
				if err := bc.send(b.handle(ctx, cmd)); err != nil {
					logger.WithError(err).Debug("Failed to write result")
				}
			}(cmd)
			continue
		}
		if err := bc.send(b.handle(ctx, cmd)); err != nil {
			logger.WithError(err).Debug("Failed to write result")
			return
		}
	}
}

func (b *ControlBridge) handle(ctx context.Context, cmd BridgeCommand) BridgeMessage {
	result := BridgeMessage{Type: "result", Command: cmd.Command}

	var err error
	switch cmd.Command {
	case CommandSend:
		if b.config.Assistant == nil {
			err = NewVoiceChatError("assistant is not configured", ErrCodeUnknownCommand)
			break
		}
		result.Reply, err = b.config.Assistant.SendMessage(ctx, cmd.Text)
	case CommandPause, CommandResume, CommandStop, CommandReplay:
		err = b.transport(cmd.Command)
	case CommandStatus:
		result.Reply = string(Stopped)
		if b.config.Player != nil {
			result.Reply = string(b.config.Player.State())
		}
	case CommandExit:
		if b.config.OnExit != nil {
			b.config.OnExit()
		}
	default:
		err = NewVoiceChatError("unknown command: "+cmd.Command, ErrCodeUnknownCommand)
	}

	if err != nil {
		result.Error = err.Error()
		result.Code = ErrorCode(err)
		return result
	}
	result.OK = true
	return result
}

// transport runs a playback control. Without a player there is nothing to control.
func (b *ControlBridge) transport(command string) error {
	player := b.config.Player
	if player == nil {
		return ErrNoActiveAudio
	}
	switch command {
	case CommandPause:
		return player.Pause()
	case CommandResume:
		return player.Resume()
	case CommandStop:
		return player.Stop()
	default:
		return player.Replay()
	}
}

func (b *ControlBridge) track(bc *bridgeConn, add bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if add {
		b.conns[bc] = struct{}{}
	} else {
		delete(b.conns, bc)
	}
}

func (b *ControlBridge) closeAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for bc := range b.conns {
		bc.writeMu.Lock()
		_ = bc.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(time.Second))
		bc.writeMu.Unlock()
		bc.conn.Close()
	}
}

// ConnectionCount returns the number of connected bridge clients.
func (b *ControlBridge) ConnectionCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.conns)
}
