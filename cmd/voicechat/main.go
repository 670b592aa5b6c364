package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rojolang/voicechat-go/pkg/voicechat"
	"github.com/spf13/cobra"
)

var (
	verbose  bool
	logLevel string
)

const shutdownTimeout = 2 * time.Second

func main() {
	rootCmd := &cobra.Command{
		Use:   "voicechat",
		Short: "Talk to a chat model and hear the reply",
		Long:  "voicechat sends typed text to a chat completion service, speaks the reply through VOICEVOX and plays it on the default output device.",
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log every published event")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override VOICECHAT_LOG_LEVEL")

	rootCmd.AddCommand(chatCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(playCmd())
	rootCmd.AddCommand(devicesCmd())
	rootCmd.AddCommand(tokenCmd())
	rootCmd.AddCommand(configCmd())

	if err := rootCmd.Execute(); err != nil {
		voicechat.GetGlobalLogger().WithError(err).Fatal("CLI execution failed")
	}
}

// app is the wired runtime shared by the commands that play audio.
type app struct {
	config    *voicechat.Config
	logger    *voicechat.Logger
	bus       *voicechat.EventBus
	player    *voicechat.Player
	device    outputDevice
	assistant *voicechat.Assistant

	stop context.CancelFunc
	done chan struct{}
}

type outputDevice interface {
	voicechat.Sink
	Close() error
}

func loadConfig() (*voicechat.Config, *voicechat.Logger) {
	config := voicechat.LoadConfig()
	if logLevel != "" {
		config.LogLevel = logLevel
	}
	logger := config.NewLoggerFromConfig(os.Stderr)
	voicechat.SetGlobalLogger(logger)
	return config, logger
}

// startApp opens the output device and starts the player. Without an output
// device there is nothing useful left to do, so failure is fatal.
func startApp(ctx context.Context, needAssistant bool) *app {
	config, logger := loadConfig()

	if needAssistant {
		if issues := config.Validate(); len(issues) > 0 {
			for _, issue := range issues {
				logger.Error(issue)
			}
			logger.Fatal("Invalid configuration")
		}
	}

	bus := voicechat.NewEventBus()
	bus.SubscribeAll(voicechat.CreateLoggingListener(logger, verbose))

	player := voicechat.NewPlayer(voicechat.PlayerConfig{
		Decoder:      voicechat.NewFormatDecoder(),
		Emitter:      bus,
		PollInterval: config.PollInterval,
		Logger:       logger,
	})

	device, err := voicechat.OpenOutputDevice(config.Audio, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to open audio output")
	}

	a := &app{
		config: config,
		logger: logger,
		bus:    bus,
		player: player,
		device: device,
	}
	if needAssistant {
		a.assistant = voicechat.NewAssistantFromConfig(config, player, logger)
	}
	a.run(ctx)
	return a
}

// run starts the player on the output device until ctx is done or close is called.
func (a *app) run(ctx context.Context) {
	ctx, a.stop = context.WithCancel(ctx)
	a.done = make(chan struct{})
	go func() {
		defer close(a.done)
		if err := a.player.Run(ctx, a.device); err != nil {
			a.logger.WithError(err).Error("Player stopped")
		}
	}()
}

// close stops the player and waits for it before releasing the device, so
// nothing is appended to a closed stream.
func (a *app) close() {
	a.stop()
	select {
	case <-a.done:
	case <-time.After(shutdownTimeout):
		a.logger.Warn("Player did not stop in time")
	}
	if err := a.device.Close(); err != nil {
		a.logger.WithError(err).Warn("Failed to close audio output")
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func chatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Interactive chat in the terminal",
		Long:  "Type a message and press enter to hear the reply. Commands: /pause /resume /stop /replay /status /exit",
		Run: func(cmd *cobra.Command, args []string) {
			ctx, cancel := signalContext()
			defer cancel()

			a := startApp(ctx, true)
			defer a.close()

			a.bus.Subscribe(voicechat.EventAudioPlaybackCompleted, voicechat.CreateCompletionListener(func() {
				fmt.Fprintln(cmd.OutOrStdout(), "[playback completed]")
			}))

			runREPL(ctx, cancel, a, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}

func runREPL(ctx context.Context, cancel context.CancelFunc, a *app, in io.Reader, out io.Writer) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	fmt.Fprint(out, "> ")
	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			line = strings.TrimSpace(line)
			switch {
			case line == "":
			case line == "/exit":
				cancel()
				return
			case strings.HasPrefix(line, "/"):
				runControl(a, line, out)
			default:
				reply, err := a.assistant.SendMessage(ctx, line)
				if err != nil {
					fmt.Fprintf(out, "error: %v\n", err)
				} else {
					fmt.Fprintln(out, reply)
				}
			}
			fmt.Fprint(out, "> ")
		}
	}
}

func runControl(a *app, line string, out io.Writer) {
	var err error
	switch line {
	case "/pause":
		err = a.player.Pause()
	case "/resume":
		err = a.player.Resume()
	case "/stop":
		err = a.player.Stop()
	case "/replay":
		err = a.player.Replay()
	case "/status":
		fmt.Fprintf(out, "playback: %s\n", a.player.State())
		return
	default:
		fmt.Fprintf(out, "unknown command %s\n", line)
		return
	}
	if err != nil {
		fmt.Fprintf(out, "%s failed: %v\n", strings.TrimPrefix(line, "/"), err)
		return
	}
	fmt.Fprintln(out, "ok")
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the websocket control bridge",
		Long:  "Run the assistant headless and accept commands from a desktop front end over a websocket.",
		Run: func(cmd *cobra.Command, args []string) {
			ctx, cancel := signalContext()
			defer cancel()

			a := startApp(ctx, true)
			defer a.close()

			if issues := a.config.ValidateBridge(); len(issues) > 0 {
				for _, issue := range issues {
					a.logger.Error(issue)
				}
				a.logger.Fatal("Invalid bridge configuration")
			}

			bridge := voicechat.NewControlBridge(voicechat.BridgeConfig{
				Assistant: a.assistant,
				Bus:       a.bus,
				Secret:    a.config.BridgeSecret,
				OnExit:    cancel,
				Logger:    a.logger,
			})
			if err := bridge.Serve(ctx, a.config.BridgeAddr); err != nil {
				a.logger.WithError(err).Error("Control bridge failed")
			}
		},
	}
	return cmd
}

func playCmd() *cobra.Command {
	var replay bool
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "play [audio-file]",
		Short: "Play a WAV or MP3 file through the player",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			data, err := os.ReadFile(args[0])
			if err != nil {
				voicechat.GetGlobalLogger().WithError(err).Fatal("Failed to read audio file")
			}

			ctx, cancel := signalContext()
			defer cancel()

			a := startApp(ctx, false)
			defer a.close()

			listener, completed := voicechat.CreateCompletionSignal(1)
			a.bus.Subscribe(voicechat.EventAudioPlaybackCompleted, listener)

			if err := a.player.Submit(ctx, data); err != nil {
				a.logger.WithError(err).Fatal("Failed to submit audio")
			}
			if !waitCompleted(ctx, completed, timeout) {
				return
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Playback completed")

			if replay {
				if err := retry(ctx, a.player.Replay); err != nil {
					a.logger.WithError(err).Error("Replay failed")
					return
				}
				if waitCompleted(ctx, completed, timeout) {
					fmt.Fprintln(cmd.OutOrStdout(), "Replay completed")
				}
			}
		},
	}

	cmd.Flags().BoolVar(&replay, "replay", false, "Replay the clip once after it finishes")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "Give up waiting for completion after this long")
	return cmd
}

func waitCompleted(ctx context.Context, completed <-chan struct{}, timeout time.Duration) bool {
	select {
	case <-completed:
		return true
	case <-ctx.Done():
		return false
	case <-time.After(timeout):
		voicechat.GetGlobalLogger().Warn("Timed out waiting for playback to complete")
		return false
	}
}

// retry repeats op while it reports a transient failure.
func retry(ctx context.Context, op func() error) error {
	for attempt := 0; ; attempt++ {
		err := op()
		if err == nil || !voicechat.IsRetryableError(err) || attempt >= 20 {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
}

func devicesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "devices",
		Short: "Audio device management",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List available output devices",
		Run: func(cmd *cobra.Command, args []string) {
			_, logger := loadConfig()
			devices, err := voicechat.ListOutputDevices(logger)
			if err != nil {
				logger.WithError(err).Error("Failed to list audio devices")
				return
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Output Devices:")
			fmt.Fprint(cmd.OutOrStdout(), voicechat.FormatDeviceList(devices))
		},
	})

	return cmd
}

func tokenCmd() *cobra.Command {
	var subject string
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a control bridge token",
		Run: func(cmd *cobra.Command, args []string) {
			config, logger := loadConfig()
			token, expiresAt, err := voicechat.IssueBridgeToken(config.BridgeSecret, subject, ttl)
			if err != nil {
				logger.WithError(err).Fatal("Failed to issue token")
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			logger.WithField("expires_at", expiresAt.Format(time.RFC3339)).Info("Token issued")
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "desktop", "Client name embedded in the token")
	cmd.Flags().DurationVar(&ttl, "ttl", voicechat.DefaultBridgeTokenTTL, "Token lifetime")
	return cmd
}

func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show current configuration",
		Run: func(cmd *cobra.Command, args []string) {
			config, _ := loadConfig()
			config.PrintConfig(cmd.OutOrStdout())

			if issues := config.Validate(); len(issues) > 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "\nIssues:")
				for _, issue := range issues {
					fmt.Fprintf(cmd.OutOrStdout(), "  - %s\n", issue)
				}
			}
		},
	}
}
