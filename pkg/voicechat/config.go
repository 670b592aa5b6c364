package voicechat

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

const DefaultBridgeAddr = "127.0.0.1:8765"

// Config holds everything the assistant reads from the environment.
type Config struct {
	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string
	SystemPrompt  string
	MaxHistory    int

	VoicevoxURL string
	Speaker     Speaker

	PollInterval time.Duration
	Audio        *AudioConfig

	LogLevel  string
	LogPretty bool

	BridgeAddr   string
	BridgeSecret string
}

// LoadConfig reads a .env file if present, then the environment.
func LoadConfig() *Config {
	_ = godotenv.Load()

	c := &Config{
		OpenAIBaseURL: DefaultOpenAIBaseURL,
		OpenAIModel:   DefaultOpenAIModel,
		MaxHistory:    DefaultMaxHistory,
		VoicevoxURL:   DefaultVoicevoxURL,
		Speaker:       SpeakerZundamon,
		PollInterval:  DefaultPollInterval,
		Audio:         NewAudioConfig(),
		LogLevel:      "info",
		LogPretty:     true,
		BridgeAddr:    DefaultBridgeAddr,
	}
	c.loadFromEnv()
	return c
}

func (c *Config) loadFromEnv() {
	c.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")

	if v := os.Getenv("OPENAI_BASE_URL"); v != "" {
		c.OpenAIBaseURL = v
	}
	if v := os.Getenv("OPENAI_MODEL"); v != "" {
		c.OpenAIModel = v
	}
	c.SystemPrompt = os.Getenv("VOICECHAT_SYSTEM_PROMPT")

	if v := os.Getenv("VOICECHAT_MAX_HISTORY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.MaxHistory = n
		}
	}
	if v := os.Getenv("VOICEVOX_URL"); v != "" {
		c.VoicevoxURL = v
	}
	if v := os.Getenv("VOICEVOX_SPEAKER"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Speaker = Speaker(n)
		}
	}
	if v := os.Getenv("VOICECHAT_POLL_INTERVAL_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.PollInterval = time.Duration(n) * time.Millisecond
		}
	}
	if v := os.Getenv("VOICECHAT_SAMPLE_RATE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Audio.SampleRate = n
		}
	}
	if v := os.Getenv("VOICECHAT_BUFFER_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Audio.BufferSize = n
		}
	}
	if v := os.Getenv("VOICECHAT_AUDIO_DEVICE_ID"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Audio.DeviceID = &n
		}
	}
	if v := os.Getenv("VOICECHAT_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("VOICECHAT_LOG_PRETTY"); v != "" {
		c.LogPretty = v != "false"
	}
	if v := os.Getenv("VOICECHAT_BRIDGE_ADDR"); v != "" {
		c.BridgeAddr = v
	}
	c.BridgeSecret = os.Getenv("VOICECHAT_BRIDGE_SECRET")
}

// Validate returns list of issues
func (c *Config) Validate() []string {
	issues := []string{}

	if c.OpenAIAPIKey == "" {
		issues = append(issues, "OPENAI_API_KEY is not set")
	}
	if !strings.HasPrefix(c.OpenAIBaseURL, "http") {
		issues = append(issues, fmt.Sprintf("Invalid OpenAI base URL: %s", c.OpenAIBaseURL))
	}
	if !strings.HasPrefix(c.VoicevoxURL, "http") {
		issues = append(issues, fmt.Sprintf("Invalid VOICEVOX URL: %s", c.VoicevoxURL))
	}
	if c.PollInterval < 10*time.Millisecond {
		issues = append(issues, fmt.Sprintf("Poll interval too short: %s", c.PollInterval))
	}
	if c.Audio.SampleRate <= 0 {
		issues = append(issues, fmt.Sprintf("Invalid sample rate: %d", c.Audio.SampleRate))
	}
	if c.Audio.BufferSize <= 0 {
		issues = append(issues, fmt.Sprintf("Invalid buffer size: %d", c.Audio.BufferSize))
	}
	if _, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel)); err != nil {
		issues = append(issues, fmt.Sprintf("Invalid log level: %s", c.LogLevel))
	}

	return issues
}

// ValidateBridge reports issues that only matter when serving the control bridge.
func (c *Config) ValidateBridge() []string {
	issues := []string{}
	if len(c.BridgeSecret) < minBridgeSecretLength {
		issues = append(issues, fmt.Sprintf("VOICECHAT_BRIDGE_SECRET must be at least %d characters", minBridgeSecretLength))
	}
	if c.BridgeAddr == "" {
		issues = append(issues, "VOICECHAT_BRIDGE_ADDR is empty")
	}
	return issues
}

// NewLoggerFromConfig builds a logger honouring the log settings.
func (c *Config) NewLoggerFromConfig(out io.Writer) *Logger {
	logConfig := DefaultLogConfig()
	logConfig.Level = ParseLogLevel(c.LogLevel)
	logConfig.Pretty = c.LogPretty
	if out != nil {
		logConfig.Output = out
	}
	return NewLogger(logConfig)
}

func (c *Config) PrintConfig(w io.Writer) {
	fmt.Fprintln(w, "voicechat configuration")
	fmt.Fprintln(w, "==================================================")
	fmt.Fprintf(w, "OpenAI API Key: %s\n", MaskSecret(c.OpenAIAPIKey))
	fmt.Fprintf(w, "OpenAI Base URL: %s\n", c.OpenAIBaseURL)
	fmt.Fprintf(w, "OpenAI Model: %s\n", c.OpenAIModel)
	fmt.Fprintf(w, "Max History: %d\n", c.MaxHistory)
	fmt.Fprintf(w, "VOICEVOX URL: %s\n", c.VoicevoxURL)
	fmt.Fprintf(w, "Speaker: %d\n", c.Speaker)
	fmt.Fprintf(w, "Poll Interval: %s\n", c.PollInterval)
	fmt.Fprintf(w, "Sample Rate: %d Hz\n", c.Audio.SampleRate)
	fmt.Fprintf(w, "Buffer Size: %d frames\n", c.Audio.BufferSize)
	if c.Audio.DeviceID != nil {
		fmt.Fprintf(w, "Audio Device ID: %d\n", *c.Audio.DeviceID)
	} else {
		fmt.Fprintln(w, "Audio Device: Default")
	}
	fmt.Fprintf(w, "Log Level: %s\n", c.LogLevel)
	fmt.Fprintf(w, "Bridge Address: %s\n", c.BridgeAddr)
	fmt.Fprintf(w, "Bridge Secret: %s\n", MaskSecret(c.BridgeSecret))
}

// MaskSecret keeps the first and last four characters of long secrets.
func MaskSecret(s string) string {
	if s == "" {
		return "<not set>"
	}
	if len(s) <= 8 {
		return "****"
	}
	return s[:4] + "****" + s[len(s)-4:]
}
