package voicechat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

const (
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
	DefaultOpenAIModel   = "gpt-4o-mini"
	DefaultMaxHistory    = 20

	chatCompletionsEndpoint = "/chat/completions"
	defaultHTTPTimeout      = 60 * time.Second
)

// ChatCompletion keeps a conversation history and asks an OpenAI-compatible
// endpoint for the next assistant reply.
type ChatCompletion struct {
	apiKey       string
	baseURL      string
	model        string
	systemPrompt string
	maxHistory   int
	httpClient   *http.Client

	mu      sync.Mutex
	history []ChatMessage
}

// ChatCompletionOption configures a ChatCompletion.
type ChatCompletionOption func(*ChatCompletion)

func WithBaseURL(baseURL string) ChatCompletionOption {
	return func(c *ChatCompletion) {
		if baseURL != "" {
			c.baseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

func WithModel(model string) ChatCompletionOption {
	return func(c *ChatCompletion) {
		if model != "" {
			c.model = model
		}
	}
}

func WithSystemPrompt(prompt string) ChatCompletionOption {
	return func(c *ChatCompletion) {
		c.systemPrompt = prompt
	}
}

func WithMaxHistory(max int) ChatCompletionOption {
	return func(c *ChatCompletion) {
		if max > 0 {
			c.maxHistory = max
		}
	}
}

func WithHTTPClient(client *http.Client) ChatCompletionOption {
	return func(c *ChatCompletion) {
		if client != nil {
			c.httpClient = client
		}
	}
}

func NewChatCompletion(apiKey string, opts ...ChatCompletionOption) *ChatCompletion {
	c := &ChatCompletion{
		apiKey:     apiKey,
		baseURL:    DefaultOpenAIBaseURL,
		model:      DefaultOpenAIModel,
		maxHistory: DefaultMaxHistory,
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// PushUserMessage appends a user turn to the history.
func (c *ChatCompletion) PushUserMessage(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.appendLocked(ChatMessage{Role: "user", Content: text})
}

func (c *ChatCompletion) appendLocked(msg ChatMessage) {
	c.history = append(c.history, msg)
	if c.maxHistory > 0 && len(c.history) > c.maxHistory {
		c.history = c.history[len(c.history)-c.maxHistory:]
	}
}

// History returns a copy of the conversation so far, without the system prompt.
func (c *ChatCompletion) History() []ChatMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]ChatMessage, len(c.history))
	copy(out, c.history)
	return out
}

// ClearHistory drops every stored turn.
func (c *ChatCompletion) ClearHistory() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.history = nil
}

type chatCompletionRequest struct {
	Model    string        `json:"model"`
	Messages []ChatMessage `json:"messages"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message ChatMessage `json:"message"`
	} `json:"choices"`
}

// Completion requests the next reply and records it in the history.
func (c *ChatCompletion) Completion(ctx context.Context) (string, error) {
	c.mu.Lock()
	messages := make([]ChatMessage, 0, len(c.history)+1)
	if c.systemPrompt != "" {
		messages = append(messages, ChatMessage{Role: "system", Content: c.systemPrompt})
	}
	messages = append(messages, c.history...)
	c.mu.Unlock()

	body, err := json.Marshal(chatCompletionRequest{Model: c.model, Messages: messages})
	if err != nil {
		return "", WrapError(err, ErrCodeCompletionFailed, "failed to encode completion request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+chatCompletionsEndpoint, bytes.NewReader(body))
	if err != nil {
		return "", WrapError(err, ErrCodeCompletionFailed, "failed to build completion request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", WrapError(err, ErrCodeCompletionFailed, "completion request failed")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", WrapError(err, ErrCodeCompletionFailed, "failed to read completion response")
	}
	if resp.StatusCode >= 400 {
		return "", newHTTPStatusError(ErrCodeCompletionFailed, resp.StatusCode, string(respBody))
	}

	var parsed chatCompletionResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", WrapError(err, ErrCodeCompletionFailed, "failed to decode completion response")
	}
	if len(parsed.Choices) == 0 {
		return "", NewVoiceChatError("completion response has no choices", ErrCodeCompletionFailed)
	}

	reply := parsed.Choices[0].Message.Content
	c.mu.Lock()
	c.appendLocked(ChatMessage{Role: "assistant", Content: reply})
	c.mu.Unlock()

	return reply, nil
}

func (c *ChatCompletion) String() string {
	return fmt.Sprintf("ChatCompletion(model=%s, base=%s)", c.model, c.baseURL)
}
