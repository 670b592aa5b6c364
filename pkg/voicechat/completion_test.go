package voicechat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func completionServer(t *testing.T, reply string) (*httptest.Server, <-chan chatCompletionRequest) {
	t.Helper()
	seen := make(chan chatCompletionRequest, 8)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req chatCompletionRequest
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&req)) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		seen <- req

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"role": "assistant", "content": reply}},
			},
		})
	}))
	t.Cleanup(srv.Close)
	return srv, seen
}

func TestChatCompletion_RecordsConversation(t *testing.T) {
	srv, seen := completionServer(t, "Hello there!")

	c := NewChatCompletion("sk-test",
		WithBaseURL(srv.URL+"/v1/"),
		WithModel("test-model"),
		WithSystemPrompt("Answer briefly."),
	)

	c.PushUserMessage("hi")
	reply, err := c.Completion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Hello there!", reply)

	first := <-seen
	assert.Equal(t, "test-model", first.Model)
	assert.Equal(t, []ChatMessage{
		{Role: "system", Content: "Answer briefly."},
		{Role: "user", Content: "hi"},
	}, first.Messages)

	assert.Equal(t, []ChatMessage{
		{Role: "user", Content: "hi"},
		{Role: "assistant", Content: "Hello there!"},
	}, c.History())

	c.PushUserMessage("again")
	_, err = c.Completion(context.Background())
	require.NoError(t, err)
	second := <-seen
	assert.Len(t, second.Messages, 4)
}

func TestChatCompletion_TrimsHistory(t *testing.T) {
	srv, _ := completionServer(t, "ok")
	c := NewChatCompletion("sk-test", WithBaseURL(srv.URL+"/v1"), WithMaxHistory(3))

	for _, text := range []string{"one", "two"} {
		c.PushUserMessage(text)
		_, err := c.Completion(context.Background())
		require.NoError(t, err)
	}

	history := c.History()
	require.Len(t, history, 3)
	assert.Equal(t, ChatMessage{Role: "assistant", Content: "ok"}, history[0])
	assert.Equal(t, ChatMessage{Role: "user", Content: "two"}, history[1])

	c.ClearHistory()
	assert.Empty(t, c.History())
}

func TestChatCompletion_Failures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		status  int
	}{
		{
			name: "http error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, `{"error":"rate limited"}`, http.StatusTooManyRequests)
			},
			status: http.StatusTooManyRequests,
		},
		{
			name: "no choices",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"choices":[]}`))
			},
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"choices":`))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			c := NewChatCompletion("sk-test", WithBaseURL(srv.URL))
			c.PushUserMessage("hi")

			_, err := c.Completion(context.Background())
			require.Error(t, err)
			assert.Equal(t, ErrCodeCompletionFailed, ErrorCode(err))

			if tt.status != 0 {
				var vErr *VoiceChatError
				require.ErrorAs(t, err, &vErr)
				status, ok := vErr.GetDetail("status_code")
				require.True(t, ok)
				assert.Equal(t, tt.status, status)
			}
			assert.Len(t, c.History(), 1, "failed completions leave no assistant turn")
		})
	}
}

func TestChatCompletion_Defaults(t *testing.T) {
	c := NewChatCompletion("key", WithBaseURL(""), WithModel(""), WithMaxHistory(0), WithHTTPClient(nil))
	assert.Equal(t, "ChatCompletion(model=gpt-4o-mini, base=https://api.openai.com/v1)", c.String())
	assert.Equal(t, DefaultMaxHistory, c.maxHistory)
	assert.NotNil(t, c.httpClient)
}
