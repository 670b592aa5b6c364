package voicechat

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

const DefaultVoicevoxURL = "http://127.0.0.1:50021"

// Speaker is a VOICEVOX style ID.
type Speaker int

const (
	SpeakerShikokuMetan    Speaker = 2
	SpeakerZundamon        Speaker = 3
	SpeakerKasukabeTsumugi Speaker = 8
)

// VoicevoxSynthesizer turns text into WAV audio using a VOICEVOX engine.
type VoicevoxSynthesizer struct {
	baseURL    string
	httpClient *http.Client
}

func NewVoicevoxSynthesizer(baseURL string, client *http.Client) *VoicevoxSynthesizer {
	if baseURL == "" {
		baseURL = DefaultVoicevoxURL
	}
	if client == nil {
		client = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return &VoicevoxSynthesizer{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: client,
	}
}

// GenerateWAV runs audio_query followed by synthesis and returns the WAV bytes.
func (s *VoicevoxSynthesizer) GenerateWAV(ctx context.Context, text string, speaker Speaker) (AudioPayload, error) {
	speakerID := strconv.Itoa(int(speaker))

	query := url.Values{}
	query.Set("text", text)
	query.Set("speaker", speakerID)
	audioQuery, err := s.post(ctx, "/audio_query?"+query.Encode(), nil)
	if err != nil {
		return nil, err
	}

	synthQuery := url.Values{}
	synthQuery.Set("speaker", speakerID)
	wav, err := s.post(ctx, "/synthesis?"+synthQuery.Encode(), audioQuery)
	if err != nil {
		return nil, err
	}
	if DetectFormat(wav) != FormatWAV {
		return nil, NewVoiceChatError("synthesis did not return WAV audio", ErrCodeSynthesisFailed).
			AddDetail("bytes", len(wav))
	}
	return wav, nil
}

func (s *VoicevoxSynthesizer) post(ctx context.Context, endpoint string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, WrapError(err, ErrCodeSynthesisFailed, "failed to build synthesis request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, WrapError(err, ErrCodeSynthesisFailed, "synthesis request failed")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, WrapError(err, ErrCodeSynthesisFailed, "failed to read synthesis response")
	}
	if resp.StatusCode >= 400 {
		return nil, newHTTPStatusError(ErrCodeSynthesisFailed, resp.StatusCode, string(respBody))
	}
	return respBody, nil
}
