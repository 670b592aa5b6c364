package voicechat

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Error codes as constants
const (
	ErrCodeQueueFull        = "QUEUE_FULL"
	ErrCodeNoActiveAudio    = "NO_ACTIVE_AUDIO"
	ErrCodeBusy             = "BUSY"
	ErrCodeDecode           = "DECODE_ERROR"
	ErrCodeDeviceInit       = "DEVICE_INIT_FAILED"
	ErrCodeCompletionFailed = "COMPLETION_FAILED"
	ErrCodeSynthesisFailed  = "SYNTHESIS_FAILED"
	ErrCodeConfigInvalid    = "CONFIG_INVALID"
	ErrCodeAuthFailed       = "AUTH_FAILED"
	ErrCodeUnknownCommand   = "UNKNOWN_COMMAND"
	ErrCodeUnknown          = "UNKNOWN_ERROR"
)

// Sentinels matched by code through errors.Is.
var (
	ErrQueueFull     = NewVoiceChatError("audio queue is full", ErrCodeQueueFull)
	ErrNoActiveAudio = NewVoiceChatError("No audio is currently playing", ErrCodeNoActiveAudio)
	ErrBusy          = NewVoiceChatError("audio player is busy, try again", ErrCodeBusy)
	ErrDecode        = NewVoiceChatError("failed to decode audio", ErrCodeDecode)
	ErrDeviceInit    = NewVoiceChatError("failed to initialize audio output", ErrCodeDeviceInit)
)

// VoiceChatError carries a stable code alongside the message.
type VoiceChatError struct {
	Message   string
	Code      string
	Timestamp time.Time
	Details   map[string]interface{}
	err       error
}

func NewVoiceChatError(message, code string) *VoiceChatError {
	return &VoiceChatError{
		Message:   message,
		Code:      code,
		Timestamp: time.Now(),
	}
}

func (e *VoiceChatError) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Message)
	if e.err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.err.Error())
	}
	return sb.String()
}

func (e *VoiceChatError) Unwrap() error {
	return e.err
}

// Is reports whether target is a VoiceChatError with the same code.
func (e *VoiceChatError) Is(target error) bool {
	var t *VoiceChatError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// AddDetail attaches a key/value to the error and returns it for chaining.
func (e *VoiceChatError) AddDetail(key string, value interface{}) *VoiceChatError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

func (e *VoiceChatError) GetDetail(key string) (interface{}, bool) {
	if e.Details == nil {
		return nil, false
	}
	value, exists := e.Details[key]
	return value, exists
}

// Helper to wrap any error as VoiceChatError
func WrapError(err error, code string, message string) *VoiceChatError {
	if err == nil {
		return nil
	}
	vErr := NewVoiceChatError(message, code)
	vErr.err = err
	return vErr
}

func NewDecodeError(err error) *VoiceChatError {
	return WrapError(err, ErrCodeDecode, "failed to decode audio")
}

func NewDeviceError(err error) *VoiceChatError {
	return WrapError(err, ErrCodeDeviceInit, "failed to initialize audio output")
}

func NewConfigError(message string) *VoiceChatError {
	return NewVoiceChatError(message, ErrCodeConfigInvalid)
}

func NewAuthError(message string) *VoiceChatError {
	return NewVoiceChatError(message, ErrCodeAuthFailed)
}

func newHTTPStatusError(code string, status int, body string) *VoiceChatError {
	msg := strings.TrimSpace(body)
	if msg == "" {
		msg = "empty response body"
	}
	return NewVoiceChatError(fmt.Sprintf("HTTP %d: %s", status, msg), code).AddDetail("status_code", status)
}

// IsErrorCode reports whether err carries the given code anywhere in its chain.
func IsErrorCode(err error, code string) bool {
	var vErr *VoiceChatError
	if !errors.As(err, &vErr) {
		return false
	}
	return vErr.Code == code
}

// ErrorCode returns the code of err, or ErrCodeUnknown.
func ErrorCode(err error) string {
	var vErr *VoiceChatError
	if errors.As(err, &vErr) {
		return vErr.Code
	}
	return ErrCodeUnknown
}

// Helper to check if error is retryable
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	retryableCodes := []string{
		ErrCodeQueueFull,
		ErrCodeBusy,
		ErrCodeNoActiveAudio,
	}
	for _, code := range retryableCodes {
		if IsErrorCode(err, code) {
			return true
		}
	}
	return false
}

// Helper to check if error is critical
func IsCriticalError(err error) bool {
	if err == nil {
		return false
	}
	return IsErrorCode(err, ErrCodeDeviceInit) || IsErrorCode(err, ErrCodeConfigInvalid)
}
