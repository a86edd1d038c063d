package voicechat

import (
	"errors"
	"fmt"
)

// ErrorCode represents a categorized error type.
type ErrorCode int

const (
	// Protocol errors (from server error frames)
	ErrorUnknown ErrorCode = iota
	ErrorInvalidPayload
	ErrorJoinFailed
	ErrorTokenFailed
	ErrorLeaveFailed
	ErrorListFailed
	ErrorRoomNotFound
	ErrorNotInRoom
	ErrorMessageNotFound
	ErrorChatFailed

	// Client-side errors
	ErrorConnection
	ErrorDisconnected
	ErrorTimeout
	ErrorInvalidConfig
	ErrorNotConnected
	ErrorSerialization

	// Media session errors
	ErrorNoSession
	ErrorMicPermission
	ErrorMicMissing
	ErrorInsecureContext
	ErrorMediaTimeout
)

// String returns the string representation of an ErrorCode.
func (e ErrorCode) String() string {
	switch e {
	case ErrorUnknown:
		return "unknown"
	case ErrorInvalidPayload:
		return "invalid_payload"
	case ErrorJoinFailed:
		return "join_failed"
	case ErrorTokenFailed:
		return "token_failed"
	case ErrorLeaveFailed:
		return "leave_failed"
	case ErrorListFailed:
		return "list_failed"
	case ErrorRoomNotFound:
		return "room_not_found"
	case ErrorNotInRoom:
		return "not_in_room"
	case ErrorMessageNotFound:
		return "message_not_found"
	case ErrorChatFailed:
		return "chat_error"
	case ErrorConnection:
		return "connection_error"
	case ErrorDisconnected:
		return "disconnected"
	case ErrorTimeout:
		return "timeout"
	case ErrorInvalidConfig:
		return "invalid_config"
	case ErrorNotConnected:
		return "not_connected"
	case ErrorSerialization:
		return "serialization_error"
	case ErrorNoSession:
		return "no_media_session"
	case ErrorMicPermission:
		return "microphone_permission_denied"
	case ErrorMicMissing:
		return "microphone_missing"
	case ErrorInsecureContext:
		return "insecure_context"
	case ErrorMediaTimeout:
		return "media_connect_timeout"
	default:
		return fmt.Sprintf("unknown_code_%d", e)
	}
}

// ParseErrorCode converts a server error code string to ErrorCode.
func ParseErrorCode(code string) ErrorCode {
	switch code {
	case "INVALID_PAYLOAD":
		return ErrorInvalidPayload
	case "JOIN_FAILED":
		return ErrorJoinFailed
	case "TOKEN_FAILED":
		return ErrorTokenFailed
	case "LEAVE_FAILED":
		return ErrorLeaveFailed
	case "LIST_FAILED":
		return ErrorListFailed
	case "ROOM_NOT_FOUND":
		return ErrorRoomNotFound
	case "NOT_IN_ROOM":
		return ErrorNotInRoom
	case "MESSAGE_NOT_FOUND":
		return ErrorMessageNotFound
	case "CHAT_ERROR":
		return ErrorChatFailed
	default:
		return ErrorUnknown
	}
}

// VoiceChatError is a structured error with code and context.
type VoiceChatError struct {
	Code    ErrorCode
	Message string
	Wrapped error
}

// Error implements the error interface.
func (e *VoiceChatError) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("%s: %s (wrapped: %v)", e.Code, e.Message, e.Wrapped)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped error for errors.Unwrap support.
func (e *VoiceChatError) Unwrap() error {
	return e.Wrapped
}

// Is implements errors.Is interface for error comparison.
func (e *VoiceChatError) Is(target error) bool {
	t, ok := target.(*VoiceChatError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewError creates a new VoiceChatError with the given code and message.
func NewError(code ErrorCode, message string) *VoiceChatError {
	return &VoiceChatError{
		Code:    code,
		Message: message,
	}
}

// WrapError wraps an existing error with a VoiceChatError.
func WrapError(code ErrorCode, message string, err error) *VoiceChatError {
	return &VoiceChatError{
		Code:    code,
		Message: message,
		Wrapped: err,
	}
}

// FromProtocolError converts a server error payload to VoiceChatError.
func FromProtocolError(e *ErrorPayload) *VoiceChatError {
	if e == nil {
		return nil
	}
	return &VoiceChatError{
		Code:    ParseErrorCode(e.Code),
		Message: e.Message,
	}
}

// IsProtocolError checks if an error originated from a server error frame.
func IsProtocolError(err error) bool {
	var ve *VoiceChatError
	if !errors.As(err, &ve) {
		return false
	}
	return ve.Code >= ErrorInvalidPayload && ve.Code <= ErrorChatFailed
}

// IsConnectionError checks if an error is a connection-related error.
func IsConnectionError(err error) bool {
	var ve *VoiceChatError
	if !errors.As(err, &ve) {
		return false
	}
	return ve.Code == ErrorConnection || ve.Code == ErrorDisconnected || ve.Code == ErrorTimeout
}

// IsMediaError checks if an error is a user-actionable media session error.
func IsMediaError(err error) bool {
	var ve *VoiceChatError
	if !errors.As(err, &ve) {
		return false
	}
	switch ve.Code {
	case ErrorNoSession, ErrorMicPermission, ErrorMicMissing, ErrorInsecureContext, ErrorMediaTimeout:
		return true
	}
	return false
}
