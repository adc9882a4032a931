package core

import "errors"

// Error codes reported to clients.
const (
	ErrCodeMissingData           = "MISSING_DATA"
	ErrCodeInvalidName           = "INVALID_NAME"
	ErrCodeInvalidRoomKey        = "INVALID_ROOM_KEY"
	ErrCodeRoomNotFound          = "ROOM_NOT_FOUND"
	ErrCodeProfessorExists       = "PROFESSOR_EXISTS"
	ErrCodeProfessorLimitReached = "PROFESSOR_LIMIT_REACHED"
	ErrCodeRoomFull              = "ROOM_FULL"
	ErrCodeNoProfessor           = "NO_PROFESSOR"
	ErrCodePermissionDenied      = "PERMISSION_DENIED"
	ErrCodeSessionNotFound       = "SESSION_NOT_FOUND"
	ErrCodeRoomGone              = "ROOM_GONE"
	ErrCodeInternal              = "INTERNAL_ERROR"

	// Transport-level codes.
	ErrCodeUnknownEvent = "UNKNOWN_EVENT"
	ErrCodeRateLimited  = "RATE_LIMITED"
)

var (
	ErrRoomExists  = errors.New("room already exists")
	ErrHubStopped  = errors.New("hub stopped")
	ErrClientGone  = errors.New("client unregistered")
	errUnknownKind = errors.New("unknown command kind")
)

// CoreError wraps a code and human-readable message.
type CoreError struct {
	Code    string
	Message string
}

func (e *CoreError) Error() string {
	return e.Message
}

func coreError(code, msg string) *CoreError {
	return &CoreError{Code: code, Message: msg}
}

// AsCoreError returns err as a *CoreError, turning anything else into INTERNAL_ERROR.
// The second result reports whether err was already a domain error.
func AsCoreError(err error) (*CoreError, bool) {
	var ce *CoreError
	if errors.As(err, &ce) {
		return ce, true
	}
	return coreError(ErrCodeInternal, "internal server error"), false
}

// IsAuthorization reports whether the error came from a role check.
func (e *CoreError) IsAuthorization() bool {
	return e != nil && e.Code == ErrCodePermissionDenied
}
