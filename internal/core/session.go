package core

import (
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// Role is the binary authorization level of a session.
type Role string

const (
	RoleProfessor Role = "professor"
	RoleStudent   Role = "student"
)

// Name and room key bounds.
const (
	MaxNameLength    = 50
	MinRoomKeyLength = 3
	MaxRoomKeyLength = 20
)

// Session binds a live connection to a role, display name and room.
// It is the only source of authorization for actions after the join.
type Session struct {
	ID       string
	Role     Role
	Name     string
	RoomKey  string
	JoinedAt time.Time
}

// NormalizeName trims the display name and checks its length.
func NormalizeName(name string) (string, *CoreError) {
	if name == "" {
		return "", coreError(ErrCodeMissingData, "name is required")
	}
	trimmed := strings.TrimSpace(name)
	n := utf8.RuneCountInString(trimmed)
	if n < 1 || n > MaxNameLength {
		return "", coreError(ErrCodeInvalidName, "name must be between 1 and 50 characters")
	}
	return trimmed, nil
}

// NormalizeRoomKey validates an alphanumeric room key and upper-cases it.
func NormalizeRoomKey(key string) (string, *CoreError) {
	key = strings.TrimSpace(key)
	if len(key) < MinRoomKeyLength || len(key) > MaxRoomKeyLength {
		return "", coreError(ErrCodeInvalidRoomKey, "room key must be 3-20 alphanumeric characters")
	}
	for _, r := range key {
		if r > unicode.MaxASCII || !(unicode.IsLetter(r) || unicode.IsDigit(r)) {
			return "", coreError(ErrCodeInvalidRoomKey, "room key must be 3-20 alphanumeric characters")
		}
	}
	return strings.ToUpper(key), nil
}
