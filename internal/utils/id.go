package utils

import (
	"crypto/rand"
	"math/big"
	"strconv"
	"time"

	"github.com/google/uuid"
)

const roomKeyAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// RoomKeyLength is the length of generated room keys.
const RoomKeyLength = 6

// NewID returns a random unique identifier for connections and strokes.
func NewID() string {
	id, err := uuid.NewRandom()
	if err == nil {
		return id.String()
	}

	// Fallback to timestamp if the random source is unavailable.
	return strconv.FormatInt(time.Now().UnixNano(), 10)
}

// NewRoomKey returns a random uppercase alphanumeric room key.
// Uniqueness against existing rooms is not checked.
func NewRoomKey() string {
	buf := make([]byte, RoomKeyLength)
	limit := big.NewInt(int64(len(roomKeyAlphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			n = big.NewInt(time.Now().UnixNano() % int64(len(roomKeyAlphabet)))
		}
		buf[i] = roomKeyAlphabet[n.Int64()]
	}
	return string(buf)
}
