package utils

import (
	"strings"
	"testing"
)

func TestNewRoomKeyShape(t *testing.T) {
	for range 200 {
		key := NewRoomKey()
		if len(key) != RoomKeyLength {
			t.Fatalf("unexpected key length %d for %q", len(key), key)
		}
		for _, r := range key {
			if !strings.ContainsRune(roomKeyAlphabet, r) {
				t.Fatalf("key %q contains %q outside the alphabet", key, r)
			}
		}
	}
}

func TestNewIDUnique(t *testing.T) {
	seen := make(map[string]struct{}, 1000)
	for range 1000 {
		id := NewID()
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = struct{}{}
	}
}
