/*
Package randx provides identifier generation for rooms.
*/
package randx

import (
	"strings"

	"github.com/google/uuid"
)

// RoomIDLength is the length of a generated room identifier (a dash-free UUID v4).
const RoomIDLength = 32

// RoomID returns a fresh room identifier: a random UUID v4 in 32-char lowercase hex.
func RoomID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// IsValidRoomID reports whether id has the shape produced by RoomID.
func IsValidRoomID(id string) bool {
	if len(id) != RoomIDLength {
		return false
	}

	for _, c := range id {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}

	return true
}
