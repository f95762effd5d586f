// Package channel derives the canonical room identifier shared by the two
// participants of a direct conversation.
package channel

import (
	"sort"
	"strings"

	"tolkuchka/internal/models"
)

const separator = "_"

// ID returns the room identifier for the unordered pair of handles.
// Handles are sorted before joining, so ID(a, b) == ID(b, a).
// A handle containing the separator can collide with another pair; the
// backend applies no guard either, so neither do we.
func ID(a, b string) (string, error) {
	if a == "" || b == "" {
		return "", models.ErrInvalidHandle
	}

	handles := []string{a, b}
	sort.Strings(handles)
	return strings.Join(handles, separator), nil
}

// Participant returns the other member of roomID given one member's handle.
// The second return is false when roomID is not a two-party room or handle
// is not part of it.
func Participant(roomID, handle string) (string, bool) {
	parts := strings.Split(roomID, separator)
	if len(parts) != 2 {
		return "", false
	}

	switch handle {
	case parts[0]:
		return parts[1], true
	case parts[1]:
		return parts[0], true
	}
	return "", false
}
