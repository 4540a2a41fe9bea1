// Package store – key namespace.
//
// Key layout (kept compatible with the mobile app's cache so a device
// upgrade finds its data):
//
//	routines             JSON array of RoutineMeta (the authoritative list)
//	routine_{id}         JSON RoutineContent for one routine
//	last_session_{id}    per-routine ephemeral marker, purged with the routine
//	active_routine       id of the currently selected routine
//	active_routine_name  display name of the currently selected routine
//	last_sync_ts         RFC3339 timestamp of the last successful sync
package store

import (
	"encoding/json"
	"strings"
)

const (
	// RoutineListKey holds the authoritative RoutineMeta list.
	RoutineListKey = "routines"
	// ActiveRoutineKey points at the currently selected routine id.
	ActiveRoutineKey = "active_routine"
	// ActiveRoutineNameKey mirrors the selected routine's display name.
	ActiveRoutineNameKey = "active_routine_name"
	// LastSyncKey records when the last reconcile completed.
	LastSyncKey = "last_sync_ts"

	routineContentPrefix = "routine_"
	lastSessionPrefix    = "last_session_"
)

// RoutineContentKey builds the content key for a routine id.
func RoutineContentKey(id string) string { return routineContentPrefix + id }

// LastSessionKey builds the session-marker key for a routine id.
func LastSessionKey(id string) string { return lastSessionPrefix + id }

// RoutineIDFromContentKey inverts RoutineContentKey. The second return is
// false when the key is not a routine content key.
func RoutineIDFromContentKey(key string) (string, bool) {
	if !strings.HasPrefix(key, routineContentPrefix) {
		return "", false
	}
	return strings.TrimPrefix(key, routineContentPrefix), true
}

func marshalJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func unmarshalJSON(s string, out any) error {
	return json.Unmarshal([]byte(s), out)
}
