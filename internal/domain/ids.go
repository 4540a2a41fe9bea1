// Package domain – id ownership helpers.
//
// Server-origin routines get a stable local id by prefixing the remote
// identifier with "srv_". The prefix is the single source of truth for
// ownership: everything that needs to distinguish local from server data
// (the reconciler's partition step, the stale purge, the active-selection
// guard) tests the prefix instead of carrying a separate flag around.
package domain

import (
	"strings"

	"github.com/google/uuid"
)

// ServerIDPrefix namespaces ids of routines owned by the server.
const ServerIDPrefix = "srv_"

// AsServerID maps a raw remote identifier to its stable local id.
func AsServerID(remoteID string) string {
	return ServerIDPrefix + remoteID
}

// IsServerID reports whether id belongs to a server-owned routine.
func IsServerID(id string) bool {
	return strings.HasPrefix(id, ServerIDPrefix)
}

// RemoteID returns the raw remote identifier for a server id, or "" when the
// id is not server-owned.
func RemoteID(id string) string {
	if !IsServerID(id) {
		return ""
	}
	return strings.TrimPrefix(id, ServerIDPrefix)
}

// NewLocalID mints an id for a locally created routine. Local ids never
// collide with the server namespace because they never carry the prefix.
func NewLocalID() string {
	return uuid.NewString()
}
