// Package domain defines the core data model shared by the synchronization
// components: workout routines (metadata and full content), chat messages,
// and the report produced by a routine sync. These types cross the local
// gateway as JSON and are stored serialized in the key-value store, so all
// fields carry JSON tags.
package domain

import "time"

// RoutineOrigin identifies who owns a routine entry. It is always derived
// from the id prefix (see ids.go) and never stored separately, so it cannot
// desync from the id.
type RoutineOrigin string

const (
	// OriginLocal marks routines created on the device (predefined, CSV
	// import, or user-built). A sync never overwrites or removes them.
	OriginLocal RoutineOrigin = "local"
	// OriginServer marks routines materialized from the remote list. They
	// are fully owned by the last successful sync.
	OriginServer RoutineOrigin = "server"
)

// RoutineMeta is one routine's listing entry. The full day-by-day payload is
// stored separately as RoutineContent under the same id, so listing stays
// cheap.
//
// Invariant: exactly one entry per id in the authoritative list.
type RoutineMeta struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Days      int       `json:"days"`
	UpdatedAt time.Time `json:"updated_at"`
	// Folder is a purely local organizational tag; the server knows nothing
	// about it.
	Folder string `json:"folder,omitempty"`
}

// Origin reports ownership of the routine, derived from its id.
func (m RoutineMeta) Origin() RoutineOrigin {
	if IsServerID(m.ID) {
		return OriginServer
	}
	return OriginLocal
}

// RoutineContent is the ordered day list for one routine. Its lifecycle is
// tied 1:1 to the RoutineMeta with the same id.
type RoutineContent []RoutineDay

// RoutineDay is one training day: an ordered list of exercises.
type RoutineDay []Exercise

// Exercise is a single exercise slot within a day.
type Exercise struct {
	Name        string     `json:"name"`
	MuscleGroup string     `json:"muscle_group,omitempty"`
	Sets        []SetEntry `json:"sets,omitempty"`
	Notes       string     `json:"notes,omitempty"`
}

// SetEntry is one prescribed set of an exercise.
type SetEntry struct {
	Reps   int     `json:"reps"`
	Weight float64 `json:"weight,omitempty"`
	RIR    int     `json:"rir,omitempty"`
}

// MediaKind categorizes a message attachment.
type MediaKind string

const (
	MediaImage MediaKind = "image"
	MediaVideo MediaKind = "video"
	MediaAudio MediaKind = "audio"
	MediaFile  MediaKind = "file"
)

// MediaRef points at a remote media object attached to a message. The binary
// itself lives behind the presigned-upload endpoint; only the key travels
// with the message.
type MediaRef struct {
	Key  string    `json:"key"`
	Kind MediaKind `json:"kind"`
}

// Message is a single chat entry within a conversation.
//
// Invariant: within the locally held window of a conversation no id appears
// twice, and the window is capped at the most recent N entries in arrival
// order.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	SenderID       string    `json:"sender_id"`
	Type           string    `json:"type"`
	Text           string    `json:"text"`
	Media          *MediaRef `json:"media,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// SyncReport summarizes one routine reconcile run. Counters only cover
// server-owned data; local routines are invisible to it by design of the
// merge (they are carried through untouched).
type SyncReport struct {
	// Added counts server routines whose content had never been stored.
	Added int `json:"added"`
	// Updated counts server routines whose stored content differed.
	Updated int `json:"updated"`
	// Removed counts stale server routines purged from local storage.
	Removed int `json:"removed"`
	// Total is the number of server routines after the sync.
	Total int `json:"total"`
	// ServerIDs lists the local ids (srv_*) present after the sync.
	ServerIDs []string `json:"server_ids"`
}
