package sync

import (
	"encoding/json"
	"time"

	"github.com/tbourn/go-coach-sync/internal/domain"
)

// marshalContent produces the canonical serialized form used both for
// storage and for the change diff. Encoding the typed value (rather than
// the raw remote bytes) makes the diff insensitive to field ordering in the
// backend's output.
func marshalContent(c domain.RoutineContent) (string, error) {
	if c == nil {
		c = domain.RoutineContent{}
	}
	b, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func marshalList(list []domain.RoutineMeta) (string, error) {
	if list == nil {
		list = []domain.RoutineMeta{}
	}
	b, err := json.Marshal(list)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func nowRFC3339() string {
	return time.Now().UTC().Format(time.RFC3339)
}
