// Package sync – remote record normalization.
//
// Backend versions disagree about routine shapes: day content may arrive as
// an ordered "diasArr" array or as keyed "dia1".."diaN" fields, ids may be
// "_id", "id", or "uuid", and names may be "nombre" or "name". All of that
// ambiguity is resolved here, once, at the boundary. Everything past this
// file works with domain.RoutineMeta / domain.RoutineContent only.
package sync

import (
	"encoding/json"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/tbourn/go-coach-sync/internal/api"
	"github.com/tbourn/go-coach-sync/internal/domain"
)

var dayKeyRE = regexp.MustCompile(`^dia(\d+)$`)

var nameCaser = cases.Title(language.Spanish)

// fallbackName is used when a record carries no usable name.
var fallbackName = nameCaser.String("rutina")

// normalizeRemote maps one raw backend record to its local meta + content.
// A record without a stable id yields a ValidationError; a record whose day
// content cannot be decoded yields a ParseError. Both mean "skip this one",
// not "abort the batch".
func normalizeRemote(r api.RemoteRoutine) (domain.RoutineMeta, domain.RoutineContent, error) {
	rawID := firstString(r, "_id", "id", "uuid")
	if rawID == "" {
		return domain.RoutineMeta{}, nil, &api.ValidationError{Field: "_id", Reason: "missing"}
	}

	content, err := extractDays(r)
	if err != nil {
		return domain.RoutineMeta{}, nil, err
	}

	days := intField(r, "dias")
	if days <= 0 {
		days = len(content)
	}
	if days <= 0 {
		days = 1
	}

	meta := domain.RoutineMeta{
		ID:        domain.AsServerID(rawID),
		Name:      normalizeName(firstString(r, "nombre", "name")),
		Days:      days,
		UpdatedAt: timeField(r, "updatedAt", "createdAt"),
	}
	return meta, content, nil
}

// extractDays returns the ordered day list from either shape. A record with
// neither shape normalizes to an empty content list, which is legal (a
// routine shell without programmed days).
func extractDays(r api.RemoteRoutine) (domain.RoutineContent, error) {
	if raw, ok := r["diasArr"]; ok && len(raw) > 0 && string(raw) != "null" {
		var content domain.RoutineContent
		if err := json.Unmarshal(raw, &content); err != nil {
			return nil, &api.ParseError{Err: err}
		}
		return content, nil
	}

	// Keyed form: collect dia1..diaN and sort numerically, so dia10 lands
	// after dia9 rather than after dia1.
	type keyedDay struct {
		n   int
		raw json.RawMessage
	}
	var keyed []keyedDay
	for k, v := range r {
		m := dayKeyRE.FindStringSubmatch(k)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		keyed = append(keyed, keyedDay{n: n, raw: v})
	}
	if len(keyed) == 0 {
		return domain.RoutineContent{}, nil
	}
	sort.Slice(keyed, func(i, j int) bool { return keyed[i].n < keyed[j].n })

	content := make(domain.RoutineContent, 0, len(keyed))
	for _, d := range keyed {
		var day domain.RoutineDay
		if err := json.Unmarshal(d.raw, &day); err != nil {
			return nil, &api.ParseError{Err: err}
		}
		content = append(content, day)
	}
	return content, nil
}

// normalizeName trims, collapses whitespace, and title-cases the result so
// stored names are display-ready. Records with no name at all fall back to
// the cased default.
func normalizeName(name string) string {
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return fallbackName
	}
	return nameCaser.String(strings.Join(fields, " "))
}

func firstString(r api.RemoteRoutine, keys ...string) string {
	for _, k := range keys {
		raw, ok := r[k]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil && s != "" {
			return s
		}
	}
	return ""
}

func intField(r api.RemoteRoutine, key string) int {
	raw, ok := r[key]
	if !ok {
		return 0
	}
	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		return n
	}
	// Some records carry numbers as strings.
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
	}
	return 0
}

func timeField(r api.RemoteRoutine, keys ...string) time.Time {
	for _, k := range keys {
		raw, ok := r[k]
		if !ok {
			continue
		}
		var t time.Time
		if err := json.Unmarshal(raw, &t); err == nil && !t.IsZero() {
			return t
		}
	}
	// Deterministic: a record with no timestamp must normalize identically
	// on every run, or a repeat reconcile against the same snapshot would
	// see a phantom change.
	return time.Time{}
}
