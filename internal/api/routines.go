// Package api – routine list.
//
// Deployments have mounted the routine listing under a few different paths
// over time, so the fetch walks a candidate list and takes the first 2xx.
// Records come back in whatever shape the backend version produces (array
// day content vs keyed dia1..diaN fields, "_id" vs "id"); they are kept raw
// here and normalized once at the sync boundary.
package api

import (
	"context"
	"encoding/json"

	"go.opentelemetry.io/otel/attribute"
)

// RemoteRoutine is one routine record exactly as the backend returned it.
type RemoteRoutine map[string]json.RawMessage

// routinePaths are tried in order until one answers 2xx.
var routinePaths = []string{
	"routines",
	"routines/me",
	"api/routines/me",
	"users/me/routines",
}

// FetchRoutines downloads the caller's routine list. The response envelope
// may be {"routines": [...]}, {"list": [...]}, or a bare array; all three
// decode to the same record slice. The error is always a transport-level
// one — per-record problems are left to the reconciler, which can skip
// records individually.
func (c *Client) FetchRoutines(ctx context.Context) ([]RemoteRoutine, error) {
	ctx, span := c.tracer().Start(ctx, "FetchRoutines")
	defer span.End()

	var lastErr error
	for _, path := range routinePaths {
		var raw json.RawMessage
		if err := c.getJSON(ctx, path, &raw); err != nil {
			if _, ok := err.(*ServerError); ok {
				// Wrong mount point; try the next candidate.
				c.log.Debug().Str("path", path).Err(err).Msg("routine path rejected")
				lastErr = err
				continue
			}
			return nil, err
		}

		routines, err := decodeRoutineEnvelope(raw)
		if err != nil {
			return nil, err
		}
		span.SetAttributes(attribute.Int("routines.count", len(routines)))
		spanPath(span, path)
		return routines, nil
	}
	if lastErr == nil {
		lastErr = &ServerError{Status: 404, Body: "no routine endpoint"}
	}
	return nil, lastErr
}

func decodeRoutineEnvelope(raw json.RawMessage) ([]RemoteRoutine, error) {
	// Bare array.
	var list []RemoteRoutine
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, nil
	}

	var envelope struct {
		Routines []RemoteRoutine `json:"routines"`
		List     []RemoteRoutine `json:"list"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, &ParseError{Err: err}
	}
	if envelope.Routines != nil {
		return envelope.Routines, nil
	}
	return envelope.List, nil
}
