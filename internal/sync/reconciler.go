// Package sync – Reconciler
//
// Reconciler produces a new authoritative local routine list from the
// current local list and a freshly fetched remote list. The merge is
// local-first: locally owned routines are carried through untouched, the
// server-owned segment is replaced wholesale by the normalized remote list,
// and server-owned data that disappeared remotely is purged from storage
// (content entry plus the per-routine session marker).
//
// The operation is idempotent — a second run against the same remote
// snapshot reports zero changes and performs no list/content writes — and
// fail-safe: when the remote fetch itself fails, nothing local is touched
// and a zero-change report is returned along with the error so the caller
// can surface it.
package sync

import (
	"context"
	"errors"
	"sort"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/tbourn/go-coach-sync/internal/api"
	"github.com/tbourn/go-coach-sync/internal/domain"
	"github.com/tbourn/go-coach-sync/internal/store"
)

var (
	// syncRuns counts reconcile outcomes by result (ok|fetch_failed).
	syncRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "routine_sync_runs_total",
			Help: "Total number of routine reconcile runs.",
		},
		[]string{"result"},
	)

	// syncChanges counts per-routine changes by kind (added|updated|removed).
	syncChanges = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "routine_sync_changes_total",
			Help: "Total number of routine changes applied by reconcile runs.",
		},
		[]string{"kind"},
	)

	// syncSkipped counts remote records dropped for being malformed.
	syncSkipped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "routine_sync_skipped_records_total",
			Help: "Total number of malformed remote routine records skipped.",
		},
	)
)

func init() {
	prometheus.MustRegister(syncRuns, syncChanges, syncSkipped)
}

// RoutineFetcher is the remote capability the reconciler depends on.
// *api.Client satisfies it; tests substitute fakes.
type RoutineFetcher interface {
	FetchRoutines(ctx context.Context) ([]api.RemoteRoutine, error)
}

// Reconciler merges the local routine list against the remote one.
type Reconciler struct {
	store  *store.KV
	remote RoutineFetcher
	log    zerolog.Logger
}

// NewReconciler builds a Reconciler over the given store and remote.
func NewReconciler(kv *store.KV, remote RoutineFetcher) *Reconciler {
	return &Reconciler{
		store:  kv,
		remote: remote,
		log:    log.With().Str("component", "sync").Logger(),
	}
}

// Reconcile runs one full merge and returns its report.
//
// On a remote fetch failure the report is all zeroes, local state is
// untouched, and the error is returned for the caller to surface. Malformed
// individual records are skipped without failing the batch.
func (r *Reconciler) Reconcile(ctx context.Context) (domain.SyncReport, error) {
	tr := otel.Tracer("sync/Reconciler")
	ctx, span := tr.Start(ctx, "Reconcile")
	defer span.End()

	var report domain.SyncReport
	report.ServerIDs = []string{}

	// Current local list. A missing or corrupt list degrades to empty
	// rather than failing: the merge will rebuild it.
	localList := r.loadLocalList(ctx)
	localOwned := make([]domain.RoutineMeta, 0, len(localList))
	var listServerIDs []string
	for _, m := range localList {
		if m.Origin() == domain.OriginLocal {
			localOwned = append(localOwned, m)
		} else {
			listServerIDs = append(listServerIDs, m.ID)
		}
	}

	// Remote snapshot. A failure here is a strict no-op.
	records, err := r.remote.FetchRoutines(ctx)
	if err != nil {
		syncRuns.WithLabelValues("fetch_failed").Inc()
		r.log.Warn().Err(err).Msg("routine fetch failed; keeping local list unchanged")
		return report, err
	}

	// Normalize and stage. Duplicate server ids collapse to the first
	// occurrence so the final list keeps one entry per id.
	type staged struct {
		meta    domain.RoutineMeta
		payload string
	}
	seen := make(map[string]struct{}, len(records))
	server := make([]staged, 0, len(records))
	for _, rec := range records {
		meta, content, err := normalizeRemote(rec)
		if err != nil {
			syncSkipped.Inc()
			r.log.Warn().Err(err).Msg("skipping malformed remote routine")
			continue
		}
		if _, dup := seen[meta.ID]; dup {
			continue
		}
		seen[meta.ID] = struct{}{}

		payload, err := marshalContent(content)
		if err != nil {
			syncSkipped.Inc()
			r.log.Warn().Err(err).Str("routine_id", meta.ID).Msg("skipping unserializable routine content")
			continue
		}
		server = append(server, staged{meta: meta, payload: payload})
	}

	// Content diff: write only what actually changed.
	var contentWrites [][2]string
	for _, s := range server {
		key := store.RoutineContentKey(s.meta.ID)
		old, err := r.store.GetItem(ctx, key)
		switch {
		case store.IsNotFound(err):
			report.Added++
			contentWrites = append(contentWrites, [2]string{key, s.payload})
		case err != nil:
			return domain.SyncReport{ServerIDs: []string{}}, err
		case old != s.payload:
			report.Updated++
			contentWrites = append(contentWrites, [2]string{key, s.payload})
		}
	}
	if err := r.store.MultiSet(ctx, contentWrites); err != nil {
		return domain.SyncReport{ServerIDs: []string{}}, err
	}

	serverSet := make(map[string]struct{}, len(server))
	serverList := make([]domain.RoutineMeta, 0, len(server))
	for _, s := range server {
		serverSet[s.meta.ID] = struct{}{}
		serverList = append(serverList, s.meta)
		report.ServerIDs = append(report.ServerIDs, s.meta.ID)
	}
	report.Total = len(serverList)

	// Stale purge: server-owned routines present locally (in the list or as
	// stored content) but absent from the new snapshot go away, together
	// with their session markers.
	staleIDs, err := r.staleServerIDs(ctx, serverSet, listServerIDs)
	if err != nil {
		return domain.SyncReport{ServerIDs: []string{}}, err
	}
	for _, id := range staleIDs {
		if err := r.store.MultiRemove(ctx, []string{
			store.RoutineContentKey(id),
			store.LastSessionKey(id),
		}); err != nil {
			return domain.SyncReport{ServerIDs: []string{}}, err
		}
	}
	report.Removed = len(staleIDs)

	// Compose local-first and persist only when the composition differs
	// from what is already stored.
	finalList := MergeLists(localOwned, serverList)
	if err := r.storeListIfChanged(ctx, localList, finalList); err != nil {
		return domain.SyncReport{ServerIDs: []string{}}, err
	}

	// If the active selection pointed at a purged server routine, clear it.
	if err := r.clearStaleSelection(ctx, serverSet); err != nil {
		return domain.SyncReport{ServerIDs: []string{}}, err
	}

	// Sync marker. This is bookkeeping about the run, not reconciled state,
	// so it refreshes on every successful pass.
	if err := r.store.SetItem(ctx, store.LastSyncKey, nowRFC3339()); err != nil {
		return domain.SyncReport{ServerIDs: []string{}}, err
	}

	syncRuns.WithLabelValues("ok").Inc()
	syncChanges.WithLabelValues("added").Add(float64(report.Added))
	syncChanges.WithLabelValues("updated").Add(float64(report.Updated))
	syncChanges.WithLabelValues("removed").Add(float64(report.Removed))
	span.SetAttributes(
		attribute.Int("sync.added", report.Added),
		attribute.Int("sync.updated", report.Updated),
		attribute.Int("sync.removed", report.Removed),
	)
	r.log.Info().
		Int("added", report.Added).
		Int("updated", report.Updated).
		Int("removed", report.Removed).
		Int("total", report.Total).
		Msg("routine sync complete")

	return report, nil
}

// MergeLists composes the authoritative list: locally owned entries first,
// in their existing order, then the server segment in response order. The
// composition is stable across calls with equal inputs.
func MergeLists(localOwned, server []domain.RoutineMeta) []domain.RoutineMeta {
	out := make([]domain.RoutineMeta, 0, len(localOwned)+len(server))
	out = append(out, localOwned...)
	out = append(out, server...)
	return out
}

func (r *Reconciler) loadLocalList(ctx context.Context) []domain.RoutineMeta {
	var list []domain.RoutineMeta
	err := r.store.GetJSON(ctx, store.RoutineListKey, &list)
	if err != nil && !store.IsNotFound(err) {
		r.log.Warn().Err(err).Msg("local routine list unreadable; treating as empty")
		return nil
	}
	// Drop entries without an id; they cannot participate in the merge.
	out := list[:0]
	for _, m := range list {
		if m.ID != "" {
			out = append(out, m)
		}
	}
	return out
}

// staleServerIDs collects server routines known locally — via stored
// content keys or via the list's server segment — that are absent from the
// new snapshot. The union matters: a list entry can exist without stored
// content and still needs to be counted as removed.
func (r *Reconciler) staleServerIDs(ctx context.Context, serverSet map[string]struct{}, listServerIDs []string) ([]string, error) {
	keys, err := r.store.GetAllKeys(ctx)
	if err != nil {
		return nil, err
	}
	known := make(map[string]struct{})
	for _, k := range keys {
		if id, ok := store.RoutineIDFromContentKey(k); ok && domain.IsServerID(id) {
			known[id] = struct{}{}
		}
	}
	for _, id := range listServerIDs {
		known[id] = struct{}{}
	}

	var stale []string
	for id := range known {
		if _, live := serverSet[id]; !live {
			stale = append(stale, id)
		}
	}
	sort.Strings(stale)
	return stale, nil
}

func (r *Reconciler) storeListIfChanged(ctx context.Context, old, next []domain.RoutineMeta) error {
	nextJSON, err := marshalList(next)
	if err != nil {
		return err
	}
	oldJSON, err := marshalList(old)
	if err == nil && oldJSON == nextJSON {
		return nil
	}
	return r.store.SetItem(ctx, store.RoutineListKey, nextJSON)
}

func (r *Reconciler) clearStaleSelection(ctx context.Context, serverSet map[string]struct{}) error {
	activeID, err := r.store.GetItem(ctx, store.ActiveRoutineKey)
	if err != nil {
		if store.IsNotFound(err) {
			return nil
		}
		return err
	}
	if !domain.IsServerID(activeID) {
		return nil
	}
	if _, live := serverSet[activeID]; live {
		return nil
	}
	r.log.Info().Str("routine_id", activeID).Msg("active routine no longer on server; clearing selection")
	return r.store.MultiRemove(ctx, []string{store.ActiveRoutineKey, store.ActiveRoutineNameKey})
}

// IsFetchFailure reports whether a Reconcile error came from the remote
// fetch (the fail-safe no-op case) rather than local storage.
func IsFetchFailure(err error) bool {
	return api.IsTransportError(err) || errors.Is(err, context.DeadlineExceeded)
}
