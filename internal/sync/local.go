// Package sync – local routine CRUD.
//
// Locally owned routines are created and deleted by explicit user actions,
// never by the reconciler. Local deletes remove the meta entry, the content
// entry, and the session marker together; deleting a server-owned routine
// locally is rejected, because the next sync would just re-materialize it.
package sync

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/tbourn/go-coach-sync/internal/domain"
	"github.com/tbourn/go-coach-sync/internal/store"
)

var (
	// ErrRoutineNotFound indicates the id is absent from the local list.
	ErrRoutineNotFound = errors.New("routine not found")

	// ErrServerOwned is returned when a local mutation targets a
	// server-owned routine.
	ErrServerOwned = errors.New("routine is server-owned")

	// ErrEmptyName is returned when a create request has no name.
	ErrEmptyName = errors.New("routine name is empty")
)

// Local provides list/create/delete over locally stored routines.
type Local struct {
	store *store.KV
}

// NewLocal builds a Local over the key-value store.
func NewLocal(kv *store.KV) *Local { return &Local{store: kv} }

// List returns the authoritative routine list (empty, not nil, when none).
func (l *Local) List(ctx context.Context) ([]domain.RoutineMeta, error) {
	var list []domain.RoutineMeta
	err := l.store.GetJSON(ctx, store.RoutineListKey, &list)
	if store.IsNotFound(err) {
		return []domain.RoutineMeta{}, nil
	}
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []domain.RoutineMeta{}
	}
	return list, nil
}

// Content returns the stored content for one routine.
func (l *Local) Content(ctx context.Context, id string) (domain.RoutineContent, error) {
	var content domain.RoutineContent
	err := l.store.GetJSON(ctx, store.RoutineContentKey(id), &content)
	if store.IsNotFound(err) {
		return nil, ErrRoutineNotFound
	}
	if err != nil {
		return nil, err
	}
	return content, nil
}

// Create inserts a new locally owned routine with the given name and
// content, appending it to the list ahead of the server segment's position
// rules (local entries always sort before server ones in the composed
// list, so appending to the local prefix keeps the order stable).
func (l *Local) Create(ctx context.Context, name string, content domain.RoutineContent) (domain.RoutineMeta, error) {
	if len(strings.Fields(name)) == 0 {
		return domain.RoutineMeta{}, ErrEmptyName
	}
	name = normalizeName(name)

	list, err := l.List(ctx)
	if err != nil {
		return domain.RoutineMeta{}, err
	}

	meta := domain.RoutineMeta{
		ID:        domain.NewLocalID(),
		Name:      name,
		Days:      len(content),
		UpdatedAt: time.Now().UTC(),
	}
	if meta.Days == 0 {
		meta.Days = 1
	}

	payload, err := marshalContent(content)
	if err != nil {
		return domain.RoutineMeta{}, err
	}

	// Insert after the existing local prefix.
	insert := 0
	for insert < len(list) && list[insert].Origin() == domain.OriginLocal {
		insert++
	}
	next := make([]domain.RoutineMeta, 0, len(list)+1)
	next = append(next, list[:insert]...)
	next = append(next, meta)
	next = append(next, list[insert:]...)

	listJSON, err := marshalList(next)
	if err != nil {
		return domain.RoutineMeta{}, err
	}
	err = l.store.MultiSet(ctx, [][2]string{
		{store.RoutineListKey, listJSON},
		{store.RoutineContentKey(meta.ID), payload},
	})
	if err != nil {
		return domain.RoutineMeta{}, err
	}
	return meta, nil
}

// Delete removes a locally owned routine and everything keyed to it. The id
// must not be server-owned.
func (l *Local) Delete(ctx context.Context, id string) error {
	if domain.IsServerID(id) {
		return ErrServerOwned
	}

	list, err := l.List(ctx)
	if err != nil {
		return err
	}
	next := make([]domain.RoutineMeta, 0, len(list))
	found := false
	for _, m := range list {
		if m.ID == id {
			found = true
			continue
		}
		next = append(next, m)
	}
	if !found {
		return ErrRoutineNotFound
	}

	listJSON, err := marshalList(next)
	if err != nil {
		return err
	}
	if err := l.store.SetItem(ctx, store.RoutineListKey, listJSON); err != nil {
		return err
	}
	if err := l.store.MultiRemove(ctx, []string{
		store.RoutineContentKey(id),
		store.LastSessionKey(id),
	}); err != nil {
		return err
	}

	// Deleting the active routine clears the selection.
	active, err := l.store.GetItem(ctx, store.ActiveRoutineKey)
	if err == nil && active == id {
		return l.store.MultiRemove(ctx, []string{store.ActiveRoutineKey, store.ActiveRoutineNameKey})
	}
	if err != nil && !store.IsNotFound(err) {
		return err
	}
	return nil
}

// SetActive points the selection at a routine that exists locally.
func (l *Local) SetActive(ctx context.Context, id string) error {
	list, err := l.List(ctx)
	if err != nil {
		return err
	}
	for _, m := range list {
		if m.ID == id {
			return l.store.MultiSet(ctx, [][2]string{
				{store.ActiveRoutineKey, id},
				{store.ActiveRoutineNameKey, m.Name},
			})
		}
	}
	return ErrRoutineNotFound
}
