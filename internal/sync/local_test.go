package sync

import (
	"context"
	"errors"
	"testing"

	"github.com/tbourn/go-coach-sync/internal/domain"
	"github.com/tbourn/go-coach-sync/internal/store"
)

func TestLocal_CreateAndList(t *testing.T) {
	kv := newTestStore(t)
	l := NewLocal(kv)
	ctx := context.Background()

	list, err := l.List(ctx)
	if err != nil {
		t.Fatalf("List on empty store: %v", err)
	}
	if list == nil || len(list) != 0 {
		t.Fatalf("List = %v; want empty non-nil slice", list)
	}

	content := domain.RoutineContent{{{Name: "Sentadilla"}}}
	meta, err := l.Create(ctx, "  mi   rutina ", content)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if meta.ID == "" || domain.IsServerID(meta.ID) {
		t.Fatalf("Create minted bad id %q", meta.ID)
	}
	if meta.Name != "Mi Rutina" {
		t.Fatalf("Name = %q; want collapsed and title-cased", meta.Name)
	}
	if meta.Days != 1 {
		t.Fatalf("Days = %d; want 1", meta.Days)
	}

	list, _ = l.List(ctx)
	if len(list) != 1 || list[0].ID != meta.ID {
		t.Fatalf("List = %+v; want the created routine", list)
	}

	got, err := l.Content(ctx, meta.ID)
	if err != nil {
		t.Fatalf("Content: %v", err)
	}
	if got[0][0].Name != "Sentadilla" {
		t.Fatalf("Content = %+v; want stored exercises", got)
	}
}

func TestLocal_Create_EmptyName(t *testing.T) {
	l := NewLocal(newTestStore(t))
	if _, err := l.Create(context.Background(), "   ", nil); !errors.Is(err, ErrEmptyName) {
		t.Fatalf("Create(blank) err = %v; want ErrEmptyName", err)
	}
}

func TestLocal_Create_DefaultLookalikeNameAccepted(t *testing.T) {
	// Only blank input is rejected; a routine literally named like the
	// normalization default is a legitimate name.
	l := NewLocal(newTestStore(t))
	meta, err := l.Create(context.Background(), "Rutina", nil)
	if err != nil {
		t.Fatalf("Create(Rutina): %v", err)
	}
	if meta.Name != "Rutina" {
		t.Fatalf("Name = %q; want Rutina", meta.Name)
	}
}

func TestLocal_Create_InsertsBeforeServerSegment(t *testing.T) {
	kv := newTestStore(t)
	ctx := context.Background()
	seed := []domain.RoutineMeta{
		{ID: "local-1", Name: "Primera"},
		{ID: "srv_a", Name: "Coach Plan"},
	}
	if err := kv.SetJSON(ctx, store.RoutineListKey, seed); err != nil {
		t.Fatalf("seed: %v", err)
	}

	l := NewLocal(kv)
	meta, err := l.Create(ctx, "Nueva", nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	list, _ := l.List(ctx)
	if len(list) != 3 {
		t.Fatalf("List = %+v; want 3", list)
	}
	if list[0].ID != "local-1" || list[1].ID != meta.ID || list[2].ID != "srv_a" {
		t.Fatalf("order = [%s %s %s]; want new local before server segment", list[0].ID, list[1].ID, list[2].ID)
	}
}

func TestLocal_Delete(t *testing.T) {
	kv := newTestStore(t)
	l := NewLocal(kv)
	ctx := context.Background()

	meta, err := l.Create(ctx, "Borrable", domain.RoutineContent{{}})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	_ = kv.SetItem(ctx, store.LastSessionKey(meta.ID), "2025-06-01")
	_ = kv.SetItem(ctx, store.ActiveRoutineKey, meta.ID)
	_ = kv.SetItem(ctx, store.ActiveRoutineNameKey, meta.Name)

	if err := l.Delete(ctx, meta.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	if list, _ := l.List(ctx); len(list) != 0 {
		t.Fatalf("List = %+v; want empty", list)
	}
	if _, err := kv.GetItem(ctx, store.RoutineContentKey(meta.ID)); !store.IsNotFound(err) {
		t.Fatal("content survived delete")
	}
	if _, err := kv.GetItem(ctx, store.LastSessionKey(meta.ID)); !store.IsNotFound(err) {
		t.Fatal("session marker survived delete")
	}
	if _, err := kv.GetItem(ctx, store.ActiveRoutineKey); !store.IsNotFound(err) {
		t.Fatal("active selection survived delete of the active routine")
	}
}

func TestLocal_Delete_ServerOwnedRejected(t *testing.T) {
	l := NewLocal(newTestStore(t))
	if err := l.Delete(context.Background(), "srv_abc"); !errors.Is(err, ErrServerOwned) {
		t.Fatalf("Delete(srv) err = %v; want ErrServerOwned", err)
	}
}

func TestLocal_Delete_Missing(t *testing.T) {
	l := NewLocal(newTestStore(t))
	if err := l.Delete(context.Background(), "never-created"); !errors.Is(err, ErrRoutineNotFound) {
		t.Fatalf("Delete(missing) err = %v; want ErrRoutineNotFound", err)
	}
}

func TestLocal_SetActive(t *testing.T) {
	kv := newTestStore(t)
	l := NewLocal(kv)
	ctx := context.Background()

	meta, err := l.Create(ctx, "Activa", nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := l.SetActive(ctx, meta.ID); err != nil {
		t.Fatalf("SetActive: %v", err)
	}
	if got, _ := kv.GetItem(ctx, store.ActiveRoutineKey); got != meta.ID {
		t.Fatalf("active id = %q; want %q", got, meta.ID)
	}
	if got, _ := kv.GetItem(ctx, store.ActiveRoutineNameKey); got != "Activa" {
		t.Fatalf("active name = %q; want Activa", got)
	}

	if err := l.SetActive(ctx, "ghost"); !errors.Is(err, ErrRoutineNotFound) {
		t.Fatalf("SetActive(ghost) err = %v; want ErrRoutineNotFound", err)
	}
}
