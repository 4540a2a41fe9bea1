package store

import (
	"context"
	"path/filepath"
	"testing"
)

// newTestKV opens a throwaway SQLite store under t.TempDir.
func newTestKV(t *testing.T) *KV {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "kv_test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return New(db)
}

func TestKV_GetSet(t *testing.T) {
	kv := newTestKV(t)
	ctx := context.Background()

	if _, err := kv.GetItem(ctx, "missing"); !IsNotFound(err) {
		t.Fatalf("GetItem(missing) err = %v; want not-found", err)
	}

	if err := kv.SetItem(ctx, "active_routine", "srv_abc"); err != nil {
		t.Fatalf("SetItem: %v", err)
	}
	got, err := kv.GetItem(ctx, "active_routine")
	if err != nil || got != "srv_abc" {
		t.Fatalf("GetItem = (%q, %v); want (srv_abc, nil)", got, err)
	}

	// Overwrite.
	if err := kv.SetItem(ctx, "active_routine", "srv_def"); err != nil {
		t.Fatalf("SetItem overwrite: %v", err)
	}
	got, _ = kv.GetItem(ctx, "active_routine")
	if got != "srv_def" {
		t.Fatalf("GetItem after overwrite = %q; want srv_def", got)
	}
}

func TestKV_MultiSetMultiRemove(t *testing.T) {
	kv := newTestKV(t)
	ctx := context.Background()

	pairs := [][2]string{
		{"routine_srv_a", `[["a"]]`},
		{"routine_srv_b", `[["b"]]`},
		{"last_session_srv_a", "2025-01-01"},
	}
	if err := kv.MultiSet(ctx, pairs); err != nil {
		t.Fatalf("MultiSet: %v", err)
	}
	for _, p := range pairs {
		got, err := kv.GetItem(ctx, p[0])
		if err != nil || got != p[1] {
			t.Fatalf("GetItem(%q) = (%q, %v); want (%q, nil)", p[0], got, err, p[1])
		}
	}

	// Removing a mix of present and absent keys succeeds.
	if err := kv.MultiRemove(ctx, []string{"routine_srv_a", "last_session_srv_a", "never_stored"}); err != nil {
		t.Fatalf("MultiRemove: %v", err)
	}
	if _, err := kv.GetItem(ctx, "routine_srv_a"); !IsNotFound(err) {
		t.Fatalf("routine_srv_a still present after MultiRemove")
	}
	if got, _ := kv.GetItem(ctx, "routine_srv_b"); got != `[["b"]]` {
		t.Fatalf("routine_srv_b disturbed by MultiRemove: %q", got)
	}

	// Empty batches are no-ops.
	if err := kv.MultiSet(ctx, nil); err != nil {
		t.Fatalf("MultiSet(nil): %v", err)
	}
	if err := kv.MultiRemove(ctx, nil); err != nil {
		t.Fatalf("MultiRemove(nil): %v", err)
	}
}

func TestKV_GetAllKeys_Sorted(t *testing.T) {
	kv := newTestKV(t)
	ctx := context.Background()

	for _, k := range []string{"routines", "active_routine", "routine_srv_x"} {
		if err := kv.SetItem(ctx, k, "v"); err != nil {
			t.Fatalf("SetItem(%q): %v", k, err)
		}
	}
	keys, err := kv.GetAllKeys(ctx)
	if err != nil {
		t.Fatalf("GetAllKeys: %v", err)
	}
	want := []string{"active_routine", "routine_srv_x", "routines"}
	if len(keys) != len(want) {
		t.Fatalf("GetAllKeys = %v; want %v", keys, want)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Fatalf("GetAllKeys[%d] = %q; want %q", i, keys[i], want[i])
		}
	}
}

func TestKV_Clear(t *testing.T) {
	kv := newTestKV(t)
	ctx := context.Background()

	_ = kv.SetItem(ctx, "routines", "[]")
	_ = kv.SetItem(ctx, "last_sync_ts", "2025-06-01T00:00:00Z")

	if err := kv.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	keys, err := kv.GetAllKeys(ctx)
	if err != nil {
		t.Fatalf("GetAllKeys after Clear: %v", err)
	}
	if len(keys) != 0 {
		t.Fatalf("store not empty after Clear: %v", keys)
	}
}

func TestKV_JSONHelpers(t *testing.T) {
	kv := newTestKV(t)
	ctx := context.Background()

	type box struct {
		Name string `json:"name"`
		N    int    `json:"n"`
	}
	in := box{Name: "push", N: 3}
	if err := kv.SetJSON(ctx, "b", in); err != nil {
		t.Fatalf("SetJSON: %v", err)
	}
	var out box
	if err := kv.GetJSON(ctx, "b", &out); err != nil {
		t.Fatalf("GetJSON: %v", err)
	}
	if out != in {
		t.Fatalf("GetJSON round trip = %+v; want %+v", out, in)
	}

	var missing box
	if err := kv.GetJSON(ctx, "absent", &missing); !IsNotFound(err) {
		t.Fatalf("GetJSON(absent) err = %v; want not-found", err)
	}
}

func TestRoutineIDFromContentKey(t *testing.T) {
	cases := []struct {
		key    string
		wantID string
		wantOK bool
	}{
		{"routine_srv_abc", "srv_abc", true},
		{"routine_local-1", "local-1", true},
		{"routines", "", false},
		{"last_session_srv_abc", "", false},
	}
	for _, tc := range cases {
		id, ok := RoutineIDFromContentKey(tc.key)
		if id != tc.wantID || ok != tc.wantOK {
			t.Fatalf("RoutineIDFromContentKey(%q) = (%q, %v); want (%q, %v)", tc.key, id, ok, tc.wantID, tc.wantOK)
		}
	}
}
