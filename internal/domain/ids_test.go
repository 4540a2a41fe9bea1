package domain

import "testing"

func TestServerIDRoundTrip(t *testing.T) {
	id := AsServerID("665f1a2b3c")
	if id != "srv_665f1a2b3c" {
		t.Fatalf("AsServerID = %q; want srv_665f1a2b3c", id)
	}
	if !IsServerID(id) {
		t.Fatalf("IsServerID(%q) = false; want true", id)
	}
	if got := RemoteID(id); got != "665f1a2b3c" {
		t.Fatalf("RemoteID(%q) = %q; want 665f1a2b3c", id, got)
	}
}

func TestRemoteID_NonServer(t *testing.T) {
	if got := RemoteID("local-123"); got != "" {
		t.Fatalf("RemoteID(local) = %q; want \"\"", got)
	}
}

func TestNewLocalID_NeverServerPrefixed(t *testing.T) {
	for i := 0; i < 100; i++ {
		id := NewLocalID()
		if id == "" {
			t.Fatal("NewLocalID returned empty id")
		}
		if IsServerID(id) {
			t.Fatalf("NewLocalID produced server-prefixed id %q", id)
		}
	}
}

func TestRoutineMeta_Origin(t *testing.T) {
	cases := []struct {
		id   string
		want RoutineOrigin
	}{
		{"srv_abc", OriginServer},
		{"4a9d9d4e-0001-4b6a-8a1e-000000000000", OriginLocal},
		{"predef-fullbody", OriginLocal},
	}
	for _, tc := range cases {
		m := RoutineMeta{ID: tc.id}
		if got := m.Origin(); got != tc.want {
			t.Fatalf("Origin(%q) = %v; want %v", tc.id, got, tc.want)
		}
	}
}
