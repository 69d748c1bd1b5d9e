package sqlite

import (
	"context"
	"testing"

	"github.com/tcserver/tcserver/internal/store"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSeedsAdminAndLounge(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	role, err := s.RoleOf(ctx, "admin")
	if err != nil {
		t.Fatalf("RoleOf: %v", err)
	}
	if role != store.RoleAdmin {
		t.Fatalf("seeded admin role = %q, want %q", role, store.RoleAdmin)
	}

	ok, err := s.Authenticate(ctx, "admin", "admin")
	if err != nil || !ok {
		t.Fatalf("seeded admin credentials rejected: %v, %v", ok, err)
	}

	exists, err := s.Exists(ctx, "lounge")
	if err != nil || !exists {
		t.Fatalf("lounge not seeded: %v, %v", exists, err)
	}
}

func TestAddAndAuthenticate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	added, err := s.Add(ctx, "bob", "secret", store.RoleUser)
	if err != nil || !added {
		t.Fatalf("Add = %v, %v; want true, nil", added, err)
	}

	ok, err := s.Authenticate(ctx, "bob", "secret")
	if err != nil || !ok {
		t.Fatalf("valid credentials rejected: %v, %v", ok, err)
	}
	ok, err = s.Authenticate(ctx, "bob", "wrong")
	if err != nil || ok {
		t.Fatalf("wrong password accepted")
	}
	ok, err = s.Authenticate(ctx, "nobody", "secret")
	if err != nil || ok {
		t.Fatalf("unknown user accepted")
	}
}

func TestAddDuplicateLeavesRecordUnchanged(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.Add(ctx, "bob", "secret", store.RoleUser); err != nil {
		t.Fatalf("Add: %v", err)
	}

	added, err := s.Add(ctx, "bob", "other", store.RoleAdmin)
	if err != nil {
		t.Fatalf("duplicate Add: %v", err)
	}
	if added {
		t.Fatalf("duplicate Add reported success")
	}

	// Original password and role must survive.
	ok, err := s.Authenticate(ctx, "bob", "secret")
	if err != nil || !ok {
		t.Fatalf("original password lost after duplicate Add")
	}
	role, err := s.RoleOf(ctx, "bob")
	if err != nil || role != store.RoleUser {
		t.Fatalf("role changed after duplicate Add: %q", role)
	}
}

func TestUsernamesAreCaseSensitive(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.Add(ctx, "Bob", "secret", store.RoleUser); err != nil {
		t.Fatalf("Add: %v", err)
	}
	ok, err := s.Authenticate(ctx, "bob", "secret")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if ok {
		t.Fatalf("username match must be case-sensitive")
	}
}

func TestSetRoleAndSetPassword(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.Add(ctx, "bob", "secret", store.RoleUser); err != nil {
		t.Fatalf("Add: %v", err)
	}

	if err := s.SetRole(ctx, "bob", store.RoleAdmin); err != nil {
		t.Fatalf("SetRole: %v", err)
	}
	role, err := s.RoleOf(ctx, "bob")
	if err != nil || role != store.RoleAdmin {
		t.Fatalf("RoleOf after SetRole = %q, %v", role, err)
	}

	changed, err := s.SetPassword(ctx, "bob", "newpass")
	if err != nil || !changed {
		t.Fatalf("SetPassword = %v, %v", changed, err)
	}
	ok, err := s.Authenticate(ctx, "bob", "newpass")
	if err != nil || !ok {
		t.Fatalf("new password rejected")
	}
	ok, err = s.Authenticate(ctx, "bob", "secret")
	if err != nil || ok {
		t.Fatalf("old password still accepted")
	}

	changed, err = s.SetPassword(ctx, "nobody", "x")
	if err != nil || changed {
		t.Fatalf("SetPassword for unknown user = %v, %v; want false, nil", changed, err)
	}
}

func TestRoleOfUnknownUser(t *testing.T) {
	s := newTestStore(t)
	role, err := s.RoleOf(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("RoleOf: %v", err)
	}
	if role != "" {
		t.Fatalf("unknown user role = %q, want empty", role)
	}
}

func TestRooms(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created, err := s.Create(ctx, "Den", "a quieter corner")
	if err != nil || !created {
		t.Fatalf("Create = %v, %v", created, err)
	}

	exists, err := s.Exists(ctx, "DEN")
	if err != nil || !exists {
		t.Fatalf("room lookup must be case-insensitive: %v, %v", exists, err)
	}

	created, err = s.Create(ctx, "den", "again")
	if err != nil || created {
		t.Fatalf("duplicate Create = %v, %v; want false, nil", created, err)
	}

	all, err := s.DescribeAll(ctx)
	if err != nil {
		t.Fatalf("DescribeAll: %v", err)
	}
	if all["den"] != "a quieter corner" {
		t.Fatalf("DescribeAll = %v", all)
	}
	if _, ok := all["lounge"]; !ok {
		t.Fatalf("DescribeAll missing seeded lounge: %v", all)
	}
}

func TestBansAreCaseInsensitive(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Ban(ctx, "Alice"); err != nil {
		t.Fatalf("Ban: %v", err)
	}
	banned, err := s.IsBanned(ctx, "alice")
	if err != nil || !banned {
		t.Fatalf("IsBanned(alice) = %v, %v; want true, nil", banned, err)
	}
	banned, err = s.IsBanned(ctx, "ALICE")
	if err != nil || !banned {
		t.Fatalf("IsBanned(ALICE) = %v, %v; want true, nil", banned, err)
	}

	if err := s.Unban(ctx, "aLiCe"); err != nil {
		t.Fatalf("Unban: %v", err)
	}
	banned, err = s.IsBanned(ctx, "alice")
	if err != nil || banned {
		t.Fatalf("ban survived Unban")
	}
}
