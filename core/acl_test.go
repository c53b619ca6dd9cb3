package core

import "testing"

func TestAccessListAllows(t *testing.T) {
	list := AccessList{
		{UserID: "u1", Permission: PermissionRead},
		{UserID: "u2", Permission: PermissionWrite},
	}

	if !list.Allows("u1", PermissionRead) {
		t.Fatal("u1 should hold read")
	}
	if list.Allows("u1", PermissionWrite) {
		t.Fatal("u1 should not hold write")
	}
	if list.Allows("", PermissionRead) {
		t.Fatal("the empty user id never matches a grant")
	}
	if list.Allows("u3", PermissionRead) {
		t.Fatal("unknown user should not match")
	}
}

func TestAccessListGrantOwner(t *testing.T) {
	list := AccessList{}.GrantOwner("u1")
	if len(list) != 2 {
		t.Fatalf("grants = %d, want read and write", len(list))
	}
	if !list.Allows("u1", PermissionRead) || !list.Allows("u1", PermissionWrite) {
		t.Fatalf("owner grants incomplete: %v", list)
	}

	again := list.GrantOwner("u1")
	if len(again) != 2 {
		t.Fatalf("repeated GrantOwner duplicated grants: %v", again)
	}

	both := again.GrantOwner("u2")
	if len(both) != 4 {
		t.Fatalf("second owner grants = %d, want 4", len(both))
	}
	if !both.Allows("u1", PermissionWrite) || !both.Allows("u2", PermissionWrite) {
		t.Fatalf("grants lost on append: %v", both)
	}
}
