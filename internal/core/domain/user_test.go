package domain

import (
	"context"
	"errors"
	"net/http"
	"testing"
)

func TestUserValidate(t *testing.T) {
	valid := User{Name: "Ann", Email: "a@x.com", PasswordHash: "hash", Role: RoleSales}

	cases := []struct {
		name    string
		mutate  func(u *User)
		wantErr bool
	}{
		{"valid", func(u *User) {}, false},
		{"no role", func(u *User) { u.Role = "" }, false},
		{"blank name", func(u *User) { u.Name = "  " }, true},
		{"email without domain", func(u *User) { u.Email = "a@x" }, true},
		{"email with space", func(u *User) { u.Email = "a b@x.com" }, true},
		{"missing hash", func(u *User) { u.PasswordHash = "" }, true},
		{"unknown role", func(u *User) { u.Role = "root" }, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			u := valid
			tc.mutate(&u)
			err := u.Validate()
			if tc.wantErr && !IsKind(err, KindValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestRoleStatsAdd(t *testing.T) {
	var s RoleStats
	s.Add(RoleAdmin, 2)
	s.Add(RoleSales, 3)
	s.Add(RoleInventory, 1)
	s.Add("", 4)

	if s.Total != 10 || s.Admin != 2 || s.Sales != 3 || s.Inventory != 1 {
		t.Fatalf("unexpected stats: %+v", s)
	}
}

func TestErrorKinds(t *testing.T) {
	err := NewStoreError(errors.New("connection reset"))
	if err.Status != http.StatusBadRequest || err.Message != "connection reset" {
		t.Fatalf("unexpected store error: %+v", err)
	}

	authz := NewAuthorizationError(RoleSales)
	if authz.Status != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", authz.Status)
	}
	if authz.Message != "Role: sales is not allowed to access this resource" {
		t.Fatalf("unexpected message: %q", authz.Message)
	}

	wrapped := errors.Join(errors.New("outer"), NewNotFoundError("User not found"))
	if !IsKind(wrapped, KindNotFound) {
		t.Fatalf("expected not_found kind through wrapping")
	}
}

func TestIdentityContext(t *testing.T) {
	if _, ok := IdentityFromContext(context.Background()); ok {
		t.Fatalf("expected no identity on empty context")
	}

	ctx := WithIdentity(context.Background(), Identity{SubjectID: "u1", Role: RoleAdmin})
	id, ok := IdentityFromContext(ctx)
	if !ok || id.SubjectID != "u1" || id.Role != RoleAdmin {
		t.Fatalf("unexpected identity: %+v ok=%v", id, ok)
	}

	blank := WithIdentity(context.Background(), Identity{Role: RoleAdmin})
	if _, ok := IdentityFromContext(blank); ok {
		t.Fatalf("identity without subject must not be reported")
	}
}
