package services

import (
	"context"
	"errors"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func newAuthSvc(t *testing.T) *AuthService {
	return &AuthService{DB: newSvcDB(t), Cost: bcrypt.MinCost}
}

func TestAuth_CreateAndLogin(t *testing.T) {
	s := newAuthSvc(t)
	ctx := context.Background()

	u, err := s.CreateUser(ctx, " alice ", "s3cret", "acme.io")
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if u.Username != "alice" || u.PasswordHash == "s3cret" {
		t.Fatalf("user = %+v", u)
	}

	if _, err := s.Login(ctx, "alice", "s3cret"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if _, err := s.Login(ctx, "alice", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong password: %v", err)
	}
	if _, err := s.Login(ctx, "bob", "s3cret"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("unknown user: %v", err)
	}

	ok, err := s.Exists(ctx, "alice")
	if err != nil || !ok {
		t.Fatalf("Exists(alice) = %v %v", ok, err)
	}
	ok, err = s.Exists(ctx, "bob")
	if err != nil || ok {
		t.Fatalf("Exists(bob) = %v %v", ok, err)
	}
}

func TestAuth_Validation(t *testing.T) {
	s := newAuthSvc(t)
	ctx := context.Background()

	cases := []struct {
		name, user, pass, site string
		want                   error
	}{
		{"empty user", "", "s3cret", "", ErrInvalidUsername},
		{"bad chars", "a b", "s3cret", "", ErrInvalidUsername},
		{"short password", "carol", "abc", "", ErrWeakPassword},
		{"bad website", "carol", "s3cret", "mailto:x@y", ErrInvalidURL},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := s.CreateUser(ctx, tc.user, tc.pass, tc.site); !errors.Is(err, tc.want) {
				t.Fatalf("got %v, want %v", err, tc.want)
			}
		})
	}

	if _, err := s.CreateUser(ctx, "dave", "s3cret", ""); err != nil {
		t.Fatal(err)
	}
	if _, err := s.CreateUser(ctx, "dave", "other1", ""); !errors.Is(err, ErrUserExists) {
		t.Fatalf("duplicate: %v", err)
	}
}
