package auth

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"
	"time"
)

type stubCredentialStore struct {
	findUser       func(ctx context.Context, username string) (User, error)
	usernameExists func(ctx context.Context, username string) (bool, error)
	findRoles      func(ctx context.Context, ids []int64) ([]Role, error)
	createUser     func(ctx context.Context, u NewUser) (User, error)
}

func (s stubCredentialStore) FindUserByUsername(ctx context.Context, username string) (User, error) {
	if s.findUser == nil {
		return User{}, ErrNotFound
	}
	return s.findUser(ctx, username)
}

func (s stubCredentialStore) UsernameExists(ctx context.Context, username string) (bool, error) {
	if s.usernameExists == nil {
		return false, nil
	}
	return s.usernameExists(ctx, username)
}

func (s stubCredentialStore) FindRolesByIDs(ctx context.Context, ids []int64) ([]Role, error) {
	if s.findRoles == nil {
		return nil, nil
	}
	return s.findRoles(ctx, ids)
}

func (s stubCredentialStore) CreateUser(ctx context.Context, u NewUser) (User, error) {
	if s.createUser == nil {
		return User{}, errors.New("not configured")
	}
	return s.createUser(ctx, u)
}

func mustHash(t *testing.T, password string) string {
	t.Helper()
	hash, err := HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	return hash
}

func newTestService(t *testing.T, store CredentialStore, opts ...ServiceOption) *Service {
	t.Helper()
	svc, err := NewService(store, newTestCodec(t), opts...)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func TestAuthenticateSuccess(t *testing.T) {
	hash := mustHash(t, "s3cret")
	store := stubCredentialStore{findUser: func(_ context.Context, username string) (User, error) {
		return User{
			ID:           7,
			Username:     username,
			Email:        "alice@example.com",
			PasswordHash: hash,
			Roles:        []Role{{ID: 1, Name: "ADMIN", Authorities: []Authority{{ID: 3, Name: "product.write"}}}},
			Authorities:  []Authority{{ID: 4, Name: "order.read"}},
		}, nil
	}}
	svc := newTestService(t, store)

	user, err := svc.Authenticate(context.Background(), "alice", "s3cret")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if user.PasswordHash != "" {
		t.Fatal("password hash must not leave the service")
	}
	want := []string{"ROLE_ADMIN", "order.read", "product.write"}
	if got := user.GrantedAuthorities(); !slices.Equal(got, want) {
		t.Fatalf("granted = %v, want %v", got, want)
	}

	token, err := svc.IssueToken(user.Principal())
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	p, err := svc.VerifyToken(context.Background(), token)
	if err != nil {
		t.Fatalf("VerifyToken: %v", err)
	}
	if p.Username != "alice" || !p.HasAnyRole("ADMIN") {
		t.Fatalf("unexpected principal: %+v", p)
	}
}

func TestAuthenticateMismatchIsUniform(t *testing.T) {
	hash := mustHash(t, "right")
	store := stubCredentialStore{findUser: func(_ context.Context, username string) (User, error) {
		if username != "alice" {
			return User{}, ErrNotFound
		}
		return User{ID: 1, Username: "alice", PasswordHash: hash}, nil
	}}
	svc := newTestService(t, store)

	_, wrongPassword := svc.Authenticate(context.Background(), "alice", "wrong")
	_, unknownUser := svc.Authenticate(context.Background(), "nobody", "wrong")
	if !errors.Is(wrongPassword, ErrCredentialMismatch) || !errors.Is(unknownUser, ErrCredentialMismatch) {
		t.Fatalf("expected ErrCredentialMismatch, got %v and %v", wrongPassword, unknownUser)
	}
	if wrongPassword.Error() != unknownUser.Error() {
		t.Fatalf("messages leak account existence: %q vs %q", wrongPassword, unknownUser)
	}
}

func TestAuthenticateStoreUnavailable(t *testing.T) {
	store := stubCredentialStore{findUser: func(context.Context, string) (User, error) {
		return User{}, errors.New("connection refused")
	}}
	_, err := newTestService(t, store).Authenticate(context.Background(), "alice", "pw")
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
}

func TestRevokedTokenRejected(t *testing.T) {
	denylist := NewMemoryDenylist()
	svc := newTestService(t, stubCredentialStore{}, WithDenylist(denylist))

	token, err := svc.IssueToken(Principal{Username: "alice"})
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	p, err := svc.VerifyToken(context.Background(), token)
	if err != nil {
		t.Fatalf("VerifyToken: %v", err)
	}
	if err := svc.Revoke(context.Background(), p); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if _, err := svc.VerifyToken(context.Background(), token); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("expected ErrTokenRevoked, got %v", err)
	}
}

func TestMemoryDenylistForgetsExpiredEntries(t *testing.T) {
	d := NewMemoryDenylist()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	d.now = fixedClock(now)
	_ = d.Revoke(context.Background(), "jti-1", now.Add(-time.Second))
	if revoked, _ := d.IsRevoked(context.Background(), "jti-1"); revoked {
		t.Fatal("expired entry should not be reported")
	}
}

func TestMemoryDenylistSweepsOnRevoke(t *testing.T) {
	d := NewMemoryDenylist()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return now }
	ctx := context.Background()

	for _, id := range []string{"jti-1", "jti-2", "jti-3"} {
		_ = d.Revoke(ctx, id, now.Add(30*time.Second))
	}
	_ = d.Revoke(ctx, "jti-long", now.Add(time.Hour))
	if n := len(d.entries); n != 4 {
		t.Fatalf("expected 4 entries, got %d", n)
	}

	now = now.Add(2 * time.Minute)
	_ = d.Revoke(ctx, "jti-4", now.Add(time.Minute))
	if n := len(d.entries); n != 2 {
		t.Fatalf("expired entries should be swept, %d remain", n)
	}
	if revoked, _ := d.IsRevoked(ctx, "jti-long"); !revoked {
		t.Fatal("live entry must survive the sweep")
	}

	now = now.Add(2 * time.Hour)
	if n := d.Sweep(); n != 0 {
		t.Fatalf("expected empty denylist, got %d", n)
	}
}

func TestValidateSignupOrder(t *testing.T) {
	roles := map[int64]Role{1: {ID: 1, Name: "USER"}}
	store := stubCredentialStore{
		findRoles: func(_ context.Context, ids []int64) ([]Role, error) {
			var out []Role
			for _, id := range ids {
				if r, ok := roles[id]; ok {
					out = append(out, r)
				}
			}
			return out, nil
		},
		usernameExists: func(_ context.Context, username string) (bool, error) {
			return username == "taken", nil
		},
	}
	svc := newTestService(t, store)

	cases := []struct {
		name string
		req  SignupRequest
		want error
		msg  string
	}{
		{"everything missing", SignupRequest{}, ErrInvalidInput, "Username must not be empty"},
		{"blank password", SignupRequest{Username: "new", Password: "  ", RoleIDs: []int64{1}}, ErrInvalidInput, "Password must not be empty"},
		{"no roles", SignupRequest{Username: "new", Password: "pw"}, ErrInvalidInput, "User must have at least one role"},
		{"unknown role", SignupRequest{Username: "new", Password: "pw", RoleIDs: []int64{1, 99}}, ErrInvalidInput, "Invalid authority supplied"},
		{"taken username", SignupRequest{Username: "taken", Password: "pw", RoleIDs: []int64{1}}, ErrConflict, "Username already exists"},
		{"bad email", SignupRequest{Username: "new", Password: "pw", RoleIDs: []int64{1}, Email: "nope"}, ErrInvalidInput, "Email is invalid"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.ValidateSignup(context.Background(), tc.req)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if !strings.HasSuffix(err.Error(), tc.msg) {
				t.Fatalf("expected message %q, got %q", tc.msg, err.Error())
			}
		})
	}

	got, err := svc.ValidateSignup(context.Background(), SignupRequest{Username: "new", Password: "pw", RoleIDs: []int64{1, 1}, Email: "new@example.com"})
	if err != nil {
		t.Fatalf("ValidateSignup: %v", err)
	}
	if len(got) != 1 || got[0].Name != "USER" {
		t.Fatalf("unexpected roles: %+v", got)
	}
}

func TestRegisterHashesPassword(t *testing.T) {
	var stored NewUser
	store := stubCredentialStore{createUser: func(_ context.Context, u NewUser) (User, error) {
		stored = u
		return User{ID: 11, Username: u.Username, PasswordHash: u.PasswordHash}, nil
	}}
	svc := newTestService(t, store)

	user, err := svc.Register(context.Background(), SignupRequest{Username: " carol ", Password: "pw"}, []Role{{ID: 2, Name: "USER"}})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if stored.Username != "carol" || !slices.Equal(stored.RoleIDs, []int64{2}) {
		t.Fatalf("unexpected persisted user: %+v", stored)
	}
	if stored.PasswordHash == "pw" || VerifyPassword(stored.PasswordHash, "pw") != nil {
		t.Fatal("password must be stored as a bcrypt hash")
	}
	if user.PasswordHash != "" {
		t.Fatal("hash must not be returned")
	}
}
