package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Service authenticates credentials, issues tokens and registers users.
type Service struct {
	store    CredentialStore
	codec    *Codec
	denylist Denylist
	now      func() time.Time
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service) error

// WithDenylist enables token revocation checks.
func WithDenylist(d Denylist) ServiceOption {
	return func(s *Service) error {
		s.denylist = d
		return nil
	}
}

// WithServiceClock overrides the clock used for revocation bookkeeping.
func WithServiceClock(now func() time.Time) ServiceOption {
	return func(s *Service) error {
		if now != nil {
			s.now = now
		}
		return nil
	}
}

// NewService wires the credential store and codec.
func NewService(store CredentialStore, codec *Codec, opts ...ServiceOption) (*Service, error) {
	if codec == nil {
		return nil, errMissingSecret
	}
	s := &Service{store: store, codec: codec, now: time.Now}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Codec exposes the token codec.
func (s *Service) Codec() *Codec { return s.codec }

// Authenticate checks username and password. Unknown users and wrong
// passwords both yield ErrCredentialMismatch.
func (s *Service) Authenticate(ctx context.Context, username, password string) (User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		burnPasswordCheck(password)
		return User{}, ErrCredentialMismatch
	}
	if s.store == nil {
		return User{}, ErrStoreUnavailable
	}
	user, err := s.store.FindUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			burnPasswordCheck(password)
			return User{}, ErrCredentialMismatch
		}
		return User{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if err := VerifyPassword(user.PasswordHash, password); err != nil {
		return User{}, ErrCredentialMismatch
	}
	user.PasswordHash = ""
	return user, nil
}

// IssueToken signs a token for an authenticated principal.
func (s *Service) IssueToken(p Principal) (string, error) {
	return s.codec.Issue(p.Username, p.Authorities)
}

// VerifyToken verifies the token and, when a denylist is configured,
// rejects revoked token ids.
func (s *Service) VerifyToken(ctx context.Context, token string) (Principal, error) {
	claims, err := s.codec.Verify(token)
	if err != nil {
		return Principal{}, err
	}
	if s.denylist != nil && claims.ID != "" {
		revoked, err := s.denylist.IsRevoked(ctx, claims.ID)
		if err != nil {
			return Principal{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		if revoked {
			return Principal{}, ErrTokenRevoked
		}
	}
	return claims.Principal(), nil
}

// Revoke denies p's token until it expires. Without a denylist it is a no-op.
func (s *Service) Revoke(ctx context.Context, p Principal) error {
	if s.denylist == nil || p.TokenID == "" {
		return nil
	}
	if !p.ExpiresAt.After(s.now()) {
		return nil
	}
	if err := s.denylist.Revoke(ctx, p.TokenID, p.ExpiresAt); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Register persists a signup that already passed ValidateSignup.
func (s *Service) Register(ctx context.Context, req SignupRequest, roles []Role) (User, error) {
	hash, err := HashPassword(req.Password)
	if err != nil {
		return User{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	ids := make([]int64, 0, len(roles))
	for _, r := range roles {
		ids = append(ids, r.ID)
	}
	user, err := s.store.CreateUser(ctx, NewUser{
		Username:     strings.TrimSpace(req.Username),
		Email:        strings.TrimSpace(req.Email),
		PasswordHash: hash,
		RoleIDs:      ids,
	})
	if err != nil {
		if errors.Is(err, ErrConflict) {
			return User{}, fmt.Errorf("%w: Username already exists", ErrConflict)
		}
		return User{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	user.PasswordHash = ""
	user.Roles = roles
	return user, nil
}
