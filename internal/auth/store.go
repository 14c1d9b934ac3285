package auth

import (
	"context"
	"time"
)

// CredentialStore is the persistence surface used by login and signup.
// Implementations return ErrNotFound for unknown users and ErrConflict for
// duplicate usernames.
type CredentialStore interface {
	FindUserByUsername(ctx context.Context, username string) (User, error)
	UsernameExists(ctx context.Context, username string) (bool, error)
	FindRolesByIDs(ctx context.Context, ids []int64) ([]Role, error)
	CreateUser(ctx context.Context, u NewUser) (User, error)
}

// PermissionSource lists the permissions scoped to one service.
type PermissionSource interface {
	ListPermissions(ctx context.Context, service string) ([]Permission, error)
}

// Denylist records revoked token ids until they would have expired anyway.
type Denylist interface {
	Revoke(ctx context.Context, tokenID string, until time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}
