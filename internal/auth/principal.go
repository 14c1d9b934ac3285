package auth

import (
	"context"
	"slices"
	"strings"
	"time"
)

// RolePrefix marks role grants inside the flattened authority list.
const RolePrefix = "ROLE_"

// Principal is the authenticated identity attached to a request.
type Principal struct {
	UserID      int64
	Username    string
	Email       string
	Authorities []string
	TokenID     string
	ExpiresAt   time.Time
}

// RoleAuthority returns the authority name that represents role.
func RoleAuthority(role string) string {
	role = strings.TrimSpace(role)
	if role == "" || strings.HasPrefix(role, RolePrefix) {
		return role
	}
	return RolePrefix + role
}

// HasAuthority reports whether name was granted verbatim.
func (p Principal) HasAuthority(name string) bool {
	name = strings.TrimSpace(name)
	return name != "" && slices.Contains(p.Authorities, name)
}

// HasAnyAuthority reports whether at least one of names was granted.
func (p Principal) HasAnyAuthority(names ...string) bool {
	for _, name := range names {
		if p.HasAuthority(name) {
			return true
		}
	}
	return false
}

// HasAnyRole reports whether at least one of roles was granted.
func (p Principal) HasAnyRole(roles ...string) bool {
	for _, role := range roles {
		if p.HasAuthority(RoleAuthority(role)) {
			return true
		}
	}
	return false
}

// Roles returns the role names without their prefix.
func (p Principal) Roles() []string {
	var roles []string
	for _, a := range p.Authorities {
		if strings.HasPrefix(a, RolePrefix) {
			roles = append(roles, strings.TrimPrefix(a, RolePrefix))
		}
	}
	return roles
}

type principalContextKey struct{}
type tokenContextKey struct{}

// ContextWithPrincipal attaches the authenticated principal to the context.
func ContextWithPrincipal(ctx context.Context, principal Principal) context.Context {
	principal.Authorities = slices.Clone(principal.Authorities)
	return context.WithValue(ctx, principalContextKey{}, &principal)
}

// PrincipalFromContext extracts the authenticated principal from the context.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	if ctx == nil {
		return Principal{}, false
	}
	v, ok := ctx.Value(principalContextKey{}).(*Principal)
	if !ok || v == nil {
		return Principal{}, false
	}
	return *v, true
}

// ContextWithToken keeps the raw token so it can be forwarded downstream.
func ContextWithToken(ctx context.Context, token string) context.Context {
	if token == "" {
		return ctx
	}
	return context.WithValue(ctx, tokenContextKey{}, token)
}

// TokenFromContext returns the raw token if one was attached.
func TokenFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	v, ok := ctx.Value(tokenContextKey{}).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}
