package auth

import "time"

// User is a stored account together with its resolved grants.
type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	Roles        []Role
	Authorities  []Authority
	CreatedAt    time.Time
}

// Role groups authorities. Holding a role grants every authority it lists.
type Role struct {
	ID          int64
	Name        string
	Authorities []Authority
}

// Authority is a named fine-grained grant.
type Authority struct {
	ID   int64
	Name string
}

// Permission scopes a URL pattern of one service to the roles and
// authorities allowed to call it.
type Permission struct {
	ID          int64
	Service     string
	Pattern     string
	Roles       []string
	Authorities []string
}

// NewUser is the persisted form of a validated signup.
type NewUser struct {
	Username     string
	Email        string
	PasswordHash string
	RoleIDs      []int64
}

// GrantedAuthorities flattens role grants (prefixed), the authorities those
// roles carry and the user's direct authorities into one sorted list.
func (u User) GrantedAuthorities() []string {
	var names []string
	for _, role := range u.Roles {
		names = append(names, RoleAuthority(role.Name))
		for _, a := range role.Authorities {
			names = append(names, a.Name)
		}
	}
	for _, a := range u.Authorities {
		names = append(names, a.Name)
	}
	return NormalizeAuthorities(names)
}

// Principal builds the request principal for a freshly authenticated user.
func (u User) Principal() Principal {
	return Principal{
		UserID:      u.ID,
		Username:    u.Username,
		Email:       u.Email,
		Authorities: u.GrantedAuthorities(),
	}
}
