package pg

import (
	"context"
	"database/sql"
	"errors"

	"storefront.dev/internal/auth"
)

var (
	_ auth.CredentialStore  = (*Store)(nil)
	_ auth.PermissionSource = (*Store)(nil)
)

// Users ---------------------------------------------------------------------

// FindUserByUsername loads the user with its roles, the authorities those
// roles carry and the user's direct authorities.
func (s *Store) FindUserByUsername(ctx context.Context, username string) (auth.User, error) {
	var (
		user  auth.User
		email sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		select id, username, email, password_hash, created_at
		from users
		where username = $1
	`, username).Scan(&user.ID, &user.Username, &email, &user.PasswordHash, &user.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.User{}, auth.ErrNotFound
	}
	if err != nil {
		return auth.User{}, err
	}
	user.Email = email.String

	if user.Roles, err = s.userRoles(ctx, user.ID); err != nil {
		return auth.User{}, err
	}
	if user.Authorities, err = s.userAuthorities(ctx, user.ID); err != nil {
		return auth.User{}, err
	}
	return user, nil
}

func (s *Store) UsernameExists(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		select exists (select 1 from users where username = $1)
	`, username).Scan(&exists)
	return exists, err
}

// CreateUser inserts the user and its role grants in one transaction.
func (s *Store) CreateUser(ctx context.Context, nu auth.NewUser) (auth.User, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return auth.User{}, err
	}
	defer func() { _ = tx.Rollback() }()

	user := auth.User{Username: nu.Username, Email: nu.Email}
	err = tx.QueryRowContext(ctx, `
		insert into users (username, email, password_hash)
		values ($1, $2, $3)
		returning id, created_at
	`, nu.Username, nullIfEmpty(nu.Email), nu.PasswordHash).Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		if isPgCode(err, pgErrUniqueViolation) {
			return auth.User{}, auth.ErrConflict
		}
		return auth.User{}, err
	}

	for _, roleID := range nu.RoleIDs {
		if _, err := tx.ExecContext(ctx, `
			insert into user_roles (user_id, role_id) values ($1, $2)
		`, user.ID, roleID); err != nil {
			if isPgCode(err, pgErrForeignKeyViolation) {
				return auth.User{}, auth.ErrInvalidInput
			}
			return auth.User{}, err
		}
		user.Roles = append(user.Roles, auth.Role{ID: roleID})
	}

	if err := tx.Commit(); err != nil {
		return auth.User{}, err
	}
	return user, nil
}

func (s *Store) userRoles(ctx context.Context, userID int64) ([]auth.Role, error) {
	rows, err := s.db.QueryContext(ctx, `
		select r.id, r.name
		from user_roles ur
		join roles r on r.id = ur.role_id
		where ur.user_id = $1
		order by r.id
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []auth.Role
	index := map[int64]int{}
	for rows.Next() {
		var r auth.Role
		if err := rows.Scan(&r.ID, &r.Name); err != nil {
			return nil, err
		}
		index[r.ID] = len(roles)
		roles = append(roles, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(roles) == 0 {
		return nil, nil
	}

	grants, err := s.db.QueryContext(ctx, `
		select ra.role_id, a.id, a.name
		from user_roles ur
		join role_authorities ra on ra.role_id = ur.role_id
		join authorities a on a.id = ra.authority_id
		where ur.user_id = $1
		order by ra.role_id, a.id
	`, userID)
	if err != nil {
		return nil, err
	}
	defer grants.Close()

	for grants.Next() {
		var (
			roleID int64
			a      auth.Authority
		)
		if err := grants.Scan(&roleID, &a.ID, &a.Name); err != nil {
			return nil, err
		}
		if i, ok := index[roleID]; ok {
			roles[i].Authorities = append(roles[i].Authorities, a)
		}
	}
	return roles, grants.Err()
}

func (s *Store) userAuthorities(ctx context.Context, userID int64) ([]auth.Authority, error) {
	rows, err := s.db.QueryContext(ctx, `
		select a.id, a.name
		from user_authorities ua
		join authorities a on a.id = ua.authority_id
		where ua.user_id = $1
		order by a.id
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []auth.Authority
	for rows.Next() {
		var a auth.Authority
		if err := rows.Scan(&a.ID, &a.Name); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Roles ---------------------------------------------------------------------

// FindRolesByIDs returns the roles that exist among ids; unknown ids are
// silently absent so callers can compare lengths.
func (s *Store) FindRolesByIDs(ctx context.Context, roleIDs []int64) ([]auth.Role, error) {
	if len(roleIDs) == 0 {
		return nil, nil
	}
	args := make([]any, len(roleIDs))
	for i, id := range roleIDs {
		args[i] = id
	}
	rows, err := s.db.QueryContext(ctx, `
		select id, name
		from roles
		where id in (`+placeholders(1, len(roleIDs))+`)
		order by id
	`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []auth.Role
	for rows.Next() {
		var r auth.Role
		if err := rows.Scan(&r.ID, &r.Name); err != nil {
			return nil, err
		}
		roles = append(roles, r)
	}
	return roles, rows.Err()
}

// Permissions ---------------------------------------------------------------

// ListPermissions returns the service's permissions with role and authority
// names resolved, in id order.
func (s *Store) ListPermissions(ctx context.Context, service string) ([]auth.Permission, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, service_name, url_pattern
		from permissions
		where service_name = $1
		order by id
	`, service)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var perms []auth.Permission
	index := map[int64]int{}
	for rows.Next() {
		var p auth.Permission
		if err := rows.Scan(&p.ID, &p.Service, &p.Pattern); err != nil {
			return nil, err
		}
		index[p.ID] = len(perms)
		perms = append(perms, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(perms) == 0 {
		return nil, nil
	}

	err = s.eachGrant(ctx, `
		select pr.permission_id, r.name
		from permission_roles pr
		join roles r on r.id = pr.role_id
		join permissions p on p.id = pr.permission_id
		where p.service_name = $1
		order by pr.permission_id, r.name
	`, service, func(permID int64, name string) {
		if i, ok := index[permID]; ok {
			perms[i].Roles = append(perms[i].Roles, name)
		}
	})
	if err != nil {
		return nil, err
	}

	err = s.eachGrant(ctx, `
		select pa.permission_id, a.name
		from permission_authorities pa
		join authorities a on a.id = pa.authority_id
		join permissions p on p.id = pa.permission_id
		where p.service_name = $1
		order by pa.permission_id, a.name
	`, service, func(permID int64, name string) {
		if i, ok := index[permID]; ok {
			perms[i].Authorities = append(perms[i].Authorities, name)
		}
	})
	if err != nil {
		return nil, err
	}
	return perms, nil
}

func (s *Store) eachGrant(ctx context.Context, query, service string, fn func(permID int64, name string)) error {
	rows, err := s.db.QueryContext(ctx, query, service)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			id   int64
			name string
		)
		if err := rows.Scan(&id, &name); err != nil {
			return err
		}
		fn(id, name)
	}
	return rows.Err()
}
