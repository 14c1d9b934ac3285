package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// SignupRequest is the body accepted by the signup endpoint.
type SignupRequest struct {
	Username string  `json:"username" validate:"required"`
	Password string  `json:"password" validate:"required"`
	RoleIDs  []int64 `json:"roles" validate:"min=1"`
	Email    string  `json:"email"`
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func signupValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

var signupMessages = map[string]string{
	"Username": "Username must not be empty",
	"Password": "Password must not be empty",
	"RoleIDs":  "User must have at least one role",
}

// ValidateSignup checks a signup before anything is persisted and returns
// the resolved roles. Every failure wraps ErrInvalidInput, except a taken
// username which wraps ErrConflict.
func (s *Service) ValidateSignup(ctx context.Context, req SignupRequest) ([]Role, error) {
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	if strings.TrimSpace(req.Password) == "" {
		req.Password = ""
	}

	if err := signupValidator().Struct(req); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			msg, ok := signupMessages[fieldErrs[0].StructField()]
			if !ok {
				msg = fieldErrs[0].Error()
			}
			return nil, fmt.Errorf("%w: %s", ErrInvalidInput, msg)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	roles, err := s.store.FindRolesByIDs(ctx, dedupeIDs(req.RoleIDs))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if len(roles) != len(dedupeIDs(req.RoleIDs)) {
		return nil, fmt.Errorf("%w: Invalid authority supplied", ErrInvalidInput)
	}

	exists, err := s.store.UsernameExists(ctx, req.Username)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if exists {
		return nil, fmt.Errorf("%w: Username already exists", ErrConflict)
	}

	if req.Email != "" {
		if err := signupValidator().Var(req.Email, "email"); err != nil {
			return nil, fmt.Errorf("%w: Email is invalid", ErrInvalidInput)
		}
	}
	return roles, nil
}

func dedupeIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
