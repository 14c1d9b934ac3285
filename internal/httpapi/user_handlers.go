package httpapi

import (
	"net/http"

	"storefront.dev/internal/audit"
	"storefront.dev/internal/auth"
)

// userDTO never carries the password hash.
type userDTO struct {
	ID          int64    `json:"id"`
	Username    string   `json:"username"`
	Email       string   `json:"email,omitempty"`
	Authorities []string `json:"authorities"`
}

func (a *API) routeUsers() {
	a.mux.HandleFunc("POST "+a.opts.LoginPath, a.login)
	a.mux.HandleFunc("POST /user/signup", a.signup)
	a.mux.HandleFunc("POST /user/logout", a.logout)
	a.mux.HandleFunc("GET /user/status", a.status)
	a.mux.HandleFunc("GET /user/env", a.env)
}

// login runs after the credential and token-issuance filters; the cookie is
// already set.
func (a *API) login(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "Invalid username or password")
		return
	}
	writeSuccess(w, http.StatusOK, "Login successful", userDTO{
		ID:          user.ID,
		Username:    user.Username,
		Email:       user.Email,
		Authorities: user.GrantedAuthorities(),
	})
}

func (a *API) signup(w http.ResponseWriter, r *http.Request) {
	var req auth.SignupRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	roles, err := a.opts.Auth.ValidateSignup(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	user, err := a.opts.Auth.Register(r.Context(), req, roles)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), audit.EventSignupCreated, map[string]any{"user_id": user.ID, "username": user.Username})
	writeSuccess(w, http.StatusCreated, "User created successfully", userDTO{
		ID:          user.ID,
		Username:    user.Username,
		Email:       user.Email,
		Authorities: user.GrantedAuthorities(),
	})
}

// logout clears the cookie and, when revocation is configured, denies the
// token for the rest of its lifetime.
func (a *API) logout(w http.ResponseWriter, r *http.Request) {
	if p, ok := auth.PrincipalFromContext(r.Context()); ok {
		if err := a.opts.Auth.Revoke(r.Context(), p); err != nil {
			writeServiceError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), audit.EventLogout, nil)
	}
	auth.ClearToken(w, a.opts.CookieName)
	writeSuccess(w, http.StatusOK, "Logout successful", nil)
}
