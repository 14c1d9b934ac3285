package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"storefront.dev/internal/audit"
	"storefront.dev/internal/auth"
	"storefront.dev/internal/obs"
)

const (
	stageRateLimit     = "rate-limit"
	stageTokenCheck    = "token-validation"
	stageCredentials   = "credential-authentication"
	stageTokenIssuance = "token-issuance"
	stageAuthorization = "authorization"
)

type ctxKey int

const authenticatedUserKey ctxKey = iota

func contextWithUser(ctx context.Context, u auth.User) context.Context {
	return context.WithValue(ctx, authenticatedUserKey, u)
}

func userFromContext(ctx context.Context) (auth.User, bool) {
	u, ok := ctx.Value(authenticatedUserKey).(auth.User)
	return u, ok
}

// Security holds the collaborators of the service security filters. An
// empty LoginPath disables the login stages; only the user service sets it.
type Security struct {
	Auth           *auth.Service
	Policy         *auth.Policy
	LoginPath      string
	CookieName     string
	Limiter        *IPLimiter
	TrustedProxies []string
}

// Filters returns the security stages in execution order.
func (s *Security) Filters() []Filter {
	return []Filter{
		{Name: stageRateLimit, Applies: s.isLogin, Handle: s.rateLimit},
		{Name: stageTokenCheck, Applies: s.isNotLogin, Handle: s.validateToken},
		{Name: stageCredentials, Applies: s.isLogin, Handle: s.authenticateCredentials},
		{Name: stageTokenIssuance, Applies: s.isLogin, Handle: s.issueToken},
		{Name: stageAuthorization, Applies: s.isNotLogin, Handle: s.authorize},
	}
}

func (s *Security) isLogin(r *http.Request) bool {
	return s.LoginPath != "" && r.Method == http.MethodPost && r.URL.Path == s.LoginPath
}

// Login requests end at token issuance; the policy never sees them.
func (s *Security) isNotLogin(r *http.Request) bool { return !s.isLogin(r) }

func (s *Security) rateLimit(w http.ResponseWriter, r *http.Request) (*http.Request, bool) {
	if s.Limiter == nil || s.Limiter.Allow(clientIP(r, s.TrustedProxies)) {
		return r, true
	}
	obs.RecordAuth(stageRateLimit, "limited")
	w.Header().Set("Retry-After", "1")
	writeError(w, r, http.StatusTooManyRequests, "rate limit exceeded")
	return nil, false
}

func (s *Security) validateToken(w http.ResponseWriter, r *http.Request) (*http.Request, bool) {
	token, ok := auth.TokenFromRequest(r, s.CookieName)
	if !ok {
		obs.RecordAuth(stageTokenCheck, "anonymous")
		return r, true
	}
	principal, err := s.Auth.VerifyToken(r.Context(), token)
	if err != nil {
		if errors.Is(err, auth.ErrStoreUnavailable) {
			obs.RecordAuth(stageTokenCheck, "unavailable")
			writeServiceError(w, r, err)
			return nil, false
		}
		message, reason := "Invalid token", "invalid"
		switch {
		case errors.Is(err, auth.ErrTokenExpired):
			message, reason = "Token expired", "expired"
		case errors.Is(err, auth.ErrTokenRevoked):
			reason = "revoked"
		}
		obs.RecordAuth(stageTokenCheck, reason)
		_ = audit.LogEvent(r.Context(), audit.EventTokenRejected, map[string]any{"reason": reason, "path": r.URL.Path})
		writeError(w, r, http.StatusUnauthorized, message)
		return nil, false
	}
	obs.RecordAuth(stageTokenCheck, "valid")
	ctx := auth.ContextWithPrincipal(r.Context(), principal)
	ctx = auth.ContextWithToken(ctx, token)
	return r.WithContext(ctx), true
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Security) authenticateCredentials(w http.ResponseWriter, r *http.Request) (*http.Request, bool) {
	var req loginRequest
	if username, password, ok := r.BasicAuth(); ok {
		req = loginRequest{Username: username, Password: password}
	} else if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return nil, false
	}

	user, err := s.Auth.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrCredentialMismatch) {
			obs.RecordAuth(stageCredentials, "mismatch")
			_ = audit.LogEvent(r.Context(), audit.EventLoginFailed, map[string]any{"username": strings.TrimSpace(req.Username)})
			writeError(w, r, http.StatusUnauthorized, "Invalid username or password")
			return nil, false
		}
		obs.RecordAuth(stageCredentials, "error")
		writeServiceError(w, r, err)
		return nil, false
	}
	obs.RecordAuth(stageCredentials, "authenticated")
	return r.WithContext(contextWithUser(r.Context(), user)), true
}

func (s *Security) issueToken(w http.ResponseWriter, r *http.Request) (*http.Request, bool) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "Invalid username or password")
		return nil, false
	}
	principal := user.Principal()
	token, err := s.Auth.IssueToken(principal)
	if err != nil {
		obs.RecordAuth(stageTokenIssuance, "error")
		writeServiceError(w, r, err)
		return nil, false
	}
	auth.AttachToken(w, s.CookieName, token)
	obs.RecordAuth(stageTokenIssuance, "issued")

	ctx := auth.ContextWithPrincipal(r.Context(), principal)
	ctx = auth.ContextWithToken(ctx, token)
	_ = audit.LogEvent(ctx, audit.EventLoginSucceeded, map[string]any{"authorities": principal.Authorities})
	return r.WithContext(ctx), true
}

func (s *Security) authorize(w http.ResponseWriter, r *http.Request) (*http.Request, bool) {
	if s.Policy == nil {
		return r, true
	}
	var principal *auth.Principal
	if p, ok := auth.PrincipalFromContext(r.Context()); ok {
		principal = &p
	}
	decision := s.Policy.Decide(r.URL.Path, principal)
	obs.RecordAuth(stageAuthorization, decision.String())
	switch decision {
	case auth.Unauthenticated:
		writeError(w, r, http.StatusUnauthorized, "Full authentication is required to access this resource")
		return nil, false
	case auth.Forbidden:
		writeError(w, r, http.StatusForbidden, "Access Denied")
		return nil, false
	}
	return r, true
}

// IPLimiter is a token bucket per client IP. Idle buckets are swept lazily.
type IPLimiter struct {
	mu        sync.Mutex
	buckets   map[string]*bucket
	limit     rate.Limit
	burst     int
	ttl       time.Duration
	lastSweep time.Time
	now       func() time.Time
}

type bucket struct {
	lim  *rate.Limiter
	seen time.Time
}

func NewIPLimiter(burst, perSecond int) *IPLimiter {
	if burst <= 0 {
		burst = 1
	}
	if perSecond <= 0 {
		perSecond = 1
	}
	return &IPLimiter{
		buckets: make(map[string]*bucket),
		limit:   rate.Limit(perSecond),
		burst:   burst,
		ttl:     5 * time.Minute,
		now:     time.Now,
	}
}

func (l *IPLimiter) Allow(ip string) bool {
	if ip == "" {
		ip = "unknown"
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) > time.Minute {
		for k, b := range l.buckets {
			if now.Sub(b.seen) > l.ttl {
				delete(l.buckets, k)
			}
		}
		l.lastSweep = now
	}
	b, ok := l.buckets[ip]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[ip] = b
	}
	b.seen = now
	return b.lim.AllowN(now, 1)
}
