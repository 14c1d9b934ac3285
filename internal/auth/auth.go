package auth

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	// TokenSubject is the fixed subject carried by every issued token.
	TokenSubject = "JWT Token"

	DefaultIssuer   = "storefront"
	DefaultTokenTTL = 30_000_000 * time.Millisecond

	minSecretBytes = 32
)

var errMissingSecret = errors.New("auth: signing secret is not configured")

// Claims is the JWT payload exchanged between gateway and services.
type Claims struct {
	Username    string `json:"username"`
	Authorities string `json:"authorities"`
	jwt.RegisteredClaims
}

// TokenClaims is the verified content of a token.
type TokenClaims struct {
	ID          string
	Username    string
	Authorities []string
	IssuedAt    time.Time
	ExpiresAt   time.Time
}

// Principal converts verified claims into a request principal.
func (c TokenClaims) Principal() Principal {
	return Principal{
		Username:    c.Username,
		Authorities: append([]string(nil), c.Authorities...),
		TokenID:     c.ID,
		ExpiresAt:   c.ExpiresAt,
	}
}

// Codec signs and verifies HS256 tokens with a shared secret.
type Codec struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// CodecOption configures a Codec.
type CodecOption func(*Codec) error

// WithIssuer overrides the issuer claim.
func WithIssuer(issuer string) CodecOption {
	return func(c *Codec) error {
		issuer = strings.TrimSpace(issuer)
		if issuer == "" {
			return fmt.Errorf("%w: issuer is empty", ErrInvalidInput)
		}
		c.issuer = issuer
		return nil
	}
}

// WithTokenTTL overrides how long issued tokens stay valid.
func WithTokenTTL(ttl time.Duration) CodecOption {
	return func(c *Codec) error {
		if ttl <= 0 {
			return fmt.Errorf("%w: ttl must be greater than zero", ErrInvalidInput)
		}
		c.ttl = ttl
		return nil
	}
}

// WithClock replaces the wall clock, mostly for tests.
func WithClock(now func() time.Time) CodecOption {
	return func(c *Codec) error {
		if now != nil {
			c.now = now
		}
		return nil
	}
}

// NewCodec validates the secret and applies options.
func NewCodec(secret string, opts ...CodecOption) (*Codec, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errMissingSecret
	}
	if len(secret) < minSecretBytes {
		return nil, fmt.Errorf("auth: signing secret must be at least %d bytes", minSecretBytes)
	}
	c := &Codec{
		secret: []byte(secret),
		issuer: DefaultIssuer,
		ttl:    DefaultTokenTTL,
		now:    time.Now,
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// TTL returns the lifetime of issued tokens.
func (c *Codec) TTL() time.Duration { return c.ttl }

// Issue signs a token for username carrying the flattened authority names.
func (c *Codec) Issue(username string, authorities []string) (string, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return "", fmt.Errorf("%w: username is required", ErrInvalidInput)
	}
	names := NormalizeAuthorities(authorities)
	for _, name := range names {
		if strings.Contains(name, ",") {
			return "", fmt.Errorf("%w: authority %q contains a comma", ErrInvalidInput, name)
		}
	}

	now := c.now().UTC()
	claims := Claims{
		Username:    username,
		Authorities: strings.Join(names, ","),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.issuer,
			Subject:   TokenSubject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify checks structure, expiry and signature, in that order. A token
// past its expiry is reported expired even when its signature is foreign.
func (c *Codec) Verify(token string) (TokenClaims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return TokenClaims{}, &TokenError{Reason: FailureMalformed, Err: ErrTokenMissing}
	}

	var unverified Claims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &unverified); err != nil {
		return TokenClaims{}, &TokenError{Reason: FailureMalformed, Err: err}
	}
	if unverified.ExpiresAt == nil {
		return TokenClaims{}, &TokenError{Reason: FailureMalformed, Err: errors.New("exp claim missing")}
	}
	if !c.now().Before(unverified.ExpiresAt.Time) {
		return TokenClaims{}, &TokenError{Reason: FailureExpired, Err: jwt.ErrTokenExpired}
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(c.issuer),
		jwt.WithSubject(TokenSubject),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	var claims Claims
	parsed, err := parser.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return c.secret, nil
	})
	if err != nil {
		return TokenClaims{}, classifyParseError(err)
	}
	if !parsed.Valid {
		return TokenClaims{}, &TokenError{Reason: FailureInvalidSignature}
	}
	if strings.TrimSpace(claims.Username) == "" || claims.IssuedAt == nil {
		return TokenClaims{}, &TokenError{Reason: FailureMalformed, Err: errors.New("required claims missing")}
	}

	return TokenClaims{
		ID:          claims.ID,
		Username:    claims.Username,
		Authorities: SplitAuthorities(claims.Authorities),
		IssuedAt:    claims.IssuedAt.Time,
		ExpiresAt:   claims.ExpiresAt.Time,
	}, nil
}

func classifyParseError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return &TokenError{Reason: FailureExpired, Err: err}
	case errors.Is(err, jwt.ErrTokenMalformed),
		errors.Is(err, jwt.ErrTokenInvalidIssuer),
		errors.Is(err, jwt.ErrTokenInvalidSubject),
		errors.Is(err, jwt.ErrTokenRequiredClaimMissing):
		return &TokenError{Reason: FailureMalformed, Err: err}
	default:
		return &TokenError{Reason: FailureInvalidSignature, Err: err}
	}
}

// NormalizeAuthorities trims, deduplicates and sorts authority names.
func NormalizeAuthorities(names []string) []string {
	if len(names) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// SplitAuthorities parses the comma-joined authorities claim.
func SplitAuthorities(joined string) []string {
	if strings.TrimSpace(joined) == "" {
		return nil
	}
	return NormalizeAuthorities(strings.Split(joined, ","))
}
