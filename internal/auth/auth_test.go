package auth

import (
	"errors"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func newTestCodec(t *testing.T, opts ...CodecOption) *Codec {
	t.Helper()
	c, err := NewCodec(testSecret, opts...)
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	return c
}

func TestNewCodecRejectsWeakSecret(t *testing.T) {
	if _, err := NewCodec(""); err == nil {
		t.Fatal("expected error for empty secret")
	}
	if _, err := NewCodec("short"); err == nil {
		t.Fatal("expected error for short secret")
	}
	if _, err := NewCodec(testSecret, WithTokenTTL(0)); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for zero ttl, got %v", err)
	}
}

func TestIssueAndVerifyRoundTrip(t *testing.T) {
	codec := newTestCodec(t)

	token, err := codec.Issue("alice", []string{"product.read", "ROLE_ADMIN", "product.read", " "})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	claims, err := codec.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.Username != "alice" {
		t.Fatalf("unexpected username: %s", claims.Username)
	}
	want := []string{"ROLE_ADMIN", "product.read"}
	if !slices.Equal(claims.Authorities, want) {
		t.Fatalf("authorities = %v, want %v", claims.Authorities, want)
	}
	if claims.ID == "" {
		t.Fatal("expected token id")
	}
	if got := claims.ExpiresAt.Sub(claims.IssuedAt); got != DefaultTokenTTL {
		t.Fatalf("ttl = %s, want %s", got, DefaultTokenTTL)
	}
}

func TestIssueCarriesFixedClaims(t *testing.T) {
	codec := newTestCodec(t, WithIssuer("edge"))
	token, err := codec.Issue("bob", []string{"b", "a"})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	var claims Claims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		t.Fatalf("ParseUnverified: %v", err)
	}
	if claims.Subject != TokenSubject || claims.Issuer != "edge" {
		t.Fatalf("unexpected registered claims: sub=%q iss=%q", claims.Subject, claims.Issuer)
	}
	if claims.Authorities != "a,b" {
		t.Fatalf("unexpected authorities claim: %q", claims.Authorities)
	}
}

func TestIssueRejectsInvalidInput(t *testing.T) {
	codec := newTestCodec(t)
	if _, err := codec.Issue("  ", nil); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for empty username, got %v", err)
	}
	if _, err := codec.Issue("alice", []string{"a,b"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for comma in authority, got %v", err)
	}
}

func TestVerifyExpiredToken(t *testing.T) {
	issuedAt := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	issuer := newTestCodec(t, WithClock(fixedClock(issuedAt)), WithTokenTTL(time.Minute))
	token, err := issuer.Issue("alice", nil)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	verifier := newTestCodec(t, WithClock(fixedClock(issuedAt.Add(2*time.Minute))))
	_, err = verifier.Verify(token)
	if !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
	if errors.Is(err, ErrTokenInvalid) {
		t.Fatal("expired token must not classify as invalid")
	}
	var tokErr *TokenError
	if !errors.As(err, &tokErr) || tokErr.Reason != FailureExpired {
		t.Fatalf("expected expired TokenError, got %#v", err)
	}
}

func TestVerifyExpiredWinsOverForeignSignature(t *testing.T) {
	issuedAt := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	foreign, err := NewCodec(strings.Repeat("z", 40), WithClock(fixedClock(issuedAt)), WithTokenTTL(time.Minute))
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	token, err := foreign.Issue("mallory", nil)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	verifier := newTestCodec(t, WithClock(fixedClock(issuedAt.Add(time.Hour))))
	if _, err := verifier.Verify(token); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestVerifyForeignSecret(t *testing.T) {
	foreign, err := NewCodec(strings.Repeat("x", 40))
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	token, err := foreign.Issue("mallory", []string{"ROLE_ADMIN"})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	_, err = newTestCodec(t).Verify(token)
	if !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
	var tokErr *TokenError
	if !errors.As(err, &tokErr) || tokErr.Reason != FailureInvalidSignature {
		t.Fatalf("expected invalid signature reason, got %#v", err)
	}
}

func TestVerifyMalformedToken(t *testing.T) {
	codec := newTestCodec(t)
	for _, token := range []string{"", "not-a-token", "a.b.c"} {
		_, err := codec.Verify(token)
		var tokErr *TokenError
		if !errors.As(err, &tokErr) || tokErr.Reason != FailureMalformed {
			t.Fatalf("Verify(%q): expected malformed, got %v", token, err)
		}
		if !errors.Is(err, ErrTokenInvalid) {
			t.Fatalf("Verify(%q): malformed should classify as invalid", token)
		}
	}
}

func TestVerifyRejectsOtherAlgorithms(t *testing.T) {
	now := time.Now()
	claims := Claims{
		Username: "alice",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    DefaultIssuer,
			Subject:   TokenSubject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := newTestCodec(t).Verify(token); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid for HS512, got %v", err)
	}
}

func TestVerifyRejectsWrongIssuer(t *testing.T) {
	other := newTestCodec(t, WithIssuer("someone-else"))
	token, err := other.Issue("alice", nil)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := newTestCodec(t).Verify(token); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid for foreign issuer, got %v", err)
	}
}

func TestSplitAuthorities(t *testing.T) {
	got := SplitAuthorities("b, a ,,b")
	if !slices.Equal(got, []string{"a", "b"}) {
		t.Fatalf("unexpected split: %v", got)
	}
	if SplitAuthorities("  ") != nil {
		t.Fatal("expected nil for empty claim")
	}
}
