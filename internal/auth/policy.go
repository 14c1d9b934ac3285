package auth

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"

	"storefront.dev/internal/antpath"
)

// DefaultPolicy decides requests that match no rule. Deny still admits any
// authenticated principal; only anonymous requests are turned away.
type DefaultPolicy string

const (
	DefaultPermit DefaultPolicy = "permit"
	DefaultDeny   DefaultPolicy = "deny"
)

// ParseDefaultPolicy accepts "permit" or "deny"; empty means permit.
func ParseDefaultPolicy(s string) (DefaultPolicy, error) {
	switch DefaultPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", DefaultPermit:
		return DefaultPermit, nil
	case DefaultDeny:
		return DefaultDeny, nil
	}
	return "", fmt.Errorf("%w: unknown default policy %q", ErrInvalidInput, s)
}

// Decision is the outcome of evaluating a request against a Policy.
type Decision int

const (
	Permit Decision = iota
	Unauthenticated
	Forbidden
)

func (d Decision) String() string {
	switch d {
	case Permit:
		return "permit"
	case Unauthenticated:
		return "unauthenticated"
	case Forbidden:
		return "forbidden"
	}
	return "unknown"
}

// Rule gates one URL pattern.
type Rule struct {
	Pattern     string
	Roles       []string
	Authorities []string
}

// Unrestricted reports whether the rule names no roles and no authorities.
func (r Rule) Unrestricted() bool {
	return len(r.Roles) == 0 && len(r.Authorities) == 0
}

// Allows reports whether p holds any required role or any required authority.
func (r Rule) Allows(p Principal) bool {
	if r.Unrestricted() {
		return true
	}
	return p.HasAnyRole(r.Roles...) || p.HasAnyAuthority(r.Authorities...)
}

// Policy is an immutable ordered rule table. It is safe for concurrent use.
type Policy struct {
	rules    []Rule
	public   []string
	fallback DefaultPolicy
}

// PolicyOption configures a Policy.
type PolicyOption func(*Policy)

// WithDefault sets the decision for paths no rule matches.
func WithDefault(d DefaultPolicy) PolicyOption {
	return func(p *Policy) {
		if d != "" {
			p.fallback = d
		}
	}
}

// WithPublicPaths lists patterns that are always permitted.
func WithPublicPaths(patterns ...string) PolicyOption {
	return func(p *Policy) {
		for _, pattern := range patterns {
			if pattern = strings.TrimSpace(pattern); pattern != "" {
				p.public = append(p.public, pattern)
			}
		}
	}
}

// NewPolicy builds a policy from rules in the given order.
func NewPolicy(rules []Rule, opts ...PolicyOption) *Policy {
	p := &Policy{fallback: DefaultPermit}
	for _, r := range rules {
		p.rules = append(p.rules, Rule{
			Pattern:     r.Pattern,
			Roles:       slices.Clone(r.Roles),
			Authorities: slices.Clone(r.Authorities),
		})
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Rules returns a copy of the rule table.
func (p *Policy) Rules() []Rule {
	out := make([]Rule, len(p.rules))
	for i, r := range p.rules {
		out[i] = Rule{Pattern: r.Pattern, Roles: slices.Clone(r.Roles), Authorities: slices.Clone(r.Authorities)}
	}
	return out
}

// Default returns the fallback decision mode.
func (p *Policy) Default() DefaultPolicy { return p.fallback }

// Match returns the first rule whose pattern matches path.
func (p *Policy) Match(path string) (Rule, bool) {
	for _, r := range p.rules {
		if antpath.Match(r.Pattern, path) {
			return r, true
		}
	}
	return Rule{}, false
}

// IsPublic reports whether path is always permitted.
func (p *Policy) IsPublic(path string) bool {
	for _, pattern := range p.public {
		if antpath.Match(pattern, path) {
			return true
		}
	}
	return false
}

// Decide evaluates path for principal, which is nil for anonymous requests.
func (p *Policy) Decide(path string, principal *Principal) Decision {
	if p.IsPublic(path) {
		return Permit
	}
	rule, ok := p.Match(path)
	if !ok {
		if p.fallback == DefaultDeny {
			return requireIdentity(principal, true)
		}
		return Permit
	}
	if rule.Unrestricted() {
		return Permit
	}
	if principal == nil {
		return Unauthenticated
	}
	return requireIdentity(principal, rule.Allows(*principal))
}

func requireIdentity(principal *Principal, allowed bool) Decision {
	if principal == nil {
		return Unauthenticated
	}
	if !allowed {
		return Forbidden
	}
	return Permit
}

// BuildPolicy loads the permissions scoped to service and compiles them.
// Permissions sharing a pattern are merged; permissions that name nothing
// contribute no rule. Literal patterns sort ahead of wildcard ones, longer
// literal prefixes ahead of shorter ones.
func BuildPolicy(ctx context.Context, src PermissionSource, service string, opts ...PolicyOption) (*Policy, error) {
	service = strings.TrimSpace(service)
	if service == "" {
		return nil, fmt.Errorf("%w: service name is required", ErrInvalidInput)
	}
	perms, err := src.ListPermissions(ctx, service)
	if err != nil {
		return nil, fmt.Errorf("load permissions for %s: %w", service, err)
	}

	index := make(map[string]int)
	var rules []Rule
	for _, perm := range perms {
		pattern := strings.TrimSpace(perm.Pattern)
		if pattern == "" {
			continue
		}
		i, ok := index[pattern]
		if !ok {
			i = len(rules)
			index[pattern] = i
			rules = append(rules, Rule{Pattern: pattern})
		}
		rules[i].Roles = append(rules[i].Roles, perm.Roles...)
		rules[i].Authorities = append(rules[i].Authorities, perm.Authorities...)
	}

	compiled := rules[:0]
	for _, r := range rules {
		r.Roles = NormalizeAuthorities(r.Roles)
		r.Authorities = NormalizeAuthorities(r.Authorities)
		if r.Unrestricted() {
			continue
		}
		compiled = append(compiled, r)
	}
	sort.SliceStable(compiled, func(i, j int) bool {
		wi, wj := antpath.HasWildcard(compiled[i].Pattern), antpath.HasWildcard(compiled[j].Pattern)
		if wi != wj {
			return !wi
		}
		return len(antpath.LiteralPrefix(compiled[i].Pattern)) > len(antpath.LiteralPrefix(compiled[j].Pattern))
	})
	return NewPolicy(compiled, opts...), nil
}
