// Package access decides which roles may reach which paths. The same policy
// backs the HTTP gate for API calls and the redirect logic for pages.
package access

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed default_policy.yaml
var defaultPolicy []byte

var (
	ErrEmptyPrefix    = errors.New("rule prefix is required")
	ErrRuleHasNoGrant = errors.New("rule must set roles, authenticated or public")
)

type Reason string

const (
	ReasonNone            Reason = ""
	ReasonUnauthenticated Reason = "unauthenticated"
	ReasonForbidden       Reason = "forbidden"
)

type Decision struct {
	Allowed bool
	Reason  Reason
}

type Rule struct {
	Prefix        string   `yaml:"prefix"`
	Roles         []string `yaml:"roles"`
	Authenticated bool     `yaml:"authenticated"`
	Public        bool     `yaml:"public"`
}

type Policy struct {
	rules []Rule
}

type policyFile struct {
	Rules []Rule `yaml:"rules"`
}

// Default returns the embedded policy.
func Default() *Policy {
	p, err := Parse(defaultPolicy)
	if err != nil {
		panic(fmt.Sprintf("access: embedded policy: %v", err))
	}
	return p
}

// Load reads a policy file, falling back to the embedded one when path is empty.
func Load(path string) (*Policy, error) {
	if path == "" {
		return Default(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy %s: %w", path, err)
	}
	return Parse(raw)
}

func Parse(raw []byte) (*Policy, error) {
	var f policyFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse policy: %w", err)
	}
	return New(f.Rules...)
}

func New(rules ...Rule) (*Policy, error) {
	cleaned := make([]Rule, 0, len(rules))
	for i, r := range rules {
		r.Prefix = "/" + strings.Trim(strings.TrimSpace(r.Prefix), "/")
		if r.Prefix == "/" && strings.TrimSpace(rules[i].Prefix) == "" {
			return nil, fmt.Errorf("rule %d: %w", i, ErrEmptyPrefix)
		}
		if len(r.Roles) == 0 && !r.Authenticated && !r.Public {
			return nil, fmt.Errorf("rule %d (%s): %w", i, r.Prefix, ErrRuleHasNoGrant)
		}
		for j, role := range r.Roles {
			r.Roles[j] = strings.ToUpper(strings.TrimSpace(role))
		}
		cleaned = append(cleaned, r)
	}
	sort.SliceStable(cleaned, func(i, j int) bool {
		return len(cleaned[i].Prefix) > len(cleaned[j].Prefix)
	})
	return &Policy{rules: cleaned}, nil
}

func (p *Policy) match(path string) (Rule, bool) {
	path = "/" + strings.Trim(path, "/")
	for _, r := range p.rules {
		if r.Prefix == "/" || path == r.Prefix || strings.HasPrefix(path, r.Prefix+"/") {
			return r, true
		}
	}
	return Rule{}, false
}

// Decide evaluates roles (empty for anonymous visitors) against path.
func (p *Policy) Decide(roles []string, path string) Decision {
	rule, ok := p.match(path)
	if !ok || rule.Public {
		return Decision{Allowed: true}
	}
	if len(roles) == 0 {
		return Decision{Reason: ReasonUnauthenticated}
	}
	if rule.Authenticated && len(rule.Roles) == 0 {
		return Decision{Allowed: true}
	}
	for _, have := range roles {
		for _, want := range rule.Roles {
			if strings.EqualFold(have, want) {
				return Decision{Allowed: true}
			}
		}
	}
	return Decision{Reason: ReasonForbidden}
}

// CanAccess reports whether a single role may open path. An empty role is an
// anonymous visitor.
func (p *Policy) CanAccess(role, path string) bool {
	var roles []string
	if role != "" {
		roles = []string{role}
	}
	return p.Decide(roles, path).Allowed
}
