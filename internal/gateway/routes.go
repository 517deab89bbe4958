package gateway

import (
	"errors"
	"fmt"
	"strings"

	"campus-gateway/internal/model"
)

// RewriteFunc maps an inbound path to the path sent to the target.
type RewriteFunc func(path string) string

// IdentityRewrite forwards the path unchanged.
func IdentityRewrite(path string) string {
	return path
}

// PrefixRewrite replaces a leading from with to. Paths without the prefix pass
// through unchanged.
func PrefixRewrite(from string, to string) RewriteFunc {
	return func(path string) string {
		rest, ok := strings.CutPrefix(path, from)
		if !ok {
			return path
		}
		out := to + rest
		if out == "" {
			return "/"
		}
		return out
	}
}

type RouteRule struct {
	Name         string
	PathPrefix   string
	RequiresAuth bool
	// AllowedRoles is only consulted when RequiresAuth is set. Empty means any
	// authenticated role.
	AllowedRoles model.RoleSet
	Target       string
	Rewrite      RewriteFunc
}

// Matches reports whether path equals the prefix or continues it at a segment
// boundary, so /api/briefs matches /api/briefs/7 but not /api/briefsX.
func (r RouteRule) Matches(path string) bool {
	if !strings.HasPrefix(path, r.PathPrefix) {
		return false
	}
	if len(path) == len(r.PathPrefix) || strings.HasSuffix(r.PathPrefix, "/") {
		return true
	}
	return path[len(r.PathPrefix)] == '/'
}

// RoutingTable is an ordered, immutable rule list. The first matching rule in
// declaration order wins.
type RoutingTable struct {
	rules []RouteRule
}

// NewRoutingTable validates rules against the known target names. Rules are
// copied; later changes to the argument do not affect the table.
func NewRoutingTable(targets []string, rules ...RouteRule) (*RoutingTable, error) {
	known := make(map[string]struct{}, len(targets))
	for _, t := range targets {
		known[t] = struct{}{}
	}

	var errs []error
	names := map[string]struct{}{}
	copied := make([]RouteRule, 0, len(rules))

	for i, rule := range rules {
		label := rule.Name
		if label == "" {
			label = fmt.Sprintf("#%d", i)
		} else if _, dup := names[rule.Name]; dup {
			errs = append(errs, fmt.Errorf("rule %s: duplicate name", label))
		}
		names[rule.Name] = struct{}{}

		if !strings.HasPrefix(rule.PathPrefix, "/") {
			errs = append(errs, fmt.Errorf("rule %s: path prefix %q must start with /", label, rule.PathPrefix))
		}
		if _, ok := known[rule.Target]; !ok {
			errs = append(errs, fmt.Errorf("rule %s: unknown target %q", label, rule.Target))
		}
		if !rule.RequiresAuth && !rule.AllowedRoles.Empty() {
			errs = append(errs, fmt.Errorf("rule %s: roles require authentication", label))
		}
		for _, role := range rule.AllowedRoles {
			if !role.Valid() {
				errs = append(errs, fmt.Errorf("rule %s: unknown role %q", label, role))
			}
		}

		if rule.Rewrite == nil {
			rule.Rewrite = IdentityRewrite
		}
		rule.AllowedRoles = model.NewRoleSet(rule.AllowedRoles...)
		copied = append(copied, rule)
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return &RoutingTable{rules: copied}, nil
}

func (t *RoutingTable) Resolve(path string) (RouteRule, bool) {
	for _, rule := range t.rules {
		if rule.Matches(path) {
			return rule, true
		}
	}
	return RouteRule{}, false
}

func (t *RoutingTable) Rewrite(rule RouteRule, path string) string {
	if rule.Rewrite == nil {
		return path
	}
	return rule.Rewrite(path)
}

func (t *RoutingTable) Rules() []RouteRule {
	out := make([]RouteRule, len(t.rules))
	copy(out, t.rules)
	return out
}

// Shadow describes a rule that can never be selected because an earlier rule
// matches every path it would.
type Shadow struct {
	Rule     string
	ShadowBy string
}

func (t *RoutingTable) Shadowed() []Shadow {
	var out []Shadow
	for i, later := range t.rules {
		for _, earlier := range t.rules[:i] {
			if earlier.Matches(later.PathPrefix) {
				out = append(out, Shadow{Rule: later.Name, ShadowBy: earlier.Name})
				break
			}
		}
	}
	return out
}
