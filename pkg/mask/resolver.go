package mask

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidRule is returned when a threshold table cannot be used.
var ErrInvalidRule = errors.New("invalid threshold rule")

// ThresholdRule resolves Identity once at least Min fragments of it are
// equipped.
type ThresholdRule struct {
	Identity IdentityType `json:"identity" yaml:"identity"`
	Min      int          `json:"min" yaml:"min"`
}

// ThresholdTable is an ordered list of rules. Order is significant under
// the DeclarationOrder policy.
type ThresholdTable []ThresholdRule

// DefaultThresholds returns the rule table used by the shipped game.
func DefaultThresholds() ThresholdTable {
	return ThresholdTable{
		{Identity: IdentityDirtyCop, Min: 4},
		{Identity: IdentityDetective, Min: 3},
		{Identity: IdentityJournalist, Min: 2},
		{Identity: IdentityTherapist, Min: 1},
	}
}

// Validate rejects sentinel identities, non-positive minimums and
// duplicate identities.
func (t ThresholdTable) Validate() error {
	seen := make(map[IdentityType]bool, len(t))
	for i, r := range t {
		if !r.Identity.Valid() {
			return fmt.Errorf("%w: rule %d has identity %s", ErrInvalidRule, i, r.Identity)
		}
		if r.Min <= 0 {
			return fmt.Errorf("%w: rule %d (%s) has minimum %d", ErrInvalidRule, i, r.Identity, r.Min)
		}
		if seen[r.Identity] {
			return fmt.Errorf("%w: identity %s listed twice", ErrInvalidRule, r.Identity)
		}
		seen[r.Identity] = true
	}
	return nil
}

// PriorityPolicy decides which rule wins when several thresholds are met.
type PriorityPolicy string

const (
	// PolicyDeclarationOrder picks the first satisfied rule in table order.
	PolicyDeclarationOrder PriorityPolicy = "declaration"
	// PolicyHighestThreshold picks the satisfied rule with the largest Min.
	PolicyHighestThreshold PriorityPolicy = "highest_threshold"
	// PolicyHighestCount picks the satisfied rule whose identity has the
	// most equipped fragments.
	PolicyHighestCount PriorityPolicy = "highest_count"
)

// ParsePolicy parses a policy name. Empty means PolicyDeclarationOrder.
func ParsePolicy(s string) (PriorityPolicy, error) {
	switch PriorityPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicyDeclarationOrder:
		return PolicyDeclarationOrder, nil
	case PolicyHighestThreshold:
		return PolicyHighestThreshold, nil
	case PolicyHighestCount:
		return PolicyHighestCount, nil
	}
	return "", fmt.Errorf("unknown identity priority policy: %q", s)
}

// Resolver turns tallies into a resolved identity and emotion set.
type Resolver struct {
	rules  ThresholdTable
	policy PriorityPolicy
}

// NewResolver validates rules and returns a resolver using policy.
func NewResolver(rules ThresholdTable, policy PriorityPolicy) (*Resolver, error) {
	if err := rules.Validate(); err != nil {
		return nil, err
	}
	if policy == "" {
		policy = PolicyDeclarationOrder
	}
	if _, err := ParsePolicy(string(policy)); err != nil {
		return nil, err
	}
	return &Resolver{
		rules:  append(ThresholdTable(nil), rules...),
		policy: policy,
	}, nil
}

// DefaultResolver uses DefaultThresholds in declaration order.
func DefaultResolver() *Resolver {
	return &Resolver{rules: DefaultThresholds(), policy: PolicyDeclarationOrder}
}

// Rules returns a copy of the rule table.
func (r *Resolver) Rules() ThresholdTable {
	return append(ThresholdTable(nil), r.rules...)
}

// Policy returns the active priority policy.
func (r *Resolver) Policy() PriorityPolicy {
	return r.policy
}

// ResolveIdentity returns the winning identity or IdentityNone when no rule
// is satisfied. Ties under the ranking policies fall back to table order.
func (r *Resolver) ResolveIdentity(counts map[IdentityType]int) IdentityType {
	best := -1
	for i, rule := range r.rules {
		if counts[rule.Identity] < rule.Min {
			continue
		}
		if r.policy == PolicyDeclarationOrder {
			return rule.Identity
		}
		if best < 0 || r.outranks(rule, r.rules[best], counts) {
			best = i
		}
	}
	if best < 0 {
		return IdentityNone
	}
	return r.rules[best].Identity
}

func (r *Resolver) outranks(a, b ThresholdRule, counts map[IdentityType]int) bool {
	switch r.policy {
	case PolicyHighestThreshold:
		return a.Min > b.Min
	case PolicyHighestCount:
		return counts[a.Identity] > counts[b.Identity]
	}
	return false
}

// ResolveEmotions returns every emotion with a positive count, in canonical
// order. Presence matters, not magnitude.
func ResolveEmotions(counts map[EmotionType]int) []EmotionType {
	var out []EmotionType
	for _, e := range Emotions() {
		if counts[e] > 0 {
			out = append(out, e)
		}
	}
	return out
}

// CapEmotions keeps at most n emotions after sorting into canonical order.
func CapEmotions(emotions []EmotionType, n int) []EmotionType {
	counts := make(map[EmotionType]int, len(emotions))
	for _, e := range emotions {
		counts[e]++
	}
	var out []EmotionType
	for _, e := range Emotions() {
		for i := 0; i < counts[e] && len(out) < n; i++ {
			out = append(out, e)
		}
	}
	return out
}

// Resolve aggregates fragments and resolves the resulting state.
func (r *Resolver) Resolve(fragments []Fragment) State {
	c := Aggregate(fragments)
	return State{
		Identity:       r.ResolveIdentity(c.Identities),
		Emotions:       ResolveEmotions(c.Emotions),
		IdentityCounts: c.Identities,
		EmotionCounts:  c.Emotions,
	}
}
