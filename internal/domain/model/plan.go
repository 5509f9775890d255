package model

import (
	"sort"
	"strings"

	"sports-tips-subscription/internal/domain"
)

// PlanToken names a single prediction tier.
type PlanToken string

const (
	PlanInvestment PlanToken = "investment"
	PlanVIP        PlanToken = "vip"
	PlanMega       PlanToken = "mega"
)

// PlanAll is the sentinel subscription type granting every tier.
const PlanAll = "all"

// AllPlans lists the tiers in their canonical order.
var AllPlans = []PlanToken{PlanInvestment, PlanVIP, PlanMega}

func (p PlanToken) Valid() bool {
	switch p {
	case PlanInvestment, PlanVIP, PlanMega:
		return true
	}
	return false
}

// SubscriptionType is a plan token, an "&"-joined composite of tokens, or "all".
type SubscriptionType string

// Plans expands the type into the set of tiers it grants, in canonical order.
// Unknown or repeated members yield domain.ErrUnknownPlan.
func (t SubscriptionType) Plans() ([]PlanToken, error) {
	s := strings.ToLower(strings.TrimSpace(string(t)))
	if s == "" {
		return nil, domain.ErrUnknownPlan
	}
	if s == PlanAll {
		out := make([]PlanToken, len(AllPlans))
		copy(out, AllPlans)
		return out, nil
	}
	parts := strings.Split(s, "&")
	if len(parts) > len(AllPlans) {
		return nil, domain.ErrUnknownPlan
	}
	seen := make(map[PlanToken]bool, len(parts))
	out := make([]PlanToken, 0, len(parts))
	for _, part := range parts {
		p := PlanToken(strings.TrimSpace(part))
		if !p.Valid() || seen[p] {
			return nil, domain.ErrUnknownPlan
		}
		seen[p] = true
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return planOrder(out[i]) < planOrder(out[j]) })
	return out, nil
}

// Grants reports whether the type includes plan. Malformed types grant nothing.
func (t SubscriptionType) Grants(plan PlanToken) bool {
	plans, err := t.Plans()
	if err != nil {
		return false
	}
	for _, p := range plans {
		if p == plan {
			return true
		}
	}
	return false
}

// Normalize returns the canonical spelling ("vip&mega", "all", ...).
func (t SubscriptionType) Normalize() (SubscriptionType, error) {
	plans, err := t.Plans()
	if err != nil {
		return "", err
	}
	if len(plans) == len(AllPlans) {
		return PlanAll, nil
	}
	names := make([]string, len(plans))
	for i, p := range plans {
		names[i] = string(p)
	}
	return SubscriptionType(strings.Join(names, "&")), nil
}

func planOrder(p PlanToken) int {
	for i, q := range AllPlans {
		if q == p {
			return i
		}
	}
	return len(AllPlans)
}
