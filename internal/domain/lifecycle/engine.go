// Package lifecycle holds the subscription state machine. Every function is
// pure: callers load a subscription, ask the engine, and persist what it returns.
package lifecycle

import (
	"time"

	"sports-tips-subscription/internal/domain"
	"sports-tips-subscription/internal/domain/model"
)

const day = 24 * time.Hour

// DefaultWarningDays is how close to expiry a subscription counts as EXPIRING.
const DefaultWarningDays = 3

// Engine derives subscription states and applies lifecycle transitions. It
// holds only the warning threshold and is safe for concurrent use.
type Engine struct {
	warning time.Duration
}

// NewEngine builds an engine; warningDays <= 0 falls back to DefaultWarningDays.
func NewEngine(warningDays int) *Engine {
	if warningDays <= 0 {
		warningDays = DefaultWarningDays
	}
	return &Engine{warning: time.Duration(warningDays) * day}
}

// FreezeCredit is the frozen time credited back to the current window.
// Documents that carry an accumulated credit use it; older ones fall back
// to the latest [FreezeStart, FreezeEnd] interval.
func FreezeCredit(sub *model.Subscription) time.Duration {
	if sub.FreezeCredit > 0 {
		return sub.FreezeCredit
	}
	if sub.FreezeStart == nil || sub.FreezeEnd == nil {
		return 0
	}
	if d := sub.FreezeEnd.Sub(*sub.FreezeStart); d > 0 {
		return d
	}
	return 0
}

// ExpiresAt = active start + duration + freeze credit.
func (e *Engine) ExpiresAt(sub *model.Subscription) time.Time {
	return sub.ActiveStart().
		Add(time.Duration(sub.DurationDays) * day).
		Add(FreezeCredit(sub))
}

// DaysLeft may be negative once the window has passed.
func (e *Engine) DaysLeft(sub *model.Subscription, now time.Time) float64 {
	return float64(e.ExpiresAt(sub).Sub(now)) / float64(day)
}

// ComputeStatus derives the state at now. Explicit invalidation wins over
// freeze, and freeze wins over elapsed time.
func (e *Engine) ComputeStatus(sub *model.Subscription, now time.Time) model.SubscriptionState {
	if !sub.IsValid {
		return model.SubscriptionStateExpired
	}
	if sub.IsFreeze {
		return model.SubscriptionStateFrozen
	}
	left := e.ExpiresAt(sub).Sub(now)
	switch {
	case left <= 0:
		return model.SubscriptionStateExpired
	case left <= e.warning:
		return model.SubscriptionStateExpiring
	default:
		return model.SubscriptionStateActive
	}
}

// NeedsInvalidation reports whether sub is still flagged valid but its window
// has run out, i.e. whether the caller owes an isValid=false write-back.
func (e *Engine) NeedsInvalidation(sub *model.Subscription, now time.Time) bool {
	return sub.IsValid && e.ComputeStatus(sub, now) == model.SubscriptionStateExpired
}

// Freeze pauses the subscription at now.
func (e *Engine) Freeze(sub *model.Subscription, now time.Time) (*model.Subscription, error) {
	if sub.IsFreeze {
		return nil, domain.ErrAlreadyFrozen
	}
	if !sub.IsValid {
		return nil, domain.ErrExpiredSubscription
	}
	out := sub.Clone()
	out.FreezeCredit = FreezeCredit(sub)
	out.IsFreeze = true
	out.FreezeStart = &now
	out.FreezeEnd = nil
	return out, nil
}

// Unfreeze resumes the subscription at now and credits the frozen interval.
func (e *Engine) Unfreeze(sub *model.Subscription, now time.Time) (*model.Subscription, error) {
	if !sub.IsFreeze {
		return nil, domain.ErrNotFrozen
	}
	out := sub.Clone()
	out.IsFreeze = false
	out.FreezeEnd = &now
	if sub.FreezeStart != nil {
		if d := now.Sub(*sub.FreezeStart); d > 0 {
			out.FreezeCredit += d
		}
	}
	return out, nil
}

// Renew grants a fresh full window starting at now. Freeze bookkeeping from
// the previous window is discarded so it cannot extend the new one.
func (e *Engine) Renew(sub *model.Subscription, t model.SubscriptionType, durationDays int, now time.Time) (*model.Subscription, error) {
	if durationDays <= 0 || durationDays > model.MaxDurationDays {
		return nil, domain.ErrInvalidArgument
	}
	norm, err := t.Normalize()
	if err != nil {
		return nil, err
	}
	out := sub.Clone()
	out.Type = norm
	out.DurationDays = durationDays
	out.IsValid = true
	out.IsFreeze = false
	out.FreezeStart = nil
	out.FreezeEnd = nil
	out.FreezeCredit = 0
	out.UpdatedAt = &now
	return out, nil
}

// Expire marks the subscription invalid. Applying it twice is a no-op.
func (e *Engine) Expire(sub *model.Subscription) *model.Subscription {
	out := sub.Clone()
	out.IsValid = false
	return out
}
