package model

import (
	"time"

	"sports-tips-subscription/internal/domain"
)

// SubscriptionState is derived at query time; it is never stored.
type SubscriptionState string

const (
	SubscriptionStateActive   SubscriptionState = "ACTIVE"
	SubscriptionStateExpiring SubscriptionState = "EXPIRING"
	SubscriptionStateFrozen   SubscriptionState = "FROZEN"
	SubscriptionStateExpired  SubscriptionState = "EXPIRED"
)

// AllSubscriptionStates in lifecycle order.
var AllSubscriptionStates = []SubscriptionState{
	SubscriptionStateActive,
	SubscriptionStateExpiring,
	SubscriptionStateFrozen,
	SubscriptionStateExpired,
}

// Bounds on stored windows. They keep expiry arithmetic well inside the
// range of time.Duration.
const (
	MaxDurationDays = 3650
	MaxFreezeCredit = MaxDurationDays * 24 * time.Hour
)

// Subscription grants one user access to one or more prediction tiers for a window
// of DurationDays counted from the active-start reference.
type Subscription struct {
	ID           string           `json:"id"`
	UserID       string           `json:"user"`
	Type         SubscriptionType `json:"subscriptionType"`
	DurationDays int              `json:"duration"`
	IsValid      bool             `json:"isValid"`
	IsFreeze     bool             `json:"isFreeze"`
	FreezeStart  *time.Time       `json:"freezeStart,omitempty"`
	FreezeEnd    *time.Time       `json:"freezeEnd,omitempty"`
	// FreezeCredit is the total frozen time accumulated across completed freeze
	// intervals of the current window. Zero on documents written before it existed.
	FreezeCredit time.Duration `json:"freezeCredit"`
	CreatedAt    time.Time     `json:"createdAt"`
	UpdatedAt    *time.Time    `json:"updatedAt,omitempty"`
}

// NewSubscription validates and constructs a fresh, valid subscription.
// The id may be empty; the store assigns one on creation.
func NewSubscription(id, userID string, t SubscriptionType, durationDays int, now time.Time) (*Subscription, error) {
	if userID == "" || durationDays <= 0 || durationDays > MaxDurationDays {
		return nil, domain.ErrInvalidArgument
	}
	norm, err := t.Normalize()
	if err != nil {
		return nil, err
	}
	return &Subscription{
		ID:           id,
		UserID:       userID,
		Type:         norm,
		DurationDays: durationDays,
		IsValid:      true,
		CreatedAt:    now,
	}, nil
}

// ActiveStart is UpdatedAt when present, CreatedAt otherwise.
func (s *Subscription) ActiveStart() time.Time {
	if s.UpdatedAt != nil && !s.UpdatedAt.IsZero() {
		return *s.UpdatedAt
	}
	return s.CreatedAt
}

// Validate checks the fields the lifecycle engine relies on.
func (s *Subscription) Validate() error {
	if s == nil || s.UserID == "" || s.DurationDays <= 0 || s.DurationDays > MaxDurationDays {
		return domain.ErrMalformedDocument
	}
	if s.FreezeCredit < 0 || s.FreezeCredit > MaxFreezeCredit {
		return domain.ErrMalformedDocument
	}
	if _, err := s.Type.Plans(); err != nil {
		return domain.ErrMalformedDocument
	}
	if s.ActiveStart().IsZero() {
		return domain.ErrMalformedDocument
	}
	return nil
}

// Clone returns a deep copy.
func (s *Subscription) Clone() *Subscription {
	if s == nil {
		return nil
	}
	cp := *s
	cp.FreezeStart = cloneTime(s.FreezeStart)
	cp.FreezeEnd = cloneTime(s.FreezeEnd)
	cp.UpdatedAt = cloneTime(s.UpdatedAt)
	return &cp
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
