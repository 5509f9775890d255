// Package document maps typed entities onto the generic DocumentStore.
// Stores hand back whatever their wire format produced (float64 numbers from
// JSON, epoch millis from Firebase, RFC3339 strings from our own writes), so
// decoding coerces each field and rejects what cannot be coerced.
package document

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"sports-tips-subscription/internal/domain"
	"sports-tips-subscription/internal/domain/model"
)

// Subscription document fields.
const (
	fieldUser           = "user"
	fieldType           = "subscriptionType"
	fieldDuration       = "duration"
	fieldIsValid        = "isValid"
	fieldIsFreeze       = "isFreeze"
	fieldFreezeStart    = "freezeStart"
	fieldFreezeEnd      = "freezeEnd"
	fieldFreezeCreditMs = "freezeCreditMs"
	fieldCreatedAt      = "createdAt"
	fieldUpdatedAt      = "updatedAt"
)

// IDField carries a caller-chosen id into DocumentStore.Create.
const IDField = "id"

func encodeSubscription(s *model.Subscription) map[string]any {
	return map[string]any{
		fieldUser:           s.UserID,
		fieldType:           string(s.Type),
		fieldDuration:       s.DurationDays,
		fieldIsValid:        s.IsValid,
		fieldIsFreeze:       s.IsFreeze,
		fieldFreezeStart:    encodeTime(s.FreezeStart),
		fieldFreezeEnd:      encodeTime(s.FreezeEnd),
		fieldFreezeCreditMs: s.FreezeCredit.Milliseconds(),
		fieldCreatedAt:      s.CreatedAt.UTC().Format(time.RFC3339Nano),
		fieldUpdatedAt:      encodeTime(s.UpdatedAt),
	}
}

func decodeSubscription(doc *model.Document) (*model.Subscription, error) {
	if doc == nil || doc.Data == nil {
		return nil, domain.ErrMalformedDocument
	}
	d := doc.Data
	s := &model.Subscription{ID: doc.ID}
	var err error

	if s.UserID, err = asString(d[fieldUser]); err != nil {
		return nil, malformed(doc, fieldUser, err)
	}
	t, err := asString(d[fieldType])
	if err != nil {
		return nil, malformed(doc, fieldType, err)
	}
	s.Type = model.SubscriptionType(t)
	if s.DurationDays, err = asInt(d[fieldDuration]); err != nil {
		return nil, malformed(doc, fieldDuration, err)
	}
	if s.DurationDays <= 0 || s.DurationDays > model.MaxDurationDays {
		return nil, malformed(doc, fieldDuration, errRange)
	}
	if s.IsValid, err = asBool(d[fieldIsValid]); err != nil {
		return nil, malformed(doc, fieldIsValid, err)
	}
	if s.IsFreeze, err = asBool(d[fieldIsFreeze]); err != nil {
		return nil, malformed(doc, fieldIsFreeze, err)
	}
	if s.FreezeStart, err = asOptTime(d[fieldFreezeStart]); err != nil {
		return nil, malformed(doc, fieldFreezeStart, err)
	}
	if s.FreezeEnd, err = asOptTime(d[fieldFreezeEnd]); err != nil {
		return nil, malformed(doc, fieldFreezeEnd, err)
	}
	if v, ok := d[fieldFreezeCreditMs]; ok && v != nil {
		ms, err := asInt(v)
		if err == nil && (ms < 0 || int64(ms) > model.MaxFreezeCredit.Milliseconds()) {
			err = errRange
		}
		if err != nil {
			return nil, malformed(doc, fieldFreezeCreditMs, err)
		}
		s.FreezeCredit = time.Duration(ms) * time.Millisecond
	}
	created, err := asOptTime(d[fieldCreatedAt])
	if err != nil {
		return nil, malformed(doc, fieldCreatedAt, err)
	}
	if created != nil {
		s.CreatedAt = *created
	} else {
		s.CreatedAt = doc.CreatedAt
	}
	if s.UpdatedAt, err = asOptTime(d[fieldUpdatedAt]); err != nil {
		return nil, malformed(doc, fieldUpdatedAt, err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("subscription %s: %w", doc.ID, err)
	}
	return s, nil
}

func encodeUser(u *model.User) map[string]any {
	return map[string]any{
		"email":     u.Email,
		"name":      u.Name,
		"country":   u.Country,
		"role":      string(u.Role),
		"createdAt": u.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func decodeUser(doc *model.Document) (*model.User, error) {
	if doc == nil || doc.Data == nil {
		return nil, domain.ErrMalformedDocument
	}
	d := doc.Data
	u := &model.User{ID: doc.ID}
	var err error
	if u.Email, err = asString(d["email"]); err != nil {
		return nil, malformed(doc, "email", err)
	}
	// optional fields
	u.Name, _ = asString(d["name"])
	u.Country, _ = asString(d["country"])
	role, _ := asString(d["role"])
	u.Role = model.UserRole(role)
	if u.Role == "" {
		u.Role = model.UserRoleUser
	}
	created, err := asOptTime(d["createdAt"])
	if err != nil {
		return nil, malformed(doc, "createdAt", err)
	}
	if created != nil {
		u.CreatedAt = *created
	} else {
		u.CreatedAt = doc.CreatedAt
	}
	return u, nil
}

func malformed(doc *model.Document, field string, cause error) error {
	if cause == nil {
		return fmt.Errorf("%s/%s field %q: %w", doc.Collection, doc.ID, field, domain.ErrMalformedDocument)
	}
	return fmt.Errorf("%s/%s field %q (%v): %w", doc.Collection, doc.ID, field, cause, domain.ErrMalformedDocument)
}

func encodeTime(t *time.Time) any {
	if t == nil || t.IsZero() {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

var (
	errType    = errors.New("unexpected type")
	errMissing = errors.New("missing")
	errRange   = errors.New("out of range")
)

func asString(v any) (string, error) {
	switch x := v.(type) {
	case string:
		if strings.TrimSpace(x) == "" {
			return "", errMissing
		}
		return x, nil
	case nil:
		return "", errMissing
	}
	return "", errType
}

func asInt(v any) (int, error) {
	switch x := v.(type) {
	case int:
		return x, nil
	case int32:
		return int(x), nil
	case int64:
		return int(x), nil
	case float64:
		if x != math.Trunc(x) {
			return 0, errors.New("not a whole number")
		}
		if math.Abs(x) > 1<<53 {
			return 0, errRange
		}
		return int(x), nil
	case string:
		return strconv.Atoi(strings.TrimSpace(x))
	case nil:
		return 0, errMissing
	}
	return 0, errType
}

// asBool treats a missing flag as false.
func asBool(v any) (bool, error) {
	switch x := v.(type) {
	case bool:
		return x, nil
	case nil:
		return false, nil
	case string:
		return strconv.ParseBool(x)
	}
	return false, errType
}

// asOptTime accepts RFC3339 strings and epoch milliseconds.
func asOptTime(v any) (*time.Time, error) {
	var t time.Time
	switch x := v.(type) {
	case nil:
		return nil, nil
	case string:
		if x == "" {
			return nil, nil
		}
		p, err := time.Parse(time.RFC3339Nano, x)
		if err != nil {
			return nil, err
		}
		t = p
	case float64:
		t = time.UnixMilli(int64(x))
	case int64:
		t = time.UnixMilli(x)
	case int:
		t = time.UnixMilli(int64(x))
	case time.Time:
		t = x
	default:
		return nil, errType
	}
	t = t.UTC()
	return &t, nil
}
