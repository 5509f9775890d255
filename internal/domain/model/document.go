package model

import "time"

// Collection names used in the document store.
const (
	CollectionSubscriptions = "subscriptions"
	CollectionUsers         = "users"
	CollectionNotifications = "notifications"
)

// Document is a loosely typed record as returned by the backing store.
// Typed repositories decode Data and reject what does not fit.
type Document struct {
	Collection string         `json:"collection"`
	ID         string         `json:"id"`
	Data       map[string]any `json:"data"`
	CreatedAt  time.Time      `json:"createdAt"`
	UpdatedAt  time.Time      `json:"updatedAt"`
}

// Filter is an equality match on top-level document fields.
type Filter map[string]any
