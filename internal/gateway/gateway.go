// Package gateway is the remote access layer for connected mode: a SQLite
// row store holding the experiments, comments, and profiles tables. The
// store mirrors its optimistic local mutations here and refetches from here
// to reconcile after creates. When no backend is configured the gateway is
// simply never constructed and the store runs on its no-op strategy.
package gateway

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// ErrSchemaMissing classifies failures caused by an absent table, so callers
// can show a "backend schema not installed" remediation message instead of a
// generic error.
var ErrSchemaMissing = errors.New("backend schema missing")

// ExperimentInsert is the payload for a new experiment row. Lifecycle fields
// (archived, locked, result) and the row identity are assigned server-side.
type ExperimentInsert struct {
	BoardID       string
	Title         string
	Description   string
	Status        string
	ICEImpact     int
	ICEConfidence int
	ICEEase       int
	Market        string
	Type          string
	Tags          []string
}

// ProfileUpsert is the payload for creating or updating a profile row.
type ProfileUpsert struct {
	ID           string
	FullName     string
	AvatarURL    string
	Bio          string
	LinkedInURL  string
	ContactEmail string
	UpdatedAt    time.Time
}
