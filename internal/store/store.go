// Package store is the persistence collaborator of the pipeline: it reads
// user preferences and profiles, overwrites a user's scored result set and
// keeps the notification ledger.
package store

import (
	"context"
	"errors"

	"github.com/spigell/jobradar/internal/model"
	"github.com/spigell/jobradar/internal/notify"
)

var ErrNotFound = errors.New("not found")

// Subscription is a user the timer may run.
type Subscription struct {
	UserID  string
	Cadence model.Cadence
}

type Store interface {
	GetPreferences(ctx context.Context, userID string) (*model.Preferences, error)
	GetProfile(ctx context.Context, userID string) (*model.Profile, error)
	// ListAutoSearchUsers returns users with auto search enabled, ordered by id.
	ListAutoSearchUsers(ctx context.Context) ([]Subscription, error)
	// ReplaceResults overwrites the user's scored result set in one step.
	ReplaceResults(ctx context.Context, userID string, results []model.ScoredJob) error
	Results(ctx context.Context, userID string) ([]model.ScoredJob, error)

	notify.Ledger
}
