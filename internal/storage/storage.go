// Package storage defines the persistence interface and its implementations.
package storage

import (
	"context"
	"errors"

	"jobscout_bot/internal/model"
)

// ErrLockTimeout is returned when the store lock cannot be acquired
// within the configured bound. Callers may retry at a higher level.
var ErrLockTimeout = errors.New("storage: timed out acquiring store lock")

// Store is the interface for all persistence operations. User records
// are materialized with full defaults on first access and mutated under
// a single critical section.
type Store interface {
	GetUser(ctx context.Context, id int64) (*model.UserRecord, error)
	MutateUser(ctx context.Context, id int64, fn func(*model.UserRecord)) (*model.UserRecord, error)
	DeleteUser(ctx context.Context, id int64) error
	ListUserIDs() ([]int64, error)

	SaveFavorite(ctx context.Context, id int64, job model.JobRecord) (bool, error)
	ClearFavorites(ctx context.Context, id int64) error
	SaveSearch(ctx context.Context, id int64, name string, filters model.FilterSet) error
	UpdateSavedSearch(ctx context.Context, id int64, idx int, fn func(*model.SavedSearch)) error
	SaveLastResults(ctx context.Context, id int64, jobs []model.JobRecord) error
}
