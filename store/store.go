package store

import (
	"context"
	"time"

	"github.com/jeffbrin/SHFT/reading"
)

// timeNow is swapped in tests
var timeNow = time.Now

// DataStore is a generic keyed CRUD surface over reading-shaped records.
// Items are keyed by Reading.Key. List may serve a cached snapshot unless
// forceRefresh is set.
type DataStore interface {
	Add(ctx context.Context, item reading.Reading) error
	Update(ctx context.Context, item reading.Reading) error
	Delete(ctx context.Context, item reading.Reading) error
	List(ctx context.Context, forceRefresh bool) ([]reading.Reading, error)
}
