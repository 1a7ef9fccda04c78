package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/levenlabs/go-lflag"

	"github.com/pvcast/pvcast/pkg/types"
)

var (
	ErrForecastNotFound = errors.New("forecast not found")
)

// Database persists daily forecast outputs keyed by their run date. Saving a
// date that already exists silently replaces it.
type Database interface {
	SaveForecast(ctx context.Context, day time.Time, output types.DailyForecastOutput) error
	// GetForecast returns ErrForecastNotFound when nothing was saved for day.
	GetForecast(ctx context.Context, day time.Time) (types.DailyForecastOutput, error)
	// GetLatestForecast returns the output with the latest run date or
	// ErrForecastNotFound.
	GetLatestForecast(ctx context.Context) (types.DailyForecastOutput, error)

	// Lifecycle
	Close() error
}

// Configured sets up the Storage provider based on flags.
func Configured() Database {
	provider := lflag.String("storage-provider", "file", "Storage provider to use (available: file, firestore, postgres)")

	var p struct{ Database }

	file := configuredFile()
	fs := configuredFirestore()
	pg := configuredPostgres()

	lflag.Do(func() {
		switch *provider {
		case "file":
			if err := file.Validate(); err != nil {
				panic(fmt.Sprintf("file storage validation failed: %v", err))
			}
			p.Database = file
		case "firestore":
			if err := fs.Validate(); err != nil {
				panic(fmt.Sprintf("firestore validation failed: %v", err))
			}
			p.Database = fs
			if err := fs.Init(context.Background()); err != nil {
				panic(fmt.Sprintf("firestore init failed: %v", err))
			}
		case "postgres":
			if err := pg.Validate(); err != nil {
				panic(fmt.Sprintf("postgres validation failed: %v", err))
			}
			p.Database = pg
			if err := pg.Init(context.Background()); err != nil {
				panic(fmt.Sprintf("postgres init failed: %v", err))
			}
		default:
			panic(fmt.Sprintf("unknown storage provider: %s", *provider))
		}
	})

	return &p
}

// dayKey is the storage key of a run date.
func dayKey(day time.Time) string {
	return types.DateString(day)
}
