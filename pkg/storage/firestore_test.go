package storage

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFirestoreProvider(t *testing.T) {
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}

	// Use a random database for isolation
	randDB := fmt.Sprintf("test-db-%d", time.Now().UnixNano())
	f := &FirestoreProvider{
		projectID: "test-project-id",
		database:  randDB,
	}

	ctx := context.Background()
	require.NoError(t, f.Init(ctx))
	defer f.Close()

	t.Run("Validate", func(t *testing.T) {
		require.NoError(t, f.Validate())
	})

	t.Run("NotFound", func(t *testing.T) {
		_, err := f.GetForecast(ctx, time.Date(1999, 1, 1, 0, 0, 0, 0, time.UTC))
		assert.ErrorIs(t, err, ErrForecastNotFound)

		_, err = f.GetLatestForecast(ctx)
		assert.ErrorIs(t, err, ErrForecastNotFound)
	})

	t.Run("SaveAndGet", func(t *testing.T) {
		day := time.Date(2024, 7, 27, 0, 0, 0, 0, time.UTC)
		out := sampleOutput("2024-07-27")
		require.NoError(t, f.SaveForecast(ctx, day, out))

		got, err := f.GetForecast(ctx, day)
		require.NoError(t, err)
		assert.Equal(t, out, got)

		t.Run("Overwrite", func(t *testing.T) {
			out.Note = "second run"
			require.NoError(t, f.SaveForecast(ctx, day, out))
			got, err := f.GetForecast(ctx, day)
			require.NoError(t, err)
			assert.Equal(t, "second run", got.Note)
		})
	})

	t.Run("Latest", func(t *testing.T) {
		require.NoError(t, f.SaveForecast(ctx, time.Date(2024, 7, 26, 0, 0, 0, 0, time.UTC), sampleOutput("2024-07-26")))
		require.NoError(t, f.SaveForecast(ctx, time.Date(2024, 7, 28, 0, 0, 0, 0, time.UTC), sampleOutput("2024-07-28")))

		got, err := f.GetLatestForecast(ctx)
		require.NoError(t, err)
		assert.Equal(t, "2024-07-28", got.RunDate)
	})
}
