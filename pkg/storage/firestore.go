package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/levenlabs/go-lflag"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/pvcast/pvcast/pkg/log"
	"github.com/pvcast/pvcast/pkg/types"
)

const forecastsCollection = "forecasts"

// FirestoreProvider implements the Database interface using Google Cloud Firestore.
// Each run date is a document in the "forecasts" collection.
type FirestoreProvider struct {
	client    *firestore.Client
	projectID string
	database  string
}

// configuredFirestore sets up the Firestore provider.
// It registers flags for configuration.
func configuredFirestore() *FirestoreProvider {
	projectID := lflag.String("firestore-project-id", "", "Google Cloud Project ID for Firestore")
	database := lflag.String("firestore-database", "", "Google Cloud Firestore Database")
	emulator := lflag.String("firestore-emulator", "", "Use Firestore emulator")

	f := &FirestoreProvider{}

	lflag.Do(func() {
		f.projectID = *projectID
		f.database = *database

		// set this because that's how firestore client expects it
		if *emulator != "" {
			os.Setenv("FIRESTORE_EMULATOR_HOST", *emulator)
		}
	})

	return f
}

// Validate checks if the provider is properly configured.
func (f *FirestoreProvider) Validate() error {
	// project id may be empty, it is detected from the environment
	return nil
}

// Init initializes the Firestore client.
// This must be called before using the provider methods.
func (f *FirestoreProvider) Init(ctx context.Context) error {
	projectID := f.projectID
	if projectID == "" {
		projectID = firestore.DetectProjectID
	}
	database := f.database
	if database == "" {
		database = firestore.DefaultDatabaseID
	}
	client, err := firestore.NewClientWithDatabase(ctx, projectID, database)
	if err != nil {
		return fmt.Errorf("failed to create firestore client (project=%s, database=%s): %w", projectID, database, err)
	}
	f.client = client
	return nil
}

// Close closes the Firestore client connection.
func (f *FirestoreProvider) Close() error {
	if f.client != nil {
		return f.client.Close()
	}
	return nil
}

// SaveForecast stores the output as a JSON string under the run date's
// document id, replacing any earlier run for that date.
func (f *FirestoreProvider) SaveForecast(ctx context.Context, day time.Time, output types.DailyForecastOutput) error {
	jsonBytes, err := json.Marshal(output)
	if err != nil {
		return fmt.Errorf("failed to marshal forecast: %w", err)
	}
	_, err = f.client.Collection(forecastsCollection).Doc(dayKey(day)).Set(ctx, map[string]interface{}{
		"json":      string(jsonBytes),
		"runDate":   output.RunDate,
		"updatedAt": time.Now(),
	})
	if err != nil {
		return fmt.Errorf("failed to save forecast: %w", err)
	}
	return nil
}

// GetForecast implements Database.
func (f *FirestoreProvider) GetForecast(ctx context.Context, day time.Time) (types.DailyForecastOutput, error) {
	doc, err := f.client.Collection(forecastsCollection).Doc(dayKey(day)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return types.DailyForecastOutput{}, ErrForecastNotFound
		}
		return types.DailyForecastOutput{}, fmt.Errorf("failed to fetch forecast doc: %w", err)
	}
	return decodeForecastDoc(ctx, doc)
}

// GetLatestForecast returns the document with the highest id. Ids are
// YYYY-MM-DD so they sort chronologically.
func (f *FirestoreProvider) GetLatestForecast(ctx context.Context) (types.DailyForecastOutput, error) {
	iter := f.client.Collection(forecastsCollection).
		OrderBy(firestore.DocumentID, firestore.Desc).
		Limit(1).
		Documents(ctx)
	defer iter.Stop()

	doc, err := iter.Next()
	if err == iterator.Done {
		return types.DailyForecastOutput{}, ErrForecastNotFound
	}
	if err != nil {
		return types.DailyForecastOutput{}, fmt.Errorf("failed to get latest forecast doc: %w", err)
	}
	return decodeForecastDoc(ctx, doc)
}

func decodeForecastDoc(ctx context.Context, doc *firestore.DocumentSnapshot) (types.DailyForecastOutput, error) {
	val, err := doc.DataAt("json")
	if err != nil {
		log.Ctx(ctx).WarnContext(ctx, "forecast doc missing json", slog.String("docID", doc.Ref.ID))
		return types.DailyForecastOutput{}, fmt.Errorf("forecast document %s missing 'json' field: %w", doc.Ref.ID, err)
	}

	jsonStr, ok := val.(string)
	if !ok {
		log.Ctx(ctx).WarnContext(ctx, "forecast doc json not string", slog.String("docID", doc.Ref.ID))
		return types.DailyForecastOutput{}, fmt.Errorf("forecast document %s 'json' field is not a string", doc.Ref.ID)
	}

	var out types.DailyForecastOutput
	if err := json.Unmarshal([]byte(jsonStr), &out); err != nil {
		log.Ctx(ctx).WarnContext(ctx, "failed to unmarshal forecast json", slog.String("docID", doc.Ref.ID), slog.Any("err", err))
		return types.DailyForecastOutput{}, fmt.Errorf("failed to unmarshal forecast (id=%s): %w", doc.Ref.ID, err)
	}
	return out, nil
}
