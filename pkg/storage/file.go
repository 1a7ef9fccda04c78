package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/levenlabs/go-lflag"

	"github.com/pvcast/pvcast/pkg/log"
	"github.com/pvcast/pvcast/pkg/types"
)

// FileProvider implements Database with one indented JSON file per run date,
// named YYYY-MM-DD.json, in a directory.
type FileProvider struct {
	dir string
	mu  sync.Mutex
}

func configuredFile() *FileProvider {
	dir := lflag.String("output-dir", "./output", "Directory the file storage provider writes forecasts to")

	f := &FileProvider{}
	lflag.Do(func() {
		f.dir = *dir
	})
	return f
}

// NewFileProvider returns a FileProvider writing to dir.
func NewFileProvider(dir string) *FileProvider {
	return &FileProvider{dir: dir}
}

// Validate checks if the provider is properly configured.
func (f *FileProvider) Validate() error {
	if f.dir == "" {
		return fmt.Errorf("output-dir is required")
	}
	return nil
}

func (f *FileProvider) path(day time.Time) string {
	return filepath.Join(f.dir, dayKey(day)+".json")
}

// SaveForecast writes the output to a temporary file and renames it into
// place so readers never see a partial file.
func (f *FileProvider) SaveForecast(ctx context.Context, day time.Time, output types.DailyForecastOutput) error {
	b, err := json.MarshalIndent(output, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal forecast: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output dir (%s): %w", f.dir, err)
	}
	tmp, err := os.CreateTemp(f.dir, ".forecast-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write forecast: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close forecast: %w", err)
	}
	path := f.path(day)
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to save forecast (%s): %w", path, err)
	}
	log.Ctx(ctx).DebugContext(ctx, "saved forecast", slog.String("path", path))
	return nil
}

// GetForecast implements Database.
func (f *FileProvider) GetForecast(ctx context.Context, day time.Time) (types.DailyForecastOutput, error) {
	return f.read(f.path(day))
}

// GetLatestForecast returns the file whose name sorts last.
func (f *FileProvider) GetLatestForecast(ctx context.Context) (types.DailyForecastOutput, error) {
	entries, err := os.ReadDir(f.dir)
	if errors.Is(err, os.ErrNotExist) {
		return types.DailyForecastOutput{}, ErrForecastNotFound
	} else if err != nil {
		return types.DailyForecastOutput{}, fmt.Errorf("failed to list output dir (%s): %w", f.dir, err)
	}

	var names []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		if _, err := time.Parse(time.DateOnly, strings.TrimSuffix(name, ".json")); err != nil {
			continue
		}
		names = append(names, name)
	}
	if len(names) == 0 {
		return types.DailyForecastOutput{}, ErrForecastNotFound
	}
	sort.Strings(names)
	return f.read(filepath.Join(f.dir, names[len(names)-1]))
}

func (f *FileProvider) read(path string) (types.DailyForecastOutput, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return types.DailyForecastOutput{}, ErrForecastNotFound
	} else if err != nil {
		return types.DailyForecastOutput{}, fmt.Errorf("failed to read forecast (%s): %w", path, err)
	}
	var out types.DailyForecastOutput
	if err := json.Unmarshal(b, &out); err != nil {
		return types.DailyForecastOutput{}, fmt.Errorf("failed to unmarshal forecast (%s): %w", path, err)
	}
	return out, nil
}

// Close implements Database.
func (f *FileProvider) Close() error {
	return nil
}
