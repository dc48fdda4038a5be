package engine

// seeds.go - sample and CSV data loading

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/leapstack-labs/leapolap/internal/schema"
)

// SeedSample creates the sample star schema tables and fills them.
func (e *Engine) SeedSample(ctx context.Context) error {
	if err := e.ensureDBConnected(ctx); err != nil {
		return err
	}
	for i, stmt := range schema.SampleData {
		if err := e.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to run sample statement %d: %w", i+1, err)
		}
	}
	e.logger.Debug("loaded sample data", "statements", len(schema.SampleData))
	return e.Flush(ctx, "", "sample data loaded")
}

// LoadSeeds loads every CSV file of dir into a table named after the file.
func (e *Engine) LoadSeeds(ctx context.Context, dir string) (int, error) {
	e.logger.Debug("loading seeds", "seeds_dir", dir)

	if err := e.ensureDBConnected(ctx); err != nil {
		return 0, err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read seeds directory: %w", err)
	}

	loaded := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".csv") {
			continue
		}

		tableName := strings.TrimSuffix(entry.Name(), ".csv")
		csvPath := filepath.Join(dir, entry.Name())

		e.logger.Debug("loading seed file", "table", tableName, "path", csvPath)

		if err := e.db.LoadCSV(ctx, tableName, csvPath); err != nil {
			return loaded, fmt.Errorf("failed to load seed %s: %w", entry.Name(), err)
		}
		loaded++
	}
	if loaded > 0 {
		if err := e.Flush(ctx, "", "seeds loaded"); err != nil {
			return loaded, err
		}
	}
	return loaded, nil
}
