package remote

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// runMigrations applies every migrations/*.sql file in lexical order. Each
// file runs as a single Exec; files are expected to be idempotent
// (CREATE TABLE IF NOT EXISTS style) since no schema version is tracked.
func runMigrations(ctx context.Context, pool *pgxpool.Pool, logger *zap.Logger) error {
	files, err := filepath.Glob(filepath.Join("migrations", "*.sql"))
	if err != nil {
		return fmt.Errorf("list migrations: %w", err)
	}
	sort.Strings(files)

	for _, path := range files {
		sql, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", path, err)
		}
		logger.Info("applying migration", zap.String("file", filepath.Base(path)))
		if _, err := pool.Exec(ctx, string(sql)); err != nil {
			return fmt.Errorf("apply migration %s: %w", path, err)
		}
	}
	logger.Info("migrations applied", zap.Int("count", len(files)))
	return nil
}
