// Package sqlite is the SQLite implementation of the interaction audit
// store.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/careroute/intake-router/internal/storage"
)

// Store is a SQLite implementation of storage.InteractionStore.
type Store struct {
	db *sql.DB
}

var _ storage.InteractionStore = (*Store)(nil)

// New opens (or creates) the database at dbPath and initializes the
// schema.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	store := &Store{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

func (s *Store) initSchema() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS interactions (
		id TEXT PRIMARY KEY,
		tenant TEXT NOT NULL,
		text TEXT NOT NULL,
		best_category TEXT NOT NULL,
		confidence REAL NOT NULL,
		used_fallback INTEGER NOT NULL DEFAULT 0,
		duration_ns INTEGER NOT NULL,
		created_at TIMESTAMP NOT NULL
	)`)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_interactions_tenant_created
		ON interactions(tenant, created_at DESC)`)
	return err
}

// RecordInteraction inserts one classification record.
func (s *Store) RecordInteraction(ctx context.Context, in *storage.Interaction) error {
	createdAt := in.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO interactions
			(id, tenant, text, best_category, confidence, used_fallback, duration_ns, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		in.ID, in.Tenant, in.Text, in.BestCategory, in.Confidence,
		boolToInt(in.UsedFallback), in.Duration.Nanoseconds(), createdAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record interaction: %w", err)
	}
	return nil
}

// RecentInteractions returns up to limit interactions for a tenant,
// newest first.
func (s *Store) RecentInteractions(ctx context.Context, tenant string, limit int) ([]*storage.Interaction, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, tenant, text, best_category, confidence, used_fallback, duration_ns, created_at
		FROM interactions
		WHERE tenant = ?
		ORDER BY created_at DESC
		LIMIT ?`, tenant, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query interactions: %w", err)
	}
	defer rows.Close()

	var interactions []*storage.Interaction
	for rows.Next() {
		var in storage.Interaction
		var usedFallback int
		var durationNS int64
		if err := rows.Scan(&in.ID, &in.Tenant, &in.Text, &in.BestCategory,
			&in.Confidence, &usedFallback, &durationNS, &in.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan interaction: %w", err)
		}
		in.UsedFallback = usedFallback != 0
		in.Duration = time.Duration(durationNS)
		interactions = append(interactions, &in)
	}

	return interactions, rows.Err()
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
