package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// PostgresStore keeps documents in a single table keyed by (world_id, name).
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore connects to PostgreSQL and ensures the schema exists.
func NewPostgresStore(connectionString string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &PostgresStore{db: db}
	if err := store.createTables(); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return store, nil
}

func (ps *PostgresStore) createTables() error {
	_, err := ps.db.Exec(`
		CREATE TABLE IF NOT EXISTS worlds (
			id TEXT PRIMARY KEY,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE TABLE IF NOT EXISTS documents (
			world_id TEXT NOT NULL REFERENCES worlds(id) ON DELETE CASCADE,
			name TEXT NOT NULL,
			body JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (world_id, name)
		);
	`)
	return err
}

// GetDocument loads a document body.
func (ps *PostgresStore) GetDocument(ctx context.Context, worldID, name string) (json.RawMessage, error) {
	var body []byte
	err := ps.db.QueryRowContext(ctx,
		`SELECT body FROM documents WHERE world_id = $1 AND name = $2`,
		worldID, name).Scan(&body)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load document %s/%s: %w", worldID, name, err)
	}
	return body, nil
}

// PutDocument upserts a document body.
func (ps *PostgresStore) PutDocument(ctx context.Context, worldID, name string, body json.RawMessage) error {
	_, err := ps.db.ExecContext(ctx, `
		INSERT INTO documents (world_id, name, body, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (world_id, name)
		DO UPDATE SET body = EXCLUDED.body, updated_at = now()`,
		worldID, name, []byte(body))
	if err != nil {
		return fmt.Errorf("failed to save document %s/%s: %w", worldID, name, err)
	}
	return nil
}

// DeleteDocument removes a document. Missing documents are not an error.
func (ps *PostgresStore) DeleteDocument(ctx context.Context, worldID, name string) error {
	_, err := ps.db.ExecContext(ctx,
		`DELETE FROM documents WHERE world_id = $1 AND name = $2`, worldID, name)
	if err != nil {
		return fmt.Errorf("failed to delete document %s/%s: %w", worldID, name, err)
	}
	return nil
}

// ListWorlds returns all known world ids.
func (ps *PostgresStore) ListWorlds(ctx context.Context) ([]string, error) {
	rows, err := ps.db.QueryContext(ctx, `SELECT id FROM worlds ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list worlds: %w", err)
	}
	defer rows.Close()

	var worlds []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan world id: %w", err)
		}
		worlds = append(worlds, id)
	}
	return worlds, rows.Err()
}

// CreateWorld registers a world id. Creating an existing world is a no-op.
func (ps *PostgresStore) CreateWorld(ctx context.Context, worldID string) error {
	_, err := ps.db.ExecContext(ctx,
		`INSERT INTO worlds (id) VALUES ($1) ON CONFLICT (id) DO NOTHING`, worldID)
	if err != nil {
		return fmt.Errorf("failed to create world %s: %w", worldID, err)
	}
	return nil
}

// DeleteWorld removes a world and all of its documents.
func (ps *PostgresStore) DeleteWorld(ctx context.Context, worldID string) error {
	_, err := ps.db.ExecContext(ctx, `DELETE FROM worlds WHERE id = $1`, worldID)
	if err != nil {
		return fmt.Errorf("failed to delete world %s: %w", worldID, err)
	}
	return nil
}

// Close closes the database connection.
func (ps *PostgresStore) Close() error {
	return ps.db.Close()
}
