package snapshot

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// PersistedSection is one row of the snapshot_sections table: the latest
// payload for a section, as written after its most recent apply.
type PersistedSection struct {
	Section   Section
	Version   uint64
	UpdatedAt time.Time
	Payload   []byte
}

// Repository persists the latest snapshot payload per section.
//
// Only current state is stored; each save overwrites the previous row for
// its section. Implementations must be safe for concurrent use.
type Repository interface {
	// SaveSection upserts the latest payload for a section.
	SaveSection(ctx context.Context, rec PersistedSection) error

	// LoadSections returns all persisted sections. Sections never saved
	// are simply absent from the result.
	LoadSections(ctx context.Context) ([]PersistedSection, error)
}

// SQLiteRepository implements Repository backed by SQLite.
// The schema lives in migrations (snapshot_sections table).
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a repository using the given database handle.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// SaveSection upserts the latest payload for a section.
func (r *SQLiteRepository) SaveSection(ctx context.Context, rec PersistedSection) error {
	if !rec.Section.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownSection, rec.Section)
	}

	const query = `
		INSERT INTO snapshot_sections (section, version, updated_at, payload)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(section) DO UPDATE SET
			version    = excluded.version,
			updated_at = excluded.updated_at,
			payload    = excluded.payload`

	_, err := r.db.ExecContext(ctx, query,
		string(rec.Section),
		rec.Version,
		rec.UpdatedAt.UTC().Format(time.RFC3339Nano),
		rec.Payload,
	)
	if err != nil {
		return fmt.Errorf("saving section %s: %w", rec.Section, err)
	}
	return nil
}

// LoadSections returns all persisted sections.
func (r *SQLiteRepository) LoadSections(ctx context.Context) ([]PersistedSection, error) {
	const query = `
		SELECT section, version, updated_at, payload
		FROM snapshot_sections
		ORDER BY section`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("loading sections: %w", err)
	}
	defer rows.Close() //nolint:errcheck // Read-only cursor

	var out []PersistedSection
	for rows.Next() {
		var (
			rec       PersistedSection
			section   string
			updatedAt string
		)
		if err := rows.Scan(&section, &rec.Version, &updatedAt, &rec.Payload); err != nil {
			return nil, fmt.Errorf("scanning section row: %w", err)
		}

		rec.Section = Section(section)
		if !rec.Section.Valid() {
			// Rows written by a newer schema are skipped, not fatal.
			continue
		}

		rec.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt)
		if err != nil {
			return nil, fmt.Errorf("parsing updated_at for section %s: %w", section, err)
		}

		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating section rows: %w", err)
	}

	return out, nil
}
