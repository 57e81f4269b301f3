package database

import (
	"database/sql"
	"fmt"
)

// SQLUnitRepository handles database operations for harvest units
type SQLUnitRepository struct {
	db *DB
}

var _ UnitRepository = (*SQLUnitRepository)(nil)

// NewUnitRepository creates a new unit repository
func NewUnitRepository(db *DB) *SQLUnitRepository {
	return &SQLUnitRepository{db: db}
}

// UpsertUnit inserts a new unit or resets an existing one (matched by
// fingerprint) back to the discovered stage with a fresh payload. Returns
// the unit ID and whether a new row was created.
func (r *SQLUnitRepository) UpsertUnit(sourceName, fingerprint, payload string) (int64, bool, error) {
	existing, err := r.GetUnitByFingerprint(fingerprint)
	if err != nil {
		return 0, false, fmt.Errorf("failed to check existing unit: %w", err)
	}

	if existing != nil {
		_, err = r.db.Exec(`
			UPDATE harvest_units
			SET source_name = ?, payload = ?, stage = ?, error = '', updated_at = CURRENT_TIMESTAMP
			WHERE fingerprint = ?
		`, sourceName, payload, StageDiscovered, fingerprint)
		if err != nil {
			return 0, false, fmt.Errorf("failed to update unit: %w", err)
		}
		return existing.ID, false, nil
	}

	res, err := r.db.Exec(`
		INSERT INTO harvest_units (source_name, fingerprint, payload, stage)
		VALUES (?, ?, ?, ?)
	`, sourceName, fingerprint, payload, StageDiscovered)
	if err != nil {
		return 0, false, fmt.Errorf("failed to insert unit: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, false, fmt.Errorf("failed to get inserted unit ID: %w", err)
	}

	return id, true, nil
}

// UpdateUnit stores a new payload and stage for a unit
func (r *SQLUnitRepository) UpdateUnit(id int64, payload, stage string) error {
	_, err := r.db.Exec(`
		UPDATE harvest_units
		SET payload = ?, stage = ?, error = '', updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, payload, stage, id)

	if err != nil {
		return fmt.Errorf("failed to update unit: %w", err)
	}

	return nil
}

// MarkUnitFailed moves a unit to the failed stage with an error message
func (r *SQLUnitRepository) MarkUnitFailed(id int64, message string) error {
	_, err := r.db.Exec(`
		UPDATE harvest_units
		SET stage = ?, error = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, StageFailed, message, id)

	if err != nil {
		return fmt.Errorf("failed to mark unit failed: %w", err)
	}

	return nil
}

// GetUnit retrieves a unit by its database ID
func (r *SQLUnitRepository) GetUnit(id int64) (*Unit, error) {
	var unit Unit
	err := r.db.QueryRow(`
		SELECT id, source_name, fingerprint, stage, payload, error, created_at, updated_at
		FROM harvest_units
		WHERE id = ?
	`, id).Scan(
		&unit.ID, &unit.SourceName, &unit.Fingerprint, &unit.Stage,
		&unit.Payload, &unit.Error, &unit.CreatedAt, &unit.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get unit: %w", err)
	}

	return &unit, nil
}

// GetUnitByFingerprint retrieves a unit by its fingerprint
func (r *SQLUnitRepository) GetUnitByFingerprint(fingerprint string) (*Unit, error) {
	var unit Unit
	err := r.db.QueryRow(`
		SELECT id, source_name, fingerprint, stage, payload, error, created_at, updated_at
		FROM harvest_units
		WHERE fingerprint = ?
	`, fingerprint).Scan(
		&unit.ID, &unit.SourceName, &unit.Fingerprint, &unit.Stage,
		&unit.Payload, &unit.Error, &unit.CreatedAt, &unit.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get unit by fingerprint: %w", err)
	}

	return &unit, nil
}

// GetUnitsByStage returns units currently in the given stage, oldest first
func (r *SQLUnitRepository) GetUnitsByStage(stage string, limit int) ([]Unit, error) {
	rows, err := r.db.Query(`
		SELECT id, source_name, fingerprint, stage, payload, error, created_at, updated_at
		FROM harvest_units
		WHERE stage = ?
		ORDER BY updated_at ASC
		LIMIT ?
	`, stage, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get units by stage: %w", err)
	}
	defer rows.Close()

	var units []Unit
	for rows.Next() {
		var unit Unit
		err := rows.Scan(
			&unit.ID, &unit.SourceName, &unit.Fingerprint, &unit.Stage,
			&unit.Payload, &unit.Error, &unit.CreatedAt, &unit.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan unit row: %w", err)
		}
		units = append(units, unit)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating unit rows: %w", err)
	}

	return units, nil
}

// GetUnitCount returns the total number of units
func (r *SQLUnitRepository) GetUnitCount() (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM harvest_units").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get unit count: %w", err)
	}
	return count, nil
}

// GetStageStats returns the number of units per stage
func (r *SQLUnitRepository) GetStageStats() (map[string]int, error) {
	rows, err := r.db.Query("SELECT stage, COUNT(*) FROM harvest_units GROUP BY stage")
	if err != nil {
		return nil, fmt.Errorf("failed to get stage stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[string]int)
	for rows.Next() {
		var stage string
		var count int
		if err := rows.Scan(&stage, &count); err != nil {
			return nil, fmt.Errorf("failed to scan stage stats row: %w", err)
		}
		stats[stage] = count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating stage stats rows: %w", err)
	}

	return stats, nil
}
