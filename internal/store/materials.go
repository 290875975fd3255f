package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/erazemk/teren/internal/model"
)

// CreateMaterial creates a new material definition.
func CreateMaterial(ctx context.Context, db *sql.DB, name, unit string) (*model.Material, error) {
	if name == "" || unit == "" {
		return nil, fmt.Errorf("material name and unit required: %w", ErrBadRequest)
	}

	result, err := db.ExecContext(ctx,
		`INSERT INTO materials (name, unit) VALUES (?, ?)`,
		name, unit,
	)
	if err != nil {
		return nil, fmt.Errorf("creating material: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting material id: %w", err)
	}

	return GetMaterial(ctx, db, id)
}

// GetMaterial returns a material definition by ID.
func GetMaterial(ctx context.Context, db *sql.DB, id int64) (*model.Material, error) {
	m := &model.Material{}
	err := db.QueryRowContext(ctx,
		`SELECT id, name, unit, created_at, deleted_at
		 FROM materials WHERE id = ?`, id,
	).Scan(&m.ID, &m.Name, &m.Unit, &m.CreatedAt, &m.DeletedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting material: %w", err)
	}
	return m, nil
}

// ListMaterials returns all non-deleted material definitions.
func ListMaterials(ctx context.Context, db *sql.DB) ([]model.Material, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, name, unit, created_at, deleted_at
		 FROM materials WHERE deleted_at IS NULL ORDER BY name`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing materials: %w", err)
	}
	defer rows.Close()

	var materials []model.Material
	for rows.Next() {
		var m model.Material
		if err := rows.Scan(&m.ID, &m.Name, &m.Unit, &m.CreatedAt, &m.DeletedAt); err != nil {
			return nil, fmt.Errorf("scanning material: %w", err)
		}
		materials = append(materials, m)
	}
	return materials, rows.Err()
}

// DeleteMaterial soft-deletes a material definition.
func DeleteMaterial(ctx context.Context, db *sql.DB, id int64) error {
	_, err := db.ExecContext(ctx,
		`UPDATE materials SET deleted_at = CURRENT_TIMESTAMP WHERE id = ? AND deleted_at IS NULL`,
		id,
	)
	if err != nil {
		return fmt.Errorf("deleting material: %w", err)
	}
	return nil
}

// getMaterialTx loads a material definition inside a transaction.
func getMaterialTx(ctx context.Context, tx *sql.Tx, id int64) (*model.Material, error) {
	m := &model.Material{}
	err := tx.QueryRowContext(ctx,
		`SELECT id, name, unit, created_at, deleted_at
		 FROM materials WHERE id = ? AND deleted_at IS NULL`, id,
	).Scan(&m.ID, &m.Name, &m.Unit, &m.CreatedAt, &m.DeletedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("material %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting material: %w", err)
	}
	return m, nil
}
