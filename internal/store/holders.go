package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/erazemk/teren/internal/model"
)

// CreateHolder creates a new holder (technician or location).
func CreateHolder(ctx context.Context, db *sql.DB, name, holderType string, userID *int64) (*model.Holder, error) {
	if holderType != model.HolderTechnician && holderType != model.HolderLocation {
		return nil, fmt.Errorf("holder type %q: %w", holderType, ErrBadRequest)
	}

	result, err := db.ExecContext(ctx,
		`INSERT INTO holders (name, type, user_id) VALUES (?, ?, ?)`,
		name, holderType, int64OrNil(userID),
	)
	if err != nil {
		return nil, fmt.Errorf("creating holder: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting holder id: %w", err)
	}

	return GetHolder(ctx, db, id)
}

// GetHolder returns a holder by ID.
func GetHolder(ctx context.Context, db *sql.DB, id int64) (*model.Holder, error) {
	h := &model.Holder{}
	var userID sql.NullInt64
	err := db.QueryRowContext(ctx,
		`SELECT id, name, type, user_id, created_at, deleted_at
		 FROM holders WHERE id = ?`, id,
	).Scan(&h.ID, &h.Name, &h.Type, &userID, &h.CreatedAt, &h.DeletedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting holder: %w", err)
	}
	h.UserID = nullInt(userID)
	return h, nil
}

// GetHolderForUser returns the technician holder linked to a user, if any.
func GetHolderForUser(ctx context.Context, db *sql.DB, userID int64) (*model.Holder, error) {
	h := &model.Holder{}
	var uid sql.NullInt64
	err := db.QueryRowContext(ctx,
		`SELECT id, name, type, user_id, created_at, deleted_at
		 FROM holders WHERE user_id = ? AND deleted_at IS NULL`, userID,
	).Scan(&h.ID, &h.Name, &h.Type, &uid, &h.CreatedAt, &h.DeletedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting holder for user: %w", err)
	}
	h.UserID = nullInt(uid)
	return h, nil
}

// ListHolders returns all non-deleted holders, optionally filtered by type.
func ListHolders(ctx context.Context, db *sql.DB, holderType string) ([]model.Holder, error) {
	var rows *sql.Rows
	var err error

	if holderType != "" {
		rows, err = db.QueryContext(ctx,
			`SELECT id, name, type, user_id, created_at, deleted_at
			 FROM holders WHERE deleted_at IS NULL AND type = ? ORDER BY name`, holderType,
		)
	} else {
		rows, err = db.QueryContext(ctx,
			`SELECT id, name, type, user_id, created_at, deleted_at
			 FROM holders WHERE deleted_at IS NULL ORDER BY name`,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("listing holders: %w", err)
	}
	defer rows.Close()

	var holders []model.Holder
	for rows.Next() {
		var h model.Holder
		var userID sql.NullInt64
		if err := rows.Scan(&h.ID, &h.Name, &h.Type, &userID, &h.CreatedAt, &h.DeletedAt); err != nil {
			return nil, fmt.Errorf("scanning holder: %w", err)
		}
		h.UserID = nullInt(userID)
		holders = append(holders, h)
	}
	return holders, rows.Err()
}

// UpdateHolder updates a holder's name and user link.
func UpdateHolder(ctx context.Context, db *sql.DB, id int64, name string, userID *int64) error {
	_, err := db.ExecContext(ctx,
		`UPDATE holders SET name = ?, user_id = ? WHERE id = ? AND deleted_at IS NULL`,
		name, int64OrNil(userID), id,
	)
	if err != nil {
		return fmt.Errorf("updating holder: %w", err)
	}
	return nil
}

// DeleteHolder soft-deletes a holder. Fails if the holder still possesses items.
func DeleteHolder(ctx context.Context, db *sql.DB, id int64) error {
	var count int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM items
		 WHERE (assigned_to_id = ? OR location_id = ?)
		   AND status != 'RETURNED_TO_OPERATOR'
		   AND (kind = 'device' OR CAST(quantity AS REAL) > 0)`,
		id, id,
	).Scan(&count)
	if err != nil {
		return fmt.Errorf("checking holder items: %w", err)
	}
	if count > 0 {
		return fmt.Errorf("holder still possesses %d items: %w", count, ErrConflict)
	}

	_, err = db.ExecContext(ctx,
		`UPDATE holders SET deleted_at = CURRENT_TIMESTAMP WHERE id = ? AND deleted_at IS NULL`,
		id,
	)
	if err != nil {
		return fmt.Errorf("deleting holder: %w", err)
	}
	return nil
}

// getHolderTx loads a holder inside a transaction, requiring the given type.
func getHolderTx(ctx context.Context, tx *sql.Tx, id int64, holderType string) (*model.Holder, error) {
	h := &model.Holder{}
	var userID sql.NullInt64
	err := tx.QueryRowContext(ctx,
		`SELECT id, name, type, user_id, created_at, deleted_at
		 FROM holders WHERE id = ? AND deleted_at IS NULL`, id,
	).Scan(&h.ID, &h.Name, &h.Type, &userID, &h.CreatedAt, &h.DeletedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("holder %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting holder: %w", err)
	}
	if holderType != "" && h.Type != holderType {
		return nil, fmt.Errorf("holder %d is not a %s: %w", id, holderType, ErrBadRequest)
	}
	h.UserID = nullInt(userID)
	return h, nil
}
