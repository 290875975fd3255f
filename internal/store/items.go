package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/erazemk/teren/internal/model"
)

// itemColumns is the shared select list for item queries; keep in sync with
// scanItem.
const itemColumns = `
	i.id, i.kind, i.name, i.serial, i.category, i.photo_mime,
	i.material_id, i.quantity, i.status, i.assigned_to_id, i.location_id, i.order_id,
	i.created_at, i.updated_at,
	m.name, m.unit,
	COALESCE(t.name, l.name, ''),
	EXISTS (SELECT 1 FROM transfer_requests tr
	        WHERE (tr.item_id = i.id OR tr.pending_item_id = i.id) AND tr.status = 'requested')`

const itemJoins = `
	FROM items i
	LEFT JOIN materials m ON m.id = i.material_id
	LEFT JOIN holders t ON t.id = i.assigned_to_id
	LEFT JOIN holders l ON l.id = i.location_id`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (*model.Item, error) {
	item := &model.Item{}
	var serial, category, photoMime, quantity, matName, unit sql.NullString
	var materialID, assignedTo, location, order sql.NullInt64
	var pending bool

	err := row.Scan(&item.ID, &item.Kind, &item.Name, &serial, &category, &photoMime,
		&materialID, &quantity, &item.Status, &assignedTo, &location, &order,
		&item.CreatedAt, &item.UpdatedAt,
		&matName, &unit, &item.HolderName, &pending)
	if err != nil {
		return nil, err
	}

	item.Serial = serial.String
	item.Category = category.String
	item.PhotoMime = photoMime.String
	item.MaterialID = nullInt(materialID)
	item.AssignedToID = nullInt(assignedTo)
	item.LocationID = nullInt(location)
	item.OrderID = nullInt(order)
	item.MaterialName = matName.String
	item.Unit = unit.String
	item.TransferPending = pending

	item.Quantity, err = scanDec(quantity)
	if err != nil {
		return nil, err
	}
	return item, nil
}

// GetItem returns an item by ID.
func GetItem(ctx context.Context, db *sql.DB, id int64) (*model.Item, error) {
	item, err := scanItem(db.QueryRowContext(ctx,
		`SELECT `+itemColumns+itemJoins+` WHERE i.id = ?`, id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting item: %w", err)
	}
	return item, nil
}

// GetItemBySerial returns the device with the given serial, if any.
func GetItemBySerial(ctx context.Context, db *sql.DB, serial string) (*model.Item, error) {
	item, err := scanItem(db.QueryRowContext(ctx,
		`SELECT `+itemColumns+itemJoins+` WHERE i.serial = ?`, serial,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting item by serial: %w", err)
	}
	return item, nil
}

// ListItems returns items, optionally filtered by kind, status or holder.
// Empty material lots are skipped unless includeEmpty is set.
func ListItems(ctx context.Context, db *sql.DB, kind, status string, holderID int64, includeEmpty bool) ([]model.Item, error) {
	query := `SELECT ` + itemColumns + itemJoins + ` WHERE 1=1`
	var args []any

	if kind != "" {
		query += ` AND i.kind = ?`
		args = append(args, kind)
	}
	if status != "" {
		query += ` AND i.status = ?`
		args = append(args, status)
	}
	if holderID > 0 {
		query += ` AND (i.assigned_to_id = ? OR i.location_id = ?)`
		args = append(args, holderID, holderID)
	}
	if !includeEmpty {
		query += ` AND (i.kind = 'device' OR CAST(i.quantity AS REAL) > 0)`
	}
	query += ` ORDER BY i.name, i.id`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}
	defer rows.Close()

	var items []model.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning item: %w", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

// SetItemPhoto sets a device's photo data.
func SetItemPhoto(ctx context.Context, db *sql.DB, id int64, photo []byte, mime string) error {
	result, err := db.ExecContext(ctx,
		`UPDATE items SET photo = ?, photo_mime = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND kind = 'device'`,
		photo, mime, id,
	)
	if err != nil {
		return fmt.Errorf("setting item photo: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("device %d: %w", id, ErrNotFound)
	}
	return nil
}

// GetItemPhoto returns a device's photo data and MIME type.
func GetItemPhoto(ctx context.Context, db *sql.DB, id int64) ([]byte, string, error) {
	var photo []byte
	var mime sql.NullString
	err := db.QueryRowContext(ctx,
		`SELECT photo, photo_mime FROM items WHERE id = ?`, id,
	).Scan(&photo, &mime)
	if err == sql.ErrNoRows {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("getting item photo: %w", err)
	}
	return photo, mime.String, nil
}

// getItemTx loads an item inside a transaction.
func getItemTx(ctx context.Context, tx *sql.Tx, id int64) (*model.Item, error) {
	item, err := scanItem(tx.QueryRowContext(ctx,
		`SELECT `+itemColumns+itemJoins+` WHERE i.id = ?`, id,
	))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("item %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting item: %w", err)
	}
	return item, nil
}

// setItemState rewrites an item's denormalized status/holder/order columns.
// Every call must be paired with a matching history append so replay stays
// equal to the stored row.
func setItemState(ctx context.Context, tx *sql.Tx, id int64, status string, assignedTo, locationID, orderID *int64) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE items SET status = ?, assigned_to_id = ?, location_id = ?, order_id = ?,
		        updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		status, int64OrNil(assignedTo), int64OrNil(locationID), int64OrNil(orderID), id,
	)
	if err != nil {
		return fmt.Errorf("updating item state: %w", err)
	}
	return nil
}

// setItemQuantity rewrites a material lot's quantity. Lots are kept at zero
// rather than deleted so their history stays replayable.
func setItemQuantity(ctx context.Context, tx *sql.Tx, id int64, qty decimal.Decimal) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE items SET quantity = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		qty.String(), id,
	)
	if err != nil {
		return fmt.Errorf("updating item quantity: %w", err)
	}
	return nil
}

// findLotTx finds a holder's material lot suitable for merging: same material
// definition, held in the same way, and not earmarked by an open transfer
// request. Returns nil when none exists.
func findLotTx(ctx context.Context, tx *sql.Tx, materialID int64, status string, assignedTo, locationID *int64) (*model.Item, error) {
	query := `SELECT ` + itemColumns + itemJoins + `
		WHERE i.kind = 'material' AND i.material_id = ? AND i.status = ?
		  AND NOT EXISTS (SELECT 1 FROM transfer_requests tr
		                  WHERE tr.pending_item_id = i.id AND tr.status = 'requested')`
	args := []any{materialID, status}

	if assignedTo != nil {
		query += ` AND i.assigned_to_id = ?`
		args = append(args, *assignedTo)
	} else {
		query += ` AND i.assigned_to_id IS NULL`
	}
	if locationID != nil {
		query += ` AND i.location_id = ?`
		args = append(args, *locationID)
	} else {
		query += ` AND i.location_id IS NULL`
	}
	query += ` ORDER BY i.id LIMIT 1`

	item, err := scanItem(tx.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding material lot: %w", err)
	}
	return item, nil
}

// createLotTx inserts a new material lot row.
func createLotTx(ctx context.Context, tx *sql.Tx, material *model.Material, qty decimal.Decimal, status string, assignedTo, locationID *int64) (int64, error) {
	result, err := tx.ExecContext(ctx,
		`INSERT INTO items (kind, name, material_id, quantity, status, assigned_to_id, location_id)
		 VALUES ('material', ?, ?, ?, ?, ?, ?)`,
		material.Name, material.ID, qty.String(), status, int64OrNil(assignedTo), int64OrNil(locationID),
	)
	if err != nil {
		return 0, fmt.Errorf("creating material lot: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("getting lot id: %w", err)
	}
	return id, nil
}
