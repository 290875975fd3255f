package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/erazemk/teren/internal/model"
)

// Warehouse desk operations: receiving stock, issuing it to technicians,
// taking it back, and removing it from circulation. Each operation runs in a
// single transaction and appends to the history ledger.

// ReceiveDevice registers a new device at a warehouse location.
func ReceiveDevice(ctx context.Context, db *sql.DB, name, serial, category string, locationID int64, userID *int64) (*model.Item, error) {
	if name == "" {
		return nil, fmt.Errorf("device name required: %w", ErrBadRequest)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := getHolderTx(ctx, tx, locationID, model.HolderLocation); err != nil {
		return nil, err
	}

	if serial != "" {
		var existing int64
		err := tx.QueryRowContext(ctx,
			`SELECT id FROM items WHERE serial = ?`, serial,
		).Scan(&existing)
		if err == nil {
			return nil, fmt.Errorf("serial %q already used by item %d: %w", serial, existing, ErrConflict)
		}
		if err != sql.ErrNoRows {
			return nil, fmt.Errorf("checking serial: %w", err)
		}
	}

	result, err := tx.ExecContext(ctx,
		`INSERT INTO items (kind, name, serial, category, status, location_id)
		 VALUES ('device', ?, ?, ?, 'AVAILABLE', ?)`,
		name, serial, category, locationID,
	)
	if err != nil {
		return nil, fmt.Errorf("creating device: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting device id: %w", err)
	}

	err = appendHistory(ctx, tx, model.HistoryEntry{
		ItemID:   id,
		Action:   model.ActionReceived,
		UserID:   userID,
		HolderID: &locationID,
	})
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing receipt: %w", err)
	}
	return GetItem(ctx, db, id)
}

// ReceiveMaterial adds material stock at a warehouse location, merging into
// the location's existing lot when one exists.
func ReceiveMaterial(ctx context.Context, db *sql.DB, materialID int64, qty decimal.Decimal, locationID int64, userID *int64) (*model.Item, error) {
	if qty.Sign() <= 0 {
		return nil, fmt.Errorf("quantity must be positive: %w", ErrBadRequest)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := getHolderTx(ctx, tx, locationID, model.HolderLocation); err != nil {
		return nil, err
	}
	material, err := getMaterialTx(ctx, tx, materialID)
	if err != nil {
		return nil, err
	}

	lot, err := findLotTx(ctx, tx, materialID, model.StatusAvailable, nil, &locationID)
	if err != nil {
		return nil, err
	}

	var lotID int64
	if lot != nil {
		lotID = lot.ID
		if err := setItemQuantity(ctx, tx, lotID, lot.Quantity.Add(qty)); err != nil {
			return nil, err
		}
	} else {
		lotID, err = createLotTx(ctx, tx, material, qty, model.StatusAvailable, nil, &locationID)
		if err != nil {
			return nil, err
		}
	}

	err = appendHistory(ctx, tx, model.HistoryEntry{
		ItemID:   lotID,
		Action:   model.ActionReceived,
		UserID:   userID,
		HolderID: &locationID,
		Quantity: &qty,
	})
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing receipt: %w", err)
	}
	return GetItem(ctx, db, lotID)
}

// IssueLine is one item to issue to a technician. Quantity applies to
// material lots; devices move whole.
type IssueLine struct {
	ItemID   int64           `json:"item_id"`
	Quantity decimal.Decimal `json:"quantity"`
}

// IssueItems hands warehouse stock to a technician. Devices must be
// AVAILABLE. Material quantities are drawn from the warehouse lot; the
// technician's outstanding deficit is settled first and only the remainder
// reaches their visible stock.
func IssueItems(ctx context.Context, db *sql.DB, technicianID int64, lines []IssueLine, userID *int64) error {
	if len(lines) == 0 {
		return fmt.Errorf("nothing to issue: %w", ErrBadRequest)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := getHolderTx(ctx, tx, technicianID, model.HolderTechnician); err != nil {
		return err
	}

	for _, line := range lines {
		item, err := getItemTx(ctx, tx, line.ItemID)
		if err != nil {
			return err
		}

		switch item.Kind {
		case model.KindDevice:
			if item.Status != model.StatusAvailable {
				return fmt.Errorf("device %d is %s, not AVAILABLE: %w", item.ID, item.Status, ErrConflict)
			}
			if err := setItemState(ctx, tx, item.ID, model.StatusAssigned, &technicianID, nil, nil); err != nil {
				return err
			}
			err = appendHistory(ctx, tx, model.HistoryEntry{
				ItemID:   item.ID,
				Action:   model.ActionIssued,
				UserID:   userID,
				HolderID: &technicianID,
			})
			if err != nil {
				return err
			}

		case model.KindMaterial:
			if item.Status != model.StatusAvailable || item.LocationID == nil {
				return fmt.Errorf("lot %d is not warehouse stock: %w", item.ID, ErrConflict)
			}
			if line.Quantity.Sign() <= 0 {
				return fmt.Errorf("lot %d: quantity must be positive: %w", item.ID, ErrBadRequest)
			}
			if line.Quantity.GreaterThan(item.Quantity) {
				return fmt.Errorf("lot %d: have %s, need %s: %w",
					item.ID, item.Quantity, line.Quantity, ErrBadRequest)
			}

			material, err := getMaterialTx(ctx, tx, *item.MaterialID)
			if err != nil {
				return err
			}
			if err := setItemQuantity(ctx, tx, item.ID, item.Quantity.Sub(line.Quantity)); err != nil {
				return err
			}
			_, err = creditMaterialTx(ctx, tx, technicianID, material, line.Quantity,
				model.ActionIssued, item.ID, nil, userID)
			if err != nil {
				return err
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing issue: %w", err)
	}
	return nil
}

// ReturnToWarehouse takes items back from a technician to a location.
// Assigned devices become AVAILABLE again; devices collected from clients
// become RETURNED and keep their order link for traceability. Material lots
// merge back into the location's stock.
func ReturnToWarehouse(ctx context.Context, db *sql.DB, itemIDs []int64, locationID int64, userID *int64) error {
	if len(itemIDs) == 0 {
		return fmt.Errorf("nothing to return: %w", ErrBadRequest)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := getHolderTx(ctx, tx, locationID, model.HolderLocation); err != nil {
		return err
	}

	for _, id := range itemIDs {
		item, err := getItemTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if item.TransferPending {
			return fmt.Errorf("item %d has an open transfer request: %w", id, ErrConflict)
		}

		switch {
		case item.Kind == model.KindDevice && item.Status == model.StatusAssigned:
			if err := setItemState(ctx, tx, item.ID, model.StatusAvailable, nil, &locationID, nil); err != nil {
				return err
			}
		case item.Kind == model.KindDevice && item.Status == model.StatusCollectedFromClient:
			if err := setItemState(ctx, tx, item.ID, model.StatusReturned, nil, &locationID, item.OrderID); err != nil {
				return err
			}
		case item.Kind == model.KindMaterial && item.Status == model.StatusAssigned:
			if item.Quantity.Sign() <= 0 {
				continue
			}
			material, err := getMaterialTx(ctx, tx, *item.MaterialID)
			if err != nil {
				return err
			}
			if err := setItemQuantity(ctx, tx, item.ID, decimal.Zero); err != nil {
				return err
			}

			qty := item.Quantity
			lot, err := findLotTx(ctx, tx, material.ID, model.StatusAvailable, nil, &locationID)
			if err != nil {
				return err
			}
			var targetID int64
			if lot != nil {
				targetID = lot.ID
				if err := setItemQuantity(ctx, tx, targetID, lot.Quantity.Add(qty)); err != nil {
					return err
				}
			} else {
				targetID, err = createLotTx(ctx, tx, material, qty, model.StatusAvailable, nil, &locationID)
				if err != nil {
					return err
				}
			}
			err = appendHistory(ctx, tx, model.HistoryEntry{
				ItemID:      targetID,
				Action:      model.ActionReturned,
				UserID:      userID,
				PerformerID: item.AssignedToID,
				HolderID:    &locationID,
				Quantity:    &qty,
			})
			if err != nil {
				return err
			}
			continue
		default:
			return fmt.Errorf("item %d is %s and cannot be returned: %w", id, item.Status, ErrConflict)
		}

		err = appendHistory(ctx, tx, model.HistoryEntry{
			ItemID:      item.ID,
			Action:      model.ActionReturned,
			UserID:      userID,
			PerformerID: item.AssignedToID,
			HolderID:    &locationID,
			OrderID:     item.OrderID,
		})
		if err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing return: %w", err)
	}
	return nil
}

// ReturnToOperator permanently removes items from circulation. Terminal: the
// unit is never again issuable. The last order link is kept for traceability.
func ReturnToOperator(ctx context.Context, db *sql.DB, itemIDs []int64, userID *int64) error {
	if len(itemIDs) == 0 {
		return fmt.Errorf("nothing to return: %w", ErrBadRequest)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, id := range itemIDs {
		item, err := getItemTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if item.Status == model.StatusReturnedToOperator {
			return fmt.Errorf("item %d already returned to operator: %w", id, ErrConflict)
		}
		if item.TransferPending {
			return fmt.Errorf("item %d has an open transfer request: %w", id, ErrConflict)
		}

		if err := setItemState(ctx, tx, item.ID, model.StatusReturnedToOperator, nil, nil, item.OrderID); err != nil {
			return err
		}

		entry := model.HistoryEntry{
			ItemID:  item.ID,
			Action:  model.ActionReturnedToOperator,
			UserID:  userID,
			OrderID: item.OrderID,
		}
		if item.Kind == model.KindMaterial {
			qty := item.Quantity
			entry.Quantity = &qty
		}
		if err := appendHistory(ctx, tx, entry); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing operator return: %w", err)
	}
	return nil
}

// CollectedDevice describes a device picked up at a customer site. Devices
// without a readable serial get a generated provisional one.
type CollectedDevice struct {
	Name     string `json:"name"`
	Serial   string `json:"serial"`
	Category string `json:"category"`
}

// CollectFromClient records a device picked up from a customer for an order.
func CollectFromClient(ctx context.Context, db *sql.DB, orderID, technicianID int64, desc CollectedDevice, userID *int64) (*model.Item, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := getOrderTx(ctx, tx, orderID); err != nil {
		return nil, err
	}
	id, err := collectFromClientTx(ctx, tx, orderID, technicianID, desc, userID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing collection: %w", err)
	}
	return GetItem(ctx, db, id)
}

// collectFromClientTx resolves the device by serial: an existing record is
// reused and updated in place rather than duplicated, so exactly one item per
// serial exists system-wide. The item becomes COLLECTED_FROM_CLIENT held by
// the technician, is linked to the order, and the collection is logged.
func collectFromClientTx(ctx context.Context, tx *sql.Tx, orderID, technicianID int64, desc CollectedDevice, userID *int64) (int64, error) {
	if desc.Name == "" {
		return 0, fmt.Errorf("collected device name required: %w", ErrBadRequest)
	}
	if _, err := getHolderTx(ctx, tx, technicianID, model.HolderTechnician); err != nil {
		return 0, err
	}

	serial := desc.Serial
	if serial == "" {
		serial = "CLI-" + uuid.NewString()
	}

	var id int64
	err := tx.QueryRowContext(ctx, `SELECT id FROM items WHERE serial = ?`, serial).Scan(&id)
	switch {
	case err == sql.ErrNoRows:
		result, err := tx.ExecContext(ctx,
			`INSERT INTO items (kind, name, serial, category, status, assigned_to_id, order_id)
			 VALUES ('device', ?, ?, ?, 'COLLECTED_FROM_CLIENT', ?, ?)`,
			desc.Name, serial, desc.Category, technicianID, orderID,
		)
		if err != nil {
			return 0, fmt.Errorf("creating collected device: %w", err)
		}
		id, err = result.LastInsertId()
		if err != nil {
			return 0, fmt.Errorf("getting collected device id: %w", err)
		}
	case err != nil:
		return 0, fmt.Errorf("resolving serial: %w", err)
	default:
		if err := setItemState(ctx, tx, id, model.StatusCollectedFromClient, &technicianID, nil, &orderID); err != nil {
			return 0, err
		}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO order_equipment (order_id, item_id) VALUES (?, ?)`,
		orderID, id,
	)
	if err != nil {
		return 0, fmt.Errorf("linking collected device: %w", err)
	}

	err = appendHistory(ctx, tx, model.HistoryEntry{
		ItemID:      id,
		Action:      model.ActionCollectedFromClient,
		UserID:      userID,
		PerformerID: &technicianID,
		HolderID:    &technicianID,
		OrderID:     &orderID,
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}
