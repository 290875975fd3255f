package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/erazemk/teren/internal/model"
)

// The deficit ledger tracks, per (technician, material), how much the
// technician has consumed beyond what was ever issued to them. Consumption
// never fails on insufficient stock; the shortfall becomes a deficit. New
// credit settles the deficit first and only the remainder reaches the
// technician's visible stock. Deficits never go negative; the row is deleted
// at zero.

// ListDeficits returns deficits, optionally filtered by technician.
func ListDeficits(ctx context.Context, db *sql.DB, holderID int64) ([]model.Deficit, error) {
	query := `SELECT d.holder_id, d.material_id, d.quantity, h.name, m.name, m.unit
	          FROM deficits d
	          JOIN holders h ON h.id = d.holder_id
	          JOIN materials m ON m.id = d.material_id`
	var args []any
	if holderID > 0 {
		query += ` WHERE d.holder_id = ?`
		args = append(args, holderID)
	}
	query += ` ORDER BY h.name, m.name`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing deficits: %w", err)
	}
	defer rows.Close()

	var deficits []model.Deficit
	for rows.Next() {
		var d model.Deficit
		var qty string
		if err := rows.Scan(&d.HolderID, &d.MaterialID, &qty, &d.HolderName, &d.MaterialName, &d.Unit); err != nil {
			return nil, fmt.Errorf("scanning deficit: %w", err)
		}
		d.Quantity, err = decimal.NewFromString(qty)
		if err != nil {
			return nil, fmt.Errorf("parsing deficit quantity: %w", err)
		}
		deficits = append(deficits, d)
	}
	return deficits, rows.Err()
}

// getDeficitTx returns the technician's outstanding deficit for a material,
// zero when no row exists.
func getDeficitTx(ctx context.Context, tx *sql.Tx, holderID, materialID int64) (decimal.Decimal, error) {
	var qty string
	err := tx.QueryRowContext(ctx,
		`SELECT quantity FROM deficits WHERE holder_id = ? AND material_id = ?`,
		holderID, materialID,
	).Scan(&qty)
	if err == sql.ErrNoRows {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("getting deficit: %w", err)
	}
	d, err := decimal.NewFromString(qty)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parsing deficit quantity: %w", err)
	}
	return d, nil
}

// setDeficitTx writes the deficit row, deleting it at zero. Negative values
// are a programming error upstream; they are clamped to zero here.
func setDeficitTx(ctx context.Context, tx *sql.Tx, holderID, materialID int64, qty decimal.Decimal) error {
	if qty.Sign() <= 0 {
		_, err := tx.ExecContext(ctx,
			`DELETE FROM deficits WHERE holder_id = ? AND material_id = ?`,
			holderID, materialID,
		)
		if err != nil {
			return fmt.Errorf("clearing deficit: %w", err)
		}
		return nil
	}

	_, err := tx.ExecContext(ctx,
		`INSERT INTO deficits (holder_id, material_id, quantity) VALUES (?, ?, ?)
		 ON CONFLICT (holder_id, material_id) DO UPDATE SET quantity = excluded.quantity`,
		holderID, materialID, qty.String(),
	)
	if err != nil {
		return fmt.Errorf("setting deficit: %w", err)
	}
	return nil
}

// creditMaterialTx credits quantity of a material to a technician: the
// outstanding deficit is reduced first and only the remainder is merged into
// (or created as) the technician's own lot. A ledger entry with the given
// action is appended on the lot that received the remainder; when everything
// went into the deficit the entry lands on sourceItemID (or the technician's
// first lot when the credit has no source row) so the movement is still
// audited. Returns the amount that reached visible stock.
func creditMaterialTx(ctx context.Context, tx *sql.Tx, techID int64, material *model.Material, qty decimal.Decimal, action string, sourceItemID int64, orderID, userID *int64) (decimal.Decimal, error) {
	deficit, err := getDeficitTx(ctx, tx, techID, material.ID)
	if err != nil {
		return decimal.Zero, err
	}

	remainder := qty
	if deficit.Sign() > 0 {
		settled := decimal.Min(deficit, qty)
		if err := setDeficitTx(ctx, tx, techID, material.ID, deficit.Sub(settled)); err != nil {
			return decimal.Zero, err
		}
		remainder = qty.Sub(settled)
	}

	entry := model.HistoryEntry{
		Action:      action,
		UserID:      userID,
		PerformerID: &techID,
		HolderID:    &techID,
		OrderID:     orderID,
		Quantity:    &qty,
	}

	lot, err := findLotTx(ctx, tx, material.ID, model.StatusAssigned, &techID, nil)
	if err != nil {
		return decimal.Zero, err
	}

	if remainder.Sign() <= 0 {
		switch {
		case sourceItemID > 0:
			entry.ItemID = sourceItemID
		case lot != nil:
			entry.ItemID = lot.ID
		default:
			// Fully settled against the deficit with no row to log against.
			return decimal.Zero, nil
		}
		return decimal.Zero, appendHistory(ctx, tx, entry)
	}
	if lot != nil {
		if err := setItemQuantity(ctx, tx, lot.ID, lot.Quantity.Add(remainder)); err != nil {
			return decimal.Zero, err
		}
		entry.ItemID = lot.ID
	} else {
		lotID, err := createLotTx(ctx, tx, material, remainder, model.StatusAssigned, &techID, nil)
		if err != nil {
			return decimal.Zero, err
		}
		entry.ItemID = lotID
	}
	return remainder, appendHistory(ctx, tx, entry)
}

// consumeMaterialTx consumes quantity of a material from a technician's lots
// for an order. Lots are drained oldest first; any shortfall grows the
// deficit instead of failing. Each drained lot gets an ASSIGNED_TO_ORDER
// ledger entry with the amount taken from it.
func consumeMaterialTx(ctx context.Context, tx *sql.Tx, techID int64, material *model.Material, qty decimal.Decimal, orderID int64, userID *int64) error {
	rows, err := tx.QueryContext(ctx,
		`SELECT `+itemColumns+itemJoins+`
		 WHERE i.kind = 'material' AND i.material_id = ? AND i.status = 'ASSIGNED'
		   AND i.assigned_to_id = ?
		   AND NOT EXISTS (SELECT 1 FROM transfer_requests tr
		                   WHERE tr.pending_item_id = i.id AND tr.status = 'requested')
		 ORDER BY i.id`, material.ID, techID,
	)
	if err != nil {
		return fmt.Errorf("listing technician lots: %w", err)
	}
	var lots []model.Item
	for rows.Next() {
		lot, err := scanItem(rows)
		if err != nil {
			rows.Close()
			return fmt.Errorf("scanning lot: %w", err)
		}
		lots = append(lots, *lot)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	remaining := qty
	for _, lot := range lots {
		if remaining.Sign() <= 0 {
			break
		}
		if lot.Quantity.Sign() <= 0 {
			continue
		}
		taken := decimal.Min(lot.Quantity, remaining)
		if err := setItemQuantity(ctx, tx, lot.ID, lot.Quantity.Sub(taken)); err != nil {
			return err
		}
		remaining = remaining.Sub(taken)

		err := appendHistory(ctx, tx, model.HistoryEntry{
			ItemID:      lot.ID,
			Action:      model.ActionAssignedToOrder,
			UserID:      userID,
			PerformerID: &techID,
			OrderID:     &orderID,
			Quantity:    &taken,
		})
		if err != nil {
			return err
		}
	}

	if remaining.Sign() > 0 {
		deficit, err := getDeficitTx(ctx, tx, techID, material.ID)
		if err != nil {
			return err
		}
		if err := setDeficitTx(ctx, tx, techID, material.ID, deficit.Add(remaining)); err != nil {
			return err
		}
	}
	return nil
}
