package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/erazemk/teren/internal/model"
)

// The history table is the authority for rollback: the denormalized state on
// an item row must always equal the result of replaying its entries in order.
// Entries are appended, never updated. The single permitted deletion is the
// compensating rollback that erases a provisional item, and it removes entries
// newest-first with an exact match on id, item and action.

// appendHistory records one ledger entry for an item.
func appendHistory(ctx context.Context, tx *sql.Tx, e model.HistoryEntry) error {
	var qty any
	if e.Quantity != nil {
		qty = e.Quantity.String()
	}
	_, err := tx.ExecContext(ctx,
		`INSERT INTO history (item_id, action, user_id, performer_id, holder_id, order_id, quantity)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ItemID, e.Action, int64OrNil(e.UserID), int64OrNil(e.PerformerID),
		int64OrNil(e.HolderID), int64OrNil(e.OrderID), qty,
	)
	if err != nil {
		return fmt.Errorf("appending history: %w", err)
	}
	return nil
}

const historyColumns = `
	h.id, h.item_id, h.action, h.user_id, h.performer_id, h.holder_id, h.order_id,
	h.quantity, h.created_at`

func scanHistory(row rowScanner) (*model.HistoryEntry, error) {
	e := &model.HistoryEntry{}
	var userID, performerID, holderID, orderID sql.NullInt64
	var qty sql.NullString

	err := row.Scan(&e.ID, &e.ItemID, &e.Action, &userID, &performerID, &holderID, &orderID,
		&qty, &e.CreatedAt)
	if err != nil {
		return nil, err
	}

	e.UserID = nullInt(userID)
	e.PerformerID = nullInt(performerID)
	e.HolderID = nullInt(holderID)
	e.OrderID = nullInt(orderID)
	e.Quantity, err = scanDecPtr(qty)
	if err != nil {
		return nil, err
	}
	return e, nil
}

// GetItemHistory returns an item's ledger entries in append order.
func GetItemHistory(ctx context.Context, db *sql.DB, itemID int64) ([]model.HistoryEntry, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+historyColumns+`, COALESCE(ho.name, '')
		 FROM history h
		 LEFT JOIN holders ho ON ho.id = h.holder_id
		 WHERE h.item_id = ?
		 ORDER BY h.id`, itemID,
	)
	if err != nil {
		return nil, fmt.Errorf("getting item history: %w", err)
	}
	defer rows.Close()

	var entries []model.HistoryEntry
	for rows.Next() {
		e := &model.HistoryEntry{}
		var userID, performerID, holderID, orderID sql.NullInt64
		var qty sql.NullString
		if err := rows.Scan(&e.ID, &e.ItemID, &e.Action, &userID, &performerID, &holderID, &orderID,
			&qty, &e.CreatedAt, &e.HolderName); err != nil {
			return nil, fmt.Errorf("scanning history: %w", err)
		}
		e.UserID = nullInt(userID)
		e.PerformerID = nullInt(performerID)
		e.HolderID = nullInt(holderID)
		e.OrderID = nullInt(orderID)
		e.Quantity, err = scanDecPtr(qty)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

// itemHistoryTx returns an item's entries in append order within a transaction.
func itemHistoryTx(ctx context.Context, tx *sql.Tx, itemID int64) ([]model.HistoryEntry, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT `+historyColumns+` FROM history h WHERE h.item_id = ? ORDER BY h.id`, itemID,
	)
	if err != nil {
		return nil, fmt.Errorf("getting item history: %w", err)
	}
	defer rows.Close()

	var entries []model.HistoryEntry
	for rows.Next() {
		e, err := scanHistory(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning history: %w", err)
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

// eraseItemHistory removes all entries for a provisional item, newest first,
// each deletion matched exactly against the entry it targets.
func eraseItemHistory(ctx context.Context, tx *sql.Tx, itemID int64) error {
	entries, err := itemHistoryTx(ctx, tx, itemID)
	if err != nil {
		return err
	}
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		result, err := tx.ExecContext(ctx,
			`DELETE FROM history WHERE id = ? AND item_id = ? AND action = ?`,
			e.ID, e.ItemID, e.Action,
		)
		if err != nil {
			return fmt.Errorf("erasing history entry %d: %w", e.ID, err)
		}
		if n, _ := result.RowsAffected(); n != 1 {
			return fmt.Errorf("history entry %d changed during rollback: %w", e.ID, ErrConflict)
		}
	}
	return nil
}

// priorEntryForOrder finds the entry immediately preceding the item's most
// recent binding (ASSIGNED_TO_ORDER or COLLECTED_FROM_CLIENT) to the given
// order. The second return reports whether a binding entry exists at all; a
// nil entry with ok=true means the item only ever existed because of this
// binding.
func priorEntryForOrder(ctx context.Context, tx *sql.Tx, itemID, orderID int64) (*model.HistoryEntry, bool, error) {
	var bindingID int64
	err := tx.QueryRowContext(ctx,
		`SELECT id FROM history
		 WHERE item_id = ? AND order_id = ?
		   AND action IN ('ASSIGNED_TO_ORDER', 'COLLECTED_FROM_CLIENT')
		 ORDER BY id DESC LIMIT 1`, itemID, orderID,
	).Scan(&bindingID)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("finding binding entry: %w", err)
	}

	prior, err := scanHistory(tx.QueryRowContext(ctx,
		`SELECT `+historyColumns+` FROM history h
		 WHERE h.item_id = ? AND h.id < ?
		 ORDER BY h.id DESC LIMIT 1`, itemID, bindingID,
	))
	if err == sql.ErrNoRows {
		return nil, true, nil
	}
	if err != nil {
		return nil, true, fmt.Errorf("finding prior entry: %w", err)
	}
	return prior, true, nil
}

// ReplayItem folds a device's history entries into the status/holder/order
// state they imply. Tests use it to prove the denormalized item row never
// drifts from the ledger. It is defined for devices only: material lot
// entries record quantity flows between rows (splits, merges, draws), which
// the conservation property covers instead.
func ReplayItem(entries []model.HistoryEntry) (status string, assignedTo, locationID, orderID *int64) {
	for _, e := range entries {
		switch e.Action {
		case model.ActionReceived:
			status = model.StatusAvailable
			assignedTo, locationID, orderID = nil, e.HolderID, nil
		case model.ActionIssued, model.ActionReturnedToTechnician:
			status = model.StatusAssigned
			assignedTo, locationID, orderID = e.HolderID, nil, nil
		case model.ActionTransfer:
			status = model.StatusAssigned
			assignedTo, locationID, orderID = e.HolderID, nil, nil
		case model.ActionReturned:
			if status == model.StatusCollectedFromClient {
				status = model.StatusReturned
			} else {
				status = model.StatusAvailable
				orderID = nil
			}
			assignedTo, locationID = nil, e.HolderID
		case model.ActionReturnedToOperator:
			status = model.StatusReturnedToOperator
			assignedTo, locationID = nil, nil
			if e.OrderID != nil {
				orderID = e.OrderID
			}
		case model.ActionAssignedToOrder:
			status = model.StatusAssignedToOrder
			assignedTo, locationID, orderID = nil, nil, e.OrderID
		case model.ActionCollectedFromClient:
			status = model.StatusCollectedFromClient
			assignedTo, locationID, orderID = e.HolderID, nil, e.OrderID
		}
	}
	return status, assignedTo, locationID, orderID
}
