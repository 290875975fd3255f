package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/erazemk/teren/internal/model"
)

// Technician-to-technician handover. A transfer is its own negotiation
// entity: requested, then confirmed by the recipient or rolled back by either
// side. The partial unique index on open requests serializes competing
// requests for the same item; the loser fails its insert.

// RequestTransfer opens a transfer of an item from one technician to another.
// Devices are flagged whole; for material lots the requested quantity is
// split into a separate lot still owned by the sender but earmarked for the
// recipient, so the sender keeps using the rest.
func RequestTransfer(ctx context.Context, db *sql.DB, fromID, toID, itemID int64, qty *decimal.Decimal, userID *int64) (*model.TransferRequest, error) {
	if fromID == toID {
		return nil, fmt.Errorf("cannot transfer to same holder: %w", ErrBadRequest)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := getHolderTx(ctx, tx, toID, model.HolderTechnician); err != nil {
		return nil, err
	}

	item, err := getItemTx(ctx, tx, itemID)
	if err != nil {
		return nil, err
	}
	if item.Status != model.StatusAssigned || item.AssignedToID == nil || *item.AssignedToID != fromID {
		return nil, fmt.Errorf("item %d is not held by holder %d: %w", itemID, fromID, ErrForbidden)
	}
	if item.TransferPending {
		return nil, fmt.Errorf("item %d already has an open transfer request: %w", itemID, ErrConflict)
	}

	var qtyVal, pendingItemID any
	if item.Kind == model.KindMaterial {
		if qty == nil || qty.Sign() <= 0 {
			return nil, fmt.Errorf("material transfer requires a positive quantity: %w", ErrBadRequest)
		}
		if qty.GreaterThan(item.Quantity) {
			return nil, fmt.Errorf("have %s, requested %s: %w", item.Quantity, qty, ErrBadRequest)
		}

		material, err := getMaterialTx(ctx, tx, *item.MaterialID)
		if err != nil {
			return nil, err
		}
		if err := setItemQuantity(ctx, tx, item.ID, item.Quantity.Sub(*qty)); err != nil {
			return nil, err
		}
		pendingID, err := createLotTx(ctx, tx, material, *qty, model.StatusAssigned, &fromID, nil)
		if err != nil {
			return nil, err
		}
		qtyVal = qty.String()
		pendingItemID = pendingID
	}

	result, err := tx.ExecContext(ctx,
		`INSERT INTO transfer_requests (item_id, from_holder_id, to_holder_id, quantity, pending_item_id, requested_by)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		itemID, fromID, toID, qtyVal, pendingItemID, int64OrNil(userID),
	)
	if err != nil {
		return nil, fmt.Errorf("creating transfer request: %w", err)
	}
	requestID, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting request id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing transfer request: %w", err)
	}
	return GetTransferRequest(ctx, db, requestID)
}

// ConfirmTransfer accepts a pending transfer. Ownership moves to the
// recipient; material quantities merge into the recipient's existing lot when
// one exists. One TRANSFER ledger entry is appended crediting the original
// sender as performer and the recipient as new holder.
func ConfirmTransfer(ctx context.Context, db *sql.DB, requestID, recipientID int64, userID *int64) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	req, err := getOpenRequestTx(ctx, tx, requestID)
	if err != nil {
		return err
	}
	if req.ToHolderID != recipientID {
		return fmt.Errorf("request %d is not addressed to holder %d: %w", requestID, recipientID, ErrForbidden)
	}

	entry := model.HistoryEntry{
		Action:      model.ActionTransfer,
		UserID:      userID,
		PerformerID: &req.FromHolderID,
		HolderID:    &req.ToHolderID,
	}

	if req.PendingItemID == nil {
		// Device: the holder simply moves.
		if err := setItemState(ctx, tx, req.ItemID, model.StatusAssigned, &req.ToHolderID, nil, nil); err != nil {
			return err
		}
		entry.ItemID = req.ItemID
	} else {
		pending, err := getItemTx(ctx, tx, *req.PendingItemID)
		if err != nil {
			return err
		}
		entry.Quantity = req.Quantity

		lot, err := findLotTx(ctx, tx, *pending.MaterialID, model.StatusAssigned, &req.ToHolderID, nil)
		if err != nil {
			return err
		}
		if lot != nil {
			if err := setItemQuantity(ctx, tx, lot.ID, lot.Quantity.Add(pending.Quantity)); err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, `DELETE FROM items WHERE id = ?`, pending.ID); err != nil {
				return fmt.Errorf("removing pending lot: %w", err)
			}
			entry.ItemID = lot.ID
		} else {
			if err := setItemState(ctx, tx, pending.ID, model.StatusAssigned, &req.ToHolderID, nil, nil); err != nil {
				return err
			}
			entry.ItemID = pending.ID
		}
	}

	if err := appendHistory(ctx, tx, entry); err != nil {
		return err
	}
	if err := resolveRequestTx(ctx, tx, requestID, model.TransferConfirmed); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transfer: %w", err)
	}
	return nil
}

// RejectTransfer declines a pending transfer as the recipient.
func RejectTransfer(ctx context.Context, db *sql.DB, requestID, recipientID int64, userID *int64) error {
	return rollbackTransfer(ctx, db, requestID, recipientID, false)
}

// CancelTransfer withdraws a pending transfer as the sender.
func CancelTransfer(ctx context.Context, db *sql.DB, requestID, senderID int64, userID *int64) error {
	return rollbackTransfer(ctx, db, requestID, senderID, true)
}

// rollbackTransfer closes an open request without moving ownership. Material
// quantities merge back into the sender's lot; devices are untouched.
func rollbackTransfer(ctx context.Context, db *sql.DB, requestID, actorID int64, bySender bool) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	req, err := getOpenRequestTx(ctx, tx, requestID)
	if err != nil {
		return err
	}

	outcome := model.TransferRejected
	if bySender {
		outcome = model.TransferCancelled
		if req.FromHolderID != actorID {
			return fmt.Errorf("request %d was not sent by holder %d: %w", requestID, actorID, ErrForbidden)
		}
	} else if req.ToHolderID != actorID {
		return fmt.Errorf("request %d is not addressed to holder %d: %w", requestID, actorID, ErrForbidden)
	}

	if req.PendingItemID != nil {
		pending, err := getItemTx(ctx, tx, *req.PendingItemID)
		if err != nil {
			return err
		}
		lot, err := findLotTx(ctx, tx, *pending.MaterialID, model.StatusAssigned, &req.FromHolderID, nil)
		if err != nil {
			return err
		}
		if lot != nil && lot.ID != pending.ID {
			if err := setItemQuantity(ctx, tx, lot.ID, lot.Quantity.Add(pending.Quantity)); err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, `DELETE FROM items WHERE id = ?`, pending.ID); err != nil {
				return fmt.Errorf("removing pending lot: %w", err)
			}
		}
		// Without a lot to merge into, the pending row simply stays with the
		// sender; closing the request clears its earmark.
	}

	if err := resolveRequestTx(ctx, tx, requestID, outcome); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transfer rollback: %w", err)
	}
	return nil
}

const requestColumns = `
	tr.id, tr.item_id, tr.from_holder_id, tr.to_holder_id, tr.quantity,
	tr.pending_item_id, tr.status, tr.requested_by, tr.requested_at, tr.resolved_at`

func scanRequest(row rowScanner, joined bool) (*model.TransferRequest, error) {
	r := &model.TransferRequest{}
	var qty sql.NullString
	var pendingItemID, requestedBy sql.NullInt64
	dest := []any{&r.ID, &r.ItemID, &r.FromHolderID, &r.ToHolderID, &qty,
		&pendingItemID, &r.Status, &requestedBy, &r.RequestedAt, &r.ResolvedAt}
	if joined {
		dest = append(dest, &r.ItemName, &r.FromHolderName, &r.ToHolderName)
	}
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	r.PendingItemID = nullInt(pendingItemID)
	r.RequestedBy = nullInt(requestedBy)
	var err error
	r.Quantity, err = scanDecPtr(qty)
	if err != nil {
		return nil, err
	}
	return r, nil
}

// GetTransferRequest returns a transfer request by ID.
func GetTransferRequest(ctx context.Context, db *sql.DB, id int64) (*model.TransferRequest, error) {
	req, err := scanRequest(db.QueryRowContext(ctx,
		`SELECT `+requestColumns+`, i.name, fh.name, th.name
		 FROM transfer_requests tr
		 JOIN items i ON i.id = tr.item_id
		 JOIN holders fh ON fh.id = tr.from_holder_id
		 JOIN holders th ON th.id = tr.to_holder_id
		 WHERE tr.id = ?`, id,
	), true)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting transfer request: %w", err)
	}
	return req, nil
}

// ListTransferRequests returns transfer requests, optionally filtered by
// holder (either side) and status.
func ListTransferRequests(ctx context.Context, db *sql.DB, holderID int64, status string) ([]model.TransferRequest, error) {
	query := `SELECT ` + requestColumns + `, i.name, fh.name, th.name
	          FROM transfer_requests tr
	          JOIN items i ON i.id = tr.item_id
	          JOIN holders fh ON fh.id = tr.from_holder_id
	          JOIN holders th ON th.id = tr.to_holder_id
	          WHERE 1=1`
	var args []any
	if holderID > 0 {
		query += ` AND (tr.from_holder_id = ? OR tr.to_holder_id = ?)`
		args = append(args, holderID, holderID)
	}
	if status != "" {
		query += ` AND tr.status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY tr.requested_at DESC`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing transfer requests: %w", err)
	}
	defer rows.Close()

	var requests []model.TransferRequest
	for rows.Next() {
		req, err := scanRequest(rows, true)
		if err != nil {
			return nil, fmt.Errorf("scanning transfer request: %w", err)
		}
		requests = append(requests, *req)
	}
	return requests, rows.Err()
}

// getOpenRequestTx loads a request that is still in the requested state.
// A request already resolved (confirmed twice, for example) is not found.
func getOpenRequestTx(ctx context.Context, tx *sql.Tx, id int64) (*model.TransferRequest, error) {
	req, err := scanRequest(tx.QueryRowContext(ctx,
		`SELECT `+requestColumns+` FROM transfer_requests tr
		 WHERE tr.id = ? AND tr.status = 'requested'`, id,
	), false)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("open transfer request %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting transfer request: %w", err)
	}
	return req, nil
}

func resolveRequestTx(ctx context.Context, tx *sql.Tx, id int64, status string) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE transfer_requests SET status = ?, resolved_at = CURRENT_TIMESTAMP WHERE id = ?`,
		status, id,
	)
	if err != nil {
		return fmt.Errorf("resolving transfer request: %w", err)
	}
	return nil
}
