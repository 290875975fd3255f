package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/erazemk/teren/internal/model"
)

// The delta reconciler synchronizes an order's claimed equipment and material
// usage against warehouse state. It is invoked identically for a technician's
// first completion, a technician's amendment inside the window, and an
// administrative re-edit; only authorization and the time box differ. The
// previous sets come from the join tables (the settlement source of truth),
// while rollback of removed devices is reconstructed from the history ledger.
// Everything runs in one transaction: either the whole new state commits or
// nothing does.

// CompletionInput is the desired final state of an order.
type CompletionInput struct {
	WorkCodes    []string              `json:"work_codes"`
	EquipmentIDs []int64               `json:"equipment_ids"`
	Materials    []model.MaterialUsage `json:"materials"`
	Collected    []CollectedDevice     `json:"collected"`
}

// ReconcileResult carries non-fatal findings back to the caller. Warnings
// never abort the operation.
type ReconcileResult struct {
	Warnings []string `json:"warnings"`
}

// CompleteOrder records a technician's first completion of their assigned
// order. Installation orders require at least one work code.
func CompleteOrder(ctx context.Context, db *sql.DB, orderID, technicianID int64, userID *int64, in CompletionInput) (*ReconcileResult, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	order, err := getOrderTx(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != model.OrderAssigned {
		return nil, fmt.Errorf("order %s is %s, not assigned: %w", order.Code, order.Status, ErrConflict)
	}
	if order.TechnicianID == nil || *order.TechnicianID != technicianID {
		return nil, fmt.Errorf("order %s is not assigned to holder %d: %w", order.Code, technicianID, ErrForbidden)
	}

	warnings, err := reconcileTx(ctx, tx, order, &technicianID, userID, in, true)
	if err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE orders SET status = 'completed', completed_at = CURRENT_TIMESTAMP, completed_by = ?
		 WHERE id = ?`,
		int64OrNil(userID), orderID,
	)
	if err != nil {
		return nil, fmt.Errorf("completing order: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing completion: %w", err)
	}
	return &ReconcileResult{Warnings: warnings}, nil
}

// AmendOrder lets the completing technician correct their own completion
// within the configured window. The window is a hard deadline anchored at the
// first completion; past it the amendment is forbidden.
func AmendOrder(ctx context.Context, db *sql.DB, orderID, technicianID int64, userID *int64, in CompletionInput) (*ReconcileResult, error) {
	window, err := GetAmendWindow(ctx, db)
	if err != nil {
		return nil, err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	order, err := getOrderTx(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != model.OrderCompleted {
		return nil, fmt.Errorf("order %s is %s, not completed: %w", order.Code, order.Status, ErrConflict)
	}
	if order.TechnicianID == nil || *order.TechnicianID != technicianID {
		return nil, fmt.Errorf("order %s is not assigned to holder %d: %w", order.Code, technicianID, ErrForbidden)
	}
	if order.CompletedAt == nil || time.Since(*order.CompletedAt) > window {
		return nil, fmt.Errorf("amendment window for order %s elapsed: %w", order.Code, ErrForbidden)
	}

	warnings, err := reconcileTx(ctx, tx, order, &technicianID, userID, in, true)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing amendment: %w", err)
	}
	return &ReconcileResult{Warnings: warnings}, nil
}

// AdminEditOrder re-edits a completed order without a time box, regardless of
// assignee. When the order has no technician, stock restoration for removed
// materials is skipped gracefully; device rollback still works because it is
// reconstructed from history, not from the technician context.
func AdminEditOrder(ctx context.Context, db *sql.DB, orderID int64, userID *int64, in CompletionInput) (*ReconcileResult, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	order, err := getOrderTx(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != model.OrderCompleted {
		return nil, fmt.Errorf("order %s is %s, not completed: %w", order.Code, order.Status, ErrConflict)
	}

	warnings, err := reconcileTx(ctx, tx, order, order.TechnicianID, userID, in, false)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing admin edit: %w", err)
	}
	return &ReconcileResult{Warnings: warnings}, nil
}

// reconcileTx applies the full desired state to the order: settlement work
// codes, collected client devices, the equipment delta and the material
// delta. requireHeld selects the technician authorization rule for newly
// bound devices (must currently hold them) versus the admin rule (anything
// not bound elsewhere).
func reconcileTx(ctx context.Context, tx *sql.Tx, order *model.Order, techID, userID *int64, in CompletionInput, requireHeld bool) ([]string, error) {
	var warnings []string

	// Settlement entries. Installation orders must claim at least one code.
	if order.Kind == model.OrderInstallation && len(in.WorkCodes) == 0 {
		return nil, fmt.Errorf("installation order %s requires at least one work code: %w", order.Code, ErrBadRequest)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM order_work_codes WHERE order_id = ?`, order.ID); err != nil {
		return nil, fmt.Errorf("clearing work codes: %w", err)
	}
	for _, code := range in.WorkCodes {
		if code == "" {
			return nil, fmt.Errorf("empty work code: %w", ErrBadRequest)
		}
		amount, created, err := resolveRateTx(ctx, tx, code)
		if err != nil {
			return nil, err
		}
		if created {
			warnings = append(warnings, fmt.Sprintf("rate code %q auto-created with zero amount", code))
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO order_work_codes (order_id, code, amount) VALUES (?, ?, ?)`,
			order.ID, code, amount.String(),
		)
		if err != nil {
			return nil, fmt.Errorf("recording work code: %w", err)
		}
	}

	// Previous equipment set, snapshotted before client collections are
	// processed so re-collections of already known devices stay idempotent.
	prev := map[int64]bool{}
	rows, err := tx.QueryContext(ctx, `SELECT item_id FROM order_equipment WHERE order_id = ?`, order.ID)
	if err != nil {
		return nil, fmt.Errorf("reading bound equipment: %w", err)
	}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning bound equipment: %w", err)
		}
		prev[id] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	next := map[int64]bool{}
	for _, id := range in.EquipmentIDs {
		next[id] = true
	}

	// Client collections resolve by serial and bind themselves.
	if len(in.Collected) > 0 && techID == nil {
		return nil, fmt.Errorf("order %s has no technician to hold collected devices: %w", order.Code, ErrBadRequest)
	}
	for _, desc := range in.Collected {
		id, err := collectFromClientTx(ctx, tx, order.ID, *techID, desc, userID)
		if err != nil {
			return nil, err
		}
		next[id] = true
	}

	// Validate every device to add before mutating anything: an invalid
	// reference aborts the whole reconciliation.
	var toAdd []*model.Item
	for id := range next {
		if prev[id] {
			continue
		}
		item, err := getItemTx(ctx, tx, id)
		if err != nil {
			return nil, err
		}
		if item.OrderID != nil && *item.OrderID == order.ID {
			continue // bound moments ago by collectFromClientTx
		}
		if item.Kind != model.KindDevice {
			return nil, fmt.Errorf("item %d is a material lot, not equipment: %w", id, ErrBadRequest)
		}
		if item.OrderID != nil && *item.OrderID != order.ID {
			return nil, fmt.Errorf("device %d already bound to order %d: %w", id, *item.OrderID, ErrConflict)
		}
		if item.Status == model.StatusReturnedToOperator {
			return nil, fmt.Errorf("device %d was returned to the operator: %w", id, ErrConflict)
		}
		if item.TransferPending {
			return nil, fmt.Errorf("device %d has an open transfer request: %w", id, ErrConflict)
		}
		if requireHeld {
			held := (item.Status == model.StatusAssigned || item.Status == model.StatusCollectedFromClient) &&
				item.AssignedToID != nil && techID != nil && *item.AssignedToID == *techID
			if !held {
				return nil, fmt.Errorf("device %d is not held by holder %d: %w", id, *techID, ErrForbidden)
			}
		}
		toAdd = append(toAdd, item)
	}

	for _, item := range toAdd {
		if err := bindToOrderTx(ctx, tx, item, order.ID, userID); err != nil {
			return nil, err
		}
	}

	for id := range prev {
		if next[id] {
			continue
		}
		w, err := unbindFromOrderTx(ctx, tx, id, order.ID, userID)
		if err != nil {
			return nil, err
		}
		warnings = append(warnings, w...)
	}

	// Material delta through the deficit ledger.
	w, err := reconcileMaterialsTx(ctx, tx, order, techID, userID, in.Materials)
	if err != nil {
		return nil, err
	}
	warnings = append(warnings, w...)

	return warnings, nil
}

// bindToOrderTx consumes a validated device into an order. Collected client
// devices keep their status and holder; everything else becomes
// ASSIGNED_TO_ORDER with no individual holder.
func bindToOrderTx(ctx context.Context, tx *sql.Tx, item *model.Item, orderID int64, userID *int64) error {
	entry := model.HistoryEntry{
		ItemID:  item.ID,
		UserID:  userID,
		OrderID: &orderID,
	}

	if item.Status == model.StatusCollectedFromClient {
		if err := setItemState(ctx, tx, item.ID, item.Status, item.AssignedToID, nil, &orderID); err != nil {
			return err
		}
		entry.Action = model.ActionCollectedFromClient
		entry.HolderID = item.AssignedToID
		entry.PerformerID = item.AssignedToID
	} else {
		if err := setItemState(ctx, tx, item.ID, model.StatusAssignedToOrder, nil, nil, &orderID); err != nil {
			return err
		}
		entry.Action = model.ActionAssignedToOrder
		entry.PerformerID = item.AssignedToID
	}

	_, err := tx.ExecContext(ctx,
		`INSERT INTO order_equipment (order_id, item_id) VALUES (?, ?)`,
		orderID, item.ID,
	)
	if err != nil {
		return fmt.Errorf("binding device %d: %w", item.ID, err)
	}
	return appendHistory(ctx, tx, entry)
}

// unbindFromOrderTx removes a device from an order and reconstructs its prior
// state from the entry immediately preceding its most recent binding to this
// order. A device that only ever existed because of this binding is erased
// entirely, history included.
func unbindFromOrderTx(ctx context.Context, tx *sql.Tx, itemID, orderID int64, userID *int64) ([]string, error) {
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM order_equipment WHERE order_id = ? AND item_id = ?`, orderID, itemID,
	); err != nil {
		return nil, fmt.Errorf("unbinding device %d: %w", itemID, err)
	}

	prior, hasBinding, err := priorEntryForOrder(ctx, tx, itemID, orderID)
	if err != nil {
		return nil, err
	}
	if !hasBinding {
		// The join row existed without a ledger entry; nothing to restore.
		return []string{fmt.Sprintf("device %d had no binding entry for order %d; left as is", itemID, orderID)}, nil
	}

	if prior == nil {
		// Provisional record created purely by this binding: erase it.
		if err := eraseItemHistory(ctx, tx, itemID); err != nil {
			return nil, err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM order_equipment WHERE item_id = ?`, itemID); err != nil {
			return nil, fmt.Errorf("unlinking device %d: %w", itemID, err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM items WHERE id = ?`, itemID); err != nil {
			return nil, fmt.Errorf("deleting device %d: %w", itemID, err)
		}
		return nil, nil
	}

	restored := model.HistoryEntry{
		ItemID: itemID,
		UserID: userID,
	}

	switch prior.Action {
	case model.ActionReceived, model.ActionReturned:
		if err := setItemState(ctx, tx, itemID, model.StatusAvailable, nil, prior.HolderID, nil); err != nil {
			return nil, err
		}
		restored.Action = model.ActionReturned
		restored.HolderID = prior.HolderID

	case model.ActionIssued, model.ActionTransfer, model.ActionReturnedToTechnician:
		if err := setItemState(ctx, tx, itemID, model.StatusAssigned, prior.HolderID, nil, nil); err != nil {
			return nil, err
		}
		restored.Action = model.ActionReturnedToTechnician
		restored.HolderID = prior.HolderID

	case model.ActionCollectedFromClient:
		if err := setItemState(ctx, tx, itemID, model.StatusCollectedFromClient, prior.HolderID, nil, prior.OrderID); err != nil {
			return nil, err
		}
		restored.Action = model.ActionCollectedFromClient
		restored.HolderID = prior.HolderID
		restored.PerformerID = prior.HolderID
		restored.OrderID = prior.OrderID

	case model.ActionAssignedToOrder:
		if err := setItemState(ctx, tx, itemID, model.StatusAssignedToOrder, nil, nil, prior.OrderID); err != nil {
			return nil, err
		}
		restored.Action = model.ActionAssignedToOrder
		restored.OrderID = prior.OrderID

	default:
		// No sound restoration for this prior action. Keep the conservative
		// "still at a prior engagement" state and flag it for review instead
		// of guessing.
		if err := setItemState(ctx, tx, itemID, model.StatusAssignedToOrder, nil, nil, prior.OrderID); err != nil {
			return nil, err
		}
		restored.Action = model.ActionAssignedToOrder
		restored.OrderID = prior.OrderID
		if err := appendHistory(ctx, tx, restored); err != nil {
			return nil, err
		}
		return []string{fmt.Sprintf("device %d restored from unrecognized prior action %s; needs review", itemID, prior.Action)}, nil
	}

	return nil, appendHistory(ctx, tx, restored)
}

// reconcileMaterialsTx applies the material usage delta. Reduced usage is
// credited back to the technician (deficit first), increased usage is
// consumed from their stock (shortfall becomes deficit), and the order's
// material rows are rewritten to exactly match the new list.
func reconcileMaterialsTx(ctx context.Context, tx *sql.Tx, order *model.Order, techID, userID *int64, usages []model.MaterialUsage) ([]string, error) {
	var warnings []string

	prev := map[int64]decimal.Decimal{}
	rows, err := tx.QueryContext(ctx,
		`SELECT material_id, quantity FROM order_materials WHERE order_id = ?`, order.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("reading order materials: %w", err)
	}
	for rows.Next() {
		var id int64
		var qtyStr string
		if err := rows.Scan(&id, &qtyStr); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning order material: %w", err)
		}
		qty, err := decimal.NewFromString(qtyStr)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("parsing order material quantity: %w", err)
		}
		prev[id] = prev[id].Add(qty)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	next := map[int64]decimal.Decimal{}
	for _, u := range usages {
		if u.Quantity.Sign() <= 0 {
			return nil, fmt.Errorf("material %d: quantity must be positive: %w", u.MaterialID, ErrBadRequest)
		}
		next[u.MaterialID] = next[u.MaterialID].Add(u.Quantity)
	}

	ids := map[int64]bool{}
	for id := range prev {
		ids[id] = true
	}
	for id := range next {
		ids[id] = true
	}

	for id := range ids {
		material, err := getMaterialTx(ctx, tx, id)
		if err != nil {
			return nil, err
		}

		delta := next[id].Sub(prev[id])
		switch {
		case delta.Sign() > 0:
			if techID == nil {
				warnings = append(warnings, fmt.Sprintf("order has no technician; %s consumption not drawn from stock", material.Name))
				continue
			}
			if err := consumeMaterialTx(ctx, tx, *techID, material, delta, order.ID, userID); err != nil {
				return nil, err
			}
		case delta.Sign() < 0:
			if techID == nil {
				warnings = append(warnings, fmt.Sprintf("order has no technician; %s not restored to stock", material.Name))
				continue
			}
			_, err := creditMaterialTx(ctx, tx, *techID, material, delta.Neg(),
				model.ActionReturnedToTechnician, 0, &order.ID, userID)
			if err != nil {
				return nil, err
			}
		}
	}

	// The order's material rows are the settlement record, not the stock
	// ledger: rewrite them wholesale to match the new list.
	if _, err := tx.ExecContext(ctx, `DELETE FROM order_materials WHERE order_id = ?`, order.ID); err != nil {
		return nil, fmt.Errorf("clearing order materials: %w", err)
	}
	for id, qty := range next {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO order_materials (order_id, material_id, quantity) VALUES (?, ?, ?)`,
			order.ID, id, qty.String(),
		)
		if err != nil {
			return nil, fmt.Errorf("recording order material: %w", err)
		}
	}

	return warnings, nil
}
