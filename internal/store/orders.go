package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/erazemk/teren/internal/model"
)

// CreateOrder creates a work order, assigned when a technician is given.
func CreateOrder(ctx context.Context, db *sql.DB, code, kind, customer, address string, technicianID *int64) (*model.Order, error) {
	if code == "" {
		return nil, fmt.Errorf("order code required: %w", ErrBadRequest)
	}
	if kind != model.OrderInstallation && kind != model.OrderService {
		return nil, fmt.Errorf("order kind %q: %w", kind, ErrBadRequest)
	}

	status := model.OrderPending
	if technicianID != nil {
		status = model.OrderAssigned
	}

	result, err := db.ExecContext(ctx,
		`INSERT INTO orders (code, kind, status, technician_id, customer, address)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		code, kind, status, int64OrNil(technicianID), customer, address,
	)
	if err != nil {
		return nil, fmt.Errorf("creating order: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting order id: %w", err)
	}
	return GetOrder(ctx, db, id)
}

const orderColumns = `
	o.id, o.code, o.kind, o.status, o.technician_id, o.customer, o.address,
	o.attempt, o.previous_order_id, o.completed_at, o.completed_by, o.created_at`

func scanOrder(row rowScanner, joined bool) (*model.Order, error) {
	o := &model.Order{}
	var technicianID, previousOrderID, completedBy sql.NullInt64
	var customer, address sql.NullString
	dest := []any{&o.ID, &o.Code, &o.Kind, &o.Status, &technicianID, &customer, &address,
		&o.Attempt, &previousOrderID, &o.CompletedAt, &completedBy, &o.CreatedAt}
	if joined {
		dest = append(dest, &o.TechnicianName)
	}
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	o.TechnicianID = nullInt(technicianID)
	o.PreviousOrderID = nullInt(previousOrderID)
	o.CompletedBy = nullInt(completedBy)
	o.Customer = customer.String
	o.Address = address.String
	return o, nil
}

// GetOrder returns an order by ID.
func GetOrder(ctx context.Context, db *sql.DB, id int64) (*model.Order, error) {
	o, err := scanOrder(db.QueryRowContext(ctx,
		`SELECT `+orderColumns+`, COALESCE(h.name, '')
		 FROM orders o
		 LEFT JOIN holders h ON h.id = o.technician_id
		 WHERE o.id = ?`, id,
	), true)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting order: %w", err)
	}
	return o, nil
}

// ListOrders returns orders, optionally filtered by status and technician.
func ListOrders(ctx context.Context, db *sql.DB, status string, technicianID int64) ([]model.Order, error) {
	query := `SELECT ` + orderColumns + `, COALESCE(h.name, '')
	          FROM orders o
	          LEFT JOIN holders h ON h.id = o.technician_id
	          WHERE 1=1`
	var args []any
	if status != "" {
		query += ` AND o.status = ?`
		args = append(args, status)
	}
	if technicianID > 0 {
		query += ` AND o.technician_id = ?`
		args = append(args, technicianID)
	}
	query += ` ORDER BY o.created_at DESC, o.id DESC`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	defer rows.Close()

	var orders []model.Order
	for rows.Next() {
		o, err := scanOrder(rows, true)
		if err != nil {
			return nil, fmt.Errorf("scanning order: %w", err)
		}
		orders = append(orders, *o)
	}
	return orders, rows.Err()
}

// AssignOrder assigns or reassigns a technician to a not-yet-completed order.
func AssignOrder(ctx context.Context, db *sql.DB, orderID, technicianID int64) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	order, err := getOrderTx(ctx, tx, orderID)
	if err != nil {
		return err
	}
	if order.Status != model.OrderPending && order.Status != model.OrderAssigned {
		return fmt.Errorf("order %s is %s: %w", order.Code, order.Status, ErrConflict)
	}
	if _, err := getHolderTx(ctx, tx, technicianID, model.HolderTechnician); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE orders SET technician_id = ?, status = 'assigned' WHERE id = ?`,
		technicianID, orderID,
	)
	if err != nil {
		return fmt.Errorf("assigning order: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing assignment: %w", err)
	}
	return nil
}

// MarkOrderNotCompleted records a failed attempt. The order is never reopened;
// RetryOrder spawns the next attempt.
func MarkOrderNotCompleted(ctx context.Context, db *sql.DB, orderID int64, userID *int64) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	order, err := getOrderTx(ctx, tx, orderID)
	if err != nil {
		return err
	}
	if order.Status != model.OrderAssigned {
		return fmt.Errorf("order %s is %s, not assigned: %w", order.Code, order.Status, ErrConflict)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE orders SET status = 'not_completed', completed_at = CURRENT_TIMESTAMP, completed_by = ?
		 WHERE id = ?`,
		int64OrNil(userID), orderID,
	)
	if err != nil {
		return fmt.Errorf("marking order not completed: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing order failure: %w", err)
	}
	return nil
}

// RetryOrder spawns a new attempt for a failed order: a fresh row with an
// incremented attempt number linked through previous_order_id.
func RetryOrder(ctx context.Context, db *sql.DB, orderID int64, technicianID *int64) (*model.Order, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	order, err := getOrderTx(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != model.OrderNotCompleted {
		return nil, fmt.Errorf("order %s is %s, not retriable: %w", order.Code, order.Status, ErrConflict)
	}

	// Only the newest attempt in a chain may be retried.
	var next int64
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM orders WHERE previous_order_id = ?`, orderID,
	).Scan(&next)
	if err == nil {
		return nil, fmt.Errorf("order %s already retried as order %d: %w", order.Code, next, ErrConflict)
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("checking attempt chain: %w", err)
	}

	techID := order.TechnicianID
	if technicianID != nil {
		techID = technicianID
	}
	status := model.OrderPending
	if techID != nil {
		status = model.OrderAssigned
	}

	result, err := tx.ExecContext(ctx,
		`INSERT INTO orders (code, kind, status, technician_id, customer, address, attempt, previous_order_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		order.Code, order.Kind, status, int64OrNil(techID), order.Customer, order.Address,
		order.Attempt+1, orderID,
	)
	if err != nil {
		return nil, fmt.Errorf("creating retry order: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting retry order id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing retry: %w", err)
	}
	return GetOrder(ctx, db, id)
}

// GetOrderEquipment returns the items currently bound to an order.
func GetOrderEquipment(ctx context.Context, db *sql.DB, orderID int64) ([]model.Item, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+itemColumns+itemJoins+`
		 JOIN order_equipment oe ON oe.item_id = i.id
		 WHERE oe.order_id = ?
		 ORDER BY i.name, i.id`, orderID,
	)
	if err != nil {
		return nil, fmt.Errorf("getting order equipment: %w", err)
	}
	defer rows.Close()

	var items []model.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning order equipment: %w", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

// GetOrderMaterials returns an order's recorded material usage.
func GetOrderMaterials(ctx context.Context, db *sql.DB, orderID int64) ([]model.MaterialUsage, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT om.material_id, om.quantity, m.name, m.unit
		 FROM order_materials om
		 JOIN materials m ON m.id = om.material_id
		 WHERE om.order_id = ?
		 ORDER BY m.name`, orderID,
	)
	if err != nil {
		return nil, fmt.Errorf("getting order materials: %w", err)
	}
	defer rows.Close()

	var usages []model.MaterialUsage
	for rows.Next() {
		var u model.MaterialUsage
		var qty sql.NullString
		if err := rows.Scan(&u.MaterialID, &qty, &u.MaterialName, &u.Unit); err != nil {
			return nil, fmt.Errorf("scanning order material: %w", err)
		}
		u.Quantity, err = scanDec(qty)
		if err != nil {
			return nil, err
		}
		usages = append(usages, u)
	}
	return usages, rows.Err()
}

// GetOrderWorkCodes returns the settlement entries captured for an order.
func GetOrderWorkCodes(ctx context.Context, db *sql.DB, orderID int64) ([]model.WorkCode, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT order_id, code, amount FROM order_work_codes WHERE order_id = ? ORDER BY id`,
		orderID,
	)
	if err != nil {
		return nil, fmt.Errorf("getting order work codes: %w", err)
	}
	defer rows.Close()

	var codes []model.WorkCode
	for rows.Next() {
		var wc model.WorkCode
		var amount sql.NullString
		if err := rows.Scan(&wc.OrderID, &wc.Code, &amount); err != nil {
			return nil, fmt.Errorf("scanning work code: %w", err)
		}
		wc.Amount, err = scanDec(amount)
		if err != nil {
			return nil, err
		}
		codes = append(codes, wc)
	}
	return codes, rows.Err()
}

// getOrderTx loads an order inside a transaction.
func getOrderTx(ctx context.Context, tx *sql.Tx, id int64) (*model.Order, error) {
	o, err := scanOrder(tx.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders o WHERE o.id = ?`, id,
	), false)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("order %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting order: %w", err)
	}
	return o, nil
}
