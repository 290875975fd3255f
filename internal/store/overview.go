package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// MaterialStock is the aggregated position of one material across the whole
// system. Earmarked quantity sits in pending transfer lots that still belong
// to the sender.
type MaterialStock struct {
	MaterialID   int64           `json:"material_id"`
	Name         string          `json:"name"`
	Unit         string          `json:"unit"`
	WarehouseQty decimal.Decimal `json:"warehouse_qty"`
	FieldQty     decimal.Decimal `json:"field_qty"`
	EarmarkedQty decimal.Decimal `json:"earmarked_qty"`
	DeficitQty   decimal.Decimal `json:"deficit_qty"`
}

// Overview is the stock dashboard: material positions plus device counts per
// status.
type Overview struct {
	Materials []MaterialStock  `json:"materials"`
	Devices   map[string]int64 `json:"devices"`
}

// GetOverview aggregates all lots and deficits. Quantities are summed in
// decimal rather than SQL so TEXT-stored fractions don't lose precision.
func GetOverview(ctx context.Context, db *sql.DB) (*Overview, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT i.material_id, m.name, m.unit, i.status, i.quantity,
		        EXISTS (SELECT 1 FROM transfer_requests tr
		                WHERE tr.pending_item_id = i.id AND tr.status = 'requested')
		 FROM items i
		 JOIN materials m ON m.id = i.material_id
		 WHERE i.kind = 'material'`,
	)
	if err != nil {
		return nil, fmt.Errorf("querying material lots: %w", err)
	}
	defer rows.Close()

	byMaterial := map[int64]*MaterialStock{}
	for rows.Next() {
		var id int64
		var name, unit, status string
		var qty sql.NullString
		var earmarked bool
		if err := rows.Scan(&id, &name, &unit, &status, &qty, &earmarked); err != nil {
			return nil, fmt.Errorf("scanning material lot: %w", err)
		}
		quantity, err := scanDec(qty)
		if err != nil {
			return nil, err
		}

		stock := byMaterial[id]
		if stock == nil {
			stock = &MaterialStock{MaterialID: id, Name: name, Unit: unit}
			byMaterial[id] = stock
		}
		switch {
		case earmarked:
			stock.EarmarkedQty = stock.EarmarkedQty.Add(quantity)
		case status == "AVAILABLE":
			stock.WarehouseQty = stock.WarehouseQty.Add(quantity)
		default:
			stock.FieldQty = stock.FieldQty.Add(quantity)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	deficits, err := ListDeficits(ctx, db, 0)
	if err != nil {
		return nil, err
	}
	for _, d := range deficits {
		stock := byMaterial[d.MaterialID]
		if stock == nil {
			// Deficit for a material with no live lots anywhere.
			stock = &MaterialStock{MaterialID: d.MaterialID, Name: d.MaterialName, Unit: d.Unit}
			byMaterial[d.MaterialID] = stock
		}
		stock.DeficitQty = stock.DeficitQty.Add(d.Quantity)
	}

	overview := &Overview{Devices: map[string]int64{}}
	for _, stock := range byMaterial {
		overview.Materials = append(overview.Materials, *stock)
	}
	sort.Slice(overview.Materials, func(i, j int) bool {
		return overview.Materials[i].Name < overview.Materials[j].Name
	})

	deviceRows, err := db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM items WHERE kind = 'device' GROUP BY status`,
	)
	if err != nil {
		return nil, fmt.Errorf("counting devices: %w", err)
	}
	defer deviceRows.Close()
	for deviceRows.Next() {
		var status string
		var count int64
		if err := deviceRows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scanning device count: %w", err)
		}
		overview.Devices[status] = count
	}
	return overview, deviceRows.Err()
}
