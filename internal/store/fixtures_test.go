package store

import (
	"context"
	"database/sql"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/erazemk/teren/internal/model"
)

// Shared fixtures for store tests.

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func seedLocation(t *testing.T, database *sql.DB, name string) *model.Holder {
	t.Helper()
	h, err := CreateHolder(context.Background(), database, name, model.HolderLocation, nil)
	if err != nil {
		t.Fatalf("creating location %s: %v", name, err)
	}
	return h
}

func seedTech(t *testing.T, database *sql.DB, name string) *model.Holder {
	t.Helper()
	h, err := CreateHolder(context.Background(), database, name, model.HolderTechnician, nil)
	if err != nil {
		t.Fatalf("creating technician %s: %v", name, err)
	}
	return h
}

func seedMaterial(t *testing.T, database *sql.DB, name, unit string) *model.Material {
	t.Helper()
	m, err := CreateMaterial(context.Background(), database, name, unit)
	if err != nil {
		t.Fatalf("creating material %s: %v", name, err)
	}
	return m
}

// techLot returns the technician's usable lot of a material, nil when none.
func techLot(t *testing.T, database *sql.DB, techID, materialID int64) *model.Item {
	t.Helper()
	items, err := ListItems(context.Background(), database, model.KindMaterial, "", techID, true)
	if err != nil {
		t.Fatalf("listing lots: %v", err)
	}
	for i := range items {
		if items[i].MaterialID != nil && *items[i].MaterialID == materialID &&
			items[i].Status == model.StatusAssigned && !items[i].TransferPending {
			return &items[i]
		}
	}
	return nil
}

// deficitFor returns a technician's deficit for a material, zero when absent.
func deficitFor(t *testing.T, database *sql.DB, techID, materialID int64) decimal.Decimal {
	t.Helper()
	deficits, err := ListDeficits(context.Background(), database, techID)
	if err != nil {
		t.Fatalf("listing deficits: %v", err)
	}
	for _, d := range deficits {
		if d.MaterialID == materialID {
			return d.Quantity
		}
	}
	return decimal.Zero
}
