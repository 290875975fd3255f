package store

import (
	"context"
	"testing"

	"github.com/erazemk/teren/internal/db"
	"github.com/erazemk/teren/internal/model"
)

func TestConsumptionShortfallBecomesDeficit(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	loc := seedLocation(t, database, "Main warehouse")
	ana := seedTech(t, database, "Ana")
	cable := seedMaterial(t, database, "Coax cable", "m")

	whLot, _ := ReceiveMaterial(ctx, database, cable.ID, dec("100"), loc.ID, nil)
	IssueItems(ctx, database, ana.ID, []IssueLine{{ItemID: whLot.ID, Quantity: dec("10")}}, nil)

	order, _ := CreateOrder(ctx, database, "WO-1", model.OrderService, "", "", &ana.ID)

	// Claiming 14 m with only 10 m on hand must not fail; the missing 4 m
	// become a deficit.
	_, err := CompleteOrder(ctx, database, order.ID, ana.ID, nil, CompletionInput{
		Materials: []model.MaterialUsage{{MaterialID: cable.ID, Quantity: dec("14")}},
	})
	if err != nil {
		t.Fatalf("CompleteOrder: %v", err)
	}

	lot := techLot(t, database, ana.ID, cable.ID)
	if lot != nil && !lot.Quantity.IsZero() {
		t.Errorf("technician stock = %s, want 0", lot.Quantity)
	}
	if d := deficitFor(t, database, ana.ID, cable.ID); !d.Equal(dec("4")) {
		t.Errorf("deficit = %s, want 4", d)
	}
}

func TestIssueSettlesDeficitFirst(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	loc := seedLocation(t, database, "Main warehouse")
	ana := seedTech(t, database, "Ana")
	cable := seedMaterial(t, database, "Coax cable", "m")

	whLot, _ := ReceiveMaterial(ctx, database, cable.ID, dec("100"), loc.ID, nil)
	order, _ := CreateOrder(ctx, database, "WO-1", model.OrderService, "", "", &ana.ID)

	// Consume 5 m with nothing on hand: deficit 5.
	_, err := CompleteOrder(ctx, database, order.ID, ana.ID, nil, CompletionInput{
		Materials: []model.MaterialUsage{{MaterialID: cable.ID, Quantity: dec("5")}},
	})
	if err != nil {
		t.Fatalf("CompleteOrder: %v", err)
	}
	if d := deficitFor(t, database, ana.ID, cable.ID); !d.Equal(dec("5")) {
		t.Fatalf("deficit = %s, want 5", d)
	}

	// Issue 8 m: 5 settle the deficit, 3 reach visible stock.
	if err := IssueItems(ctx, database, ana.ID, []IssueLine{{ItemID: whLot.ID, Quantity: dec("8")}}, nil); err != nil {
		t.Fatalf("IssueItems: %v", err)
	}

	if d := deficitFor(t, database, ana.ID, cable.ID); !d.IsZero() {
		t.Errorf("deficit = %s, want cleared", d)
	}
	lot := techLot(t, database, ana.ID, cable.ID)
	if lot == nil || !lot.Quantity.Equal(dec("3")) {
		t.Errorf("technician stock = %v, want 3", lot)
	}
}

func TestPartialSettlementKeepsDeficit(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	loc := seedLocation(t, database, "Main warehouse")
	ana := seedTech(t, database, "Ana")
	cable := seedMaterial(t, database, "Coax cable", "m")

	whLot, _ := ReceiveMaterial(ctx, database, cable.ID, dec("100"), loc.ID, nil)
	order, _ := CreateOrder(ctx, database, "WO-1", model.OrderService, "", "", &ana.ID)

	CompleteOrder(ctx, database, order.ID, ana.ID, nil, CompletionInput{
		Materials: []model.MaterialUsage{{MaterialID: cable.ID, Quantity: dec("10")}},
	})

	// Issuing 4 against a deficit of 10 leaves 6 owed and nothing visible.
	IssueItems(ctx, database, ana.ID, []IssueLine{{ItemID: whLot.ID, Quantity: dec("4")}}, nil)

	if d := deficitFor(t, database, ana.ID, cable.ID); !d.Equal(dec("6")) {
		t.Errorf("deficit = %s, want 6", d)
	}
	if lot := techLot(t, database, ana.ID, cable.ID); lot != nil && !lot.Quantity.IsZero() {
		t.Errorf("technician stock = %s, want 0", lot.Quantity)
	}
}

func TestDeficitRowDeletedAtZero(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	loc := seedLocation(t, database, "Main warehouse")
	ana := seedTech(t, database, "Ana")
	cable := seedMaterial(t, database, "Coax cable", "m")

	whLot, _ := ReceiveMaterial(ctx, database, cable.ID, dec("100"), loc.ID, nil)
	order, _ := CreateOrder(ctx, database, "WO-1", model.OrderService, "", "", &ana.ID)

	CompleteOrder(ctx, database, order.ID, ana.ID, nil, CompletionInput{
		Materials: []model.MaterialUsage{{MaterialID: cable.ID, Quantity: dec("3")}},
	})
	IssueItems(ctx, database, ana.ID, []IssueLine{{ItemID: whLot.ID, Quantity: dec("3")}}, nil)

	deficits, err := ListDeficits(ctx, database, ana.ID)
	if err != nil {
		t.Fatalf("ListDeficits: %v", err)
	}
	if len(deficits) != 0 {
		t.Errorf("expected no deficit rows, got %d", len(deficits))
	}
}

func TestMaterialConservation(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	loc := seedLocation(t, database, "Main warehouse")
	ana := seedTech(t, database, "Ana")
	cable := seedMaterial(t, database, "Coax cable", "m")

	whLot, _ := ReceiveMaterial(ctx, database, cable.ID, dec("100"), loc.ID, nil)
	IssueItems(ctx, database, ana.ID, []IssueLine{{ItemID: whLot.ID, Quantity: dec("30")}}, nil)

	order, _ := CreateOrder(ctx, database, "WO-1", model.OrderService, "", "", &ana.ID)
	CompleteOrder(ctx, database, order.ID, ana.ID, nil, CompletionInput{
		Materials: []model.MaterialUsage{{MaterialID: cable.ID, Quantity: dec("12.5")}},
	})

	anaLot := techLot(t, database, ana.ID, cable.ID)
	ReturnToWarehouse(ctx, database, []int64{anaLot.ID}, loc.ID, nil)

	// Received 100: the warehouse holds what was never issued plus what came
	// back, the order consumed the rest.
	wh, _ := GetItem(ctx, database, whLot.ID)
	total := wh.Quantity.Add(dec("12.5"))
	if !total.Equal(dec("100")) {
		t.Errorf("warehouse %s + consumed 12.5 = %s, want 100", wh.Quantity, total)
	}
}
