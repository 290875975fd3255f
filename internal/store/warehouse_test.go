package store

import (
	"context"
	"errors"
	"testing"

	"github.com/erazemk/teren/internal/db"
	"github.com/erazemk/teren/internal/model"
)

func TestReceiveDevice(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	loc := seedLocation(t, database, "Main warehouse")

	item, err := ReceiveDevice(ctx, database, "Router X200", "SN-100", "router", loc.ID, nil)
	if err != nil {
		t.Fatalf("ReceiveDevice: %v", err)
	}
	if item.Status != model.StatusAvailable {
		t.Errorf("status = %s, want AVAILABLE", item.Status)
	}
	if item.LocationID == nil || *item.LocationID != loc.ID {
		t.Errorf("location = %v, want %d", item.LocationID, loc.ID)
	}

	history, _ := GetItemHistory(ctx, database, item.ID)
	if len(history) != 1 || history[0].Action != model.ActionReceived {
		t.Errorf("history = %v, want one RECEIVED entry", history)
	}
}

func TestReceiveDeviceDuplicateSerial(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	loc := seedLocation(t, database, "Main warehouse")

	if _, err := ReceiveDevice(ctx, database, "Router X200", "SN-100", "", loc.ID, nil); err != nil {
		t.Fatalf("first receive: %v", err)
	}
	_, err := ReceiveDevice(ctx, database, "Router X200", "SN-100", "", loc.ID, nil)
	if !errors.Is(err, ErrConflict) {
		t.Errorf("expected ErrConflict for duplicate serial, got %v", err)
	}
}

func TestReceiveDeviceRejectsTechnician(t *testing.T) {
	database := db.NewTestDB(t)
	tech := seedTech(t, database, "Ana")

	_, err := ReceiveDevice(context.Background(), database, "Router", "", "", tech.ID, nil)
	if err == nil {
		t.Error("expected error receiving at a technician holder")
	}
}

func TestReceiveMaterialMergesLots(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	loc := seedLocation(t, database, "Main warehouse")
	cable := seedMaterial(t, database, "Coax cable", "m")

	first, err := ReceiveMaterial(ctx, database, cable.ID, dec("50"), loc.ID, nil)
	if err != nil {
		t.Fatalf("first receive: %v", err)
	}
	second, err := ReceiveMaterial(ctx, database, cable.ID, dec("25.5"), loc.ID, nil)
	if err != nil {
		t.Fatalf("second receive: %v", err)
	}

	if first.ID != second.ID {
		t.Fatalf("expected one merged lot, got %d and %d", first.ID, second.ID)
	}
	if !second.Quantity.Equal(dec("75.5")) {
		t.Errorf("quantity = %s, want 75.5", second.Quantity)
	}
}

func TestIssueDevice(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	loc := seedLocation(t, database, "Main warehouse")
	tech := seedTech(t, database, "Ana")

	device, _ := ReceiveDevice(ctx, database, "Router X200", "SN-100", "", loc.ID, nil)
	err := IssueItems(ctx, database, tech.ID, []IssueLine{{ItemID: device.ID}}, nil)
	if err != nil {
		t.Fatalf("IssueItems: %v", err)
	}

	got, _ := GetItem(ctx, database, device.ID)
	if got.Status != model.StatusAssigned {
		t.Errorf("status = %s, want ASSIGNED", got.Status)
	}
	if got.AssignedToID == nil || *got.AssignedToID != tech.ID {
		t.Errorf("assigned to = %v, want %d", got.AssignedToID, tech.ID)
	}
	if got.LocationID != nil {
		t.Errorf("location should be cleared, got %v", got.LocationID)
	}
}

func TestIssueDeviceTwiceFails(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	loc := seedLocation(t, database, "Main warehouse")
	tech := seedTech(t, database, "Ana")

	device, _ := ReceiveDevice(ctx, database, "Router", "", "", loc.ID, nil)
	IssueItems(ctx, database, tech.ID, []IssueLine{{ItemID: device.ID}}, nil)

	err := IssueItems(ctx, database, tech.ID, []IssueLine{{ItemID: device.ID}}, nil)
	if !errors.Is(err, ErrConflict) {
		t.Errorf("expected ErrConflict issuing assigned device, got %v", err)
	}
}

func TestIssueMaterialSplitsWarehouseLot(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	loc := seedLocation(t, database, "Main warehouse")
	tech := seedTech(t, database, "Ana")
	cable := seedMaterial(t, database, "Coax cable", "m")

	whLot, _ := ReceiveMaterial(ctx, database, cable.ID, dec("100"), loc.ID, nil)
	err := IssueItems(ctx, database, tech.ID, []IssueLine{{ItemID: whLot.ID, Quantity: dec("30")}}, nil)
	if err != nil {
		t.Fatalf("IssueItems: %v", err)
	}

	remaining, _ := GetItem(ctx, database, whLot.ID)
	if !remaining.Quantity.Equal(dec("70")) {
		t.Errorf("warehouse lot = %s, want 70", remaining.Quantity)
	}

	lot := techLot(t, database, tech.ID, cable.ID)
	if lot == nil {
		t.Fatal("expected technician lot")
	}
	if !lot.Quantity.Equal(dec("30")) {
		t.Errorf("technician lot = %s, want 30", lot.Quantity)
	}
}

func TestIssueMaterialMoreThanStockFails(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	loc := seedLocation(t, database, "Main warehouse")
	tech := seedTech(t, database, "Ana")
	cable := seedMaterial(t, database, "Coax cable", "m")

	whLot, _ := ReceiveMaterial(ctx, database, cable.ID, dec("10"), loc.ID, nil)
	err := IssueItems(ctx, database, tech.ID, []IssueLine{{ItemID: whLot.ID, Quantity: dec("11")}}, nil)
	if !errors.Is(err, ErrBadRequest) {
		t.Errorf("expected ErrBadRequest, got %v", err)
	}

	// The failed issue must not have touched the lot.
	got, _ := GetItem(ctx, database, whLot.ID)
	if !got.Quantity.Equal(dec("10")) {
		t.Errorf("warehouse lot = %s, want untouched 10", got.Quantity)
	}
}

func TestReturnDeviceToWarehouse(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	loc := seedLocation(t, database, "Main warehouse")
	tech := seedTech(t, database, "Ana")

	device, _ := ReceiveDevice(ctx, database, "Router", "SN-1", "", loc.ID, nil)
	IssueItems(ctx, database, tech.ID, []IssueLine{{ItemID: device.ID}}, nil)

	if err := ReturnToWarehouse(ctx, database, []int64{device.ID}, loc.ID, nil); err != nil {
		t.Fatalf("ReturnToWarehouse: %v", err)
	}

	got, _ := GetItem(ctx, database, device.ID)
	if got.Status != model.StatusAvailable {
		t.Errorf("status = %s, want AVAILABLE", got.Status)
	}
	if got.AssignedToID != nil {
		t.Errorf("assigned to should be cleared, got %v", got.AssignedToID)
	}
}

func TestReturnMaterialMergesIntoWarehouse(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	loc := seedLocation(t, database, "Main warehouse")
	tech := seedTech(t, database, "Ana")
	cable := seedMaterial(t, database, "Coax cable", "m")

	whLot, _ := ReceiveMaterial(ctx, database, cable.ID, dec("100"), loc.ID, nil)
	IssueItems(ctx, database, tech.ID, []IssueLine{{ItemID: whLot.ID, Quantity: dec("40")}}, nil)

	lot := techLot(t, database, tech.ID, cable.ID)
	if err := ReturnToWarehouse(ctx, database, []int64{lot.ID}, loc.ID, nil); err != nil {
		t.Fatalf("ReturnToWarehouse: %v", err)
	}

	back, _ := GetItem(ctx, database, whLot.ID)
	if !back.Quantity.Equal(dec("100")) {
		t.Errorf("warehouse lot = %s, want 100", back.Quantity)
	}

	// The technician lot stays as an emptied row so its history is replayable.
	emptied, _ := GetItem(ctx, database, lot.ID)
	if emptied == nil {
		t.Fatal("emptied lot should not be deleted")
	}
	if !emptied.Quantity.IsZero() {
		t.Errorf("emptied lot = %s, want 0", emptied.Quantity)
	}
}

func TestReturnToOperatorIsTerminal(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	loc := seedLocation(t, database, "Main warehouse")
	tech := seedTech(t, database, "Ana")

	device, _ := ReceiveDevice(ctx, database, "Old modem", "SN-9", "", loc.ID, nil)
	IssueItems(ctx, database, tech.ID, []IssueLine{{ItemID: device.ID}}, nil)

	if err := ReturnToOperator(ctx, database, []int64{device.ID}, nil); err != nil {
		t.Fatalf("ReturnToOperator: %v", err)
	}

	got, _ := GetItem(ctx, database, device.ID)
	if got.Status != model.StatusReturnedToOperator {
		t.Errorf("status = %s, want RETURNED_TO_OPERATOR", got.Status)
	}

	// Never issuable again.
	err := IssueItems(ctx, database, tech.ID, []IssueLine{{ItemID: device.ID}}, nil)
	if !errors.Is(err, ErrConflict) {
		t.Errorf("expected ErrConflict issuing terminal device, got %v", err)
	}
	err = ReturnToOperator(ctx, database, []int64{device.ID}, nil)
	if !errors.Is(err, ErrConflict) {
		t.Errorf("expected ErrConflict on second operator return, got %v", err)
	}
}

func TestCollectFromClientGeneratesProvisionalSerial(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	tech := seedTech(t, database, "Ana")
	order, _ := CreateOrder(ctx, database, "WO-1", model.OrderService, "Stranka", "Ulica 1", &tech.ID)

	item, err := CollectFromClient(ctx, database, order.ID, tech.ID, CollectedDevice{Name: "Unknown modem"}, nil)
	if err != nil {
		t.Fatalf("CollectFromClient: %v", err)
	}
	if item.Serial == "" {
		t.Error("expected generated provisional serial")
	}
	if item.Status != model.StatusCollectedFromClient {
		t.Errorf("status = %s, want COLLECTED_FROM_CLIENT", item.Status)
	}
	if item.OrderID == nil || *item.OrderID != order.ID {
		t.Errorf("order link = %v, want %d", item.OrderID, order.ID)
	}
}

func TestCollectFromClientReusesSerial(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	loc := seedLocation(t, database, "Main warehouse")
	tech := seedTech(t, database, "Ana")
	order, _ := CreateOrder(ctx, database, "WO-1", model.OrderService, "", "", &tech.ID)

	// The device is already known from a previous life cycle.
	known, _ := ReceiveDevice(ctx, database, "Modem", "SN-1", "", loc.ID, nil)

	item, err := CollectFromClient(ctx, database, order.ID, tech.ID, CollectedDevice{Name: "Modem", Serial: "SN-1"}, nil)
	if err != nil {
		t.Fatalf("CollectFromClient: %v", err)
	}
	if item.ID != known.ID {
		t.Errorf("expected existing item %d reused, got new item %d", known.ID, item.ID)
	}
	if item.Status != model.StatusCollectedFromClient {
		t.Errorf("status = %s, want COLLECTED_FROM_CLIENT", item.Status)
	}
}
