package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/erazemk/teren/internal/db"
	"github.com/erazemk/teren/internal/model"
)

func setupDeviceWithTech(t *testing.T, database *sql.DB) (int64, *model.Holder, *model.Holder) {
	t.Helper()
	ctx := context.Background()
	loc := seedLocation(t, database, "Main warehouse")
	ana := seedTech(t, database, "Ana")
	bor := seedTech(t, database, "Bor")

	device, err := ReceiveDevice(ctx, database, "Router X200", "SN-1", "", loc.ID, nil)
	if err != nil {
		t.Fatalf("ReceiveDevice: %v", err)
	}
	if err := IssueItems(ctx, database, ana.ID, []IssueLine{{ItemID: device.ID}}, nil); err != nil {
		t.Fatalf("IssueItems: %v", err)
	}
	return device.ID, ana, bor
}

func TestDeviceTransferConfirm(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	deviceID, ana, bor := setupDeviceWithTech(t, database)

	req, err := RequestTransfer(ctx, database, ana.ID, bor.ID, deviceID, nil, nil)
	if err != nil {
		t.Fatalf("RequestTransfer: %v", err)
	}
	if req.Status != model.TransferRequested {
		t.Errorf("status = %s, want requested", req.Status)
	}

	// Until confirmation the device still belongs to the sender.
	item, _ := GetItem(ctx, database, deviceID)
	if item.AssignedToID == nil || *item.AssignedToID != ana.ID {
		t.Errorf("holder = %v, want sender %d", item.AssignedToID, ana.ID)
	}
	if !item.TransferPending {
		t.Error("expected transfer pending flag")
	}

	if err := ConfirmTransfer(ctx, database, req.ID, bor.ID, nil); err != nil {
		t.Fatalf("ConfirmTransfer: %v", err)
	}

	item, _ = GetItem(ctx, database, deviceID)
	if item.AssignedToID == nil || *item.AssignedToID != bor.ID {
		t.Errorf("holder = %v, want recipient %d", item.AssignedToID, bor.ID)
	}
	if item.TransferPending {
		t.Error("transfer pending flag should be cleared")
	}

	history, _ := GetItemHistory(ctx, database, deviceID)
	last := history[len(history)-1]
	if last.Action != model.ActionTransfer {
		t.Errorf("last action = %s, want TRANSFER", last.Action)
	}
	if last.PerformerID == nil || *last.PerformerID != ana.ID {
		t.Errorf("performer = %v, want sender %d", last.PerformerID, ana.ID)
	}
}

func TestTransferToSelfRejected(t *testing.T) {
	database := db.NewTestDB(t)
	deviceID, ana, _ := setupDeviceWithTech(t, database)

	_, err := RequestTransfer(context.Background(), database, ana.ID, ana.ID, deviceID, nil, nil)
	if !errors.Is(err, ErrBadRequest) {
		t.Errorf("expected ErrBadRequest, got %v", err)
	}
}

func TestTransferNotHolderForbidden(t *testing.T) {
	database := db.NewTestDB(t)
	deviceID, ana, bor := setupDeviceWithTech(t, database)

	// Bor does not hold the device.
	_, err := RequestTransfer(context.Background(), database, bor.ID, ana.ID, deviceID, nil, nil)
	if !errors.Is(err, ErrForbidden) {
		t.Errorf("expected ErrForbidden, got %v", err)
	}
}

func TestTransferSecondRequestConflicts(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	deviceID, ana, bor := setupDeviceWithTech(t, database)
	cvet := seedTech(t, database, "Cvet")

	if _, err := RequestTransfer(ctx, database, ana.ID, bor.ID, deviceID, nil, nil); err != nil {
		t.Fatalf("first request: %v", err)
	}
	_, err := RequestTransfer(ctx, database, ana.ID, cvet.ID, deviceID, nil, nil)
	if !errors.Is(err, ErrConflict) {
		t.Errorf("expected ErrConflict for second open request, got %v", err)
	}
}

func TestTransferConfirmWrongRecipient(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	deviceID, ana, bor := setupDeviceWithTech(t, database)
	cvet := seedTech(t, database, "Cvet")

	req, _ := RequestTransfer(ctx, database, ana.ID, bor.ID, deviceID, nil, nil)

	if err := ConfirmTransfer(ctx, database, req.ID, cvet.ID, nil); !errors.Is(err, ErrForbidden) {
		t.Errorf("expected ErrForbidden for wrong recipient, got %v", err)
	}
	// The sender cannot confirm their own request either.
	if err := ConfirmTransfer(ctx, database, req.ID, ana.ID, nil); !errors.Is(err, ErrForbidden) {
		t.Errorf("expected ErrForbidden for sender confirm, got %v", err)
	}
}

func TestTransferDoubleConfirmFails(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	deviceID, ana, bor := setupDeviceWithTech(t, database)

	req, _ := RequestTransfer(ctx, database, ana.ID, bor.ID, deviceID, nil, nil)
	if err := ConfirmTransfer(ctx, database, req.ID, bor.ID, nil); err != nil {
		t.Fatalf("ConfirmTransfer: %v", err)
	}

	if err := ConfirmTransfer(ctx, database, req.ID, bor.ID, nil); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for resolved request, got %v", err)
	}
}

func TestTransferRejectLeavesSender(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	deviceID, ana, bor := setupDeviceWithTech(t, database)

	req, _ := RequestTransfer(ctx, database, ana.ID, bor.ID, deviceID, nil, nil)
	if err := RejectTransfer(ctx, database, req.ID, bor.ID, nil); err != nil {
		t.Fatalf("RejectTransfer: %v", err)
	}

	item, _ := GetItem(ctx, database, deviceID)
	if item.AssignedToID == nil || *item.AssignedToID != ana.ID {
		t.Errorf("holder = %v, want sender %d", item.AssignedToID, ana.ID)
	}
	if item.TransferPending {
		t.Error("transfer pending flag should be cleared")
	}

	got, _ := GetTransferRequest(ctx, database, req.ID)
	if got.Status != model.TransferRejected {
		t.Errorf("status = %s, want rejected", got.Status)
	}
}

func TestMaterialTransferSplitsAndMerges(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	loc := seedLocation(t, database, "Main warehouse")
	ana := seedTech(t, database, "Ana")
	bor := seedTech(t, database, "Bor")
	cable := seedMaterial(t, database, "Coax cable", "m")

	whLot, _ := ReceiveMaterial(ctx, database, cable.ID, dec("50"), loc.ID, nil)
	IssueItems(ctx, database, ana.ID, []IssueLine{{ItemID: whLot.ID, Quantity: dec("10")}}, nil)
	IssueItems(ctx, database, bor.ID, []IssueLine{{ItemID: whLot.ID, Quantity: dec("5")}}, nil)

	anaLot := techLot(t, database, ana.ID, cable.ID)
	qty := dec("4")
	req, err := RequestTransfer(ctx, database, ana.ID, bor.ID, anaLot.ID, &qty, nil)
	if err != nil {
		t.Fatalf("RequestTransfer: %v", err)
	}

	// The sender keeps using the remaining 6 while the 4 sit in limbo.
	remaining := techLot(t, database, ana.ID, cable.ID)
	if !remaining.Quantity.Equal(dec("6")) {
		t.Errorf("sender lot = %s, want 6", remaining.Quantity)
	}

	if err := ConfirmTransfer(ctx, database, req.ID, bor.ID, nil); err != nil {
		t.Fatalf("ConfirmTransfer: %v", err)
	}

	// The 4 merged into the recipient's existing lot.
	borLot := techLot(t, database, bor.ID, cable.ID)
	if !borLot.Quantity.Equal(dec("9")) {
		t.Errorf("recipient lot = %s, want 9", borLot.Quantity)
	}
	if req.PendingItemID == nil {
		t.Fatal("material request should carry a pending lot")
	}
	if pending, _ := GetItem(ctx, database, *req.PendingItemID); pending != nil && pending.ID != borLot.ID {
		t.Errorf("pending lot %d should have been merged away", pending.ID)
	}
}

func TestMaterialTransferInsufficientQuantity(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	loc := seedLocation(t, database, "Main warehouse")
	ana := seedTech(t, database, "Ana")
	bor := seedTech(t, database, "Bor")
	cable := seedMaterial(t, database, "Coax cable", "m")

	whLot, _ := ReceiveMaterial(ctx, database, cable.ID, dec("50"), loc.ID, nil)
	IssueItems(ctx, database, ana.ID, []IssueLine{{ItemID: whLot.ID, Quantity: dec("5")}}, nil)

	anaLot := techLot(t, database, ana.ID, cable.ID)
	qty := dec("6")
	_, err := RequestTransfer(ctx, database, ana.ID, bor.ID, anaLot.ID, &qty, nil)
	if !errors.Is(err, ErrBadRequest) {
		t.Errorf("expected ErrBadRequest, got %v", err)
	}
}

func TestMaterialTransferCancelRestoresSender(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	loc := seedLocation(t, database, "Main warehouse")
	ana := seedTech(t, database, "Ana")
	bor := seedTech(t, database, "Bor")
	cable := seedMaterial(t, database, "Coax cable", "m")

	whLot, _ := ReceiveMaterial(ctx, database, cable.ID, dec("50"), loc.ID, nil)
	IssueItems(ctx, database, ana.ID, []IssueLine{{ItemID: whLot.ID, Quantity: dec("10")}}, nil)

	anaLot := techLot(t, database, ana.ID, cable.ID)
	qty := dec("4")
	req, _ := RequestTransfer(ctx, database, ana.ID, bor.ID, anaLot.ID, &qty, nil)

	// Only the sender may cancel.
	if err := CancelTransfer(ctx, database, req.ID, bor.ID, nil); !errors.Is(err, ErrForbidden) {
		t.Errorf("expected ErrForbidden for recipient cancel, got %v", err)
	}
	if err := CancelTransfer(ctx, database, req.ID, ana.ID, nil); err != nil {
		t.Fatalf("CancelTransfer: %v", err)
	}

	restored := techLot(t, database, ana.ID, cable.ID)
	if !restored.Quantity.Equal(dec("10")) {
		t.Errorf("sender stock = %s, want 10 after cancel", restored.Quantity)
	}
}

func TestListTransferRequestsFiltered(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	deviceID, ana, bor := setupDeviceWithTech(t, database)

	req, _ := RequestTransfer(ctx, database, ana.ID, bor.ID, deviceID, nil, nil)
	ConfirmTransfer(ctx, database, req.ID, bor.ID, nil)

	all, _ := ListTransferRequests(ctx, database, 0, "")
	if len(all) != 1 {
		t.Fatalf("expected 1 request, got %d", len(all))
	}

	open, _ := ListTransferRequests(ctx, database, 0, model.TransferRequested)
	if len(open) != 0 {
		t.Errorf("expected no open requests, got %d", len(open))
	}

	byHolder, _ := ListTransferRequests(ctx, database, bor.ID, "")
	if len(byHolder) != 1 {
		t.Errorf("expected 1 request for recipient, got %d", len(byHolder))
	}
}
