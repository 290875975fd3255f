package store

import (
	"context"
	"errors"
	"testing"

	"github.com/erazemk/teren/internal/db"
	"github.com/erazemk/teren/internal/model"
)

func TestCreateOrderStatuses(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	ana := seedTech(t, database, "Ana")

	unassigned, err := CreateOrder(ctx, database, "WO-1", model.OrderInstallation, "Stranka", "Ulica 1", nil)
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if unassigned.Status != model.OrderPending {
		t.Errorf("status = %s, want pending", unassigned.Status)
	}

	assigned, _ := CreateOrder(ctx, database, "WO-2", model.OrderService, "", "", &ana.ID)
	if assigned.Status != model.OrderAssigned {
		t.Errorf("status = %s, want assigned", assigned.Status)
	}
}

func TestCreateOrderRejectsBadKind(t *testing.T) {
	database := db.NewTestDB(t)

	_, err := CreateOrder(context.Background(), database, "WO-1", "inspection", "", "", nil)
	if !errors.Is(err, ErrBadRequest) {
		t.Errorf("expected ErrBadRequest, got %v", err)
	}
}

func TestAssignOrder(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	ana := seedTech(t, database, "Ana")

	order, _ := CreateOrder(ctx, database, "WO-1", model.OrderService, "", "", nil)
	if err := AssignOrder(ctx, database, order.ID, ana.ID); err != nil {
		t.Fatalf("AssignOrder: %v", err)
	}

	got, _ := GetOrder(ctx, database, order.ID)
	if got.Status != model.OrderAssigned {
		t.Errorf("status = %s, want assigned", got.Status)
	}
	if got.TechnicianID == nil || *got.TechnicianID != ana.ID {
		t.Errorf("technician = %v, want %d", got.TechnicianID, ana.ID)
	}
}

func TestRetryOrderChain(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	ana := seedTech(t, database, "Ana")

	first, _ := CreateOrder(ctx, database, "WO-1", model.OrderInstallation, "Stranka", "Ulica 1", &ana.ID)

	// Retrying a live order is a conflict.
	if _, err := RetryOrder(ctx, database, first.ID, nil); !errors.Is(err, ErrConflict) {
		t.Errorf("expected ErrConflict retrying assigned order, got %v", err)
	}

	if err := MarkOrderNotCompleted(ctx, database, first.ID, nil); err != nil {
		t.Fatalf("MarkOrderNotCompleted: %v", err)
	}

	second, err := RetryOrder(ctx, database, first.ID, nil)
	if err != nil {
		t.Fatalf("RetryOrder: %v", err)
	}
	if second.Attempt != first.Attempt+1 {
		t.Errorf("attempt = %d, want %d", second.Attempt, first.Attempt+1)
	}
	if second.PreviousOrderID == nil || *second.PreviousOrderID != first.ID {
		t.Errorf("previous order = %v, want %d", second.PreviousOrderID, first.ID)
	}
	if second.Code != first.Code {
		t.Errorf("code = %s, want inherited %s", second.Code, first.Code)
	}
	// Keeps the original technician.
	if second.TechnicianID == nil || *second.TechnicianID != ana.ID {
		t.Errorf("technician = %v, want %d", second.TechnicianID, ana.ID)
	}

	// The first attempt cannot be retried twice.
	if _, err := RetryOrder(ctx, database, first.ID, nil); !errors.Is(err, ErrConflict) {
		t.Errorf("expected ErrConflict retrying twice, got %v", err)
	}
}

func TestMarkNotCompletedRequiresAssigned(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	order, _ := CreateOrder(ctx, database, "WO-1", model.OrderService, "", "", nil)
	if err := MarkOrderNotCompleted(ctx, database, order.ID, nil); !errors.Is(err, ErrConflict) {
		t.Errorf("expected ErrConflict for pending order, got %v", err)
	}
}

func TestListOrdersFiltered(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	ana := seedTech(t, database, "Ana")
	bor := seedTech(t, database, "Bor")

	CreateOrder(ctx, database, "WO-1", model.OrderService, "", "", &ana.ID)
	CreateOrder(ctx, database, "WO-2", model.OrderService, "", "", &bor.ID)
	CreateOrder(ctx, database, "WO-3", model.OrderService, "", "", nil)

	all, _ := ListOrders(ctx, database, "", 0)
	if len(all) != 3 {
		t.Errorf("expected 3 orders, got %d", len(all))
	}

	pending, _ := ListOrders(ctx, database, model.OrderPending, 0)
	if len(pending) != 1 {
		t.Errorf("expected 1 pending order, got %d", len(pending))
	}

	byTech, _ := ListOrders(ctx, database, "", ana.ID)
	if len(byTech) != 1 || byTech[0].Code != "WO-1" {
		t.Errorf("expected WO-1 for Ana, got %v", byTech)
	}
}
