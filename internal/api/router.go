package api

import (
	"database/sql"
	"net/http"

	"github.com/erazemk/teren/internal/model"
)

// NewRouter creates the API router with all endpoints registered.
func NewRouter(db *sql.DB, jwtSecret string) http.Handler {
	mux := http.NewServeMux()

	authHandler := &AuthHandler{DB: db, JWTSecret: jwtSecret}
	usersHandler := &UsersHandler{DB: db}
	holdersHandler := &HoldersHandler{DB: db}
	materialsHandler := &MaterialsHandler{DB: db}
	itemsHandler := &ItemsHandler{DB: db}
	warehouseHandler := &WarehouseHandler{DB: db}
	transfersHandler := &TransfersHandler{DB: db}
	ordersHandler := &OrdersHandler{DB: db}
	inventoryHandler := &InventoryHandler{DB: db}

	authMW := AuthMiddleware(jwtSecret, db)
	requireAdmin := RequireRole(model.RoleAdmin)
	requireManager := RequireRole(model.RoleManager)

	// Public: login.
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)

	// Authenticated routes.
	mux.Handle("PUT /api/auth/password", authMW(http.HandlerFunc(authHandler.ChangePassword)))
	mux.Handle("POST /api/auth/logout", authMW(http.HandlerFunc(authHandler.Logout)))

	// Users (admin only).
	mux.Handle("GET /api/users", authMW(requireAdmin(http.HandlerFunc(usersHandler.List))))
	mux.Handle("POST /api/users", authMW(requireAdmin(http.HandlerFunc(usersHandler.Create))))
	mux.Handle("GET /api/users/{id}", authMW(requireAdmin(http.HandlerFunc(usersHandler.Get))))
	mux.Handle("PUT /api/users/{id}", authMW(requireAdmin(http.HandlerFunc(usersHandler.Update))))
	mux.Handle("PUT /api/users/{id}/password", authMW(requireAdmin(http.HandlerFunc(usersHandler.ResetPassword))))
	mux.Handle("DELETE /api/users/{id}", authMW(requireAdmin(http.HandlerFunc(usersHandler.Delete))))

	// Holders: read (all roles), write (manager+).
	mux.Handle("GET /api/holders", authMW(http.HandlerFunc(holdersHandler.List)))
	mux.Handle("POST /api/holders", authMW(requireManager(http.HandlerFunc(holdersHandler.Create))))
	mux.Handle("GET /api/holders/{id}", authMW(http.HandlerFunc(holdersHandler.Get)))
	mux.Handle("PUT /api/holders/{id}", authMW(requireManager(http.HandlerFunc(holdersHandler.Update))))
	mux.Handle("DELETE /api/holders/{id}", authMW(requireManager(http.HandlerFunc(holdersHandler.Delete))))
	mux.Handle("GET /api/holders/{id}/inventory", authMW(http.HandlerFunc(holdersHandler.GetInventory)))

	// Material definitions: read (all roles), write (manager+).
	mux.Handle("GET /api/materials", authMW(http.HandlerFunc(materialsHandler.List)))
	mux.Handle("POST /api/materials", authMW(requireManager(http.HandlerFunc(materialsHandler.Create))))
	mux.Handle("GET /api/materials/{id}", authMW(http.HandlerFunc(materialsHandler.Get)))
	mux.Handle("DELETE /api/materials/{id}", authMW(requireManager(http.HandlerFunc(materialsHandler.Delete))))

	// Items: read (all roles), photo upload (all roles, technicians shoot
	// device photos in the field).
	mux.Handle("GET /api/items", authMW(http.HandlerFunc(itemsHandler.List)))
	mux.Handle("GET /api/items/{id}", authMW(http.HandlerFunc(itemsHandler.Get)))
	mux.Handle("GET /api/items/serial/{serial}", authMW(http.HandlerFunc(itemsHandler.GetBySerial)))
	mux.Handle("PUT /api/items/{id}/photo", authMW(http.HandlerFunc(itemsHandler.UploadPhoto)))
	mux.Handle("GET /api/items/{id}/photo", authMW(http.HandlerFunc(itemsHandler.GetPhoto)))
	mux.Handle("GET /api/items/{id}/history", authMW(http.HandlerFunc(itemsHandler.GetHistory)))

	// Warehouse custody movements (manager+).
	mux.Handle("POST /api/warehouse/receive-device", authMW(requireManager(http.HandlerFunc(warehouseHandler.ReceiveDevice))))
	mux.Handle("POST /api/warehouse/receive-material", authMW(requireManager(http.HandlerFunc(warehouseHandler.ReceiveMaterial))))
	mux.Handle("POST /api/warehouse/issue", authMW(requireManager(http.HandlerFunc(warehouseHandler.Issue))))
	mux.Handle("POST /api/warehouse/return", authMW(requireManager(http.HandlerFunc(warehouseHandler.Return))))
	mux.Handle("POST /api/warehouse/return-operator", authMW(requireManager(http.HandlerFunc(warehouseHandler.ReturnToOperator))))

	// Transfers (technicians act on their own, managers can inspect).
	mux.Handle("POST /api/transfers", authMW(http.HandlerFunc(transfersHandler.Create)))
	mux.Handle("GET /api/transfers", authMW(http.HandlerFunc(transfersHandler.List)))
	mux.Handle("GET /api/transfers/{id}", authMW(http.HandlerFunc(transfersHandler.Get)))
	mux.Handle("POST /api/transfers/{id}/confirm", authMW(http.HandlerFunc(transfersHandler.Confirm)))
	mux.Handle("POST /api/transfers/{id}/reject", authMW(http.HandlerFunc(transfersHandler.Reject)))
	mux.Handle("POST /api/transfers/{id}/cancel", authMW(http.HandlerFunc(transfersHandler.Cancel)))

	// Orders: management (manager+), completion flow (technicians).
	mux.Handle("GET /api/orders", authMW(http.HandlerFunc(ordersHandler.List)))
	mux.Handle("POST /api/orders", authMW(requireManager(http.HandlerFunc(ordersHandler.Create))))
	mux.Handle("GET /api/orders/{id}", authMW(http.HandlerFunc(ordersHandler.Get)))
	mux.Handle("POST /api/orders/{id}/assign", authMW(requireManager(http.HandlerFunc(ordersHandler.Assign))))
	mux.Handle("POST /api/orders/{id}/complete", authMW(http.HandlerFunc(ordersHandler.Complete)))
	mux.Handle("POST /api/orders/{id}/amend", authMW(http.HandlerFunc(ordersHandler.Amend)))
	mux.Handle("POST /api/orders/{id}/edit", authMW(requireManager(http.HandlerFunc(ordersHandler.Edit))))
	mux.Handle("POST /api/orders/{id}/not-completed", authMW(http.HandlerFunc(ordersHandler.NotCompleted)))
	mux.Handle("POST /api/orders/{id}/retry", authMW(requireManager(http.HandlerFunc(ordersHandler.Retry))))

	// Stock overview, deficits, rates, settings.
	mux.Handle("GET /api/inventory", authMW(requireManager(http.HandlerFunc(inventoryHandler.Overview))))
	mux.Handle("GET /api/deficits", authMW(http.HandlerFunc(inventoryHandler.ListDeficits)))
	mux.Handle("GET /api/rates", authMW(http.HandlerFunc(inventoryHandler.ListRates)))
	mux.Handle("PUT /api/rates", authMW(requireManager(http.HandlerFunc(inventoryHandler.SetRate))))
	mux.Handle("GET /api/settings/amend-window", authMW(http.HandlerFunc(inventoryHandler.GetAmendWindow)))
	mux.Handle("PUT /api/settings/amend-window", authMW(requireAdmin(http.HandlerFunc(inventoryHandler.SetAmendWindow))))

	return mux
}
