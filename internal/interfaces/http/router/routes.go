package router

import (
	"github.com/pcshop/backend/internal/interfaces/http/handler"
)

// Handlers are the API handlers mounted by RegisterAPI
type Handlers struct {
	Ledger  *handler.LedgerHandler
	Batches *handler.BatchHandler
	Health  *handler.HealthHandler
}

// RegisterAPI adds the ledger, batch, product and health routes to r
func RegisterAPI(r *Router, h Handlers) *Router {
	logs := NewDomainGroup("inventory-logs", "/inventory-logs").
		POST("", h.Ledger.Create).
		GET("", h.Ledger.List).
		GET("/pending", h.Ledger.ListPending).
		GET("/product/:productId", h.Ledger.ListByProduct).
		GET("/user/:userId", h.Ledger.ListByUser).
		GET("/expired", h.Ledger.ListExpired).
		POST("/process-expired", h.Ledger.ProcessExpired).
		POST("/process-expired/manual", h.Ledger.ProcessExpiredManual).
		GET("/:id", h.Ledger.GetByID).
		GET("/:id/items", h.Ledger.GetLineItems).
		POST("/:id/review", h.Ledger.Review)

	batches := NewDomainGroup("batches", "/batches").
		GET("/product/:productId", h.Batches.GetByProduct).
		POST("/reduce", h.Batches.Reduce).
		POST("/reduce-from-batch", h.Batches.ReduceFromBatch).
		PATCH("/:id/stock", h.Batches.AdjustStock).
		GET("/:id/movements", h.Batches.ListMovements)

	products := NewDomainGroup("products", "/products").
		POST("/:productId/sync-stock", h.Batches.SyncProductStock)

	health := NewDomainGroup("health", "/health").
		GET("", h.Health.Check)

	return r.Register(logs).Register(batches).Register(products).Register(health)
}
