package handlers

import "net/http"

// Handlers bundles the admin API handlers.
type Handlers struct {
	Stock      *StockHandler
	Orders     *OrderHandler
	Products   *ProductHandler
	Categories *CategoryHandler
}

// Register mounts the admin API on mux. Every route requires an actor.
func (h Handlers) Register(mux *http.ServeMux) {
	handle := func(pattern string, fn http.HandlerFunc) {
		mux.Handle(pattern, RequireActor(fn))
	}

	// Stock
	handle("GET /admin/stocks", h.Stock.Index)
	handle("POST /admin/stocks/check-low-stock", h.Stock.CheckLowStock)
	handle("GET /admin/products/{id}/stock", h.Stock.Level)
	handle("GET /admin/products/{id}/stock/history", h.Stock.History)
	handle("POST /admin/products/{id}/stock/add", h.Stock.Add)
	handle("POST /admin/products/{id}/stock/reduce", h.Stock.Reduce)
	handle("POST /admin/products/{id}/stock/adjust", h.Stock.Adjust)

	// Orders
	handle("GET /admin/orders", h.Orders.List)
	handle("POST /admin/orders", h.Orders.Create)
	handle("GET /admin/orders/{id}", h.Orders.Show)
	handle("POST /admin/orders/{id}/status", h.Orders.UpdateStatus)
	handle("POST /admin/orders/{id}/process", h.Orders.Process)
	handle("POST /admin/orders/{id}/fulfill", h.Orders.Fulfill)
	handle("POST /admin/orders/{id}/cancel", h.Orders.Cancel)

	// Catalog
	handle("GET /admin/products", h.Products.List)
	handle("POST /admin/products", h.Products.Create)
	handle("GET /admin/products/{id}", h.Products.View)
	handle("PUT /admin/products/{id}", h.Products.Update)
	handle("DELETE /admin/products/{id}", h.Products.Delete)
	handle("GET /admin/categories", h.Categories.List)
	handle("POST /admin/categories", h.Categories.Create)
	handle("GET /admin/categories/{id}", h.Categories.Show)
	handle("PUT /admin/categories/{id}", h.Categories.Update)
	handle("DELETE /admin/categories/{id}", h.Categories.Delete)
	handle("GET /admin/categories/{id}/products", h.Categories.Products)
}
