package handlers

import (
	"net/http"

	"github.com/diewo77/go-stock/internal/httpx"
	"github.com/diewo77/go-stock/internal/services"
	"github.com/diewo77/go-stock/internal/validation"
	"go.uber.org/zap"
)

type ProductHandler struct {
	catalog *services.CatalogService
	log     *zap.Logger
}

func NewProductHandler(catalog *services.CatalogService, log *zap.Logger) *ProductHandler {
	return &ProductHandler{catalog: catalog, log: log}
}

func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	page, err := h.catalog.Products(r.Context(), httpx.Page(r))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, page)
}

func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in services.ProductInput
	if err := httpx.DecodeJSON(w, r, &in); err != nil {
		writeError(w, h.log, err)
		return
	}
	v := productViolations(in)
	if in.Name == nil {
		v["name"] = "required"
	}
	if in.SKU == nil {
		v["sku"] = "required"
	}
	if in.Price == nil {
		v["price"] = "required"
	}
	if !v.Empty() {
		writeViolations(w, v)
		return
	}

	p, err := h.catalog.CreateProduct(r.Context(), in, actor(r))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, p)
}

func (h *ProductHandler) View(w http.ResponseWriter, r *http.Request) {
	id, ok := httpx.PathID(r, "id")
	if !ok {
		httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
		return
	}
	p, err := h.catalog.Product(r.Context(), id)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := httpx.PathID(r, "id")
	if !ok {
		httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
		return
	}
	var in services.ProductInput
	if err := httpx.DecodeJSON(w, r, &in); err != nil {
		writeError(w, h.log, err)
		return
	}
	if v := productViolations(in); !v.Empty() {
		writeViolations(w, v)
		return
	}

	p, err := h.catalog.UpdateProduct(r.Context(), id, in, actor(r))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := httpx.PathID(r, "id")
	if !ok {
		httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
		return
	}
	if err := h.catalog.DeleteProduct(r.Context(), id); err != nil {
		writeError(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// productViolations checks the fields that are present.
func productViolations(in services.ProductInput) validation.Violations {
	v := make(validation.Violations)
	if in.Name != nil {
		validation.Required("name", *in.Name, v)
		validation.MaxLen("name", *in.Name, 255, v)
		validation.SingleLine("name", *in.Name, v)
	}
	if in.SKU != nil {
		validation.Required("sku", *in.SKU, v)
		validation.MaxLen("sku", *in.SKU, 64, v)
		validation.SingleLine("sku", *in.SKU, v)
	}
	if in.Price != nil {
		validation.NonNegativeDecimal("price", *in.Price, v)
	}
	if in.Quantity != nil {
		validation.NonNegativeInt("quantity", *in.Quantity, v)
	}
	return v
}
