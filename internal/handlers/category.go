package handlers

import (
	"net/http"

	"github.com/diewo77/go-stock/internal/httpx"
	"github.com/diewo77/go-stock/internal/services"
	"github.com/diewo77/go-stock/internal/validation"
	"go.uber.org/zap"
)

type CategoryHandler struct {
	catalog *services.CatalogService
	log     *zap.Logger
}

func NewCategoryHandler(catalog *services.CatalogService, log *zap.Logger) *CategoryHandler {
	return &CategoryHandler{catalog: catalog, log: log}
}

func (h *CategoryHandler) List(w http.ResponseWriter, r *http.Request) {
	page, err := h.catalog.Categories(r.Context(), httpx.Page(r))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, page)
}

type categoryRequest struct {
	Name string `json:"name"`
}

func (in categoryRequest) violations() validation.Violations {
	v := make(validation.Violations)
	validation.Required("name", in.Name, v)
	validation.MaxLen("name", in.Name, 255, v)
	validation.SingleLine("name", in.Name, v)
	return v
}

func (h *CategoryHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in categoryRequest
	if err := httpx.DecodeJSON(w, r, &in); err != nil {
		writeError(w, h.log, err)
		return
	}
	if v := in.violations(); !v.Empty() {
		writeViolations(w, v)
		return
	}
	c, err := h.catalog.CreateCategory(r.Context(), in.Name)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, c)
}

// Show returns a category with its product count.
func (h *CategoryHandler) Show(w http.ResponseWriter, r *http.Request) {
	id, ok := httpx.PathID(r, "id")
	if !ok {
		httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
		return
	}
	c, err := h.catalog.Category(r.Context(), id)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, c)
}

func (h *CategoryHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := httpx.PathID(r, "id")
	if !ok {
		httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
		return
	}
	var in categoryRequest
	if err := httpx.DecodeJSON(w, r, &in); err != nil {
		writeError(w, h.log, err)
		return
	}
	if v := in.violations(); !v.Empty() {
		writeViolations(w, v)
		return
	}
	c, err := h.catalog.UpdateCategory(r.Context(), id, in.Name)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, c)
}

// Delete refuses with 422 while live products still reference the category.
func (h *CategoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := httpx.PathID(r, "id")
	if !ok {
		httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
		return
	}
	if err := h.catalog.DeleteCategory(r.Context(), id); err != nil {
		writeError(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Products lists the live products of a category.
func (h *CategoryHandler) Products(w http.ResponseWriter, r *http.Request) {
	id, ok := httpx.PathID(r, "id")
	if !ok {
		httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
		return
	}
	cat, page, err := h.catalog.CategoryProducts(r.Context(), id, httpx.Page(r))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"category": cat, "products": page})
}
