package httpapi

import (
	"net/http"
	"strconv"

	"storefront.dev/internal/catalog"
)

func (a *API) routeProducts() {
	a.mux.HandleFunc("GET /product/status", a.status)
	a.mux.HandleFunc("GET /product/env", a.env)
	a.mux.HandleFunc("GET /product/{id}", a.getProduct)
	a.mux.HandleFunc("POST /product/create", a.createProduct)
	a.mux.HandleFunc("GET /product/category", a.productsByCategory)
	a.mux.HandleFunc("POST /product/category/create", a.createCategory)
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, r, http.StatusBadRequest, "Invalid product ID - "+r.PathValue("id"))
		return 0, false
	}
	return id, true
}

func (a *API) getProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	p, err := a.opts.Catalog.Product(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "", p)
}

func (a *API) createProduct(w http.ResponseWriter, r *http.Request) {
	var req catalog.NewProduct
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	p, err := a.opts.Catalog.CreateProduct(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusCreated, "Product created successfully", p)
}

func (a *API) productsByCategory(w http.ResponseWriter, r *http.Request) {
	products, err := a.opts.Catalog.ByCategory(r.Context(), r.URL.Query().Get("category"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "", products)
}

func (a *API) createCategory(w http.ResponseWriter, r *http.Request) {
	var req catalog.NewCategory
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	c, err := a.opts.Catalog.CreateCategory(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusCreated, "Category created successfully", c)
}
