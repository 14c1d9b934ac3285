package httpapi

import (
	"net/http"
	"strings"
)

// Order endpoints read products through the product service; the caller's
// token travels with the request context.
func (a *API) routeOrders() {
	a.mux.HandleFunc("GET /order/status", a.status)
	a.mux.HandleFunc("GET /order/env", a.env)
	a.mux.HandleFunc("GET /order/product/{id}", a.orderProduct)
	a.mux.HandleFunc("GET /order/product", a.orderProductsByCategory)
}

func (a *API) orderProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	p, err := a.opts.Products.GetProduct(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "", p)
}

func (a *API) orderProductsByCategory(w http.ResponseWriter, r *http.Request) {
	category := strings.TrimSpace(r.URL.Query().Get("category"))
	if category == "" {
		writeError(w, r, http.StatusBadRequest, "Required parameter 'category' is not present")
		return
	}
	products, err := a.opts.Products.ProductsByCategory(r.Context(), category)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "", products)
}
