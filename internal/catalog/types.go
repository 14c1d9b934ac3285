package catalog

import "errors"

// Product prices are kept in minor units. No floats.
type Product struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Category    string `json:"category"`
	Price       int64  `json:"price"`
	Description string `json:"description"`
}

type Category struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// NewProduct is the create-product request body.
type NewProduct struct {
	Name        string `json:"name" validate:"required"`
	CategoryID  int64  `json:"category_id" validate:"gt=0"`
	Price       int64  `json:"price" validate:"gte=0"`
	Description string `json:"description"`
}

// NewCategory is the create-category request body.
type NewCategory struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
}

var (
	ErrNotFound     = errors.New("catalog: not found")
	ErrConflict     = errors.New("catalog: already exists")
	ErrInvalidInput = errors.New("catalog: invalid input")
	ErrUnavailable  = errors.New("catalog: service unavailable")
)
