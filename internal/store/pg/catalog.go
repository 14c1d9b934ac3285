package pg

import (
	"context"
	"database/sql"
	"errors"

	"storefront.dev/internal/catalog"
)

var _ catalog.Store = (*Store)(nil)

func (s *Store) GetProduct(ctx context.Context, id int64) (catalog.Product, error) {
	var (
		p    catalog.Product
		desc sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		select p.id, p.name, c.name, p.price, p.description
		from products p
		join categories c on c.id = p.category_id
		where p.id = $1
	`, id).Scan(&p.ID, &p.Name, &p.Category, &p.Price, &desc)
	if errors.Is(err, sql.ErrNoRows) {
		return catalog.Product{}, catalog.ErrNotFound
	}
	if err != nil {
		return catalog.Product{}, err
	}
	p.Description = desc.String
	return p, nil
}

// ProductsByCategory returns ErrNotFound for an unknown category and an
// empty slice for a known one without products.
func (s *Store) ProductsByCategory(ctx context.Context, category string) ([]catalog.Product, error) {
	var (
		categoryID   int64
		categoryName string
	)
	err := s.db.QueryRowContext(ctx, `
		select id, name from categories where lower(name) = lower($1)
	`, category).Scan(&categoryID, &categoryName)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, catalog.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		select id, name, price, description
		from products
		where category_id = $1
		order by id
	`, categoryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []catalog.Product
	for rows.Next() {
		var (
			p    = catalog.Product{Category: categoryName}
			desc sql.NullString
		)
		if err := rows.Scan(&p.ID, &p.Name, &p.Price, &desc); err != nil {
			return nil, err
		}
		p.Description = desc.String
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) CreateProduct(ctx context.Context, np catalog.NewProduct) (catalog.Product, error) {
	p := catalog.Product{Name: np.Name, Price: np.Price, Description: np.Description}
	err := s.db.QueryRowContext(ctx, `
		select name from categories where id = $1
	`, np.CategoryID).Scan(&p.Category)
	if errors.Is(err, sql.ErrNoRows) {
		return catalog.Product{}, catalog.ErrNotFound
	}
	if err != nil {
		return catalog.Product{}, err
	}

	err = s.db.QueryRowContext(ctx, `
		insert into products (name, category_id, price, description)
		values ($1, $2, $3, $4)
		returning id
	`, np.Name, np.CategoryID, np.Price, nullIfEmpty(np.Description)).Scan(&p.ID)
	if err != nil {
		if isPgCode(err, pgErrForeignKeyViolation) {
			return catalog.Product{}, catalog.ErrNotFound
		}
		return catalog.Product{}, err
	}
	return p, nil
}

func (s *Store) CreateCategory(ctx context.Context, nc catalog.NewCategory) (catalog.Category, error) {
	c := catalog.Category{Name: nc.Name, Description: nc.Description}
	err := s.db.QueryRowContext(ctx, `
		insert into categories (name, description)
		values ($1, $2)
		returning id
	`, nc.Name, nullIfEmpty(nc.Description)).Scan(&c.ID)
	if err != nil {
		if isPgCode(err, pgErrUniqueViolation) {
			return catalog.Category{}, catalog.ErrConflict
		}
		return catalog.Category{}, err
	}
	return c, nil
}
