package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// Reader is the read side used by the product endpoints and, through the
// remote client, by the order service.
type Reader interface {
	GetProduct(ctx context.Context, id int64) (Product, error)
	ProductsByCategory(ctx context.Context, category string) ([]Product, error)
}

// Store persists products and categories. Implementations return
// ErrNotFound and ErrConflict unwrapped.
type Store interface {
	Reader
	CreateProduct(ctx context.Context, p NewProduct) (Product, error)
	CreateCategory(ctx context.Context, c NewCategory) (Category, error)
}

// Service adds request validation and user-facing messages on top of a Store.
type Service struct {
	store    Store
	validate *validator.Validate
}

func NewService(store Store) *Service {
	return &Service{store: store, validate: validator.New(validator.WithRequiredStructEnabled())}
}

func (s *Service) Product(ctx context.Context, id int64) (Product, error) {
	p, err := s.store.GetProduct(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return Product{}, fmt.Errorf("%w: No Product with the product ID - %d found", ErrNotFound, id)
	}
	return p, err
}

func (s *Service) ByCategory(ctx context.Context, category string) ([]Product, error) {
	category = strings.TrimSpace(category)
	if category == "" {
		return nil, fmt.Errorf("%w: Required parameter 'category' is not present", ErrInvalidInput)
	}
	products, err := s.store.ProductsByCategory(ctx, category)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	if len(products) == 0 {
		return nil, fmt.Errorf("%w: No Product with the category - %s found", ErrNotFound, category)
	}
	return products, nil
}

func (s *Service) CreateProduct(ctx context.Context, p NewProduct) (Product, error) {
	p.Name = strings.TrimSpace(p.Name)
	if err := s.validate.Struct(p); err != nil {
		return Product{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	out, err := s.store.CreateProduct(ctx, p)
	if errors.Is(err, ErrNotFound) {
		return Product{}, fmt.Errorf("%w: No Category with the category ID - %d found", ErrNotFound, p.CategoryID)
	}
	return out, err
}

func (s *Service) CreateCategory(ctx context.Context, c NewCategory) (Category, error) {
	c.Name = strings.TrimSpace(c.Name)
	if err := s.validate.Struct(c); err != nil {
		return Category{}, fmt.Errorf("%w: Category name must not be empty", ErrInvalidInput)
	}
	out, err := s.store.CreateCategory(ctx, c)
	if errors.Is(err, ErrConflict) {
		return Category{}, fmt.Errorf("%w: Category : %s already exists", ErrConflict, c.Name)
	}
	return out, err
}

// InMemory implements Store with in-process concurrency safety. It backs
// tests and database-less local runs.
type InMemory struct {
	mu         sync.RWMutex
	seq        int64
	products   map[int64]Product
	categories map[string]Category
}

var _ Store = (*InMemory)(nil)

func NewInMemory() *InMemory {
	return &InMemory{
		products:   make(map[int64]Product),
		categories: make(map[string]Category),
	}
}

func (m *InMemory) GetProduct(_ context.Context, id int64) (Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.products[id]
	if !ok {
		return Product{}, ErrNotFound
	}
	return p, nil
}

func (m *InMemory) ProductsByCategory(_ context.Context, category string) ([]Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.categories[strings.ToLower(category)]; !ok {
		return nil, ErrNotFound
	}
	var out []Product
	for _, p := range m.products {
		if strings.EqualFold(p.Category, category) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *InMemory) CreateProduct(_ context.Context, np NewProduct) (Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var cat *Category
	for _, c := range m.categories {
		if c.ID == np.CategoryID {
			c := c
			cat = &c
			break
		}
	}
	if cat == nil {
		return Product{}, ErrNotFound
	}
	m.seq++
	p := Product{ID: m.seq, Name: np.Name, Category: cat.Name, Price: np.Price, Description: np.Description}
	m.products[p.ID] = p
	return p, nil
}

func (m *InMemory) CreateCategory(_ context.Context, nc NewCategory) (Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := strings.ToLower(nc.Name)
	if _, ok := m.categories[key]; ok {
		return Category{}, ErrConflict
	}
	m.seq++
	c := Category{ID: m.seq, Name: nc.Name, Description: nc.Description}
	m.categories[key] = c
	return c, nil
}
