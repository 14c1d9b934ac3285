package catalog

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
)

func seeded(t *testing.T) (*Service, Category) {
	t.Helper()
	svc := NewService(NewInMemory())
	cat, err := svc.CreateCategory(context.Background(), NewCategory{Name: "Books"})
	if err != nil {
		t.Fatal(err)
	}
	return svc, cat
}

func TestCreateAndGetProduct(t *testing.T) {
	svc, cat := seeded(t)
	ctx := context.Background()

	p, err := svc.CreateProduct(ctx, NewProduct{Name: " Go in Action ", CategoryID: cat.ID, Price: 3999})
	if err != nil {
		t.Fatal(err)
	}
	got, err := svc.Product(ctx, p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "Go in Action" || got.Category != "Books" || got.Price != 3999 {
		t.Fatalf("unexpected product: %+v", got)
	}
}

func TestProductNotFoundMessage(t *testing.T) {
	svc, _ := seeded(t)
	_, err := svc.Product(context.Background(), 42)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if !strings.HasSuffix(err.Error(), "No Product with the product ID - 42 found") {
		t.Fatalf("unexpected message: %q", err)
	}
}

func TestByCategory(t *testing.T) {
	svc, cat := seeded(t)
	ctx := context.Background()

	if _, err := svc.ByCategory(ctx, " "); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for blank category, got %v", err)
	}
	if _, err := svc.ByCategory(ctx, "Books"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for empty category, got %v", err)
	}
	if _, err := svc.ByCategory(ctx, "Games"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown category, got %v", err)
	}

	for _, name := range []string{"a", "b"} {
		if _, err := svc.CreateProduct(ctx, NewProduct{Name: name, CategoryID: cat.ID}); err != nil {
			t.Fatal(err)
		}
	}
	products, err := svc.ByCategory(ctx, "books")
	if err != nil {
		t.Fatal(err)
	}
	if len(products) != 2 || products[0].Name != "a" {
		t.Fatalf("unexpected products: %+v", products)
	}
}

func TestCreateCategoryConflict(t *testing.T) {
	svc, _ := seeded(t)
	_, err := svc.CreateCategory(context.Background(), NewCategory{Name: "Books"})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if !strings.HasSuffix(err.Error(), "Category : Books already exists") {
		t.Fatalf("unexpected message: %q", err)
	}
}

func TestCreateProductValidation(t *testing.T) {
	svc, cat := seeded(t)
	ctx := context.Background()
	if _, err := svc.CreateProduct(ctx, NewProduct{CategoryID: cat.ID}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for missing name, got %v", err)
	}
	if _, err := svc.CreateProduct(ctx, NewProduct{Name: "x", CategoryID: cat.ID, Price: -1}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for negative price, got %v", err)
	}
	if _, err := svc.CreateProduct(ctx, NewProduct{Name: "x", CategoryID: 999}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown category, got %v", err)
	}
}

func TestConcurrentCreates(t *testing.T) {
	svc, cat := seeded(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	const n = 50
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = svc.CreateProduct(ctx, NewProduct{Name: "p", CategoryID: cat.ID})
		}()
	}
	wg.Wait()

	products, err := svc.ByCategory(ctx, "Books")
	if err != nil {
		t.Fatal(err)
	}
	seen := map[int64]bool{}
	for _, p := range products {
		if seen[p.ID] {
			t.Fatalf("duplicate id %d", p.ID)
		}
		seen[p.ID] = true
	}
	if len(products) != n {
		t.Fatalf("expected %d products, got %d", n, len(products))
	}
}
