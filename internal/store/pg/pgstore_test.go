package pg

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/go-cmp/cmp"
	"github.com/jackc/pgx/v5/pgconn"

	"storefront.dev/internal/auth"
	"storefront.dev/internal/catalog"
)

func newMock(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
		db.Close()
	})
	return New(db), mock
}

func TestFindUserByUsernameMaterializesGrants(t *testing.T) {
	store, mock := newMock(t)
	created := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery("select id, username, email, password_hash, created_at from users where username").
		WithArgs("alice").
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "email", "password_hash", "created_at"}).
			AddRow(int64(1), "alice", "alice@example.com", "hash", created))
	mock.ExpectQuery("from user_roles ur join roles r").
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).
			AddRow(int64(10), "ADMIN").
			AddRow(int64(11), "USER"))
	mock.ExpectQuery("join role_authorities ra").
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"role_id", "id", "name"}).
			AddRow(int64(10), int64(100), "product.write").
			AddRow(int64(11), int64(101), "product.read"))
	mock.ExpectQuery("from user_authorities ua").
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(int64(102), "order.read"))

	user, err := store.FindUserByUsername(context.Background(), "alice")
	if err != nil {
		t.Fatalf("FindUserByUsername: %v", err)
	}
	want := auth.User{
		ID:           1,
		Username:     "alice",
		Email:        "alice@example.com",
		PasswordHash: "hash",
		CreatedAt:    created,
		Roles: []auth.Role{
			{ID: 10, Name: "ADMIN", Authorities: []auth.Authority{{ID: 100, Name: "product.write"}}},
			{ID: 11, Name: "USER", Authorities: []auth.Authority{{ID: 101, Name: "product.read"}}},
		},
		Authorities: []auth.Authority{{ID: 102, Name: "order.read"}},
	}
	if diff := cmp.Diff(want, user); diff != "" {
		t.Fatalf("user mismatch (-want +got):\n%s", diff)
	}
}

func TestFindUserByUsernameNotFound(t *testing.T) {
	store, mock := newMock(t)
	mock.ExpectQuery("from users where username").WithArgs("ghost").WillReturnError(sql.ErrNoRows)

	if _, err := store.FindUserByUsername(context.Background(), "ghost"); !errors.Is(err, auth.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCreateUserConflict(t *testing.T) {
	store, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery("insert into users").
		WithArgs("alice", sqlmock.AnyArg(), "hash").
		WillReturnError(&pgconn.PgError{Code: pgErrUniqueViolation})
	mock.ExpectRollback()

	_, err := store.CreateUser(context.Background(), auth.NewUser{Username: "alice", PasswordHash: "hash", RoleIDs: []int64{1}})
	if !errors.Is(err, auth.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestCreateUserWithRoles(t *testing.T) {
	store, mock := newMock(t)
	created := time.Now().UTC()
	mock.ExpectBegin()
	mock.ExpectQuery("insert into users").
		WithArgs("bob", sqlmock.AnyArg(), "hash").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(5), created))
	mock.ExpectExec("insert into user_roles").WithArgs(int64(5), int64(1)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("insert into user_roles").WithArgs(int64(5), int64(2)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	user, err := store.CreateUser(context.Background(), auth.NewUser{Username: "bob", Email: "bob@example.com", PasswordHash: "hash", RoleIDs: []int64{1, 2}})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if user.ID != 5 || len(user.Roles) != 2 {
		t.Fatalf("unexpected user: %+v", user)
	}
}

func TestFindRolesByIDs(t *testing.T) {
	store, mock := newMock(t)
	mock.ExpectQuery("select id, name from roles where id in").
		WithArgs(int64(1), int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(int64(1), "USER"))

	roles, err := store.FindRolesByIDs(context.Background(), []int64{1, 3})
	if err != nil {
		t.Fatalf("FindRolesByIDs: %v", err)
	}
	if len(roles) != 1 || roles[0].Name != "USER" {
		t.Fatalf("unexpected roles: %+v", roles)
	}

	if roles, err := store.FindRolesByIDs(context.Background(), nil); err != nil || roles != nil {
		t.Fatalf("expected no query for empty ids, got %v %v", roles, err)
	}
}

func TestUsernameExists(t *testing.T) {
	store, mock := newMock(t)
	mock.ExpectQuery("select exists").WithArgs("alice").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := store.UsernameExists(context.Background(), "alice")
	if err != nil || !exists {
		t.Fatalf("expected true, got %v err=%v", exists, err)
	}
}

func TestListPermissions(t *testing.T) {
	store, mock := newMock(t)
	mock.ExpectQuery("from permissions where service_name").
		WithArgs("product-service").
		WillReturnRows(sqlmock.NewRows([]string{"id", "service_name", "url_pattern"}).
			AddRow(int64(1), "product-service", "/product/create").
			AddRow(int64(2), "product-service", "/product/**"))
	mock.ExpectQuery("from permission_roles pr").
		WithArgs("product-service").
		WillReturnRows(sqlmock.NewRows([]string{"permission_id", "name"}).
			AddRow(int64(1), "ADMIN").
			AddRow(int64(2), "USER"))
	mock.ExpectQuery("from permission_authorities pa").
		WithArgs("product-service").
		WillReturnRows(sqlmock.NewRows([]string{"permission_id", "name"}).
			AddRow(int64(1), "product.write"))

	perms, err := store.ListPermissions(context.Background(), "product-service")
	if err != nil {
		t.Fatalf("ListPermissions: %v", err)
	}
	want := []auth.Permission{
		{ID: 1, Service: "product-service", Pattern: "/product/create", Roles: []string{"ADMIN"}, Authorities: []string{"product.write"}},
		{ID: 2, Service: "product-service", Pattern: "/product/**", Roles: []string{"USER"}},
	}
	if diff := cmp.Diff(want, perms); diff != "" {
		t.Fatalf("permissions mismatch (-want +got):\n%s", diff)
	}
}

func TestListPermissionsFailure(t *testing.T) {
	store, mock := newMock(t)
	mock.ExpectQuery("from permissions").WithArgs("user-service").WillReturnError(errors.New("connection refused"))

	if _, err := store.ListPermissions(context.Background(), "user-service"); err == nil {
		t.Fatal("expected error")
	}
}

func TestGetProduct(t *testing.T) {
	store, mock := newMock(t)
	mock.ExpectQuery("from products p join categories c").
		WithArgs(int64(4)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "category", "price", "description"}).
			AddRow(int64(4), "lamp", "home", int64(1299), nil))

	p, err := store.GetProduct(context.Background(), 4)
	if err != nil {
		t.Fatalf("GetProduct: %v", err)
	}
	if diff := cmp.Diff(catalog.Product{ID: 4, Name: "lamp", Category: "home", Price: 1299}, p); diff != "" {
		t.Fatalf("product mismatch (-want +got):\n%s", diff)
	}

	mock.ExpectQuery("from products p").WithArgs(int64(5)).WillReturnError(sql.ErrNoRows)
	if _, err := store.GetProduct(context.Background(), 5); !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestProductsByCategory(t *testing.T) {
	store, mock := newMock(t)
	mock.ExpectQuery("from categories where lower").
		WithArgs("Home").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(int64(2), "home"))
	mock.ExpectQuery("from products where category_id").
		WithArgs(int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "price", "description"}).
			AddRow(int64(4), "lamp", int64(1299), "warm"))

	products, err := store.ProductsByCategory(context.Background(), "Home")
	if err != nil {
		t.Fatalf("ProductsByCategory: %v", err)
	}
	want := []catalog.Product{{ID: 4, Name: "lamp", Category: "home", Price: 1299, Description: "warm"}}
	if diff := cmp.Diff(want, products); diff != "" {
		t.Fatalf("products mismatch (-want +got):\n%s", diff)
	}
}

func TestCreateCategoryConflict(t *testing.T) {
	store, mock := newMock(t)
	mock.ExpectQuery("insert into categories").
		WithArgs("home", sqlmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: pgErrUniqueViolation})

	if _, err := store.CreateCategory(context.Background(), catalog.NewCategory{Name: "home"}); !errors.Is(err, catalog.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestCreateProductUnknownCategory(t *testing.T) {
	store, mock := newMock(t)
	mock.ExpectQuery("select name from categories where id").WithArgs(int64(9)).WillReturnError(sql.ErrNoRows)

	if _, err := store.CreateProduct(context.Background(), catalog.NewProduct{Name: "x", CategoryID: 9}); !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCreateProduct(t *testing.T) {
	store, mock := newMock(t)
	mock.ExpectQuery("select name from categories where id").WithArgs(int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("home"))
	mock.ExpectQuery("insert into products").
		WithArgs("lamp", int64(2), int64(1299), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(8)))

	p, err := store.CreateProduct(context.Background(), catalog.NewProduct{Name: "lamp", CategoryID: 2, Price: 1299})
	if err != nil {
		t.Fatalf("CreateProduct: %v", err)
	}
	if p.ID != 8 || p.Category != "home" {
		t.Fatalf("unexpected product: %+v", p)
	}
}
