package migrate

import (
	"context"
	"regexp"
	"slices"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestSplitStatements(t *testing.T) {
	sql := `-- header comment
insert into roles (name) values ('A;B');
insert into roles (name) values ('C');
`
	got := splitStatements(sql)
	if len(got) != 2 {
		t.Fatalf("expected 2 statements, got %d: %q", len(got), got)
	}
	if !strings.Contains(got[0], "'A;B'") {
		t.Fatalf("semicolon inside string split the statement: %q", got[0])
	}
	if strings.Contains(got[0], "header") {
		t.Fatalf("comment not dropped: %q", got[0])
	}
}

func TestCollectSQLOrdersByName(t *testing.T) {
	fsys := fstest.MapFS{
		"0002_b.up.sql":   {Data: []byte("select 2;")},
		"0001_a.up.sql":   {Data: []byte("select 1;")},
		"0001_a.down.sql": {Data: []byte("select 0;")},
	}
	files, err := collectSQL(fsys, ".up.sql")
	if err != nil {
		t.Fatalf("collectSQL: %v", err)
	}
	var names []string
	for _, f := range files {
		names = append(names, f.Base)
	}
	if !slices.Equal(names, []string{"0001_a.up.sql", "0002_b.up.sql"}) {
		t.Fatalf("unexpected order: %v", names)
	}
	if files, err := collectSQL(nil, ".sql"); err != nil || files != nil {
		t.Fatalf("nil fs should yield nothing, got %v %v", files, err)
	}
}

func expectTables(mock sqlmock.Sqlmock) {
	mock.ExpectExec("create table if not exists schema_migrations").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("create table if not exists schema_seeds").WillReturnResult(sqlmock.NewResult(0, 0))
}

func TestUpAppliesOnlyPending(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	fsys := fstest.MapFS{
		"0001_users.up.sql": {Data: []byte("create table users (id int);")},
		"0002_roles.up.sql": {Data: []byte("create table roles (id int);\ncreate table user_roles (id int);")},
	}

	expectTables(mock)
	mock.ExpectQuery("select name from schema_migrations").
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("0001_users.up.sql"))
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("create table roles (id int);")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("create table user_roles (id int);")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()
	mock.ExpectExec("insert into schema_migrations").
		WithArgs("0002_roles.up.sql", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := NewManager(db, fsys, nil).Up(context.Background()); err != nil {
		t.Fatalf("Up: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDownRollsBackLatest(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	fsys := fstest.MapFS{
		"0001_users.up.sql":   {Data: []byte("create table users (id int);")},
		"0001_users.down.sql": {Data: []byte("drop table users;")},
	}

	expectTables(mock)
	mock.ExpectQuery("select name from schema_migrations order by applied_at").
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("0001_users.up.sql"))
	mock.ExpectBegin()
	mock.ExpectExec("drop table users").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()
	mock.ExpectExec("delete from schema_migrations where name").
		WithArgs("0001_users.up.sql").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := NewManager(db, fsys, nil).Down(context.Background()); err != nil {
		t.Fatalf("Down: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDownWithoutHistory(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	expectTables(mock)
	mock.ExpectQuery("select name from schema_migrations").WillReturnRows(sqlmock.NewRows([]string{"name"}))

	if err := NewManager(db, fstest.MapFS{}, nil).Down(context.Background()); err == nil {
		t.Fatal("expected error when nothing is applied")
	}
}
