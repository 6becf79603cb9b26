package params_test

import (
	"context"
	"database/sql"
	"errors"
	"reflect"
	"regexp"
	"testing"

	"db-relay/internal/dialect"
	"db-relay/internal/model"
	"db-relay/internal/params"

	"github.com/DATA-DOG/go-sqlmock"
)

type mockConnector struct {
	db    *sql.DB
	calls int
}

func (c *mockConnector) Open(ctx context.Context, d dialect.Dialect, connStr string) (*sql.DB, error) {
	c.calls++
	return c.db, nil
}

func TestExtractParameters(t *testing.T) {
	got := params.ExtractParameters("INSERT INTO t (a, b, c) VALUES (@Email, :name, @Email) -- @skip")
	want := []string{"Email", "name"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}

	if got := params.ExtractParameters("INSERT INTO t VALUES (@a, @A)"); !reflect.DeepEqual(got, []string{"a", "A"}) {
		t.Errorf("case-sensitive names collapsed: %v", got)
	}

	got = params.ExtractParameters(`INSERT INTO notes (body, uid) VALUES ('it\'s @home', @uid)`)
	if !reflect.DeepEqual(got, []string{"uid"}) {
		t.Errorf("escaped quote: got %v", got)
	}

	if got := params.ExtractParameters("SELECT 1"); len(got) != 0 {
		t.Errorf("expected no parameters, got %v", got)
	}
}

func TestExtractSourceColumns(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	conn := &mockConnector{db: db}

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM (\nSELECT u.id, u.name AS full_name, COUNT(*) AS orders FROM users u\n) AS probe_ LIMIT 0")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "full_name", "orders"}))
	mock.ExpectRollback()
	mock.ExpectClose()

	cols, err := params.ExtractSourceColumns(context.Background(), conn, "mysql", "dsn",
		"SELECT u.id, u.name AS full_name, COUNT(*) AS orders FROM users u")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(cols, []string{"id", "full_name", "orders"}) {
		t.Errorf("cols = %v", cols)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestExtractSourceColumns_UnsupportedDialect(t *testing.T) {
	conn := &mockConnector{}
	_, err := params.ExtractSourceColumns(context.Background(), conn, "Oracle", "dsn", "SELECT 1 FROM dual")
	if !errors.Is(err, dialect.ErrUnsupportedDialect) {
		t.Fatalf("err = %v", err)
	}
	if conn.calls != 0 {
		t.Errorf("connector opened %d connections", conn.calls)
	}
}

func TestMeaning(t *testing.T) {
	for _, in := range []string{"usr_nm", "user_name", "UserName", "USER_NAME"} {
		if got := params.Meaning(in); got != "user name" {
			t.Errorf("Meaning(%q) = %q", in, got)
		}
	}
}

func TestSuggestMappings(t *testing.T) {
	parameters := []string{"uid", "Email", "usr_nm", "created"}
	columns := []string{"id", "email", "Email", "user_name"}

	got := params.SuggestMappings(parameters, columns)
	want := []model.Mapping{
		{SourceColumn: "id", TargetParameter: "uid"},
		{SourceColumn: "Email", TargetParameter: "Email"},
		{SourceColumn: "user_name", TargetParameter: "usr_nm"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %+v, want %+v", got, want)
	}
}
