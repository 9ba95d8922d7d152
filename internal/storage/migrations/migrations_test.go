package migrations

import (
	"errors"
	"strings"
	"testing"
)

func TestLoad_EmbeddedOrder(t *testing.T) {
	pg, err := load(PostgresFS, "postgres")
	if err != nil {
		t.Fatalf("load postgres: %v", err)
	}
	if len(pg) < 2 {
		t.Fatalf("expected at least 2 postgres migrations, got %d", len(pg))
	}
	if pg[0].Version != "001_pdufa_events" {
		t.Errorf("first postgres migration = %s", pg[0].Version)
	}
	for i := 1; i < len(pg); i++ {
		if pg[i-1].Version >= pg[i].Version {
			t.Errorf("migrations out of order: %s >= %s", pg[i-1].Version, pg[i].Version)
		}
	}

	ch, err := load(ClickhouseFS, "clickhouse")
	if err != nil {
		t.Fatalf("load clickhouse: %v", err)
	}
	for _, m := range ch {
		if err := validateNoSemicolonInStrings(m.SQL); err != nil {
			t.Errorf("%s: %v", m.Version, err)
		}
		if len(splitStatements(m.SQL)) == 0 {
			t.Errorf("%s: no statements", m.Version)
		}
	}
}

func TestSplitStatements(t *testing.T) {
	sql := `-- header comment
CREATE TABLE a (x Int32);

-- second
CREATE TABLE b (y String)
ENGINE = Memory;
`
	stmts := splitStatements(sql)
	if len(stmts) != 2 {
		t.Fatalf("expected 2 statements, got %d: %q", len(stmts), stmts)
	}
	if !strings.HasPrefix(stmts[1], "CREATE TABLE b") {
		t.Errorf("unexpected second statement: %q", stmts[1])
	}
}

func TestValidateNoSemicolonInStrings(t *testing.T) {
	if err := validateNoSemicolonInStrings(`SELECT 'it''s fine'; SELECT 1;`); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	err := validateNoSemicolonInStrings(`SELECT 'a;b'`)
	if !errors.Is(err, ErrSemicolonInString) {
		t.Errorf("expected ErrSemicolonInString, got %v", err)
	}
}

func TestDatabaseFromDSN(t *testing.T) {
	db, err := databaseFromDSN("clickhouse://default:@localhost:9000/pdufa")
	if err != nil || db != "pdufa" {
		t.Errorf("got %q, %v", db, err)
	}
	if _, err := databaseFromDSN("clickhouse://localhost:9000"); err == nil {
		t.Error("expected error for DSN without database")
	}
}
