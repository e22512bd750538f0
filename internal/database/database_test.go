package database

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/tracelog"
	"github.com/newrelic/go-agent/v3/integrations/nrpgx5"
	"github.com/rs/zerolog"
)

func TestMigrationsEmbedded(t *testing.T) {
	names, err := fs.Glob(migrationFiles, "migrations/*.sql")
	if err != nil {
		t.Fatal(err)
	}
	if len(names) == 0 {
		t.Fatal("expected embedded migrations")
	}
	body, err := fs.ReadFile(migrationFiles, "migrations/001_create_role2_file_type.sql")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(body), `CREATE TABLE IF NOT EXISTS "Role2FileType"`) {
		t.Fatalf("unexpected migration %s", body)
	}
	if !strings.Contains(string(body), "---- create above / drop below ----") {
		t.Fatal("expected a down migration section")
	}
}

func TestQueryTracer(t *testing.T) {
	if _, ok := QueryTracer(zerolog.Nop(), false).(*tracelog.TraceLog); !ok {
		t.Fatal("expected zerolog query logging without APM")
	}
	if _, ok := QueryTracer(zerolog.Nop(), true).(*nrpgx5.Tracer); !ok {
		t.Fatal("expected New Relic tracer with APM")
	}
}
