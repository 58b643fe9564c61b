package db

import (
	"io/fs"
	"strings"
	"testing"
)

func TestMigrationsArePaired(t *testing.T) {
	files, err := fs.Glob(migrations, "migrations/*.sql")
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if len(files) == 0 {
		t.Fatal("expected embedded migrations")
	}

	up := map[string]bool{}
	down := map[string]bool{}
	for _, f := range files {
		name := strings.TrimPrefix(f, "migrations/")
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			up[strings.TrimSuffix(name, ".up.sql")] = true
		case strings.HasSuffix(name, ".down.sql"):
			down[strings.TrimSuffix(name, ".down.sql")] = true
		default:
			t.Fatalf("unexpected migration file %s", name)
		}
	}
	for v := range up {
		if !down[v] {
			t.Fatalf("migration %s has no down file", v)
		}
	}
	if len(up) != len(down) {
		t.Fatalf("got %d up and %d down migrations", len(up), len(down))
	}
}

func TestMigrationsCreatePositionColumns(t *testing.T) {
	b, err := migrations.ReadFile("migrations/000001_graph.up.sql")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	sql := string(b)
	for _, col := range []string{"x ", "y ", "community_id", "date_mentioned", "PRIMARY KEY (graph_id, id)"} {
		if !strings.Contains(sql, col) {
			t.Fatalf("expected %q in the graph migration", col)
		}
	}
}
