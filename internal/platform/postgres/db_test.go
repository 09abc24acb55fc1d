package postgres

import (
	"errors"
	"testing"
	"testing/fstest"

	"gorm.io/gorm"
)

func TestMigrationNamesSortedAndFiltered(t *testing.T) {
	t.Parallel()

	fsys := fstest.MapFS{
		"migrations/0002_index.sql":  {Data: []byte("select 1")},
		"migrations/0001_create.sql": {Data: []byte("select 1")},
		"migrations/README.md":       {Data: []byte("docs")},
	}
	names, err := migrationNames(fsys, "migrations")
	if err != nil {
		t.Fatalf("names: %v", err)
	}
	if len(names) != 2 || names[0] != "0001_create.sql" || names[1] != "0002_index.sql" {
		t.Fatalf("unexpected order: %v", names)
	}
}

func TestEscapeLike(t *testing.T) {
	t.Parallel()

	if got := EscapeLike(`50%_off\`); got != `50\%\_off\\` {
		t.Fatalf("unexpected escape: %q", got)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	t.Parallel()

	if !IsUniqueViolation(gorm.ErrDuplicatedKey) {
		t.Fatalf("expected gorm duplicate key to match")
	}
	if !IsUniqueViolation(errors.New(`ERROR: duplicate key value violates unique constraint "media_assets_pkey"`)) {
		t.Fatalf("expected driver message to match")
	}
	if IsUniqueViolation(errors.New("connection reset")) {
		t.Fatalf("unexpected match")
	}
}
