// Package testing provides test helpers: throwaway databases and broker
// doubles.
package testing

import (
	"path/filepath"
	"testing"

	"github.com/foliolabs/folio/internal/database"
)

// NewTestDB creates an isolated file-backed database with the schema for the
// given name applied. The file lives in the test's temp directory, so cleanup
// is automatic.
func NewTestDB(t *testing.T, name string) *database.DB {
	t.Helper()

	db, err := database.New(database.Config{
		Path:    filepath.Join(t.TempDir(), name+".db"),
		Profile: database.ProfileStandard,
		Name:    name,
	})
	if err != nil {
		t.Fatalf("Failed to create test database %s: %v", name, err)
	}

	if err := db.Migrate(); err != nil {
		_ = db.Close()
		t.Fatalf("Failed to migrate test database %s: %v", name, err)
	}

	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Logf("Warning: failed to close test database %s: %v", name, err)
		}
	})

	return db
}
