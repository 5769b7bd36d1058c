package postgres

import (
	"os"
	"testing"

	"github.com/and161185/playlister/internal/repository"
	"github.com/and161185/playlister/internal/repository/repotest"
)

// TestEngine_Conformance runs the shared suite against a real database.
// Set DATABASE_URL to a disposable database to enable it.
func TestEngine_Conformance(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set")
	}
	repotest.Run(t, func(*testing.T) repository.Engine { return New(dsn, nil) })
}
