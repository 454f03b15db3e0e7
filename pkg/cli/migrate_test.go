package cli_test

import (
	"path/filepath"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/mnemosyne/pkg/cli"
)

func TestIndexConfig(t *testing.T) {
	cfg := cli.GetIndexConfig(768)
	gt.NoError(t, cfg.Validate()).Required()
	gt.Array(t, cfg.Collections).Length(1)

	var described []string
	for _, idx := range cfg.Collections[0].Indexes {
		described = append(described, cli.DescribeIndex(idx))
	}

	gt.Array(t, described).Has("archived ASCENDING, tags CONTAINS, created_at DESCENDING")
	gt.Array(t, described).Has("archived ASCENDING, project ASCENDING, tags CONTAINS, created_at DESCENDING")
	gt.Array(t, described).Has("archived ASCENDING, project ASCENDING, created_at DESCENDING")
	gt.Array(t, described).Has("embedding VECTOR(768)")
}

func TestMigrateSQLite(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "memory.db")

	_, err := runApp(t, "migrate", "--repository-backend", "sqlite", "--db-path", dbPath)
	gt.NoError(t, err).Required()

	out, err := runApp(t, "stats", "--repository-backend", "sqlite", "--db-path", dbPath, "--vectorizer", "hash")
	gt.NoError(t, err).Required()
	gt.String(t, out).Contains("total memories: 0")
}

func TestMigrateFirestoreRequiresProject(t *testing.T) {
	t.Setenv("MNEMOSYNE_FIRESTORE_PROJECT_ID", "")
	_, err := runApp(t, "migrate", "--repository-backend", "firestore")
	gt.Value(t, err).NotNil()
}
