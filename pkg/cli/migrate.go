package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/m-mizutani/fireconf"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemosyne/pkg/cli/config"
	"github.com/secmon-lab/mnemosyne/pkg/repository/firestore"
	"github.com/secmon-lab/mnemosyne/pkg/repository/sqlite"
	"github.com/secmon-lab/mnemosyne/pkg/service/embedding"
	"github.com/secmon-lab/mnemosyne/pkg/utils/logging"
	"github.com/secmon-lab/mnemosyne/pkg/utils/safe"
	"github.com/urfave/cli/v3"
)

const defaultDatabaseID = "(default)"

func cmdMigrate() *cli.Command {
	var repoCfg config.Repository
	var dimension int
	var dryRun bool

	flags := []cli.Flag{
		&cli.IntFlag{
			Name:        "embedding-dimension",
			Usage:       "Dimension of the Firestore vector index",
			Value:       embedding.DefaultDimension,
			Sources:     cli.EnvVars("MNEMOSYNE_EMBEDDING_DIMENSION"),
			Destination: &dimension,
		},
		&cli.BoolFlag{
			Name:        "dry-run",
			Usage:       "Preview changes without applying",
			Destination: &dryRun,
		},
	}
	flags = append(flags, repoCfg.Flags()...)

	return &cli.Command{
		Name:    "migrate",
		Aliases: []string{"m"},
		Usage:   "Create the SQLite schema or the Firestore indexes",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			logger := logging.Default()
			logger.Info("Migrate configuration",
				"repository", repoCfg,
				"dimension", dimension,
				"dryRun", dryRun)

			switch repoCfg.Backend() {
			case config.BackendSQLite:
				return migrateSQLite(ctx, repoCfg.DBPath(), dryRun)
			case config.BackendFirestore:
				if repoCfg.ProjectID() == "" {
					return config.ErrMissingFirestore
				}
				return migrateFirestore(ctx, repoCfg.ProjectID(), repoCfg.DatabaseID(), dimension, dryRun)
			case config.BackendMemory:
				logger.Info("In-memory repository needs no migration")
				return nil
			default:
				return goerr.Wrap(config.ErrInvalidConfig, "invalid repository backend", goerr.V(config.BackendKey, repoCfg.Backend()))
			}
		},
	}
}

func migrateSQLite(ctx context.Context, path string, dryRun bool) error {
	logger := logging.Default()
	if dryRun {
		logger.Info("Dry run mode - schema would be created if missing", "path", path)
		return nil
	}

	// New applies the schema.
	repo, err := sqlite.New(ctx, path)
	if err != nil {
		return goerr.Wrap(err, "failed to initialize sqlite schema", goerr.V("path", path))
	}
	if err := repo.Close(); err != nil {
		return goerr.Wrap(err, "failed to close sqlite database", goerr.V("path", path))
	}

	logger.Info("SQLite schema is up to date", "path", path)
	return nil
}

func migrateFirestore(ctx context.Context, projectID, databaseID string, dimension int, dryRun bool) error {
	logger := logging.Default()
	if databaseID == "" {
		databaseID = defaultDatabaseID
	}

	client, err := fireconf.New(ctx, projectID, databaseID, getIndexConfig(dimension), fireconf.WithLogger(logger))
	if err != nil {
		return goerr.Wrap(err, "failed to create fireconf client",
			goerr.V("projectID", projectID),
			goerr.V("databaseID", databaseID))
	}
	defer safe.Close(ctx, "fireconf client", client)

	if !dryRun {
		logger.Info("Applying migrations")
		if err := client.Migrate(ctx); err != nil {
			return goerr.Wrap(err, "failed to apply migrations")
		}
		logger.Info("Migrations applied successfully")
		return nil
	}

	current, err := client.Import(ctx, firestore.MemoriesCollection)
	if err != nil {
		return goerr.Wrap(err, "failed to import current index configuration")
	}
	diff, err := client.DiffConfigs(current)
	if err != nil {
		return goerr.Wrap(err, "failed to compare index configuration")
	}

	changes := 0
	for _, col := range diff.Collections {
		for _, idx := range col.IndexesToAdd {
			logger.Info("Index would be created", "collection", col.Name, "fields", describeIndex(idx))
			changes++
		}
		for _, idx := range col.IndexesToDelete {
			logger.Info("Index would be deleted", "collection", col.Name, "fields", describeIndex(idx))
			changes++
		}
		if col.TTLAction != "" {
			logger.Info("TTL policy would change", "collection", col.Name, "action", col.TTLAction)
			changes++
		}
	}
	if changes == 0 {
		logger.Info("No changes required")
	}
	return nil
}

// describeIndex renders idx as "archived ASCENDING, tags CONTAINS, created_at DESCENDING".
func describeIndex(idx fireconf.Index) string {
	parts := make([]string, 0, len(idx.Fields))
	for _, f := range idx.Fields {
		switch {
		case f.Vector != nil:
			parts = append(parts, fmt.Sprintf("%s VECTOR(%d)", f.Path, f.Vector.Dimension))
		case f.Array != "":
			parts = append(parts, fmt.Sprintf("%s %s", f.Path, f.Array))
		default:
			parts = append(parts, fmt.Sprintf("%s %s", f.Path, f.Order))
		}
	}
	return strings.Join(parts, ", ")
}

// getIndexConfig returns the composite indexes used by the memories queries.
// Tag filters use array-contains-any, which needs a CONTAINS field.
func getIndexConfig(dimension int) *fireconf.Config {
	return &fireconf.Config{
		Collections: []fireconf.Collection{
			{
				Name: firestore.MemoriesCollection,
				Indexes: []fireconf.Index{
					// List, ListAllActive: archived, created_at DESC
					{
						Fields: []fireconf.IndexField{
							{Path: "archived", Order: fireconf.OrderAscending},
							{Path: "created_at", Order: fireconf.OrderDescending},
						},
					},
					// Stats
					{
						Fields: []fireconf.IndexField{
							{Path: "archived", Order: fireconf.OrderAscending},
							{Path: "created_at", Order: fireconf.OrderAscending},
						},
					},
					// List by project
					{
						Fields: []fireconf.IndexField{
							{Path: "archived", Order: fireconf.OrderAscending},
							{Path: "project", Order: fireconf.OrderAscending},
							{Path: "created_at", Order: fireconf.OrderDescending},
						},
					},
					// List by tags
					{
						Fields: []fireconf.IndexField{
							{Path: "archived", Order: fireconf.OrderAscending},
							{Path: "tags", Array: fireconf.ArrayConfigContains},
							{Path: "created_at", Order: fireconf.OrderDescending},
						},
					},
					// List by project and tags
					{
						Fields: []fireconf.IndexField{
							{Path: "archived", Order: fireconf.OrderAscending},
							{Path: "project", Order: fireconf.OrderAscending},
							{Path: "tags", Array: fireconf.ArrayConfigContains},
							{Path: "created_at", Order: fireconf.OrderDescending},
						},
					},
					// GetByHash: oldest active record first
					{
						Fields: []fireconf.IndexField{
							{Path: "archived", Order: fireconf.OrderAscending},
							{Path: "text_hash", Order: fireconf.OrderAscending},
							{Path: "created_at", Order: fireconf.OrderAscending},
						},
					},
					// BulkHardDelete
					{
						Fields: []fireconf.IndexField{
							{Path: "project", Order: fireconf.OrderAscending},
							{Path: "created_at", Order: fireconf.OrderAscending},
						},
					},
					{
						Fields: []fireconf.IndexField{
							{
								Path: "embedding",
								Vector: &fireconf.VectorConfig{
									Dimension: dimension,
								},
							},
						},
					},
				},
			},
		},
	}
}
