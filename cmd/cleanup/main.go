package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"go-glsync/internal/config"
	"go-glsync/internal/database"
	"go-glsync/internal/features/sync"

	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type pruneTarget struct {
	collection string
	filter     bson.M
}

// pruneTargets selects finished sync history older than cutoff.
// In-flight logs and unresolved errors are never matched.
func pruneTargets(cutoff time.Time) []pruneTarget {
	return []pruneTarget{
		{
			collection: database.SyncLogsCollection,
			filter: bson.M{
				"status":     bson.M{"$in": []sync.LogStatus{sync.StatusCompleted, sync.StatusFailed}},
				"started_at": bson.M{"$lt": cutoff},
			},
		},
		{
			collection: database.SyncErrorsCollection,
			filter: bson.M{
				"resolved_at": bson.M{"$ne": nil, "$lt": cutoff},
			},
		},
	}
}

func newRootCmd() *cobra.Command {
	var (
		days   int
		dryRun bool
	)

	cmd := &cobra.Command{
		Use:           "cleanup",
		Short:         "Prune finished sync logs and resolved sync errors",
		SilenceUsage:  true,
		SilenceErrors: true,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if days <= 0 {
				return fmt.Errorf("--days must be positive, got %d", days)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			return run(cmd.Context(), cmd, cfg, days, dryRun)
		},
	}

	cmd.Flags().IntVar(&days, "days", 90, "retention window in days")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "count matching documents without deleting")
	return cmd
}

func run(ctx context.Context, cmd *cobra.Command, cfg *config.Config, days int, dryRun bool) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return fmt.Errorf("connect to MongoDB: %w", err)
	}
	defer client.Disconnect(context.Background())

	db := client.Database(cfg.DBName)
	cutoff := time.Now().UTC().AddDate(0, 0, -days)
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "Pruning sync history older than %s\n", cutoff.Format(time.RFC3339))

	for _, t := range pruneTargets(cutoff) {
		coll := db.Collection(t.collection)
		if dryRun {
			n, err := coll.CountDocuments(ctx, t.filter)
			if err != nil {
				cmd.PrintErrf("Failed to count %s: %v\n", t.collection, err)
				continue
			}
			fmt.Fprintf(out, "%s: %d documents would be removed\n", t.collection, n)
			continue
		}

		res, err := coll.DeleteMany(ctx, t.filter)
		if err != nil {
			cmd.PrintErrf("Failed to prune %s: %v\n", t.collection, err)
			continue
		}
		fmt.Fprintf(out, "%s: removed %d documents\n", t.collection, res.DeletedCount)
	}

	fmt.Fprintln(out, "Cleanup complete.")
	return nil
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
