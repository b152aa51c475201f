package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"comicdb/internal/dbclient"
	"comicdb/internal/etl"
	_ "comicdb/internal/etl/sources"
	mcpserver "comicdb/internal/mcp"
	"comicdb/internal/service"
	"comicdb/internal/storage"
)

var rootCmd = &cobra.Command{
	Use:   "comicdb",
	Short: "Load comic-book character datasets into MongoDB",
	Long: `comicdb streams per-publisher character CSV datasets into MongoDB
and runs queries against the resulting collections.

Environment:
  COMICDB_MONGO_URI       MongoDB host or full connection string (default localhost)
  COMICDB_MONGO_DB        Database name (default comics)
  COMICDB_MONGO_PASSWORD  Password, substituted into <password> placeholders
  COMICDB_DATA_DIR        Directory holding the per-publisher CSV files (default data)
  COMICDB_STATE_DB        SQLite path for job state (default ~/.local/share/comicdb/comicdb.db)`,
	SilenceUsage: true,
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Fatalf("comicdb: %v", err)
	}
}

func init() {
	loadCmd.Flags().String("publisher", "", "dataset publisher (dc|marvel)")
	loadCmd.Flags().String("data-dir", "", "directory holding the CSV files (default $COMICDB_DATA_DIR or data)")
	loadCmd.Flags().String("collection", "characters", "target MongoDB collection")
	loadCmd.Flags().String("mode", "replace", "write mode (replace|append)")
	loadCmd.MarkFlagRequired("publisher")

	previewCmd.Flags().String("publisher", "", "dataset publisher (dc|marvel)")
	previewCmd.Flags().String("data-dir", "", "directory holding the CSV files (default $COMICDB_DATA_DIR or data)")
	previewCmd.Flags().Int("rows", 5, "number of records to preview")
	previewCmd.MarkFlagRequired("publisher")

	for _, c := range []*cobra.Command{findCmd, findOneCmd, countCmd} {
		c.Flags().String("collection", "characters", "collection name")
		c.Flags().String("filter", "", "MongoDB filter as JSON")
	}
	findCmd.Flags().Int64("limit", 10, "maximum documents to return")

	insertCmd.Flags().String("collection", "characters", "collection name")
	insertCmd.Flags().String("doc", "", "document as JSON")
	insertCmd.MarkFlagRequired("doc")

	for _, c := range []*cobra.Command{createJobCmd, updateJobCmd} {
		c.Flags().String("name", "", "job name")
		c.Flags().String("publisher", "", "dataset publisher (dc|marvel)")
		c.Flags().String("data-dir", "", "directory holding the CSV files (default $COMICDB_DATA_DIR or data)")
		c.Flags().String("collection", "characters", "target MongoDB collection")
		c.Flags().String("mode", "replace", "write mode (replace|append)")
		c.Flags().String("transforms", "", `JSON array of transforms, e.g. [{"type":"filter","config":{"field":"ALIGN","op":"eq","value":"Good Characters"}}]`)
		c.Flags().String("dedupe-key", "", "column name for deduplication")
		c.Flags().String("trigger", "manual", "trigger type (manual|schedule|file_watch)")
		c.Flags().String("trigger-config", "", "cron expression or watch path")
	}
	createJobCmd.MarkFlagRequired("name")
	createJobCmd.MarkFlagRequired("publisher")
	updateJobCmd.Flags().String("id", "", "load job ID")
	updateJobCmd.MarkFlagRequired("id")

	runCmd.Flags().String("id", "", "load job ID")
	runCmd.MarkFlagRequired("id")
	logsCmd.Flags().String("id", "", "load job ID")
	logsCmd.MarkFlagRequired("id")

	rootCmd.AddCommand(loadCmd)
	rootCmd.AddCommand(previewCmd)
	rootCmd.AddCommand(findCmd)
	rootCmd.AddCommand(findOneCmd)
	rootCmd.AddCommand(countCmd)
	rootCmd.AddCommand(insertCmd)
	rootCmd.AddCommand(jobsCmd)
	rootCmd.AddCommand(createJobCmd)
	rootCmd.AddCommand(updateJobCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(logsCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(mcpCmd)
}

// ── Wiring helpers ─────────────────────────────────────────

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func dataDirFlag(cmd *cobra.Command) string {
	dir, _ := cmd.Flags().GetString("data-dir")
	if dir == "" {
		dir = envOr("COMICDB_DATA_DIR", "data")
	}
	return dir
}

func openDocs() (dbclient.DocumentStore, error) {
	cfg := dbclient.Config{
		Host:     envOr("COMICDB_MONGO_URI", "localhost"),
		Database: envOr("COMICDB_MONGO_DB", "comics"),
	}
	return dbclient.NewMongoStore(cfg, os.Getenv("COMICDB_MONGO_PASSWORD"))
}

func openJobStore() (*storage.DB, *storage.JobStore, error) {
	dbPath := os.Getenv("COMICDB_STATE_DB")
	if dbPath == "" {
		homeDir, _ := os.UserHomeDir()
		dbPath = filepath.Join(homeDir, ".local", "share", "comicdb", "comicdb.db")
	}
	db, err := storage.New(dbPath)
	if err != nil {
		return nil, nil, err
	}
	return db, storage.NewJobStore(db), nil
}

func parseTransforms(s string) ([]etl.TransformConfig, error) {
	if s == "" {
		return nil, nil
	}
	var transforms []etl.TransformConfig
	if err := json.Unmarshal([]byte(s), &transforms); err != nil {
		return nil, fmt.Errorf("parse transforms: %w", err)
	}
	return transforms, nil
}

func jobInputFromFlags(cmd *cobra.Command) (service.CreateJobInput, error) {
	name, _ := cmd.Flags().GetString("name")
	publisher, _ := cmd.Flags().GetString("publisher")
	collection, _ := cmd.Flags().GetString("collection")
	mode, _ := cmd.Flags().GetString("mode")
	dedupeKey, _ := cmd.Flags().GetString("dedupe-key")
	trigger, _ := cmd.Flags().GetString("trigger")
	triggerCfg, _ := cmd.Flags().GetString("trigger-config")
	transformsJSON, _ := cmd.Flags().GetString("transforms")

	transforms, err := parseTransforms(transformsJSON)
	if err != nil {
		return service.CreateJobInput{}, err
	}

	return service.CreateJobInput{
		Name:          name,
		SourceType:    "characters_csv",
		SourceConfig:  map[string]any{"publisher": publisher, "dataDir": dataDirFlag(cmd)},
		Transforms:    transforms,
		Collection:    collection,
		Mode:          mode,
		DedupeKey:     dedupeKey,
		TriggerType:   trigger,
		TriggerConfig: triggerCfg,
		Enabled:       true,
	}, nil
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

// ── Commands ───────────────────────────────────────────────

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Load a publisher's dataset into MongoDB",
	RunE: func(cmd *cobra.Command, args []string) error {
		publisher, _ := cmd.Flags().GetString("publisher")
		collection, _ := cmd.Flags().GetString("collection")
		mode, _ := cmd.Flags().GetString("mode")

		docs, err := openDocs()
		if err != nil {
			return err
		}
		defer docs.Close()

		engine := &etl.Engine{Dest: &etl.MongoWriter{Store: docs}}
		job := &etl.LoadJob{
			SourceType: "characters_csv",
			SourceCfg:  etl.SourceConfig{"publisher": publisher, "dataDir": dataDirFlag(cmd)},
			Collection: collection,
			Mode:       etl.SyncMode(mode),
		}

		result, err := engine.RunSync(cmd.Context(), job)
		if err != nil {
			return err
		}
		log.Printf("loaded %s: read=%d written=%d in %s", publisher, result.RowsRead, result.RowsWritten, result.Duration)
		return nil
	},
}

var previewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Preview the first records of a dataset without writing anything",
	RunE: func(cmd *cobra.Command, args []string) error {
		publisher, _ := cmd.Flags().GetString("publisher")
		rows, _ := cmd.Flags().GetInt("rows")

		engine := &etl.Engine{}
		cfg := etl.SourceConfig{"publisher": publisher, "dataDir": dataDirFlag(cmd)}
		records, schema, err := engine.Preview(cmd.Context(), "characters_csv", cfg, rows)
		if err != nil {
			return err
		}

		fmt.Printf("fields: %v\n", schema.FieldNames())
		for _, rec := range records {
			if err := printJSON(rec.Data); err != nil {
				return err
			}
		}
		return nil
	},
}

var findCmd = &cobra.Command{
	Use:   "find",
	Short: "Find documents matching a MongoDB filter",
	RunE: func(cmd *cobra.Command, args []string) error {
		collection, _ := cmd.Flags().GetString("collection")
		filter, _ := cmd.Flags().GetString("filter")
		limit, _ := cmd.Flags().GetInt64("limit")

		docs, err := openDocs()
		if err != nil {
			return err
		}
		defer docs.Close()

		found, err := service.NewQueryService(docs).Find(cmd.Context(), collection, filter, limit)
		if err != nil {
			return err
		}
		for _, doc := range found {
			if err := printJSON(doc); err != nil {
				return err
			}
		}
		return nil
	},
}

var findOneCmd = &cobra.Command{
	Use:   "find-one",
	Short: "Find the first document matching a MongoDB filter",
	RunE: func(cmd *cobra.Command, args []string) error {
		collection, _ := cmd.Flags().GetString("collection")
		filter, _ := cmd.Flags().GetString("filter")

		docs, err := openDocs()
		if err != nil {
			return err
		}
		defer docs.Close()

		doc, err := service.NewQueryService(docs).FindOne(cmd.Context(), collection, filter)
		if err != nil {
			return err
		}
		if doc == nil {
			fmt.Println("no match")
			return nil
		}
		return printJSON(doc)
	},
}

var countCmd = &cobra.Command{
	Use:   "count",
	Short: "Count documents matching a MongoDB filter",
	RunE: func(cmd *cobra.Command, args []string) error {
		collection, _ := cmd.Flags().GetString("collection")
		filter, _ := cmd.Flags().GetString("filter")

		docs, err := openDocs()
		if err != nil {
			return err
		}
		defer docs.Close()

		n, err := service.NewQueryService(docs).Count(cmd.Context(), collection, filter)
		if err != nil {
			return err
		}
		fmt.Println(n)
		return nil
	},
}

var insertCmd = &cobra.Command{
	Use:   "insert",
	Short: "Insert a single document",
	RunE: func(cmd *cobra.Command, args []string) error {
		collection, _ := cmd.Flags().GetString("collection")
		doc, _ := cmd.Flags().GetString("doc")

		docs, err := openDocs()
		if err != nil {
			return err
		}
		defer docs.Close()

		return service.NewQueryService(docs).Insert(cmd.Context(), collection, doc)
	},
}

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "List saved load jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, store, err := openJobStore()
		if err != nil {
			return err
		}
		defer db.Close()

		jobs, err := store.ListJobs()
		if err != nil {
			return err
		}
		return printJSON(jobs)
	},
}

var createJobCmd = &cobra.Command{
	Use:   "create-job",
	Short: "Create a persisted load job",
	RunE: func(cmd *cobra.Command, args []string) error {
		input, err := jobInputFromFlags(cmd)
		if err != nil {
			return err
		}

		db, store, err := openJobStore()
		if err != nil {
			return err
		}
		defer db.Close()

		docs, err := openDocs()
		if err != nil {
			return err
		}
		defer docs.Close()

		svc := service.NewLoadService(store, docs, service.LogEmitter{})
		defer svc.Stop()

		job, err := svc.CreateJob(cmd.Context(), input)
		if err != nil {
			return err
		}
		return printJSON(job)
	},
}

var updateJobCmd = &cobra.Command{
	Use:   "update-job",
	Short: "Replace a load job's definition",
	RunE: func(cmd *cobra.Command, args []string) error {
		id, _ := cmd.Flags().GetString("id")
		input, err := jobInputFromFlags(cmd)
		if err != nil {
			return err
		}

		db, store, err := openJobStore()
		if err != nil {
			return err
		}
		defer db.Close()

		docs, err := openDocs()
		if err != nil {
			return err
		}
		defer docs.Close()

		svc := service.NewLoadService(store, docs, service.LogEmitter{})
		defer svc.Stop()

		job, err := svc.UpdateJob(cmd.Context(), id, input)
		if err != nil {
			return err
		}
		return printJSON(job)
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute a load job by ID",
	RunE: func(cmd *cobra.Command, args []string) error {
		id, _ := cmd.Flags().GetString("id")

		db, store, err := openJobStore()
		if err != nil {
			return err
		}
		defer db.Close()

		docs, err := openDocs()
		if err != nil {
			return err
		}
		defer docs.Close()

		svc := service.NewLoadService(store, docs, service.LogEmitter{})
		defer svc.Stop()

		result, err := svc.RunJob(cmd.Context(), id)
		if err != nil {
			return err
		}
		return printJSON(result)
	},
}

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "List recent run logs for a load job",
	RunE: func(cmd *cobra.Command, args []string) error {
		id, _ := cmd.Flags().GetString("id")

		db, store, err := openJobStore()
		if err != nil {
			return err
		}
		defer db.Close()

		logs, err := store.ListRunLogs(id, 50)
		if err != nil {
			return err
		}
		return printJSON(logs)
	},
}

// watchCmd starts the cron and file-watch triggers and blocks until
// interrupted. Running jobs get a grace period to finish on shutdown.
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run scheduled and file-watch triggered jobs until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, store, err := openJobStore()
		if err != nil {
			return err
		}
		defer db.Close()

		docs, err := openDocs()
		if err != nil {
			return err
		}
		defer docs.Close()

		svc := service.NewLoadService(store, docs, service.LogEmitter{})
		svc.RestartWatchers(cmd.Context())
		defer svc.Stop()

		log.Println("watching for triggers, ctrl-c to stop")
		<-cmd.Context().Done()

		waitCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		svc.WaitRunning(waitCtx)
		return nil
	},
}

// mcpCmd runs comicdb as a standalone MCP server on stdin/stdout.
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve load and query tools over MCP on stdio",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, store, err := openJobStore()
		if err != nil {
			return err
		}
		defer db.Close()

		docs, err := openDocs()
		if err != nil {
			return err
		}
		defer docs.Close()

		loads := service.NewLoadService(store, docs, service.NoopEmitter{})
		defer loads.Stop()

		srv := mcpserver.New(mcpserver.Deps{
			Loads:   loads,
			Queries: service.NewQueryService(docs),
		})
		return srv.ServeStdio()
	},
}
