package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/yoockh/legalmatch/config"
	"github.com/yoockh/legalmatch/internal/logger"
	"github.com/yoockh/legalmatch/internal/metrics"
	mongorepo "github.com/yoockh/legalmatch/internal/repositories/mongo"
	pgrepo "github.com/yoockh/legalmatch/internal/repositories/postgres"
	"github.com/yoockh/legalmatch/internal/searchclient"
	"github.com/yoockh/legalmatch/internal/services"
)

var log *logrus.Logger

func main() {
	_ = godotenv.Load()

	app := &cli.App{
		Name:  "legalmatch-indexer",
		Usage: "Embed lawyer profiles and inspect the search index",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				EnvVars: []string{"LOG_LEVEL"},
				Value:   "info",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "Embed every profile that has no search embedding",
				Action: runCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "concurrency",
						Usage: "Profiles embedded in parallel (default INDEXER_CONCURRENCY)",
					},
				},
			},
			{
				Name:   "status",
				Usage:  "Count profiles missing an embedding or embedded by another model",
				Action: statusCommand,
			},
			{
				Name:   "runs",
				Usage:  "List recent index run reports",
				Action: runsCommand,
				Flags: []cli.Flag{
					&cli.Int64Flag{
						Name:  "limit",
						Usage: "Number of reports",
						Value: 20,
					},
				},
			},
			{
				Name:      "search",
				Usage:     "Query a running search endpoint",
				ArgsUsage: "<query>",
				Action:    searchCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "url",
						Usage:   "Base URL of the API",
						EnvVars: []string{"SEARCH_BASE_URL"},
						Value:   "http://localhost:8080",
					},
					&cli.StringFlag{
						Name:    "api-key",
						Usage:   "Bearer key sent with the request",
						EnvVars: []string{"SEARCH_API_KEY"},
					},
					&cli.IntFlag{
						Name:  "limit",
						Value: searchclient.DefaultLimit,
					},
					&cli.Float64Flag{
						Name:  "threshold",
						Usage: "Minimum similarity, 0 keeps every match",
						Value: searchclient.DefaultThreshold,
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func setupLogger(c *cli.Context) error {
	log = logger.New()
	lvl, err := logrus.ParseLevel(c.String("log-level"))
	if err != nil {
		return fmt.Errorf("invalid log level %q", c.String("log-level"))
	}
	log.SetLevel(lvl)
	return nil
}

// indexer opens the stores the indexer needs. Mongo is optional.
func indexer(ctx context.Context, concurrency int) (services.IndexerService, func(), error) {
	settings, err := config.LoadSettings()
	if err != nil {
		return nil, nil, err
	}
	if concurrency <= 0 {
		concurrency = settings.Indexer.Concurrency
	}
	if err := config.InitPostgres(); err != nil {
		return nil, nil, fmt.Errorf("postgres: %w", err)
	}

	var runs mongorepo.IndexRunRepository
	switch err := config.InitMongo(); {
	case errors.Is(err, config.ErrMongoDisabled):
		log.Debug("MONGO_URI not set; run report is only logged")
	case err != nil:
		return nil, nil, fmt.Errorf("mongo: %w", err)
	default:
		runs = mongorepo.NewIndexRunRepo(config.MongoDatabase())
	}

	provider, closeProvider, err := config.NewEmbeddingProvider(ctx, settings.Embedding)
	if err != nil {
		return nil, nil, err
	}

	svc, err := services.NewIndexerService(pgrepo.NewProfileRepo(config.PostgresDB), provider, runs, concurrency, logger.Component(log, "indexer"))
	if err != nil {
		_ = closeProvider()
		return nil, nil, err
	}
	return svc, func() {
		svc.Close()
		_ = closeProvider()
		if config.MongoClient != nil {
			_ = config.MongoClient.Disconnect(context.Background())
		}
		if sqlDB, err := config.PostgresDB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}, nil
}

func runCommand(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics.Register()
	svc, closeAll, err := indexer(ctx, c.Int("concurrency"))
	if err != nil {
		return err
	}
	defer closeAll()

	if err := config.EnsurePostgresSchema(ctx); err != nil {
		return err
	}

	run, err := svc.Run(ctx, services.TriggerCLI)
	if err != nil {
		return err
	}
	fmt.Printf("%s (run %s, model %s): %d succeeded, %d failed, %d skipped\n",
		run.Message(), run.RunID, run.Model, run.Succeeded, run.Failed, run.Skipped)
	for _, id := range run.FailedIDs() {
		fmt.Println("failed:", id)
	}
	if run.Failed > 0 {
		return cli.Exit("some profiles were not embedded", 2)
	}
	return nil
}

func statusCommand(c *cli.Context) error {
	svc, closeAll, err := indexer(c.Context, 1)
	if err != nil {
		return err
	}
	defer closeAll()

	st, err := svc.Status(c.Context)
	if err != nil {
		return err
	}
	return printJSON(st)
}

func runsCommand(c *cli.Context) error {
	svc, closeAll, err := indexer(c.Context, 1)
	if err != nil {
		return err
	}
	defer closeAll()

	runs, err := svc.Runs(c.Context, c.Int64("limit"))
	if err != nil {
		return err
	}
	for _, r := range runs {
		fmt.Printf("%s  %-8s  %-40s  scanned=%d ok=%d failed=%d skipped=%d\n",
			r.StartedAt.Format("2006-01-02 15:04:05"), r.Trigger, r.Model, r.Scanned, r.Succeeded, r.Failed, r.Skipped)
	}
	return nil
}

func searchCommand(c *cli.Context) error {
	if c.NArg() == 0 {
		return cli.Exit("usage: search <query>", 1)
	}
	threshold := c.Float64("threshold")
	if threshold < 0 || threshold > 1 {
		return cli.Exit("threshold must be between 0 and 1", 1)
	}

	client := searchclient.New(
		searchclient.NewHTTPSearcher(c.String("url"), c.String("api-key"), nil),
		searchclient.Options{
			Enabled:   true,
			Limit:     c.Int("limit"),
			Threshold: &threshold,
			Notifier: searchclient.NotifierFunc(func(msg string, kind searchclient.Kind) {
				fmt.Fprintf(os.Stderr, "%s: %s\n", kind, msg)
			}),
		},
	)
	if err := client.Search(c.Context, strings.Join(c.Args().Slice(), " "), 0); err != nil {
		return cli.Exit("", 1)
	}

	st := client.State()
	if st.Phase() == searchclient.PhaseEmpty {
		fmt.Println("no matching lawyers")
		return nil
	}
	for _, r := range st.Results {
		fmt.Printf("%.3f  %-30s  %s\n", r.Similarity, r.FullName, r.FirmName)
	}
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
