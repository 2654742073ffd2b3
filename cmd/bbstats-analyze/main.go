// bbstats-analyze runs the forum archive analytics pipeline: it scans every
// post's BBCode for quote and link facts, upserts them into the raw fact
// tables, and bakes the derived aggregate tables.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/google/uuid"

	"github.com/scrypster/bbstats/internal/analyze"
	"github.com/scrypster/bbstats/internal/checkpoint"
	"github.com/scrypster/bbstats/internal/config"
	"github.com/scrypster/bbstats/internal/indexer"
	"github.com/scrypster/bbstats/internal/pipeline"
	"github.com/scrypster/bbstats/internal/sink"
	"github.com/scrypster/bbstats/internal/storage/postgres"
	"github.com/scrypster/bbstats/internal/universe"
	"github.com/scrypster/bbstats/pkg/types"
)

func main() {
	var (
		skipPosts  = flag.Bool("skip-posts", false, "skip the post analysis pass and run only the aggregation bakers")
		stateFile  = flag.String("state-file", "", "checkpoint database path (overrides config)")
		workers    = flag.Int("workers", 0, "number of partition workers (overrides config)")
		configPath = flag.String("config", "", "YAML config file path")
	)
	flag.Parse()

	if err := run(*skipPosts, *stateFile, *workers, *configPath); err != nil {
		log.Fatalf("bbstats-analyze: %v", err)
	}
}

func run(skipPosts bool, stateFile string, workers int, configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if stateFile != "" {
		cfg.Analysis.StateFile = stateFile
	}
	if workers > 0 {
		cfg.Analysis.Workers = workers
	}

	ctx := context.Background()

	store, err := postgres.NewStore(cfg.Database.DSN)
	if err != nil {
		return err
	}
	defer store.Close()

	if !skipPosts {
		if err := analyzePosts(ctx, cfg, store); err != nil {
			return err
		}
	}

	baker := postgres.NewBaker(store.DB(), postgres.BakerConfig{
		MinQuoteRelationCount: int64(cfg.Baking.MinQuoteRelationCount),
		MinLinkRelationCount:  int64(cfg.Baking.MinLinkRelationCount),
		TopThreadCount:        cfg.Baking.TopThreadCount,
	})
	if err := baker.BakeAll(ctx); err != nil {
		return err
	}
	fmt.Println("baking: all aggregate tables rebuilt")
	return nil
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadConfigFile(path)
	}
	return config.LoadConfig()
}

// analyzePosts runs the checkpointed fan-out pass over all posts.
func analyzePosts(ctx context.Context, cfg *config.Config, store *postgres.Store) error {
	// A corrupt state file must fail the run before any worker starts.
	ck, err := checkpoint.Open(cfg.Analysis.StateFile)
	if err != nil {
		return err
	}
	defer ck.Close()

	lastPID, hasCheckpoint, err := ck.LastProcessedPID()
	if err != nil {
		return err
	}
	if hasCheckpoint {
		log.Printf("resuming after post %d (state file %s)", lastPID, cfg.Analysis.StateFile)
	}

	pids, err := store.PostIDs(ctx)
	if err != nil {
		return err
	}
	u, err := universe.FromIDs(pids)
	if err != nil {
		return err
	}

	runID := uuid.NewString()
	ix := indexer.New(indexer.Config{
		URL:       cfg.Indexer.URL,
		QueueSize: cfg.Indexer.QueueSize,
		RateLimit: cfg.Indexer.RateLimit,
	}, runID)

	driver := pipeline.NewDriver(pipeline.Config{
		Workers:       cfg.Analysis.Workers,
		ProgressLabel: "Analyzing posts",
		RunID:         runID,
	}, processPartition(cfg, u, ix))

	res, err := driver.Run(ctx, u, lastPID, hasCheckpoint)
	ix.Close()
	if err != nil {
		return err
	}

	if res.MaxPID > 0 {
		if err := ck.SetLastProcessedPID(res.MaxPID); err != nil {
			return err
		}
	}
	fmt.Printf("analysis: %d posts processed across %d partitions (run %s)\n",
		res.PostsProcessed, res.Partitions, res.RunID)
	return nil
}

// processPartition builds the per-partition worker body. Every invocation
// opens its own store and sink; the shared universe is read-only.
func processPartition(cfg *config.Config, u *universe.Universe, ix *indexer.Indexer) pipeline.ProcessFunc {
	return func(ctx context.Context, part pipeline.Partition, report func(int64)) error {
		store, err := postgres.NewStore(cfg.Database.DSN)
		if err != nil {
			return err
		}
		defer store.Close()

		snk := sink.New(store, cfg.Analysis.BatchSize)
		an := analyze.New(u, snk, analyze.Config{
			ForumBaseURL:  cfg.Analysis.ForumBaseURL,
			BoardBasePath: cfg.Analysis.BoardBasePath,
			URLMaxLength:  cfg.Analysis.URLMaxLength,
		})

		interval := int64(cfg.Analysis.ProgressInterval)
		if interval < 1 {
			interval = 1
		}

		var pending int64
		err = store.ScanPosts(ctx, part.Lo, part.Hi, func(p *types.Post) error {
			an.AnalyzePost(p)
			if err := snk.Err(); err != nil {
				return err
			}
			ix.Enqueue(indexer.Document{
				PID:       p.PID,
				TID:       p.TID,
				PosterUID: p.PosterUID,
				Timestamp: p.Timestamp.Unix(),
				Title:     p.Title,
				Content:   p.Content,
			})
			pending++
			if pending >= interval {
				report(pending)
				pending = 0
			}
			return nil
		})
		if err != nil {
			return err
		}
		if err := snk.Flush(ctx); err != nil {
			return err
		}
		if pending > 0 {
			report(pending)
		}
		return nil
	}
}

// usage override keeps --help output on one screen.
func init() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: bbstats-analyze [flags]\n\n")
		fmt.Fprintf(os.Stderr, "Analyzes forum posts into quote/link facts and bakes aggregate tables.\n\n")
		flag.PrintDefaults()
	}
}
