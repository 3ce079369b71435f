package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"booking-search-platform/internal/config"
	"booking-search-platform/internal/search"
)

// Creates (or rebuilds) the search index definitions against the store.
// Run once before first deploy, or with -rebuild after a schema change.
func main() {
	rebuild := flag.Bool("rebuild", false, "drop existing index definitions before creating them")
	dropDocs := flag.Bool("drop-docs", false, "with -rebuild, also delete the indexed documents")
	flag.Parse()

	if *dropDocs && !*rebuild {
		log.Fatal("-drop-docs requires -rebuild")
	}

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	redisOpts, err := config.RedisOptions(cfg)
	if err != nil {
		log.Fatalf("Invalid Redis configuration: %v", err)
	}

	conn := search.NewManager(redisOpts, search.DefaultPolicy())
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	rdb, err := conn.Connect(ctx)
	if err != nil {
		log.Fatalf("Failed to connect to search store: %v", err)
	}

	if *rebuild {
		fmt.Println("Dropping existing index definitions...")
		if err := search.DropIndexes(ctx, rdb, *dropDocs); err != nil {
			log.Fatalf("Failed to drop indexes: %v", err)
		}
	}

	fmt.Println("Creating search index definitions...")
	if err := search.EnsureIndexes(ctx, rdb); err != nil {
		log.Fatalf("Failed to create indexes: %v", err)
	}

	fmt.Printf("Indexes ready: %s, %s\n", search.UnitIndexName, search.ScheduleIndexName)
	if *rebuild {
		fmt.Println("Definitions were rebuilt; enqueue a full reindex via POST /admin/index/rebuild to repopulate documents.")
	}
}
