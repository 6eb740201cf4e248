package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/skridlevsky/interest-dash/internal/api"
	"github.com/skridlevsky/interest-dash/internal/cache"
	"github.com/skridlevsky/interest-dash/internal/config"
	"github.com/skridlevsky/interest-dash/internal/db"
	"github.com/skridlevsky/interest-dash/internal/interest"
	"github.com/skridlevsky/interest-dash/internal/jira"
)

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	// Create context for services
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize cache backend
	store, database, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to open %s cache: %v", cfg.CacheBackend, err)
	}
	// NOTE: store and database are closed explicitly in the shutdown sequence below
	log.Printf("Cache backend: %s (ttl %s)", cfg.CacheBackend, cfg.CacheTTL)

	if pg, ok := store.(*cache.Postgres); ok {
		go purgeExpired(ctx, pg, cfg.CacheTTL)
	}

	// Initialize tracker client and report pipeline
	jiraClient := jira.NewClient(cfg.JiraURL, cfg.JiraUser, cfg.JiraPassword, jira.Options{
		Timeout:           cfg.JiraTimeout,
		RequestsPerSecond: cfg.JiraRateLimit,
		Concurrency:       cfg.JiraConcurrency,
	})
	aggregator := interest.NewAggregator(jiraClient)
	reports := interest.NewCachedAggregator(aggregator, cache.NewMemoizer(store, cfg.CacheTTL))

	// Create router
	routerResult := api.NewRouter(&api.RouterConfig{
		SiteRoot: cfg.SiteRoot,
		Cache:    store,
		Reports:  reports,
		Query: interest.Query{
			BaseURL:          jiraClient.BaseURL(),
			JQL:              cfg.JiraJQL,
			IncludeReporters: cfg.IncludeReporters,
			IncludeTotals:    cfg.ShowTotals,
			IncludeConflicts: cfg.ShowConflicts,
		},
		Title:       cfg.Title,
		CORSOrigins: cfg.CORSOrigins,
		Development: cfg.Development(),
	})

	// Create server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      routerResult.Router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // Must exceed the dashboard's 45s report timeout
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Starting server on :%s%s", cfg.Port, cfg.SiteRoot)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	// Stop rate limiter cleanup goroutines
	log.Println("Stopping rate limiters...")
	routerResult.RateLimiters.Stop()

	// Cancel context to stop all services
	cancel()

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Closing cache...")
	if err := store.Close(); err != nil {
		log.Printf("Cache close error: %v", err)
	}
	if database != nil {
		log.Println("Closing database connection...")
		database.Close()
	}

	log.Println("Server exited")
}

// openStore connects the configured cache backend. The database is only
// returned for the postgres backend.
func openStore(ctx context.Context, cfg *config.Config) (cache.Store, *db.Postgres, error) {
	switch cfg.CacheBackend {
	case config.CacheRedis:
		store, err := cache.NewRedis(cfg.RedisURL, cfg.CacheKeyPrefix)
		if err != nil {
			return nil, nil, err
		}
		return store, nil, nil

	case config.CachePostgres:
		database, err := db.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return cache.NewPostgres(database.Pool(), cfg.CacheKeyPrefix), database, nil

	default:
		return cache.NewMemory(time.Minute), nil, nil
	}
}

// purgeExpired deletes expired cache rows once per TTL until ctx is done
func purgeExpired(ctx context.Context, store *cache.Postgres, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			n, err := store.Purge(ctx)
			if err != nil {
				log.Printf("Cache purge failed: %v", err)
				continue
			}
			if n > 0 {
				log.Printf("Purged %d expired cache entries", n)
			}
		case <-ctx.Done():
			return
		}
	}
}
