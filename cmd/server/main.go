package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ventasvoz/internal/cache"
	"ventasvoz/internal/config"
	"ventasvoz/internal/engine"
	"ventasvoz/internal/httpapi"
	"ventasvoz/internal/oracle"
	"ventasvoz/internal/store"
	"ventasvoz/internal/store/memory"
	pgstore "ventasvoz/internal/store/postgres"
)

func main() {
	cfg := config.Load()
	if err := validateSecurityConfig(cfg); err != nil {
		log.Fatalf("invalid security configuration: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var repo store.Repository
	closers := make([]func() error, 0, 2)

	if cfg.DatabaseURL != "" {
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("postgres unavailable (%v) and DATABASE_URL is set; refusing to start with in-memory fallback", err)
		}
		repo = pg
		closers = append(closers, pg.Close)
		log.Println("repository: postgres")
	} else {
		repo = memory.NewSeeded()
		log.Println("repository: in-memory")
	}

	snapshots := cache.CatalogCache(cache.NoopCatalogCache{})
	if cfg.RedisAddr != "" {
		redisCache := cache.NewRedisCatalogCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisCache.Ping(ctx); err != nil {
			log.Printf("redis unavailable (%v), using noop cache", err)
		} else {
			snapshots = redisCache
			closers = append(closers, redisCache.Close)
			log.Println("cache: redis")
		}
	} else {
		log.Println("cache: noop")
	}

	extractor, err := buildExtractor(cfg)
	if err != nil {
		log.Fatalf("oracle configuration: %v", err)
	}
	log.Printf("oracle: %s (%s)", cfg.OracleProvider, extractor.Model())

	eng := engine.New(
		repo,
		extractor,
		snapshots,
		time.Duration(cfg.CatalogCacheTTLSeconds)*time.Second,
		time.Duration(cfg.DisambiguationTTLSeconds)*time.Second,
	)
	auth := httpapi.NewAuthManager(cfg.AuthSecret, time.Duration(cfg.AccessTokenTTLMinutes)*time.Minute, repo)
	api := httpapi.New(eng, auth, cfg.AllowedOrigin)

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("voice sales backend listening on %s", cfg.Address())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			log.Printf("close error: %v", err)
		}
	}

	log.Println("server stopped")
}

func buildExtractor(cfg config.Config) (oracle.Extractor, error) {
	switch cfg.OracleProvider {
	case "openai":
		return oracle.NewOpenAIExtractor(cfg.OpenAIModel, cfg.OpenAIAPIKey)
	case "mock":
		return oracle.NewMockExtractor(cfg.OpenAIModel), nil
	default:
		return nil, fmt.Errorf("unknown ORACLE_PROVIDER %q (want openai or mock)", cfg.OracleProvider)
	}
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	if cfg.OracleProvider == "openai" && cfg.OpenAIAPIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY must be set when ORACLE_PROVIDER is openai")
	}
	return nil
}
