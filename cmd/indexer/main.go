// Command indexer builds the persistent vector collection served by the RAG
// API. It reads .md, .txt and .pdf files from a directory and can keep
// watching it for changes.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/DeadBoTt-exe/Document-RAG/config"
	"github.com/DeadBoTt-exe/Document-RAG/services"
)

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_FILE"), "optional YAML config file")
	dir := flag.String("dir", "", "directory to index (defaults to DOCS_DIR)")
	watch := flag.Bool("watch", false, "keep re-indexing files as they change")
	recreate := flag.Bool("recreate", false, "drop and recreate the collection before indexing")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}
	config.ConfigureLogging(cfg)
	if *dir == "" {
		*dir = cfg.DocsDir
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine, err := services.NewIndexingEngine(ctx, cfg, *recreate)
	if err != nil {
		log.Fatalf("FATAL: Failed to prepare %s collection %q: %v", cfg.Index.Backend, cfg.Index.Collection, err)
	}
	defer engine.Close()

	n, err := engine.Indexer.ScanAndIndexDirectory(ctx, *dir)
	if err != nil {
		log.Errorf("INDEXER: indexing %s stopped after %d passages: %v", *dir, n, err)
		engine.Close()
		os.Exit(1)
	}
	total, err := engine.Index.Count(ctx)
	if err != nil {
		log.Warnf("INDEXER: could not count collection: %v", err)
	}
	log.WithFields(log.Fields{
		"written":    n,
		"collection": cfg.Index.Collection,
		"total":      total,
	}).Info("INDEXER: Indexing complete")

	if !*watch {
		return
	}
	if err := engine.Indexer.WatchDirectory(ctx, *dir); err != nil {
		log.Errorf("INDEXER: watcher stopped: %v", err)
	}
}
