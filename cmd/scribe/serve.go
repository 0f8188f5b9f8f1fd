package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/FocuswithJustin/Scribe/core/sqlite"
	"github.com/FocuswithJustin/Scribe/internal/api"
	"github.com/FocuswithJustin/Scribe/internal/cache"
	"github.com/FocuswithJustin/Scribe/internal/logging"
)

// ServeCmd starts the API server.
type ServeCmd struct {
	Addr      string `short:"a" help:"Listen address (default from config)"`
	CachePath string `name:"cache" help:"bbolt file that persists parse results" type:"path"`
}

func (c *ServeCmd) Run(e *env) error {
	if c.Addr != "" {
		e.cfg.Server.Addr = c.Addr
	}
	if c.CachePath != "" {
		e.cfg.Server.CachePath = c.CachePath
	}
	s := e.cfg.Server

	var disk *cache.Store
	if s.CachePath != "" {
		var err error
		if disk, err = cache.OpenStore(s.CachePath); err != nil {
			return err
		}
		if n, err := disk.Prune(); err != nil {
			logging.Warn("cache_prune_failed", "path", s.CachePath, "error", err)
		} else if n > 0 {
			logging.Info("cache_pruned", "path", s.CachePath, "removed", n)
		}
	}
	results := cache.NewResultCache(s.CacheTTL, s.CacheSize, disk)
	defer results.Close()

	srv, err := api.New(api.FromConfig(e.cfg, version), results)
	if err != nil {
		return err
	}
	defer srv.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return srv.Run(ctx)
}

func sqliteDriver() string {
	info := sqlite.GetInfo()
	return info.DriverType + " (" + info.Package + ")"
}
