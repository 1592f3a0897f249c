package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	_ "github.com/mattn/go-sqlite3"

	"github.com/metrolist/metrobot/internal/cache"
	"github.com/metrolist/metrobot/internal/config"
	"github.com/metrolist/metrobot/internal/handlers"
	"github.com/metrolist/metrobot/internal/keepalive"
	"github.com/metrolist/metrobot/internal/repository"
	"github.com/metrolist/metrobot/internal/resolver"
)

func main() {
	// .env is optional, real env vars win
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}
	db, err := repository.OpenDB(cfg)
	if err != nil {
		log.Fatal(err)
	}
	repo := repository.NewRepo(db)
	fc := cache.NewFileCache(cfg, repo)
	res := resolver.New(cfg, fc)
	bot := handlers.NewBot(cfg, repo, res)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if cfg.EnableKeepAlive {
		ka := keepalive.New(cfg.KeepAlivePort)
		go func() {
			if err := ka.Run(ctx); err != nil {
				slog.Error("keepalive server", "err", err)
			}
		}()
	}

	if err := bot.Run(ctx); err != nil {
		log.Fatal(err)
	}
}
