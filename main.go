package main

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api"
	_ "github.com/mattn/go-sqlite3"
)

const sweepInterval = time.Minute

func main() {
	cfg, err := LoadConfig()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	api, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		logger.Error("failed to connect to Telegram", "error", err)
		os.Exit(1)
	}
	api.Debug = cfg.BotDebug
	logger.Info("authorized", "account", api.Self.UserName)

	db, err := sql.Open("sqlite3", cfg.DatabasePath)
	if err != nil {
		logger.Error("failed to open database", "path", cfg.DatabasePath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo := NewSQLiteRepository(db)
	initCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	err = repo.CreateTables(initCtx)
	cancel()
	if err != nil {
		logger.Error("failed to initialize schema", "error", err)
		os.Exit(1)
	}

	roles, err := NewRoleRegistry(cfg.AdminsFile, cfg.SuperAdminsFile, cfg.SuperAdminUsers)
	if err != nil {
		logger.Error("failed to load roles", "error", err)
		os.Exit(1)
	}

	clock := NewSystemClock()
	sessions := NewSessionStore(clock, cfg.SessionTTL)
	bot := NewBot(api, api.Self.UserName, repo, roles, sessions, clock, logger)

	if cfg.SessionTTL > 0 {
		go sweepSessions(ctx, sessions, logger)
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates, err := api.GetUpdatesChan(u)
	if err != nil {
		logger.Error("failed to start polling", "error", err)
		os.Exit(1)
	}

	go func() {
		<-ctx.Done()
		logger.Info("shutting down")
		api.StopReceivingUpdates()
	}()

	// Updates are handled one at a time.
	for {
		select {
		case <-ctx.Done():
			return
		case update := <-updates:
			bot.HandleUpdate(ctx, update)
		}
	}
}

// sweepSessions periodically drops dialogs that have been idle past their TTL.
func sweepSessions(ctx context.Context, sessions *SessionStore, logger *slog.Logger) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := sessions.Sweep(); n > 0 {
				logger.Info("expired idle sessions", "count", n)
			}
		}
	}
}
