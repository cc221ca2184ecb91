package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/sync/errgroup"

	"github.com/vi13x/coinbot/bot"
	"github.com/vi13x/coinbot/internal/app"
	"github.com/vi13x/coinbot/internal/audit"
	"github.com/vi13x/coinbot/internal/boost"
	"github.com/vi13x/coinbot/internal/command"
	"github.com/vi13x/coinbot/internal/config"
	"github.com/vi13x/coinbot/internal/cooldown"
	"github.com/vi13x/coinbot/internal/health"
	"github.com/vi13x/coinbot/internal/service"
	"github.com/vi13x/coinbot/internal/shop"
)

func main() {
	logger := log.New(os.Stdout, "[coinbot] ", log.LstdFlags|log.Lmicroseconds)

	cfg, err := config.NewConfig()
	if err != nil {
		logger.Fatalf("config: %v", err)
	}
	if cfg.Token == "" {
		logger.Fatal("TOKEN is required")
	}
	tune, err := config.LoadEconomy(cfg.EconomyFile)
	if err != nil {
		logger.Fatalf("economy: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := app.OpenStore(ctx, cfg)
	if err != nil {
		logger.Fatalf("open %s store: %v", cfg.DBDriver, err)
	}
	defer store.Close()

	bank := service.NewBank(store, boost.NewTable(), service.WithScaledDebits(tune.ScaleDebits))
	econ := service.NewEconomy(
		bank,
		tune,
		cooldown.NewTracker(),
		shop.NewCatalog(tune.Shop),
		shop.DirSource{Root: cfg.ShopDir, Ext: tune.PayloadExt},
		service.SystemRand(),
	)

	api, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		logger.Fatalf("telegram: %v", err)
	}
	api.Debug = cfg.Debug
	logger.Printf("authorized as @%s", api.Self.UserName)

	tg := bot.New(api, api.Self.ID, bank, cfg.LogChat, logger)

	var archive *audit.Archive
	if strings.TrimSpace(cfg.AuditDir) != "" {
		archive = audit.NewArchive(cfg.AuditDir, "audit")
	}
	auditor := audit.New(tg, archive, logger)
	defer func() {
		if err := auditor.Close(); err != nil {
			logger.Printf("audit close: %v", err)
		}
	}()

	interp := command.New(econ, tg, auditor, command.Options{
		Prefix:  cfg.Prefix,
		Admins:  cfg.Admins,
		BotName: api.Self.UserName,
		Logger:  logger,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return health.Serve(gctx, cfg.Port, logger) })
	g.Go(func() error {
		// updates closing ends the process, health included
		defer stop()
		return tg.Run(gctx, interp)
	})

	logger.Printf("Bot is running (prefix %q, %d shop items, %s store)", cfg.Prefix, len(tune.Shop), cfg.DBDriver)
	if err := g.Wait(); err != nil {
		logger.Printf("stopped: %v", err)
	}
}
