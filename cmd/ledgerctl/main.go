package main

import (
	"bufio"
	"context"
	"flag"
	"log"
	"os"

	"github.com/vi13x/coinbot/internal/app"
	"github.com/vi13x/coinbot/internal/boost"
	"github.com/vi13x/coinbot/internal/cli"
	"github.com/vi13x/coinbot/internal/config"
	"github.com/vi13x/coinbot/internal/service"
)

func main() {
	reports := flag.String("reports", "reports", "directory for CSV exports")
	backups := flag.String("backups", "backups", "directory for ledger backups")
	flag.Parse()

	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	ctx := context.Background()
	store, err := app.OpenStore(ctx, cfg)
	if err != nil {
		log.Fatalf("open %s store: %v", cfg.DBDriver, err)
	}
	defer store.Close()

	bank := service.NewBank(store, boost.NewTable())
	cli.NewUI(bank, bufio.NewReader(os.Stdin), os.Stdout, *reports, *backups).Run(ctx)
}
