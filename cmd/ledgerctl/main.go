// ledgerctl is the operator console for the token ledger: seeding users and
// leads, top-ups, balance audits and dev tokens.
//
//	ledgerctl -d postgres://... credit -user alice -amount 10 -reason invoice-42
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/leadkeeper/internal/admin"
	"github.com/dmitrijs2005/leadkeeper/internal/logging"
	"github.com/dmitrijs2005/leadkeeper/internal/server"
	"github.com/dmitrijs2005/leadkeeper/internal/server/config"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.LoadConfig()
	logger := logging.NewJSONLogger(os.Stderr, cfg.LogLevel)

	manager, closeStore, err := server.OpenStore(ctx, cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer func() { _ = closeStore() }()

	if err := manager.RunMigrations(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	console := admin.NewConsole(manager, cfg, os.Stdout, logger)
	if err := console.Run(ctx, admin.CommandArgs(os.Args[1:])); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if errors.Is(err, admin.ErrAuditMismatch) {
			return 2
		}
		return 1
	}
	return 0
}
