// Copyright (c) 2026 The Findora Network developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/mattn/go-isatty"
	cli "gopkg.in/urfave/cli.v1"

	"github.com/findoranetwork/stakingd/api"
	"github.com/findoranetwork/stakingd/genesis"
	"github.com/findoranetwork/stakingd/kv"
	"github.com/findoranetwork/stakingd/ledger"
	"github.com/findoranetwork/stakingd/log"
	"github.com/findoranetwork/stakingd/metrics"
	"github.com/findoranetwork/stakingd/node"
)

var (
	version   string
	gitCommit string
)

func fullVersion() string {
	if gitCommit == "" {
		return version + "-dev"
	}
	return fmt.Sprintf("%s-%.8s", version, gitCommit)
}

func main() {
	app := cli.App{
		Version: fullVersion(),
		Name:    "stakingd",
		Usage:   "Findora staking core node",
		Flags: []cli.Flag{
			dataDirFlag,
			configFlag,
			genesisFlag,
			apiAddrFlag,
			metricsAddrFlag,
			verbosityFlag,
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}

	initLogger(cfg.Verbosity)

	if cfg.MetricsAddr != "" {
		metrics.InitializePrometheusMetrics()
		go func() {
			server := &http.Server{Addr: cfg.MetricsAddr, Handler: metrics.HTTPHandler()}
			if err := server.ListenAndServe(); err != http.ErrServerClosed {
				log.Warn("metrics server stopped", "err", err)
			}
		}()
		log.Info("metrics enabled", "addr", cfg.MetricsAddr)
	}

	gen, err := genesis.Load(cfg.Genesis)
	if err != nil {
		return err
	}

	db, err := kv.New(cfg.DataDir, kv.Options{})
	if err != nil {
		return err
	}
	defer db.Close()

	// the UTXO ledger is an external collaborator; the embedded node shell
	// records payouts in memory
	led := ledger.NewMem()

	n, err := node.New(db, led, gen.Height, gen.Build())
	if err != nil {
		return err
	}

	apiSrv := &http.Server{Addr: cfg.APIAddr, Handler: api.New(n, true)}
	go func() {
		if err := apiSrv.ListenAndServe(); err != http.ErrServerClosed {
			log.Warn("api server stopped", "err", err)
		}
	}()
	log.Info("staking query API serving", "addr", cfg.APIAddr, "height", n.Committed().Snapshot.Height)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down")
	return apiSrv.Close()
}

func initLogger(verbosity int) {
	level := log.FromLegacyLevel(verbosity)
	var lvl slog.LevelVar
	lvl.Set(level)
	useColor := isatty.IsTerminal(os.Stderr.Fd()) && os.Getenv("TERM") != "dumb"
	log.SetDefault(log.NewLogger(log.NewTerminalHandlerWithLevel(os.Stderr, &lvl, useColor)))
}
