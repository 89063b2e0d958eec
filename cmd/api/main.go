package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"craps/internal/access"
	"craps/internal/bets"
	"craps/internal/cache"
	"craps/internal/config"
	"craps/internal/database"
	"craps/internal/events"
	"craps/internal/game"
	"craps/internal/logger"
	"craps/internal/metrics"
	"craps/internal/server"
	"craps/internal/settlement"
	"craps/internal/vault"
)

func main() {
	cfg := config.Load()
	log, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()
	zap.ReplaceGlobals(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// Redis: asset ledger and roll mirror. Without it the table keeps balances in memory.
	var (
		assets  vault.AssetLedger
		faucet  server.Faucet
		archive game.RollArchive
		history server.RollSource
	)
	rc := cache.New(cache.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}, log)
	if rc != nil {
		ledger := cache.NewLedger(rc.GetClient(), cfg.VaultAccount)
		rolls := cache.NewRollHistory(rc.GetClient(), cfg.RollHistoryLimit, 24*time.Hour)
		assets, faucet, archive, history = ledger, server.FaucetFunc(ledger.Credit), rolls, rolls
	} else {
		mem := vault.NewMemoryLedger(cfg.VaultAccount)
		assets = mem
		faucet = server.FaucetFunc(func(ctx context.Context, account string, amount int64) (int64, error) {
			mem.Credit(account, amount)
			return mem.BalanceOf(ctx, account)
		})
	}

	// Postgres: series and settlement records.
	var (
		db       database.Service
		recorder game.Recorder
	)
	if database.Configured() {
		db = database.New()
		if err := database.RunMigrations(db.DB(), cfg.MigrationsPath); err != nil {
			log.Fatal("migrations", zap.Error(err))
		}
		recorder = database.NewRecorder(db.DB())
	} else {
		log.Warn("BLUEPRINT_DB_HOST not set, series are not persisted")
	}

	// Kafka: roll, settlement and series events.
	var publisher events.Publisher = events.NopPublisher{}
	if cfg.KafkaBrokers != "" {
		publisher = events.NewKafkaPublisher(cfg.KafkaBrokers, events.Topics{
			Rolls:       cfg.TopicRolls,
			Settlements: cfg.TopicSettlements,
			Series:      cfg.TopicSeries,
		}, log)
	}
	defer publisher.Close()

	acl := access.FromLists(cfg.OperatorIDs, cfg.AdminIDs, cfg.SettlementID)
	v := vault.New(assets, vault.Config{
		Account:      cfg.VaultAccount,
		FeeRecipient: cfg.FeeRecipient,
		FeeBps:       cfg.FeeBps,
	}, acl, log, m)

	table := game.NewStateMachine(cfg.RollHistoryLimit)
	ledger := bets.NewLedger(table, v, acl, bets.Limits{
		Min:          cfg.BetMin,
		Max:          cfg.BetMax,
		OddsMultiple: cfg.OddsMultiple,
	}, log, m)
	oracle := game.NewProvablyFairOracle(time.Duration(cfg.RollDelayMs)*time.Millisecond, log)
	hub := game.NewHub(log)

	mgr := game.NewManager(game.Deps{
		Table:    table,
		Ledger:   ledger,
		Settler:  settlement.NewEngine(ledger, cfg.SettlementID, log, m),
		Vault:    v,
		RNG:      oracle,
		ACL:      acl,
		Hub:      hub,
		Events:   publisher,
		Recorder: recorder,
		Archive:  archive,
		Log:      log,
		Metrics:  m,
	})
	oracle.SetFulfiller(mgr)

	go hub.Run(ctx)
	mgr.Start(ctx)

	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, reg, func(ctx context.Context) error {
		if rc != nil {
			if h := rc.Health(); h["status"] != "up" {
				return errors.New(h["error"])
			}
		}
		if db != nil {
			if h := db.Health(); h["status"] != "up" {
				return errors.New(h["error"])
			}
		}
		return nil
	})

	srv := server.New(server.Deps{
		Manager:           mgr,
		Hub:               hub,
		Assets:            assets,
		ACL:               acl,
		Oracle:            oracle,
		Faucet:            faucet,
		History:           history,
		DB:                db,
		Cache:             rc,
		Log:               log,
		RequestsPerMinute: 100,
	})

	go func() {
		addr := ":" + cfg.Port
		log.Info("craps table listening",
			zap.String("addr", addr),
			zap.String("operators", strings.Join(cfg.OperatorIDs, ",")),
			zap.String("commitment", oracle.Commitment()))
		if err := srv.Listen(addr); err != nil {
			log.Error("http server stopped", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(); err != nil {
		log.Error("http shutdown", zap.Error(err))
	}
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		log.Error("metrics shutdown", zap.Error(err))
	}
}
