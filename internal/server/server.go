package server

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"craps/internal/access"
	"craps/internal/cache"
	"craps/internal/database"
	"craps/internal/game"
	"craps/internal/rules"
	"craps/internal/vault"
)

// Faucet credits test balances.
type Faucet interface {
	Credit(ctx context.Context, account string, amount int64) (int64, error)
}

// FaucetFunc adapts a function to Faucet.
type FaucetFunc func(ctx context.Context, account string, amount int64) (int64, error)

func (f FaucetFunc) Credit(ctx context.Context, account string, amount int64) (int64, error) {
	return f(ctx, account, amount)
}

// RollSource reads mirrored roll history for series the table no longer keeps.
type RollSource interface {
	Recent(ctx context.Context, seriesID string) ([]rules.Roll, error)
}

// Deps wires the HTTP layer to a running table. Manager, Hub, Assets and ACL
// are required; the rest may be nil.
type Deps struct {
	Manager *game.Manager
	Hub     *game.Hub
	Assets  vault.AssetLedger
	ACL     *access.Control
	Oracle  *game.ProvablyFairOracle
	Faucet  Faucet
	History RollSource
	DB      database.Service
	Cache   cache.Service
	Log     *zap.Logger

	// RequestsPerMinute caps each client IP. Zero disables the limiter.
	RequestsPerMinute int
}

type FiberServer struct {
	*fiber.App

	db          database.Service
	cache       cache.Service
	gameManager *game.Manager
	gameHub     *game.Hub
	assets      vault.AssetLedger
	acl         *access.Control
	oracle      *game.ProvablyFairOracle
	faucet      Faucet
	history     RollSource
	log         *zap.Logger
}

func New(d Deps) *FiberServer {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}

	server := &FiberServer{
		App: fiber.New(fiber.Config{
			ServerHeader:  "craps",
			AppName:       "craps",
			ReadTimeout:   10 * time.Second,
			WriteTimeout:  10 * time.Second,
			IdleTimeout:   120 * time.Second,
			StrictRouting: false,
		}),

		db:          d.DB,
		cache:       d.Cache,
		gameManager: d.Manager,
		gameHub:     d.Hub,
		assets:      d.Assets,
		acl:         d.ACL,
		oracle:      d.Oracle,
		faucet:      d.Faucet,
		history:     d.History,
		log:         d.Log.Named("http"),
	}

	// Apply global middleware
	server.App.Use(recover.New())
	if d.RequestsPerMinute > 0 {
		server.App.Use(limiter.New(limiter.Config{
			Max:        d.RequestsPerMinute,
			Expiration: 1 * time.Minute,
		}))
	}

	server.RegisterFiberRoutes()
	return server
}

// Shutdown stops the HTTP listener, the table and its connections.
func (s *FiberServer) Shutdown() error {
	s.log.Info("shutting down")

	err := s.App.Shutdown()

	if s.gameManager != nil {
		s.gameManager.Stop()
	}
	if s.cache != nil {
		if cerr := s.cache.Close(); cerr != nil {
			s.log.Warn("cache close", zap.Error(cerr))
		}
	}
	if s.db != nil {
		if derr := s.db.Close(); derr != nil {
			s.log.Warn("database close", zap.Error(derr))
		}
	}

	return err
}
