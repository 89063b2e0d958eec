package database

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"craps/internal/bets"
	"craps/internal/game"
	"craps/internal/rules"
	"craps/internal/settlement"
	"craps/internal/vault"
)

const migrationsPath = "../../migrations"

func mustStartPostgresContainer() (func(context.Context) error, error) {
	var (
		dbName = "database"
		dbPwd  = "password"
		dbUser = "user"
	)

	// Create context with timeout to prevent hanging
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	dbContainer, err := postgres.Run(
		ctx,
		"postgres:latest",
		postgres.WithDatabase(dbName),
		postgres.WithUsername(dbUser),
		postgres.WithPassword(dbPwd),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		return nil, err
	}

	database = dbName
	password = dbPwd
	username = dbUser

	dbHost, err := dbContainer.Host(context.Background())
	if err != nil {
		return dbContainer.Terminate, err
	}

	dbPort, err := dbContainer.MappedPort(context.Background(), "5432/tcp")
	if err != nil {
		return dbContainer.Terminate, err
	}

	host = dbHost
	port = dbPort.Port()

	return dbContainer.Terminate, err
}

func TestMain(m *testing.M) {
	// Skip integration tests if SKIP_INTEGRATION env var is set
	if os.Getenv("SKIP_INTEGRATION") != "" {
		os.Exit(0)
	}

	// Skip if Docker is not available
	if os.Getenv("CI") == "" && !isDockerAvailable() {
		os.Exit(0)
	}

	teardown, err := mustStartPostgresContainer()
	if err != nil {
		// Don't fail, just skip tests if container can't start
		os.Exit(0)
	}

	code := m.Run()

	if teardown != nil {
		teardown(context.Background())
	}

	os.Exit(code)
}

func isDockerAvailable() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	provider, err := testcontainers.NewDockerProvider()
	if err != nil {
		return false
	}
	defer provider.Close()

	_, err = provider.DaemonHost(ctx)
	return err == nil
}

func TestNew(t *testing.T) {
	srv := New()
	if srv == nil {
		t.Fatal("New() returned nil")
	}
}

func TestHealth(t *testing.T) {
	srv := New()

	stats := srv.Health()

	if stats["status"] != "up" {
		t.Fatalf("expected status to be up, got %s", stats["status"])
	}

	if _, ok := stats["error"]; ok {
		t.Fatalf("expected error not to be present")
	}

	if stats["message"] != "It's healthy" {
		t.Fatalf("expected message to be 'It's healthy', got %s", stats["message"])
	}
}

func TestMigrations(t *testing.T) {
	db := New().DB()

	if err := RunMigrations(db, migrationsPath); err != nil {
		t.Fatalf("RunMigrations() error = %v", err)
	}
	// A second run has nothing to apply.
	if err := RunMigrations(db, migrationsPath); err != nil {
		t.Fatalf("RunMigrations() rerun error = %v", err)
	}

	version, dirty, err := GetMigrationVersion(db, migrationsPath)
	if err != nil {
		t.Fatal(err)
	}
	if version != 1 || dirty {
		t.Errorf("GetMigrationVersion() = %d, dirty %v, want 1, clean", version, dirty)
	}
}

func TestRecorder(t *testing.T) {
	db := New().DB()
	if err := RunMigrations(db, migrationsPath); err != nil {
		t.Fatal(err)
	}
	rec := NewRecorder(db)
	ctx := context.Background()
	player := "player-" + uuid.NewString()

	now := time.Now().UTC()
	s := game.Series{
		ID:        uuid.NewString(),
		Shooter:   player,
		HandID:    uuid.NewString(),
		Phase:     rules.PhaseIdle,
		Rolls:     []rules.Roll{rules.MustRoll(3, 4)},
		Complete:  true,
		Outcome:   rules.OutcomeNatural,
		StartedAt: now,
		EndedAt:   now,
	}
	tr := rules.Transition{
		Roll:        rules.MustRoll(3, 4),
		PhaseBefore: rules.PhaseComeOut,
		PhaseAfter:  rules.PhaseIdle,
		Outcome:     rules.OutcomeNatural,
	}
	res := settlement.BatchResult{
		Lines: []settlement.Line{
			{Key: bets.Key{Player: player, Type: rules.BetPass}, BetID: uuid.NewString(), Amount: 100, Action: settlement.ActionWin, Payout: 200},
			{Key: bets.Key{Player: player, Type: rules.BetDontPass}, BetID: uuid.NewString(), Amount: 50, Action: settlement.ActionLose},
		},
		Stake:  150,
		Paid:   200,
		Report: vault.BatchReport{Locks: 2, Stake: 150, Paid: 200, AssetDelta: -50},
	}

	if err := rec.RecordSettlement(ctx, s, tr, res); err != nil {
		t.Fatalf("RecordSettlement() error = %v", err)
	}
	if err := rec.RecordSeries(ctx, s); err != nil {
		t.Fatalf("RecordSeries() error = %v", err)
	}
	if err := rec.RecordSeries(ctx, s); err != nil {
		t.Fatalf("RecordSeries() twice error = %v", err)
	}

	staked, paid, err := rec.PlayerTotals(ctx, player)
	if err != nil {
		t.Fatal(err)
	}
	if staked != 150 || paid != 200 {
		t.Errorf("PlayerTotals() = %d, %d, want 150, 200", staked, paid)
	}
}

func TestClose(t *testing.T) {
	srv := New()

	if srv.Close() != nil {
		t.Fatalf("expected Close() to return nil")
	}
}
