// Package integration runs the reservation engine against real PostgreSQL and Redis
// instances started with testcontainers. The tests are skipped with -short.
package integration

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/erp/reservation/internal/infrastructure/config"
	"github.com/erp/reservation/internal/infrastructure/migration"
	"github.com/erp/reservation/internal/infrastructure/persistence"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
)

var (
	// Shared containers for all tests in the package
	sharedMu        sync.Mutex
	sharedPostgres  *tcpostgres.PostgresContainer
	sharedDBConfig  *config.DatabaseConfig
	sharedRedis     testcontainers.Container
	sharedRedisAddr string
)

func skipIfShort(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
}

// NewTestDatabase returns a connection to the shared PostgreSQL container with the schema
// migrated and both tables emptied.
func NewTestDatabase(t *testing.T) *persistence.Database {
	t.Helper()
	skipIfShort(t)

	cfg := postgresConfig(t)
	db, err := persistence.NewDatabase(cfg, zap.NewNop())
	require.NoError(t, err, "Failed to connect to database")
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, db.DB.Exec("TRUNCATE TABLE reservations, stock_levels").Error)
	return db
}

func postgresConfig(t *testing.T) *config.DatabaseConfig {
	t.Helper()

	sharedMu.Lock()
	defer sharedMu.Unlock()
	if sharedDBConfig != nil {
		cfg := *sharedDBConfig
		return &cfg
	}

	ctx := context.Background()
	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("reservation_test"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err, "Failed to start PostgreSQL container")

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	cfg := &config.DatabaseConfig{
		Driver:          config.DriverPostgres,
		Host:            host,
		Port:            port.Int(),
		User:            "postgres",
		Password:        "postgres",
		DBName:          "reservation_test",
		SSLMode:         "disable",
		MaxOpenConns:    20,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5,
		ConnMaxIdleTime: 1,
		LockTimeout:     2 * time.Second,
		LogLevel:        "silent",
	}
	runMigrations(t, cfg)

	sharedPostgres = container
	sharedDBConfig = cfg
	copied := *cfg
	return &copied
}

// runMigrations applies the embedded migrations. The migrator closes its own connection.
func runMigrations(t *testing.T, cfg *config.DatabaseConfig) {
	t.Helper()

	sqlDB, err := sql.Open(migration.SQLDriverName(cfg.Driver), cfg.DSN())
	require.NoError(t, err)
	m, err := migration.New(sqlDB, cfg.Driver, zap.NewNop())
	require.NoError(t, err, "Failed to create migrator")
	defer func() { _ = m.Close() }()
	require.NoError(t, m.Up(), "Failed to run migrations")
}

// NewTestRedis returns a client for the shared Redis container with an empty keyspace
func NewTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	skipIfShort(t)

	client := redis.NewClient(&redis.Options{Addr: redisAddr(t)})
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.FlushDB(context.Background()).Err())
	return client
}

func redisAddr(t *testing.T) string {
	t.Helper()

	sharedMu.Lock()
	defer sharedMu.Unlock()
	if sharedRedisAddr != "" {
		return sharedRedisAddr
	}

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err, "Failed to start Redis container")

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379/tcp")
	require.NoError(t, err)

	sharedRedis = container
	sharedRedisAddr = fmt.Sprintf("%s:%s", host, port.Port())
	return sharedRedisAddr
}

// terminateContainers stops the shared containers once the package's tests finish
func terminateContainers() {
	sharedMu.Lock()
	defer sharedMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if sharedPostgres != nil {
		_ = sharedPostgres.Terminate(ctx)
		sharedPostgres = nil
		sharedDBConfig = nil
	}
	if sharedRedis != nil {
		_ = sharedRedis.Terminate(ctx)
		sharedRedis = nil
		sharedRedisAddr = ""
	}
}
