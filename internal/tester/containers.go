// This file is a helper for running integration tests and a standalone
// container stack with testcontainers. Expects environment variables to
// be loaded from .env files.
package tester

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	_ "github.com/go-sql-driver/mysql"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/network"
	"github.com/testcontainers/testcontainers-go/wait"
)

// TestContainers holds the stack the integration environment runs on:
// the relational store plus the Redis backend for the lookup table
// item cache.
type TestContainers struct {
	Network        *testcontainers.DockerNetwork
	DBContainer    testcontainers.Container
	RedisContainer testcontainers.Container
}

// Terminate tears down every started container and the network.
func (tc *TestContainers) Terminate(t *testing.T) {
	ctx := context.Background()
	if tc.RedisContainer != nil {
		if err := tc.RedisContainer.Terminate(ctx); err != nil {
			logMessage(t, "Failed to terminate Redis: %v", err)
		}
	}
	if tc.DBContainer != nil {
		if err := tc.DBContainer.Terminate(ctx); err != nil {
			logMessage(t, "Failed to terminate database: %v", err)
		}
	}
	if tc.Network != nil {
		if err := tc.Network.Remove(ctx); err != nil {
			logMessage(t, "Failed to remove network: %v", err)
		}
	}
}

// CreateAllTestContainers starts the container stack. Pass a nil
// *testing.T when running standalone; failures then exit the process.
func CreateAllTestContainers(t *testing.T) (*TestContainers, error) {
	ctx := context.Background()
	tc := &TestContainers{}

	nw, err := network.New(ctx)
	if err != nil {
		exitWithError(t, err, "Failed to create network")
	}
	tc.Network = nw
	networkName := nw.Name

	dbPort, err := nat.NewPort("tcp", getEnvDefault("DB_PORT", "3306"))
	if err != nil {
		tc.Terminate(t)
		exitWithError(t, err, "Failed to create DB port")
	}

	dbContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        getEnvDefault("DB_IMAGE", "mariadb:11"),
			ExposedPorts: []string{string(dbPort)},
			Env: map[string]string{
				"MARIADB_ROOT_PASSWORD": getEnvDefault("DB_PASSWORD", "spacelink"),
				"MARIADB_DATABASE":      getEnvDefault("DB_DATABASE", "spacelink"),
				"MARIADB_USER":          getEnvDefault("DB_USER", "spacelink"),
				"MARIADB_PASSWORD":      getEnvDefault("DB_PASSWORD", "spacelink"),
			},
			WaitingFor: wait.ForListeningPort(dbPort).WithStartupTimeout(60 * time.Second),
			Networks:   []string{networkName},
			NetworkAliases: map[string][]string{
				networkName: {getEnvDefault("DB_HOST", "db")},
			},
		},
		Started: true,
	})
	if err != nil {
		tc.Terminate(t)
		exitWithError(t, err, "Failed to start database container")
	}
	tc.DBContainer = dbContainer

	if err := waitForDB(ctx, dbContainer, dbPort); err != nil {
		tc.Terminate(t)
		exitWithError(t, err, "Database did not become ready")
	}

	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        getEnvDefault("REDIS_IMAGE", "redis:7"),
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
			Networks:     []string{networkName},
			NetworkAliases: map[string][]string{
				networkName: {getEnvDefault("REDIS_HOST", "redis")},
			},
		},
		Started: true,
	})
	if err != nil {
		tc.Terminate(t)
		exitWithError(t, err, "Failed to start redis container")
	}
	tc.RedisContainer = redisContainer

	return tc, nil
}

// waitForDB pings the database through the mapped port until it accepts
// connections.
func waitForDB(ctx context.Context, container testcontainers.Container, port nat.Port) error {
	host, err := container.Host(ctx)
	if err != nil {
		return err
	}
	mapped, err := container.MappedPort(ctx, port)
	if err != nil {
		return err
	}

	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s",
		getEnvDefault("DB_USER", "spacelink"),
		getEnvDefault("DB_PASSWORD", "spacelink"),
		host, mapped.Port(),
		getEnvDefault("DB_DATABASE", "spacelink"))

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	deadline := time.Now().Add(60 * time.Second)
	for {
		if err := db.PingContext(ctx); err == nil {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("database not reachable at %s:%s", host, mapped.Port())
		}
		time.Sleep(time.Second)
	}
}

func getEnvDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func logMessage(t *testing.T, format string, args ...interface{}) {
	if t != nil {
		t.Logf(format, args...)
		return
	}
	fmt.Printf(format+"\n", args...)
}

func exitWithError(t *testing.T, err error, message string) {
	if t != nil {
		t.Fatalf("%s: %v", message, err)
		return
	}
	fmt.Printf("%s: %v\n", message, err)
	os.Exit(1)
}
