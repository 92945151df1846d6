//go:build integration

// Package testutil starts throwaway dependencies for integration tests.
package testutil

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/manuchak/detecta-core/config"
	"github.com/manuchak/detecta-core/internal/database"
	"github.com/manuchak/detecta-core/internal/logger"
)

// ContainersAvailable returns true if a Docker or Podman socket is present
func ContainersAvailable() bool {
	if _, err := os.Stat("/var/run/docker.sock"); err == nil {
		return true
	}
	runtimeDir := os.Getenv("XDG_RUNTIME_DIR")
	if runtimeDir == "" {
		if uid := os.Getuid(); uid > 0 {
			runtimeDir = "/run/user/" + strconv.Itoa(uid)
		}
	}
	if runtimeDir != "" {
		if _, err := os.Stat(filepath.Join(runtimeDir, "podman", "podman.sock")); err == nil {
			return true
		}
	}
	return false
}

// repoRoot walks up from the package directory to the directory holding go.mod
func repoRoot(t *testing.T) string {
	t.Helper()
	dir, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	for i := 0; i < 6; i++ {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		dir = filepath.Dir(dir)
	}
	t.Fatalf("go.mod not found above working directory")
	return ""
}

// StartPostgres runs postgres in a container, applies scripts/init.sql and
// returns a connected DB. The container is removed when the test ends.
func StartPostgres(t *testing.T) *database.DB {
	t.Helper()
	if !ContainersAvailable() {
		t.Skip("no container runtime available")
	}
	logger.Init("error", "text")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pg, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image: "postgres:15-alpine",
			Env: map[string]string{
				"POSTGRES_DB":       "detecta",
				"POSTGRES_USER":     "detecta",
				"POSTGRES_PASSWORD": "password",
			},
			ExposedPorts: []string{"5432/tcp"},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("start container: %v", err)
	}
	t.Cleanup(func() { _ = pg.Terminate(context.Background()) })

	host, err := pg.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := pg.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("mapped port: %v", err)
	}

	db, err := database.New(ctx, config.DatabaseConfig{
		URL:             "postgres://detecta:password@" + host + ":" + port.Port() + "/detecta?sslmode=disable",
		MaxConns:        5,
		MinConns:        1,
		MaxConnLifetime: time.Hour,
		MaxConnIdleTime: 30 * time.Minute,
	})
	if err != nil {
		t.Fatalf("database.New: %v", err)
	}
	t.Cleanup(func() { db.Close(context.Background()) })

	schema, err := os.ReadFile(filepath.Join(repoRoot(t), "scripts", "init.sql"))
	if err != nil {
		t.Fatalf("read init.sql: %v", err)
	}
	if err := db.Exec(ctx, string(schema)); err != nil {
		t.Fatalf("apply schema: %v", err)
	}

	return db
}
