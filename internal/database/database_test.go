package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/manuchak/detecta-core/config"
	"github.com/manuchak/detecta-core/internal/logger"
)

func TestNew_NoDatabase(t *testing.T) {
	logger.Init("error", "text")

	db, err := New(context.Background(), config.DatabaseConfig{URL: ""})
	if err != nil {
		t.Fatalf("Expected no error for empty database URL, got %v", err)
	}
	if db == nil {
		t.Fatal("Expected DB instance, got nil")
	}
	if db.pool != nil {
		t.Error("Expected pool to be nil when no database URL provided")
	}
	if db.IsConfigured() {
		t.Error("Expected IsConfigured to return false when no database")
	}
}

func TestNew_InvalidURL(t *testing.T) {
	_, err := New(context.Background(), config.DatabaseConfig{URL: "invalid-url"})
	if err == nil {
		t.Error("Expected error for invalid database URL, got nil")
	}
}

func TestDB_Operations_NoPool(t *testing.T) {
	db := &DB{cfg: config.DatabaseConfig{}}
	ctx := context.Background()

	if err := db.Exec(ctx, "SELECT 1"); err != nil {
		t.Errorf("Expected no error for Exec with no pool, got %v", err)
	}

	if _, err := db.Query(ctx, "SELECT 1"); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("Expected ErrNotConfigured for Query with no pool, got %v", err)
	}

	if result := db.QueryRow(ctx, "SELECT 1"); result != nil {
		t.Error("Expected nil for QueryRow with no pool")
	}

	if err := db.Health(ctx); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("Expected ErrNotConfigured for Health with no pool, got %v", err)
	}
}

func TestDB_Close(t *testing.T) {
	db := &DB{cfg: config.DatabaseConfig{}}
	// Should not panic when closing with no pool
	db.Close(context.Background())
}

func TestDB_CollectMetrics_NoPool(t *testing.T) {
	db := &DB{cfg: config.DatabaseConfig{}}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	// returns immediately when no pool
	db.collectMetrics(ctx)
}

func TestStatusOf(t *testing.T) {
	if statusOf(nil) != "success" || statusOf(errors.New("x")) != "error" {
		t.Error("unexpected status labels")
	}
}

func BenchmarkDB_Exec(b *testing.B) {
	db := &DB{cfg: config.DatabaseConfig{}}
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = db.Exec(ctx, "SELECT 1")
	}
}
