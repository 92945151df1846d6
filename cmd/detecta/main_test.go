package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/manuchak/detecta-core/internal/logger"
	"github.com/manuchak/detecta-core/internal/pricing"
)

// getFreePort returns an available TCP port
func getFreePort(t *testing.T) int {
	l, err := net.Listen("tcp", ":0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func TestMetricsServer_Smoke(t *testing.T) {
	logger.Init("error", "text")
	port := getFreePort(t)
	srv := newMetricsServer(port, "/metrics")
	go func() { _ = srv.ListenAndServe() }()
	defer srv.Shutdown(context.Background())

	url := fmt.Sprintf("http://localhost:%d/metrics", port)
	deadline := time.Now().Add(3 * time.Second)
	var lastErr error
	for time.Now().Before(deadline) {
		resp, err := http.Get(url)
		if err == nil {
			resp.Body.Close()
			// NoOp handler returns 404 Not Found
			if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusOK {
				return
			}
		}
		lastErr = err
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatalf("metrics server not reachable: %v", lastErr)
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("DATABASE_URL", "")
	var out bytes.Buffer
	cmd := rootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestQuoteCommand(t *testing.T) {
	out, err := run(t, "quote", "--km", "250")
	if err != nil {
		t.Fatalf("quote failed: %v", err)
	}
	for _, want := range []string{"1375.00", "1425.00", "100-250 km", "rangos por defecto"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestQuoteCommand_JSON(t *testing.T) {
	out, err := run(t, "quote", "--km", "250", "--json")
	if err != nil {
		t.Fatalf("quote failed: %v", err)
	}
	var cmp pricing.Comparison
	if err := json.Unmarshal([]byte(out), &cmp); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, out)
	}
	if cmp.Staircase != 1425 || cmp.SingleTier.Cost != 1375 {
		t.Errorf("unexpected comparison %+v", cmp)
	}
}

func TestQuoteCommand_RequiresKm(t *testing.T) {
	if _, err := run(t, "quote"); err == nil {
		t.Error("expected error without --km")
	}
}

func TestMatchCommand(t *testing.T) {
	out, err := run(t, "match", "queretaro", "QUERETARO", "QUERETAROS", "CELAYA")
	if err != nil {
		t.Fatalf("match failed: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header and two matches, got:\n%s", out)
	}
	if !strings.HasPrefix(lines[1], "1.000") || !strings.Contains(lines[1], "QUERETARO") {
		t.Errorf("expected exact match first, got %q", lines[1])
	}

	out, err = run(t, "match", "--threshold", "0.99", "queretaro", "CELAYA")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "Sin coincidencias") {
		t.Errorf("expected no matches, got:\n%s", out)
	}

	if _, err := run(t, "match", "--threshold", "2", "a", "b"); err == nil {
		t.Error("expected error for threshold above 1")
	}
	if _, err := run(t, "match", "only-input"); err == nil {
		t.Error("expected error without candidates")
	}
}
