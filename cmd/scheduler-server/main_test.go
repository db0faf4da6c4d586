package main

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/moonlitpsych/moonlit-scheduler/internal/config"
	"github.com/moonlitpsych/moonlit-scheduler/internal/platform/ehr"
	"github.com/moonlitpsych/moonlit-scheduler/internal/platform/memo"
)

// ---------------------------------------------------------------------------
// parseAsOf
// ---------------------------------------------------------------------------

func TestParseAsOf_Empty(t *testing.T) {
	d, err := parseAsOf("  ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !d.IsZero() {
		t.Errorf("expected zero date for empty flag, got %s", d)
	}
}

func TestParseAsOf_Valid(t *testing.T) {
	d, err := parseAsOf("2025-03-01")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.String() != "2025-03-01" {
		t.Errorf("parseAsOf = %s, want 2025-03-01", d)
	}
}

func TestParseAsOf_Invalid(t *testing.T) {
	if _, err := parseAsOf("03/01/2025"); err == nil {
		t.Fatal("expected error for non-ISO date")
	}
}

// ---------------------------------------------------------------------------
// wiring helpers
// ---------------------------------------------------------------------------

func TestNewEHRClient_MemoryWithoutBaseURL(t *testing.T) {
	cfg := &config.Config{}
	c := newEHRClient(cfg, memo.NewMemoryStore(), time.UTC, zerolog.Nop())
	if _, ok := c.(*ehr.MemoryClient); !ok {
		t.Errorf("expected *ehr.MemoryClient, got %T", c)
	}
}

func TestNewEHRClient_HTTPWithBaseURL(t *testing.T) {
	cfg := &config.Config{EHRBaseURL: "https://ehr.example.com", EHRTimeout: time.Second}
	c := newEHRClient(cfg, memo.NewMemoryStore(), time.UTC, zerolog.Nop())
	if _, ok := c.(*ehr.HTTPClient); !ok {
		t.Errorf("expected *ehr.HTTPClient, got %T", c)
	}
}

func TestMemoStores_SeparateWithoutRedis(t *testing.T) {
	a, b := memoStores(nil)
	ctx := context.Background()
	if err := a.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := b.Purge(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok, _ := a.Get(ctx, "k"); !ok {
		t.Error("purging one store must not clear the other")
	}
}

func TestRosterQueue_NilIsUntyped(t *testing.T) {
	a := &app{}
	if q := a.rosterQueue(); q != nil {
		t.Errorf("expected untyped nil queue, got %#v", q)
	}
}

func TestRateLimitConfig_DefaultsWhenUnset(t *testing.T) {
	rl := rateLimitConfig(&config.Config{})
	if rl.RequestsPerSecond <= 0 || rl.BurstSize <= 0 {
		t.Errorf("expected default rate limit, got %+v", rl)
	}
	rl = rateLimitConfig(&config.Config{RateLimitRPS: 5, RateLimitBurst: 10})
	if rl.RequestsPerSecond != 5 || rl.BurstSize != 10 {
		t.Errorf("expected configured rate limit, got %+v", rl)
	}
}

func TestAuthMiddleware_RejectsBadSigningKey(t *testing.T) {
	if _, err := authMiddleware(&config.Config{AuthSigningKey: "zz"}); err == nil {
		t.Fatal("expected error for invalid signing key")
	}
}

func TestRedisPrefixes(t *testing.T) {
	for _, p := range []string{prefixEHR, prefixRoster} {
		if strings.HasSuffix(p, ":") {
			t.Errorf("prefix %q must not end in a separator; the store adds one", p)
		}
	}
	if prefixEHR == prefixRoster {
		t.Error("caches must not share a prefix")
	}
}
