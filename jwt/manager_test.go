package jwt

import (
	"strings"
	"testing"
	"time"
)

func testConfig() Config {
	return Config{
		AccessSecret:  []byte("access-secret-0123456789abcdefgh"),
		RefreshSecret: []byte("refresh-secret-0123456789abcdefg"),
		AccessTTL:     5 * time.Minute,
		RefreshTTL:    7 * 24 * time.Hour,
		Issuer:        "doora",
	}
}

func newTestManager(t *testing.T) *Manager {
	t.Helper()

	m, err := NewManager(testConfig())
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	return m
}

func TestAccessRoundtrip(t *testing.T) {
	m := newTestManager(t)

	token, err := m.CreateAccess("acc-1", "ana@x.com", "Ana", "user")
	if err != nil {
		t.Fatalf("CreateAccess failed: %v", err)
	}

	claims, err := m.ParseAccess(token)
	if err != nil {
		t.Fatalf("ParseAccess failed: %v", err)
	}
	if claims.Subject != "acc-1" {
		t.Fatalf("subject = %q, want acc-1", claims.Subject)
	}
	if claims.Email != "ana@x.com" || claims.Name != "Ana" || claims.Role != "user" {
		t.Fatalf("unexpected identity claims: %+v", claims)
	}
}

func TestRefreshRoundtrip(t *testing.T) {
	m := newTestManager(t)

	token, err := m.CreateRefresh("acc-1")
	if err != nil {
		t.Fatalf("CreateRefresh failed: %v", err)
	}

	claims, err := m.ParseRefresh(token)
	if err != nil {
		t.Fatalf("ParseRefresh failed: %v", err)
	}
	if claims.Subject != "acc-1" {
		t.Fatalf("subject = %q, want acc-1", claims.Subject)
	}
}

func TestKindsAreNotInterchangeable(t *testing.T) {
	m := newTestManager(t)

	access, err := m.CreateAccess("acc-1", "ana@x.com", "Ana", "user")
	if err != nil {
		t.Fatalf("CreateAccess failed: %v", err)
	}
	refresh, err := m.CreateRefresh("acc-1")
	if err != nil {
		t.Fatalf("CreateRefresh failed: %v", err)
	}

	if _, err := m.ParseAccess(refresh); err == nil {
		t.Fatal("refresh token must not parse as access token")
	}
	if _, err := m.ParseRefresh(access); err == nil {
		t.Fatal("access token must not parse as refresh token")
	}
}

func TestExpiredTokenRejected(t *testing.T) {
	cfg := testConfig()
	cfg.AccessTTL = -time.Minute
	m, err := NewManager(Config{
		AccessSecret:  cfg.AccessSecret,
		RefreshSecret: cfg.RefreshSecret,
		AccessTTL:     time.Nanosecond,
		RefreshTTL:    cfg.RefreshTTL,
		Issuer:        cfg.Issuer,
	})
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}

	token, err := m.CreateAccess("acc-1", "", "", "")
	if err != nil {
		t.Fatalf("CreateAccess failed: %v", err)
	}

	time.Sleep(5 * time.Millisecond)
	if _, err := m.ParseAccess(token); err == nil {
		t.Fatal("expected expired token to be rejected")
	}
}

func TestTamperedTokenRejected(t *testing.T) {
	m := newTestManager(t)

	token, err := m.CreateAccess("acc-1", "ana@x.com", "Ana", "user")
	if err != nil {
		t.Fatalf("CreateAccess failed: %v", err)
	}

	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		t.Fatalf("unexpected token shape: %q", token)
	}
	tampered := parts[0] + "." + parts[1] + "." + strings.Repeat("A", len(parts[2]))

	if _, err := m.ParseAccess(tampered); err == nil {
		t.Fatal("expected tampered signature to be rejected")
	}
}

func TestNewManagerConfigValidation(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero access ttl", func(c *Config) { c.AccessTTL = 0 }},
		{"zero refresh ttl", func(c *Config) { c.RefreshTTL = 0 }},
		{"short access secret", func(c *Config) { c.AccessSecret = []byte("short") }},
		{"short refresh secret", func(c *Config) { c.RefreshSecret = []byte("short") }},
		{"identical secrets", func(c *Config) { c.RefreshSecret = c.AccessSecret }},
		{"negative leeway", func(c *Config) { c.Leeway = -time.Second }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testConfig()
			tc.mutate(&cfg)
			if _, err := NewManager(cfg); err == nil {
				t.Fatal("expected config rejection")
			}
		})
	}
}
