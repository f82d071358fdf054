package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("PRODUCT_CACHE_TTL_SECONDS", "")

	cfg := Load()
	if cfg.Port != "8080" {
		t.Fatalf("expected default port 8080, got %q", cfg.Port)
	}
	if cfg.Address() != ":8080" {
		t.Fatalf("expected address :8080, got %q", cfg.Address())
	}
	if cfg.ProductCacheTTLSeconds != 30 {
		t.Fatalf("expected default cache ttl 30, got %d", cfg.ProductCacheTTLSeconds)
	}
}

func TestLoadRejectsBadCacheTTL(t *testing.T) {
	t.Setenv("PRODUCT_CACHE_TTL_SECONDS", "-5")

	cfg := Load()
	if cfg.ProductCacheTTLSeconds != 30 {
		t.Fatalf("expected fallback cache ttl 30, got %d", cfg.ProductCacheTTLSeconds)
	}
}

func TestLoadRejectsBadRedisDB(t *testing.T) {
	t.Setenv("REDIS_DB", "not-a-number")

	cfg := Load()
	if cfg.RedisDB != 0 {
		t.Fatalf("expected fallback redis db 0, got %d", cfg.RedisDB)
	}
}
