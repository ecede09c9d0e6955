package config

import "testing"

func TestLoadConfigNormalizesRedisURL(t *testing.T) {
	t.Setenv("REDIS_URL", "redis://:sekrit@redis.example.com:6380/2")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.RedisURL != "redis.example.com:6380" {
		t.Errorf("expected bare addr, got %q", cfg.RedisURL)
	}
	if cfg.RedisPassword != "sekrit" {
		t.Errorf("expected password from URL, got %q", cfg.RedisPassword)
	}
	if cfg.RedisDB != 2 {
		t.Errorf("expected db 2 from URL, got %d", cfg.RedisDB)
	}
}

func TestLoadConfigKeepsBareRedisAddr(t *testing.T) {
	t.Setenv("REDIS_URL", "localhost:6390")
	t.Setenv("REDIS_PASSWORD", "pw")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.RedisURL != "localhost:6390" {
		t.Errorf("bare addr must pass through, got %q", cfg.RedisURL)
	}
	if cfg.RedisPassword != "pw" {
		t.Errorf("expected password from env, got %q", cfg.RedisPassword)
	}
}

func TestLoadConfigRejectsBadRedisURL(t *testing.T) {
	t.Setenv("REDIS_URL", "redis://bad url with spaces")

	if _, err := LoadConfig(); err == nil {
		t.Error("expected error for an unparseable REDIS_URL")
	}
}
