package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.DB.Host != "localhost" || cfg.DB.Port != "5432" {
		t.Fatalf("unexpected db defaults: %+v", cfg.DB)
	}
	if cfg.JWT.ExpirationHours != 1 {
		t.Fatalf("tokens default to a one hour lifetime, got %d", cfg.JWT.ExpirationHours)
	}
	if cfg.Server.Port != "8080" || cfg.Server.BaseURL != "http://localhost:8080" {
		t.Fatalf("unexpected server defaults: %+v", cfg.Server)
	}
	if cfg.MinIO.Bucket != "groupnotes" {
		t.Fatalf("unexpected minio bucket default %q", cfg.MinIO.Bucket)
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("JWT_EXPIRATION_HOURS", "4")
	t.Setenv("MINIO_USE_SSL", "true")
	t.Setenv("SERVER_BASE_URL", "https://notes.example.com")

	cfg := Load()

	if cfg.DB.Host != "db.internal" {
		t.Fatalf("expected db host override, got %q", cfg.DB.Host)
	}
	if cfg.JWT.ExpirationHours != 4 {
		t.Fatalf("expected expiration override, got %d", cfg.JWT.ExpirationHours)
	}
	if !cfg.MinIO.UseSSL {
		t.Fatal("expected ssl override")
	}
	if cfg.Server.BaseURL != "https://notes.example.com" {
		t.Fatalf("expected base url override, got %q", cfg.Server.BaseURL)
	}
}

func TestLoadIgnoresMalformedValues(t *testing.T) {
	t.Setenv("JWT_EXPIRATION_HOURS", "not-a-number")
	t.Setenv("MINIO_USE_SSL", "maybe")

	cfg := Load()

	if cfg.JWT.ExpirationHours != 1 {
		t.Fatalf("malformed int must fall back to the default, got %d", cfg.JWT.ExpirationHours)
	}
	if cfg.MinIO.UseSSL {
		t.Fatal("malformed bool must fall back to the default")
	}
}
