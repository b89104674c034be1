package config

import (
	"testing"
	"time"
)

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":3001")
	t.Setenv("DB_BACKEND", "MySQL")
	t.Setenv("UPLOAD_IMAGE_MAX_BYTES", "not-a-number")
	t.Setenv("UPLOAD_AUDIO_MAX_BYTES", "1048576")
	t.Setenv("JWT_TTL", "2h")
	t.Setenv("AUTH_REQUIRED", "true")

	cfg := Load()

	if cfg.HTTPAddr != ":3001" {
		t.Fatalf("HTTPAddr = %q", cfg.HTTPAddr)
	}
	if cfg.DBBackend != BackendMySQL {
		t.Fatalf("DBBackend = %q, want lowercased %q", cfg.DBBackend, BackendMySQL)
	}
	if cfg.ImageMaxBytes != 10<<20 {
		t.Fatalf("ImageMaxBytes = %d, want fallback on parse error", cfg.ImageMaxBytes)
	}
	if cfg.AudioMaxBytes != 1<<20 {
		t.Fatalf("AudioMaxBytes = %d", cfg.AudioMaxBytes)
	}
	if cfg.JWTTTL != 2*time.Hour {
		t.Fatalf("JWTTTL = %v", cfg.JWTTTL)
	}
	if !cfg.AuthRequired {
		t.Fatal("AuthRequired should be true")
	}
	if got, want := cfg.MaxBodyBytes(), int64(1<<20+10<<20+1<<20); got != want {
		t.Fatalf("MaxBodyBytes = %d, want %d", got, want)
	}
}
