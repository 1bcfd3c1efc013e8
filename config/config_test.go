package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 8080 || cfg.Mongo.OpTimeout != 5*time.Second {
		t.Errorf("defaults = %+v", cfg)
	}
	if cfg.Mongo.Database != "accessmap" || cfg.Mongo.Collection != "locations" {
		t.Errorf("mongo defaults = %+v", cfg.Mongo)
	}
	if len(cfg.Server.AllowedOrigins) != 2 {
		t.Errorf("origins = %v", cfg.Server.AllowedOrigins)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("MONGO_OP_TIMEOUT", "750ms")
	t.Setenv("ALLOWED_ORIGINS", " https://a.example , ,https://b.example")
	t.Setenv("GEO_BACKEND", "redis")
	t.Setenv("RATE_RPS", "2.5")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9090 || cfg.Server.ServerAddr() != "0.0.0.0:9090" {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.Mongo.OpTimeout != 750*time.Millisecond {
		t.Errorf("op timeout = %v", cfg.Mongo.OpTimeout)
	}
	if len(cfg.Server.AllowedOrigins) != 2 || cfg.Server.AllowedOrigins[1] != "https://b.example" {
		t.Errorf("origins = %q", cfg.Server.AllowedOrigins)
	}
	if cfg.GeoBackend != "redis" || cfg.Limits.RPS != 2.5 {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := map[string]map[string]string{
		"port":        {"SERVER_PORT": "70000"},
		"half admin":  {"ADMIN_USERNAME": "admin"},
		"zero burst":  {"RATE_RPS": "1", "RATE_BURST": "0"},
		"negative op": {"MONGO_OP_TIMEOUT": "-1s"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			for k, v := range env {
				t.Setenv(k, v)
			}
			if _, err := Load(); err == nil {
				t.Fatal("expected an error")
			}
		})
	}
}
