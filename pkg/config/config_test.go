package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Recommender.DefaultTopN != 5 {
		t.Errorf("DefaultTopN = %d, want 5", cfg.Recommender.DefaultTopN)
	}
	if cfg.Recommender.CorpusSource != SourceSample {
		t.Errorf("CorpusSource = %q, want %q", cfg.Recommender.CorpusSource, SourceSample)
	}
	if len(cfg.Kafka.Brokers) != 0 {
		t.Errorf("Kafka should be disabled by default, brokers = %v", cfg.Kafka.Brokers)
	}
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9000
recommender:
  corpusSource: file
  corpusFile: /data/catalog.yaml
  defaultTopN: 3
  maxTopN: 20
  rebuildInterval: 10m
redis:
  cacheTTL: 30s
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("Port = %d, want 9000", cfg.Server.Port)
	}
	if cfg.Recommender.CorpusFile != "/data/catalog.yaml" || cfg.Recommender.DefaultTopN != 3 {
		t.Errorf("Recommender = %+v", cfg.Recommender)
	}
	if cfg.Recommender.RebuildInterval != 10*time.Minute {
		t.Errorf("RebuildInterval = %v, want 10m", cfg.Recommender.RebuildInterval)
	}
	if cfg.Redis.CacheTTL != 30*time.Second {
		t.Errorf("CacheTTL = %v, want 30s", cfg.Redis.CacheTTL)
	}
	if cfg.Postgres.Port != 5432 {
		t.Errorf("unset fields should keep defaults, Postgres.Port = %d", cfg.Postgres.Port)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("RC_SERVER_PORT", "7070")
	t.Setenv("RC_KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("RC_DEFAULT_TOP_N", "7")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 7070 {
		t.Errorf("Port = %d, want 7070", cfg.Server.Port)
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[1] != "k2:9092" {
		t.Errorf("Brokers = %v", cfg.Kafka.Brokers)
	}
	if cfg.Recommender.DefaultTopN != 7 {
		t.Errorf("DefaultTopN = %d, want 7", cfg.Recommender.DefaultTopN)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"default ok", func(*Config) {}, ""},
		{"file without path", func(c *Config) { c.Recommender.CorpusSource = SourceFile }, "corpusFile"},
		{"unknown source", func(c *Config) { c.Recommender.CorpusSource = "s3" }, "unknown"},
		{"negative default", func(c *Config) { c.Recommender.DefaultTopN = -1 }, "defaultTopN"},
		{"max below default", func(c *Config) { c.Recommender.MaxTopN = 2 }, "maxTopN"},
		{"negative interval", func(c *Config) { c.Recommender.RebuildInterval = -time.Second }, "rebuildInterval"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestPostgresDSN(t *testing.T) {
	dsn := Default().Postgres.DSN()
	want := "host=localhost port=5432 user=recommender password=localdev dbname=recommender sslmode=disable"
	if dsn != want {
		t.Errorf("DSN() = %q, want %q", dsn, want)
	}
}
