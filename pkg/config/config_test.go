package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Recommend.DefaultTopK != 5 || cfg.Recommend.MaxTopK != 20 {
		t.Errorf("top_k defaults = %d/%d, want 5/20", cfg.Recommend.DefaultTopK, cfg.Recommend.MaxTopK)
	}
	if cfg.Vectorizer.NGramMax != 2 {
		t.Errorf("ngramMax = %d, want 2", cfg.Vectorizer.NGramMax)
	}
	if cfg.Artifacts.Backend != "fs" {
		t.Errorf("artifact backend = %q, want fs", cfg.Artifacts.Backend)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
server:
  port: 9100
dataSource:
  driver: sqlite
sqlite:
  path: /tmp/x.db
vectorizer:
  ngramMax: 1
  minDf: 2
redis:
  cacheTTL: 30s
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("IR_SERVER_PORT", "9200")
	t.Setenv("IR_KAFKA_BROKERS", "a:1,b:2")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9200 {
		t.Errorf("port = %d, want env override 9200", cfg.Server.Port)
	}
	if cfg.DataSource.Driver != "sqlite" || cfg.SQLite.Path != "/tmp/x.db" {
		t.Errorf("data source = %+v %+v", cfg.DataSource, cfg.SQLite)
	}
	if cfg.Vectorizer.NGramMax != 1 || cfg.Vectorizer.MinDF != 2 {
		t.Errorf("vectorizer = %+v", cfg.Vectorizer)
	}
	if cfg.Redis.CacheTTL != 30*time.Second {
		t.Errorf("cacheTTL = %v, want 30s", cfg.Redis.CacheTTL)
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[1] != "b:2" {
		t.Errorf("brokers = %v", cfg.Kafka.Brokers)
	}
	// Values absent from the file keep their defaults.
	if cfg.Artifacts.IndexName != "internships.index" {
		t.Errorf("index name = %q", cfg.Artifacts.IndexName)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad driver", func(c *Config) { c.DataSource.Driver = "mysql" }},
		{"bad backend", func(c *Config) { c.Artifacts.Backend = "s3" }},
		{"same artifact names", func(c *Config) { c.Artifacts.IDsName = c.Artifacts.IndexName }},
		{"top k over max", func(c *Config) { c.Recommend.DefaultTopK = 50 }},
		{"zero ngram", func(c *Config) { c.Vectorizer.NGramMax = 0 }},
		{"admin without keys", func(c *Config) { c.Admin.Enabled = true }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestDevelopmentConfigLoads(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "configs", "development.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DataSource.Driver != "sqlite" || cfg.Kafka.Enabled || cfg.Admin.Enabled {
		t.Errorf("development config = %+v", cfg)
	}
	if cfg.Analytics.FlushInterval != 5*time.Second || cfg.Rebuild.Debounce != 10*time.Second {
		t.Errorf("durations not parsed: analytics=%v debounce=%v", cfg.Analytics.FlushInterval, cfg.Rebuild.Debounce)
	}
}

func TestAdminKeysFromEnv(t *testing.T) {
	t.Setenv("IR_ADMIN_ENABLED", "true")
	t.Setenv("IR_ADMIN_API_KEYS", "k1,k2")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.Admin.Enabled || len(cfg.Admin.APIKeys) != 2 || cfg.Admin.APIKeys[1] != "k2" {
		t.Errorf("admin = %+v", cfg.Admin)
	}
}
