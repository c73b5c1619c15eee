package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Server.Port != 8080 {
		t.Errorf("port = %d", cfg.Server.Port)
	}
	if cfg.Cache.Addr() != "localhost:6379" {
		t.Errorf("cache addr = %s", cfg.Cache.Addr())
	}
	if cfg.Mongo.Database != "annotate_db" {
		t.Errorf("database = %s", cfg.Mongo.Database)
	}
	if cfg.Project.DefaultClass != cfg.Project.Classes[0] {
		t.Errorf("default class %q not first of %v", cfg.Project.DefaultClass, cfg.Project.Classes)
	}
	if cfg.Vision.Workers == 0 || cfg.Vision.FlowWindow == 0 {
		t.Errorf("vision defaults missing: %+v", cfg.Vision)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
server:
  port: 9000
project:
  default_name: scratch
  classes: [person, car]
logging:
  level: debug
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Server.Port != 9000 {
		t.Errorf("port = %d", cfg.Server.Port)
	}
	if cfg.Project.DefaultName != "scratch" || cfg.Project.DefaultClass != "person" {
		t.Errorf("project = %+v", cfg.Project)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("level = %s", cfg.Logging.Level)
	}
	// Unset fields still get defaults.
	if cfg.Cache.Port != 6379 {
		t.Errorf("cache port = %d", cfg.Cache.Port)
	}
}

func TestEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: 9000\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("ANNOTATE_SERVER_PORT", "9100")
	t.Setenv("ANNOTATE_CACHE_HOST", "redis.internal")
	t.Setenv("ANNOTATE_NATS_URL", "nats://queue:4222")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != 9100 {
		t.Errorf("port = %d, env override lost", cfg.Server.Port)
	}
	if cfg.Cache.Host != "redis.internal" {
		t.Errorf("cache host = %s", cfg.Cache.Host)
	}
	if cfg.NATS.URL != "nats://queue:4222" {
		t.Errorf("nats url = %s", cfg.NATS.URL)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/does/not/exist.yaml"); err == nil {
		t.Error("missing file accepted")
	}
}
