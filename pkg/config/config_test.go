package config

import (
    "os"
    "path/filepath"
    "testing"
)

const minimalYAML = `
environment: test
scraper:
  endpoint: http://localhost:8000/scrape-stream
`

func writeConfig(t *testing.T, body string) string {
    t.Helper()
    path := filepath.Join(t.TempDir(), "config.yaml")
    if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
        t.Fatalf("write config: %v", err)
    }
    return path
}

func TestLoadDefaults(t *testing.T) {
    c, err := Load(writeConfig(t, minimalYAML))
    if err != nil {
        t.Fatalf("load: %v", err)
    }
    if c.Scraper.Transport != "sse" {
        t.Fatalf("expected sse transport default, got %q", c.Scraper.Transport)
    }
    if c.Scraper.MaxProducts != 10 {
        t.Fatalf("expected catalog cap default 10, got %d", c.Scraper.MaxProducts)
    }
    if c.Sink.Type != "none" {
        t.Fatalf("expected sink default none, got %q", c.Sink.Type)
    }
    if c.Redis.Prefix != "pricehunter" {
        t.Fatalf("expected redis prefix default, got %q", c.Redis.Prefix)
    }
}

func TestLoadRejectsMissingEndpoint(t *testing.T) {
    _, err := Load(writeConfig(t, "environment: test\n"))
    if err == nil {
        t.Fatalf("expected validation error for missing scraper endpoint")
    }
}

func TestLoadRejectsBadTransport(t *testing.T) {
    _, err := Load(writeConfig(t, minimalYAML+"  transport: carrier-pigeon\n"))
    if err == nil {
        t.Fatalf("expected validation error for unknown transport")
    }
}

func TestLoadRejectsKafkaSinkWithoutBrokers(t *testing.T) {
    _, err := Load(writeConfig(t, minimalYAML+`
sink:
  type: kafka
`))
    if err == nil {
        t.Fatalf("expected validation error for kafka sink without brokers")
    }
}

func TestLoadWithEnvOverrides(t *testing.T) {
    t.Setenv("SCRAPER_ENDPOINT", "http://scraper:9000/stream")
    t.Setenv("REDIS_ADDR", "redis-a:6380")
    c, err := LoadWithEnv(writeConfig(t, minimalYAML))
    if err != nil {
        t.Fatalf("load: %v", err)
    }
    if c.Scraper.Endpoint != "http://scraper:9000/stream" {
        t.Fatalf("env override not applied: %q", c.Scraper.Endpoint)
    }
    if c.Redis.Host != "redis-a" || c.Redis.Port != 6380 {
        t.Fatalf("redis addr override not applied: %s:%d", c.Redis.Host, c.Redis.Port)
    }
}
