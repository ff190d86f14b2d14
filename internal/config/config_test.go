package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/ProtiusProtocol/pulse-africa-neon-sub000/internal/domain"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestValidateCollectsErrors(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "bogus"
	cfg.LLM.Provider = "llama"
	cfg.Attention.RecommendThreshold = 120
	cfg.Tenants = append(cfg.Tenants, TenantConfig{Slug: "augurion"})
	cfg.Server.TrustedProxies = []string{"10.0.0.0/8", "lb.internal"}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"unknown mode", "unknown provider", "recommend_threshold", "duplicate slug", `trusted proxy "lb.internal"`} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q missing %q", err, want)
		}
	}
}

func TestValidateWorkerSkipsPort(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "worker"
	cfg.Server.Port = 0
	if err := cfg.Validate(); err != nil {
		t.Fatalf("worker mode should not require a port: %v", err)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "augurion.toml")
	body := `
mode = "server"

[llm]
provider = "anthropic"
model = "claude-sonnet-4-5"
timeout = "45s"

[[tenants]]
slug = "kenya-desk"
name = "Kenya Desk"
categories = ["politics"]
report_kinds = ["executive_brief"]
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("AUGURION_SERVER_PORT", "9090")
	t.Setenv("AUGURION_SERVER_CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Mode != "server" {
		t.Errorf("Mode = %q", cfg.Mode)
	}
	if cfg.LLM.Provider != "anthropic" || cfg.LLM.Timeout.Duration != 45*time.Second {
		t.Errorf("LLM = %+v", cfg.LLM)
	}
	if cfg.LLM.MaxTokens != Defaults().LLM.MaxTokens {
		t.Errorf("MaxTokens default lost: %d", cfg.LLM.MaxTokens)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Port = %d, want 9090", cfg.Server.Port)
	}
	if diff := cmp.Diff([]string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins); diff != "" {
		t.Errorf("CORSOrigins mismatch (-want +got):\n%s", diff)
	}

	want := []domain.Tenant{{
		Slug:        "kenya-desk",
		Name:        "Kenya Desk",
		Categories:  []string{"politics"},
		ReportKinds: []domain.ReportKind{domain.ReportExecutiveBrief},
	}}
	if diff := cmp.Diff(want, cfg.DomainTenants()); diff != "" {
		t.Errorf("tenants mismatch (-want +got):\n%s", diff)
	}
}

func TestTenantLookup(t *testing.T) {
	cfg := Defaults()
	tn, err := cfg.Tenant("soccer-laduma")
	if err != nil {
		t.Fatalf("Tenant: %v", err)
	}
	if !tn.AllowsCategory("football") || tn.AllowsCategory("politics") {
		t.Errorf("unexpected category filter: %+v", tn.Categories)
	}
	if _, err := cfg.Tenant("nope"); !errors.Is(err, domain.ErrUnknownTenant) {
		t.Errorf("err = %v, want ErrUnknownTenant", err)
	}
}

func TestRedactedConfig(t *testing.T) {
	cfg := Defaults()
	cfg.LLM.APIKey = "sk-live"
	cfg.Supabase.Password = "pg"
	cfg.Server.AdminAPIKey = ""

	out := RedactedConfig(&cfg)
	if out.LLM.APIKey != redacted || out.Supabase.Password != redacted {
		t.Errorf("secrets not redacted: %+v %+v", out.LLM, out.Supabase)
	}
	if out.Server.AdminAPIKey != "" {
		t.Errorf("empty secret should stay empty, got %q", out.Server.AdminAPIKey)
	}
	if cfg.LLM.APIKey != "sk-live" {
		t.Error("original config mutated")
	}
	out.Tenants[0].Categories = append(out.Tenants[0].Categories, "x")
	if len(cfg.Tenants[0].Categories) != 0 {
		t.Error("tenant slice shared with original")
	}
}
