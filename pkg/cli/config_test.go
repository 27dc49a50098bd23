package cli

import (
	"path/filepath"
	"testing"
)

func TestConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg, err := LoadConfigWithPath("sheep", path)
	if err != nil {
		t.Fatalf("LoadConfigWithPath() error = %v", err)
	}
	if err := cfg.AddContext("dev", &Context{
		Provider: "openai",
		APIKey:   "sk-test",
		Model:    "gpt-4o-mini",
	}); err != nil {
		t.Fatalf("AddContext() error = %v", err)
	}
	if err := cfg.UseContext("dev"); err != nil {
		t.Fatalf("UseContext() error = %v", err)
	}

	reloaded, err := LoadConfigWithPath("sheep", path)
	if err != nil {
		t.Fatalf("reload error = %v", err)
	}
	cur, err := reloaded.GetCurrentContext()
	if err != nil {
		t.Fatalf("GetCurrentContext() error = %v", err)
	}
	if cur.Provider != "openai" || cur.APIKey != "sk-test" || cur.Model != "gpt-4o-mini" {
		t.Fatalf("context = %+v", cur)
	}
	if cur.Name != "dev" {
		t.Errorf("name = %q, want dev", cur.Name)
	}
}

func TestResolveContext(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg, err := LoadConfigWithPath("sheep", path)
	if err != nil {
		t.Fatalf("LoadConfigWithPath() error = %v", err)
	}
	if _, err := cfg.ResolveContext(""); err == nil {
		t.Error("no current context should error")
	}
	if _, err := cfg.ResolveContext("missing"); err == nil {
		t.Error("unknown context should error")
	}

	if err := cfg.AddContext("a", &Context{Provider: "mock"}); err != nil {
		t.Fatalf("AddContext() error = %v", err)
	}
	if err := cfg.AddContext("b", &Context{Provider: "gemini"}); err != nil {
		t.Fatalf("AddContext() error = %v", err)
	}
	if err := cfg.UseContext("a"); err != nil {
		t.Fatalf("UseContext() error = %v", err)
	}

	cur, err := cfg.ResolveContext("")
	if err != nil || cur.Provider != "mock" {
		t.Fatalf("ResolveContext(\"\") = %+v, %v", cur, err)
	}
	named, err := cfg.ResolveContext("b")
	if err != nil || named.Provider != "gemini" {
		t.Fatalf("ResolveContext(b) = %+v, %v", named, err)
	}
}

func TestDeleteContextClearsCurrent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg, err := LoadConfigWithPath("sheep", path)
	if err != nil {
		t.Fatalf("LoadConfigWithPath() error = %v", err)
	}
	if err := cfg.AddContext("dev", &Context{Provider: "mock"}); err != nil {
		t.Fatalf("AddContext() error = %v", err)
	}
	if err := cfg.UseContext("dev"); err != nil {
		t.Fatalf("UseContext() error = %v", err)
	}
	if err := cfg.DeleteContext("dev"); err != nil {
		t.Fatalf("DeleteContext() error = %v", err)
	}
	if cfg.CurrentContext != "" {
		t.Errorf("current context = %q after delete, want empty", cfg.CurrentContext)
	}
	if err := cfg.DeleteContext("dev"); err == nil {
		t.Error("deleting a missing context should error")
	}
}

func TestMaskAPIKey(t *testing.T) {
	cases := map[string]string{
		"":             "",
		"short":        "*****",
		"sk-1234567890": "sk-1*****7890",
	}
	for in, want := range cases {
		if got := MaskAPIKey(in); got != want {
			t.Errorf("MaskAPIKey(%q) = %q, want %q", in, got, want)
		}
	}
}
