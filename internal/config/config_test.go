package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nftscout.json")
	content := `{
		"chains": {"definitions": "chains.yaml"},
		"agent": {"max_steps": 10}
	}`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Address != ":8080" {
		t.Fatalf("unexpected address: %q", cfg.Server.Address)
	}
	if cfg.Auth.Mode != "disabled" {
		t.Fatalf("unexpected auth mode: %q", cfg.Auth.Mode)
	}
	if cfg.Storage.Collections.Driver != "memory" || cfg.History.Driver != "memory" {
		t.Fatalf("unexpected drivers: %+v", cfg.Storage)
	}
	if cfg.Agent.MaxSteps != 10 {
		t.Fatalf("显式配置不应被默认值覆盖: %d", cfg.Agent.MaxSteps)
	}
	if cfg.Agent.SessionTimeoutSeconds != 60 {
		t.Fatalf("unexpected session timeout: %d", cfg.Agent.SessionTimeoutSeconds)
	}
	if len(cfg.MCP.DataTools) == 0 {
		t.Fatalf("数据类工具列表应有默认值")
	}
	// 相对路径相对配置文件所在目录展开。
	if cfg.Chains.Definitions != filepath.Join(dir, "chains.yaml") {
		t.Fatalf("unexpected chains path: %q", cfg.Chains.Definitions)
	}
}

func TestLoadFailures(t *testing.T) {
	if _, err := Load(""); err == nil {
		t.Fatalf("空路径应报错")
	}
	if _, err := Load("/nonexistent/nftscout.json"); err == nil {
		t.Fatalf("缺失文件应报错")
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(path, []byte("{bad"), 0o600); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("非法 JSON 应报错")
	}
}
