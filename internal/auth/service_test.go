package auth

import (
	"errors"
	"testing"

	"NFTScout/internal/config"
)

func TestNewServiceValidation(t *testing.T) {
	if _, err := NewService(config.AuthConfig{Mode: "kerberos"}); err == nil {
		t.Fatalf("不支持的模式应被拒绝")
	}
	if _, err := NewService(config.AuthConfig{Mode: "token"}); err == nil {
		t.Fatalf("token 模式必须配置令牌")
	}

	svc, err := NewService(config.AuthConfig{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if svc.Enabled() {
		t.Fatalf("默认配置应关闭鉴权")
	}
}

func TestAuthenticate(t *testing.T) {
	svc, err := NewService(config.AuthConfig{
		Mode: "token",
		Tokens: []config.TokenSeed{
			{Name: "ci", Token: "top-secret"},
			{Name: "ops", Token: "other-secret"},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !svc.Enabled() {
		t.Fatalf("token 模式应开启鉴权")
	}

	caller, err := svc.Authenticate("Bearer other-secret")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if caller.Name != "ops" {
		t.Fatalf("unexpected caller: %+v", caller)
	}

	// 大小写不敏感的 scheme 与两侧空白都可接受。
	if _, err := svc.Authenticate("bearer top-secret"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := svc.Authenticate(""); !errors.Is(err, ErrMissingToken) {
		t.Fatalf("缺少令牌应返回 ErrMissingToken: %v", err)
	}
	if _, err := svc.Authenticate("Bearer wrong"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("错误令牌应返回 ErrInvalidToken: %v", err)
	}
	if _, err := svc.Authenticate("Basic dXNlcjpwYXNz"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("非 Bearer 头应返回 ErrInvalidToken: %v", err)
	}
	if _, err := svc.Authenticate("Bearer   "); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("空令牌应被拒绝: %v", err)
	}
}
