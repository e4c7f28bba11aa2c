package auth

import (
	"crypto/subtle"
	"log/slog"
	"strings"

	"NFTScout/internal/config"
	xerrors "NFTScout/internal/errors"
	"NFTScout/pkg/logger"
)

// Mode 表示鉴权模式。
type Mode string

const (
	// ModeDisabled 关闭鉴权，所有请求直接放行。
	ModeDisabled Mode = "disabled"
	// ModeToken 使用静态令牌鉴权。
	ModeToken Mode = "token"
)

// 鉴权相关的错误。
var (
	ErrMissingToken = xerrors.New(xerrors.CodeAuth, "缺少访问令牌")
	ErrInvalidToken = xerrors.New(xerrors.CodeAuth, "访问令牌无效")
)

// Service 负责校验调用方的静态令牌。
type Service struct {
	mode   Mode
	tokens []config.TokenSeed
	audit  *slog.Logger
}

// NewService 根据配置创建鉴权服务。
func NewService(cfg config.AuthConfig) (*Service, error) {
	mode := Mode(strings.ToLower(strings.TrimSpace(cfg.Mode)))
	if mode == "" {
		mode = ModeDisabled
	}
	switch mode {
	case ModeDisabled, ModeToken:
	default:
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "不支持的鉴权模式: "+cfg.Mode)
	}
	if mode == ModeToken && len(cfg.Tokens) == 0 {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "token 模式至少需要一个令牌")
	}
	return &Service{
		mode:   mode,
		tokens: cfg.Tokens,
		audit:  logger.Audit(),
	}, nil
}

// Enabled 报告鉴权是否开启。
func (s *Service) Enabled() bool {
	return s != nil && s.mode != ModeDisabled
}

// Authenticate 校验 Authorization 头，返回对应的调用方身份。
// 令牌比对使用常数时间比较。
func (s *Service) Authenticate(authorization string) (*Caller, error) {
	token, err := parseBearer(authorization)
	if err != nil {
		return nil, err
	}
	for _, seed := range s.tokens {
		if subtle.ConstantTimeCompare([]byte(seed.Token), []byte(token)) == 1 {
			return &Caller{Name: seed.Name}, nil
		}
	}
	return nil, ErrInvalidToken
}

func parseBearer(authorization string) (string, error) {
	authorization = strings.TrimSpace(authorization)
	if authorization == "" {
		return "", ErrMissingToken
	}
	parts := strings.SplitN(authorization, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", ErrInvalidToken
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", ErrMissingToken
	}
	return token, nil
}
