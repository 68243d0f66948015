package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"strings"
)

// Service 负责校验请求携带的静态令牌并解析出对应主体。
type Service struct {
	mode   Mode
	tokens []StaticToken
	audit  *slog.Logger
}

// Option 定制 Service 行为。
type Option func(*Service)

// WithAuditLogger 指定审计日志输出。
func WithAuditLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.audit = logger
	}
}

// NewService 根据配置构建认证服务。
func NewService(cfg Config, opts ...Option) (*Service, error) {
	mode := cfg.Mode
	if mode == "" {
		mode = ModeDisabled
	}
	switch mode {
	case ModeDisabled, ModeStatic:
	default:
		return nil, errors.New("不支持的认证模式: " + string(mode))
	}
	if mode == ModeStatic && len(cfg.Tokens) == 0 {
		return nil, errors.New("static 模式至少需要配置一个令牌")
	}
	for _, token := range cfg.Tokens {
		if strings.TrimSpace(token.Token) == "" {
			return nil, errors.New("静态令牌不能为空")
		}
	}

	svc := &Service{mode: mode, tokens: append([]StaticToken(nil), cfg.Tokens...)}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc, nil
}

// Enabled 报告认证是否启用。
func (s *Service) Enabled() bool {
	return s != nil && s.mode != ModeDisabled
}

// AuthenticateRequest 解析 Authorization 头并返回令牌对应的主体。
// 令牌比较使用常数时间算法，避免计时侧信道泄露令牌内容。
func (s *Service) AuthenticateRequest(_ context.Context, authorization string) (*Subject, error) {
	if s == nil || s.mode == ModeDisabled {
		return nil, nil
	}
	token := strings.TrimSpace(authorization)
	if token == "" {
		return nil, ErrMissingToken
	}
	const prefix = "bearer "
	if len(token) <= len(prefix) || !strings.EqualFold(token[:len(prefix)], prefix) {
		return nil, ErrInvalidToken
	}
	token = strings.TrimSpace(token[len(prefix):])
	if token == "" {
		return nil, ErrMissingToken
	}

	for _, candidate := range s.tokens {
		if subtle.ConstantTimeCompare([]byte(candidate.Token), []byte(token)) == 1 {
			if candidate.Disabled {
				return nil, ErrSubjectRevoked
			}
			subject := &Subject{
				Name:        candidate.Name,
				Permissions: append([]string(nil), candidate.Permissions...),
			}
			subject.normalise()
			return subject, nil
		}
	}
	return nil, ErrInvalidToken
}
