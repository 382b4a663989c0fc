package notify

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/d60-Lab/supportdesk/config"
	"github.com/d60-Lab/supportdesk/pkg/logger"
)

// ErrNoRecipient 收件人为空
var ErrNoRecipient = errors.New("email has no recipient")

// Email 一封待发送的邮件
type Email struct {
	To       string
	ToName   string
	Subject  string
	HTMLBody string
	TextBody string
}

// Notifier 发送邮件；调用方决定失败是否致命
type Notifier interface {
	Send(ctx context.Context, email Email) error
}

// New 按配置选择邮件通道
func New(cfg config.EmailConfig) (Notifier, error) {
	switch cfg.Provider {
	case "smtp":
		return NewSMTPNotifier(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.FromAddress, cfg.FromName), nil
	case "sendgrid":
		return NewSendGridNotifier(cfg.SendGridKey, cfg.FromAddress, cfg.FromName), nil
	case "log", "":
		return LogNotifier{}, nil
	default:
		return nil, fmt.Errorf("unknown email provider %q", cfg.Provider)
	}
}

// LogNotifier 只记录日志，用于开发环境
type LogNotifier struct{}

func (LogNotifier) Send(_ context.Context, email Email) error {
	if email.To == "" {
		return ErrNoRecipient
	}
	logger.Info("email (log provider)",
		zap.String("to", email.To),
		zap.String("subject", email.Subject),
		zap.Int("html_bytes", len(email.HTMLBody)),
	)
	return nil
}
