package notify

import (
	"context"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// SendGridNotifier 通过 SendGrid v3 API 发送
type SendGridNotifier struct {
	client *sendgrid.Client
	from   *mail.Email
}

func NewSendGridNotifier(apiKey, fromAddr, fromName string) *SendGridNotifier {
	return &SendGridNotifier{client: sendgrid.NewSendClient(apiKey), from: mail.NewEmail(fromName, fromAddr)}
}

// newSendGridNotifierWithHost 指向自定义 API 地址（测试用）
func newSendGridNotifierWithHost(apiKey, host, fromAddr, fromName string) *SendGridNotifier {
	req := sendgrid.GetRequest(apiKey, "/v3/mail/send", host)
	req.Method = "POST"
	return &SendGridNotifier{client: &sendgrid.Client{Request: req}, from: mail.NewEmail(fromName, fromAddr)}
}

func (n *SendGridNotifier) Send(ctx context.Context, email Email) error {
	if email.To == "" {
		return ErrNoRecipient
	}
	to := mail.NewEmail(email.ToName, email.To)
	msg := mail.NewV3Mail()
	msg.SetFrom(n.from)
	msg.Subject = email.Subject
	p := mail.NewPersonalization()
	p.AddTos(to)
	msg.AddPersonalizations(p)
	if email.TextBody != "" {
		msg.AddContent(mail.NewContent("text/plain", email.TextBody))
	}
	if email.HTMLBody != "" {
		msg.AddContent(mail.NewContent("text/html", email.HTMLBody))
	}

	resp, err := n.client.SendWithContext(ctx, msg)
	if err != nil {
		return fmt.Errorf("sendgrid send: %w", err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("sendgrid send: status %d: %s", resp.StatusCode, resp.Body)
	}
	return nil
}
