package notify

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"mime/multipart"
	"net/mail"
	"net/smtp"
	"net/textproto"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// SMTPNotifier 通过 SMTP 发送 multipart/alternative 邮件
type SMTPNotifier struct {
	addr     string
	host     string
	user     string
	password string
	from     mail.Address

	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPNotifier(host string, port int, user, password, fromAddr, fromName string) *SMTPNotifier {
	return &SMTPNotifier{
		addr:     host + ":" + strconv.Itoa(port),
		host:     host,
		user:     user,
		password: password,
		from:     mail.Address{Name: fromName, Address: fromAddr},
		send:     smtp.SendMail,
	}
}

func (n *SMTPNotifier) Send(ctx context.Context, email Email) error {
	if email.To == "" {
		return ErrNoRecipient
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	msg, err := n.buildMessage(email)
	if err != nil {
		return err
	}
	var auth smtp.Auth
	if n.user != "" {
		auth = smtp.PlainAuth("", n.user, n.password, n.host)
	}

	// net/smtp 不支持 context，放到 goroutine 里以便调用方超时返回
	done := make(chan error, 1)
	go func() { done <- n.send(n.addr, auth, n.from.Address, []string{email.To}, msg) }()
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("smtp send: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (n *SMTPNotifier) buildMessage(email Email) ([]byte, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	parts := []struct {
		contentType string
		content     string
	}{
		{"text/plain; charset=UTF-8", email.TextBody},
		{"text/html; charset=UTF-8", email.HTMLBody},
	}
	for _, p := range parts {
		if p.content == "" {
			continue
		}
		w, err := mw.CreatePart(textproto.MIMEHeader{"Content-Type": {p.contentType}})
		if err != nil {
			return nil, err
		}
		if _, err := w.Write([]byte(p.content)); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	to := mail.Address{Name: email.ToName, Address: email.To}
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "From: %s\r\n", n.from.String())
	fmt.Fprintf(&buf, "To: %s\r\n", to.String())
	fmt.Fprintf(&buf, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", email.Subject))
	fmt.Fprintf(&buf, "Date: %s\r\n", time.Now().UTC().Format(time.RFC1123Z))
	fmt.Fprintf(&buf, "Message-ID: <%s@%s>\r\n", uuid.NewString(), n.host)
	buf.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: multipart/alternative; boundary=%q\r\n\r\n", mw.Boundary())
	buf.Write(body.Bytes())
	return buf.Bytes(), nil
}
