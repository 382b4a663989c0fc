package notify

import (
	"bytes"
	"fmt"
	"html"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"
)

const layoutHTML = `<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;">
{{.Body}}
<hr style="border: none; border-top: 1px solid #eee; margin: 24px 0;">
<p style="font-size: 12px; color: #999;">This message was sent by {{.AppName}}.</p>
</body>
</html>`

const threadCreatedHTML = `<h2>We received your support request</h2>
<p>Hi {{.Name}},</p>
<p>Thanks for reaching out. Your request <strong>{{.Subject}}</strong> has been created and our team will get back to you soon.</p>
<p><a href="{{.URL}}" style="display: inline-block; padding: 10px 18px; background: #2563eb; color: #fff; text-decoration: none; border-radius: 4px;">View your request</a></p>`

const threadCreatedText = `Hi {{.Name}},

Thanks for reaching out. Your request "{{.Subject}}" has been created and our team will get back to you soon.

View your request: {{.URL}}
`

var (
	layoutTmpl        = htmltemplate.Must(htmltemplate.New("layout").Parse(layoutHTML))
	threadCreatedTmpl = htmltemplate.Must(htmltemplate.New("thread_created").Parse(threadCreatedHTML))
	threadCreatedTxt  = texttemplate.Must(texttemplate.New("thread_created_text").Parse(threadCreatedText))
)

// ThreadCreated 用户提交工单后的确认邮件。subject 为已转义的存储值
func ThreadCreated(appName, frontendURL, toEmail, toName, subject, threadID string) (Email, error) {
	plainSubject := html.UnescapeString(subject)
	data := struct {
		Name    string
		Subject string
		URL     string
	}{
		Name:    toName,
		Subject: plainSubject,
		URL:     fmt.Sprintf("%s/dashboard/support?thread=%s", strings.TrimRight(frontendURL, "/"), threadID),
	}

	var inner bytes.Buffer
	if err := threadCreatedTmpl.Execute(&inner, data); err != nil {
		return Email{}, err
	}
	htmlBody, err := wrap(appName, htmltemplate.HTML(inner.String()))
	if err != nil {
		return Email{}, err
	}
	var text bytes.Buffer
	if err := threadCreatedTxt.Execute(&text, data); err != nil {
		return Email{}, err
	}
	return Email{
		To:       toEmail,
		ToName:   toName,
		Subject:  "Support Request Created: " + plainSubject,
		HTMLBody: htmlBody,
		TextBody: text.String(),
	}, nil
}

// AdminMessage 管理员直接发给用户的邮件。body 必须已经过清洗
func AdminMessage(appName, toEmail, toName, subject, safeHTMLBody, textBody string) (Email, error) {
	htmlBody, err := wrap(appName, htmltemplate.HTML(safeHTMLBody))
	if err != nil {
		return Email{}, err
	}
	return Email{
		To:       toEmail,
		ToName:   toName,
		Subject:  html.UnescapeString(subject),
		HTMLBody: htmlBody,
		TextBody: html.UnescapeString(textBody),
	}, nil
}

func wrap(appName string, body htmltemplate.HTML) (string, error) {
	var buf bytes.Buffer
	err := layoutTmpl.Execute(&buf, struct {
		AppName string
		Body    htmltemplate.HTML
	}{AppName: appName, Body: body})
	return buf.String(), err
}
