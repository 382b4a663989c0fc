// Package sanitize 清洗用户输入的文本。
//
// Text 的输出是转义后的纯文本：不含任何标签与控制字符，长度不超过上限，
// 且 Text(Text(x, n), n) == Text(x, n)。
package sanitize

import (
	"html"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

const (
	MaxSubjectLength = 255
	MaxMessageLength = 10000
	MaxReplyLength   = 5000
	MaxNameLength    = 255
)

var (
	strict = bluemonday.StrictPolicy()
	rich   = newRichPolicy()
)

func newRichPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements("p", "br", "strong", "em", "u", "ul", "ol", "li", "h1", "h2", "h3")
	p.AllowAttrs("href", "title").OnElements("a")
	p.AllowURLSchemes("http", "https", "mailto")
	p.RequireParseableURLs(true)
	p.RequireNoFollowOnLinks(false)
	return p
}

// Text 去除所有标签与控制字符（保留 \n \t），裁剪并截断到 maxLength 个字符，返回转义文本。
// maxLength <= 0 表示不截断。
func Text(s string, maxLength int) string {
	if s == "" {
		return ""
	}
	plain := html.UnescapeString(strict.Sanitize(s))
	plain = strings.TrimSpace(stripControl(plain))
	if maxLength > 0 && utf8.RuneCountInString(plain) > maxLength {
		plain = strings.TrimSpace(string([]rune(plain)[:maxLength]))
	}
	return html.EscapeString(plain)
}

func Subject(s string) string { return Text(s, MaxSubjectLength) }
func Message(s string) string { return Text(s, MaxMessageLength) }
func Reply(s string) string   { return Text(s, MaxReplyLength) }
func Name(s string) string    { return Text(s, MaxNameLength) }

// RichHTML 仅用于管理员撰写的邮件正文：保留有限的格式标签，换行转为 <br>。
func RichHTML(s string, maxLength int) string {
	s = stripControl(s)
	if maxLength > 0 && utf8.RuneCountInString(s) > maxLength {
		s = string([]rune(s)[:maxLength])
	}
	s = strings.ReplaceAll(strings.TrimSpace(s), "\n", "<br>")
	return rich.Sanitize(s)
}

// IsBlank 判断清洗前的输入在裁剪后是否为空
func IsBlank(s string) bool { return strings.TrimSpace(s) == "" }

func stripControl(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if r < 32 || r == 127 {
			return -1
		}
		return r
	}, s)
}
