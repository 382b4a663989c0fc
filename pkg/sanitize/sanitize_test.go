package sanitize

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		max  int
		want string
	}{
		{name: "plain", in: "Hello there", max: 100, want: "Hello there"},
		{name: "trims", in: "   padded\n ", max: 100, want: "padded"},
		{name: "strips tags", in: "<b>bold</b> move", max: 100, want: "bold move"},
		{name: "drops script", in: "hi<script>alert(1)</script>", max: 100, want: "hi"},
		{name: "escapes specials", in: "a < b & c", max: 100, want: "a &lt; b &amp; c"},
		{name: "keeps newline and tab", in: "line1\n\tline2", max: 100, want: "line1\n\tline2"},
		{name: "removes control", in: "bell\x07 and nul\x00", max: 100, want: "bell and nul"},
		{name: "entity control", in: "x&#1;y", max: 100, want: "xy"},
		{name: "truncates runes", in: "héllo wörld", max: 5, want: "héllo"},
		{name: "truncate then trim", in: "abcd efgh", max: 5, want: "abcd"},
		{name: "no limit", in: strings.Repeat("z", 20), max: 0, want: strings.Repeat("z", 20)},
		{name: "empty", in: "", max: 10, want: ""},
		{name: "only markup", in: "<p></p>", max: 10, want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Text(tt.in, tt.max))
		})
	}
}

func TestText_Idempotent(t *testing.T) {
	inputs := []string{
		"plain",
		"<i>x</i> & y",
		"a &amp; b",
		"&lt;script&gt;alert(1)&lt;/script&gt;",
		"quote \" and ' apostrophe",
		"  \r\n spaced \t ",
		"x&#1;y",
		strings.Repeat("é<", 40),
		"<a href=\"javascript:alert(1)\">click</a>",
	}
	for _, in := range inputs {
		for _, max := range []int{0, 5, 17, 255} {
			once := Text(in, max)
			assert.Equal(t, once, Text(once, max), "input %q max %d", in, max)
		}
	}
}

func TestText_LengthBound(t *testing.T) {
	out := Subject(strings.Repeat("s", 400))
	assert.Equal(t, MaxSubjectLength, utf8.RuneCountInString(out))

	out = Reply(strings.Repeat("r", MaxReplyLength+1))
	assert.Equal(t, MaxReplyLength, utf8.RuneCountInString(out))
}

func TestRichHTML(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		contains []string
		absent   []string
	}{
		{
			name:     "allowed tags survive",
			in:       "<p><strong>Hi</strong> <em>there</em></p>",
			contains: []string{"<p>", "<strong>Hi</strong>", "<em>there</em>"},
		},
		{
			name:     "newlines become br",
			in:       "one\ntwo",
			contains: []string{"one<br", "two"},
			absent:   []string{"\n"},
		},
		{
			name:     "script removed",
			in:       "<script>alert(1)</script><p>ok</p>",
			contains: []string{"<p>ok</p>"},
			absent:   []string{"script", "alert"},
		},
		{
			name:   "javascript href dropped",
			in:     `<a href="javascript:alert(1)" title="t">x</a>`,
			absent: []string{"javascript"},
		},
		{
			name:     "https link kept",
			in:       `<a href="https://example.com" title="site">site</a>`,
			contains: []string{`href="https://example.com"`, `title="site"`},
		},
		{
			name:     "disallowed attrs dropped",
			in:       `<p onclick="x()" style="color:red">p</p>`,
			contains: []string{"<p>p</p>"},
			absent:   []string{"onclick", "style"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := RichHTML(tt.in, MaxMessageLength)
			for _, s := range tt.contains {
				assert.Contains(t, out, s)
			}
			for _, s := range tt.absent {
				assert.NotContains(t, out, s)
			}
		})
	}
}

func TestIsBlank(t *testing.T) {
	assert.True(t, IsBlank(""))
	assert.True(t, IsBlank(" \n\t "))
	assert.False(t, IsBlank(" x "))
}
