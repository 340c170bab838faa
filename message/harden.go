package message

import (
	"strings"

	"golang.org/x/net/html"
)

// contentPolicy allows inline styles and data: resources only. Scripts,
// frames, plugins, form targets and every network or file fetch are
// refused by the browser.
const contentPolicy = "default-src 'none'; " +
	"style-src 'unsafe-inline' data:; " +
	"img-src data:; " +
	"font-src data:; " +
	"script-src 'none'; " +
	"object-src 'none'; " +
	"frame-src 'none'; " +
	"form-action 'none'; " +
	"base-uri 'none'"

const policyTag = `<meta http-equiv="Content-Security-Policy" content="` + contentPolicy + `">`

// Harden prepares untrusted mail HTML for rendering by declaring a
// Content-Security-Policy ahead of any markup the mail controls.
// Browsers enforce every policy they encounter, so one declared later in
// html can only tighten it.
//
// The tag goes after a leading doctype and comments; anything placed in
// front of the doctype would switch the page to quirks mode.
func Harden(doc string) string {
	at := prologueLen(doc)

	var b strings.Builder
	b.Grow(len(policyTag) + len(doc))
	b.WriteString(doc[:at])
	b.WriteString(policyTag)
	b.WriteString(doc[at:])
	return b.String()
}

// prologueLen returns the byte length of the whitespace, comments and
// doctype that open doc.
func prologueLen(doc string) int {
	z := html.NewTokenizer(strings.NewReader(doc))
	n := 0
	for {
		tt := z.Next()
		raw := len(z.Raw())
		switch tt {
		case html.DoctypeToken, html.CommentToken:
			n += raw
		case html.TextToken:
			if strings.TrimSpace(string(z.Raw())) != "" {
				return n
			}
			n += raw
		default:
			return n
		}
	}
}
