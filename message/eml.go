package message

import (
	"bytes"
	"encoding/base64"
	"errors"
	"io"
	"mime"
	"sort"
	"strings"

	gomessage "github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
)

// inlinePart is a body part that the HTML may reference by Content-ID.
type inlinePart struct {
	contentType string
	data        []byte
}

// ParseEML decodes an RFC 5322 message. The first text/html part that is
// not an attachment becomes the body; inline parts with a Content-ID are
// embedded as data: URIs wherever the HTML refers to cid:<id>.
func ParseEML(r io.Reader) (*Message, error) {
	mr, err := mail.CreateReader(r)
	if err != nil && !gomessage.IsUnknownCharset(err) {
		return nil, malformed("reading eml header", err)
	}
	defer mr.Close()

	msg := &Message{Format: FormatEML}
	if subject, err := mr.Header.Subject(); err == nil {
		msg.Subject = subject
	}

	var (
		html    string
		found   bool
		inlines = map[string]inlinePart{}
	)
	for {
		p, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if !gomessage.IsUnknownCharset(err) {
				return nil, malformed("reading eml part", err)
			}
			if p == nil {
				continue
			}
		}

		h, ok := p.Header.(*mail.InlineHeader)
		if !ok {
			// Attachments may still be referenced inline by Content-ID.
			if ah, ok := p.Header.(*mail.AttachmentHeader); ok {
				if cid := contentID(ah.Get("Content-Id")); cid != "" {
					collectInline(inlines, cid, ah.Get("Content-Type"), p.Body)
				}
			}
			continue
		}

		ct, _, _ := h.ContentType()
		switch {
		case ct == "text/html" && !found:
			b, err := io.ReadAll(p.Body)
			if err != nil && !gomessage.IsUnknownCharset(err) {
				return nil, malformed("reading html part", err)
			}
			html, found = string(b), true
		case contentID(h.Get("Content-Id")) != "":
			collectInline(inlines, contentID(h.Get("Content-Id")), h.Get("Content-Type"), p.Body)
		}
	}

	return msg.withBody(embedInline(html, inlines)), nil
}

func collectInline(dst map[string]inlinePart, cid, contentType string, body io.Reader) {
	b, err := io.ReadAll(body)
	if err != nil {
		return
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mt = "application/octet-stream"
	}
	dst[cid] = inlinePart{contentType: mt, data: b}
}

// contentID strips the angle brackets from a Content-ID header value.
func contentID(v string) string {
	return strings.TrimSuffix(strings.TrimPrefix(strings.TrimSpace(v), "<"), ">")
}

// embedInline rewrites cid: references in html into data: URIs. Longer
// IDs are tried first so that cid:img10 is never matched as cid:img1.
func embedInline(html string, inlines map[string]inlinePart) string {
	if html == "" || len(inlines) == 0 {
		return html
	}
	cids := make([]string, 0, len(inlines))
	for cid := range inlines {
		cids = append(cids, cid)
	}
	sort.Slice(cids, func(i, j int) bool {
		if len(cids[i]) != len(cids[j]) {
			return len(cids[i]) > len(cids[j])
		}
		return cids[i] < cids[j]
	})

	pairs := make([]string, 0, 2*len(cids))
	for _, cid := range cids {
		part := inlines[cid]
		var uri bytes.Buffer
		uri.WriteString("data:")
		uri.WriteString(part.contentType)
		uri.WriteString(";base64,")
		uri.WriteString(base64.StdEncoding.EncodeToString(part.data))
		pairs = append(pairs, "cid:"+cid, uri.String())
	}
	return strings.NewReplacer(pairs...).Replace(html)
}
