// Package mailmsg reduces an RFC 5322 message to its sender and the body
// lines that may carry document identifiers.
package mailmsg

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"

	"github.com/communalgrowth/docsub/internal/errors"
)

// maxPartSize bounds how much of one decoded body part is read.
const maxPartSize = 1 << 20

// maxDepth bounds multipart nesting.
const maxDepth = 8

// Message is a parsed mail message.
type Message struct {
	From      string   `json:"from"`
	Subject   string   `json:"subject,omitempty"`
	MessageID string   `json:"message_id,omitempty"`
	Lines     []string `json:"lines"`
}

// Parse reads a message. The sender is the address of the From header.
// Text parts win over HTML parts; HTML is only used when the message has
// no text at all.
func Parse(r io.Reader) (*Message, error) {
	msg, err := mail.ReadMessage(r)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeValidation, "read message")
	}

	from, err := parseFrom(msg.Header.Get("From"))
	if err != nil {
		return nil, err
	}

	var parts bodyParts
	if err := parts.collect(msg.Header, msg.Body, 0); err != nil {
		return nil, errors.Wrap(err, errors.CodeValidation, "read body")
	}

	out := &Message{
		From:      from,
		Subject:   decodeHeader(msg.Header.Get("Subject")),
		MessageID: strings.Trim(msg.Header.Get("Message-Id"), "<> "),
	}
	if parts.plain.Len() > 0 {
		out.Lines = PlainLines(parts.plain.String())
	} else {
		out.Lines, err = HTMLLines(strings.NewReader(parts.html.String()))
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeValidation, "parse html body")
		}
	}
	return out, nil
}

func parseFrom(header string) (string, error) {
	if strings.TrimSpace(header) == "" {
		return "", errors.Validation("message has no From header")
	}
	addr, err := mailAddressParser.Parse(header)
	if err != nil {
		return "", errors.Wrapf(err, errors.CodeValidation, "invalid From header %q", header)
	}
	return addr.Address, nil
}

var mailAddressParser = &mail.AddressParser{WordDecoder: wordDecoder}

var wordDecoder = &mime.WordDecoder{CharsetReader: charset.NewReaderLabel}

func decodeHeader(s string) string {
	d, err := wordDecoder.DecodeHeader(s)
	if err != nil {
		return s
	}
	return d
}

// header is the subset of a MIME header this package reads.
type header interface {
	Get(key string) string
}

type bodyParts struct {
	plain strings.Builder
	html  strings.Builder
}

// collect walks a MIME entity and appends decoded text/plain and text/html
// content.
func (p *bodyParts) collect(h header, body io.Reader, depth int) error {
	if depth > maxDepth {
		return fmt.Errorf("multipart nesting deeper than %d", maxDepth)
	}

	mediaType, params, err := mime.ParseMediaType(h.Get("Content-Type"))
	if err != nil {
		// RFC 2045 default.
		mediaType, params = "text/plain", map[string]string{"charset": "us-ascii"}
	}

	if strings.HasPrefix(mediaType, "multipart/") {
		boundary := params["boundary"]
		if boundary == "" {
			return fmt.Errorf("%s without boundary", mediaType)
		}
		mr := multipart.NewReader(body, boundary)
		for {
			part, err := mr.NextRawPart()
			if err == io.EOF {
				return nil
			}
			if err != nil {
				return err
			}
			err = p.collect(part.Header, part, depth+1)
			part.Close()
			if err != nil {
				return err
			}
		}
	}

	if disp, _, err := mime.ParseMediaType(h.Get("Content-Disposition")); err == nil && disp == "attachment" {
		return nil
	}

	var dst *strings.Builder
	switch mediaType {
	case "text/plain":
		dst = &p.plain
	case "text/html":
		dst = &p.html
	default:
		return nil
	}

	text, err := decodePart(body, h.Get("Content-Transfer-Encoding"), params["charset"])
	if err != nil {
		return err
	}
	dst.WriteString(text)
	if !strings.HasSuffix(text, "\n") {
		dst.WriteByte('\n')
	}
	return nil
}

// decodePart undoes the transfer encoding and converts the charset to UTF-8.
func decodePart(body io.Reader, encoding, cs string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "quoted-printable":
		body = quotedprintable.NewReader(body)
	case "base64":
		body = base64.NewDecoder(base64.StdEncoding, body)
	}

	raw, err := io.ReadAll(io.LimitReader(body, maxPartSize))
	if err != nil {
		return "", fmt.Errorf("decode %s part: %w", encoding, err)
	}

	if cs == "" || strings.EqualFold(cs, "utf-8") || strings.EqualFold(cs, "us-ascii") {
		return string(raw), nil
	}
	r, err := charset.NewReaderLabel(cs, bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("charset %s: %w", cs, err)
	}
	utf8, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("charset %s: %w", cs, err)
	}
	return string(utf8), nil
}

// PlainLines splits a text body into trimmed, non-blank lines and cuts it
// at the first "--" signature separator.
func PlainLines(body string) []string {
	lines := make([]string, 0, 8)
	for line := range strings.Lines(body) {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "--" {
			break
		}
		lines = append(lines, line)
	}
	return lines
}

// HTMLLines returns the non-blank text nodes of an HTML body in document
// order, up to a "-- " signature marker. Script and style content is
// ignored.
func HTMLLines(r io.Reader) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, err
	}
	doc.Find("head, script, style").Remove()

	lines := make([]string, 0, 8)
	done := false

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if done {
			return
		}
		if n.Type == html.TextNode {
			if n.Data == "-- " || strings.TrimSpace(n.Data) == "--" {
				done = true
				return
			}
			if s := strings.TrimSpace(n.Data); s != "" {
				lines = append(lines, s)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range doc.Nodes {
		walk(n)
	}
	return lines, nil
}
