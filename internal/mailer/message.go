package mailer

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"net/textproto"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmehdipour/mail-gateway/internal/model"
)

// Attachment is a file already read from the upload store.
type Attachment struct {
	Name    string // basename used as the disposition filename
	Content []byte
}

// Message is one rendered email. Bcc never reaches the headers.
type Message struct {
	Subject     string
	HTMLBody    string
	To          model.AddressSet
	Cc          model.AddressSet
	Bcc         model.AddressSet
	Attachments []string // paths on the upload store
}

// Recipients is the envelope list: to, then cc, then bcc, empty entries skipped.
func (m Message) Recipients() []string {
	var out []string
	for _, set := range []model.AddressSet{m.To, m.Cc, m.Bcc} {
		for _, a := range set.List() {
			if a = strings.TrimSpace(a); a != "" {
				out = append(out, a)
			}
		}
	}
	return out
}

// envelopeAddress strips a display name for MAIL FROM and RCPT TO.
// Anything net/mail cannot parse is passed on trimmed.
func envelopeAddress(s string) string {
	s = strings.TrimSpace(s)
	if a, err := mail.ParseAddress(s); err == nil {
		return a.Address
	}
	return s
}

func headerList(set model.AddressSet) string {
	var parts []string
	for _, a := range set.List() {
		if a = strings.TrimSpace(a); a != "" {
			parts = append(parts, a)
		}
	}
	return strings.Join(parts, ", ")
}

// build renders m as a multipart/mixed RFC 5322 message.
func build(from, messageID string, date time.Time, m Message, files []Attachment) ([]byte, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	h := []struct{ k, v string }{
		{"From", from},
		{"To", headerList(m.To)},
		{"Cc", headerList(m.Cc)},
		{"Subject", mime.QEncoding.Encode("utf-8", m.Subject)},
		{"Date", date.Format(time.RFC1123Z)},
		{"Message-ID", messageID},
		{"MIME-Version", "1.0"},
		{"Content-Type", mime.FormatMediaType("multipart/mixed", map[string]string{"boundary": mw.Boundary()})},
	}
	var head bytes.Buffer
	for _, kv := range h {
		if kv.v == "" {
			continue
		}
		fmt.Fprintf(&head, "%s: %s\r\n", kv.k, kv.v)
	}
	head.WriteString("\r\n")

	body, err := mw.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {"text/html; charset=utf-8"},
		"Content-Transfer-Encoding": {"quoted-printable"},
	})
	if err != nil {
		return nil, err
	}
	qp := quotedprintable.NewWriter(body)
	if _, err := qp.Write([]byte(m.HTMLBody)); err != nil {
		return nil, err
	}
	if err := qp.Close(); err != nil {
		return nil, err
	}

	for _, f := range files {
		ctype := mime.TypeByExtension(strings.ToLower(filepath.Ext(f.Name)))
		if ctype == "" {
			ctype = "application/octet-stream"
		}
		part, err := mw.CreatePart(textproto.MIMEHeader{
			"Content-Type":              {ctype},
			"Content-Transfer-Encoding": {"base64"},
			"Content-Disposition":       {mime.FormatMediaType("attachment", map[string]string{"filename": f.Name})},
		})
		if err != nil {
			return nil, err
		}
		if err := writeBase64(part, f.Content); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	return append(head.Bytes(), buf.Bytes()...), nil
}

// writeBase64 wraps encoded output at 76 columns.
func writeBase64(w io.Writer, data []byte) error {
	enc := base64.StdEncoding.EncodeToString(data)
	for len(enc) > 76 {
		if _, err := fmt.Fprintf(w, "%s\r\n", enc[:76]); err != nil {
			return err
		}
		enc = enc[76:]
	}
	_, err := fmt.Fprintf(w, "%s\r\n", enc)
	return err
}
