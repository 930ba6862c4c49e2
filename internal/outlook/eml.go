package outlook

import (
	"bufio"
	"io"
	"strings"

	"github.com/emersion/go-message"
	gomail "github.com/emersion/go-message/mail"
	"github.com/emersion/go-message/textproto"
	"github.com/rotisserie/eris"

	"github.com/wesm/pmmail2eml/internal/mime"
)

// partFunc creates a MIME entity with the given header: message.CreateWriter
// for the top-level entity, (*message.Writer).CreatePart for nested ones.
type partFunc func(message.Header) (*message.Writer, error)

// WriteEML writes m as an RFC 5322 message. Multipart boundaries are
// derived from boundary, so the same message and boundary always produce
// the same bytes.
func (m *Message) WriteEML(w io.Writer, boundary string) error {
	h := m.header()
	h.Set("MIME-Version", "1.0")

	top := func(h message.Header) (*message.Writer, error) {
		return message.CreateWriter(w, h)
	}

	if len(m.Attachments) == 0 {
		if err := m.writeBody(top, h.Header, boundary); err != nil {
			return eris.Wrap(err, "write body")
		}
		return nil
	}

	h.SetContentType("multipart/mixed", map[string]string{"boundary": boundary + "-mixed"})
	mw, err := message.CreateWriter(w, h.Header)
	if err != nil {
		return eris.Wrap(err, "write header")
	}
	if err := m.writeBody(mw.CreatePart, message.Header{}, boundary); err != nil {
		return eris.Wrap(err, "write body")
	}
	for i, att := range m.Attachments {
		if err := writeAttachment(mw, att); err != nil {
			return eris.Wrapf(err, "write attachment %d", i)
		}
	}
	if err := mw.Close(); err != nil {
		return eris.Wrap(err, "close message")
	}
	return nil
}

// header builds the top-level header. The original transport headers are
// the base when present; MAPI properties fill in whatever they lack.
func (m *Message) header() gomail.Header {
	h := gomail.Header{Header: message.Header{Header: transportHeader(m.TransportHeaders)}}

	if !h.Has("Date") && !m.Date.IsZero() {
		h.SetDate(m.Date)
	}
	if !h.Has("From") {
		switch {
		case m.From.Email != "":
			h.SetAddressList("From", []*gomail.Address{toMailAddress(m.From)})
		case m.From.Name != "":
			h.SetText("From", m.From.Name)
		}
	}
	setRecipients(&h, "To", m.To, m.DisplayTo)
	setRecipients(&h, "Cc", m.Cc, m.DisplayCc)
	setRecipients(&h, "Bcc", m.Bcc, "")

	if !h.Has("Subject") && m.Subject != "" {
		h.SetSubject(m.Subject)
	}
	if !h.Has("Message-Id") && m.MessageID != "" {
		h.SetMessageID(strings.Trim(m.MessageID, "<> "))
	}
	if !h.Has("In-Reply-To") && m.InReplyTo != "" {
		h.Set("In-Reply-To", m.InReplyTo)
	}
	if !h.Has("References") && m.References != "" {
		h.Set("References", m.References)
	}
	return h
}

// transportHeader parses the PR_TRANSPORT_MESSAGE_HEADERS block. The
// structural MIME fields are dropped since they describe the original
// body layout, not the one being written. Unparseable headers yield an
// empty header.
func transportHeader(raw string) textproto.Header {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return textproto.Header{}
	}
	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	raw = strings.ReplaceAll(raw, "\n", "\r\n")

	h, err := textproto.ReadHeader(bufio.NewReader(strings.NewReader(raw + "\r\n\r\n")))
	if err != nil {
		return textproto.Header{}
	}
	fields := h.Fields()
	for fields.Next() {
		key := strings.ToLower(fields.Key())
		if strings.HasPrefix(key, "content-") || key == "mime-version" {
			fields.Del()
		}
	}
	return h
}

func setRecipients(h *gomail.Header, key string, addrs []Address, display string) {
	if h.Has(key) {
		return
	}
	var list []*gomail.Address
	for _, a := range addrs {
		if a.Email != "" {
			list = append(list, toMailAddress(a))
		}
	}
	switch {
	case len(list) > 0:
		h.SetAddressList(key, list)
	case display != "":
		h.SetText(key, display)
	}
}

func toMailAddress(a Address) *gomail.Address {
	return &gomail.Address{Name: a.Name, Address: a.Email}
}

// textBody returns the plain-text body, derived from the HTML body when
// the message only carries HTML.
func (m *Message) textBody() string {
	if m.Body != "" || m.HTML == "" {
		return m.Body
	}
	return mime.StripHTML(m.HTML)
}

func (m *Message) writeBody(create partFunc, h message.Header, boundary string) error {
	text := m.textBody()
	if m.HTML == "" {
		return writeTextPart(create, h, "text/plain", text)
	}

	h.SetContentType("multipart/alternative", map[string]string{"boundary": boundary + "-alt"})
	aw, err := create(h)
	if err != nil {
		return err
	}
	if err := writeTextPart(aw.CreatePart, message.Header{}, "text/plain", text); err != nil {
		return err
	}
	if err := writeTextPart(aw.CreatePart, message.Header{}, "text/html", m.HTML); err != nil {
		return err
	}
	return aw.Close()
}

func writeTextPart(create partFunc, h message.Header, mediaType, text string) error {
	h.SetContentType(mediaType, map[string]string{"charset": "utf-8"})
	h.Set("Content-Transfer-Encoding", "quoted-printable")
	pw, err := create(h)
	if err != nil {
		return err
	}
	if _, err := io.WriteString(pw, text); err != nil {
		return err
	}
	return pw.Close()
}

func writeAttachment(mw *message.Writer, att Attachment) error {
	var h message.Header
	contentType := att.ContentType
	if !validMediaType(contentType) {
		contentType = "application/octet-stream"
	}
	h.SetContentType(contentType, nil)

	params := map[string]string{}
	if att.Filename != "" {
		params["filename"] = att.Filename
	}
	disposition := "attachment"
	if att.ContentID != "" {
		disposition = "inline"
		h.Set("Content-Id", "<"+att.ContentID+">")
	}
	h.SetContentDisposition(disposition, params)
	h.Set("Content-Transfer-Encoding", "base64")

	pw, err := mw.CreatePart(h)
	if err != nil {
		return err
	}
	if _, err := pw.Write(att.Data); err != nil {
		return err
	}
	return pw.Close()
}

// validMediaType reports whether s is a bare type/subtype made of token
// characters.
func validMediaType(s string) bool {
	typ, sub, ok := strings.Cut(s, "/")
	return ok && isToken(typ) && isToken(sub)
}

func isToken(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r <= ' ' || r >= 0x7f || strings.ContainsRune(`()<>@,;:\"/[]?=`, r) {
			return false
		}
	}
	return true
}
