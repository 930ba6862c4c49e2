// Package outlook converts Outlook .msg files (OLE2 compound documents
// holding MAPI properties) into RFC 5322 messages.
package outlook

import (
	"bytes"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/richardlehane/mscfb"
	"github.com/rotisserie/eris"

	"github.com/wesm/pmmail2eml/internal/textutil"
)

// Address is a sender or recipient.
type Address struct {
	Name  string
	Email string
}

// Attachment is a file attached to the message.
type Attachment struct {
	Filename    string
	ContentType string
	ContentID   string
	Data        []byte
}

// Message is the subset of a .msg file that maps onto an RFC 5322
// message.
type Message struct {
	Subject string
	Date    time.Time
	From    Address
	To      []Address
	Cc      []Address
	Bcc     []Address

	// DisplayTo and DisplayCc are the display-only recipient strings,
	// used when no recipient carries an address.
	DisplayTo string
	DisplayCc string

	MessageID  string
	InReplyTo  string
	References string

	// TransportHeaders are the original internet headers, if the
	// message arrived over SMTP.
	TransportHeaders string

	Body        string
	HTML        string
	Attachments []Attachment
}

// stream is one property stream pulled out of the compound file.
type stream struct {
	// storage is the name of the recipient/attachment storage holding
	// the stream, or "" for the top-level message.
	storage string
	name    string
	data    []byte
}

// Read parses a compound-binary .msg file.
func Read(raw []byte) (*Message, error) {
	streams, err := readStreams(raw)
	if err != nil {
		return nil, err
	}
	return assemble(streams)
}

// readStreams walks the compound file and returns every property stream
// of the top-level message and its direct recipient and attachment
// storages. Embedded messages deeper in the tree are skipped.
func readStreams(raw []byte) ([]stream, error) {
	doc, err := mscfb.New(bytes.NewReader(raw))
	if err != nil {
		return nil, eris.Wrap(err, "open compound file")
	}

	var out []stream
	for {
		entry, err := doc.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "read compound file directory")
		}

		if entry.Name != propertiesStream && !strings.HasPrefix(entry.Name, substgPrefix) {
			continue
		}
		path := entry.Path
		if len(path) > 0 && path[0] == "Root Entry" {
			path = path[1:]
		}
		if len(path) > 1 {
			continue
		}
		storage := ""
		if len(path) == 1 {
			storage = path[0]
			if !strings.HasPrefix(storage, recipPrefix) && !strings.HasPrefix(storage, attachPrefix) {
				continue
			}
		}

		if entry.Size < 0 || entry.Size > int64(len(raw)) {
			return nil, eris.Errorf("stream %s: implausible size %d", entry.Name, entry.Size)
		}
		data := make([]byte, entry.Size)
		if _, err := io.ReadFull(entry, data); err != nil {
			return nil, eris.Wrapf(err, "read stream %s", entry.Name)
		}
		out = append(out, stream{storage: storage, name: entry.Name, data: data})
	}
	return out, nil
}

// assemble turns raw property streams into a Message.
func assemble(streams []stream) (*Message, error) {
	top := newPropSet()
	children := make(map[string]*propSet)
	for _, s := range streams {
		ps := top
		header := topLevelPropsHeader
		if s.storage != "" {
			ps = children[s.storage]
			if ps == nil {
				ps = newPropSet()
				children[s.storage] = ps
			}
			header = childPropsHeader
		}
		if s.name == propertiesStream {
			ps.addFixed(s.data, header)
		} else {
			ps.addStream(s.name, s.data)
		}
	}
	if len(top.streams) == 0 && len(top.fixed) == 0 {
		return nil, eris.New("compound file holds no message properties")
	}

	cp := codePage(top)
	msg := &Message{
		Subject:          top.Text(prSubject, cp),
		DisplayTo:        top.Text(prDisplayTo, cp),
		DisplayCc:        top.Text(prDisplayCc, cp),
		MessageID:        top.Text(prInternetMessageID, cp),
		InReplyTo:        top.Text(prInReplyToID, cp),
		References:       top.Text(prInternetReferences, cp),
		TransportHeaders: top.Text(prTransportMessageHeaders, cp),
		Body:             top.Text(prBody, cp),
	}

	if t, ok := top.Time(prClientSubmitTime); ok {
		msg.Date = t
	} else if t, ok := top.Time(prMessageDeliveryTime); ok {
		msg.Date = t
	}

	msg.From = Address{
		Name: firstNonEmpty(top.Text(prSenderName, cp), top.Text(prSentRepresentingName, cp)),
		Email: firstNonEmpty(
			pickAddress(top.Text(prSenderSMTPAddress, cp), top.Text(prSenderEmailAddress, cp)),
			pickAddress(top.Text(prSentRepresentingSMTPAddr, cp), top.Text(prSentRepresentingEmail, cp)),
		),
	}

	if html, ok := top.Binary(prBodyHTML); ok {
		msg.HTML = decodeHTML(html, cp)
	} else {
		msg.HTML = top.Text(prBodyHTML, cp)
	}

	// Storage names end in a zero-padded index, so lexical order is
	// the original order.
	names := make([]string, 0, len(children))
	for name := range children {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		ps := children[name]
		switch {
		case strings.HasPrefix(name, recipPrefix):
			addRecipient(msg, ps, cp)
		case strings.HasPrefix(name, attachPrefix):
			if att, ok := readAttachment(ps, cp); ok {
				msg.Attachments = append(msg.Attachments, att)
			}
		}
	}
	return msg, nil
}

func codePage(top *propSet) int {
	if v, ok := top.Int32(prInternetCodepage); ok && v > 0 {
		return int(v)
	}
	if v, ok := top.Int32(prMessageCodepage); ok && v > 0 {
		return int(v)
	}
	return 0
}

func addRecipient(msg *Message, ps *propSet, cp int) {
	addr := Address{
		Name:  ps.Text(prDisplayName, cp),
		Email: pickAddress(ps.Text(prSMTPAddress, cp), ps.Text(prEmailAddress, cp)),
	}
	if addr.Email == "" && addr.Name == "" {
		return
	}
	typ, _ := ps.Int32(prRecipientType)
	switch typ {
	case recipCc:
		msg.Cc = append(msg.Cc, addr)
	case recipBcc:
		msg.Bcc = append(msg.Bcc, addr)
	default:
		msg.To = append(msg.To, addr)
	}
}

func readAttachment(ps *propSet, cp int) (Attachment, bool) {
	data, ok := ps.Binary(prAttachDataBin)
	if !ok {
		// Embedded messages and OLE objects have no flat data stream.
		return Attachment{}, false
	}
	att := Attachment{
		Filename: firstNonEmpty(
			ps.Text(prAttachLongFilename, cp),
			ps.Text(prAttachFilename, cp),
			ps.Text(prDisplayName, cp),
		),
		ContentType: ps.Text(prAttachMIMETag, cp),
		ContentID:   strings.Trim(ps.Text(prAttachContentID, cp), "<>"),
		Data:        data,
	}
	if att.ContentType == "" {
		att.ContentType = "application/octet-stream"
	}
	return att, true
}

// pickAddress prefers an SMTP address. Exchange recipients carry an X.500
// DN in PR_EMAIL_ADDRESS, which is useless outside the original server.
func pickAddress(smtp, email string) string {
	if smtp != "" {
		return smtp
	}
	if strings.Contains(email, "@") {
		return email
	}
	return ""
}

func decodeHTML(data []byte, cp int) string {
	data = trimNUL(data)
	if cp > 0 {
		return strings.TrimSpace(textutil.DecodeCodePage(data, cp))
	}
	return strings.TrimSpace(textutil.EnsureUTF8(string(data)))
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
