package outlook

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/wesm/pmmail2eml/internal/mime"
	"github.com/wesm/pmmail2eml/internal/testutil"
)

func render(t *testing.T, m *Message) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := m.WriteEML(&buf, "test-boundary"); err != nil {
		t.Fatalf("WriteEML: %v", err)
	}
	return buf.Bytes()
}

func TestWriteEML_RoundTrip(t *testing.T) {
	m := &Message{
		Subject: "Grüße aus München",
		Date:    time.Date(2002, 4, 1, 8, 0, 0, 0, time.UTC),
		From:    Address{Name: "Alice", Email: "alice@example.com"},
		To:      []Address{{Name: "Bob", Email: "bob@example.com"}},
		Cc:      []Address{{Email: "carol@example.com"}},
		Body:    "Hallo Bob,\r\nbis bald.",
		HTML:    "<p>Hallo Bob,</p><p>bis bald.</p>",
		Attachments: []Attachment{{
			Filename:    "notes.txt",
			ContentType: "text/plain",
			Data:        []byte("line one\n"),
		}},
		MessageID: "<id-1@example.com>",
	}
	raw := render(t, m)

	parsed, err := mime.Parse(raw)
	if err != nil {
		t.Fatalf("parse rendered message: %v", err)
	}
	if parsed.Subject != m.Subject {
		t.Errorf("Subject = %q, want %q", parsed.Subject, m.Subject)
	}
	if !parsed.Date.Equal(m.Date) {
		t.Errorf("Date = %v, want %v", parsed.Date, m.Date)
	}
	if from := parsed.GetFirstFrom(); from.Email != "alice@example.com" || from.Name != "Alice" {
		t.Errorf("From = %+v", from)
	}
	if len(parsed.To) != 1 || parsed.To[0].Email != "bob@example.com" {
		t.Errorf("To = %+v", parsed.To)
	}
	if len(parsed.Cc) != 1 || parsed.Cc[0].Email != "carol@example.com" {
		t.Errorf("Cc = %+v", parsed.Cc)
	}
	if !strings.Contains(parsed.MessageID, "id-1@example.com") {
		t.Errorf("Message-ID = %q", parsed.MessageID)
	}
	testutil.AssertContainsAll(t, parsed.BodyText, []string{"Hallo Bob,", "bis bald."})
	testutil.AssertContainsAll(t, parsed.BodyHTML, []string{"<p>Hallo Bob,</p>"})
	if len(parsed.Attachments) != 1 {
		t.Fatalf("got %d attachments, want 1", len(parsed.Attachments))
	}
	if att := parsed.Attachments[0]; att.Filename != "notes.txt" || string(att.Content) != "line one\n" {
		t.Errorf("attachment = %q %q", att.Filename, att.Content)
	}
}

func TestWriteEML_Deterministic(t *testing.T) {
	m := &Message{
		Subject:     "Same",
		From:        Address{Email: "a@example.com"},
		Body:        "text",
		HTML:        "<b>text</b>",
		Attachments: []Attachment{{Filename: "a.bin", Data: []byte{0, 1, 2}}},
	}
	first := render(t, m)
	second := render(t, m)
	if !bytes.Equal(first, second) {
		t.Error("rendering the same message twice produced different bytes")
	}
	if !bytes.Contains(first, []byte("test-boundary-mixed")) {
		t.Error("mixed boundary not derived from the given boundary")
	}
	if !bytes.Contains(first, []byte("test-boundary-alt")) {
		t.Error("alternative boundary not derived from the given boundary")
	}
}

func TestWriteEML_TransportHeadersWin(t *testing.T) {
	m := &Message{
		Subject: "From properties",
		From:    Address{Email: "props@example.com"},
		TransportHeaders: "Received: from mx.example.com\r\n" +
			"Subject: From transport\r\n" +
			"From: transport@example.com\r\n" +
			"MIME-Version: 1.0\r\n" +
			"Content-Type: multipart/related; boundary=\"old\"\r\n",
		Body: "body",
	}
	raw := render(t, m)
	out := string(raw)

	testutil.AssertContainsAll(t, out, []string{"Received: from mx.example.com"})
	for _, s := range []string{"boundary=\"old\"", "multipart/related", "props@example.com"} {
		testutil.AssertNotContains(t, out, s)
	}
	if n := strings.Count(out, "Mime-Version:") + strings.Count(out, "MIME-Version:"); n != 1 {
		t.Errorf("found %d MIME-Version fields, want 1", n)
	}

	parsed, err := mime.Parse(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed.Subject != "From transport" {
		t.Errorf("Subject = %q, want the transport value", parsed.Subject)
	}
	if strings.TrimSpace(parsed.BodyText) != "body" {
		t.Errorf("BodyText = %q", parsed.BodyText)
	}
}

func TestWriteEML_HTMLOnlyGetsTextPart(t *testing.T) {
	m := &Message{
		Subject: "html",
		HTML:    "<p>Hello <b>World</b></p>",
	}
	parsed, err := mime.Parse(render(t, m))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !strings.Contains(parsed.BodyText, "Hello World") {
		t.Errorf("BodyText = %q, want text derived from HTML", parsed.BodyText)
	}
}

func TestWriteEML_DisplayOnlyRecipients(t *testing.T) {
	m := &Message{
		From:      Address{Name: "Legacy Sender"},
		DisplayTo: "All Staff",
		Body:      "x",
	}
	out := string(render(t, m))
	testutil.AssertContainsAll(t, out, []string{"From: Legacy Sender", "To: All Staff"})
}

func TestValidMediaType(t *testing.T) {
	for _, s := range []string{"text/plain", "application/vnd.ms-excel", "image/svg+xml"} {
		if !validMediaType(s) {
			t.Errorf("validMediaType(%q) = false", s)
		}
	}
	for _, s := range []string{"", "text", "text/", "/plain", "text/plain; charset=x", "a b/c"} {
		if validMediaType(s) {
			t.Errorf("validMediaType(%q) = true", s)
		}
	}
}

func TestBoundaryFor(t *testing.T) {
	a := boundaryFor([]byte("one"))
	if a != boundaryFor([]byte("one")) {
		t.Error("boundary not stable for equal input")
	}
	if a == boundaryFor([]byte("two")) {
		t.Error("different inputs share a boundary")
	}
}

func TestConverter_RejectsNonCompound(t *testing.T) {
	logger, _ := testutil.NewLogger()
	if _, err := NewConverter(logger).Convert([]byte("plain text")); err == nil {
		t.Fatal("expected error")
	}
}
