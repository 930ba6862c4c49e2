package outlook

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
)

// Converter turns raw .msg bytes into RFC 5322 bytes.
type Converter struct {
	// Logger is optional; defaults to slog.Default().
	Logger *slog.Logger
}

// NewConverter returns a Converter that logs to logger.
func NewConverter(logger *slog.Logger) *Converter {
	return &Converter{Logger: logger}
}

func (c *Converter) log() *slog.Logger {
	if c == nil || c.Logger == nil {
		return slog.Default()
	}
	return c.Logger
}

// Convert parses raw as an Outlook message and renders it. The output
// depends only on raw.
func (c *Converter) Convert(raw []byte) ([]byte, error) {
	msg, err := Read(raw)
	if err != nil {
		return nil, err
	}

	c.log().Debug("parsed outlook message",
		"subject", msg.Subject,
		"recipients", len(msg.To)+len(msg.Cc)+len(msg.Bcc),
		"attachments", len(msg.Attachments),
		"transport_headers", msg.TransportHeaders != "",
	)

	var buf bytes.Buffer
	if err := msg.WriteEML(&buf, boundaryFor(raw)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// boundaryFor derives a multipart boundary from the source bytes.
func boundaryFor(raw []byte) string {
	sum := sha256.Sum256(raw)
	return "pm2eml-" + hex.EncodeToString(sum[:12])
}
