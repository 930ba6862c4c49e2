// Package classify decides what a PMMail message file actually holds and
// converts it accordingly.
//
// PMMail 2000 stored messages under a .msg extension regardless of format.
// Some are Outlook compound files, some are already RFC 5322 text, and
// the rest are an undocumented binary layout that can only be salvaged.
package classify

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/wesm/pmmail2eml/internal/fileutil"
	"github.com/wesm/pmmail2eml/internal/textutil"
)

// SniffSize is how many leading bytes are inspected to classify a file.
// It is also the size of the salvaged prefix for unrecognized binaries.
const SniffSize = 4096

// compoundSignature opens every OLE2 compound file.
var compoundSignature = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}

// textMarkers are header names whose presence marks plain mail text.
var textMarkers = []string{"From:", "Subject:", "Content-Type:", "Return-Path:"}

// Kind is the payload type of a message file.
type Kind int

const (
	KindUnknown Kind = iota
	KindCompound
	KindPlainText
	KindBinary
)

func (k Kind) String() string {
	switch k {
	case KindCompound:
		return "compound"
	case KindPlainText:
		return "plain-text"
	case KindBinary:
		return "binary"
	default:
		return "unknown"
	}
}

// MessageParser converts a compound-file message into RFC 5322 bytes.
type MessageParser interface {
	Convert(raw []byte) ([]byte, error)
}

// ErrNoParser is reported for compound files when the Classifier has no
// MessageParser.
var ErrNoParser = errors.New("no parser for compound messages")

// Outcome is the result of converting one file.
type Outcome struct {
	Source string
	Target string
	Kind   Kind

	// Err is nil on success.
	Err error

	// Truncated is set when a binary file larger than SniffSize was
	// salvaged and only its prefix was written.
	Truncated bool
}

// OK reports whether the conversion succeeded.
func (o Outcome) OK() bool {
	return o.Err == nil
}

// Sniff classifies a file from its leading bytes. Only the first
// SniffSize bytes of prefix are considered.
func Sniff(prefix []byte) Kind {
	if bytes.HasPrefix(prefix, compoundSignature) {
		return KindCompound
	}
	if len(prefix) > SniffSize {
		prefix = prefix[:SniffSize]
	}
	text := textutil.DropInvalidUTF8(prefix)
	for _, m := range textMarkers {
		if strings.Contains(text, m) {
			return KindPlainText
		}
	}
	return KindBinary
}

// Classifier converts message files. It holds no per-file state and may
// be used from several goroutines at once if Parser allows it.
type Classifier struct {
	Parser MessageParser

	// Logger is optional; defaults to slog.Default().
	Logger *slog.Logger
}

// New returns a Classifier using parser for compound files.
func New(parser MessageParser, logger *slog.Logger) *Classifier {
	return &Classifier{Parser: parser, Logger: logger}
}

func (c *Classifier) log() *slog.Logger {
	if c.Logger == nil {
		return slog.Default()
	}
	return c.Logger
}

// Convert classifies src and writes the converted message to dst. The
// output is written atomically: on failure dst is left as it was.
func (c *Classifier) Convert(src, dst string) Outcome {
	out := Outcome{Source: src, Target: dst}

	f, err := os.Open(src)
	if err != nil {
		return c.fail(out, "open message", err)
	}
	defer f.Close()

	prefix := make([]byte, SniffSize)
	n, err := io.ReadFull(f, prefix)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return c.fail(out, "read message", err)
	}
	prefix = prefix[:n]
	out.Kind = Sniff(prefix)

	switch out.Kind {
	case KindCompound:
		return c.convertCompound(out, f, prefix)
	case KindPlainText:
		return c.copyText(out, f, prefix)
	default:
		return c.salvageBinary(out, f, prefix)
	}
}

func (c *Classifier) convertCompound(out Outcome, r io.Reader, prefix []byte) Outcome {
	if c.Parser == nil {
		return c.fail(out, "parse compound message", ErrNoParser)
	}
	raw, err := readRest(r, prefix)
	if err != nil {
		return c.fail(out, "read message", err)
	}
	eml, err := c.Parser.Convert(raw)
	if err != nil {
		return c.fail(out, "parse compound message", err)
	}
	return c.write(out, eml)
}

// copyText writes the sniffed prefix as UTF-8 text, dropping invalid
// bytes, including a multi-byte sequence cut at the window edge. Text
// beyond SniffSize is not copied.
func (c *Classifier) copyText(out Outcome, f *os.File, prefix []byte) Outcome {
	size := sourceSize(f, prefix)
	out.Truncated = size > int64(len(prefix))

	out = c.write(out, []byte(textutil.DropInvalidUTF8(prefix)))
	if out.OK() && out.Truncated {
		c.log().Warn("plain-text message longer than sniff window, copied prefix only",
			"path", out.Source,
			"target", out.Target,
			"size", size,
			"written", len(prefix),
		)
	}
	return out
}

// salvageBinary writes the sniffed prefix unchanged. Content beyond
// SniffSize is not recovered.
func (c *Classifier) salvageBinary(out Outcome, f *os.File, prefix []byte) Outcome {
	size := sourceSize(f, prefix)
	out.Truncated = size > int64(len(prefix))

	out = c.write(out, prefix)
	if out.OK() {
		c.log().Warn("unconverted binary fallback, copied raw prefix",
			"path", out.Source,
			"target", out.Target,
			"size", size,
			"written", len(prefix),
			"truncated", out.Truncated,
		)
	}
	return out
}

// sourceSize returns the size of f, or the prefix length if it cannot
// be determined.
func sourceSize(f *os.File, prefix []byte) int64 {
	if info, err := f.Stat(); err == nil {
		return info.Size()
	}
	return int64(len(prefix))
}

func (c *Classifier) write(out Outcome, data []byte) Outcome {
	if err := fileutil.WriteFileAtomic(out.Target, data); err != nil {
		return c.fail(out, "write output", err)
	}
	c.log().Debug("converted message",
		"path", out.Source,
		"target", out.Target,
		"kind", out.Kind.String(),
		"bytes", len(data),
	)
	return out
}

func (c *Classifier) fail(out Outcome, op string, err error) Outcome {
	out.Err = fmt.Errorf("%s: %w", op, err)
	c.log().Error("conversion failed",
		"path", out.Source,
		"kind", out.Kind.String(),
		"error", out.Err,
	)
	return out
}

func readRest(r io.Reader, prefix []byte) ([]byte, error) {
	rest, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	raw := make([]byte, 0, len(prefix)+len(rest))
	raw = append(raw, prefix...)
	return append(raw, rest...), nil
}
