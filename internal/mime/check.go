package mime

// Status grades how cleanly a converted message parses.
type Status int

const (
	// StatusOK parsed without findings.
	StatusOK Status = iota
	// StatusWarnings parsed, but the parser reported problems or the
	// message carries none of the usual headers.
	StatusWarnings
	// StatusUnparseable could not be read as a message at all.
	StatusUnparseable
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusWarnings:
		return "warnings"
	default:
		return "unparseable"
	}
}

// Report summarizes one parsed message for verification output.
type Report struct {
	Status   Status
	Findings []string

	From        Address
	Recipients  int // To, Cc and Bcc addresses combined
	Attachments int // attached and inline parts
	Inline      int
	References  int
	BodyChars   int // length of the plain-text body, or of stripped HTML
}

// Inspect parses raw, grades it and counts what it carries. The findings
// explain any status other than StatusOK.
func Inspect(raw []byte) Report {
	msg, err := Parse(raw)
	if err != nil {
		return Report{Status: StatusUnparseable, Findings: []string{err.Error()}}
	}

	r := Report{
		Findings:    msg.Errors,
		From:        msg.GetFirstFrom(),
		Recipients:  len(msg.To) + len(msg.Cc) + len(msg.Bcc),
		Attachments: len(msg.Attachments),
		References:  len(msg.References),
		BodyChars:   len(msg.GetBodyText()),
	}
	for _, a := range msg.Attachments {
		if a.IsInline {
			r.Inline++
		}
	}
	if msg.Subject == "" && len(msg.From) == 0 && msg.Date.IsZero() {
		r.Findings = append(r.Findings, "no Subject, From or Date header")
	}
	if len(r.Findings) > 0 {
		r.Status = StatusWarnings
	}
	return r
}

// Check parses raw and grades it. The returned findings explain any
// status other than StatusOK.
func Check(raw []byte) (Status, []string) {
	r := Inspect(raw)
	return r.Status, r.Findings
}
