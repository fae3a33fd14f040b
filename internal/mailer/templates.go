package mailer

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
)

// Kind selects an email template.
type Kind string

const (
	KindWelcome Kind = "welcome"
	KindResend  Kind = "resend"
)

// CardAttachmentName is the file name recipients see for the ID card.
const CardAttachmentName = "SEDS_CUSAT_ID_Card.png"

//go:embed templates/*.html
var templateFS embed.FS

var (
	bodies   = template.Must(template.ParseFS(templateFS, "templates/*.html"))
	subjects = map[Kind]string{
		KindWelcome: "Welcome to SEDS CUSAT!",
		KindResend:  "Your SEDS CUSAT Digital ID Card",
	}
)

// CardEmail renders the message carrying the ID card at cardPath.
func CardEmail(kind Kind, to, name, cardPath string) (Message, error) {
	subject, ok := subjects[kind]
	if !ok {
		return Message{}, fmt.Errorf("unknown email kind %q", kind)
	}

	var body bytes.Buffer
	if err := bodies.ExecuteTemplate(&body, string(kind)+".html", struct{ Name string }{name}); err != nil {
		return Message{}, fmt.Errorf("failed to render %s email: %w", kind, err)
	}

	return Message{
		To:          to,
		Subject:     subject,
		HTML:        body.String(),
		Attachments: []Attachment{{Path: cardPath, Name: CardAttachmentName}},
	}, nil
}
