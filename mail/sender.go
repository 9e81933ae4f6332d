package mail

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/smtp"
)

// Kind selects which lifecycle message to render.
type Kind string

const (
	KindVerify Kind = "VERIFY"
	KindReset  Kind = "RESET"
)

// Message is one lifecycle email. Link carries the full action URL the
// recipient clicks; the template never sees the raw token separately.
type Message struct {
	To   string
	Kind Kind
	Link string
}

// Sender delivers lifecycle email.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Config holds SMTP connection settings.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPSender implements [Sender] over authenticated SMTP.
type SMTPSender struct {
	config Config
}

// NewSMTPSender validates the connection settings.
func NewSMTPSender(cfg Config) (*SMTPSender, error) {
	if cfg.Host == "" || cfg.Port == 0 {
		return nil, fmt.Errorf("mail: host and port are required")
	}
	if cfg.From == "" {
		return nil, fmt.Errorf("mail: from address is required")
	}
	return &SMTPSender{config: cfg}, nil
}

var bodyTemplate = template.Must(template.New("action").Parse(`<!DOCTYPE html>
<html>
  <body style="font-family: sans-serif">
    <p>{{.Intro}}</p>
    <p><a href="{{.Link}}">{{.Label}}</a></p>
    <p>If you did not request this, you can ignore this email. The link expires in one hour.</p>
  </body>
</html>
`))

type bodyData struct {
	Intro string
	Label string
	Link  string
}

func render(msg Message) (subject string, body []byte, err error) {
	var data bodyData
	switch msg.Kind {
	case KindVerify:
		subject = "Verify your email"
		data = bodyData{
			Intro: "Welcome to Doora. Confirm your email address to activate your account.",
			Label: "Verify email",
			Link:  msg.Link,
		}
	case KindReset:
		subject = "Reset your password"
		data = bodyData{
			Intro: "We received a request to reset the password for your Doora account.",
			Label: "Reset password",
			Link:  msg.Link,
		}
	default:
		return "", nil, fmt.Errorf("mail: unknown message kind %q", msg.Kind)
	}

	var buf bytes.Buffer
	if err := bodyTemplate.Execute(&buf, data); err != nil {
		return "", nil, fmt.Errorf("mail: render body: %w", err)
	}
	return subject, buf.Bytes(), nil
}

// Send renders and delivers the message. The context is checked before
// dialing; net/smtp itself does not take a context.
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	subject, body, err := render(msg)
	if err != nil {
		return err
	}

	var payload bytes.Buffer
	fmt.Fprintf(&payload, "From: %s\r\n", s.config.From)
	fmt.Fprintf(&payload, "To: %s\r\n", msg.To)
	fmt.Fprintf(&payload, "Subject: %s\r\n", subject)
	payload.WriteString("MIME-Version: 1.0\r\n")
	payload.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	payload.WriteString("\r\n")
	payload.Write(body)

	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	var auth smtp.Auth
	if s.config.Username != "" {
		auth = smtp.PlainAuth("", s.config.Username, s.config.Password, s.config.Host)
	}
	if err := smtp.SendMail(addr, auth, s.config.From, []string{msg.To}, payload.Bytes()); err != nil {
		return fmt.Errorf("mail: send to %s: %w", msg.To, err)
	}
	return nil
}
