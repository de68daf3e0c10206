package notify

import (
	"errors"
	"fmt"
	"net/smtp"
	"strings"
	"time"
)

// Mailer delivery errors.
var (
	// ErrNoRecipients is returned when a send has nobody to send to.
	ErrNoRecipients = errors.New("no recipients configured for digest mail")

	// ErrNoSMTPHost is returned when the mailer has no server configured.
	ErrNoSMTPHost = errors.New("no SMTP host configured")
)

// Mailer sends change digests by email.
//
// Delivery uses net/smtp directly: a digest mail is a single plain-text
// message to a known relay, which the standard library covers without
// pulling in a full mail client dependency.
type Mailer struct {
	host     string
	port     int
	from     string
	username string
	password string

	// sendFunc performs the actual SMTP delivery. Replaceable in tests.
	sendFunc func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error
}

// MailerOption configures a Mailer.
type MailerOption func(*Mailer)

// WithSendFunc replaces the SMTP send function. Exists for tests.
func WithSendFunc(send func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error) MailerOption {
	return func(m *Mailer) { m.sendFunc = send }
}

// NewMailer creates a Mailer for the given SMTP server. An empty
// username selects unauthenticated delivery.
func NewMailer(host string, port int, from, username, password string, opts ...MailerOption) *Mailer {
	m := &Mailer{
		host:     host,
		port:     port,
		from:     from,
		username: username,
		password: password,
		sendFunc: smtp.SendMail,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Send mails the digest to the recipients. Empty digests are silently
// skipped: subscribers hear from SiteWatch only when something
// changed.
func (m *Mailer) Send(digest *Digest, to []string) error {
	if digest.Empty() {
		return nil
	}
	if m.host == "" {
		return ErrNoSMTPHost
	}
	if len(to) == 0 {
		return ErrNoRecipients
	}

	msg, err := m.buildMessage(digest, to)
	if err != nil {
		return fmt.Errorf("failed to build digest mail: %w", err)
	}

	var auth smtp.Auth
	if m.username != "" {
		auth = smtp.PlainAuth("", m.username, m.password, m.host)
	}

	addr := fmt.Sprintf("%s:%d", m.host, m.port)
	if err := m.sendFunc(addr, auth, m.from, to, msg); err != nil {
		return fmt.Errorf("failed to send digest mail: %w", err)
	}
	return nil
}

// buildMessage assembles the RFC 5322 message with a text digest body.
func (m *Mailer) buildMessage(digest *Digest, to []string) ([]byte, error) {
	var body strings.Builder
	if _, err := NewTextWriter(&body, WithDiffs(true)).WriteDigest(digest); err != nil {
		return nil, err
	}

	subject := fmt.Sprintf("SiteWatch: %d change(s) detected", digest.TotalChanges())

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", m.from)
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	fmt.Fprintf(&msg, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(strings.ReplaceAll(body.String(), "\n", "\r\n"))

	return []byte(msg.String()), nil
}
