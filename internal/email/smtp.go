package email

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/mail"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"meridian/internal/config"
)

// ErrNotConfigured is returned when no SMTP host is set.
var ErrNotConfigured = errors.New("smtp not configured")

// Message is one outgoing email.
type Message struct {
	To      string
	Subject string
	HTML    string
}

// SendFunc matches smtp.SendMail.
type SendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPMailer delivers messages through an SMTP relay.
type SMTPMailer struct {
	addr     string
	host     string
	auth     smtp.Auth
	from     mail.Address
	sendMail SendFunc
	now      func() time.Time
}

// NewSMTPMailer builds a mailer from the email configuration.
func NewSMTPMailer(cfg config.Email) (*SMTPMailer, error) {
	if cfg.SMTP.Host == "" {
		return nil, ErrNotConfigured
	}
	if _, err := mail.ParseAddress(cfg.FromAddress); err != nil {
		return nil, fmt.Errorf("invalid from address %q: %w", cfg.FromAddress, err)
	}

	port := cfg.SMTP.Port
	if port == 0 {
		port = 587
	}
	m := &SMTPMailer{
		addr:     net.JoinHostPort(cfg.SMTP.Host, strconv.Itoa(port)),
		host:     cfg.SMTP.Host,
		from:     mail.Address{Name: cfg.FromName, Address: cfg.FromAddress},
		sendMail: smtp.SendMail,
		now:      time.Now,
	}
	if cfg.SMTP.Username != "" {
		m.auth = smtp.PlainAuth("", cfg.SMTP.Username, cfg.SMTP.Password, cfg.SMTP.Host)
	}
	return m, nil
}

// WithSendFunc replaces the transport, for tests.
func (m *SMTPMailer) WithSendFunc(fn SendFunc) *SMTPMailer {
	m.sendMail = fn
	return m
}

// Send delivers msg and returns the generated Message-ID.
func (m *SMTPMailer) Send(ctx context.Context, msg Message) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	to, err := mail.ParseAddress(msg.To)
	if err != nil {
		return "", fmt.Errorf("invalid recipient %q: %w", msg.To, err)
	}

	id := fmt.Sprintf("<%s@%s>", uuid.NewString(), m.host)
	if err := m.sendMail(m.addr, m.auth, m.from.Address, []string{to.Address}, m.build(to, id, msg)); err != nil {
		return "", fmt.Errorf("smtp send to %s: %w", to.Address, err)
	}
	return id, nil
}

func (m *SMTPMailer) build(to *mail.Address, id string, msg Message) []byte {
	var buf bytes.Buffer
	header := func(k, v string) { fmt.Fprintf(&buf, "%s: %s\r\n", k, v) }

	header("From", m.from.String())
	header("To", to.String())
	header("Subject", mime.QEncoding.Encode("utf-8", msg.Subject))
	header("Date", m.now().Format(time.RFC1123Z))
	header("Message-ID", id)
	header("MIME-Version", "1.0")
	header("Content-Type", `text/html; charset="utf-8"`)
	header("Content-Transfer-Encoding", "8bit")
	buf.WriteString("\r\n")
	buf.WriteString(strings.ReplaceAll(msg.HTML, "\n", "\r\n"))
	return buf.Bytes()
}
